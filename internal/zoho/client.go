package zoho

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/medexperts/internal/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	modulesPath    = "settings/modules"
)

// Target selects which CRM endpoint a Query hits.
type Target interface {
	isTarget()
}

// ByID fetches a single record: {base}/{module}/{id}.
type ByID string

// BySearch runs a criteria search: {base}/{module}/search?criteria=...
type BySearch string

// ByListing reads the module's default listing: {base}/{module}.
type ByListing struct{}

func (ByID) isTarget()      {}
func (BySearch) isTarget()  {}
func (ByListing) isTarget() {}

type Query struct {
	Module string
	Target Target
	// Fields projects the returned records; sent comma-joined when set.
	Fields []string
}

type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client performs authenticated reads against the Zoho CRM REST API.
// It never retries and never follows pagination.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

func NewClient(baseURL string, tokens TokenSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: httpClient,
	}
}

func (c *Client) Fetch(ctx context.Context, q Query) (Document, error) {
	endpoint, err := buildURL(c.baseURL, q)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, q.Module, endpoint)
}

// Modules lists the CRM modules visible to the integration.
func (c *Client) Modules(ctx context.Context) ([]ModuleInfo, error) {
	doc, err := c.get(ctx, modulesPath, c.baseURL+"/"+modulesPath)
	if err != nil {
		return nil, err
	}
	return ProjectModules(doc), nil
}

func buildURL(baseURL string, q Query) (string, error) {
	if q.Module == "" {
		return "", fmt.Errorf("zoho query has no module")
	}

	path := baseURL + "/" + url.PathEscape(q.Module)
	params := url.Values{}

	switch t := q.Target.(type) {
	case ByID:
		if t == "" {
			return "", fmt.Errorf("zoho query on %s has an empty record id", q.Module)
		}
		path += "/" + url.PathEscape(string(t))
	case BySearch:
		if t == "" {
			return "", fmt.Errorf("zoho search on %s has empty criteria", q.Module)
		}
		path += "/search"
		params.Set("criteria", string(t))
	case ByListing, nil:
	default:
		return "", fmt.Errorf("unsupported zoho query target %T", t)
	}

	if len(q.Fields) > 0 {
		params.Set("fields", strings.Join(q.Fields, ","))
	}

	if len(params) == 0 {
		return path, nil
	}
	return path + "?" + params.Encode(), nil
}

func (c *Client) get(ctx context.Context, module, endpoint string) (Document, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zoho request: %w", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ZohoRequests.WithLabelValues(module, "error").Inc()
		return nil, fmt.Errorf("failed to execute zoho %s request: %w", module, err)
	}
	defer resp.Body.Close()

	metrics.ZohoRequests.WithLabelValues(module, strconv.Itoa(resp.StatusCode)).Inc()
	logger.Debug.Printf("GET %s -> %d in %s", req.URL.Path, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read zoho %s response: %w", module, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &CrmRequestError{Module: module, StatusCode: resp.StatusCode, Body: string(body)}
	}

	// search answers 204 with an empty body when nothing matches
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return Document{}, nil
	}

	var doc Document
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode zoho %s response: %w", module, err)
	}

	return doc, nil
}
