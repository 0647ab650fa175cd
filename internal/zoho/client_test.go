package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
	err   error
	calls int
}

func (s *staticTokens) AccessToken(context.Context) (string, error) {
	s.calls++
	return s.token, s.err
}

type recordedRequest struct {
	path  string
	query map[string][]string
	auth  string
}

func newCRMServer(t *testing.T, status int, body string) (*httptest.Server, *[]recordedRequest) {
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, recordedRequest{
			path:  r.URL.Path,
			query: r.URL.Query(),
			auth:  r.Header.Get("Authorization"),
		})
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestBuildURL(t *testing.T) {
	const base = "https://www.zohoapis.com/crm/v2"

	tests := []struct {
		name    string
		query   Query
		want    string
		wantErr bool
	}{
		{
			name:  "by id",
			query: Query{Module: "Modules", Target: ByID("123")},
			want:  base + "/Modules/123",
		},
		{
			name:  "search",
			query: Query{Module: "Modules", Target: BySearch("(Name:equals:X)")},
			want:  base + "/Modules/search?criteria=%28Name%3Aequals%3AX%29",
		},
		{
			name:  "listing",
			query: Query{Module: "Leads", Target: ByListing{}},
			want:  base + "/Leads",
		},
		{
			name:  "nil target lists",
			query: Query{Module: "Leads"},
			want:  base + "/Leads",
		},
		{
			name:  "fields on id fetch",
			query: Query{Module: "Leads", Target: ByID("9"), Fields: []string{"id", "Last_Name"}},
			want:  base + "/Leads/9?fields=id%2CLast_Name",
		},
		{
			name:    "empty id",
			query:   Query{Module: "Leads", Target: ByID("")},
			wantErr: true,
		},
		{
			name:    "empty criteria",
			query:   Query{Module: "Leads", Target: BySearch("")},
			wantErr: true,
		},
		{
			name:    "no module",
			query:   Query{Target: ByListing{}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildURL(base, tt.query)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetch_ByID(t *testing.T) {
	srv, seen := newCRMServer(t, http.StatusOK, `{"data":[{"id":"123","Name":"X"}]}`)
	tokens := &staticTokens{token: "tok"}
	client := NewClient(srv.URL+"/crm/v2", tokens, srv.Client())

	doc, err := client.Fetch(context.Background(), Query{Module: "Modules", Target: ByID("123")})
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "/crm/v2/Modules/123", req.path)
	assert.NotContains(t, req.query, "criteria")
	assert.Equal(t, "Zoho-oauthtoken tok", req.auth)
	assert.Equal(t, 1, tokens.calls)

	first, err := doc.First()
	require.NoError(t, err)
	assert.Equal(t, "X", first["Name"])
}

func TestFetch_Search(t *testing.T) {
	srv, seen := newCRMServer(t, http.StatusOK, `{"data":[],"info":{"more_records":false}}`)
	client := NewClient(srv.URL, &staticTokens{token: "tok"}, srv.Client())

	_, err := client.Fetch(context.Background(), Query{
		Module: "Modules",
		Target: BySearch("(Name:equals:X)"),
		Fields: []string{"id,Name"},
	})
	require.NoError(t, err)

	req := (*seen)[0]
	assert.Equal(t, "/Modules/search", req.path)
	assert.Equal(t, []string{"(Name:equals:X)"}, req.query["criteria"])
	assert.Equal(t, []string{"id,Name"}, req.query["fields"])
}

func TestFetch_NoContentIsEmptyDocument(t *testing.T) {
	srv, _ := newCRMServer(t, http.StatusNoContent, "")
	client := NewClient(srv.URL, &staticTokens{token: "tok"}, srv.Client())

	doc, err := client.Fetch(context.Background(), Query{Module: "Leads", Target: BySearch("(Email:equals:a)")})
	require.NoError(t, err)

	_, err = doc.First()
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	srv, _ := newCRMServer(t, http.StatusBadRequest, `{"code":"INVALID_QUERY"}`)
	client := NewClient(srv.URL, &staticTokens{token: "tok"}, srv.Client())

	_, err := client.Fetch(context.Background(), Query{Module: "Leads", Target: BySearch("(bad)")})

	var crmErr *CrmRequestError
	require.ErrorAs(t, err, &crmErr)
	assert.Equal(t, "Leads", crmErr.Module)
	assert.Equal(t, http.StatusBadRequest, crmErr.StatusCode)
	assert.Contains(t, crmErr.Body, "INVALID_QUERY")
}

func TestFetch_AuthErrorPropagates(t *testing.T) {
	srv, seen := newCRMServer(t, http.StatusOK, `{}`)
	authErr := &AuthProviderError{StatusCode: http.StatusUnauthorized, Body: "nope"}
	client := NewClient(srv.URL, &staticTokens{err: authErr}, srv.Client())

	_, err := client.Fetch(context.Background(), Query{Module: "Leads"})

	assert.Same(t, authErr, err)
	assert.Empty(t, *seen)
}

func TestFetch_KeepsLargeNumbers(t *testing.T) {
	srv, _ := newCRMServer(t, http.StatusOK, `{"data":[{"Big":4150868000000224005}]}`)
	client := NewClient(srv.URL, &staticTokens{token: "tok"}, srv.Client())

	doc, err := client.Fetch(context.Background(), Query{Module: "Leads"})
	require.NoError(t, err)

	first, err := doc.First()
	require.NoError(t, err)
	assert.Equal(t, json.Number("4150868000000224005"), first["Big"])
}

func TestModules(t *testing.T) {
	srv, seen := newCRMServer(t, http.StatusOK, `{"modules":[
		{"api_name":"Leads","module_name":"Leads","plural_label":"Leads","singular_label":"Lead","id":"1"},
		{"api_name":"Medical_Experts","module_name":"CustomModule1","plural_label":"Medical Experts","singular_label":"Medical Expert"}
	]}`)
	client := NewClient(srv.URL+"/crm/v2", &staticTokens{token: "tok"}, srv.Client())

	modules, err := client.Modules(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/crm/v2/settings/modules", (*seen)[0].path)
	assert.Equal(t, []ModuleInfo{
		{APIName: "Leads", ModuleName: "Leads", PluralLabel: "Leads", SingularLabel: "Lead"},
		{APIName: "Medical_Experts", ModuleName: "CustomModule1", PluralLabel: "Medical Experts", SingularLabel: "Medical Expert"},
	}, modules)
}
