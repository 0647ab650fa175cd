package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/medexperts/internal/cache"
	"github.com/shrimpsizemoose/medexperts/internal/metrics"
	"github.com/shrimpsizemoose/medexperts/internal/models"
	"github.com/shrimpsizemoose/medexperts/internal/store"
	"github.com/shrimpsizemoose/medexperts/internal/zoho"
)

const (
	sourceDatabase = "database"
	sourceCRM      = "crm"

	expertsModule = "Medical_Experts"
	sectorsModule = "Sectors_and_Schemes"
)

var ErrExpertNotFound = errors.New("Medical expert not found")

var expertFields = []string{
	"id",
	"Medical_Expert_First_Name",
	"Last_Name",
	"Doctor_ID",
	"APHRA_Number",
	"Vinici_User_Name",
}

type CRM interface {
	Fetch(ctx context.Context, q zoho.Query) (zoho.Document, error)
	Modules(ctx context.Context) ([]zoho.ModuleInfo, error)
}

type Service struct {
	Config *Config
	Store  store.ExpertStore
	Auth   *Auth
	CRM    CRM
	Cache  *cache.ExpertCache
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := NewStore(config.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	var expertCache *cache.ExpertCache
	if config.Cache.RedisURL != "" {
		expertCache, err = cache.New(config.Cache.RedisURL, config.Cache.TTL.Duration)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to init cache: %w", err)
		}
	}

	httpClient := &http.Client{Timeout: config.Zoho.Timeout.Duration}
	tokens := zoho.NewTokenManager(
		config.Zoho.AccountsURL,
		zoho.Credentials{
			RefreshToken: config.Zoho.RefreshToken,
			ClientID:     config.Zoho.ClientID,
			ClientSecret: config.Zoho.ClientSecret,
		},
		httpClient,
		nil,
	)

	return &Service{
		Config: config,
		Store:  store,
		Auth:   NewAuth(config),
		CRM:    zoho.NewClient(config.Zoho.APIURL, tokens, httpClient),
		Cache:  expertCache,
	}, nil
}

// ExpertFromDatabase loads an expert and their sectors and schemes rows.
func (s *Service) ExpertFromDatabase(ctx context.Context, aphraNumber string) (*models.Expert, error) {
	expert, err := s.Store.GetExpertByAphra(ctx, aphraNumber)
	if err != nil {
		metrics.ExpertLookupsTotal.WithLabelValues(sourceDatabase, "error").Inc()
		return nil, err
	}
	if expert == nil {
		metrics.ExpertLookupsTotal.WithLabelValues(sourceDatabase, "not_found").Inc()
		return nil, ErrExpertNotFound
	}

	rows, err := s.Store.ListSectorsAndSchemes(ctx, expert.ID)
	if err != nil {
		metrics.ExpertLookupsTotal.WithLabelValues(sourceDatabase, "error").Inc()
		return nil, err
	}
	expert.SectorsAndSchemes = rows

	metrics.ExpertLookupsTotal.WithLabelValues(sourceDatabase, "found").Inc()
	return expert, nil
}

// ExpertFromCRM searches Medical_Experts by APHRA number, then pulls the
// Sectors_and_Schemes records linked to the first match.
func (s *Service) ExpertFromCRM(ctx context.Context, aphraNumber string) (*models.CRMExpert, error) {
	var cached models.CRMExpert
	if s.Cache.Get(ctx, sourceCRM, aphraNumber, &cached) {
		metrics.ExpertLookupsTotal.WithLabelValues(sourceCRM, "cached").Inc()
		return &cached, nil
	}

	expertDoc, err := s.CRM.Fetch(ctx, zoho.Query{
		Module: expertsModule,
		Target: zoho.BySearch(equalsCriteria("APHRA_Number", aphraNumber)),
		Fields: expertFields,
	})
	if err != nil {
		metrics.ExpertLookupsTotal.WithLabelValues(sourceCRM, "error").Inc()
		return nil, err
	}

	record, err := expertDoc.First()
	if errors.Is(err, zoho.ErrNoRecords) {
		metrics.ExpertLookupsTotal.WithLabelValues(sourceCRM, "not_found").Inc()
		return nil, ErrExpertNotFound
	}
	if err != nil {
		metrics.ExpertLookupsTotal.WithLabelValues(sourceCRM, "error").Inc()
		return nil, err
	}

	expertID := record["id"]
	if expertID == nil {
		metrics.ExpertLookupsTotal.WithLabelValues(sourceCRM, "error").Inc()
		return nil, fmt.Errorf("%s record for %s has no id", expertsModule, aphraNumber)
	}

	sectorsDoc, err := s.CRM.Fetch(ctx, zoho.Query{
		Module: sectorsModule,
		Target: zoho.BySearch(equalsCriteria("Medical_Expert", fmt.Sprint(expertID))),
	})
	if err != nil {
		metrics.ExpertLookupsTotal.WithLabelValues(sourceCRM, "error").Inc()
		return nil, err
	}

	sectors := zoho.StripAll(sectorsDoc.Records())
	rows := make([]models.Row, 0, len(sectors))
	for _, r := range sectors {
		rows = append(rows, models.Row(r))
	}

	expert := &models.CRMExpert{
		APHRANumber:       record["APHRA_Number"],
		FirstName:         record["Medical_Expert_First_Name"],
		LastName:          record["Last_Name"],
		DoctorID:          record["Doctor_ID"],
		ViniciUserName:    record["Vinici_User_Name"],
		ID:                expertID,
		SectorsAndSchemes: rows,
	}

	s.Cache.Set(ctx, sourceCRM, aphraNumber, expert)
	metrics.ExpertLookupsTotal.WithLabelValues(sourceCRM, "found").Inc()
	logger.Debug.Printf("Resolved %s to CRM record %v with %d sectors and schemes", aphraNumber, expertID, len(rows))

	return expert, nil
}

func (s *Service) CRMModules(ctx context.Context) ([]zoho.ModuleInfo, error) {
	return s.CRM.Modules(ctx)
}

var criteriaEscaper = strings.NewReplacer(
	`\`, `\\`,
	"(", `\(`,
	")", `\)`,
	",", `\,`,
)

// equalsCriteria builds a Zoho search criteria of the form (Field:equals:value).
func equalsCriteria(field, value string) string {
	return fmt.Sprintf("(%s:equals:%s)", field, criteriaEscaper.Replace(value))
}

func (s *Service) Close() error {
	var errs []error

	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if err := s.Cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("cache: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
