package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/medexperts/internal/models"
)

type ExpertStore interface {
	Close() error
	ApplyMigrations(dir string) error

	GetExpertByAphra(ctx context.Context, aphraNumber string) (*models.Expert, error)
	ListSectorsAndSchemes(ctx context.Context, expertID string) ([]models.Row, error)
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from a directory in file name order,
// translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			names = append(names, file.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		logger.Info.Printf("Applying migration: %s", name)
		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}

	return nil
}

// GetExpertByAphra returns nil, nil when no expert has the given number.
func (s *BaseStore) GetExpertByAphra(ctx context.Context, aphraNumber string) (*models.Expert, error) {
	var expert models.Expert
	query := s.Converter(`
		SELECT
			record_id,
			aphra_number,
			medical_expert_first_name,
			last_name,
			doctor_id,
			record_type
		FROM medical_experts_rec
		WHERE aphra_number = ?
	`)

	err := s.DB.GetContext(ctx, &expert, query, aphraNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medical expert: %w", err)
	}
	return &expert, nil
}

// ListSectorsAndSchemes returns every column of the expert's sectors and
// schemes rows. Postgres array columns come back as lists.
func (s *BaseStore) ListSectorsAndSchemes(ctx context.Context, expertID string) ([]models.Row, error) {
	query := s.Converter(`
		SELECT *
		FROM sectors_and_schemes
		WHERE medical_expert = ?
	`)

	rows, err := s.DB.QueryxContext(ctx, query, expertID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sectors and schemes: %w", err)
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read sectors and schemes columns: %w", err)
	}
	arrayColumns := make(map[string]bool)
	for _, ct := range columnTypes {
		// lib/pq names array types after their element type with a leading underscore
		if strings.HasPrefix(ct.DatabaseTypeName(), "_") {
			arrayColumns[ct.Name()] = true
		}
	}

	result := []models.Row{}
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan sectors and schemes row: %w", err)
		}
		converted, err := convertRow(row, arrayColumns)
		if err != nil {
			return nil, err
		}
		result = append(result, converted)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sectors and schemes: %w", err)
	}

	return result, nil
}

func convertRow(row map[string]any, arrayColumns map[string]bool) (models.Row, error) {
	out := make(models.Row, len(row))
	for col, v := range row {
		raw, isBytes := v.([]byte)
		switch {
		case arrayColumns[col] && v != nil:
			var arr pq.StringArray
			if err := arr.Scan(v); err != nil {
				return nil, fmt.Errorf("failed to decode array column %s: %w", col, err)
			}
			out[col] = []string(arr)
		case isBytes:
			out[col] = string(raw)
		default:
			out[col] = v
		}
	}
	return out, nil
}
