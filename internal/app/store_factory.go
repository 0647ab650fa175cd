package app

import (
	"fmt"

	"github.com/shrimpsizemoose/medexperts/internal/store"
	"github.com/shrimpsizemoose/medexperts/internal/store/postgres"
	"github.com/shrimpsizemoose/medexperts/internal/store/sqlite"
)

func NewStore(dsn string) (store.ExpertStore, error) {
	switch dbType := store.DetectType(dsn); dbType {
	case store.DBTypePostgres:
		return postgres.NewPostgresStore(dsn)
	case store.DBTypeSQLite:
		return sqlite.NewSQLiteStore(&store.DBConfig{DSN: dsn, Type: dbType})
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", dsn)
	}
}
