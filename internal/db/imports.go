package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
)

// ResolveLatestImportDBName returns the db_name with the most recent imported_at
// from public.latest_successful_imports where db_name ILIKE '%city%'.
func ResolveLatestImportDBName(ctx context.Context, meta *sql.DB, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", fmt.Errorf("city is required")
	}
	q := `
SELECT db_name
FROM public.latest_successful_imports
WHERE db_name ILIKE '%' || $1 || '%'
ORDER BY imported_at DESC
LIMIT 1`
	var dbName sql.NullString
	if err := meta.QueryRowContext(ctx, q, city).Scan(&dbName); err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("no database found for city like %q", city)
		}
		return "", err
	}
	if !dbName.Valid || dbName.String == "" {
		return "", fmt.Errorf("empty db_name for city like %q", city)
	}
	return dbName.String, nil
}

// OpenFeedDB connects to the GTFS database. With a city set, the latest import
// for that city is resolved through the cluster's 'postgres' database first.
// It returns the open handle and the database name in use.
func OpenFeedDB(ctx context.Context, baseDSN, city string) (*sql.DB, string, error) {
	finalDSN := baseDSN
	name := ""
	if city != "" {
		rootDSN, err := WithDBName(baseDSN, "postgres")
		if err != nil {
			return nil, "", fmt.Errorf("invalid base DSN: %w", err)
		}
		meta, err := Open(rootDSN)
		if err != nil {
			return nil, "", fmt.Errorf("db open (meta): %w", err)
		}
		defer meta.Close()
		if err := Ping(ctx, meta); err != nil {
			return nil, "", fmt.Errorf("db ping (meta): %w", err)
		}
		name, err = ResolveLatestImportDBName(ctx, meta, city)
		if err != nil {
			return nil, "", fmt.Errorf("resolve latest import for city %q: %w", city, err)
		}
		if finalDSN, err = WithDBName(baseDSN, name); err != nil {
			return nil, "", fmt.Errorf("compose DSN: %w", err)
		}
		log.Printf("using database %q for city %q", name, city)
	}
	sqlDB, err := Open(finalDSN)
	if err != nil {
		return nil, "", fmt.Errorf("db open: %w", err)
	}
	if err := Ping(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, "", fmt.Errorf("db ping: %w", err)
	}
	return sqlDB, name, nil
}
