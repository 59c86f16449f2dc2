package integration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// SQLFetcher runs the configured query against an external PostgreSQL or MySQL database
// and returns the first row. A connection is opened per fetch.
type SQLFetcher struct {
	dbType string
}

func NewSQLFetcher(dbType string) *SQLFetcher {
	return &SQLFetcher{dbType: dbType}
}

func (f *SQLFetcher) driver() string {
	if f.dbType == KindPostgreSQL {
		return "postgres"
	}
	return f.dbType
}

func (f *SQLFetcher) Fetch(ctx context.Context, cfg IntegrationConfig) (map[string]interface{}, error) {
	if cfg.DSN == "" || cfg.Query == "" {
		return nil, fmt.Errorf("dsn and query are required")
	}

	db, err := sql.Open(f.driver(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	rows, err := db.QueryContext(ctx, cfg.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	records, err := rowsToMaps(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to process query results: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("query returned no rows")
	}
	return records[0], nil
}

func rowsToMaps(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
