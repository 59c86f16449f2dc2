package integration

import (
	"context"
	"fmt"
)

// Fetcher pulls the latest record from an API integration's source.
// The record is a flat or nested map that DataField source paths are resolved against.
type Fetcher interface {
	Fetch(ctx context.Context, cfg IntegrationConfig) (map[string]interface{}, error)
}

// Fetchers dispatches on IntegrationConfig.Kind
type Fetchers map[string]Fetcher

func NewFetchers() Fetchers {
	return Fetchers{
		KindREST:       NewRESTFetcher(),
		KindPostgreSQL: NewSQLFetcher(KindPostgreSQL),
		KindMySQL:      NewSQLFetcher(KindMySQL),
	}
}

func (f Fetchers) For(kind string) (Fetcher, error) {
	if kind == "" {
		kind = KindREST
	}
	fetcher, ok := f[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported integration kind %q", kind)
	}
	return fetcher, nil
}
