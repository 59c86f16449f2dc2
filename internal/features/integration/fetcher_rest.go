package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 5 << 20

type RESTFetcher struct {
	httpClient *http.Client
}

func NewRESTFetcher() *RESTFetcher {
	return &RESTFetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *RESTFetcher) Fetch(ctx context.Context, cfg IntegrationConfig) (map[string]interface{}, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("url is required")
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("source responded with status %d", resp.StatusCode)
	}

	var body interface{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	node, ok := lookupPath(body, cfg.DataPath)
	if !ok {
		return nil, fmt.Errorf("data path %q not found in response", cfg.DataPath)
	}

	// Arrays are treated as a feed; the newest entry is last
	if items, isArray := node.([]interface{}); isArray {
		if len(items) == 0 {
			return nil, fmt.Errorf("response contains no records")
		}
		node = items[len(items)-1]
	}

	record, ok := node.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("response record is not an object")
	}
	return record, nil
}
