package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestLayoutSaverCoalescesBursts(t *testing.T) {
	clock := NewManualClock(start)
	var saves [][]LayoutItem
	saver := NewLayoutSaver(context.Background(), clock, "d1", func(ctx context.Context, id string, layout []LayoutItem) error {
		assert.Equal(t, "d1", id)
		saves = append(saves, layout)
		return nil
	})

	for i := 0; i < 10; i++ {
		saver.Changed([]LayoutItem{{ID: "w1", X: i, Y: 0, W: 4, H: 3}})
		clock.Advance(100 * time.Millisecond)
	}
	assert.Empty(t, saves)

	clock.Advance(LayoutDebounce)
	require.Len(t, saves, 1)
	assert.Equal(t, 9, saves[0][0].X)
	assert.Equal(t, 0, clock.Pending())
}

func TestLayoutSaverSnapshotsInput(t *testing.T) {
	clock := NewManualClock(start)
	var saved []LayoutItem
	saver := NewLayoutSaver(context.Background(), clock, "d1", func(ctx context.Context, id string, layout []LayoutItem) error {
		saved = layout
		return nil
	})

	layout := []LayoutItem{{ID: "w1", X: 1, W: 1, H: 1}}
	saver.Changed(layout)
	layout[0].X = 7
	clock.Advance(LayoutDebounce)

	require.Len(t, saved, 1)
	assert.Equal(t, 1, saved[0].X)
}

func TestLayoutSaverFlushAndDiscard(t *testing.T) {
	clock := NewManualClock(start)
	calls := 0
	var lastErr error
	saver := NewLayoutSaver(context.Background(), clock, "d1", func(ctx context.Context, id string, layout []LayoutItem) error {
		calls++
		return errors.New("offline")
	})
	saver.OnError = func(err error) { lastErr = err }

	saver.Changed([]LayoutItem{{ID: "w1", W: 1, H: 1}})
	saver.Flush()
	assert.Equal(t, 1, calls)
	assert.EqualError(t, lastErr, "offline")

	clock.Advance(time.Second)
	assert.Equal(t, 1, calls)

	saver.Changed([]LayoutItem{{ID: "w1", W: 2, H: 1}})
	saver.Discard()
	clock.Advance(time.Second)
	assert.Equal(t, 1, calls)
}

func TestParseRefreshInterval(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"off", 0, false},
		{"", 0, false},
		{"30s", 30 * time.Second, false},
		{"1m", time.Minute, false},
		{"5m", 5 * time.Minute, false},
		{"15m", 15 * time.Minute, false},
		{"10s", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseRefreshInterval(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestAutoRefresher(t *testing.T) {
	clock := NewManualClock(start)
	polls := 0
	r := NewAutoRefresher(context.Background(), clock, func(ctx context.Context) error {
		polls++
		return nil
	})

	require.NoError(t, r.SetInterval("30s"))
	clock.Advance(95 * time.Second)
	assert.Equal(t, 3, polls)

	require.NoError(t, r.SetInterval("1m"))
	clock.Advance(30 * time.Second)
	assert.Equal(t, 3, polls)
	clock.Advance(30 * time.Second)
	assert.Equal(t, 4, polls)

	require.NoError(t, r.SetInterval("off"))
	clock.Advance(time.Hour)
	assert.Equal(t, 4, polls)

	require.NoError(t, r.SetInterval("5m"))
	r.Stop()
	clock.Advance(time.Hour)
	assert.Equal(t, 4, polls)
	assert.Equal(t, 0, clock.Pending())
}

func TestAutoRefresherKeepsPollingAfterErrors(t *testing.T) {
	clock := NewManualClock(start)
	polls, failures := 0, 0
	r := NewAutoRefresher(context.Background(), clock, func(ctx context.Context) error {
		polls++
		return errors.New("boom")
	})
	r.OnError = func(error) { failures++ }

	require.NoError(t, r.SetInterval("30s"))
	clock.Advance(time.Minute)
	assert.Equal(t, 2, polls)
	assert.Equal(t, 2, failures)
}

func TestImportValuesSendsSequentialChunks(t *testing.T) {
	var mu sync.Mutex
	var sizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/integrations/i1/fields/f1/values", r.URL.Path)
		var body struct {
			Values []Value `json:"values"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		sizes = append(sizes, len(body.Values))
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]int{"recorded": len(body.Values)})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	values := make([]Value, 120)
	for i := range values {
		values[i] = Value{Value: float64(i)}
	}
	var progress []int
	n, err := c.ImportValues(context.Background(), "i1", "f1", values, func(done, total int) {
		assert.Equal(t, 120, total)
		progress = append(progress, done)
	})
	require.NoError(t, err)
	assert.Equal(t, 120, n)
	assert.Equal(t, []int{50, 50, 20}, sizes)
	assert.Equal(t, []int{50, 100, 120}, progress)
}

func TestImportValuesStopsAtFailedChunk(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "value is not a number", "field": "value"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]int{"recorded": 50})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	n, err := c.ImportValues(context.Background(), "i1", "f1", make([]Value, 150), nil)
	assert.Equal(t, 50, n)
	assert.Equal(t, 2, calls)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "value", apiErr.Field)
}

func TestGetSharedErrorCodes(t *testing.T) {
	tests := []struct {
		token  string
		status int
		code   string
	}{
		{"missing", http.StatusNotFound, ShareNotFound},
		{"old", http.StatusGone, ShareExpired},
		{"off", http.StatusGone, ShareInactive},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, tt := range tests {
			if r.URL.Path == "/api/shared/"+tt.token {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "share link", "code": tt.code})
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"type": "kpi", "showTarget": false, "kpi": map[string]interface{}{"name": "Revenue"}})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	for _, tt := range tests {
		_, err := c.GetShared(context.Background(), tt.token)
		var shareErr *ShareError
		require.ErrorAs(t, err, &shareErr, tt.token)
		assert.Equal(t, tt.code, shareErr.Code)
	}

	shared, err := c.GetShared(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "kpi", shared.Type)
	assert.JSONEq(t, `{"name":"Revenue"}`, string(shared.Kpi))
}

func TestOnUnauthorizedFiresOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	fired := 0
	c.OnUnauthorized = func() { fired++ }

	_, err = c.GetDashboardData(context.Background(), "d1", "7d")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, 1, fired)
}

func TestLoginKeepsSessionCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "kpi_session", Value: "abc", Path: "/"})
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"user": map[string]string{"id": "u1", "role": "EDITOR"}})
		default:
			cookie, err := r.Cookie("kpi_session")
			if err != nil || cookie.Value != "abc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	session, err := c.Login(context.Background(), "a@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "EDITOR", session.User.Role)
	require.NoError(t, c.SaveLayout(context.Background(), "d1", []LayoutItem{{ID: "w1", W: 1, H: 1}}))
}
