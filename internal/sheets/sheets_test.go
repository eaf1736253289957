package sheets

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thermhub/thermhub/internal/schedule"
)

const validFeed = `{"feed":{"entry":[
{"gsx$day":{"$t":"Monday"},"gsx$time":{"$t":"7:00"},"gsx$temperature":{"$t":"70"}},
{"gsx$day":{"$t":"Monday"},"gsx$time":{"$t":"22:00"},"gsx$temperature":{"$t":"65"}}
]}}`

func TestClient_Fetch(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    []schedule.RawEntry
		wantErr error
	}{
		{
			name: "valid",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/feeds/list/sheet-1/od6/public/values", r.URL.Path)
				assert.Equal(t, "json", r.URL.Query().Get("alt"))
				_, _ = w.Write([]byte(validFeed))
			},
			want: []schedule.RawEntry{
				{Day: "Monday", Time: "7:00", Temperature: "70"},
				{Day: "Monday", Time: "22:00", Temperature: "65"},
			},
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) { http.Error(w, "boom", http.StatusInternalServerError) },
			wantErr: ErrFetchFailed,
		},
		{
			name:    "not json",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("<html>")) },
			wantErr: ErrParseFailed,
		},
		{
			name:    "missing feed",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"status":"ok"}`)) },
			wantErr: ErrParseFailed,
		},
		{
			name: "missing column",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"feed":{"entry":[{"gsx$day":{"$t":"Monday"},"gsx$time":{"$t":"7:00"}}]}}`))
			},
			wantErr: ErrParseFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := New(slog.Default())
			c.BaseURL = server.URL

			entries, err := c.Fetch(t.Context(), "sheet-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, entries)
		})
	}
}

func TestClient_Fetch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	c := New(slog.Default())
	c.BaseURL = server.URL

	_, err := c.Fetch(t.Context(), "sheet-1")
	assert.ErrorIs(t, err, ErrFetchFailed)
}
