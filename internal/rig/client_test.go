package rig

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jananikolasekar/hut8-janani/internal/apperror"
)

func minerServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/system/info" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     Reading
		wantCode apperror.Code
	}{
		{
			name:   "nerdqaxe with hourly average",
			status: http.StatusOK,
			body:   `{"deviceModel":"NerdQAxe++","ASICModel":"BM1370","hostname":"nerd-1","hashRate":4850.5,"hashRate_1h":4800,"power":76.5}`,
			want:   Reading{Hostname: "nerd-1", DeviceModel: "NerdQAxe++", HashRateTHs: 4.8, PowerWatts: 76.5},
		},
		{
			name:   "axeos without device model",
			status: http.StatusOK,
			body:   `{"ASICModel":"BM1366","hostname":"bitaxe","hashRate":500,"power":12,"axeOSVersion":"v2.4.0"}`,
			want:   Reading{Hostname: "bitaxe", DeviceModel: "AxeOS (BM1366)", HashRateTHs: 0.5, PowerWatts: 12},
		},
		{
			name:     "no hash rate",
			status:   http.StatusOK,
			body:     `{"hostname":"idle","hashRate":0,"power":10}`,
			wantCode: apperror.CodeUpstreamMalformed,
		},
		{
			name:     "no power",
			status:   http.StatusOK,
			body:     `{"hostname":"idle","hashRate":500}`,
			wantCode: apperror.CodeUpstreamMalformed,
		},
		{
			name:     "bad status",
			status:   http.StatusInternalServerError,
			body:     ``,
			wantCode: apperror.CodeUpstreamUnavailable,
		},
		{
			name:     "not json",
			status:   http.StatusOK,
			body:     `<html></html>`,
			wantCode: apperror.CodeUpstreamMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := minerServer(t, tt.status, tt.body)
			c := NewClient(2 * time.Second)

			// Bare host:port is accepted like an IP address
			got, err := c.Fetch(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
			if tt.wantCode != "" {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				if code := apperror.CodeOf(err); code != tt.wantCode {
					t.Errorf("code = %q, want %q (err: %v)", code, tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("reading = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFetchUnreachable(t *testing.T) {
	srv := minerServer(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	_, err := NewClient(time.Second).Fetch(context.Background(), url)
	if !apperror.IsUpstream(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
