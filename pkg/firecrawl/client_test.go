package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-api-key", WithBaseURL(srv.URL))
	return srv, c
}

func TestScrape(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantTitle  string
		wantErr    string
		wantStatus int
	}{
		{
			name: "happy path",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/scrape", r.URL.Path)
				assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var req ScrapeRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "https://www.11st.co.kr/products/1", req.URL)
				assert.Equal(t, []string{"markdown"}, req.Formats)
				assert.True(t, req.OnlyMainContent)

				_ = json.NewEncoder(w).Encode(ScrapeResponse{
					Success: true,
					Data: PageData{
						URL:      "https://www.11st.co.kr/products/1",
						Markdown: "# 에어팟 프로 2\n329,000원",
						Metadata: PageMetadata{Title: "에어팟 프로 2 - 11번가", StatusCode: 200},
					},
				})
			},
			wantTitle: "에어팟 프로 2 - 11번가",
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limited"}`))
			},
			wantErr:    "429",
			wantStatus: 429,
		},
		{
			name: "bad gateway",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr:    "502",
			wantStatus: 502,
		},
		{
			name: "unsuccessful body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"success":false,"error":"blocked by robots.txt"}`))
			},
			wantErr: "blocked by robots.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newTestServer(t, tt.handler)
			resp, err := c.Scrape(context.Background(), ScrapeRequest{
				URL:             "https://www.11st.co.kr/products/1",
				OnlyMainContent: true,
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				if tt.wantStatus != 0 {
					var apiErr *APIError
					require.ErrorAs(t, err, &apiErr)
					assert.Equal(t, tt.wantStatus, apiErr.HTTPStatusCode())
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, resp.Data.PageTitle())
			assert.True(t, resp.Success)
		})
	}
}

func TestPageData_PageTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "top", PageData{Title: "top", Metadata: PageMetadata{Title: "meta"}}.PageTitle())
	assert.Equal(t, "meta", PageData{Metadata: PageMetadata{Title: "meta"}}.PageTitle())
}

func TestContextCancellation(t *testing.T) {
	_, c := newTestServer(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("request should have been cancelled")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Scrape(ctx, ScrapeRequest{URL: "https://example.com"})
	require.Error(t, err)
}

func TestAPIError_Error(t *testing.T) {
	t.Parallel()
	e := &APIError{StatusCode: 429, Body: `{"error":"rate limited"}`}
	assert.Equal(t, `firecrawl: HTTP 429: {"error":"rate limited"}`, e.Error())
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()
	customClient := &http.Client{}
	c := NewClient("key", WithHTTPClient(customClient))
	hc := c.(*httpClient)
	assert.Equal(t, customClient, hc.http)
}

func TestMalformedJSON(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
