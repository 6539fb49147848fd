package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/ang2spot/internal/shared"
	tu "github.com/desertthunder/ang2spot/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com/", customClient)

			if srv.baseURL != "http://example.com" {
				t.Errorf("expected trailing slash trimmed, got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewAPIService("", nil)

			if srv.baseURL != anghamiBaseURL {
				t.Errorf("expected default baseURL %s, got %s", anghamiBaseURL, srv.baseURL)
			}
			if srv.httpClient.Timeout == 0 {
				t.Error("expected default client to have a timeout")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/playlist/1" {
					t.Errorf("expected path '/playlist/1', got %s", r.URL.Path)
				}
				if r.Header.Get("User-Agent") == "" {
					t.Error("expected a browser user agent")
				}
				w.Header().Set("X-Test", "yes")
				w.Write([]byte("<html></html>"))
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			srv.SetRateLimit(0)

			resp, err := srv.Get(context.Background(), "playlist/1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if string(resp.Body) != "<html></html>" || resp.Headers.Get("X-Test") != "yes" {
				t.Errorf("unexpected response %+v", resp)
			}
		})

		t.Run("Browser Headers Are Sent", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Cookie") != "session=abc" {
					t.Errorf("expected imported cookie, got %q", r.Header.Get("Cookie"))
				}
				if r.Header.Get("X-Custom") != "1" {
					t.Errorf("expected imported header, got %q", r.Header.Get("X-Custom"))
				}
			}))
			defer server.Close()

			srv := NewAnghamiAPIWith(server.URL, &shared.BrowserHeaders{
				Headers: map[string]string{"X-Custom": "1"},
				Cookie:  "session=abc",
			})
			srv.SetRateLimit(0)

			if _, err := srv.Get(context.Background(), "/"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})

		t.Run("Not Found", func(t *testing.T) {
			server := httptest.NewServer(http.NotFoundHandler())
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			srv.SetRateLimit(0)

			if _, err := srv.Get(context.Background(), "/profile/0"); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})

		t.Run("Server Error", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			srv.SetRateLimit(0)

			if _, err := srv.Get(context.Background(), "/"); !errors.Is(err, shared.ErrExtraction) {
				t.Errorf("expected ErrExtraction, got %v", err)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed"))}
			srv := NewAPIService("http://example.com", client)
			srv.SetRateLimit(0)

			if _, err := srv.Get(context.Background(), "/"); !errors.Is(err, shared.ErrExtraction) {
				t.Errorf("expected ErrExtraction, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(&http.Response{
				StatusCode: http.StatusOK,
				Body:       &tu.FCloser{},
			}, nil)}
			srv := NewAPIService("http://example.com", client)
			srv.SetRateLimit(0)

			if _, err := srv.Get(context.Background(), "/"); !errors.Is(err, shared.ErrExtraction) {
				t.Errorf("expected ErrExtraction, got %v", err)
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := srv.Get(ctx, "/"); !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		})

		t.Run("Absolute URLs Are Used As Is", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)
			if got := srv.resolve("https://other.test/x"); got != "https://other.test/x" {
				t.Errorf("unexpected url %s", got)
			}
		})
	})
}
