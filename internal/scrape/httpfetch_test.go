package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetReturnsPageOnSuccess(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer ts.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{RequestTimeout: 5 * time.Second}, nil)
	store := NewSessionStore([]string{"test-agent"}, 0, nil)

	page, err := f.Get(context.Background(), ts.URL, store.Get("127.0.0.1"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, string(page.Body), "hello")
	require.Positive(t, page.Duration)
}

func TestGetSendsSessionIdentity(t *testing.T) {
	t.Parallel()

	var gotUA, gotLang string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{}, nil)
	store := NewSessionStore([]string{"identity-agent"}, 0, nil)

	_, err := f.Get(context.Background(), ts.URL, store.Get("127.0.0.1"))
	require.NoError(t, err)
	require.Equal(t, "identity-agent", gotUA)
	require.NotEmpty(t, gotLang)
}

func TestGetCarriesStatusOnHTTPError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer ts.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{}, nil)
	store := NewSessionStore(nil, 0, nil)

	page, err := f.Get(context.Background(), ts.URL, store.Get("127.0.0.1"))
	// The status is enough for classification; no error needed.
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, page.StatusCode)
}

func TestGetNotFoundCarriesStatusAndBody(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html>gone away</html>"))
	}))
	defer ts.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{}, nil)
	store := NewSessionStore(nil, 0, nil)

	page, err := f.Get(context.Background(), ts.URL, store.Get("127.0.0.1"))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, page.StatusCode)
	require.Contains(t, string(page.Body), "gone away")
}

func TestGetConnectionRefused(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := ts.URL
	ts.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{RequestTimeout: 2 * time.Second}, nil)
	store := NewSessionStore(nil, 0, nil)

	_, err := f.Get(context.Background(), target, store.Get("127.0.0.1"))
	require.Error(t, err)
}

func TestGetCookiesPersistAcrossRequests(t *testing.T) {
	t.Parallel()

	var sawCookie bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err == nil && c.Value == "abc" {
			sawCookie = true
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{}, nil)
	store := NewSessionStore(nil, 0, nil)

	sess := store.Get("127.0.0.1")
	_, err := f.Get(context.Background(), ts.URL, sess)
	require.NoError(t, err)
	_, err = f.Get(context.Background(), ts.URL, store.Get("127.0.0.1"))
	require.NoError(t, err)
	require.True(t, sawCookie, "second request should replay the cookie from the shared jar")
}
