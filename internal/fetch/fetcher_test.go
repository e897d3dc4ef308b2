package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsagg/internal/article"
	"newsagg/internal/extractors/filters"
)

func testClient() *Client {
	return NewClient(ClientOptions{Timeout: 5 * time.Second, UserAgent: "newsagg-test", RetryMax: 0})
}

func gnewsServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

const twoArticles = `{"totalArticles":2,"articles":[
 {"id":"g1","title":"Go 2","description":"d1","url":"https://a.test/1","source":{"name":"A","url":"https://a.test"}},
 {"title":"Rust","description":"d2","url":"https://b.test/2","source":{"name":"B"}}]}`

func TestFetch_JoinsTermsAndPassesFilters(t *testing.T) {
	var got *http.Request
	srv, _ := gnewsServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		fmt.Fprint(w, twoArticles)
	})
	f := New(NewGNewsProvider(testClient(), srv.URL, "key"), Options{})

	articles, err := f.Fetch(t.Context(), []string{"technology", "science"}, &Filters{From: "2026-01-01", SortBy: "publishedAt"})
	require.NoError(t, err)
	require.Len(t, articles, 2)

	q := got.URL.Query()
	assert.Equal(t, "/search", got.URL.Path)
	assert.Equal(t, "technology OR science", q.Get("q"))
	assert.Equal(t, "key", q.Get("apikey"))
	assert.Equal(t, "20", q.Get("max"))
	assert.Equal(t, "en", q.Get("lang"))
	assert.Equal(t, "2026-01-01", q.Get("from"))
	assert.Equal(t, "publishedAt", q.Get("sortby"))
	assert.Empty(t, q.Get("to"))
	assert.Equal(t, "newsagg-test", got.Header.Get("User-Agent"))

	assert.Equal(t, "g1", articles[0].ID)
	assert.Len(t, articles[1].ID, 32, "missing ids are derived from the url")
	assert.Equal(t, "A", articles[0].Source.Name)
}

func TestFetch_SingleTermHasNoOperator(t *testing.T) {
	var q string
	srv, _ := gnewsServer(t, func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query().Get("q")
		fmt.Fprint(w, `{"articles":[]}`)
	})
	f := New(NewGNewsProvider(testClient(), srv.URL, "key"), Options{})

	articles, err := f.Fetch(t.Context(), []string{"golang"}, nil)
	require.NoError(t, err)
	assert.Empty(t, articles)
	assert.NotNil(t, articles)
	assert.Equal(t, "golang", q)
}

func TestFetch_UnconfiguredDoesNoIO(t *testing.T) {
	srv, calls := gnewsServer(t, func(w http.ResponseWriter, r *http.Request) {})
	f := New(NewGNewsProvider(testClient(), srv.URL, ""), Options{})

	assert.False(t, f.Configured())
	_, err := f.Fetch(t.Context(), []string{"x"}, nil)
	assert.Equal(t, KindUnconfigured, KindOf(err))
	assert.Zero(t, calls.Load())

	nilProvider := New(nil, Options{})
	_, err = nilProvider.Fetch(t.Context(), []string{"x"}, nil)
	assert.Equal(t, KindUnconfigured, KindOf(err))
}

func TestFetch_ProviderErrorCarriesDetails(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"message field", http.StatusForbidden, `{"message":"quota exceeded"}`, "quota exceeded"},
		{"errors array", http.StatusBadRequest, `{"errors":["q is required","max too big"]}`, "q is required; max too big"},
		{"errors object", http.StatusUnauthorized, `{"errors":{"apikey":"invalid key"}}`, "invalid key"},
		{"non json", http.StatusInternalServerError, `<html>oops</html>`, "500 Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := gnewsServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			f := New(NewGNewsProvider(testClient(), srv.URL, "key"), Options{})

			_, err := f.Fetch(t.Context(), []string{"x"}, nil)
			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, KindProvider, fe.Kind)
			assert.Equal(t, tt.status, fe.Status)
			assert.Equal(t, tt.want, fe.Details)
		})
	}
}

func TestFetch_MalformedBodyIsProviderError(t *testing.T) {
	srv, _ := gnewsServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"articles": [`)
	})
	f := New(NewGNewsProvider(testClient(), srv.URL, "key"), Options{})

	_, err := f.Fetch(t.Context(), []string{"x"}, nil)
	assert.Equal(t, KindProvider, KindOf(err))
}

func TestFetch_TransportErrorIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := New(NewGNewsProvider(testClient(), url, "key"), Options{})
	_, err := f.Fetch(t.Context(), []string{"x"}, nil)
	assert.Equal(t, KindProvider, KindOf(err))
}

func TestFetch_Timeout(t *testing.T) {
	srv, _ := gnewsServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	f := New(NewGNewsProvider(testClient(), srv.URL, "key"), Options{Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := f.Fetch(t.Context(), []string{"x"}, nil)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetch_RetriesServerErrorsThenSucceeds(t *testing.T) {
	var n atomic.Int32
	srv, _ := gnewsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, twoArticles)
	})
	client := NewClient(ClientOptions{Timeout: time.Second, RetryMax: 1, RetryWaitMin: time.Millisecond, RetryWaitMax: 5 * time.Millisecond})
	f := New(NewGNewsProvider(client, srv.URL, "key"), Options{})

	articles, err := f.Fetch(t.Context(), []string{"x"}, nil)
	require.NoError(t, err)
	assert.Len(t, articles, 2)
	assert.EqualValues(t, 2, n.Load())
}

func TestFetch_RetryAfterPastDeadlineIsProviderError(t *testing.T) {
	srv, calls := gnewsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"errors":["You have reached your request limit"]}`)
	})
	client := NewClient(ClientOptions{Timeout: time.Second, RetryMax: 1})
	f := New(NewGNewsProvider(client, srv.URL, "key"), Options{Timeout: 500 * time.Millisecond})

	start := time.Now()
	_, err := f.Fetch(t.Context(), []string{"x"}, nil)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindProvider, fe.Kind)
	assert.Equal(t, http.StatusTooManyRequests, fe.Status)
	assert.Equal(t, "You have reached your request limit", fe.Details)
	assert.EqualValues(t, 1, calls.Load())
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestFetch_RetryAfterIsCappedAtRetryWaitMax(t *testing.T) {
	var n atomic.Int32
	srv, _ := gnewsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, twoArticles)
	})
	client := NewClient(ClientOptions{Timeout: time.Second, RetryMax: 1, RetryWaitMin: time.Millisecond, RetryWaitMax: 10 * time.Millisecond})
	f := New(NewGNewsProvider(client, srv.URL, "key"), Options{Timeout: 2 * time.Second})

	start := time.Now()
	articles, err := f.Fetch(t.Context(), []string{"x"}, nil)
	require.NoError(t, err)
	assert.Len(t, articles, 2)
	assert.EqualValues(t, 2, n.Load())
	assert.Less(t, time.Since(start), time.Second)
}

func TestCappedBackoff(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": {"120"}}}
	assert.Equal(t, 3*time.Second, cappedBackoff(time.Second, 3*time.Second, 0, resp))
	assert.Equal(t, time.Second, cappedBackoff(time.Second, 3*time.Second, 0, nil))
}

func TestFetch_Blocklist(t *testing.T) {
	srv, _ := gnewsServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, twoArticles)
	})
	f := New(NewGNewsProvider(testClient(), srv.URL, "key"), Options{
		Blocklist: filters.ParseBlocklist([]string{"b.test"}),
	})

	articles, err := f.Fetch(t.Context(), []string{"x"}, nil)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "https://a.test/1", articles[0].URL)
}

type stubProvider struct {
	err error
}

func (s stubProvider) Name() string     { return "stub" }
func (s stubProvider) Configured() bool { return true }
func (s stubProvider) Search(context.Context, string, Filters) ([]article.Article, error) {
	return nil, s.err
}

func TestClassify(t *testing.T) {
	f := New(stubProvider{err: fmt.Errorf("wrapped: %w", context.DeadlineExceeded)}, Options{})
	_, err := f.Fetch(t.Context(), []string{"x"}, nil)
	assert.Equal(t, KindTimeout, KindOf(err))

	f = New(stubProvider{err: errors.New("connection reset")}, Options{})
	_, err = f.Fetch(t.Context(), []string{"x"}, nil)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindProvider, fe.Kind)
	assert.Equal(t, "connection reset", fe.Details)

	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, "timeout", KindTimeout.String())
}
