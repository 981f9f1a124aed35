package quote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stocktracker/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(ClientConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	}, zerolog.Nop())
	return client, srv
}

func TestFetch_NormalizesFullQuote(t *testing.T) {
	var gotQuery map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"function": r.URL.Query().Get("function"),
			"symbol":   r.URL.Query().Get("symbol"),
			"apikey":   r.URL.Query().Get("apikey"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"Global Quote": {
				"01. symbol": "AAPL",
				"02. open": "148.50",
				"03. high": "151.20",
				"04. low": "147.80",
				"05. price": "150.00",
				"06. volume": "75000000",
				"08. previous close": "145.00",
				"09. change": "5.00",
				"10. change percent": "3.4483%"
			}
		}`))
	})

	q, err := client.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "GLOBAL_QUOTE", gotQuery["function"])
	assert.Equal(t, "AAPL", gotQuery["symbol"])
	assert.Equal(t, "test-key", gotQuery["apikey"])

	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, "150", q.Price.String())
	assert.Equal(t, "148.5", q.Open.String())
	assert.Equal(t, "151.2", q.High.String())
	assert.Equal(t, "147.8", q.Low.String())
	assert.Equal(t, "145", q.PreviousClose.String())
	assert.Equal(t, "5", q.Change.String())
	assert.Equal(t, "3.4483", q.ChangePercent.String(), "percent sign must be stripped")
	assert.Equal(t, int64(75000000), q.Volume)
	assert.False(t, q.FetchedAt.IsZero())
}

func TestFetch_MissingFieldsBecomeZero(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote": {"01. symbol": "MSFT", "05. price": "410.25"}}`))
	})

	q, err := client.Fetch(context.Background(), "MSFT")
	require.NoError(t, err)

	assert.Equal(t, "410.25", q.Price.String())
	assert.True(t, q.Open.IsZero())
	assert.True(t, q.ChangePercent.IsZero())
	assert.Zero(t, q.Volume)
}

func TestFetch_MalformedNumbersBecomeZero(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote": {
			"01. symbol": "TSLA",
			"05. price": "not-a-number",
			"06. volume": "lots",
			"10. change percent": "??%"
		}}`))
	})

	q, err := client.Fetch(context.Background(), "TSLA")
	require.NoError(t, err)

	assert.True(t, q.Price.IsZero())
	assert.True(t, q.ChangePercent.IsZero())
	assert.Zero(t, q.Volume)
}

func TestFetch_HTTPErrorWrapsFetchError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	_, err := client.Fetch(context.Background(), "AAPL")
	require.Error(t, err)

	var fe *apperrors.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "AAPL", fe.Symbol)
	assert.Contains(t, fe.Error(), "500")
}

func TestFetch_UpstreamErrorMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Error Message": "Invalid API call"}`))
	})

	_, err := client.Fetch(context.Background(), "NOPE")
	var fe *apperrors.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Error(), "Invalid API call")
}

func TestFetch_ThrottleNoteIsAnError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API rate limit is 5 requests per minute."}`))
	})

	_, err := client.Fetch(context.Background(), "AAPL")
	var fe *apperrors.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Error(), "throttled")
}

func TestFetch_EmptyPayloadIsAnError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote": {}}`))
	})

	_, err := client.Fetch(context.Background(), "AAPL")
	var fe *apperrors.FetchError
	require.True(t, errors.As(err, &fe))
}

func TestFetch_MalformedJSONIsAnError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote": `))
	})

	_, err := client.Fetch(context.Background(), "AAPL")
	var fe *apperrors.FetchError
	require.True(t, errors.As(err, &fe))
}

func TestFetch_TransportErrorWrapsFetchError(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := client.Fetch(context.Background(), "AAPL")
	var fe *apperrors.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "AAPL", fe.Symbol)
}
