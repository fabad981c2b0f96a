package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPSource_FetchPrice(t *testing.T) {
	t.Run("valid response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "USD", r.URL.Query().Get("currency"))
			w.Write([]byte(`{"currency":"USD","price":"64231.55"}`))
		}))
		defer server.Close()

		source := NewHTTPSource(server.URL, 2*time.Second)
		price, err := source.FetchPrice(context.Background(), "USD")
		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.RequireFromString("64231.55")))
	})

	t.Run("non-200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		source := NewHTTPSource(server.URL, 2*time.Second)
		_, err := source.FetchPrice(context.Background(), "USD")
		assert.Error(t, err)
	})

	t.Run("zero price rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"currency":"USD","price":"0"}`))
		}))
		defer server.Close()

		source := NewHTTPSource(server.URL, 2*time.Second)
		_, err := source.FetchPrice(context.Background(), "USD")
		assert.Error(t, err)
	})
}

type fakeStore struct {
	values map[string]string
	getErr error
	setErr error
	sets   int
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (f *fakeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[key] = value
	return nil
}

type fakeSource struct {
	price decimal.Decimal
	err   error
	calls int
}

func (f *fakeSource) FetchPrice(ctx context.Context, currency string) (decimal.Decimal, error) {
	f.calls++
	return f.price, f.err
}

func TestCachedOracle_BTCPrice(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("miss populates cache", func(t *testing.T) {
		source := &fakeSource{price: decimal.RequireFromString("60000")}
		store := &fakeStore{}
		oracle := NewCachedOracle(source, store, time.Minute, logger)

		price, err := oracle.BTCPrice(ctx, "USD")
		require.NoError(t, err)
		assert.Equal(t, "60000", price.String())
		assert.Equal(t, 1, source.calls)
		assert.Equal(t, "60000", store.values["rates:btc:USD"])
	})

	t.Run("hit skips source", func(t *testing.T) {
		source := &fakeSource{price: decimal.RequireFromString("60000")}
		store := &fakeStore{values: map[string]string{"rates:btc:USD": "59500.25"}}
		oracle := NewCachedOracle(source, store, time.Minute, logger)

		price, err := oracle.BTCPrice(ctx, "USD")
		require.NoError(t, err)
		assert.Equal(t, "59500.25", price.String())
		assert.Equal(t, 0, source.calls)
	})

	t.Run("cache failure degrades to source", func(t *testing.T) {
		source := &fakeSource{price: decimal.RequireFromString("61000")}
		store := &fakeStore{getErr: errors.New("redis down"), setErr: errors.New("redis down")}
		oracle := NewCachedOracle(source, store, time.Minute, logger)

		price, err := oracle.BTCPrice(ctx, "USD")
		require.NoError(t, err)
		assert.Equal(t, "61000", price.String())
		assert.Equal(t, 1, source.calls)
	})

	t.Run("source failure propagates", func(t *testing.T) {
		source := &fakeSource{err: errors.New("price feed down")}
		oracle := NewCachedOracle(source, &fakeStore{}, time.Minute, logger)

		_, err := oracle.BTCPrice(ctx, "USD")
		assert.Error(t, err)
	})
}
