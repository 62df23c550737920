package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRateService_BRLIsAlwaysOne(t *testing.T) {
	s := NewRateService("http://unused.invalid", zap.NewNop())
	rate, err := s.Rate(context.Background(), "BRL", time.Now())
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestRateService_LookbackFindsPreviousQuote(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n < 3 {
			// First two days (a weekend, say) have no quotes.
			_, _ = w.Write([]byte(`{"value":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"value":[{"cotacaoCompra":5.10,"cotacaoVenda":5.12},{"cotacaoCompra":5.15,"cotacaoVenda":5.17}]}`))
	}))
	defer srv.Close()

	s := NewRateService(srv.URL, zap.NewNop())
	rate, err := s.Rate(context.Background(), "USD", date(2024, time.June, 9))
	require.NoError(t, err)
	// The last quote of the day wins.
	assert.True(t, rate.Equal(decimal.RequireFromString("5.17")), rate.String())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRateService_CachesPerCurrencyAndDate(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"value":[{"cotacaoCompra":5.00,"cotacaoVenda":5.05}]}`))
	}))
	defer srv.Close()

	s := NewRateService(srv.URL, zap.NewNop())
	day := date(2024, time.June, 10)
	for i := 0; i < 3; i++ {
		_, err := s.Rate(context.Background(), "USD", day)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRateService_FallbackWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewRateService(srv.URL, zap.NewNop())
	rate, err := s.Rate(context.Background(), "EUR", date(2024, time.June, 10))
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("5.50")))

	_, err = s.Rate(context.Background(), "JPY", date(2024, time.June, 10))
	assert.Error(t, err)
}

func TestRateService_QueryShape(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"value":[{"cotacaoVenda":5.00}]}`))
	}))
	defer srv.Close()

	s := NewRateService(srv.URL, zap.NewNop())
	_, err := s.Rate(context.Background(), "USD", date(2024, time.January, 31))
	require.NoError(t, err)
	assert.True(t, strings.Contains(gotQuery, "USD"), gotQuery)
	assert.True(t, strings.Contains(gotQuery, "01-31-2024"), gotQuery)
}

func TestConvertToBRL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"value":[{"cotacaoVenda":5.25}]}`))
	}))
	defer srv.Close()

	s := NewRateService(srv.URL, zap.NewNop())
	got, err := s.ConvertToBRL(context.Background(), decimal.RequireFromString("10.00"), "USD", date(2024, time.June, 10))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("52.50")), got.String())
}
