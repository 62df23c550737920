package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultRatesBaseURL is the Banco Central open data host serving PTAX
// quotes.
const DefaultRatesBaseURL = "https://olinda.bcb.gov.br"

// rateLookbackDays is how far back the service walks when a date has no
// quote (weekends, holidays).
const rateLookbackDays = 5

// fallbackRates keeps conversion working when the quote service is
// unreachable.
var fallbackRates = map[string]string{
	"USD": "5.00",
	"EUR": "5.50",
	"GBP": "6.30",
}

// RateService fetches BRL exchange rates from the PTAX service, caching each
// (currency, date) pair in memory.
type RateService struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger

	mu    sync.RWMutex
	cache map[string]decimal.Decimal
}

func NewRateService(baseURL string, log *zap.Logger) *RateService {
	if baseURL == "" {
		baseURL = DefaultRatesBaseURL
	}
	return &RateService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
		cache:   make(map[string]decimal.Decimal),
	}
}

type ptaxResponse struct {
	Value []struct {
		CotacaoCompra float64 `json:"cotacaoCompra"`
		CotacaoVenda  float64 `json:"cotacaoVenda"`
	} `json:"value"`
}

func rateCacheKey(currency string, day time.Time) string {
	return currency + "|" + day.Format("2006-01-02")
}

// Rate returns how many BRL one unit of the currency was worth on the given
// date, walking back up to five days for the nearest published quote. When
// the service cannot be reached the static fallback table answers.
func (s *RateService) Rate(ctx context.Context, currency string, day time.Time) (decimal.Decimal, error) {
	if currency == "BRL" || currency == "" {
		return decimal.NewFromInt(1), nil
	}

	key := rateCacheKey(currency, day)
	s.mu.RLock()
	if cached, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	for back := 0; back <= rateLookbackDays; back++ {
		quote := day.AddDate(0, 0, -back)
		rate, err := s.fetchQuote(ctx, currency, quote)
		if err != nil {
			s.log.Warn("rate lookup failed",
				zap.String("currency", currency),
				zap.String("date", quote.Format("2006-01-02")),
				zap.Error(err))
			break
		}
		if rate != nil {
			s.mu.Lock()
			s.cache[key] = *rate
			s.mu.Unlock()
			return *rate, nil
		}
	}

	if fb, ok := fallbackRates[currency]; ok {
		return decimal.RequireFromString(fb), nil
	}
	return decimal.Zero, fmt.Errorf("no rate available for %s", currency)
}

// fetchQuote asks PTAX for one currency on one day. A day without quotes
// returns (nil, nil).
func (s *RateService) fetchQuote(ctx context.Context, currency string, day time.Time) (*decimal.Decimal, error) {
	endpoint := fmt.Sprintf(
		"%s/olinda/servico/PTAX/versao/v1/odata/CotacaoMoedaDia(moeda=@moeda,dataCotacao=@data)?@moeda=%s&@data=%s&$format=json",
		s.baseURL,
		url.QueryEscape("'"+currency+"'"),
		url.QueryEscape("'"+day.Format("01-02-2006")+"'"),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ptax returned %d", resp.StatusCode)
	}

	var body ptaxResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode ptax response: %w", err)
	}
	if len(body.Value) == 0 {
		return nil, nil
	}
	last := body.Value[len(body.Value)-1]
	rate := decimal.NewFromFloat(last.CotacaoVenda)
	return &rate, nil
}

// ConvertToBRL converts an amount in a foreign currency to BRL using the
// rate of the given day.
func (s *RateService) ConvertToBRL(ctx context.Context, amount decimal.Decimal, currency string, day time.Time) (decimal.Decimal, error) {
	rate, err := s.Rate(ctx, currency, day)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate).Round(2), nil
}
