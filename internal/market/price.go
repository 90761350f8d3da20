package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jananikolasekar/hut8-janani/internal/apperror"
	"github.com/jananikolasekar/hut8-janani/internal/config"
	"github.com/jananikolasekar/hut8-janani/internal/metrics"
)

// Price sources
const (
	SourceBinance   = "binance"
	SourceCoinGecko = "coingecko"
	SourceCoinDesk  = "coindesk"
)

const (
	binanceSymbol = "BTCUSDT"
	coinGeckoID   = "bitcoin"
)

// PriceFeed supplies the current USD spot price of the mined asset
type PriceFeed interface {
	Price(ctx context.Context) (float64, error)
}

// PriceService fetches the BTC price from Binance, CoinGecko or CoinDesk,
// trying each configured source once in order
type PriceService struct {
	http         *feedClient
	sources      []string
	binanceURL   string
	coinGeckoURL string
	coinDeskURL  string
}

// BinanceResponse represents the Binance ticker response
type BinanceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// coinDeskResponse is the subset of the CoinDesk BPI payload we read
type coinDeskResponse struct {
	BPI struct {
		USD *struct {
			RateFloat *float64 `json:"rate_float"`
		} `json:"USD"`
	} `json:"bpi"`
}

// NewPriceService creates a price service from the pricing config
func NewPriceService(cfg config.PricingConfig, logger *zap.Logger, m *metrics.Metrics) *PriceService {
	sources := make([]string, len(cfg.Sources))
	copy(sources, cfg.Sources)

	return &PriceService{
		http:         newFeedClient("price", cfg.Timeout, cfg.MaxRequestsPerMinute, logger, m),
		sources:      sources,
		binanceURL:   strings.TrimRight(cfg.BinanceURL, "/"),
		coinGeckoURL: strings.TrimRight(cfg.CoinGeckoURL, "/"),
		coinDeskURL:  cfg.CoinDeskURL,
	}
}

// Price returns the first price a source delivers. When every source
// fails the error joins all source failures.
func (p *PriceService) Price(ctx context.Context) (float64, error) {
	var errs []error
	for _, source := range p.sources {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		price, err := p.fetch(ctx, source)
		if err == nil {
			return price, nil
		}
		errs = append(errs, err)
	}

	code := apperror.CodeUpstreamUnavailable
	if len(errs) > 0 {
		if c := apperror.CodeOf(errs[len(errs)-1]); c != "" {
			code = c
		} else if errors.Is(errs[len(errs)-1], context.DeadlineExceeded) {
			code = apperror.CodeUpstreamTimeout
		}
	}
	return 0, apperror.Upstream(code, errors.Join(errs...), "price unavailable from %s", strings.Join(p.sources, ", "))
}

func (p *PriceService) fetch(ctx context.Context, source string) (float64, error) {
	switch source {
	case SourceBinance:
		return p.fetchFromBinance(ctx)
	case SourceCoinGecko:
		return p.fetchFromCoinGecko(ctx)
	case SourceCoinDesk:
		return p.fetchFromCoinDesk(ctx)
	default:
		return 0, fmt.Errorf("unknown price source %q", source)
	}
}

// fetchFromBinance fetches price from the Binance ticker
func (p *PriceService) fetchFromBinance(ctx context.Context) (float64, error) {
	u := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", p.binanceURL, url.QueryEscape(binanceSymbol))

	var data BinanceResponse
	if err := p.http.getJSON(ctx, SourceBinance, u, &data); err != nil {
		return 0, err
	}

	price, err := strconv.ParseFloat(data.Price, 64)
	if err != nil {
		return 0, malformed(SourceBinance, "invalid price %q", data.Price)
	}
	return validPrice(SourceBinance, price)
}

// fetchFromCoinGecko fetches price from the CoinGecko simple price API
func (p *PriceService) fetchFromCoinGecko(ctx context.Context) (float64, error) {
	u := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=usd", p.coinGeckoURL, url.QueryEscape(coinGeckoID))

	var data map[string]map[string]float64
	if err := p.http.getJSON(ctx, SourceCoinGecko, u, &data); err != nil {
		return 0, err
	}

	if coinData, ok := data[coinGeckoID]; ok {
		if price, ok := coinData["usd"]; ok {
			return validPrice(SourceCoinGecko, price)
		}
	}
	return 0, malformed(SourceCoinGecko, "price not found in response")
}

// fetchFromCoinDesk fetches price from the CoinDesk BPI endpoint
func (p *PriceService) fetchFromCoinDesk(ctx context.Context) (float64, error) {
	var data coinDeskResponse
	if err := p.http.getJSON(ctx, SourceCoinDesk, p.coinDeskURL, &data); err != nil {
		return 0, err
	}

	if data.BPI.USD == nil || data.BPI.USD.RateFloat == nil {
		return 0, malformed(SourceCoinDesk, "bpi.USD.rate_float not found in response")
	}
	return validPrice(SourceCoinDesk, *data.BPI.USD.RateFloat)
}

func validPrice(source string, price float64) (float64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, malformed(source, "price must be a positive number, got %v", price)
	}
	return price, nil
}
