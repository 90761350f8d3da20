// Package market fetches the live inputs of a profitability calculation:
// the spot price and the network difficulty.
package market

import (
	"context"

	"github.com/jananikolasekar/hut8-janani/internal/profitability"
)

// Source supplies a market snapshot
type Source interface {
	Snapshot(ctx context.Context) (profitability.MarketSnapshot, error)
}

// Service combines a price feed and a difficulty feed
type Service struct {
	price      PriceFeed
	difficulty DifficultyFeed
}

// NewService creates a Service
func NewService(price PriceFeed, difficulty DifficultyFeed) *Service {
	return &Service{price: price, difficulty: difficulty}
}

// Snapshot fetches price then difficulty. Nothing is cached; each call
// hits both feeds.
func (s *Service) Snapshot(ctx context.Context) (profitability.MarketSnapshot, error) {
	price, err := s.price.Price(ctx)
	if err != nil {
		return profitability.MarketSnapshot{}, err
	}

	difficulty, err := s.difficulty.Difficulty(ctx)
	if err != nil {
		return profitability.MarketSnapshot{}, err
	}

	return profitability.MarketSnapshot{
		PriceUSD:          price,
		NetworkDifficulty: difficulty,
	}, nil
}

// FixedPrice is a PriceFeed that always returns the same value
type FixedPrice float64

// Price returns the fixed value
func (p FixedPrice) Price(ctx context.Context) (float64, error) {
	return float64(p), nil
}

// FixedDifficulty is a DifficultyFeed that always returns the same value
type FixedDifficulty float64

// Difficulty returns the fixed value
func (d FixedDifficulty) Difficulty(ctx context.Context) (float64, error) {
	return float64(d), nil
}
