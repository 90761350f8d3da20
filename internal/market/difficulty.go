package market

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/jananikolasekar/hut8-janani/internal/config"
	"github.com/jananikolasekar/hut8-janani/internal/metrics"
)

// SourceBlockchainInfo is the difficulty source
const SourceBlockchainInfo = "blockchain.info"

// DifficultyFeed supplies the current proof-of-work network difficulty
type DifficultyFeed interface {
	Difficulty(ctx context.Context) (float64, error)
}

// BlockchainInfo reads difficulty from the blockchain.info query API,
// which answers /q/getdifficulty with a bare JSON number
type BlockchainInfo struct {
	http    *feedClient
	baseURL string
}

// NewBlockchainInfo creates a difficulty feed from the pricing config
func NewBlockchainInfo(cfg config.PricingConfig, logger *zap.Logger, m *metrics.Metrics) *BlockchainInfo {
	return &BlockchainInfo{
		http:    newFeedClient("difficulty", cfg.Timeout, cfg.MaxRequestsPerMinute, logger, m),
		baseURL: strings.TrimRight(cfg.DifficultyURL, "/"),
	}
}

// Difficulty returns the current network difficulty. Zero is returned as
// is; negative or non-numeric payloads are malformed.
func (b *BlockchainInfo) Difficulty(ctx context.Context) (float64, error) {
	var raw json.Number
	if err := b.http.getJSON(ctx, SourceBlockchainInfo, b.baseURL+"/q/getdifficulty", &raw); err != nil {
		return 0, err
	}

	difficulty, err := raw.Float64()
	if err != nil {
		return 0, malformed(SourceBlockchainInfo, "invalid difficulty %q", raw.String())
	}
	if math.IsNaN(difficulty) || math.IsInf(difficulty, 0) || difficulty < 0 {
		return 0, malformed(SourceBlockchainInfo, "difficulty must be a non-negative number, got %v", difficulty)
	}
	return difficulty, nil
}
