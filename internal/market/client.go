package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jananikolasekar/hut8-janani/internal/apperror"
	"github.com/jananikolasekar/hut8-janani/internal/metrics"
)

// maxBodyBytes bounds how much of a feed response is read
const maxBodyBytes = 1 << 20

// feedClient performs rate limited, time bounded JSON GETs against one feed
type feedClient struct {
	feed    string
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func newFeedClient(feed string, timeout time.Duration, requestsPerMinute int, logger *zap.Logger, m *metrics.Metrics) *feedClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &feedClient{
		feed: feed,
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
		limiter: newLimiter(requestsPerMinute),
		logger:  logger.With(zap.String("feed", feed)),
		metrics: m,
	}
}

// newLimiter allows requestsPerMinute with a burst of a tenth of that.
// Zero disables limiting.
func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
}

// getJSON fetches url and decodes the body into out. Every failure is
// returned as an upstream error naming the source.
func (c *feedClient) getJSON(ctx context.Context, source, url string, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveFeed(c.feed, source, start, err)
		if err != nil {
			c.logger.Warn("feed request failed",
				zap.String("source", source),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
		} else {
			c.logger.Debug("feed request ok",
				zap.String("source", source),
				zap.Duration("elapsed", time.Since(start)))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return apperror.Upstream(apperror.CodeUpstreamTimeout, err, "%s %s feed rate limited", source, c.feed)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperror.Upstream(apperror.CodeUpstreamUnavailable, err, "%s %s feed: bad request", source, c.feed)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return apperror.Upstream(apperror.CodeUpstreamTimeout, err, "%s %s feed timed out", source, c.feed)
		}
		return apperror.Upstream(apperror.CodeUpstreamUnavailable, err, "failed to fetch from %s", source)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperror.Upstream(apperror.CodeUpstreamUnavailable, nil, "%s returned status %d", source, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return apperror.Upstream(apperror.CodeUpstreamTimeout, err, "%s %s feed timed out", source, c.feed)
		}
		return apperror.Upstream(apperror.CodeUpstreamUnavailable, err, "failed to read %s response", source)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return apperror.Upstream(apperror.CodeUpstreamMalformed, err, "failed to decode %s response", source)
	}

	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// malformed reports a decoded payload that does not carry a usable value
func malformed(source, format string, args ...interface{}) error {
	return apperror.Upstream(apperror.CodeUpstreamMalformed, nil, "%s: %s", source, fmt.Sprintf(format, args...))
}
