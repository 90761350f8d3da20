// Package rig reads live rig parameters from AxeOS and NerdQAxe miners.
package rig

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jananikolasekar/hut8-janani/internal/apperror"
)

// SystemInfo is the subset of /api/system/info the calculator needs.
// NerdQAxe and AxeOS/Zyber firmware both report hash rate in GH/s.
type SystemInfo struct {
	DeviceModel  string  `json:"deviceModel"`
	ASICModel    string  `json:"ASICModel"`
	Hostname     string  `json:"hostname"`
	HashRate     float64 `json:"hashRate"`
	HashRate1h   float64 `json:"hashRate_1h"`
	Power        float64 `json:"power"`
	AxeOSVersion string  `json:"axeOSVersion"`
}

// Reading is a miner's hash rate and power draw in calculator units
type Reading struct {
	Hostname    string  `json:"hostname"`
	DeviceModel string  `json:"deviceModel"`
	HashRateTHs float64 `json:"hashRate"`
	PowerWatts  float64 `json:"power"`
}

// Client handles communication with miners
type Client struct {
	httpClient *http.Client
}

// NewClient creates a Client with the given timeout
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch reads the miner at host (ip, ip:port or base URL)
func (c *Client) Fetch(ctx context.Context, host string) (Reading, error) {
	info, err := c.FetchInfo(ctx, host)
	if err != nil {
		return Reading{}, err
	}
	return ToReading(info)
}

// FetchInfo fetches miner info from the REST API
func (c *Client) FetchInfo(ctx context.Context, host string) (*SystemInfo, error) {
	base := host
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	url := strings.TrimRight(base, "/") + "/api/system/info"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperror.Input(apperror.CodeInvalidInput, "invalid miner address %q", host)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Upstream(apperror.CodeUpstreamUnavailable, err, "failed to fetch miner info from %s", host)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Upstream(apperror.CodeUpstreamUnavailable, nil, "miner %s returned status %d", host, resp.StatusCode)
	}

	var info SystemInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, apperror.Upstream(apperror.CodeUpstreamMalformed, err, "failed to decode miner %s response", host)
	}

	return &info, nil
}

// ToReading converts an API response to calculator units. The 1h average
// is preferred over the instantaneous hash rate when the firmware has one.
func ToReading(info *SystemInfo) (Reading, error) {
	hashRate := info.HashRate1h
	if hashRate <= 0 {
		hashRate = info.HashRate
	}
	if hashRate <= 0 {
		return Reading{}, apperror.Upstream(apperror.CodeUpstreamMalformed, nil, "miner %s reports no hash rate", info.Hostname)
	}
	if info.Power <= 0 {
		return Reading{}, apperror.Upstream(apperror.CodeUpstreamMalformed, nil, "miner %s reports no power draw", info.Hostname)
	}

	// Device model: AxeOS doesn't send "deviceModel", build from ASICModel
	deviceModel := info.DeviceModel
	if deviceModel == "" && info.AxeOSVersion != "" {
		deviceModel = fmt.Sprintf("AxeOS (%s)", info.ASICModel)
	}

	return Reading{
		Hostname:    info.Hostname,
		DeviceModel: deviceModel,
		HashRateTHs: hashRate / 1000,
		PowerWatts:  info.Power,
	}, nil
}
