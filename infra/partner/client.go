// Package partner fetches safe-wait amenity offers from the partner
// catalogue service. Offers are additive decoration on a plan; every
// failure mode degrades to an empty list.
package partner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/usermihir/Agentic-EV/core/model"
	"github.com/usermihir/Agentic-EV/infra/logger"
)

// Config holds the catalogue endpoint parameters.
type Config struct {
	BaseURL   string `json:"base_url" yaml:"base_url"`
	APIKey    string `json:"api_key" yaml:"api_key"`
	TimeoutMS int    `json:"timeout_ms" yaml:"timeout_ms"`
	MaxOffers int    `json:"max_offers" yaml:"max_offers"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 750
	}
	if c.MaxOffers == 0 {
		c.MaxOffers = 3
	}
}

// Client queries the partner catalogue over HTTP.
type Client struct {
	cfg    Config
	client *http.Client
	log    logger.Logger
}

// NewClient builds a catalogue client.
func NewClient(cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
		log:    logger.New("partner"),
	}
}

type offersResponse struct {
	Offers []model.PartnerOffer `json:"offers"`
}

// NearbyPartners returns the amenities near the given station. The
// caller's context bounds the request.
func (c *Client) NearbyPartners(ctx context.Context, stationID string) ([]model.PartnerOffer, error) {
	url := fmt.Sprintf("%s/v1/stations/%s/offers", c.cfg.BaseURL, stationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var out offersResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Offers) > c.cfg.MaxOffers {
		out.Offers = out.Offers[:c.cfg.MaxOffers]
	}
	return out.Offers, nil
}
