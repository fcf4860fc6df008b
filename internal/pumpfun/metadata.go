package pumpfun

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"mintwatch/internal/models"
)

const lamportsPerSOL = 1_000_000_000

// coinRecord is the wire shape of the metadata API coin endpoint. Every
// field is optional; defaults are applied here, at the boundary, so
// downstream code never sees partial input.
type coinRecord struct {
	Mint                   string  `json:"mint"`
	Symbol                 string  `json:"symbol"`
	Name                   string  `json:"name"`
	VirtualSolReserves     int64   `json:"virtual_sol_reserves"`
	UsdMarketCap           float64 `json:"usd_market_cap"`
	CreatedTimestamp       int64   `json:"created_timestamp"` // unix millis
	ReplyCount             int     `json:"reply_count"`
	Twitter                string  `json:"twitter"`
	Telegram               string  `json:"telegram"`
	Website                string  `json:"website"`
	KingOfTheHillTimestamp int64   `json:"king_of_the_hill_timestamp"`
	Complete               bool    `json:"complete"`
}

// MetadataClient fetches token telemetry from the pump.fun frontend API.
type MetadataClient struct {
	http *resty.Client
}

// NewMetadataClient creates a metadata client against baseURL.
func NewMetadataClient(baseURL string, timeout time.Duration) *MetadataClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &MetadataClient{http: client}
}

// FetchTelemetry returns the current telemetry for a mint. Missing optional
// fields come back as zero/false; a missing creation timestamp yields age 0.
func (c *MetadataClient) FetchTelemetry(ctx context.Context, mint string) (models.Telemetry, error) {
	var record coinRecord
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&record).
		SetPathParam("mint", mint).
		Get("/coins/{mint}")
	if err != nil {
		return models.Telemetry{}, fmt.Errorf("metadata fetch for %s: %w", mint, err)
	}
	if resp.IsError() {
		return models.Telemetry{}, fmt.Errorf("metadata fetch for %s: status %d", mint, resp.StatusCode())
	}

	now := time.Now()
	var ageSeconds int64
	if record.CreatedTimestamp > 0 {
		created := time.UnixMilli(record.CreatedTimestamp)
		if created.Before(now) {
			ageSeconds = int64(now.Sub(created).Seconds())
		}
	}

	return models.Telemetry{
		Mint:         mint,
		Symbol:       record.Symbol,
		Name:         record.Name,
		SolInCurve:   float64(record.VirtualSolReserves) / lamportsPerSOL,
		UsdMarketCap: record.UsdMarketCap,
		AgeSeconds:   ageSeconds,
		ReplyCount:   record.ReplyCount,
		HasTwitter:   record.Twitter != "",
		HasTelegram:  record.Telegram != "",
		HasWebsite:   record.Website != "",
		Featured:     record.KingOfTheHillTimestamp > 0,
		Complete:     record.Complete,
		FetchedAt:    now,
	}, nil
}
