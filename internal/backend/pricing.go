package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"parking_checkout/internal/domain"
)

var ErrRateNotListed = errors.New("no default rate listed for vehicle type")

const defaultPricingKey = "default"

// DefaultPricing fetches GET /pricing/default.
func (c *Client) DefaultPricing(ctx context.Context) (*domain.DefaultPricing, error) {
	var pricing domain.DefaultPricing
	if err := c.do(ctx, http.MethodGet, "/pricing/default", nil, &pricing); err != nil {
		return nil, err
	}
	return &pricing, nil
}

// LocationRate fetches the rate configured for one vehicle type at a location.
func (c *Client) LocationRate(ctx context.Context, locationID int64, vt domain.VehicleType) (domain.RateQuote, error) {
	var quote domain.RateQuote
	path := fmt.Sprintf("/pricing/%d/%s", locationID, vt)
	if err := c.do(ctx, http.MethodGet, path, nil, &quote); err != nil {
		return domain.RateQuote{}, err
	}
	return quote, nil
}

// PricingCache serves hourly rates out of the default pricing table, keeping
// the table for a short TTL so that every checkout tick does not hit the
// backend.
type PricingCache struct {
	client *Client
	cache  *expirable.LRU[string, *domain.DefaultPricing]
}

func NewPricingCache(client *Client, size int, ttl time.Duration) *PricingCache {
	if size <= 0 {
		size = 16
	}
	return &PricingCache{
		client: client,
		cache:  expirable.NewLRU[string, *domain.DefaultPricing](size, nil, ttl),
	}
}

// HourlyRate implements checkout.RateSource.
func (p *PricingCache) HourlyRate(ctx context.Context, vt domain.VehicleType) (domain.RateQuote, error) {
	pricing, ok := p.cache.Get(defaultPricingKey)
	if !ok {
		fetched, err := p.client.DefaultPricing(ctx)
		if err != nil {
			return domain.RateQuote{}, err
		}
		p.cache.Add(defaultPricingKey, fetched)
		pricing = fetched
	}

	quote, listed := pricing.RateFor(vt)
	if !listed {
		return domain.RateQuote{}, fmt.Errorf("%w: %s", ErrRateNotListed, vt)
	}
	return quote, nil
}

// Invalidate drops the cached table.
func (p *PricingCache) Invalidate() {
	p.cache.Purge()
}
