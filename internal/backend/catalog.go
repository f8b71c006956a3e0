package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"parking_checkout/internal/domain"
)

func (c *Client) Locations(ctx context.Context) ([]domain.Location, error) {
	var locations []domain.Location
	if err := c.do(ctx, http.MethodGet, "/map/locations", nil, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

func (c *Client) NearbyLocations(ctx context.Context, lat, lon, radius float64) (*domain.NearbyLocations, error) {
	if radius <= 0 {
		radius = 10
	}
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(radius, 'f', -1, 64))

	var nearby domain.NearbyLocations
	if err := c.do(ctx, http.MethodGet, "/map/locations/nearby?"+q.Encode(), nil, &nearby); err != nil {
		return nil, err
	}
	return &nearby, nil
}

func (c *Client) Location(ctx context.Context, id int64) (*domain.Location, error) {
	var location domain.Location
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/map/location/%d", id), nil, &location); err != nil {
		return nil, err
	}
	return &location, nil
}

func (c *Client) SlotLayout(ctx context.Context, locationID int64) (*domain.SlotLayout, error) {
	var layout domain.SlotLayout
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/map/location/%d/slots", locationID), nil, &layout); err != nil {
		return nil, err
	}
	return &layout, nil
}

func (c *Client) SearchLocations(ctx context.Context, query string) ([]domain.Location, error) {
	var locations []domain.Location
	if err := c.do(ctx, http.MethodGet, "/map/search?query="+url.QueryEscape(query), nil, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

func (c *Client) SlotsByLocation(ctx context.Context, locationID int64) ([]domain.Slot, error) {
	var slots []domain.Slot
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/admin/slots/location/%d", locationID), nil, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (c *Client) ActivePromotions(ctx context.Context) ([]domain.Promotion, error) {
	var promotions []domain.Promotion
	if err := c.do(ctx, http.MethodGet, "/promotions/active", nil, &promotions); err != nil {
		return nil, err
	}
	return promotions, nil
}

// PromotionByCode validates a promo code. Unknown codes surface as a 404
// *APIError.
func (c *Client) PromotionByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	var promotion domain.Promotion
	if err := c.do(ctx, http.MethodGet, "/promotions/code/"+url.PathEscape(code), nil, &promotion); err != nil {
		return nil, err
	}
	return &promotion, nil
}
