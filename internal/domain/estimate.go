package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

// RateQuote is the rate payload as the pricing side returns it. The hourly
// price appears under either name.
type RateQuote struct {
	HourlyRate  null.Float `json:"hourlyRate"`
	RatePerHour null.Float `json:"ratePerHour"`
}

// Normalize resolves the accepted aliases into one hourly rate. Absent or
// negative values resolve to zero.
func (q RateQuote) Normalize() float64 {
	var rate float64
	switch {
	case q.HourlyRate.Valid:
		rate = q.HourlyRate.Float64
	case q.RatePerHour.Valid:
		rate = q.RatePerHour.Float64
	}
	if rate < 0 {
		return 0
	}
	return rate
}

// LiveEstimate is the client-side, provisional duration and amount for a
// session. The backend's figures supersede it once the session is closed.
type LiveEstimate struct {
	ElapsedMinutes int64     `json:"elapsedMinutes"`
	AmountDue      float64   `json:"amountDue"`
	HourlyRate     float64   `json:"hourlyRate"`
	Frozen         bool      `json:"frozen"`
	ComputedAt     time.Time `json:"computedAt"`
}

type VehiclePricing struct {
	VehicleType  string  `json:"vehicleType"`
	PricePerHour float64 `json:"pricePerHour"`
}

type DefaultPricing struct {
	Pricing []VehiclePricing `json:"pricing"`
}

// RateFor returns the quote for a vehicle type and whether one was listed.
func (p DefaultPricing) RateFor(vt VehicleType) (RateQuote, bool) {
	for _, entry := range p.Pricing {
		if VehicleType(entry.VehicleType) == vt {
			return RateQuote{HourlyRate: null.FloatFrom(entry.PricePerHour)}, true
		}
	}
	return RateQuote{}, false
}
