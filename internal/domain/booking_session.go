package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gopkg.in/guregu/null.v4"
)

type VehicleType string

const (
	VehicleBike  VehicleType = "BIKE"
	VehicleCar   VehicleType = "CAR"
	VehicleSUV   VehicleType = "SUV"
	VehicleTruck VehicleType = "TRUCK"
)

var ErrInvalidVehicleType = errors.New("vehicle type must be one of BIKE, CAR, SUV, TRUCK")

// ParseVehicleType upper-cases the input and falls back to CAR when it is empty.
func ParseVehicleType(s string) (VehicleType, error) {
	vt := VehicleType(strings.ToUpper(strings.TrimSpace(s)))
	if vt == "" {
		return VehicleCar, nil
	}
	if !vt.Valid() {
		return VehicleCar, ErrInvalidVehicleType
	}
	return vt, nil
}

func (v VehicleType) Valid() bool {
	switch v {
	case VehicleBike, VehicleCar, VehicleSUV, VehicleTruck:
		return true
	}
	return false
}

type BookingStatus string

const (
	BookingActive    BookingStatus = "ACTIVE"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// BookingSession is the parking occupancy record being paid for. It is owned
// by the caller; checkouts only read it.
type BookingSession struct {
	ID              null.Int      `json:"id"`
	SlotID          null.Int      `json:"slotId"`
	SlotNumber      string        `json:"slotNumber,omitempty"`
	LocationName    string        `json:"locationName,omitempty"`
	VehicleType     VehicleType   `json:"vehicleType"`
	EntryTime       null.Time     `json:"entryTime"`
	ExitTime        null.Time     `json:"exitTime"`
	DurationMinutes null.Int      `json:"durationMinutes"`
	ParkingFee      null.Float    `json:"parkingFee"`
	Status          BookingStatus `json:"status,omitempty"`
	PaymentStatus   string        `json:"paymentStatus,omitempty"`
	TransactionID   null.String   `json:"transactionId"`
}

// HasID reports whether the session carries a usable booking identifier.
func (b BookingSession) HasID() bool {
	return b.ID.Valid && b.ID.Int64 > 0
}

// IsClosed reports whether the vehicle has already exited.
func (b BookingSession) IsClosed() bool {
	return b.ExitTime.Valid
}

// bookingSessionWire is the backend shape. The booking id arrives as either
// "id" or "bookingId" and timestamps may be zone-less.
type bookingSessionWire struct {
	ID              null.Int    `json:"id"`
	BookingID       null.Int    `json:"bookingId"`
	SlotID          null.Int    `json:"slotId"`
	SlotNumber      string      `json:"slotNumber"`
	LocationName    string      `json:"locationName"`
	VehicleType     string      `json:"vehicleType"`
	EntryTime       null.String `json:"entryTime"`
	ExitTime        null.String `json:"exitTime"`
	DurationMinutes null.Int    `json:"durationMinutes"`
	ParkingFee      null.Float  `json:"parkingFee"`
	Status          string      `json:"status"`
	PaymentStatus   string      `json:"paymentStatus"`
	TransactionID   null.String `json:"transactionId"`
}

func (b *BookingSession) UnmarshalJSON(data []byte) error {
	var w bookingSessionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id := w.ID
	if !id.Valid || id.Int64 <= 0 {
		id = w.BookingID
	}
	vt, err := ParseVehicleType(w.VehicleType)
	if err != nil {
		// Unknown types are priced as cars; the backend stays authoritative.
		vt = VehicleCar
	}

	*b = BookingSession{
		ID:              id,
		SlotID:          w.SlotID,
		SlotNumber:      w.SlotNumber,
		LocationName:    w.LocationName,
		VehicleType:     vt,
		EntryTime:       parseBackendTime(w.EntryTime),
		ExitTime:        parseBackendTime(w.ExitTime),
		DurationMinutes: w.DurationMinutes,
		ParkingFee:      w.ParkingFee,
		Status:          BookingStatus(strings.ToUpper(w.Status)),
		PaymentStatus:   w.PaymentStatus,
		TransactionID:   w.TransactionID,
	}
	return nil
}

var backendTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseBackendTime accepts RFC3339 and the zone-less LocalDateTime format the
// backend emits. Zone-less values are read in the local zone. Anything else
// is treated as absent.
func parseBackendTime(s null.String) null.Time {
	if !s.Valid {
		return null.Time{}
	}
	raw := strings.TrimSpace(s.String)
	if raw == "" {
		return null.Time{}
	}
	for _, layout := range backendTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return null.TimeFrom(t)
		}
	}
	return null.Time{}
}

// OpenCheckoutDTO opens a checkout either from a full session or by id.
type OpenCheckoutDTO struct {
	BookingID int64           `json:"bookingId"`
	Booking   *BookingSession `json:"booking"`
}

type UpdateVehicleTypeDTO struct {
	VehicleType string `json:"vehicleType" binding:"required"`
}

// BookingPage is one page of booking history.
type BookingPage struct {
	Content       []BookingSession `json:"content"`
	TotalElements int64            `json:"totalElements"`
	TotalPages    int              `json:"totalPages"`
	Number        int              `json:"number"`
	Size          int              `json:"size"`
}
