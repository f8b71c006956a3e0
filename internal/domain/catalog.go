package domain

import (
	"gopkg.in/guregu/null.v4"
)

type Location struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Latitude       null.Float `json:"latitude"`
	Longitude      null.Float `json:"longitude"`
	Address        string     `json:"address,omitempty"`
	Description    string     `json:"description,omitempty"`
	TotalSlots     int        `json:"totalSlots"`
	AvailableSlots int        `json:"availableSlots"`
	Amenities      string     `json:"amenities,omitempty"`
	OperatingHours string     `json:"operatingHours,omitempty"`
	IsActive       bool       `json:"isActive"`
	MarkerColor    string     `json:"markerColor,omitempty"`
}

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type NearbyLocations struct {
	UserLocation GeoPoint   `json:"userLocation"`
	SearchRadius float64    `json:"searchRadius"`
	Count        int        `json:"count"`
	Locations    []Location `json:"locations"`
}

type SlotLayoutEntry struct {
	ID         int64  `json:"id"`
	SlotNumber string `json:"slotNumber"`
	SlotType   string `json:"slotType,omitempty"`
	Available  bool   `json:"available"`
	Zone       string `json:"zone,omitempty"`
}

type SlotLayout struct {
	LocationID     int64             `json:"locationId"`
	TotalSlots     int               `json:"totalSlots"`
	AvailableSlots int               `json:"availableSlots"`
	Slots          []SlotLayoutEntry `json:"slots"`
}

type Slot struct {
	ID               int64  `json:"id"`
	SlotNumber       string `json:"slotNumber"`
	Available        bool   `json:"available"`
	IsDisabled       bool   `json:"isDisabled"`
	MaintenanceNotes string `json:"maintenanceNotes,omitempty"`
	SlotType         string `json:"slotType"`
}

type Promotion struct {
	ID                 int64       `json:"id"`
	Code               string      `json:"code"`
	Description        string      `json:"description,omitempty"`
	DiscountPercentage null.Float  `json:"discountPercentage"`
	UsageLimit         null.Int    `json:"usageLimit"`
	TimesUsed          int         `json:"timesUsed"`
	Status             string      `json:"status"`
	ExpiresAt          null.String `json:"expiresAt"`
}

type LocationSearchDTO struct {
	Lat    float64 `form:"lat" binding:"required"`
	Lon    float64 `form:"lon" binding:"required"`
	Radius float64 `form:"radius"`
}
