package models

import "github.com/paulmach/orb"

// TrackSummary is the row stored next to a track record, used for listings
type TrackSummary struct {
	ID          string `json:"id" db:"id"`
	Owner       string `json:"owner" db:"owner"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Version     int64  `json:"version" db:"version"`
	PointCount  int    `json:"pointCount" db:"point_count"`

	// Aggregate metadata at the time the record was stored
	Distance        float64    `json:"distance" db:"distance"` // meters
	Ascent          float64    `json:"ascent" db:"ascent"`     // meters
	Descent         float64    `json:"descent" db:"descent"`   // meters
	Duration        int64      `json:"duration" db:"duration"` // milliseconds
	HighestAltitude *float64   `json:"highestAltitude,omitempty" db:"highest_altitude"`
	LowestAltitude  *float64   `json:"lowestAltitude,omitempty" db:"lowest_altitude"`
	StartTime       *int64     `json:"startTime,omitempty" db:"start_time"`
	Bounds          *orb.Bound `json:"bounds,omitempty"`

	CreatedAt int64 `json:"createdAt" db:"created_at"` // epoch milliseconds
	UpdatedAt int64 `json:"updatedAt" db:"updated_at"` // epoch milliseconds
}

// TrackSummariesResponse represents a paginated list of track summaries
type TrackSummariesResponse struct {
	Data       []TrackSummary `json:"data"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

// TrackFilter represents filter parameters for listing tracks
type TrackFilter struct {
	Owner    string `form:"owner"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
	// Within keeps the tracks whose bounds intersect it
	Within *orb.Bound `form:"-"`
}
