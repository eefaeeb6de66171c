// Copyright 2025 James Ross
package scheduler

import "math"

// curve maps a busy rating (0-10) to the fraction of total capacity that
// remains usable at that load level.
var curve = [11]float64{
	0: 1.00, 1: 1.00, 2: 1.00,
	3: 0.80,
	4: 0.65,
	5: 0.50,
	6: 0.35,
	7: 0.25,
	8: 0.15,
	9: 0.10,
	10: 0.00,
}

// CapacityModel maps a busy rating and configuration to usable and
// available capacity units.
type CapacityModel struct {
	TotalUnits   int
	ReserveUnits int
	HeadroomPct  float64
}

// Usable computes usable(b) = max(0, floor(total*curve[b]*(1-headroom)) - reserve).
func (c CapacityModel) Usable(busyRating int) int {
	if busyRating < 0 {
		busyRating = 0
	}
	if busyRating > 10 {
		busyRating = 10
	}
	raw := math.Floor(float64(c.TotalUnits) * curve[busyRating] * (1 - c.HeadroomPct))
	usable := int(raw) - c.ReserveUnits
	if usable < 0 {
		return 0
	}
	return usable
}

// Available computes max(0, usable - leased).
func Available(usable, leased int) int {
	available := usable - leased
	if available < 0 {
		return 0
	}
	return available
}
