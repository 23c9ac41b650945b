// Package rules holds the pure eligibility predicates shared by the
// assignment engine and the conflict detector.
package rules

import (
	"time"

	"github.com/akshaydotweb/drone-ops-ai/internal/domain"
)

// PilotAvailable reports whether a pilot can take a mission running over
// [start, end). Only the status flag and the optional available_from gate
// are consulted; existing assignments are audited after the fact by the
// conflict detector, not here.
func PilotAvailable(p domain.Pilot, start, end time.Time) bool {
	if p.Status != domain.PilotAvailable {
		return false
	}
	if p.AvailableFrom != nil && p.AvailableFrom.After(start) {
		return false
	}
	return true
}

// DroneAvailable reports whether a drone is free to deploy.
func DroneAvailable(d domain.Drone) bool {
	return d.Status == domain.DroneAvailable
}

// HasAll reports whether every required tag is present in have.
// Matching is exact; no normalization happens here.
func HasAll(have, required []string) bool {
	return len(Missing(have, required)) == 0
}

// Missing returns the required tags absent from have, in required order.
func Missing(have, required []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	var missing []string
	for _, r := range required {
		if _, ok := set[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// Overlap reports whether two half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Symmetric; a non-degenerate interval overlaps
// itself.
func Overlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
