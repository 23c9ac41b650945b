package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoCandidates means no entity survived the recommendation filters.
var ErrNoCandidates = errors.New("no eligible candidates")

// IneligibleError reports why a specific candidate cannot take a mission.
// Missing enumerates the absent tags when the reason is a coverage gap.
type IneligibleError struct {
	Entity  string
	ID      string
	Reason  string
	Missing []string
}

func (e IneligibleError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s %s: %s: %s", e.Entity, e.ID, e.Reason, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Reason)
}
