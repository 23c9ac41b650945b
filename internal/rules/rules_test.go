package rules_test

import (
	"testing"
	"time"

	"github.com/akshaydotweb/drone-ops-ai/internal/domain"
	"github.com/akshaydotweb/drone-ops-ai/internal/rules"
)

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestOverlapSymmetry(t *testing.T) {
	cases := []struct {
		name         string
		aStart, aEnd time.Time
		bStart, bEnd time.Time
		want         bool
	}{
		{"disjoint", day(1), day(5), day(6), day(10), false},
		{"touching endpoints", day(1), day(5), day(5), day(10), false},
		{"nested", day(1), day(10), day(3), day(4), true},
		{"partial", day(1), day(5), day(4), day(8), true},
		{"identical", day(1), day(5), day(1), day(5), true},
	}
	for _, tc := range cases {
		got := rules.Overlap(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd)
		if got != tc.want {
			t.Errorf("%s: overlap = %v, want %v", tc.name, got, tc.want)
		}
		if rev := rules.Overlap(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); rev != got {
			t.Errorf("%s: overlap not symmetric (%v vs %v)", tc.name, got, rev)
		}
	}
}

func TestOverlapSelf(t *testing.T) {
	if !rules.Overlap(day(1), day(5), day(1), day(5)) {
		t.Fatal("interval should overlap itself")
	}
}

func TestMissingSubsetLaw(t *testing.T) {
	have := []string{"thermal", "lidar", "night-ops"}
	required := []string{"thermal", "night-ops"}
	if !rules.HasAll(have, required) {
		t.Fatal("superset should cover required tags")
	}
	// Growing the requirement set can only add missing items.
	grown := append([]string{}, required...)
	grown = append(grown, "mapping")
	missing := rules.Missing(have, grown)
	if len(missing) != 1 || missing[0] != "mapping" {
		t.Fatalf("missing = %v, want [mapping]", missing)
	}
	before := len(rules.Missing(have, required))
	after := len(rules.Missing(have, grown))
	if after < before {
		t.Fatalf("missing count shrank when requirements grew: %d -> %d", before, after)
	}
}

func TestMissingExactMatch(t *testing.T) {
	have := []string{"Thermal"}
	missing := rules.Missing(have, []string{"thermal"})
	if len(missing) != 1 {
		t.Fatalf("tag matching must be exact, got missing=%v", missing)
	}
}

func TestPilotAvailable(t *testing.T) {
	start, end := day(10), day(15)
	from := day(12)
	cases := []struct {
		name  string
		pilot domain.Pilot
		want  bool
	}{
		{"available", domain.Pilot{Status: domain.PilotAvailable}, true},
		{"assigned", domain.Pilot{Status: domain.PilotAssigned}, false},
		{"on leave", domain.Pilot{Status: domain.PilotOnLeave}, false},
		{"unavailable", domain.Pilot{Status: domain.PilotUnavailable}, false},
		{"frees up too late", domain.Pilot{Status: domain.PilotAvailable, AvailableFrom: &from}, false},
	}
	for _, tc := range cases {
		if got := rules.PilotAvailable(tc.pilot, start, end); got != tc.want {
			t.Errorf("%s: available = %v, want %v", tc.name, got, tc.want)
		}
	}
	early := day(2)
	p := domain.Pilot{Status: domain.PilotAvailable, AvailableFrom: &early}
	if !rules.PilotAvailable(p, start, end) {
		t.Fatal("pilot free before mission start should be available")
	}
}
