package conflict_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/akshaydotweb/drone-ops-ai/internal/config"
	"github.com/akshaydotweb/drone-ops-ai/internal/conflict"
	"github.com/akshaydotweb/drone-ops-ai/internal/db"
	"github.com/akshaydotweb/drone-ops-ai/internal/domain"
	"github.com/akshaydotweb/drone-ops-ai/internal/engine"
	"github.com/akshaydotweb/drone-ops-ai/internal/migrate"
	"github.com/akshaydotweb/drone-ops-ai/internal/repo"
)

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func strp(s string) *string { return &s }

func newDetector(t *testing.T, roster domain.Roster) (conflict.Detector, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default("desk-1"))
	ctx := context.Background()
	if err := eng.ImportRoster(ctx, roster, "tester"); err != nil {
		t.Fatalf("import roster: %v", err)
	}
	return conflict.Detector{Repo: eng.Repo}, ctx
}

func TestMaintenanceConflict(t *testing.T) {
	det, ctx := newDetector(t, domain.Roster{
		Drones: []domain.Drone{{
			ID: "D1", Model: "AgriScan X2", Capabilities: []string{"thermal"},
			Status: domain.DroneMaintenance, Location: "pune",
		}},
		Missions: []domain.Mission{{
			ID: "PRJ001", Client: "AgriCorp", Location: "pune",
			RequiredSkills: []string{}, RequiredCerts: []string{},
			StartDate: day(5), EndDate: day(10), Priority: domain.PriorityStandard,
			AssignedDrone: strp("D1"),
		}},
	})
	conflicts, err := det.DetectAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected one finding, got %v", conflicts)
	}
	c := conflicts[0]
	if c.Type != domain.ConflictMaintenance || c.Severity != domain.SeverityCritical {
		t.Fatalf("unexpected finding: %+v", c)
	}
	if c.DroneID != "D1" || c.MissionID != "PRJ001" {
		t.Fatalf("wrong entities implicated: %+v", c)
	}
}

func TestCertGapAndLocationSplit(t *testing.T) {
	det, ctx := newDetector(t, domain.Roster{
		Pilots: []domain.Pilot{{
			ID: "P1", Name: "Asha Rao", Skills: []string{"thermal"}, Certifications: []string{},
			Location: "pune", Status: domain.PilotAssigned, CurrentAssignment: strp("PRJ001"),
		}},
		Drones: []domain.Drone{{
			ID: "D1", Model: "AgriScan X2", Capabilities: []string{"thermal"},
			Status: domain.DroneDeployed, Location: "delhi", CurrentAssignment: strp("PRJ001"),
		}},
		Missions: []domain.Mission{{
			ID: "PRJ001", Client: "AgriCorp", Location: "pune",
			RequiredSkills: []string{"thermal"}, RequiredCerts: []string{"night-ops"},
			StartDate: day(5), EndDate: day(10), Priority: domain.PriorityUrgent,
			AssignedPilot: strp("P1"), AssignedDrone: strp("D1"),
		}},
	})
	conflicts, err := det.DetectAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(conflicts) != 2 {
		t.Fatalf("expected cert gap and location split, got %v", conflicts)
	}
	// Coverage findings come before location findings.
	if conflicts[0].Type != domain.ConflictSkillMismatch || conflicts[0].Severity != domain.SeverityCritical {
		t.Fatalf("certification gap must be a critical skill-mismatch: %+v", conflicts[0])
	}
	if conflicts[1].Type != domain.ConflictLocation || conflicts[1].Severity != domain.SeverityMajor {
		t.Fatalf("location split must be a major location-mismatch: %+v", conflicts[1])
	}
	if conflicts[1].PilotID != "P1" || conflicts[1].DroneID != "D1" || conflicts[1].MissionID != "PRJ001" {
		t.Fatalf("location finding must implicate all three: %+v", conflicts[1])
	}
}

func TestSkillGapIsMajor(t *testing.T) {
	det, ctx := newDetector(t, domain.Roster{
		Pilots: []domain.Pilot{{
			ID: "P1", Name: "Asha Rao", Skills: []string{}, Certifications: []string{},
			Location: "pune", Status: domain.PilotAssigned, CurrentAssignment: strp("PRJ001"),
		}},
		Missions: []domain.Mission{{
			ID: "PRJ001", Client: "AgriCorp", Location: "pune",
			RequiredSkills: []string{"thermal", "mapping"}, RequiredCerts: []string{},
			StartDate: day(5), EndDate: day(10), Priority: domain.PriorityStandard,
			AssignedPilot: strp("P1"),
		}},
	})
	conflicts, err := det.DetectAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected one finding, got %v", conflicts)
	}
	c := conflicts[0]
	if c.Type != domain.ConflictSkillMismatch || c.Severity != domain.SeverityMajor {
		t.Fatalf("skill gap must be a major skill-mismatch: %+v", c)
	}
}

func TestNoOverlapNoBooking(t *testing.T) {
	det, ctx := newDetector(t, domain.Roster{
		Pilots: []domain.Pilot{{
			ID: "P1", Name: "Asha Rao", Skills: []string{}, Certifications: []string{},
			Location: "pune", Status: domain.PilotAssigned, CurrentAssignment: strp("PRJ002"),
		}},
		Missions: []domain.Mission{
			{ID: "PRJ001", Client: "A", Location: "pune", RequiredSkills: []string{}, RequiredCerts: []string{},
				StartDate: day(1), EndDate: day(5), Priority: domain.PriorityStandard, AssignedPilot: strp("P1")},
			{ID: "PRJ002", Client: "B", Location: "pune", RequiredSkills: []string{}, RequiredCerts: []string{},
				StartDate: day(5), EndDate: day(10), Priority: domain.PriorityStandard, AssignedPilot: strp("P1")},
		},
	})
	conflicts, err := det.DetectAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// Back-to-back missions share an endpoint, which is not an overlap.
	for _, c := range conflicts {
		if c.Type == domain.ConflictDoubleBooking {
			t.Fatalf("touching intervals must not double-book: %+v", c)
		}
	}
}

func TestDetectionIdempotent(t *testing.T) {
	det, ctx := newDetector(t, domain.Roster{
		Pilots: []domain.Pilot{{
			ID: "P1", Name: "Asha Rao", Skills: []string{}, Certifications: []string{},
			Location: "pune", Status: domain.PilotAssigned, CurrentAssignment: strp("PRJ002"),
		}},
		Drones: []domain.Drone{{
			ID: "D1", Model: "AgriScan X2", Capabilities: []string{}, Status: domain.DroneMaintenance, Location: "delhi",
		}},
		Missions: []domain.Mission{
			{ID: "PRJ001", Client: "A", Location: "pune", RequiredSkills: []string{"thermal"}, RequiredCerts: []string{},
				StartDate: day(1), EndDate: day(8), Priority: domain.PriorityStandard,
				AssignedPilot: strp("P1"), AssignedDrone: strp("D1")},
			{ID: "PRJ002", Client: "B", Location: "pune", RequiredSkills: []string{}, RequiredCerts: []string{},
				StartDate: day(5), EndDate: day(10), Priority: domain.PriorityStandard, AssignedPilot: strp("P1")},
		},
	})
	first, err := det.DetectAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := det.DetectAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated sweeps diverged:\n%v\n%v", first, second)
	}
	if len(first) == 0 {
		t.Fatal("expected findings in this roster")
	}
}

func TestForMissionFiltersFindings(t *testing.T) {
	det, ctx := newDetector(t, domain.Roster{
		Pilots: []domain.Pilot{{
			ID: "P1", Name: "Asha Rao", Skills: []string{}, Certifications: []string{},
			Location: "pune", Status: domain.PilotAssigned, CurrentAssignment: strp("PRJ001"),
		}},
		Drones: []domain.Drone{{
			ID: "D1", Model: "AgriScan X2", Capabilities: []string{}, Status: domain.DroneMaintenance, Location: "pune",
		}},
		Missions: []domain.Mission{
			{ID: "PRJ001", Client: "A", Location: "pune", RequiredSkills: []string{"thermal"}, RequiredCerts: []string{},
				StartDate: day(1), EndDate: day(8), Priority: domain.PriorityStandard, AssignedPilot: strp("P1")},
			{ID: "PRJ002", Client: "B", Location: "pune", RequiredSkills: []string{}, RequiredCerts: []string{},
				StartDate: day(5), EndDate: day(10), Priority: domain.PriorityStandard, AssignedDrone: strp("D1")},
		},
	})
	found, err := det.ForMission(ctx, "PRJ002")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Type != domain.ConflictMaintenance {
		t.Fatalf("expected only the maintenance finding for PRJ002, got %v", found)
	}
	if _, err := det.ForMission(ctx, "PRJ999"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown mission must be not found: %v", err)
	}
}

func TestCleanRosterNoFindings(t *testing.T) {
	det, ctx := newDetector(t, domain.Roster{
		Pilots: []domain.Pilot{{
			ID: "P1", Name: "Asha Rao", Skills: []string{"thermal"}, Certifications: []string{"night-ops"},
			Location: "pune", Status: domain.PilotAssigned, CurrentAssignment: strp("PRJ001"),
		}},
		Drones: []domain.Drone{{
			ID: "D1", Model: "AgriScan X2", Capabilities: []string{"thermal"},
			Status: domain.DroneDeployed, Location: "pune", CurrentAssignment: strp("PRJ001"),
		}},
		Missions: []domain.Mission{{
			ID: "PRJ001", Client: "AgriCorp", Location: "pune",
			RequiredSkills: []string{"thermal"}, RequiredCerts: []string{"night-ops"},
			StartDate: day(5), EndDate: day(10), Priority: domain.PriorityStandard,
			AssignedPilot: strp("P1"), AssignedDrone: strp("D1"),
		}},
	})
	conflicts, err := det.DetectAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("clean roster must produce no findings, got %v", conflicts)
	}
}
