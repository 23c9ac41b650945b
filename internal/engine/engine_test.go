package engine_test

import (
	"context"
	"errors"
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

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("desk-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func strp(s string) *string { return &s }

func seed(t *testing.T, env testEnv, roster domain.Roster) {
	t.Helper()
	if err := env.Engine.ImportRoster(env.Ctx, roster, "tester"); err != nil {
		t.Fatalf("import roster: %v", err)
	}
}

func TestAssignPilotSkillGapLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env, domain.Roster{
		Pilots: []domain.Pilot{{
			ID: "P1", Name: "Asha Rao", Skills: []string{"thermal"}, Certifications: []string{},
			Location: "pune", Status: domain.PilotAvailable,
		}},
		Missions: []domain.Mission{{
			ID: "PRJ001", Client: "AgriCorp", Location: "pune",
			RequiredSkills: []string{"thermal", "mapping"}, RequiredCerts: []string{},
			StartDate: day(5), EndDate: day(10), Priority: domain.PriorityHigh,
		}},
	})

	_, err := env.Engine.AssignPilot(env.Ctx, "P1", "PRJ001", "tester")
	var ie engine.IneligibleError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IneligibleError, got %v", err)
	}
	if len(ie.Missing) != 1 || ie.Missing[0] != "mapping" {
		t.Fatalf("missing = %v, want [mapping]", ie.Missing)
	}

	// Nothing mutated.
	p, err := env.Engine.Repo.GetPilot(env.Ctx, "P1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != domain.PilotAvailable || p.CurrentAssignment != nil {
		t.Fatalf("pilot mutated on failed assign: %+v", p)
	}
	m, err := env.Engine.Repo.GetMission(env.Ctx, "PRJ001")
	if err != nil {
		t.Fatal(err)
	}
	if m.AssignedPilot != nil {
		t.Fatalf("mission mutated on failed assign: %+v", m)
	}

	// Repeat-safe: same failure again.
	_, err2 := env.Engine.AssignPilot(env.Ctx, "P1", "PRJ001", "tester")
	if !errors.As(err2, &ie) {
		t.Fatalf("repeated failed assign changed behavior: %v", err2)
	}
}

func TestAssignPilotSuccessThenDoubleBookingAudit(t *testing.T) {
	env := newTestEnv(t)
	// P1 is load-seeded as linked to PRJ001 but still flagged Available.
	seed(t, env, domain.Roster{
		Pilots: []domain.Pilot{{
			ID: "P1", Name: "Asha Rao", Skills: []string{"thermal"}, Certifications: []string{"night-ops"},
			Location: "pune", Status: domain.PilotAvailable, CurrentAssignment: strp("PRJ001"),
		}},
		Missions: []domain.Mission{
			{
				ID: "PRJ001", Client: "AgriCorp", Location: "pune",
				RequiredSkills: []string{"thermal"}, RequiredCerts: []string{},
				StartDate: day(5), EndDate: day(12), Priority: domain.PriorityStandard,
				AssignedPilot: strp("P1"),
			},
			{
				ID: "PRJ002", Client: "GridWorks", Location: "pune",
				RequiredSkills: []string{"thermal"}, RequiredCerts: []string{"night-ops"},
				StartDate: day(10), EndDate: day(15), Priority: domain.PriorityUrgent,
			},
		},
	})

	// Assignment only checks status, skills, certs; the stale link passes.
	m, err := env.Engine.AssignPilot(env.Ctx, "P1", "PRJ002", "tester")
	if err != nil {
		t.Fatalf("assign pilot: %v", err)
	}
	if m.AssignedPilot == nil || *m.AssignedPilot != "P1" {
		t.Fatalf("mission link not set: %+v", m)
	}
	p, _ := env.Engine.Repo.GetPilot(env.Ctx, "P1")
	if p.Status != domain.PilotAssigned || p.CurrentAssignment == nil || *p.CurrentAssignment != "PRJ002" {
		t.Fatalf("pilot not updated: %+v", p)
	}

	det := conflict.Detector{Repo: env.Engine.Repo}
	conflicts, err := det.DetectAll(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	var bookings []domain.Conflict
	for _, c := range conflicts {
		if c.Type == domain.ConflictDoubleBooking {
			bookings = append(bookings, c)
		}
	}
	if len(bookings) != 1 {
		t.Fatalf("expected exactly one double-booking, got %d (%v)", len(bookings), bookings)
	}
	if bookings[0].PilotID != "P1" || bookings[0].MissionID != "PRJ001" {
		t.Fatalf("unexpected finding: %+v", bookings[0])
	}
}

func TestBestPilotInsertionOrderTieBreak(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env, domain.Roster{
		Pilots: []domain.Pilot{
			{ID: "P1", Name: "Asha Rao", Skills: []string{"thermal"}, Certifications: []string{}, Location: "pune", Status: domain.PilotAvailable},
			{ID: "P2", Name: "Vikram Shetty", Skills: []string{"thermal"}, Certifications: []string{}, Location: "pune", Status: domain.PilotAvailable},
		},
		Missions: []domain.Mission{{
			ID: "PRJ001", Client: "AgriCorp", Location: "pune",
			RequiredSkills: []string{"thermal"}, RequiredCerts: []string{},
			StartDate: day(5), EndDate: day(10), Priority: domain.PriorityStandard,
		}},
	})
	best, err := env.Engine.BestPilotFor(env.Ctx, "PRJ001")
	if err != nil {
		t.Fatalf("best pilot: %v", err)
	}
	if best.ID != "P1" {
		t.Fatalf("tie must break on insertion order, got %s", best.ID)
	}
	// Deterministic on repeat.
	again, err := env.Engine.BestPilotFor(env.Ctx, "PRJ001")
	if err != nil || again.ID != "P1" {
		t.Fatalf("recommendation not deterministic: %v %v", again.ID, err)
	}
}

func TestSelectionIgnoresAvailableFromWindow(t *testing.T) {
	env := newTestEnv(t)
	from := day(8)
	seed(t, env, domain.Roster{
		Pilots: []domain.Pilot{{
			ID: "P1", Name: "Asha Rao", Skills: []string{"thermal"}, Certifications: []string{"night-ops"},
			Location: "pune", Status: domain.PilotAvailable, AvailableFrom: &from,
		}},
		Missions: []domain.Mission{{
			ID: "PRJ001", Client: "AgriCorp", Location: "pune",
			RequiredSkills: []string{"thermal"}, RequiredCerts: []string{"night-ops"},
			StartDate: day(5), EndDate: day(10), Priority: domain.PriorityUrgent,
		}},
	})

	// Selection reads the status flag only; a mid-window available_from
	// does not exclude the pilot.
	best, err := env.Engine.BestPilotFor(env.Ctx, "PRJ001")
	if err != nil {
		t.Fatalf("best pilot: %v", err)
	}
	if best.ID != "P1" {
		t.Fatalf("expected P1, got %s", best.ID)
	}
	alts, err := env.Engine.AlternativePilotsFor(env.Ctx, "P0", "PRJ001")
	if err != nil {
		t.Fatalf("alternatives: %v", err)
	}
	if len(alts) != 1 || alts[0].Pilot.ID != "P1" {
		t.Fatalf("expected P1 as alternative, got %+v", alts)
	}

	// The explicit window check still honors the gate.
	ok, _, err := env.Engine.PilotAvailability(env.Ctx, "P1", "2025-03-05", "2025-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("window check must still reject a mid-window available_from")
	}
}

func TestBestPilotNoCandidates(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env, domain.Roster{
		Missions: []domain.Mission{{
			ID: "PRJ001", Client: "AgriCorp", Location: "pune",
			RequiredSkills: []string{"thermal"}, RequiredCerts: []string{},
			StartDate: day(5), EndDate: day(10), Priority: domain.PriorityStandard,
		}},
	})
	_, err := env.Engine.BestPilotFor(env.Ctx, "PRJ001")
	if !errors.Is(err, engine.ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestAlternativePilotsDropLocationConstraint(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env, domain.Roster{
		Pilots: []domain.Pilot{
			{ID: "P1", Name: "Asha Rao", Skills: []string{"thermal"}, Certifications: []string{}, Location: "pune", Status: domain.PilotAvailable},
			{ID: "P2", Name: "Vikram Shetty", Skills: []string{"thermal"}, Certifications: []string{}, Location: "mumbai", Status: domain.PilotAvailable},
			{ID: "P3", Name: "Meera Iyer", Skills: []string{}, Certifications: []string{}, Location: "pune", Status: domain.PilotAvailable},
		},
		Missions: []domain.Mission{{
			ID: "PRJ001", Client: "AgriCorp", Location: "pune",
			RequiredSkills: []string{"thermal"}, RequiredCerts: []string{},
			StartDate: day(5), EndDate: day(10), Priority: domain.PriorityStandard,
		}},
	})
	alts, err := env.Engine.AlternativePilotsFor(env.Ctx, "P1", "PRJ001")
	if err != nil {
		t.Fatalf("alternatives: %v", err)
	}
	if len(alts) != 1 {
		t.Fatalf("expected one alternative, got %d", len(alts))
	}
	if alts[0].Pilot.ID != "P2" || alts[0].LocationMatch {
		t.Fatalf("unexpected alternative: %+v", alts[0])
	}
}

func TestAssignDroneSkipsCapabilityAndLocationChecks(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env, domain.Roster{
		Drones: []domain.Drone{{
			ID: "D1", Model: "AgriScan X2", Capabilities: []string{}, Status: domain.DroneAvailable, Location: "delhi",
		}},
		Missions: []domain.Mission{{
			ID: "PRJ001", Client: "AgriCorp", Location: "pune",
			RequiredSkills: []string{"thermal"}, RequiredCerts: []string{},
			StartDate: day(5), EndDate: day(10), Priority: domain.PriorityStandard,
		}},
	})
	// No capability coverage and the wrong location, still accepted.
	m, err := env.Engine.AssignDrone(env.Ctx, "D1", "PRJ001", "tester")
	if err != nil {
		t.Fatalf("assign drone: %v", err)
	}
	if m.AssignedDrone == nil || *m.AssignedDrone != "D1" {
		t.Fatalf("drone link not set: %+v", m)
	}
	d, _ := env.Engine.Repo.GetDrone(env.Ctx, "D1")
	if d.Status != domain.DroneDeployed || d.CurrentAssignment == nil || *d.CurrentAssignment != "PRJ001" {
		t.Fatalf("drone not updated: %+v", d)
	}
}

func TestAssignDroneUnavailable(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env, domain.Roster{
		Drones: []domain.Drone{{
			ID: "D1", Model: "AgriScan X2", Capabilities: []string{}, Status: domain.DroneMaintenance, Location: "pune",
		}},
		Missions: []domain.Mission{{
			ID: "PRJ001", Client: "AgriCorp", Location: "pune",
			RequiredSkills: []string{}, RequiredCerts: []string{},
			StartDate: day(5), EndDate: day(10), Priority: domain.PriorityStandard,
		}},
	})
	_, err := env.Engine.AssignDrone(env.Ctx, "D1", "PRJ001", "tester")
	var ie engine.IneligibleError
	if !errors.As(err, &ie) || ie.Entity != "drone" {
		t.Fatalf("expected drone ineligible, got %v", err)
	}
	d, _ := env.Engine.Repo.GetDrone(env.Ctx, "D1")
	if d.Status != domain.DroneMaintenance || d.CurrentAssignment != nil {
		t.Fatalf("drone mutated on failed assign: %+v", d)
	}
}

func TestAssignUnknownEntities(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env, domain.Roster{
		Pilots: []domain.Pilot{{ID: "P1", Name: "Asha Rao", Skills: []string{}, Certifications: []string{}, Location: "pune", Status: domain.PilotAvailable}},
		Missions: []domain.Mission{{
			ID: "PRJ001", Client: "AgriCorp", Location: "pune",
			RequiredSkills: []string{}, RequiredCerts: []string{},
			StartDate: day(5), EndDate: day(10), Priority: domain.PriorityStandard,
		}},
	})
	if _, err := env.Engine.AssignPilot(env.Ctx, "P9", "PRJ001", "tester"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown pilot: %v", err)
	}
	if _, err := env.Engine.AssignPilot(env.Ctx, "P1", "PRJ999", "tester"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown mission: %v", err)
	}
}

func TestSettersNoOpOnUnknownID(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.Repo.SetPilotStatus(env.Ctx, nil, "ghost", domain.PilotAssigned, nil); err != nil {
		t.Fatalf("setter on unknown id must be a no-op, got %v", err)
	}
	if _, err := env.Engine.Repo.GetPilot(env.Ctx, "ghost"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("no row should appear: %v", err)
	}
}

func TestImportRosterLastWriteWins(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env, domain.Roster{
		Pilots: []domain.Pilot{
			{ID: "P1", Name: "First", Skills: []string{}, Certifications: []string{}, Location: "pune", Status: domain.PilotAvailable},
			{ID: "P1", Name: "Second", Skills: []string{}, Certifications: []string{}, Location: "pune", Status: domain.PilotAvailable},
		},
	})
	p, err := env.Engine.Repo.GetPilot(env.Ctx, "P1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Second" {
		t.Fatalf("duplicate load must keep last record, got %s", p.Name)
	}
	pilots, _ := env.Engine.Repo.ListPilots(env.Ctx)
	if len(pilots) != 1 {
		t.Fatalf("expected single pilot row, got %d", len(pilots))
	}
}

func TestPilotAvailabilityWindow(t *testing.T) {
	env := newTestEnv(t)
	from := day(8)
	seed(t, env, domain.Roster{
		Pilots: []domain.Pilot{{
			ID: "P1", Name: "Asha Rao", Skills: []string{}, Certifications: []string{},
			Location: "pune", Status: domain.PilotAvailable, AvailableFrom: &from,
		}},
	})
	ok, _, err := env.Engine.PilotAvailability(env.Ctx, "P1", "2025-03-05", "2025-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("pilot freeing up mid-window must not be available")
	}
	ok, _, err = env.Engine.PilotAvailability(env.Ctx, "P1", "2025-03-09", "2025-03-12")
	if err != nil || !ok {
		t.Fatalf("pilot free before start should be available: %v %v", ok, err)
	}
	if _, _, err := env.Engine.PilotAvailability(env.Ctx, "P1", "soon", "2025-03-12"); err == nil {
		t.Fatal("malformed date must be rejected")
	}
}

func TestSummaryCounts(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env, domain.Roster{
		Pilots: []domain.Pilot{
			{ID: "P1", Name: "A", Skills: []string{}, Certifications: []string{}, Location: "pune", Status: domain.PilotAvailable},
			{ID: "P2", Name: "B", Skills: []string{}, Certifications: []string{}, Location: "pune", Status: domain.PilotOnLeave},
		},
		Drones: []domain.Drone{
			{ID: "D1", Model: "X", Capabilities: []string{}, Status: domain.DroneMaintenance, Location: "pune"},
		},
		Missions: []domain.Mission{
			{ID: "PRJ001", Client: "C", Location: "pune", RequiredSkills: []string{}, RequiredCerts: []string{},
				StartDate: day(1), EndDate: day(2), Priority: domain.PriorityStandard, AssignedPilot: strp("P1")},
			{ID: "PRJ002", Client: "C", Location: "pune", RequiredSkills: []string{}, RequiredCerts: []string{},
				StartDate: day(3), EndDate: day(4), Priority: domain.PriorityStandard},
		},
	})
	s, err := env.Engine.Summary(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.PilotsByStatus[domain.PilotAvailable] != 1 || s.PilotsByStatus[domain.PilotOnLeave] != 1 {
		t.Fatalf("pilot counts wrong: %v", s.PilotsByStatus)
	}
	if s.DronesByStatus[domain.DroneMaintenance] != 1 {
		t.Fatalf("drone counts wrong: %v", s.DronesByStatus)
	}
	if s.MissionsTotal != 2 || s.MissionsAssigned != 1 || s.MissionsUnassigned != 1 {
		t.Fatalf("mission counts wrong: %+v", s)
	}
}
