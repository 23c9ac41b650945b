// Package engine is the assignment service. All mutations run in a single
// transaction that updates entity status, the mission link, and the event
// log together; validation failures return before anything is written.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akshaydotweb/drone-ops-ai/internal/config"
	"github.com/akshaydotweb/drone-ops-ai/internal/domain"
	"github.com/akshaydotweb/drone-ops-ai/internal/events"
	"github.com/akshaydotweb/drone-ops-ai/internal/repo"
	"github.com/akshaydotweb/drone-ops-ai/internal/rules"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

// writer returns the event writer bound to the engine's clock.
func (e Engine) writer() events.Writer {
	w := e.Events
	if w.DB == nil {
		w.DB = e.DB
	}
	if w.Now == nil {
		w.Now = e.Now
	}
	return w
}

// ImportRoster bulk-upserts all three collections in one transaction.
// Duplicate IDs within the input or against existing rows are
// last-write-wins.
func (e Engine) ImportRoster(ctx context.Context, roster domain.Roster, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, p := range roster.Pilots {
		if err := e.Repo.UpsertPilot(ctx, tx, p); err != nil {
			return fmt.Errorf("upsert pilot %s: %w", p.ID, err)
		}
	}
	for _, d := range roster.Drones {
		if err := e.Repo.UpsertDrone(ctx, tx, d); err != nil {
			return fmt.Errorf("upsert drone %s: %w", d.ID, err)
		}
	}
	for _, m := range roster.Missions {
		if err := e.Repo.UpsertMission(ctx, tx, m); err != nil {
			return fmt.Errorf("upsert mission %s: %w", m.ID, err)
		}
	}
	if err := e.writer().Append(ctx, tx, "roster.imported", "roster", "", actorID, events.EventPayload{
		"pilots":   len(roster.Pilots),
		"drones":   len(roster.Drones),
		"missions": len(roster.Missions),
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// BestPilotFor returns the first pilot, in insertion order, flagged
// Available, covering the mission's skills and certifications, at the
// mission location. The filters short-circuit in that order; no scoring
// happens. Selection reads the status flag only; the available_from
// window belongs to PilotAvailability.
func (e Engine) BestPilotFor(ctx context.Context, missionID string) (domain.Pilot, error) {
	m, err := e.getMission(ctx, missionID)
	if err != nil {
		return domain.Pilot{}, err
	}
	pilots, err := e.Repo.ListPilots(ctx)
	if err != nil {
		return domain.Pilot{}, err
	}
	for _, p := range pilots {
		if p.Status != domain.PilotAvailable {
			continue
		}
		if !rules.HasAll(p.Skills, m.RequiredSkills) {
			continue
		}
		if !rules.HasAll(p.Certifications, m.RequiredCerts) {
			continue
		}
		if p.Location != m.Location {
			continue
		}
		return p, nil
	}
	return domain.Pilot{}, fmt.Errorf("pilot for mission %s: %w", missionID, ErrNoCandidates)
}

// BestDroneFor returns the first available drone whose capabilities cover
// the mission's required skills and whose location matches.
func (e Engine) BestDroneFor(ctx context.Context, missionID string) (domain.Drone, error) {
	m, err := e.getMission(ctx, missionID)
	if err != nil {
		return domain.Drone{}, err
	}
	drones, err := e.Repo.ListDrones(ctx)
	if err != nil {
		return domain.Drone{}, err
	}
	for _, d := range drones {
		if !rules.DroneAvailable(d) {
			continue
		}
		if !rules.HasAll(d.Capabilities, m.RequiredSkills) {
			continue
		}
		if d.Location != m.Location {
			continue
		}
		return d, nil
	}
	return domain.Drone{}, fmt.Errorf("drone for mission %s: %w", missionID, ErrNoCandidates)
}

// PilotCandidate is a relaxed-filter recommendation entry.
type PilotCandidate struct {
	Pilot         domain.Pilot `json:"pilot"`
	LocationMatch bool         `json:"location_match"`
}

// AlternativePilotsFor lists qualified, status-Available pilots other
// than the excluded one. The location constraint is dropped; each
// candidate is annotated with whether it would have held.
func (e Engine) AlternativePilotsFor(ctx context.Context, excludedID, missionID string) ([]PilotCandidate, error) {
	m, err := e.getMission(ctx, missionID)
	if err != nil {
		return nil, err
	}
	pilots, err := e.Repo.ListPilots(ctx)
	if err != nil {
		return nil, err
	}
	var res []PilotCandidate
	for _, p := range pilots {
		if p.ID == excludedID {
			continue
		}
		if p.Status != domain.PilotAvailable {
			continue
		}
		if !rules.HasAll(p.Skills, m.RequiredSkills) {
			continue
		}
		if !rules.HasAll(p.Certifications, m.RequiredCerts) {
			continue
		}
		res = append(res, PilotCandidate{Pilot: p, LocationMatch: p.Location == m.Location})
	}
	return res, nil
}

// AssignPilot validates the pilot against the mission and, on success,
// marks the pilot Assigned and links the mission in one transaction.
// The mission's drone link is untouched. No conflict sweep runs here;
// audits are a separate read.
func (e Engine) AssignPilot(ctx context.Context, pilotID, missionID, actorID string) (domain.Mission, error) {
	p, err := e.getPilot(ctx, pilotID)
	if err != nil {
		return domain.Mission{}, err
	}
	m, err := e.getMission(ctx, missionID)
	if err != nil {
		return domain.Mission{}, err
	}
	if p.Status != domain.PilotAvailable {
		return domain.Mission{}, IneligibleError{Entity: "pilot", ID: p.ID, Reason: fmt.Sprintf("status is %s", p.Status)}
	}
	if missing := rules.Missing(p.Skills, m.RequiredSkills); len(missing) > 0 {
		return domain.Mission{}, IneligibleError{Entity: "pilot", ID: p.ID, Reason: "missing required skills", Missing: missing}
	}
	if missing := rules.Missing(p.Certifications, m.RequiredCerts); len(missing) > 0 {
		return domain.Mission{}, IneligibleError{Entity: "pilot", ID: p.ID, Reason: "missing required certifications", Missing: missing}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Mission{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetPilotStatus(ctx, tx, p.ID, domain.PilotAssigned, &m.ID); err != nil {
		return domain.Mission{}, err
	}
	if err := e.Repo.SetMissionAssignment(ctx, tx, m.ID, &p.ID, m.AssignedDrone); err != nil {
		return domain.Mission{}, err
	}
	if err := e.writer().Append(ctx, tx, "pilot.assigned", "mission", m.ID, actorID, events.EventPayload{
		"pilot_id":   p.ID,
		"mission_id": m.ID,
	}); err != nil {
		return domain.Mission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Mission{}, err
	}
	m.AssignedPilot = &p.ID
	return m, nil
}

// AssignDrone checks existence and availability only, then marks the
// drone Deployed and links the mission. Capability and location fit are
// deliberately not validated here; the conflict sweep surfaces those.
func (e Engine) AssignDrone(ctx context.Context, droneID, missionID, actorID string) (domain.Mission, error) {
	d, err := e.getDrone(ctx, droneID)
	if err != nil {
		return domain.Mission{}, err
	}
	m, err := e.getMission(ctx, missionID)
	if err != nil {
		return domain.Mission{}, err
	}
	if !rules.DroneAvailable(d) {
		return domain.Mission{}, IneligibleError{Entity: "drone", ID: d.ID, Reason: fmt.Sprintf("status is %s", d.Status)}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Mission{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetDroneStatus(ctx, tx, d.ID, domain.DroneDeployed, &m.ID); err != nil {
		return domain.Mission{}, err
	}
	if err := e.Repo.SetMissionAssignment(ctx, tx, m.ID, m.AssignedPilot, &d.ID); err != nil {
		return domain.Mission{}, err
	}
	if err := e.writer().Append(ctx, tx, "drone.assigned", "mission", m.ID, actorID, events.EventPayload{
		"drone_id":   d.ID,
		"mission_id": m.ID,
	}); err != nil {
		return domain.Mission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Mission{}, err
	}
	m.AssignedDrone = &d.ID
	return m, nil
}

// PilotAvailability checks a pilot against an explicit window. Dates
// accept RFC 3339 or YYYY-MM-DD.
func (e Engine) PilotAvailability(ctx context.Context, pilotID, start, end string) (bool, domain.Pilot, error) {
	p, err := e.getPilot(ctx, pilotID)
	if err != nil {
		return false, domain.Pilot{}, err
	}
	from, err := parseDate(start)
	if err != nil {
		return false, domain.Pilot{}, fmt.Errorf("invalid start date: %w", err)
	}
	to, err := parseDate(end)
	if err != nil {
		return false, domain.Pilot{}, fmt.Errorf("invalid end date: %w", err)
	}
	if !from.Before(to) {
		return false, domain.Pilot{}, errors.New("invalid window: start must be before end")
	}
	return rules.PilotAvailable(p, from, to), p, nil
}

// Summary aggregates per-status counts across the store.
type Summary struct {
	DeskID             string         `json:"desk_id"`
	PilotsByStatus     map[string]int `json:"pilots_by_status"`
	DronesByStatus     map[string]int `json:"drones_by_status"`
	MissionsTotal      int            `json:"missions_total"`
	MissionsAssigned   int            `json:"missions_assigned"`
	MissionsUnassigned int            `json:"missions_unassigned"`
}

func (e Engine) Summary(ctx context.Context) (Summary, error) {
	s := Summary{}
	if e.Config != nil {
		s.DeskID = e.Config.Desk.ID
	}
	var err error
	if s.PilotsByStatus, err = e.Repo.CountPilotsByStatus(ctx); err != nil {
		return Summary{}, err
	}
	if s.DronesByStatus, err = e.Repo.CountDronesByStatus(ctx); err != nil {
		return Summary{}, err
	}
	if s.MissionsTotal, s.MissionsAssigned, s.MissionsUnassigned, err = e.Repo.MissionCounts(ctx); err != nil {
		return Summary{}, err
	}
	return s, nil
}

func (e Engine) getPilot(ctx context.Context, id string) (domain.Pilot, error) {
	p, err := e.Repo.GetPilot(ctx, id)
	if err != nil {
		return domain.Pilot{}, fmt.Errorf("pilot %s: %w", id, err)
	}
	return p, nil
}

func (e Engine) getDrone(ctx context.Context, id string) (domain.Drone, error) {
	d, err := e.Repo.GetDrone(ctx, id)
	if err != nil {
		return domain.Drone{}, fmt.Errorf("drone %s: %w", id, err)
	}
	return d, nil
}

func (e Engine) getMission(ctx context.Context, id string) (domain.Mission, error) {
	m, err := e.Repo.GetMission(ctx, id)
	if err != nil {
		return domain.Mission{}, fmt.Errorf("mission %s: %w", id, err)
	}
	return m, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}
