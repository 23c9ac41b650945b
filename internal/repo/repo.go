package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/akshaydotweb/drone-ops-ai/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// execer lets writes run either on the DB or inside a caller's transaction.
func (r Repo) execer(tx *sql.Tx) func(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if tx != nil {
		return tx.ExecContext
	}
	return r.DB.ExecContext
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(time.RFC3339)
}

func encodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	data, _ := json.Marshal(tags)
	return string(data)
}

func decodeTags(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("decode tag list: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

func timePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", v.String, err)
	}
	return &t, nil
}

func strPtr(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	s := v.String
	return &s
}

// ---- pilots ----

const pilotColumns = `id,name,skills_json,certifications_json,location,status,current_assignment,available_from`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPilot(row rowScanner) (domain.Pilot, error) {
	var p domain.Pilot
	var skills, certs string
	var assignment, availableFrom sql.NullString
	err := row.Scan(&p.ID, &p.Name, &skills, &certs, &p.Location, &p.Status, &assignment, &availableFrom)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if p.Skills, err = decodeTags(skills); err != nil {
		return p, err
	}
	if p.Certifications, err = decodeTags(certs); err != nil {
		return p, err
	}
	p.CurrentAssignment = strPtr(assignment)
	if p.AvailableFrom, err = timePtr(availableFrom); err != nil {
		return p, err
	}
	return p, nil
}

// UpsertPilot inserts or fully replaces a pilot row. Duplicate IDs are
// last-write-wins by contract.
func (r Repo) UpsertPilot(ctx context.Context, tx *sql.Tx, p domain.Pilot) error {
	_, err := r.execer(tx)(ctx, `INSERT OR REPLACE INTO pilots(`+pilotColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, encodeTags(p.Skills), encodeTags(p.Certifications), p.Location, p.Status,
		nullableStr(p.CurrentAssignment), nullableTime(p.AvailableFrom))
	return err
}

func (r Repo) GetPilot(ctx context.Context, id string) (domain.Pilot, error) {
	return scanPilot(r.DB.QueryRowContext(ctx, `SELECT `+pilotColumns+` FROM pilots WHERE id=?`, id))
}

func (r Repo) ListPilots(ctx context.Context) ([]domain.Pilot, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+pilotColumns+` FROM pilots ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Pilot
	for rows.Next() {
		p, err := scanPilot(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// FindAvailablePilots returns pilots whose status is Available, optionally
// narrowed by exact location and by skill tag membership. Tag filtering
// happens after the scan because skills are stored as JSON arrays.
func (r Repo) FindAvailablePilots(ctx context.Context, location, skill string) ([]domain.Pilot, error) {
	query := `SELECT ` + pilotColumns + ` FROM pilots WHERE status=?`
	args := []any{domain.PilotAvailable}
	if location != "" {
		query += ` AND location=?`
		args = append(args, location)
	}
	query += ` ORDER BY rowid`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Pilot
	for rows.Next() {
		p, err := scanPilot(rows)
		if err != nil {
			return nil, err
		}
		if skill != "" && !containsTag(p.Skills, skill) {
			continue
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// SetPilotStatus writes status and assignment link directly. Unknown IDs
// are a silent no-op.
func (r Repo) SetPilotStatus(ctx context.Context, tx *sql.Tx, id, status string, assignment *string) error {
	_, err := r.execer(tx)(ctx, `UPDATE pilots SET status=?, current_assignment=? WHERE id=?`,
		status, nullableStr(assignment), id)
	return err
}

// ---- drones ----

const droneColumns = `id,model,capabilities_json,status,location,current_assignment,maintenance_due`

func scanDrone(row rowScanner) (domain.Drone, error) {
	var d domain.Drone
	var caps string
	var assignment, due sql.NullString
	err := row.Scan(&d.ID, &d.Model, &caps, &d.Status, &d.Location, &assignment, &due)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if d.Capabilities, err = decodeTags(caps); err != nil {
		return d, err
	}
	d.CurrentAssignment = strPtr(assignment)
	if d.MaintenanceDue, err = timePtr(due); err != nil {
		return d, err
	}
	return d, nil
}

func (r Repo) UpsertDrone(ctx context.Context, tx *sql.Tx, d domain.Drone) error {
	_, err := r.execer(tx)(ctx, `INSERT OR REPLACE INTO drones(`+droneColumns+`) VALUES (?,?,?,?,?,?,?)`,
		d.ID, d.Model, encodeTags(d.Capabilities), d.Status, d.Location,
		nullableStr(d.CurrentAssignment), nullableTime(d.MaintenanceDue))
	return err
}

func (r Repo) GetDrone(ctx context.Context, id string) (domain.Drone, error) {
	return scanDrone(r.DB.QueryRowContext(ctx, `SELECT `+droneColumns+` FROM drones WHERE id=?`, id))
}

func (r Repo) ListDrones(ctx context.Context) ([]domain.Drone, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+droneColumns+` FROM drones ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Drone
	for rows.Next() {
		d, err := scanDrone(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) FindAvailableDrones(ctx context.Context, location, capability string) ([]domain.Drone, error) {
	query := `SELECT ` + droneColumns + ` FROM drones WHERE status=?`
	args := []any{domain.DroneAvailable}
	if location != "" {
		query += ` AND location=?`
		args = append(args, location)
	}
	query += ` ORDER BY rowid`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Drone
	for rows.Next() {
		d, err := scanDrone(rows)
		if err != nil {
			return nil, err
		}
		if capability != "" && !containsTag(d.Capabilities, capability) {
			continue
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// SetDroneStatus writes status and assignment link directly. Unknown IDs
// are a silent no-op.
func (r Repo) SetDroneStatus(ctx context.Context, tx *sql.Tx, id, status string, assignment *string) error {
	_, err := r.execer(tx)(ctx, `UPDATE drones SET status=?, current_assignment=? WHERE id=?`,
		status, nullableStr(assignment), id)
	return err
}

// ---- missions ----

const missionColumns = `id,client,location,required_skills_json,required_certs_json,start_date,end_date,priority,assigned_pilot,assigned_drone`

func scanMission(row rowScanner) (domain.Mission, error) {
	var m domain.Mission
	var skills, certs, start, end string
	var pilot, drone sql.NullString
	err := row.Scan(&m.ID, &m.Client, &m.Location, &skills, &certs, &start, &end, &m.Priority, &pilot, &drone)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	if m.RequiredSkills, err = decodeTags(skills); err != nil {
		return m, err
	}
	if m.RequiredCerts, err = decodeTags(certs); err != nil {
		return m, err
	}
	if m.StartDate, err = time.Parse(time.RFC3339, start); err != nil {
		return m, fmt.Errorf("parse start_date %q: %w", start, err)
	}
	if m.EndDate, err = time.Parse(time.RFC3339, end); err != nil {
		return m, fmt.Errorf("parse end_date %q: %w", end, err)
	}
	m.AssignedPilot = strPtr(pilot)
	m.AssignedDrone = strPtr(drone)
	return m, nil
}

func (r Repo) UpsertMission(ctx context.Context, tx *sql.Tx, m domain.Mission) error {
	_, err := r.execer(tx)(ctx, `INSERT OR REPLACE INTO missions(`+missionColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Client, m.Location, encodeTags(m.RequiredSkills), encodeTags(m.RequiredCerts),
		m.StartDate.UTC().Format(time.RFC3339), m.EndDate.UTC().Format(time.RFC3339),
		m.Priority, nullableStr(m.AssignedPilot), nullableStr(m.AssignedDrone))
	return err
}

func (r Repo) GetMission(ctx context.Context, id string) (domain.Mission, error) {
	return scanMission(r.DB.QueryRowContext(ctx, `SELECT `+missionColumns+` FROM missions WHERE id=?`, id))
}

func (r Repo) ListMissions(ctx context.Context) ([]domain.Mission, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+missionColumns+` FROM missions ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// SetMissionAssignment writes both link columns directly. Unknown IDs are
// a silent no-op. Callers that want to keep one side pass the current value.
func (r Repo) SetMissionAssignment(ctx context.Context, tx *sql.Tx, id string, pilot, drone *string) error {
	_, err := r.execer(tx)(ctx, `UPDATE missions SET assigned_pilot=?, assigned_drone=? WHERE id=?`,
		nullableStr(pilot), nullableStr(drone), id)
	return err
}

// ---- summaries and snapshot ----

func (r Repo) countByStatus(ctx context.Context, table string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM `+table+` GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r Repo) CountPilotsByStatus(ctx context.Context) (map[string]int, error) {
	return r.countByStatus(ctx, "pilots")
}

func (r Repo) CountDronesByStatus(ctx context.Context) (map[string]int, error) {
	return r.countByStatus(ctx, "drones")
}

// MissionCounts returns total, pilot-assigned, and unassigned mission counts.
func (r Repo) MissionCounts(ctx context.Context) (total, assigned, unassigned int, err error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(assigned_pilot) FROM missions`)
	if err = row.Scan(&total, &assigned); err != nil {
		return 0, 0, 0, err
	}
	return total, assigned, total - assigned, nil
}

// Snapshot returns a full copy of the three collections in insertion order.
func (r Repo) Snapshot(ctx context.Context) (domain.Roster, error) {
	var snap domain.Roster
	var err error
	if snap.Pilots, err = r.ListPilots(ctx); err != nil {
		return snap, err
	}
	if snap.Drones, err = r.ListDrones(ctx); err != nil {
		return snap, err
	}
	if snap.Missions, err = r.ListMissions(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

// ---- events ----

func (r Repo) EventsAfter(ctx context.Context, limit int, after int64) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id>? ORDER BY id LIMIT ?`,
		after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEvents returns the most recent events, newest first, optionally
// filtered by event type.
func (r Repo) LatestEvents(ctx context.Context, limit int, evtType string) ([]domain.Event, error) {
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	var args []any
	if evtType != "" {
		query += ` WHERE type=?`
		args = append(args, evtType)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := r.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
