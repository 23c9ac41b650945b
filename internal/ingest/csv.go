// Package ingest reads roster, fleet, and mission CSV files. Any malformed
// record aborts the whole record set; there are no partial or defaulted rows.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/akshaydotweb/drone-ops-ai/internal/domain"
)

// Loader parses CSV inputs against a location catalog.
type Loader struct {
	// KnownLocation gates every location tag in the input. Nil accepts all.
	KnownLocation func(string) bool
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}

// splitList splits a comma-joined list field, trimming each element and
// dropping empties. An empty field is an empty list, not a list of one
// empty string.
func splitList(field string) []string {
	parts := strings.Split(field, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if out == nil {
		out = []string{}
	}
	return out
}

type record struct {
	index  map[string]int
	fields []string
	line   int
}

func (r record) get(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r record) require(col string) (string, error) {
	v := r.get(col)
	if v == "" {
		return "", fmt.Errorf("line %d: missing required field %s", r.line, col)
	}
	return v, nil
}

// optional normalizes an empty field to absent.
func (r record) optional(col string) *string {
	v := r.get(col)
	if v == "" {
		return nil
	}
	return &v
}

func (r record) optionalDate(col string) (*time.Time, error) {
	v := r.get(col)
	if v == "" {
		return nil, nil
	}
	t, err := parseDate(v)
	if err != nil {
		return nil, fmt.Errorf("line %d: field %s: %w", r.line, col, err)
	}
	return &t, nil
}

func readRecords(rd io.Reader, required []string) ([]record, error) {
	cr := csv.NewReader(rd)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input, header row required")
	}
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing required column %s", col)
		}
	}
	var records []record
	line := 1
	for {
		fields, err := cr.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, record{index: index, fields: fields, line: line})
	}
	return records, nil
}

func (l Loader) checkLocation(line int, tag string) error {
	if l.KnownLocation != nil && !l.KnownLocation(tag) {
		return fmt.Errorf("line %d: unknown location %q", line, tag)
	}
	return nil
}

// Pilots parses a pilot roster CSV.
func (l Loader) Pilots(rd io.Reader) ([]domain.Pilot, error) {
	records, err := readRecords(rd, []string{"id", "name", "skills", "certifications", "location", "status"})
	if err != nil {
		return nil, err
	}
	var pilots []domain.Pilot
	for _, rec := range records {
		var p domain.Pilot
		if p.ID, err = rec.require("id"); err != nil {
			return nil, err
		}
		if p.Name, err = rec.require("name"); err != nil {
			return nil, err
		}
		if p.Location, err = rec.require("location"); err != nil {
			return nil, err
		}
		if err := l.checkLocation(rec.line, p.Location); err != nil {
			return nil, err
		}
		if p.Status, err = rec.require("status"); err != nil {
			return nil, err
		}
		p.Skills = splitList(rec.get("skills"))
		p.Certifications = splitList(rec.get("certifications"))
		p.CurrentAssignment = rec.optional("current_assignment")
		if p.AvailableFrom, err = rec.optionalDate("available_from"); err != nil {
			return nil, err
		}
		pilots = append(pilots, p)
	}
	return pilots, nil
}

// Drones parses a drone fleet CSV.
func (l Loader) Drones(rd io.Reader) ([]domain.Drone, error) {
	records, err := readRecords(rd, []string{"id", "model", "capabilities", "status", "location"})
	if err != nil {
		return nil, err
	}
	var drones []domain.Drone
	for _, rec := range records {
		var d domain.Drone
		if d.ID, err = rec.require("id"); err != nil {
			return nil, err
		}
		if d.Model, err = rec.require("model"); err != nil {
			return nil, err
		}
		if d.Status, err = rec.require("status"); err != nil {
			return nil, err
		}
		if d.Location, err = rec.require("location"); err != nil {
			return nil, err
		}
		if err := l.checkLocation(rec.line, d.Location); err != nil {
			return nil, err
		}
		d.Capabilities = splitList(rec.get("capabilities"))
		d.CurrentAssignment = rec.optional("current_assignment")
		if d.MaintenanceDue, err = rec.optionalDate("maintenance_due"); err != nil {
			return nil, err
		}
		drones = append(drones, d)
	}
	return drones, nil
}

// Missions parses a mission CSV. The assigned_pilot and assigned_drone
// columns are optional and seed links for later audit sweeps.
func (l Loader) Missions(rd io.Reader) ([]domain.Mission, error) {
	records, err := readRecords(rd, []string{"id", "client", "location", "required_skills", "required_certs", "start_date", "end_date", "priority"})
	if err != nil {
		return nil, err
	}
	var missions []domain.Mission
	for _, rec := range records {
		var m domain.Mission
		if m.ID, err = rec.require("id"); err != nil {
			return nil, err
		}
		if m.Client, err = rec.require("client"); err != nil {
			return nil, err
		}
		if m.Location, err = rec.require("location"); err != nil {
			return nil, err
		}
		if err := l.checkLocation(rec.line, m.Location); err != nil {
			return nil, err
		}
		if m.Priority, err = rec.require("priority"); err != nil {
			return nil, err
		}
		start, err := rec.require("start_date")
		if err != nil {
			return nil, err
		}
		if m.StartDate, err = parseDate(start); err != nil {
			return nil, fmt.Errorf("line %d: field start_date: %w", rec.line, err)
		}
		end, err := rec.require("end_date")
		if err != nil {
			return nil, err
		}
		if m.EndDate, err = parseDate(end); err != nil {
			return nil, fmt.Errorf("line %d: field end_date: %w", rec.line, err)
		}
		if !m.StartDate.Before(m.EndDate) {
			return nil, fmt.Errorf("line %d: mission %s has start_date on or after end_date", rec.line, m.ID)
		}
		m.RequiredSkills = splitList(rec.get("required_skills"))
		m.RequiredCerts = splitList(rec.get("required_certs"))
		m.AssignedPilot = rec.optional("assigned_pilot")
		m.AssignedDrone = rec.optional("assigned_drone")
		missions = append(missions, m)
	}
	return missions, nil
}

// Files loads all three CSVs from disk into one roster.
func (l Loader) Files(pilotsPath, dronesPath, missionsPath string) (domain.Roster, error) {
	var roster domain.Roster
	if err := l.loadFile(pilotsPath, func(rd io.Reader) error {
		pilots, err := l.Pilots(rd)
		roster.Pilots = pilots
		return err
	}); err != nil {
		return domain.Roster{}, fmt.Errorf("pilots %s: %w", pilotsPath, err)
	}
	if err := l.loadFile(dronesPath, func(rd io.Reader) error {
		drones, err := l.Drones(rd)
		roster.Drones = drones
		return err
	}); err != nil {
		return domain.Roster{}, fmt.Errorf("drones %s: %w", dronesPath, err)
	}
	if err := l.loadFile(missionsPath, func(rd io.Reader) error {
		missions, err := l.Missions(rd)
		roster.Missions = missions
		return err
	}); err != nil {
		return domain.Roster{}, fmt.Errorf("missions %s: %w", missionsPath, err)
	}
	return roster, nil
}

func (l Loader) loadFile(path string, parse func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return parse(f)
}
