// Package conflict audits the current roster for assignment problems.
// Every sweep rebuilds the findings from scratch; nothing is persisted
// and repeated sweeps over an unchanged store return the same list.
package conflict

import (
	"context"
	"fmt"
	"strings"

	"github.com/akshaydotweb/drone-ops-ai/internal/domain"
	"github.com/akshaydotweb/drone-ops-ai/internal/repo"
	"github.com/akshaydotweb/drone-ops-ai/internal/rules"
)

type Detector struct {
	Repo repo.Repo
}

// DetectAll sweeps the whole store. Checks run in a fixed order over
// missions in insertion order: double-bookings and maintenance first,
// then skill and certification coverage, then location splits. Findings
// are appended as encountered, never deduplicated across passes.
func (d Detector) DetectAll(ctx context.Context) ([]domain.Conflict, error) {
	snap, err := d.Repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return sweep(snap), nil
}

// ForMission filters a full sweep down to one mission's findings.
func (d Detector) ForMission(ctx context.Context, missionID string) ([]domain.Conflict, error) {
	if _, err := d.Repo.GetMission(ctx, missionID); err != nil {
		return nil, err
	}
	all, err := d.DetectAll(ctx)
	if err != nil {
		return nil, err
	}
	var res []domain.Conflict
	for _, c := range all {
		if c.MissionID == missionID {
			res = append(res, c)
		}
	}
	return res, nil
}

func sweep(snap domain.Roster) []domain.Conflict {
	pilots := make(map[string]domain.Pilot, len(snap.Pilots))
	for _, p := range snap.Pilots {
		pilots[p.ID] = p
	}
	drones := make(map[string]domain.Drone, len(snap.Drones))
	for _, d := range snap.Drones {
		drones[d.ID] = d
	}
	missions := make(map[string]domain.Mission, len(snap.Missions))
	for _, m := range snap.Missions {
		missions[m.ID] = m
	}

	var conflicts []domain.Conflict

	for _, m := range snap.Missions {
		conflicts = append(conflicts, bookingConflicts(m, pilots, drones, missions)...)
	}
	for _, m := range snap.Missions {
		conflicts = append(conflicts, coverageConflicts(m, pilots)...)
	}
	for _, m := range snap.Missions {
		if c, ok := locationConflict(m, pilots, drones); ok {
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

func bookingConflicts(m domain.Mission, pilots map[string]domain.Pilot, drones map[string]domain.Drone, missions map[string]domain.Mission) []domain.Conflict {
	var conflicts []domain.Conflict
	if m.AssignedPilot != nil {
		if p, ok := pilots[*m.AssignedPilot]; ok && p.CurrentAssignment != nil && *p.CurrentAssignment != m.ID {
			if other, ok := missions[*p.CurrentAssignment]; ok &&
				rules.Overlap(m.StartDate, m.EndDate, other.StartDate, other.EndDate) {
				conflicts = append(conflicts, domain.Conflict{
					Type:        domain.ConflictDoubleBooking,
					Severity:    domain.SeverityCritical,
					Description: fmt.Sprintf("Pilot %s is assigned to overlapping projects: %s and %s", p.Name, other.ID, m.ID),
					PilotID:     p.ID,
					MissionID:   m.ID,
				})
			}
		}
	}
	if m.AssignedDrone != nil {
		dr, ok := drones[*m.AssignedDrone]
		if ok && dr.CurrentAssignment != nil && *dr.CurrentAssignment != m.ID {
			if other, ok := missions[*dr.CurrentAssignment]; ok &&
				rules.Overlap(m.StartDate, m.EndDate, other.StartDate, other.EndDate) {
				conflicts = append(conflicts, domain.Conflict{
					Type:        domain.ConflictDoubleBooking,
					Severity:    domain.SeverityCritical,
					Description: fmt.Sprintf("Drone %s is assigned to overlapping projects: %s and %s", dr.ID, other.ID, m.ID),
					DroneID:     dr.ID,
					MissionID:   m.ID,
				})
			}
		}
		if ok && dr.Status == domain.DroneMaintenance {
			conflicts = append(conflicts, domain.Conflict{
				Type:        domain.ConflictMaintenance,
				Severity:    domain.SeverityCritical,
				Description: fmt.Sprintf("Drone %s is in maintenance but assigned to project %s", dr.ID, m.ID),
				DroneID:     dr.ID,
				MissionID:   m.ID,
			})
		}
	}
	return conflicts
}

func coverageConflicts(m domain.Mission, pilots map[string]domain.Pilot) []domain.Conflict {
	if m.AssignedPilot == nil {
		return nil
	}
	p, ok := pilots[*m.AssignedPilot]
	if !ok {
		return nil
	}
	var conflicts []domain.Conflict
	if missing := rules.Missing(p.Skills, m.RequiredSkills); len(missing) > 0 {
		conflicts = append(conflicts, domain.Conflict{
			Type:        domain.ConflictSkillMismatch,
			Severity:    domain.SeverityMajor,
			Description: fmt.Sprintf("Pilot %s lacks required skills for project %s: %s", p.Name, m.ID, strings.Join(missing, ", ")),
			PilotID:     p.ID,
			MissionID:   m.ID,
		})
	}
	if missing := rules.Missing(p.Certifications, m.RequiredCerts); len(missing) > 0 {
		conflicts = append(conflicts, domain.Conflict{
			Type:        domain.ConflictSkillMismatch,
			Severity:    domain.SeverityCritical,
			Description: fmt.Sprintf("Pilot %s lacks required certifications for project %s: %s", p.Name, m.ID, strings.Join(missing, ", ")),
			PilotID:     p.ID,
			MissionID:   m.ID,
		})
	}
	return conflicts
}

func locationConflict(m domain.Mission, pilots map[string]domain.Pilot, drones map[string]domain.Drone) (domain.Conflict, bool) {
	if m.AssignedPilot == nil || m.AssignedDrone == nil {
		return domain.Conflict{}, false
	}
	p, okP := pilots[*m.AssignedPilot]
	dr, okD := drones[*m.AssignedDrone]
	if !okP || !okD || p.Location == dr.Location {
		return domain.Conflict{}, false
	}
	return domain.Conflict{
		Type:     domain.ConflictLocation,
		Severity: domain.SeverityMajor,
		Description: fmt.Sprintf("Pilot %s (%s) and Drone %s (%s) are in different locations for project %s",
			p.Name, p.Location, dr.ID, dr.Location, m.ID),
		PilotID:   p.ID,
		DroneID:   dr.ID,
		MissionID: m.ID,
	}, true
}
