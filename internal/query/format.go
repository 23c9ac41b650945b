package query

import (
	"fmt"
	"strings"

	"github.com/akshaydotweb/drone-ops-ai/internal/domain"
	"github.com/akshaydotweb/drone-ops-ai/internal/engine"
)

const helpText = `I can help with:
- "available pilots in pune"        list free pilots, optionally by location
- "available drones"                list free drones
- "pilot P1" / "drone D1"           entity details
- "is P1 available"                 availability check
- "mission PRJ001"                  mission details
- "list missions"                   the whole board
- "recommend pilot for PRJ001"      best candidate (also: drone)
- "alternatives to P1 for PRJ001"   other qualified pilots
- "assign P1 to PRJ001"             make an assignment (also: drones)
- "conflicts" / "conflicts PRJ001"  audit the roster
- "status"                          desk summary`

func formatPilot(p domain.Pilot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pilot %s: %s\n", p.ID, p.Name)
	fmt.Fprintf(&b, "  Location: %s\n", p.Location)
	fmt.Fprintf(&b, "  Status: %s\n", p.Status)
	fmt.Fprintf(&b, "  Skills: %s\n", joinOrNone(p.Skills))
	fmt.Fprintf(&b, "  Certifications: %s\n", joinOrNone(p.Certifications))
	if p.CurrentAssignment != nil {
		fmt.Fprintf(&b, "  Current assignment: %s\n", *p.CurrentAssignment)
	}
	if p.AvailableFrom != nil {
		fmt.Fprintf(&b, "  Available from: %s\n", p.AvailableFrom.Format("2006-01-02"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDrone(d domain.Drone) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Drone %s: %s\n", d.ID, d.Model)
	fmt.Fprintf(&b, "  Location: %s\n", d.Location)
	fmt.Fprintf(&b, "  Status: %s\n", d.Status)
	fmt.Fprintf(&b, "  Capabilities: %s\n", joinOrNone(d.Capabilities))
	if d.CurrentAssignment != nil {
		fmt.Fprintf(&b, "  Current assignment: %s\n", *d.CurrentAssignment)
	}
	if d.MaintenanceDue != nil {
		fmt.Fprintf(&b, "  Maintenance due: %s\n", d.MaintenanceDue.Format("2006-01-02"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatMission(m domain.Mission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mission %s for %s\n", m.ID, m.Client)
	fmt.Fprintf(&b, "  Location: %s\n", m.Location)
	fmt.Fprintf(&b, "  Window: %s to %s\n", m.StartDate.Format("2006-01-02"), m.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "  Priority: %s\n", m.Priority)
	fmt.Fprintf(&b, "  Required skills: %s\n", joinOrNone(m.RequiredSkills))
	fmt.Fprintf(&b, "  Required certifications: %s\n", joinOrNone(m.RequiredCerts))
	fmt.Fprintf(&b, "  Pilot: %s\n", linkOrUnassigned(m.AssignedPilot))
	fmt.Fprintf(&b, "  Drone: %s\n", linkOrUnassigned(m.AssignedDrone))
	return strings.TrimRight(b.String(), "\n")
}

func missionLine(m domain.Mission) string {
	marker := ""
	if m.Urgent() {
		marker = " [!]"
	}
	return fmt.Sprintf("%s: %s in %s, %s to %s, %s%s, pilot %s, drone %s",
		m.ID, m.Client, m.Location,
		m.StartDate.Format("2006-01-02"), m.EndDate.Format("2006-01-02"),
		m.Priority, marker,
		linkOrUnassigned(m.AssignedPilot), linkOrUnassigned(m.AssignedDrone))
}

// formatConflicts groups findings by severity, critical first.
func formatConflicts(conflicts []domain.Conflict, emptyText string) string {
	if len(conflicts) == 0 {
		return emptyText
	}
	groups := map[string][]domain.Conflict{}
	for _, c := range conflicts {
		groups[c.Severity] = append(groups[c.Severity], c)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d conflict(s) detected:\n", len(conflicts))
	for _, sev := range []string{domain.SeverityCritical, domain.SeverityMajor, domain.SeverityMinor} {
		for _, c := range groups[sev] {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", strings.ToUpper(c.Severity), c.Type, c.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSummary(s engine.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Desk %s\n", s.DeskID)
	fmt.Fprintf(&b, "  Missions: %d total, %d assigned, %d unassigned\n", s.MissionsTotal, s.MissionsAssigned, s.MissionsUnassigned)
	fmt.Fprintf(&b, "  Pilots: %s\n", formatCounts(s.PilotsByStatus, []string{domain.PilotAvailable, domain.PilotAssigned, domain.PilotOnLeave, domain.PilotUnavailable}))
	fmt.Fprintf(&b, "  Drones: %s\n", formatCounts(s.DronesByStatus, []string{domain.DroneAvailable, domain.DroneDeployed, domain.DroneMaintenance}))
	return strings.TrimRight(b.String(), "\n")
}

func formatCounts(counts map[string]int, order []string) string {
	var parts []string
	for _, status := range order {
		if n, ok := counts[status]; ok {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func joinOrNone(tags []string) string {
	if len(tags) == 0 {
		return "none"
	}
	return strings.Join(tags, ", ")
}

func linkOrUnassigned(link *string) string {
	if link == nil {
		return "unassigned"
	}
	return *link
}
