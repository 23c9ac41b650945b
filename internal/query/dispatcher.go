// Package query turns operator free text into desk calls. Routing is a
// prioritized rule list: the first matching rule handles the query, and a
// default handler suggests commands when nothing matches.
package query

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/akshaydotweb/drone-ops-ai/internal/conflict"
	"github.com/akshaydotweb/drone-ops-ai/internal/domain"
	"github.com/akshaydotweb/drone-ops-ai/internal/engine"
)

var (
	missionRe = regexp.MustCompile(`(?i)\bPRJ\d+\b`)
	pilotRe   = regexp.MustCompile(`(?i)\bP\d+\b`)
	droneRe   = regexp.MustCompile(`(?i)\bD\d+\b`)
)

// Answerer is the optional LLM passthrough.
type Answerer interface {
	Answer(ctx context.Context, system, query string) (string, error)
}

type Dispatcher struct {
	Engine    engine.Engine
	Detector  conflict.Detector
	Locations []string
	LLM       Answerer

	rules []rule
}

type rule struct {
	match  func(q string) bool
	handle func(ctx context.Context, d *Dispatcher, raw, q string) (string, error)
}

func New(e engine.Engine, det conflict.Detector, locations []string, llm Answerer) *Dispatcher {
	d := &Dispatcher{Engine: e, Detector: det, Locations: locations, LLM: llm}
	d.rules = buildRules()
	return d
}

// Answer routes one query. When an LLM client is configured it gets the
// first try; any failure falls back to the rule table so the desk keeps
// working offline.
func (d *Dispatcher) Answer(ctx context.Context, raw string) (string, error) {
	if d.LLM != nil {
		if reply, err := d.LLM.Answer(ctx, d.systemPrompt(ctx), raw); err == nil {
			return reply, nil
		}
	}
	return d.RuleBased(ctx, raw)
}

// RuleBased routes through the rule table only.
func (d *Dispatcher) RuleBased(ctx context.Context, raw string) (string, error) {
	q := strings.ToLower(strings.TrimSpace(raw))
	if q == "" {
		return helpText, nil
	}
	for _, r := range d.rules {
		if r.match(q) {
			return r.handle(ctx, d, raw, q)
		}
	}
	return d.suggest(q), nil
}

func (d *Dispatcher) systemPrompt(ctx context.Context) string {
	var b strings.Builder
	b.WriteString("You are the coordination assistant for a drone operations desk. ")
	b.WriteString("Answer using only the roster data provided.\n")
	if s, err := d.Engine.Summary(ctx); err == nil {
		fmt.Fprintf(&b, "Current state: %d missions (%d assigned), pilots by status %v, drones by status %v.\n",
			s.MissionsTotal, s.MissionsAssigned, s.PilotsByStatus, s.DronesByStatus)
	}
	return b.String()
}

func contains(q string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

func buildRules() []rule {
	return []rule{
		{
			match: func(q string) bool { return q == "help" || q == "?" || strings.HasPrefix(q, "help ") },
			handle: func(_ context.Context, _ *Dispatcher, _, _ string) (string, error) {
				return helpText, nil
			},
		},
		{
			match:  func(q string) bool { return contains(q, "conflict") },
			handle: handleConflicts,
		},
		{
			match: func(q string) bool {
				return contains(q, "assign") && missionRe.MatchString(q)
			},
			handle: handleAssign,
		},
		{
			match: func(q string) bool {
				return contains(q, "alternative", "instead of", "other pilots") && missionRe.MatchString(q)
			},
			handle: handleAlternatives,
		},
		{
			match: func(q string) bool {
				return contains(q, "recommend", "best", "suggest") && missionRe.MatchString(q)
			},
			handle: handleRecommend,
		},
		{
			// Ordered before the per-pilot availability rule: a query
			// naming both "pilot" and an availability word lands here
			// even when it carries a pilot ID.
			match: func(q string) bool {
				return contains(q, "pilot") && contains(q, "available", "free", "who can")
			},
			handle: handleAvailablePilots,
		},
		{
			match: func(q string) bool {
				return contains(q, "drone") && contains(q, "available", "free")
			},
			handle: handleAvailableDrones,
		},
		{
			match: func(q string) bool {
				return contains(q, "available") && pilotRe.MatchString(q) && !contains(q, "drone")
			},
			handle: handlePilotAvailability,
		},
		{
			match:  func(q string) bool { return pilotRe.MatchString(q) && !missionRe.MatchString(q) },
			handle: handlePilotDetails,
		},
		{
			match:  func(q string) bool { return droneRe.MatchString(q) && !missionRe.MatchString(q) },
			handle: handleDroneDetails,
		},
		{
			match:  func(q string) bool { return missionRe.MatchString(q) },
			handle: handleMissionDetails,
		},
		{
			match: func(q string) bool {
				return contains(q, "missions", "projects") || (contains(q, "list") && contains(q, "mission", "project"))
			},
			handle: handleMissionList,
		},
		{
			match:  func(q string) bool { return contains(q, "status", "summary", "overview") },
			handle: handleStatus,
		},
	}
}

// extractMission returns the first mission ID in the query, uppercased.
func extractMission(raw string) string {
	return strings.ToUpper(missionRe.FindString(raw))
}

// extractPilot returns the first pilot ID that is not part of a mission ID.
func extractPilot(raw string) string {
	cleaned := missionRe.ReplaceAllString(raw, "")
	return strings.ToUpper(pilotRe.FindString(cleaned))
}

func extractDrone(raw string) string {
	return strings.ToUpper(droneRe.FindString(raw))
}

// extractLocation finds the first catalog tag mentioned in the query.
func (d *Dispatcher) extractLocation(q string) string {
	for _, loc := range d.Locations {
		if strings.Contains(q, strings.ToLower(loc)) {
			return loc
		}
	}
	return ""
}

func handleConflicts(ctx context.Context, d *Dispatcher, raw, _ string) (string, error) {
	if id := extractMission(raw); id != "" {
		conflicts, err := d.Detector.ForMission(ctx, id)
		if err != nil {
			return "", err
		}
		return formatConflicts(conflicts, "No conflicts detected for "+id+"."), nil
	}
	conflicts, err := d.Detector.DetectAll(ctx)
	if err != nil {
		return "", err
	}
	return formatConflicts(conflicts, "No conflicts detected across the roster."), nil
}

func handleAssign(ctx context.Context, d *Dispatcher, raw, _ string) (string, error) {
	missionID := extractMission(raw)
	if droneID := extractDrone(raw); droneID != "" {
		m, err := d.Engine.AssignDrone(ctx, droneID, missionID, "chat")
		if err != nil {
			return assignFailure(err), nil
		}
		return fmt.Sprintf("Assigned drone %s to mission %s.", droneID, m.ID), nil
	}
	pilotID := extractPilot(raw)
	if pilotID == "" {
		return "Tell me which pilot or drone to assign, e.g. \"assign P1 to PRJ001\".", nil
	}
	m, err := d.Engine.AssignPilot(ctx, pilotID, missionID, "chat")
	if err != nil {
		return assignFailure(err), nil
	}
	return fmt.Sprintf("Assigned pilot %s to mission %s.", pilotID, m.ID), nil
}

// assignFailure turns expected assignment errors into operator text.
// Unexpected errors are reported too; the chat surface never panics.
func assignFailure(err error) string {
	return "Assignment failed: " + err.Error()
}

func handleRecommend(ctx context.Context, d *Dispatcher, raw, q string) (string, error) {
	missionID := extractMission(raw)
	if contains(q, "drone") {
		dr, err := d.Engine.BestDroneFor(ctx, missionID)
		if err != nil {
			return "No suitable drone found for " + missionID + ".", nil
		}
		return fmt.Sprintf("Best drone for %s: %s (%s, %s, capabilities: %s)",
			missionID, dr.ID, dr.Model, dr.Location, strings.Join(dr.Capabilities, ", ")), nil
	}
	p, err := d.Engine.BestPilotFor(ctx, missionID)
	if err != nil {
		return "No suitable pilot found for " + missionID + ".", nil
	}
	return fmt.Sprintf("Best pilot for %s: %s (%s, %s, skills: %s)",
		missionID, p.ID, p.Name, p.Location, strings.Join(p.Skills, ", ")), nil
}

func handleAlternatives(ctx context.Context, d *Dispatcher, raw, _ string) (string, error) {
	missionID := extractMission(raw)
	excluded := extractPilot(raw)
	alts, err := d.Engine.AlternativePilotsFor(ctx, excluded, missionID)
	if err != nil {
		return "", err
	}
	if len(alts) == 0 {
		return "No alternative pilots for " + missionID + ".", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Alternative pilots for %s:\n", missionID)
	for _, a := range alts {
		note := "different location"
		if a.LocationMatch {
			note = "same location"
		}
		fmt.Fprintf(&b, "- %s (%s, %s, %s)\n", a.Pilot.ID, a.Pilot.Name, a.Pilot.Location, note)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func handleAvailablePilots(ctx context.Context, d *Dispatcher, _, q string) (string, error) {
	location := d.extractLocation(q)
	pilots, err := d.Engine.Repo.FindAvailablePilots(ctx, location, "")
	if err != nil {
		return "", err
	}
	if len(pilots) == 0 {
		if location != "" {
			return "No available pilots in " + location + ".", nil
		}
		return "No available pilots.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d available pilot(s):\n", len(pilots))
	for _, p := range pilots {
		fmt.Fprintf(&b, "- %s: %s (%s, skills: %s)\n", p.ID, p.Name, p.Location, strings.Join(p.Skills, ", "))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func handleAvailableDrones(ctx context.Context, d *Dispatcher, _, q string) (string, error) {
	location := d.extractLocation(q)
	drones, err := d.Engine.Repo.FindAvailableDrones(ctx, location, "")
	if err != nil {
		return "", err
	}
	if len(drones) == 0 {
		if location != "" {
			return "No available drones in " + location + ".", nil
		}
		return "No available drones.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d available drone(s):\n", len(drones))
	for _, dr := range drones {
		fmt.Fprintf(&b, "- %s: %s (%s, capabilities: %s)\n", dr.ID, dr.Model, dr.Location, strings.Join(dr.Capabilities, ", "))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func handlePilotAvailability(ctx context.Context, d *Dispatcher, raw, _ string) (string, error) {
	pilotID := extractPilot(raw)
	p, err := d.Engine.Repo.GetPilot(ctx, pilotID)
	if err != nil {
		return "Pilot " + pilotID + " not found.", nil
	}
	if p.Status == domain.PilotAvailable {
		if p.AvailableFrom != nil {
			return fmt.Sprintf("%s (%s) is available from %s.", p.ID, p.Name, p.AvailableFrom.Format("2006-01-02")), nil
		}
		return fmt.Sprintf("%s (%s) is available now.", p.ID, p.Name), nil
	}
	return fmt.Sprintf("%s (%s) is not available: status %s.", p.ID, p.Name, p.Status), nil
}

func handlePilotDetails(ctx context.Context, d *Dispatcher, raw, _ string) (string, error) {
	pilotID := extractPilot(raw)
	p, err := d.Engine.Repo.GetPilot(ctx, pilotID)
	if err != nil {
		return "Pilot " + pilotID + " not found.", nil
	}
	return formatPilot(p), nil
}

func handleDroneDetails(ctx context.Context, d *Dispatcher, raw, _ string) (string, error) {
	droneID := extractDrone(raw)
	dr, err := d.Engine.Repo.GetDrone(ctx, droneID)
	if err != nil {
		return "Drone " + droneID + " not found.", nil
	}
	return formatDrone(dr), nil
}

func handleMissionDetails(ctx context.Context, d *Dispatcher, raw, _ string) (string, error) {
	missionID := extractMission(raw)
	m, err := d.Engine.Repo.GetMission(ctx, missionID)
	if err != nil {
		return "Mission " + missionID + " not found.", nil
	}
	return formatMission(m), nil
}

func handleMissionList(ctx context.Context, d *Dispatcher, _, _ string) (string, error) {
	missions, err := d.Engine.Repo.ListMissions(ctx)
	if err != nil {
		return "", err
	}
	if len(missions) == 0 {
		return "No missions on the board.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d mission(s):\n", len(missions))
	for _, m := range missions {
		b.WriteString("- " + missionLine(m) + "\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func handleStatus(ctx context.Context, d *Dispatcher, _, _ string) (string, error) {
	s, err := d.Engine.Summary(ctx)
	if err != nil {
		return "", err
	}
	return formatSummary(s), nil
}

// suggest points the operator at a command when no rule matched.
func (d *Dispatcher) suggest(q string) string {
	switch {
	case contains(q, "pilot"):
		return "Try \"available pilots in pune\", \"pilot P1\", or \"assign P1 to PRJ001\"."
	case contains(q, "drone"):
		return "Try \"available drones\", \"drone D1\", or \"assign D1 to PRJ001\"."
	case contains(q, "mission", "project"):
		return "Try \"list missions\", \"mission PRJ001\", or \"recommend pilot for PRJ001\"."
	default:
		return "I didn't understand that. Type \"help\" for the commands I know."
	}
}
