package domain

import "time"

// Pilot statuses.
const (
	PilotAvailable   = "Available"
	PilotAssigned    = "Assigned"
	PilotOnLeave     = "On Leave"
	PilotUnavailable = "Unavailable"
)

// Drone statuses.
const (
	DroneAvailable   = "Available"
	DroneMaintenance = "Maintenance"
	DroneDeployed    = "Deployed"
)

// Mission priorities.
const (
	PriorityStandard = "Standard"
	PriorityHigh     = "High"
	PriorityUrgent   = "Urgent"
)

// Conflict types.
const (
	ConflictDoubleBooking = "double-booking"
	ConflictSkillMismatch = "skill-mismatch"
	ConflictMaintenance   = "maintenance-conflict"
	ConflictLocation      = "location-mismatch"
)

// Conflict severities.
const (
	SeverityCritical = "critical"
	SeverityMajor    = "major"
	SeverityMinor    = "minor"
)

type Pilot struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Skills            []string   `json:"skills"`
	Certifications    []string   `json:"certifications"`
	Location          string     `json:"location"`
	Status            string     `json:"status" enum:"Available,Assigned,On Leave,Unavailable"`
	CurrentAssignment *string    `json:"current_assignment,omitempty"`
	AvailableFrom     *time.Time `json:"available_from,omitempty" format:"date-time"`
}

type Drone struct {
	ID                string     `json:"id"`
	Model             string     `json:"model"`
	Capabilities      []string   `json:"capabilities"`
	Status            string     `json:"status" enum:"Available,Maintenance,Deployed"`
	Location          string     `json:"location"`
	CurrentAssignment *string    `json:"current_assignment,omitempty"`
	MaintenanceDue    *time.Time `json:"maintenance_due,omitempty" format:"date-time"`
}

type Mission struct {
	ID             string    `json:"id"`
	Client         string    `json:"client"`
	Location       string    `json:"location"`
	RequiredSkills []string  `json:"required_skills"`
	RequiredCerts  []string  `json:"required_certs"`
	StartDate      time.Time `json:"start_date" format:"date-time"`
	EndDate        time.Time `json:"end_date" format:"date-time"`
	Priority       string    `json:"priority" enum:"Standard,High,Urgent"`
	AssignedPilot  *string   `json:"assigned_pilot,omitempty"`
	AssignedDrone  *string   `json:"assigned_drone,omitempty"`
}

// Urgent reports whether the mission needs expedited handling.
func (m Mission) Urgent() bool {
	return m.Priority == PriorityUrgent || m.Priority == PriorityHigh
}

// Conflict is a detector finding. It is never persisted; every sweep
// rebuilds the list from the current roster. Empty ID fields mean the
// entity is not implicated.
type Conflict struct {
	Type        string `json:"type" enum:"double-booking,skill-mismatch,maintenance-conflict,location-mismatch"`
	Severity    string `json:"severity" enum:"critical,major,minor"`
	Description string `json:"description"`
	PilotID     string `json:"pilot_id,omitempty"`
	DroneID     string `json:"drone_id,omitempty"`
	MissionID   string `json:"mission_id,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Roster is a full copy of the three collections, in insertion order.
type Roster struct {
	Pilots   []Pilot   `json:"pilots"`
	Drones   []Drone   `json:"drones"`
	Missions []Mission `json:"missions"`
}
