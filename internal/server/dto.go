package server

import (
	"github.com/akshaydotweb/drone-ops-ai/internal/domain"
	"github.com/akshaydotweb/drone-ops-ai/internal/engine"
)

// Request payloads

type AssignPilotRequest struct {
	PilotID string `json:"pilot_id"`
}

type AssignDroneRequest struct {
	DroneID string `json:"drone_id"`
}

type ChatRequest struct {
	Query string `json:"query"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type ChatResponse struct {
	Reply string `json:"reply"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type AvailabilityResponse struct {
	PilotID   string `json:"pilot_id"`
	Start     string `json:"start" format:"date-time"`
	End       string `json:"end" format:"date-time"`
	Available bool   `json:"available"`
	Status    string `json:"status"`
}

type PilotRecommendationResponse struct {
	MissionID string       `json:"mission_id"`
	Pilot     domain.Pilot `json:"pilot"`
}

type DroneRecommendationResponse struct {
	MissionID string       `json:"mission_id"`
	Drone     domain.Drone `json:"drone"`
}

type AlternativesResponse struct {
	MissionID  string                  `json:"mission_id"`
	Excluded   string                  `json:"excluded,omitempty"`
	Candidates []engine.PilotCandidate `json:"candidates"`
}

type ConflictsResponse struct {
	Conflicts []domain.Conflict `json:"conflicts"`
}

// nonNilSlice keeps list endpoints returning [] instead of null.
func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
