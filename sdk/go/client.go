package droneopssdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Drone Ops HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Pilot represents the API pilot model (partial).
type Pilot struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Skills            []string `json:"skills"`
	Certifications    []string `json:"certifications"`
	Location          string   `json:"location"`
	Status            string   `json:"status"`
	CurrentAssignment *string  `json:"current_assignment,omitempty"`
}

// Drone represents the API drone model (partial).
type Drone struct {
	ID                string   `json:"id"`
	Model             string   `json:"model"`
	Capabilities      []string `json:"capabilities"`
	Status            string   `json:"status"`
	Location          string   `json:"location"`
	CurrentAssignment *string  `json:"current_assignment,omitempty"`
}

// Mission represents the API mission model (partial).
type Mission struct {
	ID            string  `json:"id"`
	Client        string  `json:"client"`
	Location      string  `json:"location"`
	Priority      string  `json:"priority"`
	AssignedPilot *string `json:"assigned_pilot,omitempty"`
	AssignedDrone *string `json:"assigned_drone,omitempty"`
}

// Conflict represents one audit finding.
type Conflict struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	PilotID     string `json:"pilot_id,omitempty"`
	DroneID     string `json:"drone_id,omitempty"`
	MissionID   string `json:"mission_id,omitempty"`
}

// Summary is the desk status rollup.
type Summary struct {
	DeskID             string         `json:"desk_id"`
	PilotsByStatus     map[string]int `json:"pilots_by_status"`
	DronesByStatus     map[string]int `json:"drones_by_status"`
	MissionsTotal      int            `json:"missions_total"`
	MissionsAssigned   int            `json:"missions_assigned"`
	MissionsUnassigned int            `json:"missions_unassigned"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// AvailablePilots lists free pilots, optionally filtered.
func (c *Client) AvailablePilots(ctx context.Context, location, skill string) ([]Pilot, error) {
	endpoint := "pilots/available"
	params := url.Values{}
	if location != "" {
		params.Set("location", location)
	}
	if skill != "" {
		params.Set("skill", skill)
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp []Pilot
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetPilot fetches one pilot.
func (c *Client) GetPilot(ctx context.Context, id string) (Pilot, error) {
	var resp Pilot
	err := c.do(ctx, http.MethodGet, "pilots/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// AvailableDrones lists free drones, optionally filtered.
func (c *Client) AvailableDrones(ctx context.Context, location, capability string) ([]Drone, error) {
	endpoint := "drones/available"
	params := url.Values{}
	if location != "" {
		params.Set("location", location)
	}
	if capability != "" {
		params.Set("capability", capability)
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp []Drone
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ListMissions returns the mission board.
func (c *Client) ListMissions(ctx context.Context) ([]Mission, error) {
	var resp []Mission
	err := c.do(ctx, http.MethodGet, "missions", nil, &resp)
	return resp, err
}

// RecommendPilot returns the best pilot for a mission.
func (c *Client) RecommendPilot(ctx context.Context, missionID string) (Pilot, error) {
	var resp struct {
		Pilot Pilot `json:"pilot"`
	}
	endpoint := fmt.Sprintf("missions/%s/recommendations/pilot", url.PathEscape(missionID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Pilot, err
}

// AssignPilot links a pilot to a mission.
func (c *Client) AssignPilot(ctx context.Context, missionID, pilotID string) (Mission, error) {
	body := map[string]any{"pilot_id": pilotID}
	var resp Mission
	endpoint := fmt.Sprintf("missions/%s/assignments/pilot", url.PathEscape(missionID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// AssignDrone links a drone to a mission.
func (c *Client) AssignDrone(ctx context.Context, missionID, droneID string) (Mission, error) {
	body := map[string]any{"drone_id": droneID}
	var resp Mission
	endpoint := fmt.Sprintf("missions/%s/assignments/drone", url.PathEscape(missionID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Conflicts audits the whole roster.
func (c *Client) Conflicts(ctx context.Context) ([]Conflict, error) {
	var resp struct {
		Conflicts []Conflict `json:"conflicts"`
	}
	err := c.do(ctx, http.MethodGet, "conflicts", nil, &resp)
	return resp.Conflicts, err
}

// Status returns the desk summary.
func (c *Client) Status(ctx context.Context) (Summary, error) {
	var resp Summary
	err := c.do(ctx, http.MethodGet, "status", nil, &resp)
	return resp, err
}

// Chat sends a plain-language question to the desk.
func (c *Client) Chat(ctx context.Context, q string) (string, error) {
	body := map[string]any{"query": q}
	var resp struct {
		Reply string `json:"reply"`
	}
	err := c.do(ctx, http.MethodPost, "chat", body, &resp)
	return resp.Reply, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
