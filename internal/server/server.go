package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/akshaydotweb/drone-ops-ai/internal/conflict"
	"github.com/akshaydotweb/drone-ops-ai/internal/domain"
	"github.com/akshaydotweb/drone-ops-ai/internal/engine"
	"github.com/akshaydotweb/drone-ops-ai/internal/query"
	"github.com/akshaydotweb/drone-ops-ai/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Detector conflict.Detector
	Chat     *query.Dispatcher
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"mission PRJ001: not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"missing\":[\"thermal\"]}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Drone Ops API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Drone Ops API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerStatus(group, cfg.Engine)
	registerPilots(group, cfg.Engine)
	registerDrones(group, cfg.Engine)
	registerMissions(group, cfg.Engine, cfg.Detector)
	registerConflicts(group, cfg.Detector)
	registerChat(group, cfg.Chat)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ie engine.IneligibleError
	if errors.As(err, &ie) {
		details := map[string]any{"entity": ie.Entity, "id": ie.ID}
		if len(ie.Missing) > 0 {
			details["missing"] = ie.Missing
		}
		return newAPIError(http.StatusConflict, "ineligible", err.Error(), details)
	}
	if errors.Is(err, engine.ErrNoCandidates) {
		return newAPIError(http.StatusNotFound, "no_candidates", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	devLoginPath := path.Join(basePath, "auth/dev/login")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	if !strings.HasPrefix(devLoginPath, "/") {
		devLoginPath = "/" + devLoginPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath || route == devLoginPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Drone Ops API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerStatus(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Desk summary",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Summary `json:"body"`
	}, error) {
		s, err := e.Summary(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Summary `json:"body"`
		}{Body: s}, nil
	})
}

func registerPilots(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-available-pilots",
		Method:      http.MethodGet,
		Path:        "/pilots/available",
		Summary:     "List available pilots",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Location string `query:"location"`
		Skill    string `query:"skill"`
	}) (*struct {
		Body []domain.Pilot `json:"body"`
	}, error) {
		items, err := e.Repo.FindAvailablePilots(ctx, input.Location, input.Skill)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Pilot `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-pilot",
		Method:      http.MethodGet,
		Path:        "/pilots/{pilot_id}",
		Summary:     "Get pilot",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PilotID string `path:"pilot_id"`
	}) (*struct {
		Body domain.Pilot `json:"body"`
	}, error) {
		p, err := e.Repo.GetPilot(ctx, input.PilotID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Pilot `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pilot-availability",
		Method:      http.MethodGet,
		Path:        "/pilots/{pilot_id}/availability",
		Summary:     "Check pilot availability for a window",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PilotID string `path:"pilot_id"`
		Start   string `query:"start" required:"true"`
		End     string `query:"end" required:"true"`
	}) (*struct {
		Body AvailabilityResponse `json:"body"`
	}, error) {
		ok, p, err := e.PilotAvailability(ctx, input.PilotID, input.Start, input.End)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AvailabilityResponse `json:"body"`
		}{Body: AvailabilityResponse{
			PilotID:   p.ID,
			Start:     input.Start,
			End:       input.End,
			Available: ok,
			Status:    p.Status,
		}}, nil
	})
}

func registerDrones(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-available-drones",
		Method:      http.MethodGet,
		Path:        "/drones/available",
		Summary:     "List available drones",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Location   string `query:"location"`
		Capability string `query:"capability"`
	}) (*struct {
		Body []domain.Drone `json:"body"`
	}, error) {
		items, err := e.Repo.FindAvailableDrones(ctx, input.Location, input.Capability)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Drone `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-drone",
		Method:      http.MethodGet,
		Path:        "/drones/{drone_id}",
		Summary:     "Get drone",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DroneID string `path:"drone_id"`
	}) (*struct {
		Body domain.Drone `json:"body"`
	}, error) {
		d, err := e.Repo.GetDrone(ctx, input.DroneID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Drone `json:"body"`
		}{Body: d}, nil
	})
}

func registerMissions(api huma.API, e engine.Engine, det conflict.Detector) {
	huma.Register(api, huma.Operation{
		OperationID: "list-missions",
		Method:      http.MethodGet,
		Path:        "/missions",
		Summary:     "List missions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Mission `json:"body"`
	}, error) {
		items, err := e.Repo.ListMissions(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Mission `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-mission",
		Method:      http.MethodGet,
		Path:        "/missions/{mission_id}",
		Summary:     "Get mission",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MissionID string `path:"mission_id"`
	}) (*struct {
		Body domain.Mission `json:"body"`
	}, error) {
		m, err := e.Repo.GetMission(ctx, input.MissionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Mission `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recommend-pilot",
		Method:      http.MethodGet,
		Path:        "/missions/{mission_id}/recommendations/pilot",
		Summary:     "Best pilot for a mission",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MissionID string `path:"mission_id"`
	}) (*struct {
		Body PilotRecommendationResponse `json:"body"`
	}, error) {
		p, err := e.BestPilotFor(ctx, input.MissionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PilotRecommendationResponse `json:"body"`
		}{Body: PilotRecommendationResponse{MissionID: input.MissionID, Pilot: p}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recommend-drone",
		Method:      http.MethodGet,
		Path:        "/missions/{mission_id}/recommendations/drone",
		Summary:     "Best drone for a mission",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MissionID string `path:"mission_id"`
	}) (*struct {
		Body DroneRecommendationResponse `json:"body"`
	}, error) {
		d, err := e.BestDroneFor(ctx, input.MissionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DroneRecommendationResponse `json:"body"`
		}{Body: DroneRecommendationResponse{MissionID: input.MissionID, Drone: d}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "alternative-pilots",
		Method:      http.MethodGet,
		Path:        "/missions/{mission_id}/recommendations/alternatives",
		Summary:     "Alternative pilots for a mission",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MissionID string `path:"mission_id"`
		Exclude   string `query:"exclude"`
	}) (*struct {
		Body AlternativesResponse `json:"body"`
	}, error) {
		candidates, err := e.AlternativePilotsFor(ctx, input.Exclude, input.MissionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AlternativesResponse `json:"body"`
		}{Body: AlternativesResponse{
			MissionID:  input.MissionID,
			Excluded:   input.Exclude,
			Candidates: nonNilSlice(candidates),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-pilot",
		Method:      http.MethodPost,
		Path:        "/missions/{mission_id}/assignments/pilot",
		Summary:     "Assign a pilot to a mission",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		MissionID string             `path:"mission_id"`
		Body      AssignPilotRequest `json:"body"`
	}) (*struct {
		Body domain.Mission `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if strings.TrimSpace(input.Body.PilotID) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "pilot_id is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.AssignPilot(ctx, input.Body.PilotID, input.MissionID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Mission `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-drone",
		Method:      http.MethodPost,
		Path:        "/missions/{mission_id}/assignments/drone",
		Summary:     "Assign a drone to a mission",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		MissionID string             `path:"mission_id"`
		Body      AssignDroneRequest `json:"body"`
	}) (*struct {
		Body domain.Mission `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if strings.TrimSpace(input.Body.DroneID) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "drone_id is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.AssignDrone(ctx, input.Body.DroneID, input.MissionID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Mission `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mission-conflicts",
		Method:      http.MethodGet,
		Path:        "/missions/{mission_id}/conflicts",
		Summary:     "Conflicts touching one mission",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MissionID string `path:"mission_id"`
	}) (*struct {
		Body ConflictsResponse `json:"body"`
	}, error) {
		conflicts, err := det.ForMission(ctx, input.MissionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ConflictsResponse `json:"body"`
		}{Body: ConflictsResponse{Conflicts: nonNilSlice(conflicts)}}, nil
	})
}

func registerConflicts(api huma.API, det conflict.Detector) {
	huma.Register(api, huma.Operation{
		OperationID: "list-conflicts",
		Method:      http.MethodGet,
		Path:        "/conflicts",
		Summary:     "Audit the whole roster",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ConflictsResponse `json:"body"`
	}, error) {
		conflicts, err := det.DetectAll(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ConflictsResponse `json:"body"`
		}{Body: ConflictsResponse{Conflicts: nonNilSlice(conflicts)}}, nil
	})
}

func registerChat(api huma.API, dispatcher *query.Dispatcher) {
	huma.Register(api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/chat",
		Summary:     "Ask the assignment desk a question",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ChatRequest `json:"body"`
	}) (*struct {
		Body ChatResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if strings.TrimSpace(input.Body.Query) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "query is required", nil)
		}
		reply, err := dispatcher.Answer(ctx, input.Body.Query)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChatResponse `json:"body"`
		}{Body: ChatResponse{Reply: reply}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}
