package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"roadwise/internal/engine"
	"roadwise/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"invalid estimated_duration: must be positive"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Roadwise API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema-level request validation errors are 400 bad_request;
			// 422 is reserved for domain validation.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Roadwise API", "0.1.0")
	hcfg.OpenAPIPath = "" // served lazily under the base path instead
	hcfg.DocsPath = ""    // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerAuth(group, cfg)
	registerSignalements(group, cfg.Engine)
	registerMaintenances(group, cfg.Engine)
	registerTeams(group, cfg.Engine)
	registerStats(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerExports(router, basePath, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

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
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), map[string]any{"field": ve.Field})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") || strings.Contains(lowered, "missing") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
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
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Roadwise API Docs</title>
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

func registerAuth(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Operator login",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		op, ok := cfg.Engine.Config.FindOperator(input.Body.Email)
		if !ok || op.Password != input.Body.Password {
			return nil, newAPIError(http.StatusUnauthorized, "invalid_credentials", "unknown email or wrong password", nil)
		}
		now := time.Now()
		if cfg.Engine.Now != nil {
			now = cfg.Engine.Now()
		}
		token, err := issueToken(op, cfg.Auth.JWTSecret, cfg.Auth.tokenTTL(), now)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{
			Token: token,
			User:  UserResponse{ID: op.ID, Name: op.Name, Email: op.Email, Role: op.Role},
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		p, ok := principalFromContext(ctx)
		if !ok || p.ActorID == "" {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		role := ""
		if len(p.Roles) > 0 {
			role = p.Roles[0]
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: UserResponse{ID: p.ActorID, Name: p.Name, Email: p.Email, Role: role}}, nil
	})
}

func registerSignalements(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-signalements",
		Method:      http.MethodGet,
		Path:        "/signalements",
		Summary:     "List signalements",
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status" enum:"new,inProgress,repaired,"`
		Severity string `query:"severity" enum:"low,medium,high,"`
		DateFrom string `query:"date_from"`
		DateTo   string `query:"date_to"`
	}) (*struct {
		Body []SignalementResponse `json:"body"`
	}, error) {
		items, err := e.FilterSignalements(ctx, repo.SignalementFilters{
			Status:   input.Status,
			Severity: input.Severity,
			DateFrom: input.DateFrom,
			DateTo:   input.DateTo,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []SignalementResponse `json:"body"`
		}{Body: mapSignalements(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-signalement",
		Method:      http.MethodGet,
		Path:        "/signalements/{id}",
		Summary:     "Get signalement",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body SignalementResponse `json:"body"`
	}, error) {
		s, err := e.GetSignalement(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SignalementResponse `json:"body"`
		}{Body: signalementResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-signalement",
		Method:        http.MethodPost,
		Path:          "/signalements",
		Summary:       "Report a pothole",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateSignalementRequest `json:"body"`
	}) (*struct {
		Body SignalementResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CreateSignalement(ctx, engine.SignalementCreateOptions{
			Lat:          input.Body.Lat,
			Lng:          input.Body.Lng,
			Address:      input.Body.Address,
			Severity:     input.Body.Severity,
			Description:  stringOrEmpty(input.Body.Description),
			DetectedBy:   stringOrEmpty(input.Body.DetectedBy),
			ImageURL:     stringOrEmpty(input.Body.ImageURL),
			ThumbnailURL: stringOrEmpty(input.Body.ThumbnailURL),
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SignalementResponse `json:"body"`
		}{Body: signalementResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-signalement-status",
		Method:      http.MethodPatch,
		Path:        "/signalements/{id}/status",
		Summary:     "Update signalement status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                      `path:"id"`
		Body SetSignalementStatusRequest `json:"body"`
	}) (*struct {
		Body SignalementResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, "admin", "manager"); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.SetSignalementStatus(ctx, input.ID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SignalementResponse `json:"body"`
		}{Body: signalementResponse(s)}, nil
	})
}

func registerMaintenances(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-maintenance",
		Method:        http.MethodPost,
		Path:          "/maintenances",
		Summary:       "Schedule a maintenance task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateMaintenanceRequest `json:"body"`
	}) (*struct {
		Body MaintenanceResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, "admin", "manager"); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.CreateMaintenance(ctx, engine.MaintenanceCreateOptions{
			Title:             input.Body.Title,
			Description:       stringOrEmpty(input.Body.Description),
			ScheduledDate:     input.Body.ScheduledDate,
			Status:            stringOrEmpty(input.Body.Status),
			TeamID:            input.Body.TeamID,
			SignalementIDs:    input.Body.SignalementIDs,
			RepairType:        input.Body.RepairType,
			EstimatedDuration: input.Body.EstimatedDuration,
			Notes:             stringOrEmpty(input.Body.Notes),
			ActorID:           actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MaintenanceResponse `json:"body"`
		}{Body: maintenanceResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-maintenances",
		Method:      http.MethodGet,
		Path:        "/maintenances",
		Summary:     "List maintenance tasks",
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"scheduled,inProgress,completed,"`
		TeamID string `query:"team_id"`
	}) (*struct {
		Body []MaintenanceResponse `json:"body"`
	}, error) {
		items, err := e.ListMaintenances(ctx, repo.MaintenanceFilters{Status: input.Status, TeamID: input.TeamID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []MaintenanceResponse `json:"body"`
		}{Body: mapMaintenances(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-maintenance",
		Method:      http.MethodGet,
		Path:        "/maintenances/{id}",
		Summary:     "Get maintenance task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body MaintenanceResponse `json:"body"`
	}, error) {
		m, err := e.GetMaintenance(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MaintenanceResponse `json:"body"`
		}{Body: maintenanceResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-maintenance-status",
		Method:      http.MethodPatch,
		Path:        "/maintenances/{id}/status",
		Summary:     "Update maintenance status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                      `path:"id"`
		Body SetMaintenanceStatusRequest `json:"body"`
	}) (*struct {
		Body MaintenanceResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, "admin", "manager"); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.SetMaintenanceStatus(ctx, input.ID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MaintenanceResponse `json:"body"`
		}{Body: maintenanceResponse(m)}, nil
	})
}

func registerTeams(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-teams",
		Method:      http.MethodGet,
		Path:        "/teams",
		Summary:     "List repair teams",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []TeamResponse `json:"body"`
	}, error) {
		items, err := e.ListTeams(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TeamResponse `json:"body"`
		}{Body: mapTeams(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-team",
		Method:      http.MethodGet,
		Path:        "/teams/{id}",
		Summary:     "Get repair team",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body TeamResponse `json:"body"`
	}, error) {
		t, err := e.GetTeam(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TeamResponse `json:"body"`
		}{Body: teamResponse(t)}, nil
	})
}

func registerStats(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Dashboard statistics",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StatsResponse `json:"body"`
	}, error) {
		st, err := e.Stats(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StatsResponse `json:"body"`
		}{Body: statsResponse(st)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit log, newest first",
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit" default:"50"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		items, err := e.Repo.LatestEvents(ctx, input.Limit, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}

// registerExports serves the CSV downloads on plain chi routes; the auth
// middleware still covers them since they live under the base path.
func registerExports(r chi.Router, basePath string, e engine.Engine) {
	serveCSV := func(w http.ResponseWriter, filename, data string) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		io.WriteString(w, data)
	}
	r.Get(path.Join(basePath, "exports/signalements.csv"), func(w http.ResponseWriter, req *http.Request) {
		data, err := e.ExportSignalementsCSV(req.Context())
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		serveCSV(w, "signalements.csv", data)
	})
	r.Get(path.Join(basePath, "exports/maintenances.csv"), func(w http.ResponseWriter, req *http.Request) {
		data, err := e.ExportMaintenancesCSV(req.Context())
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		serveCSV(w, "maintenances.csv", data)
	})
}
