package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"reflect"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mutual/internal/domain"
	"mutual/internal/engine"
	"mutual/internal/engine/auth"
	"mutual/internal/logger"
	"mutual/internal/repo"
	"mutual/internal/signing"
	"mutual/internal/validator"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"email: must be a valid email address"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// submissions tracks owners with a create-case request in flight.
type submissions struct {
	inflight sync.Map
}

func (s *submissions) begin(owner string) bool {
	_, busy := s.inflight.LoadOrStore(owner, struct{}{})
	return !busy
}

func (s *submissions) end(owner string) {
	s.inflight.Delete(owner)
}

// New returns an HTTP handler exposing the Mutual API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = log
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the error envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors are 400 bad_request; 422 is
			// reserved for document validation.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(instrument(log))
	router.Use(captureBody)
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Mutual API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerMetrics(router)
	registerHealth(group)
	registerPulls(group, cfg.Engine)
	registerDrafts(group, cfg.Engine)
	registerCreateCase(group, cfg.Engine, &submissions{})
	registerMe(group)
	if cfg.Auth.DevLogin {
		registerDevAuth(group, cfg.Auth)
	}
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
	if verrs, ok := validator.AsErrors(err); ok {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), map[string]any{"fields": []validator.FieldError(verrs)})
	}
	if errors.Is(err, auth.ErrAuthRequired) {
		return newAPIError(http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"draft_id": fe.DraftID})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, engine.ErrInvalidSignature) {
		return newAPIError(http.StatusBadRequest, "invalid_signature", err.Error(), nil)
	}
	if errors.Is(err, signing.ErrRejected) {
		return newAPIError(http.StatusBadRequest, "signature_rejected", err.Error(), nil)
	}
	if errors.Is(err, signing.ErrUnavailable) {
		return newAPIError(http.StatusServiceUnavailable, "signer_unavailable", err.Error(), nil)
	}
	var pe *engine.PublishError
	if errors.As(err, &pe) {
		switch {
		case errors.Is(pe.Kind, engine.ErrUnauthenticated):
			return newAPIError(http.StatusUnauthorized, "repository_unauthenticated", err.Error(), nil)
		case errors.Is(pe.Kind, engine.ErrRateLimited):
			return newAPIError(http.StatusTooManyRequests, "rate_limited", err.Error(), nil)
		default:
			return newAPIError(http.StatusBadGateway, "repository_unavailable", err.Error(), nil)
		}
	}
	if errors.Is(err, engine.ErrRegistryUnavailable) {
		return newAPIError(http.StatusServiceUnavailable, "registry_unavailable", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
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

func registerMetrics(r chi.Router) {
	r.Handle("/metrics", promhttp.Handler())
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			if oas.Components != nil && oas.Components.Schemas != nil {
				oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "ApiError")
			}
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
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

// applyAuthSecurity documents the session credential on the operations that
// read an identity.
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
	oas.Components.SecuritySchemes["cookieAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "cookie",
		Name: "mutual_session",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"cookieAuth": {}},
	}
	public := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "pulls"):          true,
		path.Join(basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if public[route] {
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
    <title>Mutual API Docs</title>
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
      Authenticate with Authorization: Bearer &lt;token&gt; or the mutual_session cookie.
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
		Body HealthResponse `json:"body"`
	}, error) {
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: HealthResponse{Status: "ok"}}, nil
	})
}

func registerPulls(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-pulls",
		Method:      http.MethodGet,
		Path:        "/pulls",
		Summary:     "List case studies in progress",
		Errors: []int{
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		Author string `query:"author" doc:"Only pull requests opened by this login"`
	}) (*struct {
		Body []PullResponse `json:"body"`
	}, error) {
		var (
			open []domain.ChangeRequest
			err  error
		)
		if author := strings.TrimSpace(input.Author); author != "" {
			open, err = e.ListOpenByAuthor(ctx, author)
		} else {
			open, err = e.ListOpen(ctx)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []PullResponse `json:"body"`
		}{Body: mapPulls(open)}, nil
	})
}

func registerDrafts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-drafts",
		Method:      http.MethodGet,
		Path:        "/drafts",
		Summary:     "List the caller's drafts",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Draft `json:"body"`
	}, error) {
		drafts, err := e.ListDrafts(ctx, identityFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Draft `json:"body"`
		}{Body: drafts}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:      "save-draft",
		Method:           http.MethodPost,
		Path:             "/drafts",
		Summary:          "Save a draft",
		SkipValidateBody: true,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CaseStudyRequest `json:"body"`
	}) (*struct {
		Body domain.Draft `json:"body"`
	}, error) {
		id := identityFromContext(ctx)
		if _, err := auth.RequireOwner(id); err != nil {
			return nil, handleError(err)
		}
		doc, err := input.Body.document()
		if err != nil {
			return nil, handleError(err)
		}
		d, err := e.SaveDraft(ctx, id, doc)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Draft `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-draft",
		Method:      http.MethodGet,
		Path:        "/drafts/{id}",
		Summary:     "Get a draft",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Draft `json:"body"`
	}, error) {
		d, err := e.GetDraft(ctx, input.ID, identityFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Draft `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-draft",
		Method:        http.MethodDelete,
		Path:          "/drafts/{id}",
		Summary:       "Delete a draft",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteDraft(ctx, input.ID, identityFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerCreateCase(api huma.API, e engine.Engine, subs *submissions) {
	huma.Register(api, huma.Operation{
		OperationID:      "create-case",
		Method:           http.MethodPost,
		Path:             "/create-case",
		Summary:          "Publish a case study as a pull request",
		SkipValidateBody: true,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusTooManyRequests,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *struct {
		Body CaseStudyRequest `json:"body"`
	}) (*struct {
		Body domain.Publication `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		id := identityFromContext(ctx)
		owner, err := auth.RequireOwner(id)
		if err != nil {
			return nil, handleError(err)
		}
		doc, err := input.Body.document()
		if err != nil {
			return nil, handleError(err)
		}
		if !subs.begin(owner) {
			return nil, newAPIError(http.StatusConflict, "submission_in_progress", "a submission is already in progress", nil)
		}
		defer subs.end(owner)
		pub, err := e.Publish(ctx, id, doc)
		if err != nil {
			logger.WithRequestID(middleware.GetReqID(ctx)).Warn("publish failed", "owner", owner, "error", err)
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Publication `json:"body"`
		}{Body: pub}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current identity",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: meResponse(identityFromContext(ctx))}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a session token for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		SetCookie http.Cookie      `header:"Set-Cookie"`
		Body      DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if strings.TrimSpace(input.Body.Login) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "login is required", nil)
		}
		token, err := SignSessionToken(authCfg.JWTSecret, input.Body, defaultSessionTTL)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			SetCookie http.Cookie      `header:"Set-Cookie"`
			Body      DevLoginResponse `json:"body"`
		}{
			SetCookie: http.Cookie{
				Name:     authCfg.cookieName(),
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			},
			Body: DevLoginResponse{Token: token},
		}, nil
	})
}
