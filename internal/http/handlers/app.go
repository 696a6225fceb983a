package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"bloodhero/internal/directions"
	"bloodhero/internal/domain"
	"bloodhero/internal/donation"
	"bloodhero/internal/matching"
	"bloodhero/internal/middleware"
)

// DirectionsClient resolves a route between two points.
type DirectionsClient interface {
	Route(ctx context.Context, from, to domain.Point) (*directions.Route, error)
}

// LocationResolver resolves an approximate location from a client IP.
type LocationResolver interface {
	Locate(ip string) (domain.Point, error)
}

// App bundles the collaborators the HTTP handlers need. Everything is
// injected; handlers hold no ambient state.
type App struct {
	Users         domain.UserRepository
	Requests      domain.RequestRepository
	Engine        *matching.Engine
	Workflow      *donation.Workflow
	Directions    DirectionsClient
	GeoIP         LocationResolver
	Logger        zerolog.Logger
	JWTSecret     string
	MaxProofBytes int64
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorBody{Error: kind, Message: message})
}

func (a *App) validationError(w http.ResponseWriter, fields map[string]string) {
	a.json(w, http.StatusBadRequest, errorBody{
		Error:   "validation_error",
		Message: "request payload failed validation",
		Fields:  fields,
	})
}

// domainError maps the domain error taxonomy onto HTTP statuses. Unexpected
// errors are logged and returned as a generic server error so internals never
// leak to clients.
func (a *App) domainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrLocationUnset):
		a.error(w, http.StatusNotFound, "not_found", "donor location is not set")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", "you do not own this resource")
	case errors.Is(err, domain.ErrDuplicateResponse):
		a.error(w, http.StatusConflict, "conflict", "you already responded to this request")
	case errors.Is(err, domain.ErrRequestClosed):
		a.error(w, http.StatusConflict, "conflict", "request is no longer open")
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrInvalidState):
		a.error(w, http.StatusUnprocessableEntity, "invalid_state", err.Error())
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("unexpected error")
		a.error(w, http.StatusInternalServerError, "internal", "something went wrong")
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
