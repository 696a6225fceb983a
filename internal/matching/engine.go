// Package matching implements nearby blood-request discovery and the donor
// response lifecycle.
package matching

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"bloodhero/internal/domain"
	"bloodhero/internal/notify"
)

// Options configures the engine.
type Options struct {
	DefaultRadiusKm float64
	MaxRadiusKm     float64
}

// Engine coordinates donors and blood requests on top of the request store.
type Engine struct {
	requests   domain.RequestRepository
	dispatcher notify.Dispatcher
	logger     zerolog.Logger
	opts       Options
}

// NewEngine creates a matching engine.
func NewEngine(requests domain.RequestRepository, dispatcher notify.Dispatcher, logger zerolog.Logger, opts Options) *Engine {
	if opts.DefaultRadiusKm <= 0 {
		opts.DefaultRadiusKm = 25
	}
	if opts.MaxRadiusKm <= 0 {
		opts.MaxRadiusKm = 200
	}
	return &Engine{requests: requests, dispatcher: dispatcher, logger: logger, opts: opts}
}

// CreateRequest persists a new blood request and announces it.
func (e *Engine) CreateRequest(ctx context.Context, req *domain.BloodRequest) error {
	if err := e.requests.Create(ctx, req); err != nil {
		return err
	}
	e.dispatcher.Dispatch(ctx, notify.Event{
		Kind:      notify.EventRequestCreated,
		RequestID: req.ID,
		UserID:    req.RequesterID,
		Status:    string(req.Status),
	})
	e.logger.Info().Str("request_id", req.ID).Str("blood_type", string(req.BloodType)).Msg("blood request created")
	return nil
}

// FindNearby returns open requests around origin, nearest first and soonest
// deadline first on distance ties. An unset origin fails with
// domain.ErrLocationUnset.
func (e *Engine) FindNearby(ctx context.Context, origin domain.Point, filter domain.NearbyFilter) ([]domain.BloodRequest, error) {
	if origin.IsZero() {
		return nil, domain.ErrLocationUnset
	}
	if !origin.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", domain.ErrLocationUnset)
	}
	if filter.RadiusKm <= 0 {
		filter.RadiusKm = e.opts.DefaultRadiusKm
	}
	if filter.RadiusKm > e.opts.MaxRadiusKm {
		filter.RadiusKm = e.opts.MaxRadiusKm
	}
	return e.requests.Nearby(ctx, origin, filter)
}

// Accept records the donor's acceptance of an open request. A donor who
// already responded gets domain.ErrDuplicateResponse; a request that is
// missing, closed or out of units fails accordingly.
func (e *Engine) Accept(ctx context.Context, requestID, donorID string) (*domain.DonorResponse, error) {
	req, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.RequestOpen || req.UnitsNeeded <= 0 {
		return nil, domain.ErrRequestClosed
	}

	resp := &domain.DonorResponse{
		RequestID: requestID,
		DonorID:   donorID,
		Status:    domain.ResponseAccepted,
	}
	if err := e.requests.CreateResponse(ctx, resp); err != nil {
		return nil, err
	}

	e.dispatcher.Dispatch(ctx, notify.ResponseEvent(req, donorID, domain.ResponseAccepted))
	e.logger.Info().Str("request_id", requestID).Str("donor_id", donorID).Msg("donor accepted request")
	return resp, nil
}

// Respond moves an existing donor response to the given status. Only forward
// transitions are permitted; the store applies the change conditionally so a
// concurrent actor surfaces as domain.ErrConflict.
func (e *Engine) Respond(ctx context.Context, requestID, donorID string, status domain.ResponseStatus) (*domain.DonorResponse, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, status)
	}

	req, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	resp, err := e.requests.GetResponse(ctx, requestID, donorID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(resp.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, resp.Status, status)
	}
	if err := e.requests.UpdateResponseStatus(ctx, requestID, donorID, resp.Status, status); err != nil {
		return nil, err
	}
	resp.Status = status

	e.dispatcher.Dispatch(ctx, notify.ResponseEvent(req, donorID, status))
	return resp, nil
}

// MyRequests returns the caller's open requests, newest first.
func (e *Engine) MyRequests(ctx context.Context, userID string) ([]domain.BloodRequest, error) {
	return e.requests.ListByRequester(ctx, userID, false)
}

// MyRequestHistory returns all of the caller's requests, newest first.
func (e *Engine) MyRequestHistory(ctx context.Context, userID string) ([]domain.BloodRequest, error) {
	return e.requests.ListByRequester(ctx, userID, true)
}

// AcceptedRequests returns the requests the donor has accepted or completed,
// most recent activity first.
func (e *Engine) AcceptedRequests(ctx context.Context, donorID string) ([]domain.BloodRequest, error) {
	return e.requests.ListAcceptedByDonor(ctx, donorID)
}
