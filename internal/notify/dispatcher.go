// Package notify defines the outbound alerting contract. The engine and the
// confirmation workflow report state transitions here; the delivery transport
// (push, socket, mail) stays behind the interface.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"bloodhero/internal/domain"
)

// EventKind identifies the transition being announced.
type EventKind string

const (
	EventRequestCreated    EventKind = "request_created"
	EventDonorAccepted     EventKind = "donor_accepted"
	EventResponseUpdated   EventKind = "response_updated"
	EventProofSubmitted    EventKind = "proof_submitted"
	EventDonationConfirmed EventKind = "donation_confirmed"
	EventDonationRejected  EventKind = "donation_rejected"
)

// Event is a state transition worth alerting someone about.
type Event struct {
	Kind      EventKind
	RequestID string
	// UserID is the user the alert is for: the requester for donor-side
	// transitions, the donor for requester-side decisions.
	UserID  string
	DonorID string
	Status  string
}

// Dispatcher receives transition events. Implementations must not block the
// request path; delivery failures are theirs to absorb.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

// LogDispatcher writes events to the log. It stands in for a real push
// transport in development and tests.
type LogDispatcher struct {
	logger zerolog.Logger
}

// NewLogDispatcher creates a dispatcher backed by the given logger.
func NewLogDispatcher(logger zerolog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// Dispatch logs the event.
func (d *LogDispatcher) Dispatch(_ context.Context, event Event) {
	d.logger.Info().
		Str("kind", string(event.Kind)).
		Str("request_id", event.RequestID).
		Str("user_id", event.UserID).
		Str("donor_id", event.DonorID).
		Str("status", event.Status).
		Msg("notification dispatched")
}

// ResponseEvent builds the event for a donor response status change.
func ResponseEvent(req *domain.BloodRequest, donorID string, status domain.ResponseStatus) Event {
	kind := EventResponseUpdated
	if status == domain.ResponseAccepted {
		kind = EventDonorAccepted
	}
	return Event{
		Kind:      kind,
		RequestID: req.ID,
		UserID:    req.RequesterID,
		DonorID:   donorID,
		Status:    string(status),
	}
}
