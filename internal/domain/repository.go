package domain

import "context"

// UserRepository defines access methods for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
}

// RequestRepository persists blood requests and donor responses.
type RequestRepository interface {
	Create(ctx context.Context, req *BloodRequest) error
	GetByID(ctx context.Context, id string) (*BloodRequest, error)
	ListOpen(ctx context.Context, limit int) ([]BloodRequest, error)
	ListByRequester(ctx context.Context, requesterID string, includeClosed bool) ([]BloodRequest, error)
	Update(ctx context.Context, req *BloodRequest) error
	Delete(ctx context.Context, id, requesterID string) error

	// Nearby returns open requests within the filter radius of origin,
	// ordered by distance ascending then requiredBy ascending.
	Nearby(ctx context.Context, origin Point, filter NearbyFilter) ([]BloodRequest, error)

	// CreateResponse inserts a donor response, returning
	// ErrDuplicateResponse when the donor already responded.
	CreateResponse(ctx context.Context, resp *DonorResponse) error
	GetResponse(ctx context.Context, requestID, donorID string) (*DonorResponse, error)
	// UpdateResponseStatus applies a conditional status change keyed on the
	// expected prior status; a miss surfaces ErrConflict.
	UpdateResponseStatus(ctx context.Context, requestID, donorID string, from, to ResponseStatus) error
	// ListAcceptedByDonor returns the requests a donor has accepted or
	// donated to, most recent response first.
	ListAcceptedByDonor(ctx context.Context, donorID string) ([]BloodRequest, error)
}

// ConfirmationRepository persists donation confirmations and carries the
// transactional decision step.
type ConfirmationRepository interface {
	// Create inserts an awaiting confirmation. At most one awaiting
	// confirmation may exist per (request, donor); a second surfaces
	// ErrConflict.
	Create(ctx context.Context, conf *DonationConfirmation) error
	GetAwaiting(ctx context.Context, requestID, donorID string) (*DonationConfirmation, error)
	CountRejected(ctx context.Context, requestID, donorID string) (int, error)

	// Confirm atomically finalizes the confirmation, marks the donor
	// response donated, and decrements the request's remaining units,
	// flipping the request to fulfilled at zero. Returns the units still
	// needed. A lost race on any of the conditional steps surfaces
	// ErrConflict.
	Confirm(ctx context.Context, confirmationID, deciderID string) (remaining int, err error)
	// Reject finalizes the confirmation as rejected, leaving the donor
	// response accepted so the donor may resubmit proof.
	Reject(ctx context.Context, confirmationID, deciderID string) error
}
