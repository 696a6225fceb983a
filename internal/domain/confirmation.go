package domain

import "time"

// ConfirmationStatus is the state of a submitted donation proof.
type ConfirmationStatus string

const (
	ConfirmationAwaiting  ConfirmationStatus = "awaiting"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationRejected  ConfirmationStatus = "rejected"
)

// DonationConfirmation tracks a photo proof submitted by a donor and the
// requester's decision on it. Terminal once confirmed or rejected.
type DonationConfirmation struct {
	ID          string
	RequestID   string
	DonorID     string
	ProofKey    string
	SubmittedAt time.Time
	Status      ConfirmationStatus
	DecidedBy   string
	DecidedAt   *time.Time
}

// Decided reports whether the confirmation reached a terminal state.
func (c DonationConfirmation) Decided() bool {
	return c.Status != ConfirmationAwaiting
}
