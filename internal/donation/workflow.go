// Package donation implements the proof-of-donation confirmation workflow:
// an accepted donor submits a photo proof, the requester confirms or rejects
// it.
package donation

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bloodhero/internal/domain"
	"bloodhero/internal/notify"
)

// ProofStore persists proof photos and returns the canonical storage key.
type ProofStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Workflow drives a donation from accepted response through proof submission
// to a requester decision.
type Workflow struct {
	requests      domain.RequestRepository
	confirmations domain.ConfirmationRepository
	proofs        ProofStore
	dispatcher    notify.Dispatcher
	logger        zerolog.Logger
	retryLimit    int
}

// NewWorkflow creates a confirmation workflow. retryLimit caps how many
// rejected proofs a donor may follow up on; zero or negative falls back to 3.
func NewWorkflow(requests domain.RequestRepository, confirmations domain.ConfirmationRepository,
	proofs ProofStore, dispatcher notify.Dispatcher, logger zerolog.Logger, retryLimit int) *Workflow {
	if retryLimit <= 0 {
		retryLimit = 3
	}
	return &Workflow{
		requests:      requests,
		confirmations: confirmations,
		proofs:        proofs,
		dispatcher:    dispatcher,
		logger:        logger,
		retryLimit:    retryLimit,
	}
}

// SubmitProof stores the photo and opens an awaiting confirmation. It is
// allowed only while the donor's response is accepted; a donor whose proofs
// were rejected retryLimit times may not resubmit.
func (w *Workflow) SubmitProof(ctx context.Context, requestID, donorID string, photo []byte, filename string) (*domain.DonationConfirmation, error) {
	req, err := w.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	resp, err := w.requests.GetResponse(ctx, requestID, donorID)
	if err != nil {
		return nil, err
	}
	if resp.Status != domain.ResponseAccepted {
		return nil, fmt.Errorf("%w: response is %s, proof requires accepted", domain.ErrInvalidState, resp.Status)
	}

	rejected, err := w.confirmations.CountRejected(ctx, requestID, donorID)
	if err != nil {
		return nil, err
	}
	if rejected >= w.retryLimit {
		return nil, fmt.Errorf("%w: proof resubmission limit reached", domain.ErrConflict)
	}

	conf := &domain.DonationConfirmation{
		ID:          uuid.NewString(),
		RequestID:   requestID,
		DonorID:     donorID,
		Status:      domain.ConfirmationAwaiting,
		SubmittedAt: time.Now().UTC(),
	}
	key := fmt.Sprintf("proofs/%s/%s%s", requestID, conf.ID, proofExt(filename))
	storedKey, err := w.proofs.Write(ctx, key, photo)
	if err != nil {
		return nil, fmt.Errorf("store proof photo: %w", err)
	}
	conf.ProofKey = storedKey

	if err := w.confirmations.Create(ctx, conf); err != nil {
		return nil, err
	}

	w.dispatcher.Dispatch(ctx, notify.Event{
		Kind:      notify.EventProofSubmitted,
		RequestID: requestID,
		UserID:    req.RequesterID,
		DonorID:   donorID,
		Status:    string(conf.Status),
	})
	w.logger.Info().Str("request_id", requestID).Str("donor_id", donorID).Msg("donation proof submitted")
	return conf, nil
}

// Decide applies the requester's verdict on an awaiting proof. Only the
// requester who owns the request may decide. Confirmed marks the donor
// response donated and takes one unit off the request; rejected leaves the
// response accepted so the donor may try again.
func (w *Workflow) Decide(ctx context.Context, requestID, donorID string, decision domain.ConfirmationStatus, deciderID string) (*domain.DonationConfirmation, error) {
	if decision != domain.ConfirmationConfirmed && decision != domain.ConfirmationRejected {
		return nil, fmt.Errorf("%w: decision must be confirmed or rejected", domain.ErrInvalidState)
	}

	req, err := w.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != deciderID {
		return nil, domain.ErrForbidden
	}

	conf, err := w.confirmations.GetAwaiting(ctx, requestID, donorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no proof awaiting decision", domain.ErrInvalidState)
		}
		return nil, err
	}

	kind := notify.EventDonationRejected
	if decision == domain.ConfirmationConfirmed {
		remaining, err := w.confirmations.Confirm(ctx, conf.ID, deciderID)
		if err != nil {
			return nil, err
		}
		kind = notify.EventDonationConfirmed
		w.logger.Info().
			Str("request_id", requestID).
			Str("donor_id", donorID).
			Int("units_remaining", remaining).
			Msg("donation confirmed")
	} else {
		if err := w.confirmations.Reject(ctx, conf.ID, deciderID); err != nil {
			return nil, err
		}
		w.logger.Info().Str("request_id", requestID).Str("donor_id", donorID).Msg("donation proof rejected")
	}

	now := time.Now().UTC()
	conf.Status = decision
	conf.DecidedBy = deciderID
	conf.DecidedAt = &now

	w.dispatcher.Dispatch(ctx, notify.Event{
		Kind:      kind,
		RequestID: requestID,
		UserID:    donorID,
		DonorID:   donorID,
		Status:    string(decision),
	})
	return conf, nil
}

func proofExt(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
		return ext
	}
	return ".jpg"
}
