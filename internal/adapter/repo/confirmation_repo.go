package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bloodhero/internal/domain"
)

// ConfirmationRepositoryPG implements domain.ConfirmationRepository using PostgreSQL.
type ConfirmationRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewConfirmationRepository creates a new confirmation repo.
func NewConfirmationRepository(pool *pgxpool.Pool) *ConfirmationRepositoryPG {
	return &ConfirmationRepositoryPG{pool: pool}
}

// Create inserts an awaiting confirmation. The partial unique index on
// awaiting rows turns a duplicate submission into ErrConflict.
func (r *ConfirmationRepositoryPG) Create(ctx context.Context, conf *domain.DonationConfirmation) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO donation_confirmations (id, request_id, donor_id, proof_key, status)
VALUES ($1, $2, $3, $4, $5);
`, conf.ID, conf.RequestID, conf.DonorID, conf.ProofKey, conf.Status)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

// GetAwaiting fetches the open confirmation for the (request, donor) pair.
func (r *ConfirmationRepositoryPG) GetAwaiting(ctx context.Context, requestID, donorID string) (*domain.DonationConfirmation, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, request_id, donor_id, proof_key, submitted_at, status,
       COALESCE(decided_by::text, ''), decided_at
FROM donation_confirmations
WHERE request_id = $1 AND donor_id = $2 AND status = 'awaiting';
`, requestID, donorID)

	var conf domain.DonationConfirmation
	if err := row.Scan(&conf.ID, &conf.RequestID, &conf.DonorID, &conf.ProofKey,
		&conf.SubmittedAt, &conf.Status, &conf.DecidedBy, &conf.DecidedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &conf, nil
}

// CountRejected returns how many proofs from this donor on this request were
// already rejected. The workflow uses it to enforce the resubmission cap.
func (r *ConfirmationRepositoryPG) CountRejected(ctx context.Context, requestID, donorID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM donation_confirmations
WHERE request_id = $1 AND donor_id = $2 AND status = 'rejected';
`, requestID, donorID).Scan(&count)
	return count, err
}

// Confirm finalizes an awaiting confirmation in one transaction: the
// confirmation becomes confirmed, the donor response becomes donated and the
// request loses one needed unit, flipping to fulfilled at zero. Every step is
// a conditional write; a miss on any of them rolls the transaction back with
// ErrConflict.
func (r *ConfirmationRepositoryPG) Confirm(ctx context.Context, confirmationID, deciderID string) (int, error) {
	var remaining int
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var requestID, donorID string
		err := tx.QueryRow(ctx, `
UPDATE donation_confirmations
SET status = 'confirmed', decided_by = $2, decided_at = NOW()
WHERE id = $1 AND status = 'awaiting'
RETURNING request_id, donor_id;
`, confirmationID, deciderID).Scan(&requestID, &donorID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrConflict
			}
			return err
		}

		tag, err := tx.Exec(ctx, `
UPDATE donor_responses
SET status = 'donated', updated_at = NOW()
WHERE request_id = $1 AND donor_id = $2 AND status = 'accepted';
`, requestID, donorID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrConflict
		}

		err = tx.QueryRow(ctx, `
UPDATE blood_requests
SET units_needed = units_needed - 1,
    status = CASE WHEN units_needed - 1 <= 0 THEN 'fulfilled' ELSE status END,
    updated_at = NOW()
WHERE id = $1 AND units_needed > 0
RETURNING units_needed;
`, requestID).Scan(&remaining)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrConflict
			}
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// Reject finalizes an awaiting confirmation as rejected. The donor response
// stays accepted, so the donor may submit a new proof.
func (r *ConfirmationRepositoryPG) Reject(ctx context.Context, confirmationID, deciderID string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE donation_confirmations
SET status = 'rejected', decided_by = $2, decided_at = NOW()
WHERE id = $1 AND status = 'awaiting';
`, confirmationID, deciderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}
