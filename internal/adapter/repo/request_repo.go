package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bloodhero/internal/domain"
)

// RequestRepositoryPG implements domain.RequestRepository using PostgreSQL.
type RequestRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewRequestRepository creates a new request repo.
func NewRequestRepository(pool *pgxpool.Pool) *RequestRepositoryPG {
	return &RequestRepositoryPG{pool: pool}
}

const selectRequest = `
SELECT id, requester_id, patient_name, blood_type, units_needed, hospital,
       lat, lng, reason, required_by, contact_info, emergency, status,
       created_at, updated_at
FROM blood_requests`

// Create inserts a new blood request record.
func (r *RequestRepositoryPG) Create(ctx context.Context, req *domain.BloodRequest) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO blood_requests
    (id, requester_id, patient_name, blood_type, units_needed, hospital,
     lat, lng, reason, required_by, contact_info, emergency, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
`, req.ID, req.RequesterID, req.PatientName, req.BloodType, req.UnitsNeeded,
		req.Hospital, req.Location.Lat, req.Location.Lng, req.Reason,
		req.RequiredBy, req.ContactInfo, req.Emergency, req.Status)
	return err
}

// GetByID fetches a request together with its donor responses, oldest
// response first.
func (r *RequestRepositoryPG) GetByID(ctx context.Context, id string) (*domain.BloodRequest, error) {
	row := r.pool.QueryRow(ctx, selectRequest+` WHERE id = $1`, id)
	req, err := scanRequest(row)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
SELECT request_id, donor_id, status, created_at, updated_at
FROM donor_responses
WHERE request_id = $1
ORDER BY created_at ASC;
`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var resp domain.DonorResponse
		if err := rows.Scan(&resp.RequestID, &resp.DonorID, &resp.Status, &resp.CreatedAt, &resp.UpdatedAt); err != nil {
			return nil, err
		}
		req.Responses = append(req.Responses, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return req, nil
}

// ListOpen returns open requests, newest first.
func (r *RequestRepositoryPG) ListOpen(ctx context.Context, limit int) ([]domain.BloodRequest, error) {
	rows, err := r.pool.Query(ctx, selectRequest+`
WHERE status = 'open'
ORDER BY created_at DESC
LIMIT $1;
`, limit)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// ListByRequester returns a requester's requests, newest first. When
// includeClosed is false only open requests are returned.
func (r *RequestRepositoryPG) ListByRequester(ctx context.Context, requesterID string, includeClosed bool) ([]domain.BloodRequest, error) {
	rows, err := r.pool.Query(ctx, selectRequest+`
WHERE requester_id = $1
  AND ($2 OR status = 'open')
ORDER BY created_at DESC;
`, requesterID, includeClosed)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// Update persists the mutable request fields.
func (r *RequestRepositoryPG) Update(ctx context.Context, req *domain.BloodRequest) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE blood_requests
SET patient_name = $2, units_needed = $3, hospital = $4, lat = $5, lng = $6,
    reason = $7, required_by = $8, contact_info = $9, emergency = $10,
    status = $11, updated_at = NOW()
WHERE id = $1;
`, req.ID, req.PatientName, req.UnitsNeeded, req.Hospital,
		req.Location.Lat, req.Location.Lng, req.Reason, req.RequiredBy,
		req.ContactInfo, req.Emergency, req.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a request owned by requesterID.
func (r *RequestRepositoryPG) Delete(ctx context.Context, id, requesterID string) error {
	tag, err := r.pool.Exec(ctx, `
DELETE FROM blood_requests
WHERE id = $1 AND requester_id = $2;
`, id, requesterID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Nearby returns open requests within filter.RadiusKm of origin, ordered by
// haversine distance ascending and deadline ascending on ties. The distance
// expression matches domain.DistanceKm.
func (r *RequestRepositoryPG) Nearby(ctx context.Context, origin domain.Point, filter domain.NearbyFilter) ([]domain.BloodRequest, error) {
	types := []string{}
	if filter.BloodType != "" {
		for _, bt := range filter.BloodType.CompatibleRecipients() {
			types = append(types, string(bt))
		}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, requester_id, patient_name, blood_type, units_needed, hospital,
       lat, lng, reason, required_by, contact_info, emergency, status,
       created_at, updated_at, distance_km
FROM (
    SELECT *,
           2 * 6371 * asin(sqrt(
               power(sin(radians(lat - $1) / 2), 2) +
               cos(radians($1)) * cos(radians(lat)) *
               power(sin(radians(lng - $2) / 2), 2)
           )) AS distance_km
    FROM blood_requests
    WHERE status = 'open'
      AND units_needed > 0
      AND (cardinality($4::text[]) = 0 OR blood_type = ANY($4::text[]))
      AND (NOT $5 OR emergency)
) candidates
WHERE distance_km <= $3
ORDER BY distance_km ASC, required_by ASC
LIMIT $6;
`, origin.Lat, origin.Lng, filter.RadiusKm, types, filter.EmergencyOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.BloodRequest
	for rows.Next() {
		var req domain.BloodRequest
		var distance float64
		if err := rows.Scan(&req.ID, &req.RequesterID, &req.PatientName, &req.BloodType,
			&req.UnitsNeeded, &req.Hospital, &req.Location.Lat, &req.Location.Lng,
			&req.Reason, &req.RequiredBy, &req.ContactInfo, &req.Emergency,
			&req.Status, &req.CreatedAt, &req.UpdatedAt, &distance); err != nil {
			return nil, err
		}
		req.DistanceKm = &distance
		items = append(items, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateResponse inserts a donor response if the donor has none yet on the
// request. The (request_id, donor_id) primary key makes two concurrent
// accepts race safely; the loser sees ErrDuplicateResponse.
func (r *RequestRepositoryPG) CreateResponse(ctx context.Context, resp *domain.DonorResponse) error {
	tag, err := r.pool.Exec(ctx, `
INSERT INTO donor_responses (request_id, donor_id, status)
VALUES ($1, $2, $3)
ON CONFLICT (request_id, donor_id) DO NOTHING;
`, resp.RequestID, resp.DonorID, resp.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateResponse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateResponse
	}
	return nil
}

// GetResponse fetches the donor's response to a request.
func (r *RequestRepositoryPG) GetResponse(ctx context.Context, requestID, donorID string) (*domain.DonorResponse, error) {
	var resp domain.DonorResponse
	err := r.pool.QueryRow(ctx, `
SELECT request_id, donor_id, status, created_at, updated_at
FROM donor_responses
WHERE request_id = $1 AND donor_id = $2;
`, requestID, donorID).Scan(&resp.RequestID, &resp.DonorID, &resp.Status, &resp.CreatedAt, &resp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &resp, nil
}

// UpdateResponseStatus moves a response from the expected prior status to the
// next one. A conditional-update miss means another actor got there first and
// surfaces as ErrConflict rather than silently overwriting.
func (r *RequestRepositoryPG) UpdateResponseStatus(ctx context.Context, requestID, donorID string, from, to domain.ResponseStatus) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE donor_responses
SET status = $4, updated_at = NOW()
WHERE request_id = $1 AND donor_id = $2 AND status = $3;
`, requestID, donorID, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// ListAcceptedByDonor returns the requests the donor has accepted or donated
// to, most recent response first.
func (r *RequestRepositoryPG) ListAcceptedByDonor(ctx context.Context, donorID string) ([]domain.BloodRequest, error) {
	rows, err := r.pool.Query(ctx, `
SELECT b.id, b.requester_id, b.patient_name, b.blood_type, b.units_needed,
       b.hospital, b.lat, b.lng, b.reason, b.required_by, b.contact_info,
       b.emergency, b.status, b.created_at, b.updated_at
FROM blood_requests b
JOIN donor_responses d ON d.request_id = b.id
WHERE d.donor_id = $1 AND d.status IN ('accepted', 'donated')
ORDER BY d.updated_at DESC;
`, donorID)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func scanRequest(row pgx.Row) (*domain.BloodRequest, error) {
	var req domain.BloodRequest
	if err := row.Scan(&req.ID, &req.RequesterID, &req.PatientName, &req.BloodType,
		&req.UnitsNeeded, &req.Hospital, &req.Location.Lat, &req.Location.Lng,
		&req.Reason, &req.RequiredBy, &req.ContactInfo, &req.Emergency,
		&req.Status, &req.CreatedAt, &req.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

func collectRequests(rows pgx.Rows) ([]domain.BloodRequest, error) {
	defer rows.Close()
	var items []domain.BloodRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
