package donation

import (
	"context"
	"sync"
	"time"

	"bloodhero/internal/domain"
	"bloodhero/internal/notify"
)

// fakeStore implements both domain.RequestRepository and
// domain.ConfirmationRepository in memory, mirroring the conditional-write
// semantics of the SQL store so the workflow's race handling is exercised.
type fakeStore struct {
	mu            sync.Mutex
	requests      map[string]*domain.BloodRequest
	responses     map[string]map[string]*domain.DonorResponse
	confirmations map[string]*domain.DonationConfirmation
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		requests:      make(map[string]*domain.BloodRequest),
		responses:     make(map[string]map[string]*domain.DonorResponse),
		confirmations: make(map[string]*domain.DonationConfirmation),
	}
}

// --- domain.RequestRepository (the subset the workflow touches) ---

func (f *fakeStore) Create(_ context.Context, req *domain.BloodRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *req
	f.requests[req.ID] = &copied
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*domain.BloodRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (f *fakeStore) ListOpen(context.Context, int) ([]domain.BloodRequest, error) {
	return nil, nil
}

func (f *fakeStore) ListByRequester(context.Context, string, bool) ([]domain.BloodRequest, error) {
	return nil, nil
}

func (f *fakeStore) Update(_ context.Context, req *domain.BloodRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *req
	f.requests[req.ID] = &copied
	return nil
}

func (f *fakeStore) Delete(context.Context, string, string) error { return nil }

func (f *fakeStore) Nearby(context.Context, domain.Point, domain.NearbyFilter) ([]domain.BloodRequest, error) {
	return nil, nil
}

func (f *fakeStore) CreateResponse(_ context.Context, resp *domain.DonorResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	byDonor, ok := f.responses[resp.RequestID]
	if !ok {
		byDonor = make(map[string]*domain.DonorResponse)
		f.responses[resp.RequestID] = byDonor
	}
	if _, exists := byDonor[resp.DonorID]; exists {
		return domain.ErrDuplicateResponse
	}
	copied := *resp
	byDonor[resp.DonorID] = &copied
	return nil
}

func (f *fakeStore) GetResponse(_ context.Context, requestID, donorID string) (*domain.DonorResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp, ok := f.responses[requestID][donorID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *resp
	return &copied, nil
}

func (f *fakeStore) UpdateResponseStatus(_ context.Context, requestID, donorID string, from, to domain.ResponseStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp, ok := f.responses[requestID][donorID]
	if !ok || resp.Status != from {
		return domain.ErrConflict
	}
	resp.Status = to
	return nil
}

func (f *fakeStore) ListAcceptedByDonor(context.Context, string) ([]domain.BloodRequest, error) {
	return nil, nil
}

// --- domain.ConfirmationRepository ---

func (f *fakeStore) CreateConfirmation(_ context.Context, conf *domain.DonationConfirmation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.confirmations {
		if existing.RequestID == conf.RequestID && existing.DonorID == conf.DonorID &&
			existing.Status == domain.ConfirmationAwaiting {
			return domain.ErrConflict
		}
	}
	copied := *conf
	f.confirmations[conf.ID] = &copied
	return nil
}

func (f *fakeStore) GetAwaiting(_ context.Context, requestID, donorID string) (*domain.DonationConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conf := range f.confirmations {
		if conf.RequestID == requestID && conf.DonorID == donorID &&
			conf.Status == domain.ConfirmationAwaiting {
			copied := *conf
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) CountRejected(_ context.Context, requestID, donorID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, conf := range f.confirmations {
		if conf.RequestID == requestID && conf.DonorID == donorID &&
			conf.Status == domain.ConfirmationRejected {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) Confirm(_ context.Context, confirmationID, deciderID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conf, ok := f.confirmations[confirmationID]
	if !ok || conf.Status != domain.ConfirmationAwaiting {
		return 0, domain.ErrConflict
	}
	resp, ok := f.responses[conf.RequestID][conf.DonorID]
	if !ok || resp.Status != domain.ResponseAccepted {
		return 0, domain.ErrConflict
	}
	req, ok := f.requests[conf.RequestID]
	if !ok || req.UnitsNeeded <= 0 {
		return 0, domain.ErrConflict
	}

	now := time.Now()
	conf.Status = domain.ConfirmationConfirmed
	conf.DecidedBy = deciderID
	conf.DecidedAt = &now
	resp.Status = domain.ResponseDonated
	req.UnitsNeeded--
	if req.UnitsNeeded == 0 {
		req.Status = domain.RequestFulfilled
	}
	return req.UnitsNeeded, nil
}

func (f *fakeStore) Reject(_ context.Context, confirmationID, deciderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conf, ok := f.confirmations[confirmationID]
	if !ok || conf.Status != domain.ConfirmationAwaiting {
		return domain.ErrConflict
	}
	now := time.Now()
	conf.Status = domain.ConfirmationRejected
	conf.DecidedBy = deciderID
	conf.DecidedAt = &now
	return nil
}

// confirmationView adapts fakeStore to domain.ConfirmationRepository; the
// Create names collide with the request side, so the adapter renames it.
type confirmationView struct{ *fakeStore }

func (v confirmationView) Create(ctx context.Context, conf *domain.DonationConfirmation) error {
	return v.CreateConfirmation(ctx, conf)
}

// fakeProofStore records written proofs in memory.
type fakeProofStore struct {
	mu     sync.Mutex
	writes map[string][]byte
	err    error
}

func newFakeProofStore() *fakeProofStore {
	return &fakeProofStore{writes: make(map[string][]byte)}
}

func (f *fakeProofStore) Write(_ context.Context, key string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.writes[key] = append([]byte(nil), data...)
	return key, nil
}

// recordingDispatcher captures dispatched events for assertions.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event notify.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) Events() []notify.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.Event(nil), d.events...)
}
