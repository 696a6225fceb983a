package matching

import (
	"context"
	"sort"
	"sync"

	"bloodhero/internal/domain"
	"bloodhero/internal/notify"
)

// fakeRequestRepo is an in-memory domain.RequestRepository mirroring the
// conditional-write semantics of the real store.
type fakeRequestRepo struct {
	mu        sync.Mutex
	requests  map[string]*domain.BloodRequest
	responses map[string]map[string]*domain.DonorResponse // requestID -> donorID
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{
		requests:  make(map[string]*domain.BloodRequest),
		responses: make(map[string]map[string]*domain.DonorResponse),
	}
}

func (f *fakeRequestRepo) Create(_ context.Context, req *domain.BloodRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *req
	f.requests[req.ID] = &copied
	return nil
}

func (f *fakeRequestRepo) GetByID(_ context.Context, id string) (*domain.BloodRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (f *fakeRequestRepo) ListOpen(_ context.Context, limit int) ([]domain.BloodRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []domain.BloodRequest
	for _, req := range f.requests {
		if req.Status == domain.RequestOpen {
			items = append(items, *req)
		}
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (f *fakeRequestRepo) ListByRequester(_ context.Context, requesterID string, includeClosed bool) ([]domain.BloodRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []domain.BloodRequest
	for _, req := range f.requests {
		if req.RequesterID != requesterID {
			continue
		}
		if !includeClosed && req.Status != domain.RequestOpen {
			continue
		}
		items = append(items, *req)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (f *fakeRequestRepo) Update(_ context.Context, req *domain.BloodRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.requests[req.ID]; !ok {
		return domain.ErrNotFound
	}
	copied := *req
	f.requests[req.ID] = &copied
	return nil
}

func (f *fakeRequestRepo) Delete(_ context.Context, id, requesterID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.RequesterID != requesterID {
		return domain.ErrNotFound
	}
	delete(f.requests, id)
	return nil
}

func (f *fakeRequestRepo) Nearby(_ context.Context, origin domain.Point, filter domain.NearbyFilter) ([]domain.BloodRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []domain.BloodRequest
	for _, req := range f.requests {
		if req.Status != domain.RequestOpen || req.UnitsNeeded <= 0 {
			continue
		}
		if filter.BloodType != "" && !filter.BloodType.CanDonateTo(req.BloodType) {
			continue
		}
		if filter.EmergencyOnly && !req.Emergency {
			continue
		}
		distance := domain.DistanceKm(origin, req.Location)
		if distance > filter.RadiusKm {
			continue
		}
		copied := *req
		copied.DistanceKm = &distance
		items = append(items, copied)
	}
	sort.Slice(items, func(i, j int) bool {
		if *items[i].DistanceKm != *items[j].DistanceKm {
			return *items[i].DistanceKm < *items[j].DistanceKm
		}
		return items[i].RequiredBy.Before(items[j].RequiredBy)
	})
	return items, nil
}

func (f *fakeRequestRepo) CreateResponse(_ context.Context, resp *domain.DonorResponse) error {
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

func (f *fakeRequestRepo) GetResponse(_ context.Context, requestID, donorID string) (*domain.DonorResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp, ok := f.responses[requestID][donorID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *resp
	return &copied, nil
}

func (f *fakeRequestRepo) UpdateResponseStatus(_ context.Context, requestID, donorID string, from, to domain.ResponseStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp, ok := f.responses[requestID][donorID]
	if !ok || resp.Status != from {
		return domain.ErrConflict
	}
	resp.Status = to
	return nil
}

func (f *fakeRequestRepo) ListAcceptedByDonor(_ context.Context, donorID string) ([]domain.BloodRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []domain.BloodRequest
	for requestID, byDonor := range f.responses {
		resp, ok := byDonor[donorID]
		if !ok {
			continue
		}
		if resp.Status != domain.ResponseAccepted && resp.Status != domain.ResponseDonated {
			continue
		}
		if req, ok := f.requests[requestID]; ok {
			items = append(items, *req)
		}
	}
	return items, nil
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
