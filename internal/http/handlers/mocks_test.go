package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"bloodhero/internal/domain"
	"bloodhero/internal/donation"
	"bloodhero/internal/matching"
	"bloodhero/internal/middleware"
	"bloodhero/internal/notify"
)

// fakeUserRepo is an in-memory domain.UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return domain.ErrConflict
		}
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return domain.ErrNotFound
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

// fakeRequestRepo is an in-memory domain.RequestRepository covering what the
// handlers exercise.
type fakeRequestRepo struct {
	mu        sync.Mutex
	requests  map[string]*domain.BloodRequest
	responses map[string]map[string]*domain.DonorResponse
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
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
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
		distance := domain.DistanceKm(origin, req.Location)
		if distance > filter.RadiusKm {
			continue
		}
		copied := *req
		copied.DistanceKm = &distance
		items = append(items, copied)
	}
	sort.Slice(items, func(i, j int) bool { return *items[i].DistanceKm < *items[j].DistanceKm })
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

// fakeConfirmationRepo is an in-memory domain.ConfirmationRepository wired to
// the request repo so confirmed donations decrement units the way the SQL
// transaction does.
type fakeConfirmationRepo struct {
	mu            sync.Mutex
	requests      *fakeRequestRepo
	confirmations map[string]*domain.DonationConfirmation
}

func newFakeConfirmationRepo(requests *fakeRequestRepo) *fakeConfirmationRepo {
	return &fakeConfirmationRepo{
		requests:      requests,
		confirmations: make(map[string]*domain.DonationConfirmation),
	}
}

func (f *fakeConfirmationRepo) Create(_ context.Context, conf *domain.DonationConfirmation) error {
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

func (f *fakeConfirmationRepo) GetAwaiting(_ context.Context, requestID, donorID string) (*domain.DonationConfirmation, error) {
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

func (f *fakeConfirmationRepo) CountRejected(_ context.Context, requestID, donorID string) (int, error) {
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

func (f *fakeConfirmationRepo) Confirm(ctx context.Context, confirmationID, deciderID string) (int, error) {
	f.mu.Lock()
	conf, ok := f.confirmations[confirmationID]
	if !ok || conf.Status != domain.ConfirmationAwaiting {
		f.mu.Unlock()
		return 0, domain.ErrConflict
	}
	requestID, donorID := conf.RequestID, conf.DonorID
	f.mu.Unlock()

	if err := f.requests.UpdateResponseStatus(ctx, requestID, donorID,
		domain.ResponseAccepted, domain.ResponseDonated); err != nil {
		return 0, err
	}
	req, err := f.requests.GetByID(ctx, requestID)
	if err != nil {
		return 0, err
	}
	if req.UnitsNeeded <= 0 {
		return 0, domain.ErrConflict
	}
	req.UnitsNeeded--
	if req.UnitsNeeded == 0 {
		req.Status = domain.RequestFulfilled
	}
	if err := f.requests.Update(ctx, req); err != nil {
		return 0, err
	}

	f.mu.Lock()
	now := time.Now()
	conf.Status = domain.ConfirmationConfirmed
	conf.DecidedBy = deciderID
	conf.DecidedAt = &now
	f.mu.Unlock()
	return req.UnitsNeeded, nil
}

func (f *fakeConfirmationRepo) Reject(_ context.Context, confirmationID, deciderID string) error {
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

// memoryProofStore keeps proof photos in a map.
type memoryProofStore struct {
	mu     sync.Mutex
	writes map[string][]byte
}

func newMemoryProofStore() *memoryProofStore {
	return &memoryProofStore{writes: make(map[string][]byte)}
}

func (m *memoryProofStore) Write(_ context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes[key] = append([]byte(nil), data...)
	return key, nil
}

// harness wires an App onto the production route shapes with a header-driven
// stand-in for the auth middleware.
type harness struct {
	app           *App
	users         *fakeUserRepo
	requests      *fakeRequestRepo
	confirmations *fakeConfirmationRepo
	proofs        *memoryProofStore
	router        chi.Router
}

const testUserHeader = "X-Test-User"

func newHarness(t *testing.T) *harness {
	t.Helper()

	users := newFakeUserRepo()
	requests := newFakeRequestRepo()
	confirmations := newFakeConfirmationRepo(requests)
	proofs := newMemoryProofStore()
	dispatcher := notify.NewLogDispatcher(zerolog.Nop())
	engine := matching.NewEngine(requests, dispatcher, zerolog.Nop(),
		matching.Options{DefaultRadiusKm: 25, MaxRadiusKm: 200})
	workflow := donation.NewWorkflow(requests, confirmations, proofs, dispatcher, zerolog.Nop(), 3)

	app := &App{
		Users:     users,
		Requests:  requests,
		Engine:    engine,
		Workflow:  workflow,
		Logger:    zerolog.Nop(),
		JWTSecret: "test-secret",
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID := r.Header.Get(testUserHeader); userID != "" {
				r = r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	})
	router.Post("/api/auth/register", app.Register)
	router.Post("/api/auth/login", app.Login)
	router.Get("/api/profile", app.ProfileGet)
	router.Put("/api/profile", app.ProfileUpdate)
	router.Route("/api/requests", func(r chi.Router) {
		r.Get("/", app.RequestsList)
		r.Post("/", app.RequestsCreate)
		r.Get("/me", app.MyRequests)
		r.Get("/history", app.MyRequestHistory)
		r.Get("/nearby", app.RequestsNearby)
		r.Get("/accepted", app.RequestsAccepted)
		r.Get("/{id}", app.RequestGet)
		r.Put("/{id}", app.RequestUpdate)
		r.Delete("/{id}", app.RequestDelete)
		r.Post("/{id}/accept", app.RequestAccept)
		r.Put("/{id}/respond/{donorId}", app.RequestRespond)
		r.Post("/{requestId}/confirm-donation", app.ConfirmDonation)
		r.Put("/{requestId}/donation-status", app.DonationStatus)
		r.Get("/directions/{requestId}", app.GetDirections)
	})

	return &harness{
		app:           app,
		users:         users,
		requests:      requests,
		confirmations: confirmations,
		proofs:        proofs,
		router:        router,
	}
}

func (h *harness) do(t *testing.T, method, target, userID string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(testUserHeader, userID)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func jsonBody(s string) io.Reader { return strings.NewReader(s) }
