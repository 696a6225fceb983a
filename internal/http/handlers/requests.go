package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bloodhero/internal/domain"
)

type responseDTO struct {
	DonorID   string    `json:"donorId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type requestDTO struct {
	ID          string        `json:"id"`
	RequesterID string        `json:"requesterId"`
	PatientName string        `json:"patientName"`
	BloodType   string        `json:"bloodType"`
	UnitsNeeded int           `json:"unitsNeeded"`
	Hospital    string        `json:"hospital"`
	Location    domain.Point  `json:"location"`
	Reason      string        `json:"reason"`
	RequiredBy  time.Time     `json:"requiredBy"`
	ContactInfo string        `json:"contactInfo"`
	Emergency   bool          `json:"emergency"`
	Status      string        `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	Responses   []responseDTO `json:"responses,omitempty"`
	DistanceKm  *float64      `json:"distanceKm,omitempty"`
}

func toRequestDTO(req *domain.BloodRequest) requestDTO {
	dto := requestDTO{
		ID:          req.ID,
		RequesterID: req.RequesterID,
		PatientName: req.PatientName,
		BloodType:   string(req.BloodType),
		UnitsNeeded: req.UnitsNeeded,
		Hospital:    req.Hospital,
		Location:    req.Location,
		Reason:      req.Reason,
		RequiredBy:  req.RequiredBy,
		ContactInfo: req.ContactInfo,
		Emergency:   req.Emergency,
		Status:      string(req.Status),
		CreatedAt:   req.CreatedAt,
		DistanceKm:  req.DistanceKm,
	}
	for _, resp := range req.Responses {
		dto.Responses = append(dto.Responses, responseDTO{
			DonorID:   resp.DonorID,
			Status:    string(resp.Status),
			CreatedAt: resp.CreatedAt,
			UpdatedAt: resp.UpdatedAt,
		})
	}
	return dto
}

func toRequestDTOs(reqs []domain.BloodRequest) []requestDTO {
	dtos := make([]requestDTO, 0, len(reqs))
	for i := range reqs {
		dtos = append(dtos, toRequestDTO(&reqs[i]))
	}
	return dtos
}

type createRequestPayload struct {
	PatientName string        `json:"patientName"`
	BloodType   string        `json:"bloodType"`
	UnitsNeeded int           `json:"unitsNeeded"`
	Hospital    string        `json:"hospital"`
	Location    *domain.Point `json:"location"`
	Reason      string        `json:"reason"`
	RequiredBy  string        `json:"requiredBy"`
	ContactInfo string        `json:"contactInfo"`
	Emergency   bool          `json:"emergency"`
}

func (a *App) RequestsList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	items, err := a.Requests.ListOpen(r.Context(), limit)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": toRequestDTOs(items)})
}

func (a *App) RequestsCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	fields := map[string]string{}
	if strings.TrimSpace(req.PatientName) == "" {
		fields["patientName"] = "Patient name is required"
	}
	bloodType := domain.BloodType(strings.ToUpper(strings.TrimSpace(req.BloodType)))
	if req.BloodType == "" {
		fields["bloodType"] = "Blood type is required"
	} else if !bloodType.Valid() {
		fields["bloodType"] = "Blood type is not a recognized type"
	}
	if req.UnitsNeeded <= 0 {
		fields["unitsNeeded"] = "Number of units needed is required"
	}
	if strings.TrimSpace(req.Hospital) == "" {
		fields["hospital"] = "Hospital information is required"
	}
	if req.Location == nil || req.Location.IsZero() {
		fields["location"] = "Location is required"
	} else if !req.Location.Valid() {
		fields["location"] = "Location coordinates are out of range"
	}
	if strings.TrimSpace(req.Reason) == "" {
		fields["reason"] = "Reason is required"
	}
	var requiredBy time.Time
	if req.RequiredBy == "" {
		fields["requiredBy"] = "Required by date is required"
	} else {
		var err error
		requiredBy, err = time.Parse(time.RFC3339, req.RequiredBy)
		if err != nil {
			fields["requiredBy"] = "Required by date must be RFC3339"
		} else if requiredBy.Before(time.Now()) {
			fields["requiredBy"] = "Required by date must be in the future"
		}
	}
	if strings.TrimSpace(req.ContactInfo) == "" {
		fields["contactInfo"] = "Contact information is required"
	}
	if len(fields) > 0 {
		a.validationError(w, fields)
		return
	}

	record := &domain.BloodRequest{
		ID:          uuid.NewString(),
		RequesterID: a.currentUserID(r),
		PatientName: strings.TrimSpace(req.PatientName),
		BloodType:   bloodType,
		UnitsNeeded: req.UnitsNeeded,
		Hospital:    strings.TrimSpace(req.Hospital),
		Location:    *req.Location,
		Reason:      strings.TrimSpace(req.Reason),
		RequiredBy:  requiredBy,
		ContactInfo: strings.TrimSpace(req.ContactInfo),
		Emergency:   req.Emergency,
		Status:      domain.RequestOpen,
	}
	if err := a.Engine.CreateRequest(r.Context(), record); err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toRequestDTO(record))
}

func (a *App) RequestGet(w http.ResponseWriter, r *http.Request) {
	req, err := a.Requests.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toRequestDTO(req))
}

// requestUpdatePayload mirrors domain.RequestUpdate with pointer fields so an
// absent key never clears a stored value.
type requestUpdatePayload struct {
	PatientName *string       `json:"patientName"`
	UnitsNeeded *int          `json:"unitsNeeded"`
	Hospital    *string       `json:"hospital"`
	Reason      *string       `json:"reason"`
	RequiredBy  *string       `json:"requiredBy"`
	ContactInfo *string       `json:"contactInfo"`
	Location    *domain.Point `json:"location"`
	Emergency   *bool         `json:"emergency"`
	Cancel      bool          `json:"cancel"`
}

func (a *App) RequestUpdate(w http.ResponseWriter, r *http.Request) {
	var payload requestUpdatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	fields := map[string]string{}
	if payload.UnitsNeeded != nil && *payload.UnitsNeeded <= 0 {
		fields["unitsNeeded"] = "Number of units needed must be positive"
	}
	if payload.Location != nil && !payload.Location.Valid() {
		fields["location"] = "Location coordinates are out of range"
	}
	var requiredBy *time.Time
	if payload.RequiredBy != nil {
		parsed, err := time.Parse(time.RFC3339, *payload.RequiredBy)
		if err != nil {
			fields["requiredBy"] = "Required by date must be RFC3339"
		} else {
			requiredBy = &parsed
		}
	}
	if len(fields) > 0 {
		a.validationError(w, fields)
		return
	}

	req, err := a.Requests.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	if req.RequesterID != a.currentUserID(r) {
		a.domainError(w, r, domain.ErrForbidden)
		return
	}

	update := domain.RequestUpdate{
		PatientName: payload.PatientName,
		UnitsNeeded: payload.UnitsNeeded,
		Hospital:    payload.Hospital,
		Reason:      payload.Reason,
		RequiredBy:  requiredBy,
		ContactInfo: payload.ContactInfo,
		Location:    payload.Location,
		Emergency:   payload.Emergency,
		Cancel:      payload.Cancel,
	}
	update.Apply(req)

	if err := a.Requests.Update(r.Context(), req); err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toRequestDTO(req))
}

func (a *App) RequestDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := a.currentUserID(r)

	req, err := a.Requests.GetByID(r.Context(), id)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	if req.RequesterID != userID {
		a.domainError(w, r, domain.ErrForbidden)
		return
	}
	if err := a.Requests.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted by a concurrent call between the read and the delete.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		a.domainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) MyRequests(w http.ResponseWriter, r *http.Request) {
	items, err := a.Engine.MyRequests(r.Context(), a.currentUserID(r))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": toRequestDTOs(items)})
}

func (a *App) MyRequestHistory(w http.ResponseWriter, r *http.Request) {
	items, err := a.Engine.MyRequestHistory(r.Context(), a.currentUserID(r))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": toRequestDTOs(items)})
}
