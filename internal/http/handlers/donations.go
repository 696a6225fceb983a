package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bloodhero/internal/domain"
)

type confirmationDTO struct {
	ID          string     `json:"id"`
	RequestID   string     `json:"requestId"`
	DonorID     string     `json:"donorId"`
	ProofKey    string     `json:"proofKey"`
	Status      string     `json:"status"`
	SubmittedAt time.Time  `json:"submittedAt"`
	DecidedBy   string     `json:"decidedBy,omitempty"`
	DecidedAt   *time.Time `json:"decidedAt,omitempty"`
}

func toConfirmationDTO(conf *domain.DonationConfirmation) confirmationDTO {
	return confirmationDTO{
		ID:          conf.ID,
		RequestID:   conf.RequestID,
		DonorID:     conf.DonorID,
		ProofKey:    conf.ProofKey,
		Status:      string(conf.Status),
		SubmittedAt: conf.SubmittedAt,
		DecidedBy:   conf.DecidedBy,
		DecidedAt:   conf.DecidedAt,
	}
}

// ConfirmDonation accepts a multipart photo proof from the calling donor and
// opens an awaiting confirmation on the request.
func (a *App) ConfirmDonation(w http.ResponseWriter, r *http.Request) {
	maxBytes := a.MaxProofBytes
	if maxBytes <= 0 {
		maxBytes = 8 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "expected multipart form with a photo")
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		a.validationError(w, map[string]string{"photo": "Proof photo is required"})
		return
	}
	defer file.Close()

	photo, err := io.ReadAll(file)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read photo")
		return
	}
	if contentType := http.DetectContentType(photo); contentType != "image/jpeg" &&
		contentType != "image/png" && contentType != "image/webp" {
		a.validationError(w, map[string]string{"photo": "Proof photo must be a JPEG, PNG or WebP image"})
		return
	}

	conf, err := a.Workflow.SubmitProof(r.Context(), chi.URLParam(r, "requestId"),
		a.currentUserID(r), photo, header.Filename)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toConfirmationDTO(conf))
}

type donationDecisionPayload struct {
	DonorID string `json:"donorId"`
	Status  string `json:"status"`
}

// DonationStatus applies the requester's confirmed/rejected decision on an
// awaiting proof.
func (a *App) DonationStatus(w http.ResponseWriter, r *http.Request) {
	var payload donationDecisionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	fields := map[string]string{}
	if payload.DonorID == "" {
		fields["donorId"] = "Donor id is required"
	}
	decision := domain.ConfirmationStatus(payload.Status)
	if decision != domain.ConfirmationConfirmed && decision != domain.ConfirmationRejected {
		fields["status"] = "Status must be confirmed or rejected"
	}
	if len(fields) > 0 {
		a.validationError(w, fields)
		return
	}

	conf, err := a.Workflow.Decide(r.Context(), chi.URLParam(r, "requestId"),
		payload.DonorID, decision, a.currentUserID(r))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toConfirmationDTO(conf))
}

// GetDirections resolves a route from the caller's location to the request's
// hospital coordinates via the routing collaborator.
func (a *App) GetDirections(w http.ResponseWriter, r *http.Request) {
	req, err := a.Requests.GetByID(r.Context(), chi.URLParam(r, "requestId"))
	if err != nil {
		a.domainError(w, r, err)
		return
	}

	var origin domain.Point
	q := r.URL.Query()
	if latStr, lngStr := q.Get("lat"), q.Get("lng"); latStr != "" && lngStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lng, errLng := strconv.ParseFloat(lngStr, 64)
		if errLat != nil || errLng != nil {
			a.validationError(w, map[string]string{"lat": "Coordinates must be numeric"})
			return
		}
		origin = domain.Point{Lat: lat, Lng: lng}
	}
	if origin.IsZero() {
		user, err := a.Users.GetByID(r.Context(), a.currentUserID(r))
		if err != nil {
			a.domainError(w, r, err)
			return
		}
		origin = user.Location
	}
	if origin.IsZero() {
		a.domainError(w, r, domain.ErrLocationUnset)
		return
	}

	if a.Directions == nil {
		a.error(w, http.StatusBadGateway, "upstream", "routing service is not configured")
		return
	}
	route, err := a.Directions.Route(r.Context(), origin, req.Location)
	if err != nil {
		a.Logger.Warn().Err(err).Str("request_id", req.ID).Msg("directions lookup failed")
		a.error(w, http.StatusBadGateway, "upstream", "failed to resolve directions")
		return
	}
	a.json(w, http.StatusOK, route)
}
