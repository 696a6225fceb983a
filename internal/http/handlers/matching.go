package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"bloodhero/internal/domain"
	"bloodhero/internal/middleware"
)

// RequestsNearby lists open requests around the donor. The donor location is
// taken from lat/lng query parameters, then the stored profile location, then
// a GeoIP lookup of the client address; when all three are absent the search
// fails with not found.
func (a *App) RequestsNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var origin domain.Point
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
	if origin.IsZero() && a.GeoIP != nil {
		if point, err := a.GeoIP.Locate(middleware.ClientIP(r)); err == nil {
			origin = point
		}
	}

	filter := domain.NearbyFilter{}
	if v := q.Get("radius"); v != "" {
		if radius, err := strconv.ParseFloat(v, 64); err == nil {
			filter.RadiusKm = radius
		}
	}
	if v := q.Get("bloodType"); v != "" {
		bt := domain.BloodType(strings.ToUpper(strings.TrimSpace(v)))
		if !bt.Valid() {
			a.validationError(w, map[string]string{"bloodType": "Blood type is not a recognized type"})
			return
		}
		filter.BloodType = bt
	}
	filter.EmergencyOnly = q.Get("emergency") == "true"

	items, err := a.Engine.FindNearby(r.Context(), origin, filter)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": toRequestDTOs(items)})
}

// RequestsAccepted lists the requests the calling donor accepted or donated to.
func (a *App) RequestsAccepted(w http.ResponseWriter, r *http.Request) {
	items, err := a.Engine.AcceptedRequests(r.Context(), a.currentUserID(r))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": toRequestDTOs(items)})
}

// RequestAccept records the calling donor's acceptance of a request.
func (a *App) RequestAccept(w http.ResponseWriter, r *http.Request) {
	resp, err := a.Engine.Accept(r.Context(), chi.URLParam(r, "id"), a.currentUserID(r))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, responseDTO{
		DonorID:   resp.DonorID,
		Status:    string(resp.Status),
		CreatedAt: resp.CreatedAt,
		UpdatedAt: resp.UpdatedAt,
	})
}

type respondPayload struct {
	Status string `json:"status"`
}

// RequestRespond updates a donor response's status. Donors may move their own
// response; the requester who owns the request may also update it (matching
// the original API where either side drives the lifecycle).
func (a *App) RequestRespond(w http.ResponseWriter, r *http.Request) {
	var payload respondPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	status := domain.ResponseStatus(payload.Status)
	if !status.Valid() {
		a.validationError(w, map[string]string{"status": "Status must be one of accepted, declined, pending, donated"})
		return
	}

	requestID := chi.URLParam(r, "id")
	donorID := chi.URLParam(r, "donorId")
	callerID := a.currentUserID(r)

	if donorID != callerID {
		req, err := a.Requests.GetByID(r.Context(), requestID)
		if err != nil {
			a.domainError(w, r, err)
			return
		}
		if req.RequesterID != callerID {
			a.domainError(w, r, domain.ErrForbidden)
			return
		}
	}

	resp, err := a.Engine.Respond(r.Context(), requestID, donorID, status)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, responseDTO{
		DonorID:   resp.DonorID,
		Status:    string(resp.Status),
		CreatedAt: resp.CreatedAt,
		UpdatedAt: resp.UpdatedAt,
	})
}
