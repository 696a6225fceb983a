package handlers

import (
	"encoding/json"
	"net/http"

	"bloodhero/internal/domain"
)

// profileUpdateRequest mirrors domain.ProfileUpdate: pointer fields so a
// missing key and an explicit value are distinguishable. Fields absent from
// the payload are never touched.
type profileUpdateRequest struct {
	Name       *string           `json:"name"`
	Phone      *string           `json:"phone"`
	Address    *string           `json:"address"`
	BloodGroup *domain.BloodType `json:"bloodGroup"`
	Age        *int              `json:"age"`
	Gender     *string           `json:"gender"`
	Location   *domain.Point     `json:"location"`
}

func (a *App) ProfileGet(w http.ResponseWriter, r *http.Request) {
	user, err := a.Users.GetByID(r.Context(), a.currentUserID(r))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toUserDTO(user))
}

func (a *App) ProfileUpdate(w http.ResponseWriter, r *http.Request) {
	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	fields := map[string]string{}
	if req.BloodGroup != nil && !req.BloodGroup.Valid() {
		fields["bloodGroup"] = "Blood group is not a recognized type"
	}
	if req.Age != nil && (*req.Age < 16 || *req.Age > 120) {
		fields["age"] = "Age must be between 16 and 120"
	}
	if req.Location != nil && !req.Location.Valid() {
		fields["location"] = "Location coordinates are out of range"
	}
	if len(fields) > 0 {
		a.validationError(w, fields)
		return
	}

	user, err := a.Users.GetByID(r.Context(), a.currentUserID(r))
	if err != nil {
		a.domainError(w, r, err)
		return
	}

	update := domain.ProfileUpdate{
		Name:       req.Name,
		Phone:      req.Phone,
		Address:    req.Address,
		BloodGroup: req.BloodGroup,
		Age:        req.Age,
		Gender:     req.Gender,
		Location:   req.Location,
	}
	update.Apply(user)

	if err := a.Users.Update(r.Context(), user); err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toUserDTO(user))
}
