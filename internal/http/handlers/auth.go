package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"bloodhero/internal/domain"
	"bloodhero/internal/middleware"
)

const sessionTTL = 24 * time.Hour

type registerRequest struct {
	Name       string           `json:"name"`
	Email      string           `json:"email"`
	Password   string           `json:"password"`
	Phone      string           `json:"phone"`
	BloodGroup domain.BloodType `json:"bloodGroup"`
	Location   *domain.Point    `json:"location"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string  `json:"token"`
	User  userDTO `json:"user"`
}

// userDTO is the outward shape of a user. Credentials are selected out.
type userDTO struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Email      string       `json:"email"`
	Phone      string       `json:"phone,omitempty"`
	Address    string       `json:"address,omitempty"`
	BloodGroup string       `json:"bloodGroup,omitempty"`
	Age        int          `json:"age,omitempty"`
	Gender     string       `json:"gender,omitempty"`
	Location   domain.Point `json:"location"`
}

func toUserDTO(u *domain.User) userDTO {
	return userDTO{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Phone:      u.Phone,
		Address:    u.Address,
		BloodGroup: string(u.BloodGroup),
		Age:        u.Age,
		Gender:     u.Gender,
		Location:   u.Location,
	}
}

func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	fields := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = "Name is required"
	}
	if strings.TrimSpace(req.Email) == "" || !strings.Contains(req.Email, "@") {
		fields["email"] = "A valid email is required"
	}
	if len(req.Password) < 8 {
		fields["password"] = "Password must be at least 8 characters"
	}
	if req.BloodGroup != "" && !req.BloodGroup.Valid() {
		fields["bloodGroup"] = "Blood group is not a recognized type"
	}
	if len(fields) > 0 {
		a.validationError(w, fields)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.domainError(w, r, err)
		return
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Phone:        req.Phone,
		BloodGroup:   req.BloodGroup,
	}
	if req.Location != nil {
		user.Location = *req.Location
	}
	if err := a.Users.Create(r.Context(), user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			a.error(w, http.StatusConflict, "conflict", "email is already registered")
			return
		}
		a.domainError(w, r, err)
		return
	}

	token, err := middleware.SignJWT(a.JWTSecret, user.ID, sessionTTL)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, sessionResponse{Token: token, User: toUserDTO(user)})
}

func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	user, err := a.Users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			return
		}
		a.domainError(w, r, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}

	token, err := middleware.SignJWT(a.JWTSecret, user.ID, sessionTTL)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sessionResponse{Token: token, User: toUserDTO(user)})
}
