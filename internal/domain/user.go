package domain

import "time"

// User is a registered account. The same account may act as requester on its
// own requests and donor on everyone else's.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Phone        string
	Address      string
	BloodGroup   BloodType
	Age          int
	Gender       string
	Location     Point
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProfileUpdate carries a partial profile edit. Nil fields stay untouched,
// so an empty string in the payload never clears a stored value unless the
// client sent the field explicitly.
type ProfileUpdate struct {
	Name       *string
	Phone      *string
	Address    *string
	BloodGroup *BloodType
	Age        *int
	Gender     *string
	Location   *Point
}

// Apply merges the update into the user record.
func (u ProfileUpdate) Apply(user *User) {
	if u.Name != nil {
		user.Name = *u.Name
	}
	if u.Phone != nil {
		user.Phone = *u.Phone
	}
	if u.Address != nil {
		user.Address = *u.Address
	}
	if u.BloodGroup != nil {
		user.BloodGroup = *u.BloodGroup
	}
	if u.Age != nil {
		user.Age = *u.Age
	}
	if u.Gender != nil {
		user.Gender = *u.Gender
	}
	if u.Location != nil {
		user.Location = *u.Location
	}
}
