package domain

import "time"

// BloodType enumerates the standard ABO/Rh blood types.
type BloodType string

const (
	BloodAPos  BloodType = "A+"
	BloodANeg  BloodType = "A-"
	BloodBPos  BloodType = "B+"
	BloodBNeg  BloodType = "B-"
	BloodABPos BloodType = "AB+"
	BloodABNeg BloodType = "AB-"
	BloodOPos  BloodType = "O+"
	BloodONeg  BloodType = "O-"
)

// BloodTypes lists every recognized blood type.
var BloodTypes = []BloodType{
	BloodAPos, BloodANeg, BloodBPos, BloodBNeg,
	BloodABPos, BloodABNeg, BloodOPos, BloodONeg,
}

// Valid reports whether t is a recognized blood type.
func (t BloodType) Valid() bool {
	for _, bt := range BloodTypes {
		if t == bt {
			return true
		}
	}
	return false
}

// compatibleDonors maps a recipient blood type to the donor types that can
// safely give to it, per the standard ABO/Rh donation table.
var compatibleDonors = map[BloodType][]BloodType{
	BloodAPos:  {BloodAPos, BloodANeg, BloodOPos, BloodONeg},
	BloodANeg:  {BloodANeg, BloodONeg},
	BloodBPos:  {BloodBPos, BloodBNeg, BloodOPos, BloodONeg},
	BloodBNeg:  {BloodBNeg, BloodONeg},
	BloodABPos: BloodTypes,
	BloodABNeg: {BloodANeg, BloodBNeg, BloodABNeg, BloodONeg},
	BloodOPos:  {BloodOPos, BloodONeg},
	BloodONeg:  {BloodONeg},
}

// CanDonateTo reports whether a donor of type t may donate to a recipient
// of type recipient.
func (t BloodType) CanDonateTo(recipient BloodType) bool {
	for _, donor := range compatibleDonors[recipient] {
		if t == donor {
			return true
		}
	}
	return false
}

// CompatibleRecipients returns the recipient blood types a donor of type t
// can serve. Nearby searches use it to restrict results to requests the
// donor could actually fulfill.
func (t BloodType) CompatibleRecipients() []BloodType {
	var out []BloodType
	for _, recipient := range BloodTypes {
		if t.CanDonateTo(recipient) {
			out = append(out, recipient)
		}
	}
	return out
}

// RequestStatus is the lifecycle state of a blood request.
type RequestStatus string

const (
	RequestOpen      RequestStatus = "open"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestExpired   RequestStatus = "expired"
	RequestCancelled RequestStatus = "cancelled"
)

// ResponseStatus is the state of a donor's response to a request.
type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "pending"
	ResponseAccepted ResponseStatus = "accepted"
	ResponseDeclined ResponseStatus = "declined"
	ResponseDonated  ResponseStatus = "donated"
)

// Valid reports whether s is a recognized response status.
func (s ResponseStatus) Valid() bool {
	switch s {
	case ResponsePending, ResponseAccepted, ResponseDeclined, ResponseDonated:
		return true
	}
	return false
}

// responseTransitions is the forward-only transition table for donor
// responses. Reverting a rejected donation proof back to "accepted" is done
// by the confirmation workflow through the store, not through this table.
var responseTransitions = map[ResponseStatus][]ResponseStatus{
	ResponsePending:  {ResponseAccepted, ResponseDeclined},
	ResponseAccepted: {ResponseDonated},
}

// CanTransition reports whether a donor response may move from to next.
func CanTransition(from, to ResponseStatus) bool {
	for _, allowed := range responseTransitions[from] {
		if to == allowed {
			return true
		}
	}
	return false
}

// DonorResponse records one donor's standing on a request. A donor holds at
// most one response per request.
type DonorResponse struct {
	RequestID string
	DonorID   string
	Status    ResponseStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BloodRequest is a plea for blood units owned by the requester.
type BloodRequest struct {
	ID          string
	RequesterID string
	PatientName string
	BloodType   BloodType
	UnitsNeeded int
	Hospital    string
	Location    Point
	Reason      string
	RequiredBy  time.Time
	ContactInfo string
	Emergency   bool
	Status      RequestStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Responses []DonorResponse
	// DistanceKm is populated by nearby queries only.
	DistanceKm *float64
}

// RequestUpdate carries a partial update. Nil fields are left untouched;
// the merge happens in one place so handlers never poke at records directly.
type RequestUpdate struct {
	PatientName *string
	UnitsNeeded *int
	Hospital    *string
	Reason      *string
	RequiredBy  *time.Time
	ContactInfo *string
	Location    *Point
	Emergency   *bool
	Cancel      bool
}

// Apply merges the update into the request.
func (u RequestUpdate) Apply(r *BloodRequest) {
	if u.PatientName != nil {
		r.PatientName = *u.PatientName
	}
	if u.UnitsNeeded != nil {
		r.UnitsNeeded = *u.UnitsNeeded
	}
	if u.Hospital != nil {
		r.Hospital = *u.Hospital
	}
	if u.Reason != nil {
		r.Reason = *u.Reason
	}
	if u.RequiredBy != nil {
		r.RequiredBy = *u.RequiredBy
	}
	if u.ContactInfo != nil {
		r.ContactInfo = *u.ContactInfo
	}
	if u.Location != nil {
		r.Location = *u.Location
	}
	if u.Emergency != nil {
		r.Emergency = *u.Emergency
	}
	if u.Cancel {
		r.Status = RequestCancelled
	}
}

// NearbyFilter narrows a nearby query.
type NearbyFilter struct {
	RadiusKm      float64
	BloodType     BloodType // zero value: no blood-type restriction
	EmergencyOnly bool
	Limit         int
}
