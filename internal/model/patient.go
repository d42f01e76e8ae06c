package model

import "time"

// Gender values accepted by the registry. The store enforces the same set
// with a CHECK constraint; validation rejects anything else before a write is
// attempted.
var GenderOptions = []string{"Male", "Female", "Other"}

// BloodGroups is the fixed set of accepted blood group values. Blood group is
// optional; empty means not recorded.
var BloodGroups = []string{"A+", "A-", "B+", "B-", "O+", "O-", "AB+", "AB-"}

// CreatedAtLayout is the writer-assigned creation timestamp format: fixed
// width UTC milliseconds, so lexicographic order equals chronological order
// and the store's ORDER BY on the text column is a real time ordering.
const CreatedAtLayout = "2006-01-02T15:04:05.000Z"

// Patient is the sole persisted entity. Records are immutable once written;
// the only mutation the registry knows is append.
type Patient struct {
	ID                int64      `db:"id" json:"id"`
	FirstName         string     `db:"firstname" json:"firstname"`
	LastName          string     `db:"lastname" json:"lastname"`
	Age               int        `db:"age" json:"age"`
	Gender            string     `db:"gender" json:"gender"`
	ContactNumber     string     `db:"contactnumber" json:"contactnumber"`
	Email             string     `db:"email" json:"email"`
	Address           string     `db:"address" json:"address"`
	BloodGroup        string     `db:"bloodgroup" json:"bloodgroup"`
	MedicalConditions Conditions `db:"medicalconditions" json:"medicalconditions"`
	CreatedAt         string     `db:"createdat" json:"createdat"`
}

// RegisterPatientRequest carries the raw submitted fields of a registration.
// MedicalConditions is free comma-separated text; the workflow canonicalizes
// it before the write.
type RegisterPatientRequest struct {
	FirstName         string `json:"firstName" validate:"required"`
	LastName          string `json:"lastName" validate:"required"`
	Age               int    `json:"age" validate:"required,min=1"`
	Gender            string `json:"gender" validate:"required,oneof=Male Female Other"`
	ContactNumber     string `json:"contactNumber" validate:"required,len=10,number"`
	Email             string `json:"email"`
	Address           string `json:"address"`
	BloodGroup        string `json:"bloodGroup" validate:"omitempty,oneof=A+ A- B+ B- O+ O- AB+ AB-"`
	MedicalConditions string `json:"medicalConditions"`
}

// NewCreatedAt returns the creation timestamp for a record written now.
func NewCreatedAt() string {
	return time.Now().UTC().Format(CreatedAtLayout)
}
