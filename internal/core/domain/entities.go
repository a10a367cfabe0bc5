package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RecordKind identifies one of the two accreditation collections
type RecordKind string

const (
	FacilityKind     RecordKind = "facility"
	ProfessionalKind RecordKind = "health-professional"
)

// ParseRecordKind maps a path segment or query value to a RecordKind
func ParseRecordKind(s string) (RecordKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "facility", "facilities":
		return FacilityKind, nil
	case "health-professional", "healthcare-professional", "professional", "professionals":
		return ProfessionalKind, nil
	}
	return "", fmt.Errorf("%w: unknown record kind %q", ErrInvalidInput, s)
}

// Label is the human readable name used in CSV headers and chart titles
func (k RecordKind) Label() string {
	if k == FacilityKind {
		return "Facility"
	}
	return "Healthcare Professional"
}

// ClaimStatus is the receipt state of a record.
// The record store spells the received value "RECIEVED"; both spellings are accepted.
type ClaimStatus string

const (
	StatusReceived    ClaimStatus = "RECIEVED"
	StatusNotReceived ClaimStatus = "NOT_RECEIVED"
)

// IsReceived reports whether the record counts toward statistics
func (s ClaimStatus) IsReceived() bool {
	switch strings.ToUpper(strings.TrimSpace(string(s))) {
	case "RECEIVED", "RECIEVED":
		return true
	}
	return false
}

// Valid reports whether s is one of the two claim states
func (s ClaimStatus) Valid() bool {
	if s.IsReceived() {
		return true
	}
	v := strings.ToUpper(strings.TrimSpace(string(s)))
	return v == "NOT_RECEIVED" || v == "NOT_RECIEVED"
}

// Normalize returns the spelling the record store expects
func (s ClaimStatus) Normalize() ClaimStatus {
	switch {
	case s == "":
		return ""
	case s.IsReceived():
		return StatusReceived
	default:
		return StatusNotReceived
	}
}

// Label renders the status for exports
func (s ClaimStatus) Label() string {
	if s.IsReceived() {
		return "RECEIVED"
	}
	return "NOT RECEIVED"
}

// AccreditationStatus is independent of the claim status
type AccreditationStatus string

const (
	AccreditationAccepted AccreditationStatus = "ACCEPTED"
	AccreditationPending  AccreditationStatus = "PENDING"
)

func (s AccreditationStatus) Valid() bool {
	v := AccreditationStatus(strings.ToUpper(strings.TrimSpace(string(s))))
	return v == AccreditationAccepted || v == AccreditationPending
}

// Label renders the status for exports. Anything but PENDING is shown as ACCEPTED.
func (s AccreditationStatus) Label() string {
	if strings.EqualFold(strings.TrimSpace(string(s)), string(AccreditationPending)) {
		return string(AccreditationPending)
	}
	return string(AccreditationAccepted)
}

// RecordID is the server-assigned identifier. The record store may send it
// as a JSON number or a string; numeric ids are written back as numbers.
type RecordID string

func (id *RecordID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*id = RecordID(v)
		return nil
	}
	*id = RecordID(s)
	return nil
}

func (id RecordID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id RecordID) String() string {
	return string(id)
}

// Level is a facility tier, 1 through 4. Zero means missing or unparseable.
type Level int

const (
	MinLevel Level = 1
	MaxLevel Level = 4
)

func (l Level) Valid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// UnmarshalJSON accepts a number or a numeric string such as "1".
// Values that cannot be read leave the level at zero instead of failing the decode.
func (l *Level) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	*l = 0
	if s == "" || s == "null" {
		return nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && f == float64(int(f)) {
		*l = Level(int(f))
	}
	return nil
}

// Record holds the fields shared by facilities and professionals
type Record struct {
	ID                  RecordID            `json:"id,omitempty"`
	LicenceNumber       string              `json:"licenceNumber"`
	Name                string              `json:"name"`
	Address             string              `json:"address"`
	ContactNumber       string              `json:"contactNumber"`
	Email               string              `json:"email"`
	SendDate            Timestamp           `json:"sendDate"`
	ReceivedDate        Timestamp           `json:"receivedDate"`
	Status              ClaimStatus         `json:"status"`
	AccreditationStatus AccreditationStatus `json:"accreditationStatus"`
	DateClaimed         Timestamp           `json:"dateClaimed"`
	ReceivedBy          *string             `json:"receivedBy"`
}

// Base returns the shared fields
func (r Record) Base() Record {
	return r
}

// Accreditable is implemented by Facility and Professional
type Accreditable interface {
	Kind() RecordKind
	Base() Record
	// GroupKey is the series a received record is counted under
	GroupKey() (string, error)
	// Category is the kind-specific column value (level or specialization)
	Category() string
	Validate() error
}

// Facility is an accredited healthcare institution
type Facility struct {
	Record
	Level Level `json:"level"`
}

func (f Facility) Kind() RecordKind {
	return FacilityKind
}

func (f Facility) GroupKey() (string, error) {
	if !f.Level.Valid() {
		return "", ErrInvalidLevel
	}
	return fmt.Sprintf("level%d", f.Level), nil
}

func (f Facility) Category() string {
	if f.Level == 0 {
		return ""
	}
	return strconv.Itoa(int(f.Level))
}

func (f Facility) Validate() error {
	v := validateRecord(f.Record)
	if !f.Level.Valid() {
		v.Add("level", fmt.Sprintf("Level must be between %d and %d", MinLevel, MaxLevel))
	}
	return v.OrNil()
}

// OtherSpecialization is the group for professionals without a specialization
const OtherSpecialization = "other"

// Specializations offered by the entry forms
var Specializations = []string{"dentist", "doctor", "nurse", "ob-gyn", "pediatrician", "surgeon", OtherSpecialization}

// Professional is an accredited individual practitioner
type Professional struct {
	Record
	Specialization string `json:"specialization"`
}

func (p Professional) Kind() RecordKind {
	return ProfessionalKind
}

func (p Professional) GroupKey() (string, error) {
	key := strings.ToLower(strings.TrimSpace(p.Specialization))
	if key == "" {
		return OtherSpecialization, nil
	}
	return key, nil
}

func (p Professional) Category() string {
	return p.Specialization
}

func (p Professional) Validate() error {
	v := validateRecord(p.Record)
	if strings.TrimSpace(p.Specialization) == "" {
		v.Add("specialization", "Specialization is required")
	}
	return v.OrNil()
}

func validateRecord(r Record) *ValidationError {
	v := &ValidationError{}
	if strings.TrimSpace(r.Name) == "" {
		v.Add("name", "Name is required")
	}
	if strings.TrimSpace(r.LicenceNumber) == "" {
		v.Add("licenceNumber", "Licence number is required")
	}
	if r.Status != "" && !r.Status.Valid() {
		v.Add("status", "Status must be RECEIVED or NOT_RECEIVED")
	}
	if r.AccreditationStatus != "" && !r.AccreditationStatus.Valid() {
		v.Add("accreditationStatus", "Accreditation status must be ACCEPTED or PENDING")
	}
	for field, ts := range map[string]Timestamp{
		"sendDate":     r.SendDate,
		"receivedDate": r.ReceivedDate,
		"dateClaimed":  r.DateClaimed,
	} {
		if ts.Malformed() {
			v.Add(field, "Invalid date")
		}
	}
	if r.SendDate.Valid && r.ReceivedDate.Valid && r.ReceivedDate.Time.Before(r.SendDate.Time) {
		v.Add("receivedDate", "Received date cannot be before send date")
	}
	return v
}

// Profile is the signed-in employee as returned by the record store
type Profile struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Session is the server-side authentication context for one sign-in
type Session struct {
	ID            string
	Profile       Profile
	UpstreamToken string
	ExpiresAt     time.Time
	CreatedAt     time.Time
	RevokedAt     *time.Time
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}
