package models

// User is the slice of the external user directory this engine consumes:
// display identity plus fallback contact details.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}
