package profile

import "time"

// Profile is the role record keyed by the user id.
type Profile struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	FullName  string    `json:"full_name,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
