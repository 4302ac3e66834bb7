package domain

import "time"

// User registration states. New users walk pending_fio -> pending_profession
// -> active; only active users may chat or take quizzes.
const (
	UserStatePendingName       = "pending_fio"
	UserStatePendingProfession = "pending_profession"
	UserStateActive            = "active"
)

// User is a registered assistant user.
type User struct {
	ID         int64      `json:"id"`
	ExternalID int64      `json:"external_id"`
	Username   string     `json:"username,omitempty"`
	FullName   string     `json:"full_name,omitempty"`
	Profession string     `json:"profession,omitempty"`
	State      string     `json:"state"`
	FirstSeen  time.Time  `json:"first_seen"`
	LastActive *time.Time `json:"last_active,omitempty"`
}

// IsActive reports whether the user has completed registration.
func (u *User) IsActive() bool {
	return u.State == UserStateActive
}
