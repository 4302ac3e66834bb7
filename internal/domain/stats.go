package domain

import "time"

// AdminStats is the usage snapshot shown to administrators.
type AdminStats struct {
	TotalUsers        int                  `json:"total_users"`
	ActiveUsers       int                  `json:"active_users"`
	PendingUsers      int                  `json:"pending_users"`
	TotalInteractions int                  `json:"total_interactions"`
	IndexedDocuments  int                  `json:"indexed_documents"`
	TopDocuments      []DocumentUsage      `json:"top_documents,omitempty"`
	RecentDocuments   []DocumentUsageEvent `json:"recent_documents,omitempty"`
	UserSummaries     []UserActivity       `json:"user_summaries,omitempty"`
}

// DocumentUsage counts how often a document was cited.
type DocumentUsage struct {
	DocPath string `json:"doc_path"`
	Count   int    `json:"count"`
}

// DocumentUsageEvent is one recent citation event.
type DocumentUsageEvent struct {
	DocPath   string    `json:"doc_path"`
	FullName  string    `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserActivity summarizes one user's recent activity.
type UserActivity struct {
	FullName   string     `json:"full_name,omitempty"`
	Profession string     `json:"profession,omitempty"`
	State      string     `json:"state"`
	FirstSeen  time.Time  `json:"first_seen"`
	LastActive *time.Time `json:"last_active,omitempty"`
}
