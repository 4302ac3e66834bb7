package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/mkravets/safedesk/internal/domain"
)

// InteractionRepository persists the append-only audit log of exchanges and
// document citations.
type InteractionRepository struct {
	db *DB
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(db *DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// LogInteraction records one user/assistant exchange.
func (r *InteractionRepository) LogInteraction(userID int64, userText, botText string) error {
	_, err := r.db.Exec(`
		INSERT INTO interactions (id, user_id, user_text, bot_text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.New().String(), userID, userText, botText, time.Now().UTC())
	return err
}

// LogDocumentUsage records that a document was cited in an answer.
func (r *InteractionRepository) LogDocumentUsage(userID int64, docPath string) error {
	_, err := r.db.Exec(`
		INSERT INTO document_usage (id, user_id, doc_path, created_at)
		VALUES (?, ?, ?, ?)
	`, uuid.New().String(), userID, docPath, time.Now().UTC())
	return err
}

// Stats aggregates usage counters for the admin view.
func (r *InteractionRepository) Stats(limitDocs, limitRecent, limitUsers int) (*domain.AdminStats, error) {
	stats := &domain.AdminStats{}

	err := r.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&stats.TotalUsers)
	if err != nil {
		return nil, err
	}
	err = r.db.QueryRow(`SELECT COUNT(*) FROM users WHERE state = ?`, domain.UserStateActive).
		Scan(&stats.ActiveUsers)
	if err != nil {
		return nil, err
	}
	stats.PendingUsers = stats.TotalUsers - stats.ActiveUsers

	err = r.db.QueryRow(`SELECT COUNT(*) FROM interactions`).Scan(&stats.TotalInteractions)
	if err != nil {
		return nil, err
	}

	stats.TopDocuments, err = r.topDocuments(limitDocs)
	if err != nil {
		return nil, err
	}
	stats.RecentDocuments, err = r.recentDocuments(limitRecent)
	if err != nil {
		return nil, err
	}
	stats.UserSummaries, err = r.userSummaries(limitUsers)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *InteractionRepository) topDocuments(limit int) ([]domain.DocumentUsage, error) {
	rows, err := r.db.Query(`
		SELECT doc_path, COUNT(*) AS cnt
		FROM document_usage
		GROUP BY doc_path
		ORDER BY cnt DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DocumentUsage
	for rows.Next() {
		var item domain.DocumentUsage
		if err := rows.Scan(&item.DocPath, &item.Count); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *InteractionRepository) recentDocuments(limit int) ([]domain.DocumentUsageEvent, error) {
	rows, err := r.db.Query(`
		SELECT du.doc_path, du.created_at, u.full_name
		FROM document_usage du
		JOIN users u ON u.id = du.user_id
		ORDER BY du.created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DocumentUsageEvent
	for rows.Next() {
		var item domain.DocumentUsageEvent
		var fullName sql.NullString
		if err := rows.Scan(&item.DocPath, &item.CreatedAt, &fullName); err != nil {
			return nil, err
		}
		item.FullName = fullName.String
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *InteractionRepository) userSummaries(limit int) ([]domain.UserActivity, error) {
	rows, err := r.db.Query(`
		SELECT full_name, profession, state, first_seen, last_active
		FROM users
		ORDER BY last_active DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserActivity
	for rows.Next() {
		var item domain.UserActivity
		var fullName, profession sql.NullString
		var lastActive sql.NullTime
		if err := rows.Scan(&fullName, &profession, &item.State, &item.FirstSeen, &lastActive); err != nil {
			return nil, err
		}
		item.FullName = fullName.String
		item.Profession = profession.String
		if lastActive.Valid {
			t := lastActive.Time
			item.LastActive = &t
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
