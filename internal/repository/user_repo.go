package repository

import (
	"database/sql"
	"time"

	"github.com/mkravets/safedesk/internal/domain"
)

// UserRepository handles user persistence
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate looks a user up by external id, registering a new one in the
// pending_fio state on first contact.
func (r *UserRepository) GetOrCreate(externalID int64, username string) (*domain.User, error) {
	user, err := r.getByExternalID(externalID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	now := time.Now().UTC()
	_, err = r.db.Exec(`
		INSERT INTO users (external_id, username, state, first_seen, last_active, last_state_change)
		VALUES (?, ?, ?, ?, ?, ?)
	`, externalID, username, domain.UserStatePendingName, now, now, now)
	if err != nil {
		return nil, err
	}
	return r.getByExternalID(externalID)
}

// Get retrieves a user by internal id
func (r *UserRepository) Get(id int64) (*domain.User, error) {
	row := r.db.QueryRow(`
		SELECT id, external_id, username, full_name, profession, state, first_seen, last_active
		FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

func (r *UserRepository) getByExternalID(externalID int64) (*domain.User, error) {
	row := r.db.QueryRow(`
		SELECT id, external_id, username, full_name, profession, state, first_seen, last_active
		FROM users WHERE external_id = ?
	`, externalID)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	var username, fullName, profession sql.NullString
	var lastActive sql.NullTime

	err := row.Scan(&user.ID, &user.ExternalID, &username, &fullName,
		&profession, &user.State, &user.FirstSeen, &lastActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user.Username = username.String
	user.FullName = fullName.String
	user.Profession = profession.String
	if lastActive.Valid {
		t := lastActive.Time
		user.LastActive = &t
	}
	return user, nil
}

// UpdateFullName stores the user's full name.
func (r *UserRepository) UpdateFullName(id int64, fullName string) error {
	_, err := r.db.Exec(`UPDATE users SET full_name = ? WHERE id = ?`, fullName, id)
	return err
}

// UpdateProfession stores the user's profession.
func (r *UserRepository) UpdateProfession(id int64, profession string) error {
	_, err := r.db.Exec(`UPDATE users SET profession = ? WHERE id = ?`, profession, id)
	return err
}

// UpdateState advances the registration state machine.
func (r *UserRepository) UpdateState(id int64, newState string) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(`
		UPDATE users SET state = ?, last_state_change = ?, last_active = ? WHERE id = ?
	`, newState, now, now, id)
	return err
}

// UpdateLastActive bumps the user's last activity timestamp.
func (r *UserRepository) UpdateLastActive(id int64) error {
	_, err := r.db.Exec(`UPDATE users SET last_active = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}
