package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ciipa/plataforma/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userCols = `id, email, password_hash, role, bio, twofactor_code, twofactor_expires_at, twofactor_attempts, created_at`

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var code sql.NullString
	var expires sql.NullTime
	err := scanner.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Bio,
		&code, &expires, &u.TwoFactorAttempts, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if code.Valid {
		u.TwoFactorCode = &code.String
	}
	if expires.Valid {
		u.TwoFactorExpiresAt = &expires.Time
	}
	return &u, nil
}

func (s *UserStore) Create(email, passwordHash, role string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (email, password_hash, role) VALUES (?, ?, ?)`,
		email, passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail performs a case-sensitive exact match on the email column.
func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) List() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CountByRole returns the number of users with the given role.
func (s *UserStore) CountByRole(role string) (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE role = ?`, role).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return count, nil
}

// SetTwoFactorCode stores a fresh one-time code for the user, replacing any
// previous code and resetting the attempt counter.
func (s *UserStore) SetTwoFactorCode(id int64, code string, expiresAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE users SET twofactor_code = ?, twofactor_expires_at = ?, twofactor_attempts = 0 WHERE id = ?`,
		code, expiresAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set twofactor code: %w", err)
	}
	return nil
}

// ClearTwoFactorCode removes the stored one-time code so it cannot be replayed.
func (s *UserStore) ClearTwoFactorCode(id int64) error {
	_, err := s.db.Exec(
		`UPDATE users SET twofactor_code = NULL, twofactor_expires_at = NULL, twofactor_attempts = 0 WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("clear twofactor code: %w", err)
	}
	return nil
}

// IncrementTwoFactorAttempts bumps the failed-confirmation counter and
// returns the new value.
func (s *UserStore) IncrementTwoFactorAttempts(id int64) (int, error) {
	_, err := s.db.Exec(
		`UPDATE users SET twofactor_attempts = twofactor_attempts + 1 WHERE id = ?`,
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("increment twofactor attempts: %w", err)
	}

	var attempts int
	err = s.db.QueryRow(`SELECT twofactor_attempts FROM users WHERE id = ?`, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("read twofactor attempts: %w", err)
	}
	return attempts, nil
}

func (s *UserStore) UpdatePassword(id int64, passwordHash string) error {
	_, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
