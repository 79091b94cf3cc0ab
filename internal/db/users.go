package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tfsgroup/siteportal/internal/model"
)

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, is_active, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (s *Store) GetRole(ctx context.Context, userID string) (model.Role, error) {
	role := model.Role{UserID: userID}
	row := s.pool.QueryRow(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, userID)
	err := row.Scan(&role.Role)
	return role, err
}

func (s *Store) GetProfileByUserID(ctx context.Context, userID string) (model.Profile, error) {
	var profile model.Profile
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, full_name, email, phone, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`, userID)
	err := row.Scan(&profile.ID, &profile.UserID, &profile.FullName, &profile.Email, &profile.Phone, &profile.CreatedAt, &profile.UpdatedAt)
	return profile, err
}

type UserAccount struct {
	User    model.User
	Profile model.Profile
	Role    string
}

// CreateUserAccount inserts the user, profile and role rows in one
// transaction so a half-created account can never be observed.
func (s *Store) CreateUserAccount(ctx context.Context, email, passwordHash, fullName string, phone *string, role string) (UserAccount, error) {
	now := time.Now().UTC()
	account := UserAccount{
		User: model.User{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: passwordHash,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		Profile: model.Profile{
			ID:        uuid.NewString(),
			FullName:  fullName,
			Email:     &email,
			Phone:     phone,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Role: role,
	}
	account.Profile.UserID = account.User.ID

	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO users (id, email, password_hash, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, true, $4, $4)
		`, account.User.ID, email, passwordHash, now); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO profiles (id, user_id, full_name, email, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
		`, account.Profile.ID, account.User.ID, fullName, email, phone, now); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO user_roles (id, user_id, role, created_at)
			VALUES ($1, $2, $3, $4)
		`, uuid.NewString(), account.User.ID, role, now)
		return err
	})
	return account, err
}

type UserSummary struct {
	UserID   string
	Email    string
	FullName string
	Phone    *string
	Role     string
	Active   bool
}

func (s *Store) ListUsers(ctx context.Context, limit int32) ([]UserSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.email, p.full_name, p.phone, r.role, u.is_active
		FROM users u
		JOIN profiles p ON p.user_id = u.id
		JOIN user_roles r ON r.user_id = u.id
		ORDER BY p.full_name
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []UserSummary
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.UserID, &u.Email, &u.FullName, &u.Phone, &u.Role, &u.Active); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type UserPatch struct {
	Email        *string
	PasswordHash *string
	FullName     *string
	Phone        *string
	Role         *string
	Active       *bool
}

// UpdateUserAccount applies a sparse patch across users, profiles and
// user_roles in one transaction.
func (s *Store) UpdateUserAccount(ctx context.Context, userID string, patch UserPatch) error {
	now := time.Now().UTC()
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if patch.Email != nil {
			if _, err := tx.Exec(ctx, `UPDATE users SET email = $2, updated_at = $3 WHERE id = $1`, userID, *patch.Email, now); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `UPDATE profiles SET email = $2, updated_at = $3 WHERE user_id = $1`, userID, *patch.Email, now); err != nil {
				return err
			}
		}
		if patch.PasswordHash != nil {
			if _, err := tx.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, userID, *patch.PasswordHash, now); err != nil {
				return err
			}
		}
		if patch.Active != nil {
			if _, err := tx.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1`, userID, *patch.Active, now); err != nil {
				return err
			}
		}
		if patch.FullName != nil {
			if _, err := tx.Exec(ctx, `UPDATE profiles SET full_name = $2, updated_at = $3 WHERE user_id = $1`, userID, *patch.FullName, now); err != nil {
				return err
			}
		}
		if patch.Phone != nil {
			if _, err := tx.Exec(ctx, `UPDATE profiles SET phone = $2, updated_at = $3 WHERE user_id = $1`, userID, *patch.Phone, now); err != nil {
				return err
			}
		}
		if patch.Role != nil {
			if _, err := tx.Exec(ctx, `UPDATE user_roles SET role = $2 WHERE user_id = $1`, userID, *patch.Role); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetProfileNames resolves a set of user ids to display names in a single
// query. Report generation depends on this staying one round trip.
func (s *Store) GetProfileNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, full_name
		FROM profiles
		WHERE user_id = ANY($1)
	`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var userID, fullName string
		if err := rows.Scan(&userID, &fullName); err != nil {
			return nil, err
		}
		names[userID] = fullName
	}
	return names, rows.Err()
}

// Refresh sessions

func (s *Store) CreateRefreshSession(ctx context.Context, userID, tokenHash string, expiresAt time.Time, userAgent, ipAddress *string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_sessions (id, user_id, token_hash, created_at, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), userID, tokenHash, time.Now().UTC(), expiresAt, userAgent, ipAddress)
	return err
}

func (s *Store) GetRefreshSession(ctx context.Context, tokenHash string) (model.RefreshSession, error) {
	var session model.RefreshSession
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address
		FROM refresh_sessions
		WHERE token_hash = $1
	`, tokenHash)
	err := row.Scan(&session.ID, &session.UserID, &session.TokenHash, &session.CreatedAt, &session.ExpiresAt, &session.RevokedAt, &session.UserAgent, &session.IPAddress)
	return session, err
}

func (s *Store) RevokeRefreshSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE refresh_sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, sessionID, at)
	return err
}

func (s *Store) RevokeRefreshSessionsByUser(ctx context.Context, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE refresh_sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`, userID, at)
	return err
}
