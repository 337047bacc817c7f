package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/credcore"
	"github.com/MrEthical07/credcore/internal/dbx"
)

// ErrUserExists is returned by Users.Create when the id or username is taken.
var ErrUserExists = errors.New("user already exists")

// Users is a PostgreSQL-backed credcore.UserDirectory that also upgrades
// password hashes on login.
type Users struct {
	db dbx.DBTX
}

var (
	_ credcore.UserDirectory       = (*Users)(nil)
	_ credcore.PasswordHashUpdater = (*Users)(nil)
)

// NewUsers constructs Users over db, which may be a *sql.DB or *sql.Tx.
func NewUsers(db dbx.DBTX) *Users {
	return &Users{db: db}
}

const selectUser = `
	SELECT id, username, email, role, password_hash
	FROM users
`

func (u *Users) FindByUsername(ctx context.Context, username string) (credcore.UserRecord, error) {
	return u.findOne(ctx, selectUser+` WHERE username = $1`, username)
}

func (u *Users) FindByID(ctx context.Context, id string) (credcore.UserRecord, error) {
	return u.findOne(ctx, selectUser+` WHERE id = $1`, id)
}

func (u *Users) findOne(ctx context.Context, query string, arg string) (credcore.UserRecord, error) {
	var rec credcore.UserRecord
	err := u.db.QueryRowContext(ctx, query, arg).Scan(
		&rec.ID, &rec.Username, &rec.Email, &rec.Role, &rec.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return credcore.UserRecord{}, credcore.ErrUserNotFound
		}
		return credcore.UserRecord{}, fmt.Errorf("find user: %w", err)
	}
	return rec, nil
}

// UpdatePasswordHash replaces the stored hash for userID.
func (u *Users) UpdatePasswordHash(ctx context.Context, userID, encodedHash string) error {
	res, err := u.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, userID, encodedHash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if n == 0 {
		return credcore.ErrUserNotFound
	}
	return nil
}

// Create inserts rec. An empty Role is stored as the column default.
func (u *Users) Create(ctx context.Context, rec credcore.UserRecord) error {
	if rec.ID == "" || rec.Username == "" || rec.PasswordHash == "" {
		return errors.New("user id, username and password hash are required")
	}
	role := rec.Role
	if role == "" {
		role = "user"
	}
	_, err := u.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.Username, rec.Email, role, rec.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
