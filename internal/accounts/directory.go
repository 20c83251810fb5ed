package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

var ErrUnknownUser = errors.New("unknown user")

type User struct {
	ID       string
	Username string
	FullName string
	Email    string
	Role     Role
}

// DisplayName prefers the full name.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Directory resolves users from Postgres; *pgxpool.Pool satisfies querier.
type Directory struct {
	DB querier
}

func (d Directory) Lookup(ctx context.Context, id string) (User, error) {
	var (
		u    User
		role string
	)
	err := d.DB.QueryRow(ctx, `
		SELECT id, username, full_name, email, role FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUnknownUser
	}
	if err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}
