package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensRoundTrip(t *testing.T) {
	tok := NewTokens("secret", time.Hour)
	raw, err := tok.Issue(Identity{UserID: "u1", Role: RoleSeller})
	require.NoError(t, err)

	id, err := tok.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Role: RoleSeller}, id)
}

func TestTokensRejects(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tok := &Tokens{Secret: []byte("secret"), TTL: time.Hour, Clock: func() time.Time { return now }}
	raw, err := tok.Issue(Identity{UserID: "u1", Role: RoleBuyer})
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokens("other", time.Hour).Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("expired", func(t *testing.T) {
		later := &Tokens{Secret: []byte("secret"), Clock: func() time.Time { return now.Add(2 * time.Hour) }}
		_, err := later.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("unknown role", func(t *testing.T) {
		bad, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u1", Role: "admin"}).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = tok.Parse(bad)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := tok.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("incomplete identity", func(t *testing.T) {
		_, err := tok.Issue(Identity{UserID: "u1"})
		assert.Error(t, err)
	})
}

func TestDirectoryLookup(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, username, full_name, email, role FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "full_name", "email", "role"}).
			AddRow("u1", "juan", "Juan Cruz", "juan@example.com", "buyer"))
	mock.ExpectQuery(`FROM users`).
		WithArgs("u2").
		WillReturnError(pgx.ErrNoRows)

	d := Directory{DB: mock}
	u, err := d.Lookup(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Juan Cruz", u.DisplayName())
	assert.Equal(t, RoleBuyer, u.Role)

	_, err = d.Lookup(context.Background(), "u2")
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDisplayNameFallsBackToUsername(t *testing.T) {
	assert.Equal(t, "juan", User{Username: "juan"}.DisplayName())
}
