package notify

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs("n1", "u1", (*string)(nil), "order", "hello", "/x", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = Store{DB: mock}.Create(context.Background(), Notice{
		ID: "n1", RecipientID: "u1", Type: TypeOrder, Message: "hello", Link: "/x", CreatedAt: at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreMarkRead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s := Store{DB: mock}

	mock.ExpectExec(`UPDATE notifications SET is_read = TRUE\s+WHERE id = \$1 AND recipient_id = \$2 AND NOT is_read`).
		WithArgs("n1", "u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	changed, err := s.MarkRead(context.Background(), "u1", "n1")
	require.NoError(t, err)
	assert.True(t, changed)

	mock.ExpectExec(`UPDATE notifications SET is_read = TRUE`).
		WithArgs("n2", "u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("n2", "u1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	_, err = s.MarkRead(context.Background(), "u1", "n2")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreMarkAllRead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE notifications SET is_read = TRUE WHERE recipient_id = \$1 AND NOT is_read`).
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	n, err := Store{DB: mock}.MarkAllRead(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
