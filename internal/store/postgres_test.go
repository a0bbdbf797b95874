package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proco-workers/internal/models"
)

var t0 = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

var messageRows = []string{"id", "issue_id", "property_id", "tenant_id", "role", "content", "created_at"}

var vendorRows = []string{"id", "name", "email", "specialty", "hourly_rate", "rating"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// ==========================
// Transactions
// ==========================

func TestRunner_WithTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO chat_messages`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := NewRunner(db).WithTx(context.Background(), func(q *Queries) error {
			return q.InsertMessage(context.Background(), &models.Message{
				ID: "m1", TenantID: "t1", PropertyID: strPtr("p1"), Role: models.RoleUser, Content: "hi", CreatedAt: t0,
			})
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO chat_messages`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		boom := errors.New("model unavailable")
		err := NewRunner(db).WithTx(context.Background(), func(q *Queries) error {
			if err := q.InsertMessage(context.Background(), &models.Message{ID: "m1", TenantID: "t1", Role: models.RoleUser, CreatedAt: t0}); err != nil {
				return err
			}
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		err := NewRunner(db).WithTx(context.Background(), func(q *Queries) error { return nil })

		assert.ErrorIs(t, err, ErrBegin)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		err := NewRunner(db).WithTx(context.Background(), func(q *Queries) error { return nil })

		assert.ErrorIs(t, err, ErrCommit)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// ==========================
// Users
// ==========================

func TestQueries_GetUser(t *testing.T) {
	tests := []struct {
		name     string
		mockRows func(mock sqlmock.Sqlmock)
		wantErr  error
		validate func(t *testing.T, u *models.User)
	}{
		{
			name: "tenant with property",
			mockRows: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT id, email, role, name, property_id FROM users WHERE id = \$1`).
					WithArgs("t1").
					WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "name", "property_id"}).
						AddRow("t1", "tina@example.com", "tenant", "Tina", "p1"))
			},
			validate: func(t *testing.T, u *models.User) {
				assert.Equal(t, models.UserRoleTenant, u.Role)
				require.NotNil(t, u.PropertyID)
				assert.Equal(t, "p1", *u.PropertyID)
			},
		},
		{
			name: "landlord without property",
			mockRows: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM users`).
					WithArgs("t1").
					WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "name", "property_id"}).
						AddRow("t1", "lee@example.com", "landlord", "Lee", nil))
			},
			validate: func(t *testing.T, u *models.User) {
				assert.Equal(t, models.UserRoleLandlord, u.Role)
				assert.Nil(t, u.PropertyID)
			},
		},
		{
			name: "missing user",
			mockRows: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM users`).WithArgs("t1").WillReturnError(sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			tt.mockRows(mock)

			u, err := New(db).GetUser(context.Background(), "t1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				tt.validate(t, u)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// ==========================
// Chat messages
// ==========================

func TestQueries_RecentScopeMessages(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM chat_messages WHERE tenant_id = \$1 AND property_id = \$2 AND issue_id IS NULL ORDER BY created_at DESC, id DESC LIMIT \$3`).
		WithArgs("t1", "p1", 12).
		WillReturnRows(sqlmock.NewRows(messageRows).
			AddRow("m2", nil, "p1", "t1", "assistant", "When did it start?", t0.Add(time.Minute)).
			AddRow("m1", nil, "p1", "t1", "user", "sink leaking", t0))

	msgs, err := New(db).RecentScopeMessages(context.Background(), "t1", "p1", 12)

	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].ID)
	assert.Equal(t, models.RoleAssistant, msgs[0].Role)
	assert.Nil(t, msgs[0].IssueID)
	require.NotNil(t, msgs[1].PropertyID)
	assert.Equal(t, "p1", *msgs[1].PropertyID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Three scope-only messages are linked once and come back by issue id in
// order; a second backfill touches nothing.
func TestQueries_Backfill(t *testing.T) {
	db, mock := newMock(t)
	q := New(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE chat_messages SET issue_id = \$1 WHERE tenant_id = \$2 AND property_id = \$3 AND issue_id IS NULL`).
		WithArgs("issue-1", "t1", "p1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(`FROM chat_messages WHERE issue_id = \$1 ORDER BY created_at ASC, id ASC`).
		WithArgs("issue-1").
		WillReturnRows(sqlmock.NewRows(messageRows).
			AddRow("m1", "issue-1", "p1", "t1", "user", "sink leaking", t0).
			AddRow("m2", "issue-1", "p1", "t1", "assistant", "How bad?", t0.Add(time.Minute)).
			AddRow("m3", "issue-1", "p1", "t1", "user", "please escalate", t0.Add(2*time.Minute)))
	mock.ExpectExec(`UPDATE chat_messages`).
		WithArgs("issue-1", "t1", "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := q.LinkScopeMessages(ctx, "t1", "p1", "issue-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	thread, err := q.MessagesByIssue(ctx, "issue-1")
	require.NoError(t, err)
	require.Len(t, thread, 3)
	for i, id := range []string{"m1", "m2", "m3"} {
		assert.Equal(t, id, thread[i].ID)
		require.NotNil(t, thread[i].IssueID)
		assert.Equal(t, "issue-1", *thread[i].IssueID)
	}

	n, err = q.LinkScopeMessages(ctx, "t1", "p1", "issue-1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Issues
// ==========================

func TestQueries_ScopeIssueSince(t *testing.T) {
	tests := []struct {
		name      string
		rows      *sqlmock.Rows
		wantID    string
		wantFound bool
	}{
		{
			name:      "issue in window",
			rows:      sqlmock.NewRows([]string{"id"}).AddRow("issue-9"),
			wantID:    "issue-9",
			wantFound: true,
		},
		{
			name: "nothing yet",
			rows: sqlmock.NewRows([]string{"id"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
				WithArgs("scope:t1:p1").
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(`SELECT id FROM issues WHERE tenant_id = \$1 AND property_id = \$2 AND created_at >= \$3`).
				WithArgs("t1", "p1", t0).
				WillReturnRows(tt.rows)

			id, found, err := New(db).ScopeIssueSince(context.Background(), "t1", "p1", t0)

			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantFound, found)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestQueries_ScopeIssueSince_LockFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnError(errors.New("canceling statement due to lock timeout"))

	_, _, err := New(db).ScopeIssueSince(context.Background(), "t1", "p1", t0)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueries_CreateIssue(t *testing.T) {
	db, mock := newMock(t)
	cost := 240.0
	issue := &models.Issue{
		ID: "issue-1", TenantID: "t1", PropertyID: "p1", Category: models.CategoryHeating,
		Summary: "Heater out", Description: "heater broken", Status: models.StatusPending,
		VendorID: strPtr("v1"), EstimatedCost: &cost, CreatedAt: t0,
	}
	mock.ExpectExec(`INSERT INTO issues`).
		WithArgs("issue-1", "t1", "p1", "heating", "Heater out", "heater broken", "pending",
			"v1", 240.0, nil, t0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, New(db).CreateIssue(context.Background(), issue))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueries_GetIssueDetail(t *testing.T) {
	columns := []string{
		"id", "tenant_id", "property_id", "category", "summary", "description",
		"status", "vendor_id", "estimated_cost", "appointment_at", "created_at",
		"address", "landlord_id", "name", "email", "name",
	}

	t.Run("joined detail", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(`FROM issues i JOIN properties p ON p.id = i.property_id`).
			WithArgs("issue-1").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				"issue-1", "t1", "p1", "plumbing", "Sink leak", "sink leaking",
				"pending", nil, nil, nil, t0,
				"12 Elm St", "l1", "Lee", "lee@example.com", nil,
			))

		d, err := New(db).GetIssueDetail(context.Background(), "issue-1")

		require.NoError(t, err)
		assert.Equal(t, models.CategoryPlumbing, d.Category)
		assert.Equal(t, "12 Elm St", d.PropertyAddress)
		assert.Equal(t, "lee@example.com", d.LandlordEmail)
		assert.Nil(t, d.VendorID)
		assert.Nil(t, d.VendorName)
		assert.Nil(t, d.EstimatedCost)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown issue", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(`FROM issues i`).WithArgs("nope").WillReturnRows(sqlmock.NewRows(columns))

		_, err := New(db).GetIssueDetail(context.Background(), "nope")

		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// ==========================
// Vendors
// ==========================

func TestQueries_Vendors(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM vendors WHERE specialty = \$1 ORDER BY rating DESC NULLS LAST, hourly_rate ASC, name ASC`).
		WithArgs("heating").
		WillReturnRows(sqlmock.NewRows(vendorRows).
			AddRow("v1", "Heat Pros", "ops@heatpros.example", "heating", 120.0, 4.8).
			AddRow("v2", "New Heat", nil, "heating", 80.0, nil))
	mock.ExpectQuery(`FROM vendors ORDER BY rating DESC NULLS LAST`).
		WillReturnRows(sqlmock.NewRows(vendorRows))

	q := New(db)
	vendors, err := q.VendorsBySpecialty(context.Background(), models.SpecialtyHeating)
	require.NoError(t, err)
	require.Len(t, vendors, 2)
	require.NotNil(t, vendors[0].Rating)
	assert.InDelta(t, 4.8, *vendors[0].Rating, 1e-9)
	assert.Nil(t, vendors[1].Rating)
	assert.Nil(t, vendors[1].Email)

	all, err := q.AllVendors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
