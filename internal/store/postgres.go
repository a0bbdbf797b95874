// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"proco-workers/internal/models"
)

var (
	ErrNotFound = errors.New("NOT_FOUND")
	ErrBegin    = errors.New("TX_BEGIN_FAILED")
	ErrCommit   = errors.New("TX_COMMIT_FAILED")
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries runs the statements the workers need against either the pool or
// an open transaction. It satisfies agent.ConversationStore and
// agent.VendorSource.
type Queries struct {
	q querier
}

func New(db *sql.DB) *Queries {
	return &Queries{q: db}
}

// Runner opens transactions on a pool.
type Runner struct {
	db *sql.DB
}

func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func (r *Runner) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBegin, err)
	}
	defer tx.Rollback()

	if err := fn(&Queries{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrCommit, err)
	}
	return nil
}

// ==========================
// Users
// ==========================

func (s *Queries) GetUser(ctx context.Context, id string) (*models.User, error) {
	var (
		u          models.User
		role       string
		propertyID sql.NullString
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, email, role, name, property_id
		FROM users
		WHERE id = $1`, id).Scan(&u.ID, &u.Email, &role, &u.Name, &propertyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = models.UserRole(role)
	u.PropertyID = nullString(propertyID)
	return &u, nil
}

// ==========================
// Chat messages
// ==========================

const messageColumns = `id, issue_id, property_id, tenant_id, role, content, created_at`

func (s *Queries) InsertMessage(ctx context.Context, m *models.Message) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO chat_messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.IssueID, m.PropertyID, m.TenantID, string(m.Role), m.Content, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Queries) MessagesByIssue(ctx context.Context, issueID string) ([]models.Message, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM chat_messages
		WHERE issue_id = $1
		ORDER BY created_at ASC, id ASC`, issueID)
	if err != nil {
		return nil, fmt.Errorf("messages by issue: %w", err)
	}
	return scanMessages(rows)
}

// RecentScopeMessages returns the newest unlinked messages first.
func (s *Queries) RecentScopeMessages(ctx context.Context, tenantID, propertyID string, limit int) ([]models.Message, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM chat_messages
		WHERE tenant_id = $1 AND property_id = $2 AND issue_id IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, tenantID, propertyID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent scope messages: %w", err)
	}
	return scanMessages(rows)
}

// LinkScopeMessages backfills issueID onto every unlinked message of the
// scope. Linked rows are never touched again.
func (s *Queries) LinkScopeMessages(ctx context.Context, tenantID, propertyID, issueID string) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE chat_messages
		SET issue_id = $1
		WHERE tenant_id = $2 AND property_id = $3 AND issue_id IS NULL`,
		issueID, tenantID, propertyID,
	)
	if err != nil {
		return 0, fmt.Errorf("link scope messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("link scope messages: %w", err)
	}
	return n, nil
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var (
			m          models.Message
			issueID    sql.NullString
			propertyID sql.NullString
			role       string
		)
		if err := rows.Scan(&m.ID, &issueID, &propertyID, &m.TenantID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.IssueID = nullString(issueID)
		m.PropertyID = nullString(propertyID)
		m.Role = models.Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

// ==========================
// Issues
// ==========================

// ScopeIssueSince takes a transaction-scoped advisory lock on the scope and
// returns the newest issue created for it at or after since. Concurrent
// escalations of one scope queue on the lock, so the second sees the first's
// issue once it commits.
func (s *Queries) ScopeIssueSince(ctx context.Context, tenantID, propertyID string, since time.Time) (string, bool, error) {
	key := models.Scope{TenantID: tenantID, PropertyID: propertyID}.Key()
	if _, err := s.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return "", false, fmt.Errorf("lock scope: %w", err)
	}

	var id string
	err := s.q.QueryRowContext(ctx, `
		SELECT id
		FROM issues
		WHERE tenant_id = $1 AND property_id = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1`, tenantID, propertyID, since).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("scope issue lookup: %w", err)
	}
	return id, true, nil
}

func (s *Queries) CreateIssue(ctx context.Context, issue *models.Issue) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO issues (id, tenant_id, property_id, category, summary, description,
		                    status, vendor_id, estimated_cost, appointment_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		issue.ID, issue.TenantID, issue.PropertyID, string(issue.Category), issue.Summary,
		issue.Description, string(issue.Status), issue.VendorID, issue.EstimatedCost,
		issue.AppointmentAt, issue.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

// GetIssueDetail loads an issue with its property, landlord and vendor.
func (s *Queries) GetIssueDetail(ctx context.Context, id string) (*models.IssueDetail, error) {
	var (
		d             models.IssueDetail
		category      string
		status        string
		vendorID      sql.NullString
		cost          sql.NullFloat64
		appointmentAt sql.NullTime
		vendorName    sql.NullString
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT i.id, i.tenant_id, i.property_id, i.category, i.summary, i.description,
		       i.status, i.vendor_id, i.estimated_cost, i.appointment_at, i.created_at,
		       p.address, p.landlord_id, l.name, l.email, v.name
		FROM issues i
		JOIN properties p ON p.id = i.property_id
		JOIN users l ON l.id = p.landlord_id
		LEFT JOIN vendors v ON v.id = i.vendor_id
		WHERE i.id = $1`, id).Scan(
		&d.ID, &d.TenantID, &d.PropertyID, &category, &d.Summary, &d.Description,
		&status, &vendorID, &cost, &appointmentAt, &d.CreatedAt,
		&d.PropertyAddress, &d.LandlordID, &d.LandlordName, &d.LandlordEmail, &vendorName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: issue %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue detail: %w", err)
	}

	d.Category = models.Category(category)
	d.Status = models.Status(status)
	d.VendorID = nullString(vendorID)
	d.VendorName = nullString(vendorName)
	if cost.Valid {
		c := cost.Float64
		d.EstimatedCost = &c
	}
	if appointmentAt.Valid {
		t := appointmentAt.Time
		d.AppointmentAt = &t
	}
	return &d, nil
}

// ==========================
// Vendors
// ==========================

const vendorSelect = `
		SELECT id, name, email, specialty, hourly_rate, rating
		FROM vendors`

const vendorOrder = `
		ORDER BY rating DESC NULLS LAST, hourly_rate ASC, name ASC`

func (s *Queries) VendorsBySpecialty(ctx context.Context, specialty models.Specialty) ([]models.Vendor, error) {
	rows, err := s.q.QueryContext(ctx, vendorSelect+`
		WHERE specialty = $1`+vendorOrder, string(specialty))
	if err != nil {
		return nil, fmt.Errorf("vendors by specialty: %w", err)
	}
	return scanVendors(rows)
}

func (s *Queries) AllVendors(ctx context.Context) ([]models.Vendor, error) {
	rows, err := s.q.QueryContext(ctx, vendorSelect+vendorOrder)
	if err != nil {
		return nil, fmt.Errorf("all vendors: %w", err)
	}
	return scanVendors(rows)
}

func scanVendors(rows *sql.Rows) ([]models.Vendor, error) {
	defer rows.Close()

	var out []models.Vendor
	for rows.Next() {
		var (
			v         models.Vendor
			email     sql.NullString
			specialty string
			rating    sql.NullFloat64
		)
		if err := rows.Scan(&v.ID, &v.Name, &email, &specialty, &v.HourlyRate, &rating); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		v.Email = nullString(email)
		v.Specialty = models.Specialty(specialty)
		if rating.Valid {
			r := rating.Float64
			v.Rating = &r
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendors: %w", err)
	}
	return out, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
