// Package sqlstore is the tenant-scoped relational store for reviews and
// tenant credentials. It runs on embedded SQLite or on MySQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"review_action/internal/domain"
)

const dateLayout = "2006-01-02"

type reviewRow struct {
	ID        int64           `db:"id"`
	TenantID  string          `db:"tenant_id"`
	Text      string          `db:"review_text"`
	Rating    sql.NullInt64   `db:"rating"`
	Date      sql.NullString  `db:"review_date"`
	Source    sql.NullString  `db:"source"`
	SourceID  sql.NullString  `db:"source_id"`
	Sentiment sql.NullFloat64 `db:"sentiment"`
	ClusterID sql.NullInt64   `db:"cluster_id"`
}

func (r reviewRow) toDomain() domain.Review {
	rv := domain.Review{ID: r.ID, TenantID: r.TenantID, Text: r.Text}
	if r.Rating.Valid {
		n := int(r.Rating.Int64)
		rv.Rating = &n
	}
	if r.Date.Valid {
		if d, err := time.Parse(dateLayout, r.Date.String); err == nil {
			rv.Date = &d
		}
	}
	if r.Source.Valid {
		s := r.Source.String
		rv.Source = &s
	}
	if r.SourceID.Valid {
		s := r.SourceID.String
		rv.SourceID = &s
	}
	if r.Sentiment.Valid {
		f := r.Sentiment.Float64
		rv.Sentiment = &f
	}
	if r.ClusterID.Valid {
		c := int(r.ClusterID.Int64)
		rv.ClusterID = &c
	}
	return rv
}

func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valDate(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.Format(dateLayout)
}
func valNonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type Repo struct {
	db      *sqlx.DB
	dialect Dialect
}

// New wraps an open handle; the dialect follows the driver name.
func New(db *sqlx.DB) *Repo {
	d := SQLite
	if db.DriverName() == "mysql" {
		d = MySQL
	}
	return &Repo{db: db, dialect: d}
}

func NewWithDialect(db *sqlx.DB, d Dialect) *Repo { return &Repo{db: db, dialect: d} }

// Open connects with driver "sqlite" (file path or ":memory:") or "mysql"
// (DSN) and checks the connection.
func Open(ctx context.Context, driver, dsn string) (*Repo, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == string(SQLite) {
		// one writer; also keeps a :memory: database on a single connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if driver == string(SQLite) {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return New(db), nil
}

func (r *Repo) DB() *sqlx.DB                   { return r.db }
func (r *Repo) Dialect() Dialect               { return r.dialect }
func (r *Repo) Close() error                   { return r.db.Close() }
func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// EnsureSchema creates the tables when they do not exist yet.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema[r.dialect] {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// InsertReviews writes all rows for tenantID in one transaction and returns
// how many were inserted. Either every row is written or none.
func (r *Repo) InsertReviews(ctx context.Context, tenantID string, rows []domain.ReviewInput) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if tenantID == "" {
		return 0, fmt.Errorf("%w: empty tenant", domain.ErrInvalidInput)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var inserted int64
	for start := 0; start < len(rows); start += insertBatch {
		end := min(start+insertBatch, len(rows))
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*6)
		for _, rv := range rows[start:end] {
			if strings.TrimSpace(rv.Text) == "" {
				return 0, fmt.Errorf("%w: empty review text", domain.ErrInvalidInput)
			}
			values = append(values, "(?,?,?,?,?,?)")
			args = append(args,
				tenantID,
				rv.Text,
				valInt(rv.Rating),
				valDate(rv.Date),
				valNonEmpty(rv.Source),
				valStr(rv.SourceID),
			)
		}
		res, err := tx.ExecContext(ctx, insertReviewsPrefix[r.dialect]+strings.Join(values, ","), args...)
		if err != nil {
			return 0, fmt.Errorf("insert reviews: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(inserted), nil
}

// UpdateScores stores pipeline output. Rows of other tenants are never touched.
func (r *Repo) UpdateScores(ctx context.Context, tenantID string, scores []domain.ReviewScore) error {
	if len(scores) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, updateScoreSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, s := range scores {
		if _, err := stmt.ExecContext(ctx, s.Sentiment, s.ClusterID, s.ReviewID, tenantID); err != nil {
			return fmt.Errorf("update score for review %d: %w", s.ReviewID, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) DeleteReviews(ctx context.Context, tenantID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteReviewsSQL, tenantID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetReviews returns every review of tenantID in insertion order.
func (r *Repo) GetReviews(ctx context.Context, tenantID string) ([]domain.Review, error) {
	var rows []reviewRow
	if err := r.db.SelectContext(ctx, &rows, getReviewsSQL, tenantID); err != nil {
		return nil, fmt.Errorf("get reviews: %w", err)
	}
	out := make([]domain.Review, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// ListReviews returns the newest reviews of tenantID first.
func (r *Repo) ListReviews(ctx context.Context, tenantID string, limit int) (domain.ReviewsPage, error) {
	var rows []reviewRow
	if err := r.db.SelectContext(ctx, &rows, listReviewsSQL, tenantID, limit); err != nil {
		return domain.ReviewsPage{}, fmt.Errorf("list reviews: %w", err)
	}
	page := domain.ReviewsPage{Items: make([]domain.Review, len(rows))}
	for i, row := range rows {
		page.Items[i] = row.toDomain()
	}
	return page, nil
}

func (r *Repo) CreateTenant(ctx context.Context, t domain.Tenant) error {
	_, err := r.db.ExecContext(ctx, insertTenantSQL, t.BusinessID, t.PasswordHash)
	if isDuplicate(err) {
		return fmt.Errorf("%w: %s", domain.ErrTenantExists, t.BusinessID)
	}
	return err
}

func (r *Repo) GetTenant(ctx context.Context, businessID string) (domain.Tenant, error) {
	var row struct {
		BusinessID   string `db:"business_id"`
		PasswordHash string `db:"password_hash"`
	}
	if err := r.db.GetContext(ctx, &row, getTenantSQL, businessID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Tenant{}, domain.ErrNotFound
		}
		return domain.Tenant{}, err
	}
	return domain.Tenant{BusinessID: row.BusinessID, PasswordHash: row.PasswordHash}, nil
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
