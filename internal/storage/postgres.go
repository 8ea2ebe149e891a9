package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/spigell/hh-toucher/internal/storage/migrations"
)

const pgUniqueViolation = "23505"

const resumeColumns = `resume_id, user_id, title, status, next_publish_at, access, is_active, until`

// DBTX is the subset of database/sql used by the store.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PoolOptions sizes the connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Postgres is a Store backed by PostgreSQL through the pgx driver.
type Postgres struct {
	db   DBTX
	conn *sql.DB
}

// OpenPostgres opens the pool and checks the connection.
func OpenPostgres(ctx context.Context, dsn string, opts PoolOptions) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	return NewPostgres(db), nil
}

// NewPostgres wraps an already opened pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, conn: db}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations.
func (p *Postgres) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("migration dialect: %w", err)
	}

	if err := gooseUpContext(ctx, p.conn, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.conn.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.conn.Close()
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (*User, error) {
	query :=
		`SELECT user_id, token, first_name, last_name, email, awaiting_token FROM "user"
		 WHERE user_id = $1`

	var (
		user                             User
		token, firstName, lastName, mail sql.NullString
	)

	err := p.db.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &token, &firstName, &lastName, &mail, &user.AwaitingToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.Token = token.String
	user.FirstName = firstName.String
	user.LastName = lastName.String
	user.Email = mail.String

	return &user, nil
}

func (p *Postgres) CreateUser(ctx context.Context, id int64) (*User, error) {
	query :=
		`INSERT INTO "user" (user_id) VALUES ($1)
		 RETURNING awaiting_token`

	user := &User{ID: id}
	if err := p.db.QueryRowContext(ctx, query, id).Scan(&user.AwaitingToken); err != nil {
		return nil, dbError(err)
	}

	return user, nil
}

func (p *Postgres) UpdateUser(ctx context.Context, user *User) error {
	query :=
		`UPDATE "user" SET token = $2, first_name = $3, last_name = $4, email = $5, awaiting_token = $6
		 WHERE user_id = $1`

	res, err := p.db.ExecContext(ctx, query,
		user.ID, nullString(user.Token), nullString(user.FirstName), nullString(user.LastName),
		nullString(user.Email), user.AwaitingToken)
	if err != nil {
		return dbError(err)
	}

	return affected(res)
}

func (p *Postgres) GetResume(ctx context.Context, id string) (*Resume, error) {
	query := `SELECT ` + resumeColumns + ` FROM resume WHERE resume_id = $1`

	resume, err := scanResume(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return resume, nil
}

func (p *Postgres) CreateResume(ctx context.Context, r *Resume) error {
	if err := r.validate(); err != nil {
		return err
	}

	query := `INSERT INTO resume (` + resumeColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := p.db.ExecContext(ctx, query, resumeArgs(r)...)
	if err != nil {
		return dbError(err)
	}

	return nil
}

func (p *Postgres) UpdateResume(ctx context.Context, r *Resume) error {
	if err := r.validate(); err != nil {
		return err
	}

	query :=
		`UPDATE resume SET user_id = $2, title = $3, status = $4, next_publish_at = $5, access = $6, is_active = $7, until = $8
		 WHERE resume_id = $1`

	res, err := p.db.ExecContext(ctx, query, resumeArgs(r)...)
	if err != nil {
		return dbError(err)
	}

	return affected(res)
}

func (p *Postgres) UpsertResume(ctx context.Context, r *Resume) error {
	if err := r.validate(); err != nil {
		return err
	}

	query := `INSERT INTO resume (` + resumeColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (resume_id) DO UPDATE SET user_id = EXCLUDED.user_id, title = EXCLUDED.title,
		 status = EXCLUDED.status, next_publish_at = EXCLUDED.next_publish_at, access = EXCLUDED.access,
		 is_active = EXCLUDED.is_active, until = EXCLUDED.until`

	if _, err := p.db.ExecContext(ctx, query, resumeArgs(r)...); err != nil {
		return dbError(err)
	}

	return nil
}

func (p *Postgres) ListActiveResumes(ctx context.Context, filter ActiveFilter) ([]*Resume, error) {
	var (
		where = []string{"is_active"}
		args  []any
	)

	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}

	if !filter.DueBy.IsZero() {
		args = append(args, filter.DueBy)
		n := len(args)
		where = append(where, fmt.Sprintf("(next_publish_at IS NULL OR next_publish_at <= $%d OR until IS NULL OR until <= $%d)", n, n))
	}

	query := `SELECT ` + resumeColumns + ` FROM resume WHERE ` + strings.Join(where, " AND ") + ` ORDER BY user_id, resume_id`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var resumes []*Resume
	for rows.Next() {
		resume, err := scanResume(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		resumes = append(resumes, resume)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return resumes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResume(row scanner) (*Resume, error) {
	var (
		r                    Resume
		nextPublishAt, until sql.NullTime
	)

	if err := row.Scan(&r.ID, &r.UserID, &r.Title, &r.Status, &nextPublishAt, &r.Access, &r.IsActive, &until); err != nil {
		return nil, err
	}

	if nextPublishAt.Valid {
		r.NextPublishAt = nextPublishAt.Time.UTC()
	}
	if until.Valid {
		r.Until = until.Time.UTC()
	}

	return &r, nil
}

func resumeArgs(r *Resume) []any {
	return []any{
		r.ID, r.UserID, r.Title, r.Status, nullTime(r.NextPublishAt), r.Access, r.IsActive, nullTime(r.Until),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func dbError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrAlreadyExists
	}
	return fmt.Errorf("db error: %w", err)
}
