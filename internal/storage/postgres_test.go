package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
)

func newStoreWithMock(t *testing.T) (*Postgres, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgres(db), mock, db
}

var resumeRowColumns = []string{"resume_id", "user_id", "title", "status", "next_publish_at", "access", "is_active", "until"}

func TestGetUser_Found(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+user_id,\s*token,\s*first_name,\s*last_name,\s*email,\s*awaiting_token\s+FROM\s+"user"\s+WHERE\s+user_id\s*=\s*\$1$`

	rows := sqlmock.NewRows([]string{"user_id", "token", "first_name", "last_name", "email", "awaiting_token"}).
		AddRow(int64(42), "TOKEN", "Ivan", nil, "ivan@example.com", false)
	mock.ExpectQuery(q).WithArgs(int64(42)).WillReturnRows(rows)

	got, err := store.GetUser(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetUser error: %v", err)
	}
	if got.ID != 42 || got.Token != "TOKEN" || got.FirstName != "Ivan" || got.LastName != "" || got.AwaitingToken {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+"user"`).WithArgs(int64(7)).WillReturnError(sql.ErrNoRows)

	_, err := store.GetUser(context.Background(), 7)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCreateUser_Conflict(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+"user"\s+\(user_id\)\s+VALUES\s+\(\$1\)`).
		WithArgs(int64(7)).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	_, err := store.CreateUser(context.Background(), 7)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
}

func TestCreateUser_Success(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+"user"`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"awaiting_token"}).AddRow(true))

	got, err := store.CreateUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	if got.ID != 7 || !got.AwaitingToken {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestUpdateUser_StoresNullForEmptyFields(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+"user"\s+SET\s+token\s*=\s*\$2`).
		WithArgs(int64(7), "TOKEN", nil, nil, nil, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateUser(context.Background(), &User{ID: 7, Token: "TOKEN"})
	if err != nil {
		t.Fatalf("UpdateUser error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateUser_Missing(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+"user"`).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.UpdateUser(context.Background(), &User{ID: 7}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGetResume_NullTimestamps(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(resumeRowColumns).
		AddRow("r1", int64(7), "Engineer", "published", nil, "everyone", false, nil)
	mock.ExpectQuery(`(?s)^SELECT\s+resume_id,.+FROM\s+resume\s+WHERE\s+resume_id\s*=\s*\$1$`).
		WithArgs("r1").
		WillReturnRows(rows)

	got, err := store.GetResume(context.Background(), "r1")
	if err != nil {
		t.Fatalf("GetResume error: %v", err)
	}
	if !got.NextPublishAt.IsZero() || !got.Until.IsZero() || got.Title != "Engineer" {
		t.Fatalf("unexpected resume: %+v", got)
	}
}

func TestUpdateResume_ReplacesRow(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	next := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	until := next.Add(7 * 24 * time.Hour)

	mock.ExpectExec(`(?s)^UPDATE\s+resume\s+SET\s+user_id\s*=\s*\$2.+WHERE\s+resume_id\s*=\s*\$1$`).
		WithArgs("r1", int64(7), "Engineer", "published", next, "everyone", true, until).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateResume(context.Background(), &Resume{
		ID: "r1", UserID: 7, Title: "Engineer", Status: "published", Access: "everyone",
		NextPublishAt: next, IsActive: true, Until: until,
	})
	if err != nil {
		t.Fatalf("UpdateResume error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpsertResume(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+resume.+ON\s+CONFLICT\s+\(resume_id\)\s+DO\s+UPDATE`).
		WithArgs("r1", int64(7), "Engineer", "", nil, "", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.UpsertResume(context.Background(), &Resume{ID: "r1", UserID: 7, Title: "Engineer", IsActive: true, Until: time.Now()})
	if err != nil {
		t.Fatalf("UpsertResume error: %v", err)
	}
}

func TestResumeWritesRequireUntil(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	endless := &Resume{ID: "r1", UserID: 7, IsActive: true}
	ctx := context.Background()

	if err := store.CreateResume(ctx, endless); !errors.Is(err, ErrUntilRequired) {
		t.Fatalf("CreateResume: want ErrUntilRequired, got %v", err)
	}
	if err := store.UpdateResume(ctx, endless); !errors.Is(err, ErrUntilRequired) {
		t.Fatalf("UpdateResume: want ErrUntilRequired, got %v", err)
	}
	if err := store.UpsertResume(ctx, endless); !errors.Is(err, ErrUntilRequired) {
		t.Fatalf("UpsertResume: want ErrUntilRequired, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListActiveResumes(t *testing.T) {
	due := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter ActiveFilter
		query  string
		args   []any
	}{
		{
			name:   "unscoped sweep",
			filter: ActiveFilter{},
			query:  `WHERE is_active ORDER BY user_id, resume_id`,
		},
		{
			name:   "scoped to user",
			filter: ActiveFilter{UserID: 7},
			query:  `WHERE is_active AND user_id = $1 ORDER BY`,
			args:   []any{int64(7)},
		},
		{
			name:   "due filter keeps expiring resumes",
			filter: ActiveFilter{UserID: 7, DueBy: due},
			query:  `WHERE is_active AND user_id = $1 AND (next_publish_at IS NULL OR next_publish_at <= $2 OR until IS NULL OR until <= $2) ORDER BY`,
			args:   []any{int64(7), due},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock, db := newStoreWithMock(t)
			defer db.Close()

			rows := sqlmock.NewRows(resumeRowColumns).
				AddRow("r1", int64(7), "Engineer", "published", due, "everyone", true, due.Add(time.Hour)).
				AddRow("r2", int64(7), "Manager", "published", nil, "everyone", true, due.Add(time.Hour))

			expect := mock.ExpectQuery(regexp.QuoteMeta(tt.query))
			if len(tt.args) > 0 {
				expect = expect.WithArgs(toDriverArgs(tt.args)...)
			}
			expect.WillReturnRows(rows)

			got, err := store.ListActiveResumes(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("ListActiveResumes error: %v", err)
			}
			if len(got) != 2 || got[0].ID != "r1" || got[1].ID != "r2" {
				t.Fatalf("unexpected resumes: %+v", got)
			}
			if !got[0].NextPublishAt.Equal(due) || !got[1].NextPublishAt.IsZero() {
				t.Fatalf("unexpected timestamps: %+v %+v", got[0], got[1])
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func toDriverArgs(args []any) []driver.Value {
	out := make([]driver.Value, 0, len(args))
	for _, a := range args {
		out = append(out, equalArg{want: a})
	}
	return out
}

type equalArg struct {
	want any
}

func (e equalArg) Match(v driver.Value) bool {
	if t, ok := e.want.(time.Time); ok {
		got, ok := v.(time.Time)
		return ok && got.Equal(t)
	}
	return v == e.want
}

func TestListActiveResumes_DBError(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+resume`).WillReturnError(errors.New("db down"))

	_, err := store.ListActiveResumes(context.Background(), ActiveFilter{})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestRunMigrations(t *testing.T) {
	store, _, db := newStoreWithMock(t)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}
	if err := store.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}

	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	if err := store.RunMigrations(context.Background()); err == nil {
		t.Fatal("expected migration error")
	}
}
