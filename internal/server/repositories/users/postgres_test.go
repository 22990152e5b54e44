package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/webshelf/internal/common"
	"github.com/dmitrijs2005/webshelf/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var (
	userCols = []string{"id", "email", "password_hash", "name", "role", "created_at", "updated_at"}
	ts       = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	insertQ  = `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*email,\s*password_hash,\s*name,\s*role\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*RETURNING\s+created_at,\s*updated_at$`
	byIDQ    = `(?s)^SELECT\s+id,\s*email,\s*password_hash,\s*name,\s*role,\s*created_at,\s*updated_at\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`
	byEmailQ = `(?s)^SELECT\s+id,\s*email,\s*password_hash,\s*name,\s*role,\s*created_at,\s*updated_at\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`
	updateQ  = `(?s)^UPDATE\s+users\s+SET\s+email\s*=\s*\$2,\s*name\s*=\s*\$3,\s*role\s*=\s*\$4,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s+RETURNING\s+updated_at$`
	deleteQ  = `^DELETE\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`
	listQ    = `(?s)^SELECT\s+id,.*FROM\s+users\s+ORDER\s+BY\s+created_at\s+DESC,\s*id\s+LIMIT\s+\$1\s+OFFSET\s+\$2$`
	countQ   = `^SELECT\s+COUNT\(\*\)\s+FROM\s+users$`
)

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery(insertQ).
		WithArgs(id.String(), "alice@example.com", "$argon2id$h", "Alice", "user").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(ts, ts))

	u := &models.User{ID: id, Email: "alice@example.com", PasswordHash: "$argon2id$h", Name: "Alice", Role: "user"}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != id || !got.CreatedAt.Equal(ts) || !got.UpdatedAt.Equal(ts) {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreate_AssignsID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WithArgs(sqlmock.AnyArg(), "bob@example.com", "h", "Bob", "admin").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(ts, ts))

	got, err := repo.Create(context.Background(), &models.User{Email: "bob@example.com", PasswordHash: "h", Name: "Bob", Role: "admin"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID == uuid.Nil {
		t.Fatal("expected generated id")
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), &models.User{Email: "dup@example.com"})
	if !errors.Is(err, common.ErrEmailTaken) {
		t.Fatalf("want ErrEmailTaken, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "a@example.com"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery(byIDQ).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(id.String(), "a@example.com", "h", "Alice", "admin", ts, ts))

	got, err := repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if got.ID != id || got.Role != "admin" || got.PasswordHash != "h" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byIDQ).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestFindByEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery(byEmailQ).
		WithArgs("u@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(id.String(), "u@example.com", "h", "U", "user", ts, ts))
	mock.ExpectQuery(byEmailQ).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(byEmailQ).
		WithArgs("x@example.com").
		WillReturnError(errors.New("db err"))

	got, err := repo.FindByEmail(context.Background(), "u@example.com")
	if err != nil || got.ID != id {
		t.Fatalf("FindByEmail: %+v, %v", got, err)
	}
	if _, err := repo.FindByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
	if _, err := repo.FindByEmail(context.Background(), "x@example.com"); err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	id := uuid.New()
	later := ts.Add(time.Hour)
	mock.ExpectQuery(updateQ).
		WithArgs(id.String(), "new@example.com", "New", "admin").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(later))

	got, err := repo.Update(context.Background(), &models.User{ID: id, Email: "new@example.com", Name: "New", Role: "admin"})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Fatalf("updated_at not refreshed: %v", got.UpdatedAt)
	}
}

func TestUpdate_Errors(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(updateQ).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(updateQ).WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	u := &models.User{ID: uuid.New(), Email: "e@example.com"}
	if _, err := repo.Update(context.Background(), u); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
	if _, err := repo.Update(context.Background(), u); !errors.Is(err, common.ErrEmailTaken) {
		t.Fatalf("want ErrEmailTaken, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec(deleteQ).WithArgs(id.String()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteQ).WithArgs(id.String()).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(deleteQ).WithArgs(id.String()).WillReturnError(errors.New("db err"))

	if err := repo.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := repo.Delete(context.Background(), id); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
	if err := repo.Delete(context.Background(), id); err == nil {
		t.Fatal("expected error")
	}
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a, b := uuid.New(), uuid.New()
	mock.ExpectQuery(listQ).
		WithArgs(10, 20).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(a.String(), "a@example.com", "h", "A", "user", ts.Add(time.Minute), ts).
			AddRow(b.String(), "b@example.com", "h", "B", "user", ts, ts))

	got, err := repo.List(context.Background(), 10, 20)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 || got[0].ID != a || got[1].ID != b {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestList_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(listQ).WillReturnError(errors.New("db err"))

	if _, err := repo.List(context.Background(), 10, 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(countQ).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := repo.Count(context.Background())
	if err != nil || n != 42 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}
