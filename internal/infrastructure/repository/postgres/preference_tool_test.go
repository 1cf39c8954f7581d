package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newToolWithMock(t *testing.T) (*PreferenceTool, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewPreferenceTool(db, nil), mock, func() { _ = db.Close() }
}

func TestPreferenceToolRendersRows(t *testing.T) {
	tool, mock, done := newToolWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"name", "value"}).
		AddRow("Bob", "dark_mode").
		AddRow("Alice", "compact_view")
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	got := tool.Execute(context.Background(), "SELECT u.name, p.value FROM users u JOIN user_preferences p ON p.user_id = u.id")
	want := "name\tvalue\nBob\tdark_mode\nAlice\tcompact_view"
	if got != want {
		t.Fatalf("Execute() = %q, want %q", got, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPreferenceToolEncodesFailureInResult(t *testing.T) {
	tool, mock, done := newToolWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection refused"))

	got := tool.Execute(context.Background(), "SELECT name FROM users")
	if !strings.HasPrefix(got, "ERROR:") {
		t.Fatalf("expected ERROR prefix, got %q", got)
	}
}

func TestPreferenceToolEmptyResult(t *testing.T) {
	tool, mock, done := newToolWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"name"}))

	if got := tool.Execute(context.Background(), "SELECT name FROM users WHERE id = 42"); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}
