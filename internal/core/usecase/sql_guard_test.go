package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
)

func TestSafeQuery(t *testing.T) {
	cases := []struct {
		name  string
		query string
		safe  bool
	}{
		{
			name:  "select over allowlisted table",
			query: "SELECT value FROM user_preferences WHERE user_id = 1",
			safe:  true,
		},
		{
			name:  "join between allowlisted tables",
			query: "select u.name, p.value from users u join user_preferences p on p.user_id = u.id",
			safe:  true,
		},
		{
			name:  "schema-qualified allowlisted table",
			query: "select name from public.users",
			safe:  true,
		},
		{
			name:  "trailing semicolon only",
			query: "select name from users;",
			safe:  true,
		},
		{
			name:  "ddl statement",
			query: "DROP TABLE users",
			safe:  false,
		},
		{
			name:  "mutation keyword inside statement",
			query: "select id from users where id in (delete from users returning id)",
			safe:  false,
		},
		{
			name:  "table outside allowlist",
			query: "SELECT * FROM secrets",
			safe:  false,
		},
		{
			name:  "statement stacking",
			query: "SELECT 1; SELECT * FROM users",
			safe:  false,
		},
		{
			name:  "empty input",
			query: "   ",
			safe:  false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := SafeQuery(tc.query)
			if tc.safe && err != nil {
				t.Fatalf("SafeQuery(%q) = %v, want nil", tc.query, err)
			}
			if !tc.safe {
				if err == nil {
					t.Fatalf("SafeQuery(%q) = nil, want rejection", tc.query)
				}
				if !domain.IsKind(err, domain.ErrUnsafeQuery) {
					t.Fatalf("expected unsafe-query kind, got %v", err)
				}
			}
		})
	}
}

func TestSafeQueryErrorDoesNotEchoStatement(t *testing.T) {
	query := "SELECT token FROM secrets WHERE owner = 'admin'"
	err := SafeQuery(query)
	if err == nil {
		t.Fatalf("expected rejection")
	}
	if got := err.Error(); strings.Contains(got, query) || strings.Contains(got, strings.ToLower(query)) {
		t.Fatalf("error leaks the statement: %s", got)
	}
}
