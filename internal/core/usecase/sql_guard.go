package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
)

// allowedTables is the full set of relations model-generated SQL may touch.
var allowedTables = map[string]struct{}{
	"users":            {},
	"user_preferences": {},
}

var (
	forbiddenKeywords = regexp.MustCompile(`\b(delete|drop|create|alter|update|insert|exec|execute)\b`)
	tableRefs         = regexp.MustCompile(`\b(?:from|join)\s+([a-z_][a-z0-9_.]*)`)
)

// SafeQuery validates model-generated SQL before it reaches the database.
// Only single SELECT statements over allowlisted tables pass; everything
// else is rejected with ErrUnsafeQuery. The error never echoes the query
// text, since the raw statement may end up in a user-facing message.
func SafeQuery(query string) error {
	q := strings.ToLower(strings.TrimSpace(query))

	if !strings.HasPrefix(q, "select ") {
		return reject("only select statements are allowed")
	}
	if kw := forbiddenKeywords.FindString(q); kw != "" {
		return reject("forbidden keyword %q", kw)
	}
	if idx := strings.Index(q, ";"); idx >= 0 && strings.TrimSpace(q[idx+1:]) != "" {
		return reject("multiple statements are not allowed")
	}
	for _, ref := range tableRefs.FindAllStringSubmatch(q, -1) {
		table := strings.TrimPrefix(ref[1], "public.")
		if _, ok := allowedTables[table]; !ok {
			return reject("table %q is not allowlisted", table)
		}
	}
	return nil
}

func reject(format string, args ...any) error {
	return domain.WrapError(domain.ErrUnsafeQuery, "usecase.SafeQuery", fmt.Errorf(format, args...))
}
