package processor

import (
	"strings"
	"unicode/utf8"

	"github.com/seanankenbruck/insidebi-ai/internal/errors"
)

// DefaultForbiddenKeywords are the statement keywords that make generated SQL unsafe
var DefaultForbiddenKeywords = []string{
	"DELETE", "DROP", "UPDATE", "INSERT", "CREATE",
	"ALTER", "TRUNCATE", "REPLACE", "ATTACH", "DETACH",
}

// SafetyChecker rejects generated SQL that could modify the warehouse.
// Matching is a plain substring test on the upper-cased text, so a column
// such as "updated_at" is rejected too.
type SafetyChecker struct {
	ForbiddenKeywords []string
}

// NewSafetyChecker creates a new safety checker with default settings
func NewSafetyChecker() *SafetyChecker {
	keywords := make([]string, len(DefaultForbiddenKeywords))
	copy(keywords, DefaultForbiddenKeywords)
	return &SafetyChecker{ForbiddenKeywords: keywords}
}

// forbiddenKeyword returns the first forbidden keyword found in sql
func (sc *SafetyChecker) forbiddenKeyword(sql string) (string, bool) {
	upper := strings.ToUpper(sql)
	for _, kw := range sc.ForbiddenKeywords {
		if strings.Contains(upper, kw) {
			return kw, true
		}
	}
	return "", false
}

// IsSafe reports whether sql contains none of the forbidden keywords
func (sc *SafetyChecker) IsSafe(sql string) bool {
	_, found := sc.forbiddenKeyword(sql)
	return !found
}

// ValidateSQL returns an UNSAFE_SQL error naming the first forbidden keyword
func (sc *SafetyChecker) ValidateSQL(sql string) error {
	if kw, found := sc.forbiddenKeyword(sql); found {
		return errors.NewUnsafeSQLError(kw)
	}
	return nil
}

// maxLoggedSQL is the byte length sanitizeForLogging keeps
const maxLoggedSQL = 200

// sanitizeForLogging escapes control characters and truncates long input
func sanitizeForLogging(s string) string {
	s = strings.NewReplacer("\n", `\n`, "\r", `\r`, "\t", `\t`).Replace(s)
	if len(s) > maxLoggedSQL {
		cut := maxLoggedSQL
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	return s
}
