package strategy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/poiesic/callscope/core"
)

var (
	forbiddenKeyword = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|REPLACE|ATTACH|DETACH|PRAGMA|VACUUM|REINDEX|TRUNCATE|GRANT|REVOKE)\b`)
	readOnlyPrefix   = regexp.MustCompile(`(?i)^(SELECT|WITH)\b`)
	internalRelation = regexp.MustCompile(`(?i)\b(call_records|chunk_records|schema_migrations|sqlite_\w+|pragma_\w+)\b`)
	codeFence        = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")
)

// CleanSQL extracts the query from a model reply: it drops markdown code
// fences, surrounding whitespace and trailing semicolons.
func CleanSQL(reply string) string {
	sql := strings.TrimSpace(reply)
	if m := codeFence.FindStringSubmatch(sql); m != nil {
		sql = m[1]
	}
	return trimStatement(sql)
}

func trimStatement(sql string) string {
	return strings.TrimRight(strings.TrimSpace(sql), "; \t\r\n")
}

// CheckReadOnly rejects sql unless it is a single SELECT or WITH statement
// containing none of the write or schema keywords. Keywords are matched as
// whole words anywhere in the text, without regard to case. The query may
// only read the calls and chunks views: base tables, the migration ledger,
// sqlite_* tables and pragma functions are refused. Every rejection wraps
// core.ErrUnsafeQuery.
func CheckReadOnly(sql string) error {
	sql = trimStatement(sql)
	if sql == "" {
		return fmt.Errorf("%w: empty query", core.ErrUnsafeQuery)
	}
	if m := forbiddenKeyword.FindString(sql); m != "" {
		return fmt.Errorf("%w: contains %s", core.ErrUnsafeQuery, strings.ToUpper(m))
	}
	if m := internalRelation.FindString(sql); m != "" {
		return fmt.Errorf("%w: reads %s; only the calls and chunks views are queryable", core.ErrUnsafeQuery, strings.ToLower(m))
	}
	if !readOnlyPrefix.MatchString(sql) {
		return fmt.Errorf("%w: only SELECT queries are allowed", core.ErrUnsafeQuery)
	}
	if hasStatementSeparator(sql) {
		return fmt.Errorf("%w: multiple statements", core.ErrUnsafeQuery)
	}
	return nil
}

// hasStatementSeparator reports whether sql has a semicolon outside a quoted
// string or identifier.
func hasStatementSeparator(sql string) bool {
	var quote rune
	for _, r := range sql {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == ';':
			return true
		}
	}
	return false
}
