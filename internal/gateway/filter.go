package gateway

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/koustreak/unidb/internal/database"
)

var (
	numberPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
	operators     = []string{"<=", ">=", "!=", "<>", "=", "<", ">"}
)

// parseFilter turns a query parameter value such as ">=18", "!=closed" or
// "Oslo" (plain equality) into the condition text appended after the
// column name.
//
// Condition text is spliced into the WHERE clause verbatim, so the gateway
// only accepts one comparison operator followed by a number or a quoted
// string. Strings are never single-quoted: the builder backslash-escapes
// single quotes inside conditions. MySQL gets "..." and Postgres a $q$...$q$
// dollar-quoted literal instead.
func parseFilter(d database.Dialect, raw string) (string, error) {
	op, operand := "=", raw
	for _, candidate := range operators {
		if strings.HasPrefix(raw, candidate) {
			op, operand = candidate, raw[len(candidate):]
			break
		}
	}
	if operand == "" {
		return "", fmt.Errorf("empty filter value %q", raw)
	}
	if numberPattern.MatchString(operand) {
		return op + operand, nil
	}

	if d == database.DialectPostgres {
		if strings.Contains(operand, "$q$") || strings.Contains(operand, "'") {
			return "", fmt.Errorf("unsupported filter value %q", raw)
		}
		return op + "$q$" + operand + "$q$", nil
	}
	if strings.ContainsAny(operand, `"\`) {
		return "", fmt.Errorf("unsupported filter value %q", raw)
	}
	return op + `"` + operand + `"`, nil
}

// sortFields orders a clause by column name so the emitted SQL does not
// depend on map iteration order.
func sortFields(c database.Clause) {
	sort.Slice(c, func(i, j int) bool { return c[i].Name < c[j].Name })
}
