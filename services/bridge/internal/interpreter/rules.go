package interpreter

import (
	"regexp"
	"strings"
)

type Field string

const (
	FieldRestaurant Field = "restaurant"
	FieldBranch     Field = "branch"
	FieldTable      Field = "table"
)

// Rule extracts one field from a message written as "alias: value" or
// "alias=value". Rules are evaluated independently of each other.
type Rule struct {
	Field   Field
	Aliases []string
	pattern *regexp.Regexp
}

func NewRule(field Field, aliases ...string) Rule {
	quoted := make([]string, len(aliases))
	for i, a := range aliases {
		quoted[i] = regexp.QuoteMeta(a)
	}
	// Go's regexp has no lookbehind, so the leading boundary is consumed
	// and the value is read from the first group.
	expr := `(?i)(?:^|[^\p{L}\p{N}_])(?:` + strings.Join(quoted, "|") + `)\s*[:=]\s*([\p{L}\p{N}_\-]+)`
	return Rule{Field: field, Aliases: aliases, pattern: regexp.MustCompile(expr)}
}

// Extract returns the first value for the rule's field, if any.
func (r Rule) Extract(text string) (string, bool) {
	m := r.pattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

var DefaultRules = []Rule{
	NewRule(FieldTable, "table", "tableid", "table_id", "table id", "mesa", "mesa_id"),
	NewRule(FieldBranch, "branch", "branchid", "branch_id", "branch id", "sucursal", "sede", "local"),
	NewRule(FieldRestaurant, "restaurant", "restaurantid", "restaurant_id", "restaurant id", "restaurante", "rest"),
}

var (
	DefaultHelpKeywords  = []string{"help", "ayuda", "info"}
	DefaultStartKeywords = []string{"order", "start", "pedir", "ordenar", "empezar"}
)

func keywordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return set
}
