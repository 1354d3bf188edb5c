package postgres

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fcruxen/pathtree"
)

// query accumulates a WHERE clause and its positional arguments.
type query struct {
	clauses []string
	args    []interface{}
}

func (q *query) arg(v interface{}) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *query) where() string {
	if len(q.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.clauses, " AND ")
}

func isColumn(field string) bool {
	switch field {
	case pathtree.FieldID, pathtree.FieldParent, pathtree.FieldAncestry:
		return true
	}
	return false
}

// text is the field as a text expression: a column, or the document
// value as text.
func (q *query) text(field string) string {
	if isColumn(field) {
		return field
	}
	return "(doc->>" + q.arg(field) + ")"
}

func (q *query) jsonValue(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return q.arg(b) + "::jsonb", nil
}

// translate appends the SQL for f. Fields are matched in sorted order
// so the statement text is stable.
func (q *query) translate(f pathtree.Filter) error {
	for _, field := range sortedFields(f) {
		clause, err := q.cond(field, f[field])
		if err != nil {
			return err
		}
		q.clauses = append(q.clauses, clause)
	}
	return nil
}

func (q *query) cond(field string, c pathtree.Cond) (string, error) {
	switch c.Op {
	case pathtree.OpEq:
		return q.eq(field, c.Value)
	case pathtree.OpIn:
		if len(c.Values) == 0 {
			return "FALSE", nil
		}
		var alts []string
		for _, v := range c.Values {
			alt, err := q.eq(field, v)
			if err != nil {
				return "", err
			}
			alts = append(alts, alt)
		}
		return "(" + strings.Join(alts, " OR ") + ")", nil
	case pathtree.OpUnder, pathtree.OpHasSegment:
		operand, ok := c.Value.(string)
		if !ok {
			return "", fmt.Errorf("%s on %s needs a string, not %T", c.Op, field, c.Value)
		}
		expr := q.text(field)
		if c.Op == pathtree.OpUnder {
			return fmt.Sprintf("(%s = %s OR starts_with(%s, %s))",
				expr, q.arg(operand), expr, q.arg(operand+c.Sep)), nil
		}
		sep := q.arg(c.Sep)
		return fmt.Sprintf("strpos(%s::text || %s || %s::text, %s) > 0",
			sep, expr, sep, q.arg(c.Sep+operand+c.Sep)), nil
	}
	return "", fmt.Errorf("unsupported filter op %s on %s", c.Op, field)
}

func (q *query) eq(field string, v interface{}) (string, error) {
	if isColumn(field) {
		// roots store "" in these columns, so nil and "" both mean unset
		if v == nil || v == "" {
			return "(" + field + " IS NULL OR " + field + " = '')", nil
		}
		s, ok := v.(string)
		if !ok {
			return "FALSE", nil
		}
		return field + " = " + q.arg(s), nil
	}
	value := "(doc->" + q.arg(field) + ")"
	absent := "(" + value + " IS NULL OR " + value + " = 'null'::jsonb)"
	switch v {
	case nil:
		return absent, nil
	case "":
		return "(" + absent + " OR " + value + ` = '""'::jsonb)`, nil
	}
	j, err := q.jsonValue(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	return value + " = " + j, nil
}

func sortedFields(f pathtree.Filter) []string {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
