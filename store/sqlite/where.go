package sqlite

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fcruxen/pathtree"
)

type query struct {
	clauses []string
	args    []interface{}
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

// jsonPath addresses a top-level document key.
func jsonPath(field string) (string, error) {
	if field == "" || strings.ContainsAny(field, `"\`) {
		return "", fmt.Errorf("unsupported field name %q", field)
	}
	return `$."` + field + `"`, nil
}

// expr returns the SQL for a field's value.
func (q *query) expr(field string) (string, error) {
	if isColumn(field) {
		return field, nil
	}
	path, err := jsonPath(field)
	if err != nil {
		return "", err
	}
	q.args = append(q.args, path)
	return "json_extract(doc, ?)", nil
}

func (q *query) translate(f pathtree.Filter) error {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
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
			return "0", nil
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
	case pathtree.OpUnder:
		operand, ok := c.Value.(string)
		if !ok {
			return "", fmt.Errorf("%s on %s needs a string, not %T", c.Op, field, c.Value)
		}
		e1, err := q.expr(field)
		if err != nil {
			return "", err
		}
		q.args = append(q.args, operand)
		e2, _ := q.expr(field)
		q.args = append(q.args, operand+c.Sep)
		return "(" + e1 + " = ? OR instr(" + e2 + ", ?) = 1)", nil
	case pathtree.OpHasSegment:
		operand, ok := c.Value.(string)
		if !ok {
			return "", fmt.Errorf("%s on %s needs a string, not %T", c.Op, field, c.Value)
		}
		q.args = append(q.args, c.Sep)
		e, err := q.expr(field)
		if err != nil {
			return "", err
		}
		q.args = append(q.args, c.Sep, c.Sep+operand+c.Sep)
		return "instr(? || " + e + " || ?, ?) > 0", nil
	}
	return "", fmt.Errorf("unsupported filter op %s on %s", c.Op, field)
}

func (q *query) eq(field string, v interface{}) (string, error) {
	switch v.(type) {
	case nil, string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
	default:
		return "", fmt.Errorf("cannot compare %s with %T", field, v)
	}
	if isColumn(field) {
		// roots store "" in these columns, so nil and "" both mean unset
		if v == nil || v == "" {
			return "(" + field + " IS NULL OR " + field + " = '')", nil
		}
		s, ok := v.(string)
		if !ok {
			return "0", nil
		}
		q.args = append(q.args, s)
		return field + " = ?", nil
	}
	e, err := q.expr(field)
	if err != nil {
		return "", err
	}
	switch v {
	case nil:
		return e + " IS NULL", nil
	case "":
		q.args = append(q.args, q.args[len(q.args)-1])
		return "(" + e + " IS NULL OR " + e + " = '')", nil
	}
	q.args = append(q.args, v)
	return e + " = ?", nil
}
