package pathtree

import (
	"fmt"
	"reflect"
)

// Op is the comparison a Cond applies to a field.
type Op int

const (
	// OpEq matches a field equal to Value. Eq(nil) and Eq("") also match
	// an absent field. The id, parent and ancestry fields are "" on roots,
	// so either form finds roots by parent or by ancestry.
	OpEq Op = iota
	// OpIn matches a field equal to any of Values.
	OpIn
	// OpUnder matches ancestry strings of descendants of the path in Value:
	// equal to it, or starting with it followed by Sep.
	OpUnder
	// OpHasSegment matches ancestry strings containing Value as a whole
	// Sep-delimited segment.
	OpHasSegment
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpIn:
		return "in"
	case OpUnder:
		return "under"
	case OpHasSegment:
		return "hasSegment"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Cond is one clause of a Filter.
type Cond struct {
	Op     Op
	Value  interface{}
	Values []interface{}
	Sep    string
}

// Eq matches fields equal to v.
func Eq(v interface{}) Cond {
	return Cond{Op: OpEq, Value: v}
}

// In matches fields equal to one of values.
func In(values ...interface{}) Cond {
	return Cond{Op: OpIn, Values: values}
}

// Under matches the ancestry of every descendant of the node whose own
// path is path.
func Under(path, sep string) Cond {
	return Cond{Op: OpUnder, Value: path, Sep: sep}
}

// HasSegment matches ancestry strings that list id as an ancestor.
func HasSegment(id, sep string) Cond {
	return Cond{Op: OpHasSegment, Value: id, Sep: sep}
}

// Match reports whether a field value satisfies c. present is false
// when the record has no such field.
func (c Cond) Match(v interface{}, present bool) bool {
	switch c.Op {
	case OpEq:
		if !present || v == nil {
			return c.Value == nil || c.Value == ""
		}
		return equal(v, c.Value)
	case OpIn:
		if !present {
			return false
		}
		for _, want := range c.Values {
			if equal(v, want) {
				return true
			}
		}
		return false
	case OpUnder, OpHasSegment:
		s, ok := v.(string)
		operand, _ := c.Value.(string)
		if !present || !ok {
			return false
		}
		p := paths{sep: c.Sep}
		if c.Op == OpUnder {
			return p.under(s, operand)
		}
		return p.hasSegment(s, operand)
	}
	return false
}

// Filter maps field names to the condition each must satisfy. All
// clauses must hold. The empty filter matches every record.
type Filter map[string]Cond

// Match evaluates f against n.
func (f Filter) Match(n *Node) bool {
	for field, c := range f {
		v, ok := n.Get(field)
		if !c.Match(v, ok) {
			return false
		}
	}
	return true
}

// Merge returns a new filter holding the clauses of f and over. Where
// both constrain a field, the clause from over wins.
func (f Filter) Merge(over Filter) Filter {
	merged := make(Filter, len(f)+len(over))
	for k, c := range f {
		merged[k] = c
	}
	for k, c := range over {
		merged[k] = c
	}
	return merged
}

func equal(a, b interface{}) bool {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x == y
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
