package airtable

import (
	"strings"
)

// Field references a column by name: {Field Name}.
func Field(name string) string {
	return "{" + name + "}"
}

// Str quotes s as a formula string literal.
func Str(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// Equal builds {field}='value'.
func Equal(field, value string) string {
	return Field(field) + "=" + Str(value)
}

// Or combines conditions with OR(). A single condition is returned as is.
func Or(conds ...string) string {
	return combine("OR", conds)
}

// And combines conditions with AND(). A single condition is returned as is.
func And(conds ...string) string {
	return combine("AND", conds)
}

// Include matches records whose field is any of values.
func Include(field string, values ...string) string {
	conds := make([]string, len(values))
	for i, v := range values {
		conds[i] = Equal(field, v)
	}
	return Or(conds...)
}

// RecordIDIn matches records whose RECORD_ID() is any of ids.
func RecordIDIn(ids ...string) string {
	conds := make([]string, len(ids))
	for i, id := range ids {
		conds[i] = "RECORD_ID()=" + Str(id)
	}
	return Or(conds...)
}

func combine(op string, conds []string) string {
	switch len(conds) {
	case 0:
		return ""
	case 1:
		return conds[0]
	default:
		return op + "(" + strings.Join(conds, ",") + ")"
	}
}
