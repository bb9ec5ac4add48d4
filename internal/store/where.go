package store

import (
	"fmt"
	"strings"
	"time"
)

// whereBuilder assembles a parameterized WHERE clause.
// Empty values are skipped so optional filters can be added unconditionally.
type whereBuilder struct {
	conditions []string
	args       []interface{}
	argIndex   int
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{argIndex: 1}
}

// Add appends "column = $n" when value is non-empty.
func (wb *whereBuilder) Add(column, value string) {
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = $%d", column, wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// AddTimestampRange appends "column >= $n AND column < $n+1".
func (wb *whereBuilder) AddTimestampRange(column string, start, end time.Time) {
	wb.conditions = append(wb.conditions,
		fmt.Sprintf("%s >= $%d", column, wb.argIndex),
		fmt.Sprintf("%s < $%d", column, wb.argIndex+1),
	)
	wb.args = append(wb.args, start, end)
	wb.argIndex += 2
}

// NextArgIndex returns the placeholder number the next argument will use.
func (wb *whereBuilder) NextArgIndex() int {
	return wb.argIndex
}

// Build returns the clause (with a leading space) and its arguments.
// Without conditions it returns "" and nil.
func (wb *whereBuilder) Build() (string, []interface{}) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}
