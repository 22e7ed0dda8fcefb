// Package compiler turns restricted SQL statements into operations against
// an Azure Table storage account: SELECT statements become OData query
// strings, INSERT, UPDATE and DELETE statements become single-entity writes
// addressed by the PartitionKey/RowKey compound key.
//
// The dialect is ASCII with case-insensitive keywords and 1-based $N
// positional placeholders. Statements are parsed structurally, not with a
// full SQL grammar; anything the store cannot express (joins, ordering,
// multi-entity predicates) is rejected with a typed error.
package compiler

import (
	"strconv"
	"strings"

	"github.com/tablesql/tablesql/types"
)

// Action identifies the kind of a write statement.
type Action int

// Supported write actions.
const (
	ActionInsert Action = iota + 1
	ActionUpdate
	ActionDelete
)

// String returns the SQL keyword of the action.
func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "INSERT"
	case ActionUpdate:
		return "UPDATE"
	case ActionDelete:
		return "DELETE"
	}

	return "UNKNOWN"
}

// Compiled is a statement compiled against the store: either a *ReadQuery or
// a *WriteStatement.
type Compiled interface {
	compiledStatement()
}

func (*ReadQuery) compiledStatement()      {}
func (*WriteStatement) compiledStatement() {}

// Compile classifies a statement by its leading keyword and dispatches to
// the read-query or write-statement compiler.
func Compile(stmt string, params []types.DataType) (Compiled, error) {
	keyword := leadingKeyword(stmt)

	switch keyword {
	case "SELECT":
		return CompileQuery(stmt, params)
	case "INSERT", "UPDATE", "DELETE":
		return CompileExec(stmt, params)
	}

	return nil, types.NewError(types.ErrCodeUnsupportedStatement,
		"only SELECT, INSERT, UPDATE, and DELETE statements are supported", nil)
}

func leadingKeyword(stmt string) string {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return ""
	}

	return strings.ToUpper(fields[0])
}

// parsePlaceholder parses $1, $2, etc. and returns the 0-based parameter
// index.
func parsePlaceholder(s string) (int, bool) {
	numStr, ok := strings.CutPrefix(s, "$")
	if !ok {
		return 0, false
	}

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 1 {
		return 0, false
	}

	return n - 1, true
}

func placeholderInRange(idx int, params []types.DataType) error {
	if idx >= len(params) {
		return types.NewError(types.ErrCodeParameterOutOfRange,
			"parameter $"+strconv.Itoa(idx+1)+" referenced but only "+
				strconv.Itoa(len(params))+" parameters provided", nil)
	}

	return nil
}
