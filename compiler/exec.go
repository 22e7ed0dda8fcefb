package compiler

import (
	"fmt"
	"strings"

	"github.com/tablesql/tablesql/types"
)

// Key field names of the store's compound primary key.
const (
	PartitionKeyName = "PartitionKey"
	RowKeyName       = "RowKey"
)

// WriteStatement is a compiled INSERT, UPDATE or DELETE. Every write
// addresses exactly one entity by its PartitionKey/RowKey pair; Fields holds
// the entity values with the two key fields separated out.
type WriteStatement struct {
	Action       Action
	PartitionKey string
	RowKey       string
	Fields       []types.Field
}

// CompileExec parses a write statement into its canonical compiled form.
func CompileExec(stmt string, params []types.DataType) (*WriteStatement, error) {
	switch leadingKeyword(stmt) {
	case "INSERT":
		return parseInsert(stmt, params)
	case "UPDATE":
		return parseUpdate(stmt, params)
	case "DELETE":
		return parseDelete(stmt, params)
	}

	return nil, types.NewError(types.ErrCodeUnsupportedStatement,
		"only INSERT, UPDATE, and DELETE statements are supported", nil)
}

// parseInsert handles INSERT INTO table (col1, col2) VALUES ($1, $2).
func parseInsert(stmt string, params []types.DataType) (*WriteStatement, error) {
	upper := strings.ToUpper(stmt)

	valuesPos := strings.Index(upper, "VALUES")
	if valuesPos < 0 {
		return nil, types.NewError(types.ErrCodeMalformedQuery,
			"INSERT statement must contain a VALUES clause", nil)
	}

	columns, err := extractColumns(stmt[:valuesPos])
	if err != nil {
		return nil, err
	}

	placeholders, err := extractPlaceholders(stmt[valuesPos+len("VALUES"):])
	if err != nil {
		return nil, err
	}

	if len(columns) != len(placeholders) {
		return nil, types.NewError(types.ErrCodeColumnValueMismatch,
			fmt.Sprintf("number of columns (%d) does not match number of values (%d)",
				len(columns), len(placeholders)), nil)
	}

	fields := make([]types.Field, 0, len(columns))

	for i, col := range columns {
		idx := placeholders[i]
		if err := placeholderInRange(idx, params); err != nil {
			return nil, err
		}

		fields = append(fields, types.Field{Name: col, Value: params[idx]})
	}

	partition, row, err := extractKeys(fields, "INSERT")
	if err != nil {
		return nil, err
	}

	return &WriteStatement{
		Action:       ActionInsert,
		PartitionKey: partition,
		RowKey:       row,
		Fields:       withoutKeys(fields),
	}, nil
}

// parseUpdate handles UPDATE table SET col1 = $1, col2 = $2 WHERE ... .
func parseUpdate(stmt string, params []types.DataType) (*WriteStatement, error) {
	upper := strings.ToUpper(stmt)

	setPos := strings.Index(upper, " SET ")
	if setPos < 0 {
		return nil, types.NewError(types.ErrCodeMalformedQuery,
			"UPDATE statement must contain a SET clause", nil)
	}

	wherePos := whereIndex(upper)
	if wherePos >= 0 && wherePos < setPos+len(" SET ") {
		return nil, types.NewError(types.ErrCodeMalformedQuery,
			"SET clause must precede the WHERE clause", nil)
	}

	// The SET clause is validated first so that a statement broken in both
	// ways reports the SET defect, then the missing WHERE clause.
	setEnd := wherePos
	if setEnd < 0 {
		setEnd = len(stmt)
	}

	setPart := strings.TrimSpace(stmt[setPos+len(" SET ") : setEnd])

	fields := []types.Field{}

	for _, pair := range strings.Split(setPart, ",") {
		col, idx, err := parseAssignment(pair, "SET")
		if err != nil {
			return nil, err
		}

		if err := placeholderInRange(idx, params); err != nil {
			return nil, err
		}

		fields = append(fields, types.Field{Name: col, Value: params[idx]})
	}

	if wherePos < 0 {
		return nil, types.NewError(types.ErrCodeMissingWhereClause,
			"UPDATE statement must have a WHERE clause to address the entity", nil)
	}

	partition, row, err := parseWhereKeys(stmt, upper, params, "UPDATE")
	if err != nil {
		return nil, err
	}

	return &WriteStatement{
		Action:       ActionUpdate,
		PartitionKey: partition,
		RowKey:       row,
		Fields:       withoutKeys(fields),
	}, nil
}

// parseDelete handles DELETE FROM table WHERE ... . A DELETE carries no
// entity fields; the WHERE clause is parsed only for the key pair.
func parseDelete(stmt string, params []types.DataType) (*WriteStatement, error) {
	upper := strings.ToUpper(stmt)

	if whereIndex(upper) < 0 {
		return nil, types.NewError(types.ErrCodeMissingWhereClause,
			"DELETE statement must have a WHERE clause to address the entity", nil)
	}

	partition, row, err := parseWhereKeys(stmt, upper, params, "DELETE")
	if err != nil {
		return nil, err
	}

	return &WriteStatement{
		Action:       ActionDelete,
		PartitionKey: partition,
		RowKey:       row,
		Fields:       []types.Field{},
	}, nil
}

// whereIndex locates the WHERE keyword, accepting a statement that ends
// right after it. It returns the byte offset of the leading space, or -1.
func whereIndex(upper string) int {
	return strings.Index(upper+" ", " WHERE ")
}

func extractColumns(insertPart string) ([]string, error) {
	open := strings.Index(insertPart, "(")
	closing := strings.LastIndex(insertPart, ")")

	if open < 0 || closing < open {
		return nil, types.NewError(types.ErrCodeMalformedQuery,
			"INSERT statement must list column names in parentheses", nil)
	}

	columns := []string{}
	for _, col := range strings.Split(insertPart[open+1:closing], ",") {
		columns = append(columns, strings.TrimSpace(col))
	}

	return columns, nil
}

func extractPlaceholders(valuesPart string) ([]int, error) {
	open := strings.Index(valuesPart, "(")
	closing := strings.LastIndex(valuesPart, ")")

	if open < 0 || closing < open {
		return nil, types.NewError(types.ErrCodeMalformedQuery,
			"VALUES clause must list values in parentheses", nil)
	}

	indices := []int{}

	for _, value := range strings.Split(valuesPart[open+1:closing], ",") {
		trimmed := strings.TrimSpace(value)

		idx, ok := parsePlaceholder(trimmed)
		if !ok {
			return nil, types.NewError(types.ErrCodeMalformedQuery,
				"VALUES clause must use parameter placeholders (e.g. $1, $2), found: "+trimmed, nil)
		}

		indices = append(indices, idx)
	}

	return indices, nil
}

// parseAssignment parses one "column = $N" pair.
func parseAssignment(pair, clause string) (string, int, error) {
	parts := strings.Split(pair, "=")
	if len(parts) != 2 {
		return "", 0, types.NewError(types.ErrCodeMalformedQuery,
			"invalid "+clause+" clause: expected 'column = $N', found: "+strings.TrimSpace(pair), nil)
	}

	col := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])

	idx, ok := parsePlaceholder(value)
	if !ok {
		return "", 0, types.NewError(types.ErrCodeMalformedQuery,
			clause+" clause must use parameter placeholders (e.g. $1, $2), found: "+value, nil)
	}

	return col, idx, nil
}

// parseWhereKeys parses the WHERE clause as AND-joined column = $N
// equalities and extracts the key pair. The store addresses entities solely
// by the compound key, so any further predicate is unsupported.
func parseWhereKeys(stmt, upper string, params []types.DataType, statementKind string) (string, string, error) {
	wherePos := whereIndex(upper)

	filterPart := strings.TrimSpace(stmt[min(wherePos+len(" WHERE "), len(stmt)):])
	if filterPart == "" {
		return "", "", types.NewError(types.ErrCodeMissingWhereClause,
			statementKind+" WHERE clause cannot be empty", nil)
	}

	conditions := splitOnAnd(filterPart)
	fields := make([]types.Field, 0, len(conditions))

	for _, cond := range conditions {
		col, idx, err := parseAssignment(cond, "WHERE")
		if err != nil {
			return "", "", err
		}

		if err := placeholderInRange(idx, params); err != nil {
			return "", "", err
		}

		fields = append(fields, types.Field{Name: col, Value: params[idx]})
	}

	if len(fields) > 2 {
		return "", "", types.NewError(types.ErrCodeUnsupportedPredicate,
			statementKind+" statement has unsupported conditions in its WHERE clause - "+
				"only PartitionKey and RowKey equality conditions are supported", nil)
	}

	for _, f := range fields {
		if f.Name != PartitionKeyName && f.Name != RowKeyName {
			return "", "", types.NewError(types.ErrCodeUnsupportedPredicate,
				statementKind+" WHERE clause may only address "+
					"PartitionKey and RowKey, found: "+f.Name, nil)
		}
	}

	return extractKeys(fields, statementKind)
}

// splitOnAnd splits a predicate on the AND keyword, case-insensitively.
func splitOnAnd(filter string) []string {
	parts := []string{}
	rest := filter

	for {
		idx := strings.Index(strings.ToUpper(rest), " AND ")
		if idx < 0 {
			parts = append(parts, strings.TrimSpace(rest))
			return parts
		}

		parts = append(parts, strings.TrimSpace(rest[:idx]))
		rest = rest[idx+len(" AND "):]
	}
}

// extractKeys finds the PartitionKey and RowKey fields and checks that both
// resolve to non-null strings.
func extractKeys(fields []types.Field, statementKind string) (string, string, error) {
	partition, err := keyValue(fields, PartitionKeyName, statementKind)
	if err != nil {
		return "", "", err
	}

	row, err := keyValue(fields, RowKeyName, statementKind)
	if err != nil {
		return "", "", err
	}

	return partition, row, nil
}

func keyValue(fields []types.Field, keyName, statementKind string) (string, error) {
	for _, f := range fields {
		if f.Name != keyName {
			continue
		}

		if f.Value.Kind() != types.KindString || f.Value.IsNull() {
			return "", types.NewError(types.ErrCodeInvalidKeyType,
				keyName+" must be a non-null string, found: "+f.Value.String(), nil)
		}

		v, _ := f.Value.StringValue()

		return v, nil
	}

	return "", types.NewError(types.ErrCodeMissingKeyField,
		statementKind+" statement must specify the "+keyName+" column", nil)
}

// withoutKeys drops the key fields from an entity field list. The compiled
// statement carries the keys separately.
func withoutKeys(fields []types.Field) []types.Field {
	kept := make([]types.Field, 0, len(fields))

	for _, f := range fields {
		if f.Name == PartitionKeyName || f.Name == RowKeyName {
			continue
		}

		kept = append(kept, f)
	}

	return kept
}
