package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tablesql/tablesql/types"
)

// ReadQuery is a compiled SELECT statement. Select holds the projected
// column list ("*" projects everything), Filter the predicate text, Top an
// optional row limit.
type ReadQuery struct {
	Select string
	Filter string
	Top    *int64
}

// CompileQuery parses a SELECT statement into a ReadQuery. Positional $N
// placeholders are substituted with serialized literals before
// tokenization, so parameters may safely carry arbitrary text.
func CompileQuery(stmt string, params []types.DataType) (*ReadQuery, error) {
	upper := strings.ToUpper(stmt)
	if strings.Contains(upper, "JOIN") {
		return nil, types.NewError(types.ErrCodeUnsupportedClause,
			"JOIN clauses are not supported", nil)
	}

	if strings.Contains(upper, "ORDER BY") {
		return nil, types.NewError(types.ErrCodeUnsupportedClause,
			"ORDER BY clauses are not supported", nil)
	}

	substituted, err := substituteParams(stmt, params)
	if err != nil {
		return nil, err
	}

	return parseSelect(strings.Fields(substituted))
}

// substituteParams replaces every $i with the serialized literal of the
// parameter at 1-based position i. Indices are substituted highest first so
// that $1 never clobbers the prefix of $10.
func substituteParams(stmt string, params []types.DataType) (string, error) {
	for i := len(params); i >= 1; i-- {
		literal, err := paramLiteral(i, params[i-1])
		if err != nil {
			return "", err
		}

		stmt = strings.ReplaceAll(stmt, "$"+strconv.Itoa(i), literal)
	}

	return stmt, nil
}

func paramLiteral(position int, param types.DataType) (string, error) {
	if param.Kind() == types.KindBinary {
		return "", types.NewError(types.ErrCodeUnsupportedParameterType,
			fmt.Sprintf("parameter $%d: binary values have no literal syntax", position), nil)
	}

	if param.IsNull() {
		return "NULL", nil
	}

	switch param.Kind() {
	case types.KindInt32:
		v, _ := param.Int32Value()
		return strconv.FormatInt(int64(v), 10), nil
	case types.KindInt64:
		v, _ := param.Int64Value()
		return strconv.FormatInt(v, 10), nil
	case types.KindUint32:
		v, _ := param.Uint32Value()
		return strconv.FormatUint(uint64(v), 10), nil
	case types.KindUint64:
		v, _ := param.Uint64Value()
		return strconv.FormatUint(v, 10), nil
	case types.KindFloat32:
		v, _ := param.Float32Value()
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case types.KindFloat64:
		v, _ := param.Float64Value()
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case types.KindBoolean:
		v, _ := param.BoolValue()
		return strconv.FormatBool(v), nil
	case types.KindString:
		v, _ := param.StringValue()
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
	case types.KindDate, types.KindTime, types.KindTimestamp:
		v, _ := param.StringValue()
		return "'" + v + "'", nil
	}

	return "", types.NewError(types.ErrCodeUnsupportedParameterType,
		fmt.Sprintf("parameter $%d: unknown kind %s", position, param.Kind()), nil)
}

func parseSelect(tokens []string) (*ReadQuery, error) {
	if len(tokens) == 0 || !strings.EqualFold(tokens[0], "SELECT") {
		return nil, types.NewError(types.ErrCodeMalformedQuery,
			"statement must begin with SELECT", nil)
	}

	q := &ReadQuery{}
	i := 1

	if i < len(tokens) && strings.EqualFold(tokens[i], "TOP") {
		i++
		if i >= len(tokens) {
			return nil, types.NewError(types.ErrCodeMalformedQuery,
				"TOP must be followed by a row count", nil)
		}

		n, err := strconv.ParseUint(tokens[i], 10, 63)
		if err != nil {
			return nil, types.NewError(types.ErrCodeMalformedQuery,
				"TOP row count must be an unsigned integer, found: "+tokens[i], nil)
		}

		top := int64(n)
		q.Top = &top
		i++
	}

	var selectTokens []string

	for i < len(tokens) && !strings.EqualFold(tokens[i], "FROM") {
		selectTokens = append(selectTokens, tokens[i])
		i++
	}

	if i >= len(tokens) {
		return nil, types.NewError(types.ErrCodeMalformedQuery,
			"SELECT statement must contain a FROM clause", nil)
	}

	selectList, err := joinSelectList(selectTokens)
	if err != nil {
		return nil, err
	}

	q.Select = selectList

	// Skip FROM and the table name. The target table is fixed by the opened
	// connection, so the name is parsed but otherwise unused.
	i++
	if i < len(tokens) {
		i++
	}

	if i >= len(tokens) {
		return q, nil
	}

	if !strings.EqualFold(tokens[i], "WHERE") {
		return nil, types.NewError(types.ErrCodeMalformedQuery,
			"unexpected token after table name: "+tokens[i], nil)
	}

	i++

	var filterTokens []string

	for ; i < len(tokens); i++ {
		if strings.EqualFold(tokens[i], "ORDER") || strings.EqualFold(tokens[i], "JOIN") {
			break
		}

		filterTokens = append(filterTokens, tokens[i])
	}

	q.Filter = strings.Join(filterTokens, " ")

	return q, nil
}

func joinSelectList(tokens []string) (string, error) {
	columns := []string{}

	for _, tok := range tokens {
		col := strings.TrimRight(tok, ",")
		if col == "" {
			continue
		}

		columns = append(columns, col)
	}

	if len(columns) == 0 {
		return "", types.NewError(types.ErrCodeMalformedQuery,
			"SELECT statement must project at least one column", nil)
	}

	if len(columns) == 1 && columns[0] == "*" {
		return "*", nil
	}

	return strings.Join(columns, ","), nil
}

// odataOperators maps statement filter operators to their OData spellings.
// Keywords are matched case-insensitively, symbols exactly.
var odataOperators = map[string]string{
	"=":   "eq",
	"!=":  "ne",
	"<>":  "ne",
	">":   "gt",
	">=":  "ge",
	"<":   "lt",
	"<=":  "le",
	"AND": "and",
	"OR":  "or",
	"NOT": "not",
}

// ODataQuery renders the query as an OData query string. Components appear
// in the fixed order $select, $filter, $top; a "*" projection and empty
// components are omitted.
func (q *ReadQuery) ODataQuery() string {
	parts := []string{}

	if q.Select != "" && q.Select != "*" {
		parts = append(parts, "$select="+percentEncode(q.Select))
	}

	if q.Filter != "" {
		parts = append(parts, "$filter="+percentEncode(odataFilter(q.Filter)))
	}

	if q.Top != nil {
		parts = append(parts, "$top="+strconv.FormatInt(*q.Top, 10))
	}

	return strings.Join(parts, "&")
}

// odataFilter rewrites filter operators token by token. Only whole tokens
// are substituted, so quoted literal text survives as written.
func odataFilter(filter string) string {
	tokens := strings.Fields(filter)

	for i, tok := range tokens {
		if op, ok := odataOperators[strings.ToUpper(tok)]; ok {
			tokens[i] = op
		}
	}

	return strings.Join(tokens, " ")
}

// percentEncode escapes everything outside the RFC 3986 unreserved set,
// encoding spaces as %20 rather than "+".
func percentEncode(s string) string {
	var b strings.Builder

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '-' || c == '.' || c == '_' || c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}

	return b.String()
}
