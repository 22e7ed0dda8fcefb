package tablesql

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/tablesql/tablesql/server"
	"github.com/tablesql/tablesql/types"
)

const (
	testAccount = "devstoreaccount1"
	testKey     = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

func newTestConnection(t *testing.T, table string) *Connection {
	t.Helper()

	emulator := httptest.NewServer(server.NewWithCredentials(testAccount, testKey))
	t.Cleanup(emulator.Close)

	client := NewClient(ConnectOptions{
		Account:  testAccount,
		Key:      testKey,
		Endpoint: emulator.URL,
	})

	return client.Open(table)
}

func TestConnectionStatementLifecycle(t *testing.T) {
	c := require.New(t)

	ctx := context.Background()
	conn := newTestConnection(t, "people")

	c.Equal("people", conn.Table())

	affected, err := conn.Exec(ctx,
		"INSERT INTO people (PartitionKey, RowKey, Name, Age) VALUES ($1, $2, $3, $4)",
		[]types.DataType{
			types.String("p1"), types.String("r1"), types.String("Alice"), types.Int32(30),
		})
	c.NoError(err)
	c.Equal(int64(1), affected)

	affected, err = conn.Exec(ctx,
		"INSERT INTO people (PartitionKey, RowKey, Name, Age) VALUES ($1, $2, $3, $4)",
		[]types.DataType{
			types.String("p1"), types.String("r2"), types.String("Bob"), types.Int32(25),
		})
	c.NoError(err)
	c.Equal(int64(1), affected)

	rows, err := conn.Query(ctx, "SELECT * FROM people WHERE Age > $1",
		[]types.DataType{types.Int32(26)})
	c.NoError(err)
	c.Len(rows, 1)
	c.Equal("r1", rows[0].Index)

	expected := []types.Field{
		{Name: "Age", Value: types.Int32(30)},
		{Name: "Name", Value: types.String("Alice")},
	}
	c.Empty(cmp.Diff(expected, rows[0].Fields))

	affected, err = conn.Exec(ctx,
		"UPDATE people SET Name = $1, Age = $2 WHERE PartitionKey = $3 AND RowKey = $4",
		[]types.DataType{
			types.String("Alicia"), types.Int32(31), types.String("p1"), types.String("r1"),
		})
	c.NoError(err)
	c.Equal(int64(1), affected)

	rows, err = conn.Query(ctx, "SELECT Name FROM people WHERE RowKey = $1",
		[]types.DataType{types.String("r1")})
	c.NoError(err)
	c.Len(rows, 1)
	c.Empty(cmp.Diff([]types.Field{{Name: "Name", Value: types.String("Alicia")}}, rows[0].Fields))

	affected, err = conn.Exec(ctx,
		"DELETE FROM people WHERE PartitionKey = $1 AND RowKey = $2",
		[]types.DataType{types.String("p1"), types.String("r1")})
	c.NoError(err)
	c.Equal(int64(1), affected)

	rows, err = conn.Query(ctx, "SELECT * FROM people", nil)
	c.NoError(err)
	c.Len(rows, 1)
	c.Equal("r2", rows[0].Index)
}

func TestConnectionQueryTop(t *testing.T) {
	c := require.New(t)

	ctx := context.Background()
	conn := newTestConnection(t, "people")

	for _, row := range []string{"r1", "r2", "r3"} {
		_, err := conn.Exec(ctx,
			"INSERT INTO people (PartitionKey, RowKey) VALUES ($1, $2)",
			[]types.DataType{types.String("p1"), types.String(row)})
		c.NoError(err)
	}

	rows, err := conn.Query(ctx, "SELECT TOP 2 * FROM people", nil)
	c.NoError(err)
	c.Len(rows, 2)
	c.Equal("r1", rows[0].Index)
	c.Equal("r2", rows[1].Index)
}

func TestConnectionInsertConflict(t *testing.T) {
	c := require.New(t)

	ctx := context.Background()
	conn := newTestConnection(t, "people")

	params := []types.DataType{types.String("p1"), types.String("r1")}

	_, err := conn.Exec(ctx, "INSERT INTO people (PartitionKey, RowKey) VALUES ($1, $2)", params)
	c.NoError(err)

	_, err = conn.Exec(ctx, "INSERT INTO people (PartitionKey, RowKey) VALUES ($1, $2)", params)
	c.Error(err)
	c.True(types.IsCode(err, "EntityAlreadyExists"), "got %v", err)

	var failure types.RequestFailure
	c.ErrorAs(err, &failure)
	c.Equal(http.StatusConflict, failure.StatusCode())
	c.NotEmpty(failure.RequestID())
}

func TestConnectionWriteMissingEntity(t *testing.T) {
	c := require.New(t)

	ctx := context.Background()
	conn := newTestConnection(t, "people")

	params := []types.DataType{
		types.String("gone"), types.String("p1"), types.String("r1"),
	}

	_, err := conn.Exec(ctx,
		"UPDATE people SET Name = $1 WHERE PartitionKey = $2 AND RowKey = $3", params)
	c.Error(err)
	c.True(types.IsCode(err, "ResourceNotFound"), "got %v", err)

	_, err = conn.Exec(ctx, "DELETE FROM people WHERE PartitionKey = $1 AND RowKey = $2",
		[]types.DataType{types.String("p1"), types.String("r1")})
	c.Error(err)
	c.True(types.IsCode(err, "ResourceNotFound"), "got %v", err)
}

func TestConnectionCompileErrorsDoNotSend(t *testing.T) {
	c := require.New(t)

	ctx := context.Background()

	// A client with no reachable endpoint: compile errors must surface before
	// any request is attempted.
	client := NewClient(ConnectOptions{Account: testAccount, Key: testKey, Endpoint: "http://127.0.0.1:0"})
	conn := client.Open("people")

	_, err := conn.Query(ctx, "SELECT * FROM a JOIN b", nil)
	c.True(types.IsCode(err, types.ErrCodeUnsupportedClause), "got %v", err)

	_, err = conn.Exec(ctx, "DELETE FROM people", nil)
	c.True(types.IsCode(err, types.ErrCodeMissingWhereClause), "got %v", err)

	_, err = conn.Exec(ctx, "DROP TABLE people", nil)
	c.True(types.IsCode(err, types.ErrCodeUnsupportedStatement), "got %v", err)
}

func TestConnectionReservedCharacterKeys(t *testing.T) {
	c := require.New(t)

	ctx := context.Background()
	conn := newTestConnection(t, "people")

	// Keys with spaces, percent signs, fragments and slashes must survive
	// both the request line and the signature.
	rowKey := "100% #1 a/b c"

	_, err := conn.Exec(ctx, "INSERT INTO people (PartitionKey, RowKey) VALUES ($1, $2)",
		[]types.DataType{types.String("p1"), types.String(rowKey)})
	c.NoError(err)

	_, err = conn.Exec(ctx,
		"UPDATE people SET Name = $1 WHERE PartitionKey = $2 AND RowKey = $3",
		[]types.DataType{types.String("Alice"), types.String("p1"), types.String(rowKey)})
	c.NoError(err)

	_, err = conn.Exec(ctx, "DELETE FROM people WHERE PartitionKey = $1 AND RowKey = $2",
		[]types.DataType{types.String("p1"), types.String(rowKey)})
	c.NoError(err)
}

func TestConnectionQuotedKeyRoundTrip(t *testing.T) {
	c := require.New(t)

	ctx := context.Background()
	conn := newTestConnection(t, "people")

	_, err := conn.Exec(ctx, "INSERT INTO people (PartitionKey, RowKey) VALUES ($1, $2)",
		[]types.DataType{types.String("p1"), types.String("O'Brien")})
	c.NoError(err)

	_, err = conn.Exec(ctx, "DELETE FROM people WHERE PartitionKey = $1 AND RowKey = $2",
		[]types.DataType{types.String("p1"), types.String("O'Brien")})
	c.NoError(err)
}

func TestClientEndpointDefault(t *testing.T) {
	c := require.New(t)

	client := NewClient(ConnectOptions{Account: "myaccount", Key: testKey})
	c.Equal("https://myaccount.table.core.windows.net", client.endpoint())

	client = NewClient(ConnectOptions{Account: "myaccount", Key: testKey, Endpoint: "http://localhost:10002/"})
	c.Equal("http://localhost:10002", client.endpoint())
}
