// Package tablesql executes a restricted SQL dialect against Azure Table
// storage. Statements are compiled locally (see the compiler package) and
// dispatched as REST requests: SELECT becomes an OData entity query,
// INSERT, UPDATE and DELETE become single-entity writes addressed by the
// PartitionKey/RowKey compound key.
package tablesql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tablesql/tablesql/auth"
	"github.com/tablesql/tablesql/codec"
	"github.com/tablesql/tablesql/compiler"
	"github.com/tablesql/tablesql/types"
)

const (
	apiVersion   = "2026-02-06"
	acceptHeader = "application/json;odata=fullmetadata"
)

// Client holds account credentials and the HTTP client used by every
// connection opened from it.
type Client struct {
	options    ConnectOptions
	httpClient *http.Client
}

// NewClient creates a client for a storage account.
func NewClient(options ConnectOptions) *Client {
	return &Client{
		options:    options,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithHTTPClient creates a client with a caller-supplied HTTP
// client.
func NewClientWithHTTPClient(options ConnectOptions, httpClient *http.Client) *Client {
	return &Client{options: options, httpClient: httpClient}
}

// Open returns a connection bound to one table. Statements executed on the
// connection always target that table; the table name inside statement text
// is parsed but not used for addressing.
func (c *Client) Open(table string) *Connection {
	return &Connection{client: c, table: table}
}

// Connection executes statements against a single table.
type Connection struct {
	client *Client
	table  string
}

// Table returns the table this connection is bound to.
func (cn *Connection) Table() string {
	return cn.table
}

// Query compiles and executes a SELECT statement, returning one Row per
// matched entity.
func (cn *Connection) Query(ctx context.Context, stmt string, params []types.DataType) ([]types.Row, error) {
	query, err := compiler.CompileQuery(stmt, params)
	if err != nil {
		return nil, err
	}

	uri := cn.client.endpoint() + "/" + cn.table + "()"
	if odata := query.ODataQuery(); odata != "" {
		uri += "?" + odata
	}

	resourcePath := "/" + cn.client.options.Account + "/" + cn.table + "()"

	resp, err := cn.client.do(ctx, http.MethodGet, uri, resourcePath, nil)
	if err != nil {
		return nil, err
	}

	defer closeBody(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading query response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseFailure(resp, body)
	}

	return codec.UnmarshalRows(body)
}

// Exec compiles and executes an INSERT, UPDATE or DELETE statement. Every
// write addresses exactly one entity, so a successful Exec reports one
// affected row.
func (cn *Connection) Exec(ctx context.Context, stmt string, params []types.DataType) (int64, error) {
	write, err := compiler.CompileExec(stmt, params)
	if err != nil {
		return 0, err
	}

	var (
		method   string
		resource string
		payload  []byte
	)

	switch write.Action {
	case compiler.ActionInsert:
		method = http.MethodPost
		resource = cn.table
	case compiler.ActionUpdate:
		method = http.MethodPut
		resource = cn.entityAddress(write.PartitionKey, write.RowKey)
	case compiler.ActionDelete:
		method = http.MethodDelete
		resource = cn.entityAddress(write.PartitionKey, write.RowKey)
	default:
		return 0, types.NewError(types.ErrCodeUnsupportedStatement,
			"unsupported write action", nil)
	}

	if write.Action != compiler.ActionDelete {
		entity, err := codec.MarshalEntity(entityFields(write))
		if err != nil {
			return 0, err
		}

		payload, err = json.Marshal(entity)
		if err != nil {
			return 0, fmt.Errorf("encoding entity: %w", err)
		}
	}

	uri := cn.client.endpoint() + "/" + resource
	resourcePath := "/" + cn.client.options.Account + "/" + resource

	resp, err := cn.client.do(ctx, method, uri, resourcePath, payload)
	if err != nil {
		return 0, err
	}

	defer closeBody(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading exec response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, responseFailure(resp, body)
	}

	// Only single-entity writes are supported, so a success affects one row.
	return 1, nil
}

// entityFields rebuilds the full wire field list: the compiled statement
// carries the keys separately, the wire entity carries them inline.
func entityFields(write *compiler.WriteStatement) []types.Field {
	fields := make([]types.Field, 0, len(write.Fields)+2)
	fields = append(fields,
		types.Field{Name: compiler.PartitionKeyName, Value: types.String(write.PartitionKey)},
		types.Field{Name: compiler.RowKeyName, Value: types.String(write.RowKey)},
	)

	return append(fields, write.Fields...)
}

// entityAddress renders the single-entity resource. Quotes in key values are
// doubled per the OData address syntax, then the values are percent-encoded
// so the address stays a valid URI path segment. The same form is signed as
// the canonical resource.
func (cn *Connection) entityAddress(partitionKey, rowKey string) string {
	escape := func(s string) string {
		return url.PathEscape(strings.ReplaceAll(s, "'", "''"))
	}

	return fmt.Sprintf("%s(PartitionKey='%s',RowKey='%s')",
		cn.table, escape(partitionKey), escape(rowKey))
}

func (c *Client) endpoint() string {
	if c.options.Endpoint != "" {
		return strings.TrimSuffix(c.options.Endpoint, "/")
	}

	return "https://" + c.options.Account + ".table.core.windows.net"
}

// do signs and sends one request. The signature binds to the timestamp it
// accompanies, so both are computed fresh on every call.
func (c *Client) do(ctx context.Context, method, uri, resourcePath string, payload []byte) (*http.Response, error) {
	now := time.Now().UTC().Format(http.TimeFormat)

	authorization, err := auth.Authorization(c.options.Account, c.options.Key, now, resourcePath)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Authorization", authorization)
	req.Header.Set("x-ms-date", now)
	req.Header.Set("x-ms-version", apiVersion)
	req.Header.Set("Accept", acceptHeader)

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if method == http.MethodPut || method == http.MethodDelete {
		req.Header.Set("If-Match", "*")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}

	return resp, nil
}

// responseFailure converts a non-2xx store response into a RequestFailure,
// lifting the OData error code when the body carries one.
func responseFailure(resp *http.Response, body []byte) error {
	message := strings.TrimSpace(string(body))

	var odata struct {
		Error struct {
			Code    string `json:"code"`
			Message struct {
				Value string `json:"value"`
			} `json:"message"`
		} `json:"odata.error"`
	}

	code := types.ErrCodeRequestFailure

	if err := json.Unmarshal(body, &odata); err == nil && odata.Error.Code != "" {
		code = odata.Error.Code
		message = odata.Error.Message.Value
	}

	return types.NewRequestFailure(
		types.NewError(code, message, nil),
		resp.StatusCode,
		resp.Header.Get("x-ms-request-id"),
	)
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
