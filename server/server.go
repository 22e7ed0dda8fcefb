// Package server implements a local, in-memory emulator of the table
// endpoint, close enough for client development and tests: entity query
// with $filter/$select/$top, single-entity insert, replace and delete, the
// fullmetadata JSON wire format and optional SharedKeyLite verification.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/tablesql/tablesql/auth"
	"github.com/tablesql/tablesql/core"
)

var entityAddressRegex = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9]*)\(PartitionKey='(.*)',RowKey='(.*)'\)$`)

// Server implements http.Handler for the table endpoint subset.
type Server struct {
	mu     sync.Mutex
	tables map[string]*core.Table

	account    string
	accountKey string
	verifyAuth bool
}

// New creates an emulator that accepts any Authorization header.
func New() *Server {
	return &Server{tables: map[string]*core.Table{}}
}

// NewWithCredentials creates an emulator that verifies every request's
// SharedKeyLite signature against the given account credentials.
func NewWithCredentials(account, accountKey string) *Server {
	return &Server{
		tables:     map[string]*core.Table{},
		account:    account,
		accountKey: accountKey,
		verifyAuth: true,
	}
}

// ServeHTTP dispatches requests based on the path shape: "table()" queries,
// "table" inserts, "table(PartitionKey='p',RowKey='r')" replaces or deletes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("x-ms-request-id", uuid.NewString())

	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("error closing body: %v", err)
		}
	}()

	path := strings.TrimPrefix(r.URL.Path, "/")

	// The canonical resource is the path exactly as the client sent it, so
	// signatures stay valid for percent-encoded key values.
	resource := "/" + s.account + r.URL.EscapedPath()

	switch {
	case strings.HasSuffix(path, "()"):
		tableName := strings.TrimSuffix(path, "()")
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "UnsupportedHttpVerb", "entity queries use GET")
			return
		}

		if !s.authorized(w, r, resource) {
			return
		}

		s.handleQuery(w, r, tableName)
	case entityAddressRegex.MatchString(path):
		parts := entityAddressRegex.FindStringSubmatch(path)
		tableName := parts[1]
		partitionKey := unescapeKey(parts[2])
		rowKey := unescapeKey(parts[3])

		if !s.authorized(w, r, resource) {
			return
		}

		switch r.Method {
		case http.MethodPut:
			s.handleReplace(w, r, tableName, partitionKey, rowKey)
		case http.MethodDelete:
			s.handleDelete(w, tableName, partitionKey, rowKey)
		default:
			writeError(w, http.StatusMethodNotAllowed, "UnsupportedHttpVerb", "entity addresses accept PUT or DELETE")
		}
	case path != "" && !strings.ContainsAny(path, "/()"):
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "UnsupportedHttpVerb", "entity inserts use POST")
			return
		}

		if !s.authorized(w, r, resource) {
			return
		}

		s.handleInsert(w, r, path)
	default:
		writeError(w, http.StatusBadRequest, "InvalidUri", "unrecognized resource path: "+r.URL.Path)
	}
}

// authorized verifies the SharedKeyLite signature when the emulator was
// constructed with credentials.
func (s *Server) authorized(w http.ResponseWriter, r *http.Request, resourcePath string) bool {
	if !s.verifyAuth {
		return true
	}

	header := r.Header.Get("Authorization")
	date := r.Header.Get("x-ms-date")

	if auth.Verify(header, s.account, s.accountKey, date, resourcePath) {
		return true
	}

	writeError(w, http.StatusForbidden, "AuthenticationFailed",
		"server failed to authenticate the request")

	return false
}

func (s *Server) table(name string) *core.Table {
	tbl, ok := s.tables[name]
	if !ok {
		tbl = core.NewTable(name)
		s.tables[name] = tbl
	}

	return tbl
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request, tableName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := r.URL.Query()

	var top int64

	if rawTop := query.Get("$top"); rawTop != "" {
		parsed, err := strconv.ParseInt(rawTop, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "InvalidInput", "$top must be a non-negative integer")
			return
		}

		top = parsed
	}

	entities, err := s.table(tableName).Query(query.Get("$filter"), top)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidInput", err.Error())
		return
	}

	if selectList := query.Get("$select"); selectList != "" && selectList != "*" {
		for i, entity := range entities {
			entities[i] = project(entity, strings.Split(selectList, ","))
		}
	}

	writeJSON(w, http.StatusOK, queryResponse{Value: entities})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request, tableName string) {
	entity, ok := decodeEntity(w, r)
	if !ok {
		return
	}

	partitionKey, okP := entity["PartitionKey"].(string)
	rowKey, okR := entity["RowKey"].(string)

	if !okP || !okR {
		writeError(w, http.StatusBadRequest, "InvalidInput",
			"insert entity must carry string PartitionKey and RowKey values")
		return
	}

	stampSystemFields(entity)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.table(tableName).Insert(partitionKey, rowKey, core.Entity(entity)); err != nil {
		writeError(w, http.StatusConflict, "EntityAlreadyExists",
			"the specified entity already exists")
		return
	}

	writeJSON(w, http.StatusCreated, entity)
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request, tableName, partitionKey, rowKey string) {
	entity, ok := decodeEntity(w, r)
	if !ok {
		return
	}

	entity["PartitionKey"] = partitionKey
	entity["RowKey"] = rowKey
	stampSystemFields(entity)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.table(tableName).Replace(partitionKey, rowKey, core.Entity(entity)); err != nil {
		writeError(w, http.StatusNotFound, "ResourceNotFound",
			"the specified entity does not exist")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, tableName, partitionKey, rowKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.table(tableName).Delete(partitionKey, rowKey); err != nil {
		writeError(w, http.StatusNotFound, "ResourceNotFound",
			"the specified entity does not exist")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func decodeEntity(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var entity map[string]any

	if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidInput", "request body is not a JSON entity")
		return nil, false
	}

	return entity, true
}

// stampSystemFields sets the store-managed modification time and etag.
func stampSystemFields(entity map[string]any) {
	now := strfmt.DateTime(time.Now().UTC())

	entity["Timestamp"] = now.String()
	entity["Timestamp@odata.type"] = "Edm.DateTime"
	entity["odata.etag"] = fmt.Sprintf("W/\"datetime'%s'\"", now)
}

// project keeps only the selected columns, their type tags and the
// store-managed fields.
func project(entity core.Entity, columns []string) core.Entity {
	kept := core.Entity{}

	for _, managed := range []string{"PartitionKey", "RowKey", "Timestamp", "Timestamp@odata.type", "odata.etag"} {
		if v, ok := entity[managed]; ok {
			kept[managed] = v
		}
	}

	for _, col := range columns {
		col = strings.TrimSpace(col)

		if v, ok := entity[col]; ok {
			kept[col] = v
		}

		if v, ok := entity[col+"@odata.type"]; ok {
			kept[col+"@odata.type"] = v
		}
	}

	return kept
}

func unescapeKey(raw string) string {
	return strings.ReplaceAll(raw, "''", "'")
}
