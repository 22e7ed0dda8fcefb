// Package core implements the in-memory entity table backing the local
// emulator. Entities are stored in their wire JSON shape and addressed by
// the PartitionKey/RowKey compound key.
package core

import (
	"errors"
	"sort"
)

var (
	// ErrEntityExists when an insert addresses an existing key pair.
	ErrEntityExists = errors.New("entity already exists")
	// ErrEntityNotFound when an update or delete addresses a missing key pair.
	ErrEntityNotFound = errors.New("entity not found")
)

// Entity is a wire-shaped table row: a flat map of <field> and
// <field>@odata.type pairs.
type Entity map[string]any

// Table stores entities for one table name, ordered by key pair.
type Table struct {
	Name       string
	sortedKeys []string
	data       map[string]Entity
}

// NewTable creates an empty table.
func NewTable(name string) *Table {
	return &Table{
		Name:       name,
		sortedKeys: []string{},
		data:       map[string]Entity{},
	}
}

// entityKey composes the storage key. The separator cannot occur in key
// values since the statement dialect never carries control characters
// through quoted literals.
func entityKey(partitionKey, rowKey string) string {
	return partitionKey + "\n" + rowKey
}

// Count returns the number of stored entities.
func (t *Table) Count() int {
	return len(t.data)
}

// Get returns the entity stored under the key pair.
func (t *Table) Get(partitionKey, rowKey string) (Entity, bool) {
	e, ok := t.data[entityKey(partitionKey, rowKey)]
	return e, ok
}

// Insert stores a new entity. It fails with ErrEntityExists when the key
// pair is already present.
func (t *Table) Insert(partitionKey, rowKey string, entity Entity) error {
	key := entityKey(partitionKey, rowKey)

	if _, ok := t.data[key]; ok {
		return ErrEntityExists
	}

	t.data[key] = copyEntity(entity)

	pos := sort.SearchStrings(t.sortedKeys, key)
	t.sortedKeys = append(t.sortedKeys, "")
	copy(t.sortedKeys[pos+1:], t.sortedKeys[pos:])
	t.sortedKeys[pos] = key

	return nil
}

// Replace overwrites an existing entity. It fails with ErrEntityNotFound
// when the key pair is absent.
func (t *Table) Replace(partitionKey, rowKey string, entity Entity) error {
	key := entityKey(partitionKey, rowKey)

	if _, ok := t.data[key]; !ok {
		return ErrEntityNotFound
	}

	t.data[key] = copyEntity(entity)

	return nil
}

// Delete removes the entity stored under the key pair.
func (t *Table) Delete(partitionKey, rowKey string) error {
	key := entityKey(partitionKey, rowKey)

	if _, ok := t.data[key]; !ok {
		return ErrEntityNotFound
	}

	delete(t.data, key)

	pos := sort.SearchStrings(t.sortedKeys, key)
	if pos < len(t.sortedKeys) && t.sortedKeys[pos] == key {
		t.sortedKeys = append(t.sortedKeys[:pos], t.sortedKeys[pos+1:]...)
	}

	return nil
}

// Query returns entities matching an OData filter in key order, up to top
// entities when top is positive.
func (t *Table) Query(filter string, top int64) ([]Entity, error) {
	predicate, err := compileFilter(filter)
	if err != nil {
		return nil, err
	}

	matched := []Entity{}

	for _, key := range t.sortedKeys {
		entity := t.data[key]
		if !predicate(entity) {
			continue
		}

		matched = append(matched, copyEntity(entity))

		if top > 0 && int64(len(matched)) >= top {
			break
		}
	}

	return matched, nil
}

func copyEntity(entity Entity) Entity {
	clone := make(Entity, len(entity))
	for key, val := range entity {
		clone[key] = val
	}

	return clone
}
