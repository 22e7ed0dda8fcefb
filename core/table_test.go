package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testEntity(partitionKey, rowKey, name string, age float64) Entity {
	return Entity{
		"PartitionKey": partitionKey,
		"RowKey":       rowKey,
		"Name":         name,
		"Age":          age,
	}
}

func TestTableInsertAndGet(t *testing.T) {
	c := require.New(t)

	table := NewTable("people")
	c.Zero(table.Count())

	err := table.Insert("p1", "r1", testEntity("p1", "r1", "Alice", 30))
	c.NoError(err)
	c.Equal(1, table.Count())

	entity, ok := table.Get("p1", "r1")
	c.True(ok)
	c.Equal("Alice", entity["Name"])

	_, ok = table.Get("p1", "missing")
	c.False(ok)

	err = table.Insert("p1", "r1", testEntity("p1", "r1", "Alice", 30))
	c.ErrorIs(err, ErrEntityExists)
	c.Equal(1, table.Count())
}

func TestTableInsertCopiesEntity(t *testing.T) {
	c := require.New(t)

	table := NewTable("people")
	entity := testEntity("p1", "r1", "Alice", 30)

	c.NoError(table.Insert("p1", "r1", entity))

	// Mutating the caller's map must not reach the stored copy.
	entity["Name"] = "Mallory"

	stored, ok := table.Get("p1", "r1")
	c.True(ok)
	c.Equal("Alice", stored["Name"])
}

func TestTableReplace(t *testing.T) {
	c := require.New(t)

	table := NewTable("people")

	err := table.Replace("p1", "r1", testEntity("p1", "r1", "Alice", 30))
	c.ErrorIs(err, ErrEntityNotFound)

	c.NoError(table.Insert("p1", "r1", testEntity("p1", "r1", "Alice", 30)))
	c.NoError(table.Replace("p1", "r1", testEntity("p1", "r1", "Bob", 25)))

	entity, ok := table.Get("p1", "r1")
	c.True(ok)
	c.Equal("Bob", entity["Name"])
	c.Equal(1, table.Count())
}

func TestTableDelete(t *testing.T) {
	c := require.New(t)

	table := NewTable("people")

	c.ErrorIs(table.Delete("p1", "r1"), ErrEntityNotFound)

	c.NoError(table.Insert("p1", "r1", testEntity("p1", "r1", "Alice", 30)))
	c.NoError(table.Delete("p1", "r1"))
	c.Zero(table.Count())

	_, ok := table.Get("p1", "r1")
	c.False(ok)
}

func TestTableQueryKeyOrder(t *testing.T) {
	c := require.New(t)

	table := NewTable("people")

	c.NoError(table.Insert("p2", "r1", testEntity("p2", "r1", "Carol", 41)))
	c.NoError(table.Insert("p1", "r2", testEntity("p1", "r2", "Bob", 25)))
	c.NoError(table.Insert("p1", "r1", testEntity("p1", "r1", "Alice", 30)))

	entities, err := table.Query("", 0)
	c.NoError(err)
	c.Len(entities, 3)

	c.Equal("Alice", entities[0]["Name"])
	c.Equal("Bob", entities[1]["Name"])
	c.Equal("Carol", entities[2]["Name"])
}

func TestTableQueryFilters(t *testing.T) {
	table := NewTable("people")

	c := require.New(t)
	c.NoError(table.Insert("p1", "r1", testEntity("p1", "r1", "Alice", 30)))
	c.NoError(table.Insert("p1", "r2", testEntity("p1", "r2", "Bob", 25)))
	c.NoError(table.Insert("p2", "r1", testEntity("p2", "r1", "O'Brien", 41)))

	tests := []struct {
		name   string
		filter string
		want   []string
	}{
		{
			name:   "string equality",
			filter: "Name eq 'Alice'",
			want:   []string{"Alice"},
		},
		{
			name:   "escaped quote in literal",
			filter: "Name eq 'O''Brien'",
			want:   []string{"O'Brien"},
		},
		{
			name:   "numeric comparison",
			filter: "Age gt 26",
			want:   []string{"Alice", "O'Brien"},
		},
		{
			name:   "and chain",
			filter: "PartitionKey eq 'p1' and Age ge 30",
			want:   []string{"Alice"},
		},
		{
			name:   "key pair address",
			filter: "PartitionKey eq 'p1' and RowKey eq 'r2'",
			want:   []string{"Bob"},
		},
		{
			name:   "not equal",
			filter: "Name ne 'Alice'",
			want:   []string{"Bob", "O'Brien"},
		},
		{
			name:   "missing property matches nothing",
			filter: "Nick eq 'Al'",
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := require.New(t)

			entities, err := table.Query(tt.filter, 0)
			c.NoError(err)

			names := []string{}
			for _, e := range entities {
				names = append(names, e["Name"].(string))
			}

			c.Equal(tt.want, names)
		})
	}
}

func TestTableQueryTop(t *testing.T) {
	c := require.New(t)

	table := NewTable("people")
	c.NoError(table.Insert("p1", "r1", testEntity("p1", "r1", "Alice", 30)))
	c.NoError(table.Insert("p1", "r2", testEntity("p1", "r2", "Bob", 25)))
	c.NoError(table.Insert("p1", "r3", testEntity("p1", "r3", "Carol", 41)))

	entities, err := table.Query("", 2)
	c.NoError(err)
	c.Len(entities, 2)
	c.Equal("Alice", entities[0]["Name"])
	c.Equal("Bob", entities[1]["Name"])
}

func TestTableQueryBooleanFilter(t *testing.T) {
	c := require.New(t)

	table := NewTable("people")
	c.NoError(table.Insert("p1", "r1", Entity{"RowKey": "r1", "Active": true}))
	c.NoError(table.Insert("p1", "r2", Entity{"RowKey": "r2", "Active": false}))

	entities, err := table.Query("Active eq true", 0)
	c.NoError(err)
	c.Len(entities, 1)
	c.Equal("r1", entities[0]["RowKey"])
}

func TestTableQueryBadFilters(t *testing.T) {
	table := NewTable("people")

	tests := []struct {
		name   string
		filter string
	}{
		{name: "unterminated literal", filter: "Name eq 'Alice"},
		{name: "unsupported operator", filter: "Name like 'Al'"},
		{name: "unsupported connective", filter: "Age gt 1 or Age lt 9"},
		{name: "incomplete condition", filter: "Name eq"},
		{name: "bad literal", filter: "Age gt abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := require.New(t)

			_, err := table.Query(tt.filter, 0)
			c.Error(err)
		})
	}
}
