// Copyright (c) 2024 TigerDB Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 		http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/lscgzwd/tigerfdw/row"
)

const sampleYAML = `
tables:
  - name: logs
    indices: [logs-2024, logs-2025]
    doc_type: _doc
    log_level: debug
    columns:
      - name: _id
      - name: host
        options:
          es_property: host.name
      - name: tags
        options:
          list_separator: "|"
      - name: message
        type: text
      - name: raw
        type: jsonb
  - name: users
    indices: [users]
    columns:
      - name: login
        options:
          es_field: account.login
`

func newTestTable(name string) *Table {
	return &Table{
		Name:    name,
		Indices: []string{name + "-idx"},
		Columns: []ColumnSpec{{Name: "_id"}, {Name: "title"}},
	}
}

func TestParseYAML(t *testing.T) {
	tables, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Failed to parse catalog: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("Expected 2 tables, got %d", len(tables))
	}

	logs := tables[0]
	if logs.Name != "logs" || len(logs.Indices) != 2 || logs.DocType != "_doc" {
		t.Errorf("Unexpected table header: %+v", logs)
	}
	host, ok := logs.Column("host")
	if !ok {
		t.Fatal("Expected column host")
	}
	if host.Field() != "host.name" {
		t.Errorf("Expected es_property alias to resolve to host.name, got %s", host.Field())
	}

	login, _ := tables[1].Column("login")
	if login.Field() != "account.login" {
		t.Errorf("Expected account.login, got %s", login.Field())
	}
}

func TestParseYAML_Invalid(t *testing.T) {
	cases := map[string]string{
		"no indices":       "tables:\n  - name: t\n    columns: [{name: a}]\n",
		"no columns":       "tables:\n  - name: t\n    indices: [i]\n",
		"duplicate column": "tables:\n  - name: t\n    indices: [i]\n    columns: [{name: a}, {name: a}]\n",
		"duplicate table":  "tables:\n  - {name: t, indices: [i], columns: [{name: a}]}\n  - {name: t, indices: [i], columns: [{name: a}]}\n",
		"bad log level":    "tables:\n  - {name: t, indices: [i], log_level: loud, columns: [{name: a}]}\n",
		"broken yaml":      "tables: [",
	}
	for name, doc := range cases {
		if _, err := ParseYAML([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestResolve(t *testing.T) {
	tables, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Failed to parse catalog: %v", err)
	}
	logs := tables[0]

	cols, err := logs.Resolve([]string{"_id", "host", "tags", "raw"})
	if err != nil {
		t.Fatalf("Failed to resolve columns: %v", err)
	}
	expected := []row.Column{
		{Name: "_id", Field: "_id", Separator: ",", Identity: true},
		{Name: "host", Field: "host.name", Separator: ","},
		{Name: "tags", Field: "tags", Separator: "|"},
		{Name: "raw", Field: "raw", Separator: ",", JSON: true},
	}
	for i, c := range expected {
		if cols[i] != c {
			t.Errorf("Column %d: expected %+v, got %+v", i, c, cols[i])
		}
	}

	all, err := logs.Resolve(nil)
	if err != nil || len(all) != len(logs.Columns) {
		t.Errorf("Expected all %d columns, got %d (%v)", len(logs.Columns), len(all), err)
	}

	_, err = logs.Resolve([]string{"nope"})
	if !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("Expected ErrUnknownColumn, got %v", err)
	}
}

func TestResolveIdentityByField(t *testing.T) {
	table := &Table{
		Name:    "docs",
		Indices: []string{"docs"},
		Columns: []ColumnSpec{{Name: "doc_id", Options: ColumnOptions{ESField: IdentityColumn}}, {Name: "title"}},
	}
	cols, err := table.Resolve(nil)
	if err != nil {
		t.Fatalf("Failed to resolve columns: %v", err)
	}
	if !cols[0].Identity || cols[1].Identity {
		t.Fatalf("Expected only doc_id to be an identity column, got %+v", cols)
	}

	r := row.Materialize(&row.Document{ID: "abc", Source: map[string]interface{}{"title": "t"}}, cols)
	if r["doc_id"] != "abc" {
		t.Errorf("Expected doc_id from envelope, got %v", r["doc_id"])
	}
	if r["title"] != "t" {
		t.Errorf("Expected title t, got %v", r["title"])
	}
}

func TestResolveEmptySeparator(t *testing.T) {
	tables, err := ParseYAML([]byte(`
tables:
  - name: t
    indices: [t]
    columns:
      - name: joined
        options:
          list_separator: ""
      - name: plain
`))
	if err != nil {
		t.Fatalf("Failed to parse catalog: %v", err)
	}
	cols, err := tables[0].Resolve(nil)
	if err != nil {
		t.Fatalf("Failed to resolve columns: %v", err)
	}
	if cols[0].Separator != "" {
		t.Errorf("Expected explicit empty separator, got %q", cols[0].Separator)
	}
	if cols[1].Separator != row.DefaultSeparator {
		t.Errorf("Expected default separator, got %q", cols[1].Separator)
	}

	r := row.Materialize(&row.Document{Source: map[string]interface{}{
		"joined": []interface{}{"a", "b"},
		"plain":  []interface{}{"a", "b"},
	}}, cols)
	if r["joined"] != "ab" || r["plain"] != "a,b" {
		t.Errorf("Unexpected joined values: %v", r)
	}
}

func TestFieldResolver(t *testing.T) {
	tables, _ := ParseYAML([]byte(sampleYAML))
	resolve := tables[0].FieldResolver()
	if got := resolve("host"); got != "host.name" {
		t.Errorf("Expected host.name, got %s", got)
	}
	if got := resolve("undeclared"); got != "undeclared" {
		t.Errorf("Expected undeclared, got %s", got)
	}
}

func testStore(t *testing.T, store Store) {
	t.Helper()

	if err := store.SaveTable(newTestTable("b")); err != nil {
		t.Fatalf("Failed to save table: %v", err)
	}
	if err := store.SaveTable(newTestTable("a")); err != nil {
		t.Fatalf("Failed to save table: %v", err)
	}
	if err := store.SaveTable(&Table{Name: "bad"}); err == nil {
		t.Error("Expected validation error for table without indices")
	}

	got, err := store.GetTable("a")
	if err != nil {
		t.Fatalf("Failed to get table: %v", err)
	}
	if got.Name != "a" || got.Indices[0] != "a-idx" || len(got.Columns) != 2 {
		t.Errorf("Unexpected table: %+v", got)
	}

	tables, err := store.ListTables()
	if err != nil {
		t.Fatalf("Failed to list tables: %v", err)
	}
	if len(tables) != 2 || tables[0].Name != "a" || tables[1].Name != "b" {
		t.Errorf("Expected tables [a b], got %d tables", len(tables))
	}

	if err := store.DeleteTable("a"); err != nil {
		t.Fatalf("Failed to delete table: %v", err)
	}
	if _, err := store.GetTable("a"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Expected ErrTableNotFound, got %v", err)
	}
	if err := store.DeleteTable("a"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Expected ErrTableNotFound on second delete, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	testStore(t, store)
}

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog", "tables.db")
	store, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("Failed to open bolt store: %v", err)
	}
	testStore(t, store)
	store.Close()

	// 重新打开后数据仍在
	reopened, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen bolt store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetTable("b")
	if err != nil {
		t.Fatalf("Expected table b to survive reopen: %v", err)
	}
	if got.Columns[1].Name != "title" {
		t.Errorf("Unexpected columns: %+v", got.Columns)
	}
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(nil)
	if err != nil {
		t.Fatalf("Failed to create default store: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Error("Expected MemoryStore by default")
	}

	_, err = NewStore(&StoreConfig{StorageType: "etcd"})
	var unsupported *UnsupportedStorageTypeError
	if !errors.As(err, &unsupported) {
		t.Errorf("Expected UnsupportedStorageTypeError, got %v", err)
	}
}

func TestImport(t *testing.T) {
	tables, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Failed to parse catalog: %v", err)
	}
	store := NewMemoryStore()
	n, err := Import(store, tables)
	if err != nil || n != 2 {
		t.Fatalf("Expected 2 imported tables, got %d (%v)", n, err)
	}
	if _, err := store.GetTable("users"); err != nil {
		t.Errorf("Expected users table: %v", err)
	}
}
