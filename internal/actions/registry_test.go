// In file: internal/actions/registry_test.go
package actions

import (
	"reflect"
	"testing"
)

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if r.Count() != 7 {
		t.Fatalf("Count() = %d, want 7", r.Count())
	}
}

func TestResolve(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	tests := []struct {
		name     string
		lookup   string
		want     string
		wantOK   bool
	}{
		{name: "canonical", lookup: "list_databases", want: "list_databases", wantOK: true},
		{name: "legacy alias", lookup: "list_notion_databases", want: "list_databases", wantOK: true},
		{name: "search alias", lookup: "search_notion", want: "search", wantOK: true},
		{name: "update alias", lookup: "update_notion_page", want: "update_page", wantOK: true},
		{name: "unknown", lookup: "delete_everything", wantOK: false},
		{name: "case sensitive", lookup: "List_Databases", wantOK: false},
		{name: "empty", lookup: "", wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decl, ok := r.Resolve(tc.lookup)
			if ok != tc.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tc.lookup, ok, tc.wantOK)
			}
			if ok && decl.Name != tc.want {
				t.Errorf("Resolve(%q) = %q, want %q", tc.lookup, decl.Name, tc.want)
			}
		})
	}
}

func TestDefinitionsAreOrderedAndComplete(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	defs := r.Definitions()
	decls := r.Declarations()
	if len(defs) != len(decls) {
		t.Fatalf("Definitions() returned %d entries, want %d", len(defs), len(decls))
	}
	for i, def := range defs {
		if def.Type != "function" {
			t.Errorf("definition %d type = %q, want function", i, def.Type)
		}
		if def.Function.Name != decls[i].Name {
			t.Errorf("definition %d name = %q, want %q", i, def.Function.Name, decls[i].Name)
		}
	}

	// Repeated calls must be deterministic; the matcher relies on it.
	again := r.Definitions()
	if !reflect.DeepEqual(defs, again) {
		t.Error("Definitions() is not deterministic across calls")
	}
}

func TestPathParams(t *testing.T) {
	tests := []struct {
		action string
		want   []string
	}{
		{action: "list_databases", want: nil},
		{action: "get_database", want: []string{"database_id"}},
		{action: "query_database", want: []string{"database_id"}},
		{action: "update_page", want: []string{"page_id"}},
		{action: "list_blocks", want: []string{"page_id"}},
	}

	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	for _, tc := range tests {
		t.Run(tc.action, func(t *testing.T) {
			decl, ok := r.Resolve(tc.action)
			if !ok {
				t.Fatalf("action %q not registered", tc.action)
			}
			if got := decl.PathParams(); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("PathParams() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParamNamesSorted(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	decl, _ := r.Resolve("query_database")
	want := []string{"database_id", "filter", "page_size", "sorts"}
	if got := decl.ParamNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("ParamNames() = %v, want %v", got, want)
	}
}
