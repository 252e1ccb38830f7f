// In file: internal/notion/normalize_test.go
package notion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/dileep-u-k/notion-gateway/internal/result"
)

func successResult(t *testing.T, v any) result.Normalized {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return result.Success(raw)
}

func TestFormatForModelErrorsPassThrough(t *testing.T) {
	n := NewNormalizer()
	decl := testDeclaration(t, "list_databases")
	in := result.ServiceError(429, "rate limited")

	out := n.FormatForModel(decl, in)

	if !out.IsError || out.Kind != in.Kind || out.Status != in.Status || out.Message != in.Message {
		t.Errorf("error envelope was modified: %+v", out)
	}
}

func TestFormatForModelDatabaseSummary(t *testing.T) {
	n := NewNormalizer()
	decl := testDeclaration(t, "list_databases")

	in := successResult(t, map[string]any{
		"object": "list",
		"results": []any{
			map[string]any{
				"object": "database",
				"id":     "db-1",
				"title": []any{
					map[string]any{"type": "text", "text": map[string]any{"content": "Tasks"}},
				},
				"url":              "https://notion.so/db-1",
				"last_edited_time": "2024-01-01T00:00:00Z",
			},
			map[string]any{
				"object": "database",
				"id":     "db-2",
				"title":  []any{},
			},
			map[string]any{"object": "page", "id": "pg-1"},
		},
	})

	out := n.FormatForModel(decl, in)
	if out.IsError {
		t.Fatalf("unexpected error: %s", out.Message)
	}

	var decoded struct {
		Status    string            `json:"status"`
		Count     int               `json:"count"`
		Databases []databaseSummary `json:"databases"`
	}
	if err := json.Unmarshal(out.Data, &decoded); err != nil {
		t.Fatalf("decode summary: %v", err)
	}

	if decoded.Count != 2 || len(decoded.Databases) != 2 {
		t.Fatalf("count = %d, want 2 (pages excluded)", decoded.Count)
	}
	if decoded.Databases[0].Title != "Tasks" {
		t.Errorf("title = %q, want Tasks", decoded.Databases[0].Title)
	}
	if decoded.Databases[1].Title != "Untitled Database" {
		t.Errorf("empty title = %q, want the Untitled Database fallback", decoded.Databases[1].Title)
	}
}

func TestFormatForModelIsDeterministic(t *testing.T) {
	n := NewNormalizer()
	decl := testDeclaration(t, "query_database")

	in := successResult(t, map[string]any{
		"object": "list",
		"results": []any{
			map[string]any{
				"object": "page",
				"id":     "pg-1",
				"properties": map[string]any{
					"Name":   map[string]any{"type": "title", "title": []any{map[string]any{"type": "text", "text": map[string]any{"content": "Ship it"}}}},
					"Done":   map[string]any{"type": "checkbox", "checkbox": true},
					"Points": map[string]any{"type": "number", "number": float64(3)},
				},
			},
		},
		"has_more":    true,
		"next_cursor": "cursor-abc",
	})

	first := n.FormatForModel(decl, in)
	second := n.FormatForModel(decl, in)
	if first.IsError {
		t.Fatalf("unexpected error: %s", first.Message)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Error("normalizing the same input twice produced different bytes")
	}

	var decoded struct {
		Pages      []pageSummary `json:"pages"`
		HasMore    bool          `json:"has_more"`
		NextCursor string        `json:"next_cursor"`
	}
	if err := json.Unmarshal(first.Data, &decoded); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if !decoded.HasMore || decoded.NextCursor != "cursor-abc" {
		t.Errorf("pagination fields lost: %+v", decoded)
	}
	props := decoded.Pages[0].Properties
	if props["Name"] != "Ship it" || props["Done"] != true || props["Points"] != float64(3) {
		t.Errorf("flattened properties = %v", props)
	}
}

func TestFormatForModelSearchBranchesOnResultType(t *testing.T) {
	n := NewNormalizer()
	decl := testDeclaration(t, "search")

	dbResults := successResult(t, map[string]any{
		"results": []any{map[string]any{"object": "database", "id": "db-1", "title": []any{}}},
	})
	out := n.FormatForModel(decl, dbResults)
	var asDatabases map[string]json.RawMessage
	if err := json.Unmarshal(out.Data, &asDatabases); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := asDatabases["databases"]; !ok {
		t.Error("database search results were not summarized as databases")
	}

	pageResults := successResult(t, map[string]any{
		"results": []any{map[string]any{"object": "page", "id": "pg-1", "properties": map[string]any{}}},
	})
	out = n.FormatForModel(decl, pageResults)
	var asPages map[string]json.RawMessage
	if err := json.Unmarshal(out.Data, &asPages); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := asPages["pages"]; !ok {
		t.Error("page search results were not summarized as pages")
	}
}

func TestFormatForModelTruncatesLongListings(t *testing.T) {
	n := NewNormalizer()
	decl := testDeclaration(t, "list_databases")

	results := make([]any, 0, 40)
	for i := 0; i < 40; i++ {
		results = append(results, map[string]any{
			"object": "database",
			"id":     fmt.Sprintf("db-%d", i),
			"title":  []any{},
		})
	}
	out := n.FormatForModel(decl, successResult(t, map[string]any{"results": results}))

	var decoded struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(out.Data, &decoded); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if decoded.Count != maxSummaryItems {
		t.Errorf("count = %d, want the %d-item cap", decoded.Count, maxSummaryItems)
	}
}

func TestFlattenPropertiesTruncatesInSortedOrder(t *testing.T) {
	props := map[string]any{}
	for i := 0; i < maxPropertiesPerPage+5; i++ {
		props[fmt.Sprintf("prop-%02d", i)] = map[string]any{"type": "checkbox", "checkbox": i%2 == 0}
	}

	flat := flattenProperties(props)

	if len(flat) != maxPropertiesPerPage {
		t.Fatalf("len = %d, want %d", len(flat), maxPropertiesPerPage)
	}
	// Sorted-name truncation drops the highest-numbered names.
	if _, kept := flat["prop-00"]; !kept {
		t.Error("lowest-sorted property was dropped")
	}
	if _, kept := flat[fmt.Sprintf("prop-%02d", maxPropertiesPerPage)]; kept {
		t.Error("property past the cap survived truncation")
	}
}

func TestFormatForModelSinglePage(t *testing.T) {
	n := NewNormalizer()
	decl := testDeclaration(t, "create_page")

	in := successResult(t, map[string]any{
		"object": "page",
		"id":     "pg-9",
		"url":    "https://notion.so/pg-9",
		"properties": map[string]any{
			"Tags": map[string]any{
				"type":         "multi_select",
				"multi_select": []any{map[string]any{"name": "infra"}, map[string]any{"name": "urgent"}},
			},
		},
	})
	out := n.FormatForModel(decl, in)

	var decoded struct {
		Page pageSummary `json:"page"`
	}
	if err := json.Unmarshal(out.Data, &decoded); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if decoded.Page.ID != "pg-9" {
		t.Errorf("page id = %q", decoded.Page.ID)
	}
	tags, _ := decoded.Page.Properties["Tags"].([]any)
	if len(tags) != 2 {
		t.Errorf("Tags = %v, want two options", decoded.Page.Properties["Tags"])
	}
}

func TestFormatForModelBlocks(t *testing.T) {
	n := NewNormalizer()
	decl := testDeclaration(t, "list_blocks")

	in := successResult(t, map[string]any{
		"results": []any{
			map[string]any{
				"object": "block",
				"id":     "blk-1",
				"type":   "paragraph",
				"paragraph": map[string]any{
					"rich_text": []any{
						map[string]any{"type": "text", "text": map[string]any{"content": "Hello "}},
						map[string]any{"type": "text", "text": map[string]any{"content": "world"}},
					},
				},
			},
		},
	})
	out := n.FormatForModel(decl, in)

	var decoded struct {
		Blocks []blockSummary `json:"blocks"`
	}
	if err := json.Unmarshal(out.Data, &decoded); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(decoded.Blocks) != 1 || decoded.Blocks[0].Text != "Hello world" {
		t.Errorf("blocks = %+v", decoded.Blocks)
	}
}

func TestFormatForModelUnexpectedShape(t *testing.T) {
	n := NewNormalizer()
	decl := testDeclaration(t, "list_databases")

	out := n.FormatForModel(decl, result.Success(json.RawMessage(`[1,2,3]`)))

	if !out.IsError || out.Kind != result.KindResponseFormatError {
		t.Fatalf("got %+v, want a response_format_error envelope", out)
	}
}
