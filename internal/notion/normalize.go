// In file: internal/notion/normalize.go
package notion

import (
	"encoding/json"
	"sort"

	"github.com/dileep-u-k/notion-gateway/internal/actions"
	"github.com/dileep-u-k/notion-gateway/internal/result"
)

// Normalizer reshapes raw Notion responses into the compact representation
// handed back to the model. Tabular responses (database lists, query results)
// are condensed into bounded summaries; everything else is wrapped as-is.
//
// Normalization is pure and deterministic: no timestamps, no randomness, and
// map keys marshal in sorted order, so the same input always yields the same
// bytes.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

const (
	// maxSummaryItems bounds how many databases/pages/blocks a summary keeps.
	maxSummaryItems = 25

	// maxPropertiesPerPage bounds the flattened property list of a single
	// page. Properties are kept in sorted-name order so truncation is
	// deterministic.
	maxPropertiesPerPage = 20
)

type databaseSummary struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	URL            string `json:"url,omitempty"`
	LastEditedTime string `json:"last_edited_time,omitempty"`
}

type pageSummary struct {
	ID             string         `json:"id"`
	URL            string         `json:"url,omitempty"`
	Properties     map[string]any `json:"properties"`
	LastEditedTime string         `json:"last_edited_time,omitempty"`
}

type blockSummary struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// FormatForModel normalizes one execution result for the given action. Error
// envelopes pass through unchanged; success payloads the normalizer doesn't
// recognize are wrapped raw rather than dropped.
func (n *Normalizer) FormatForModel(decl *actions.Declaration, res result.Normalized) result.Normalized {
	if res.IsError {
		return res
	}

	var raw map[string]any
	if err := json.Unmarshal(res.Data, &raw); err != nil {
		return result.Errorf(result.KindResponseFormatError, "Notion API returned an unexpected payload for %s", decl.Name)
	}

	switch decl.Name {
	case actions.ActionListDatabases:
		return n.summarizeDatabases(raw)
	case actions.ActionSearch:
		// A search scoped to databases comes back shaped like a database
		// listing; summarize it the same way, otherwise summarize pages.
		if containsObject(raw, "database") {
			return n.summarizeDatabases(raw)
		}
		return n.summarizePages(raw)
	case actions.ActionQueryDatabase:
		return n.summarizePages(raw)
	case actions.ActionCreatePage, actions.ActionUpdatePage:
		return n.summarizeSinglePage(raw)
	case actions.ActionListBlocks:
		return n.summarizeBlocks(raw)
	default:
		return result.SuccessValue(map[string]any{
			"status": "success",
			"result": raw,
		})
	}
}

func (n *Normalizer) summarizeDatabases(raw map[string]any) result.Normalized {
	items := resultsOf(raw)
	databases := make([]databaseSummary, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok || stringField(entry, "object") != "database" {
			continue
		}
		if len(databases) == maxSummaryItems {
			break
		}
		title := richTextContent(entry["title"])
		if title == "" {
			title = "Untitled Database"
		}
		databases = append(databases, databaseSummary{
			ID:             stringField(entry, "id"),
			Title:          title,
			URL:            stringField(entry, "url"),
			LastEditedTime: stringField(entry, "last_edited_time"),
		})
	}
	return result.SuccessValue(map[string]any{
		"status":    "success",
		"databases": databases,
		"count":     len(databases),
	})
}

func (n *Normalizer) summarizePages(raw map[string]any) result.Normalized {
	items := resultsOf(raw)
	pages := make([]pageSummary, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok || stringField(entry, "object") != "page" {
			continue
		}
		if len(pages) == maxSummaryItems {
			break
		}
		pages = append(pages, pageSummary{
			ID:             stringField(entry, "id"),
			URL:            stringField(entry, "url"),
			Properties:     flattenProperties(entry["properties"]),
			LastEditedTime: stringField(entry, "last_edited_time"),
		})
	}
	out := map[string]any{
		"status": "success",
		"pages":  pages,
		"count":  len(pages),
	}
	if hasMore, ok := raw["has_more"].(bool); ok {
		out["has_more"] = hasMore
	}
	if cursor := stringField(raw, "next_cursor"); cursor != "" {
		out["next_cursor"] = cursor
	}
	return result.SuccessValue(out)
}

func (n *Normalizer) summarizeSinglePage(raw map[string]any) result.Normalized {
	if stringField(raw, "object") != "page" {
		return result.SuccessValue(map[string]any{
			"status": "success",
			"result": raw,
		})
	}
	return result.SuccessValue(map[string]any{
		"status": "success",
		"page": pageSummary{
			ID:         stringField(raw, "id"),
			URL:        stringField(raw, "url"),
			Properties: flattenProperties(raw["properties"]),
		},
	})
}

func (n *Normalizer) summarizeBlocks(raw map[string]any) result.Normalized {
	items := resultsOf(raw)
	blocks := make([]blockSummary, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if len(blocks) == maxSummaryItems {
			break
		}
		blockType := stringField(entry, "type")
		summary := blockSummary{
			ID:   stringField(entry, "id"),
			Type: blockType,
		}
		if payload, ok := entry[blockType].(map[string]any); ok {
			summary.Text = richTextContent(payload["rich_text"])
		}
		blocks = append(blocks, summary)
	}
	out := map[string]any{
		"status": "success",
		"blocks": blocks,
		"count":  len(blocks),
	}
	if hasMore, ok := raw["has_more"].(bool); ok {
		out["has_more"] = hasMore
	}
	return result.SuccessValue(out)
}

// flattenProperties collapses Notion's typed property objects into scalar
// values the model can read. Unknown property types are skipped; the result
// is capped at maxPropertiesPerPage in sorted-name order.
func flattenProperties(v any) map[string]any {
	props, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > maxPropertiesPerPage {
		names = names[:maxPropertiesPerPage]
	}

	flat := make(map[string]any, len(names))
	for _, name := range names {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		switch stringField(prop, "type") {
		case "title":
			flat[name] = richTextContent(prop["title"])
		case "rich_text":
			flat[name] = richTextContent(prop["rich_text"])
		case "number":
			flat[name] = prop["number"]
		case "select":
			if option, ok := prop["select"].(map[string]any); ok {
				flat[name] = stringField(option, "name")
			}
		case "multi_select":
			options, _ := prop["multi_select"].([]any)
			values := make([]string, 0, len(options))
			for _, option := range options {
				if o, ok := option.(map[string]any); ok {
					values = append(values, stringField(o, "name"))
				}
			}
			flat[name] = values
		case "date":
			if date, ok := prop["date"].(map[string]any); ok {
				flat[name] = map[string]any{
					"start": date["start"],
					"end":   date["end"],
				}
			}
		case "checkbox":
			flat[name] = prop["checkbox"]
		case "url":
			flat[name] = prop["url"]
		case "email":
			flat[name] = prop["email"]
		case "phone_number":
			flat[name] = prop["phone_number"]
		}
	}
	return flat
}

// richTextContent concatenates the plain text of a Notion rich-text array.
func richTextContent(v any) string {
	items, ok := v.([]any)
	if !ok {
		return ""
	}
	var out string
	for _, item := range items {
		fragment, ok := item.(map[string]any)
		if !ok || stringField(fragment, "type") != "text" {
			continue
		}
		if text, ok := fragment["text"].(map[string]any); ok {
			out += stringField(text, "content")
		}
	}
	return out
}

func resultsOf(raw map[string]any) []any {
	items, _ := raw["results"].([]any)
	return items
}

func containsObject(raw map[string]any, objectType string) bool {
	for _, item := range resultsOf(raw) {
		if entry, ok := item.(map[string]any); ok && stringField(entry, "object") == objectType {
			return true
		}
	}
	return false
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
