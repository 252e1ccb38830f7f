// In file: internal/actions/registry.go

// Package actions declares the fixed set of Notion operations the assistant
// can invoke and maps each one to its wire shape on the Notion API. The
// registry is built once at startup from the static table below; it is pure,
// immutable and holds no per-request state.
package actions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dileep-u-k/notion-gateway/internal/tools"
)

// Canonical action names. Dispatch is case-sensitive on these (plus the
// legacy aliases carried for backward compatibility with older prompts).
const (
	ActionListDatabases = "list_databases"
	ActionGetDatabase   = "get_database"
	ActionQueryDatabase = "query_database"
	ActionSearch        = "search"
	ActionCreatePage    = "create_page"
	ActionUpdatePage    = "update_page"
	ActionListBlocks    = "list_blocks"
)

// Declaration is one externally-callable action: its model-facing schema plus
// the HTTP mapping the execution client uses to reach the Notion API.
//
// Arguments named in the Path template fill the template; the remaining
// arguments become query parameters for GET requests and the JSON body
// otherwise.
type Declaration struct {
	Name        string
	Aliases     []string
	Description string
	Method      string
	Path        string
	Schema      tools.JSONSchema

	// Tabular marks actions whose responses are lists of records; the
	// normalizer condenses those into a bounded summary instead of
	// forwarding the full nested structure to the model.
	Tabular bool
}

// RequiredArgs returns the declared required argument names.
func (d *Declaration) RequiredArgs() []string {
	return d.Schema.Required
}

// ParamNames returns the declared argument names, sorted so enumeration
// output stays deterministic across calls.
func (d *Declaration) ParamNames() []string {
	names := make([]string, 0, len(d.Schema.Properties))
	for name := range d.Schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PathParams returns the placeholder names in the path template, e.g.
// "database_id" for "/databases/{database_id}/query".
func (d *Declaration) PathParams() []string {
	var params []string
	rest := d.Path
	for {
		open := strings.Index(rest, "{")
		if open < 0 {
			return params
		}
		closing := strings.Index(rest[open:], "}")
		if closing < 0 {
			return params
		}
		params = append(params, rest[open+1:open+closing])
		rest = rest[open+closing+1:]
	}
}

// Registry holds the action declarations, indexed by canonical name and by
// every legacy alias.
type Registry struct {
	order   []string
	byName  map[string]*Declaration
	byAlias map[string]*Declaration
}

// NewRegistry builds the registry from the static declarations. It fails only
// when the static table is malformed (duplicate names, alias collisions, path
// placeholders without a matching schema property); callers treat that as a
// startup-time fatal.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]*Declaration),
		byAlias: make(map[string]*Declaration),
	}
	for _, decl := range declarations() {
		if err := r.add(decl); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(decl *Declaration) error {
	if decl.Name == "" || decl.Method == "" || decl.Path == "" {
		return fmt.Errorf("action declaration is missing name, method or path: %+v", decl)
	}
	if _, dup := r.byName[decl.Name]; dup {
		return fmt.Errorf("duplicate action name %q", decl.Name)
	}
	if decl.Schema.Type != "object" {
		return fmt.Errorf("action %q: parameter schema root must be an object", decl.Name)
	}
	for _, required := range decl.Schema.Required {
		if _, ok := decl.Schema.Properties[required]; !ok {
			return fmt.Errorf("action %q: required parameter %q is not declared", decl.Name, required)
		}
	}
	for _, placeholder := range decl.PathParams() {
		if _, ok := decl.Schema.Properties[placeholder]; !ok {
			return fmt.Errorf("action %q: path placeholder %q is not a declared parameter", decl.Name, placeholder)
		}
	}
	for _, alias := range decl.Aliases {
		if _, dup := r.byAlias[alias]; dup {
			return fmt.Errorf("alias %q is declared twice", alias)
		}
		if _, dup := r.byName[alias]; dup {
			return fmt.Errorf("alias %q collides with an action name", alias)
		}
		r.byAlias[alias] = decl
	}
	r.byName[decl.Name] = decl
	r.order = append(r.order, decl.Name)
	return nil
}

// Resolve looks up an action by canonical name first, then by the explicit
// alias table. Matching is case-sensitive and exact.
func (r *Registry) Resolve(name string) (*Declaration, bool) {
	if decl, ok := r.byName[name]; ok {
		return decl, true
	}
	decl, ok := r.byAlias[name]
	return decl, ok
}

// Declarations returns the actions in declaration order.
func (r *Registry) Declarations() []*Declaration {
	decls := make([]*Declaration, 0, len(r.order))
	for _, name := range r.order {
		decls = append(decls, r.byName[name])
	}
	return decls
}

// Definitions returns the model-facing tool list for the whole registry, in
// declaration order so repeated payload mutations stay deterministic.
func (r *Registry) Definitions() []tools.Tool {
	defs := make([]tools.Tool, 0, len(r.order))
	for _, name := range r.order {
		decl := r.byName[name]
		defs = append(defs, tools.NewFunctionTool(decl.Name, decl.Description, decl.Schema))
	}
	return defs
}

// Count returns the number of registered actions.
func (r *Registry) Count() int {
	return len(r.order)
}

// declarations is the static action table. Parameter schemas mirror the
// Notion API's request shapes; descriptions are what the model sees.
func declarations() []*Declaration {
	return []*Declaration{
		{
			Name:        ActionListDatabases,
			Aliases:     []string{"list_notion_databases"},
			Description: "List all Notion databases the user has access to",
			Method:      "GET",
			Path:        "/databases",
			Tabular:     true,
			Schema: tools.JSONSchema{
				Type:       "object",
				Properties: map[string]*tools.JSONSchema{},
			},
		},
		{
			Name:        ActionGetDatabase,
			Aliases:     []string{"get_notion_database"},
			Description: "Retrieve a single Notion database, including its property schema",
			Method:      "GET",
			Path:        "/databases/{database_id}",
			Schema: tools.JSONSchema{
				Type: "object",
				Properties: map[string]*tools.JSONSchema{
					"database_id": {
						Type:        "string",
						Description: "The ID of the database to retrieve",
					},
				},
				Required: []string{"database_id"},
			},
		},
		{
			Name:        ActionQueryDatabase,
			Aliases:     []string{"query_notion_database"},
			Description: "Query a specific Notion database",
			Method:      "POST",
			Path:        "/databases/{database_id}/query",
			Tabular:     true,
			Schema: tools.JSONSchema{
				Type: "object",
				Properties: map[string]*tools.JSONSchema{
					"database_id": {
						Type:        "string",
						Description: "The ID of the database to query",
					},
					"filter": {
						Type:        "object",
						Description: "Filter conditions for the database query",
					},
					"sorts": {
						Type:        "array",
						Description: "Sort order for the database query",
						Items: &tools.JSONSchema{
							Type: "object",
							Properties: map[string]*tools.JSONSchema{
								"property": {
									Type:        "string",
									Description: "The property to sort by",
								},
								"direction": {
									Type:        "string",
									Description: "The sort direction ('ascending' or 'descending')",
								},
							},
						},
					},
					"page_size": {
						Type:        "integer",
						Description: "Maximum number of results to return (max 100)",
					},
				},
				Required: []string{"database_id"},
			},
		},
		{
			Name:        ActionSearch,
			Aliases:     []string{"search_notion"},
			Description: "Search Notion for pages, databases, and other content",
			Method:      "POST",
			Path:        "/search",
			Tabular:     true,
			Schema: tools.JSONSchema{
				Type: "object",
				Properties: map[string]*tools.JSONSchema{
					"query": {
						Type:        "string",
						Description: "The search query string",
					},
					"filter": {
						Type:        "object",
						Description: "Filter for specific types of Notion objects",
						Properties: map[string]*tools.JSONSchema{
							"value": {
								Type:        "string",
								Description: "The type of objects to filter for (e.g. 'page', 'database')",
							},
							"property": {
								Type:        "string",
								Description: "The property to filter on (usually 'object')",
							},
						},
					},
					"sort": {
						Type:        "object",
						Description: "Sort the results",
						Properties: map[string]*tools.JSONSchema{
							"direction": {
								Type:        "string",
								Description: "Sort direction ('ascending' or 'descending')",
							},
							"timestamp": {
								Type:        "string",
								Description: "Which timestamp to sort by (e.g. 'last_edited_time')",
							},
						},
					},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        ActionCreatePage,
			Aliases:     []string{"create_notion_page"},
			Description: "Create a new page in Notion",
			Method:      "POST",
			Path:        "/pages",
			Schema: tools.JSONSchema{
				Type: "object",
				Properties: map[string]*tools.JSONSchema{
					"parent": {
						Type:        "object",
						Description: "Parent resource where the page will be created",
						Properties: map[string]*tools.JSONSchema{
							"type": {
								Type:        "string",
								Description: "The parent type ('database_id' or 'page_id')",
							},
							"database_id": {
								Type:        "string",
								Description: "The ID of the database to create the page in",
							},
							"page_id": {
								Type:        "string",
								Description: "The ID of the page to create a subpage in",
							},
						},
					},
					"properties": {
						Type:        "object",
						Description: "Page properties (varies by database schema)",
					},
					"children": {
						Type:        "array",
						Description: "Page content blocks",
						Items:       &tools.JSONSchema{Type: "object"},
					},
				},
				Required: []string{"parent", "properties"},
			},
		},
		{
			Name:        ActionUpdatePage,
			Aliases:     []string{"update_notion_page"},
			Description: "Update an existing page in Notion",
			Method:      "PATCH",
			Path:        "/pages/{page_id}",
			Schema: tools.JSONSchema{
				Type: "object",
				Properties: map[string]*tools.JSONSchema{
					"page_id": {
						Type:        "string",
						Description: "The ID of the page to update",
					},
					"properties": {
						Type:        "object",
						Description: "Page properties to update (varies by database schema)",
					},
					"archived": {
						Type:        "boolean",
						Description: "Whether the page should be archived",
					},
				},
				Required: []string{"page_id", "properties"},
			},
		},
		{
			Name:        ActionListBlocks,
			Aliases:     []string{"list_notion_blocks"},
			Description: "List the content blocks of a Notion page",
			Method:      "GET",
			Path:        "/blocks/{page_id}/children",
			Schema: tools.JSONSchema{
				Type: "object",
				Properties: map[string]*tools.JSONSchema{
					"page_id": {
						Type:        "string",
						Description: "The ID of the page whose blocks to list",
					},
					"page_size": {
						Type:        "integer",
						Description: "Maximum number of blocks to return (max 100)",
					},
				},
				Required: []string{"page_id"},
			},
		},
	}
}
