package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dbtai-dev/dbtai/internal/graph"
	"github.com/dbtai-dev/dbtai/internal/manifest"
	"github.com/dbtai-dev/dbtai/internal/search"
)

func modelArg(req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	name := req.GetString("model", "")
	if name == "" {
		return "", mcp.NewToolResultError("'model' is required")
	}
	return name, nil
}

// lookupFailure turns manifest errors into tool errors the client can show.
func lookupFailure(name string, err error) *mcp.CallToolResult {
	if errors.Is(err, manifest.ErrNodeNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("model %q is not in the manifest", name))
	}
	return mcp.NewToolResultErrorFromErr(fmt.Sprintf("failed to read model %q", name), err)
}

// DescribeTool handles describe_model.
type DescribeTool struct {
	compiler *manifest.Compiler
}

func NewDescribeTool(compiler *manifest.Compiler) *DescribeTool {
	return &DescribeTool{compiler: compiler}
}

func (t *DescribeTool) Definition() mcp.Tool {
	return mcp.NewTool("describe_model",
		mcp.WithDescription("Describe a dbt model: its description and documented columns."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("model",
			mcp.Required(),
			mcp.Description("Model name, e.g. orders"),
		),
	)
}

func (t *DescribeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, bad := modelArg(req)
	if bad != nil {
		return bad, nil
	}
	text, err := t.compiler.DescribeSelf(name)
	if err != nil {
		return lookupFailure(name, err), nil
	}
	return mcp.NewToolResultText(text), nil
}

// UpstreamTool handles upstream_context.
type UpstreamTool struct {
	compiler *manifest.Compiler
}

func NewUpstreamTool(compiler *manifest.Compiler) *UpstreamTool {
	return &UpstreamTool{compiler: compiler}
}

func (t *UpstreamTool) Definition() mcp.Tool {
	return mcp.NewTool("upstream_context",
		mcp.WithDescription(
			"Markdown summary of the models and sources a dbt model selects from directly, "+
				"with their descriptions and columns.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("model",
			mcp.Required(),
			mcp.Description("Model name, e.g. orders"),
		),
	)
}

func (t *UpstreamTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, bad := modelArg(req)
	if bad != nil {
		return bad, nil
	}
	text, err := t.compiler.CompileMarkdown(name)
	if err != nil {
		return lookupFailure(name, err), nil
	}
	if text == "" {
		return mcp.NewToolResultText(fmt.Sprintf("%s has no upstream models.", name)), nil
	}
	return mcp.NewToolResultText(text), nil
}

type Location struct {
	Model  string `json:"model"`
	Source string `json:"source"`
	Docs   string `json:"docs"`
}

// LocationTool handles model_location.
type LocationTool struct {
	doc *manifest.Document
}

func NewLocationTool(doc *manifest.Document) *LocationTool {
	return &LocationTool{doc: doc}
}

func (t *LocationTool) Definition() mcp.Tool {
	return mcp.NewTool("model_location",
		mcp.WithDescription("Project-relative paths of a dbt model's SQL file and its documentation file."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("model",
			mcp.Required(),
			mcp.Description("Model name, e.g. orders"),
		),
	)
}

func (t *LocationTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, bad := modelArg(req)
	if bad != nil {
		return bad, nil
	}
	source, err := t.doc.SourcePath(name)
	if err != nil {
		return lookupFailure(name, err), nil
	}
	docs, err := manifest.DocPathFor(source)
	if err != nil {
		return lookupFailure(name, err), nil
	}
	return mcp.NewToolResultJSON(Location{Model: name, Source: source, Docs: docs})
}

type Columns struct {
	Model   string            `json:"model"`
	Columns []manifest.Column `json:"columns"`
}

// ColumnsTool handles model_columns.
type ColumnsTool struct {
	doc *manifest.Document
}

func NewColumnsTool(doc *manifest.Document) *ColumnsTool {
	return &ColumnsTool{doc: doc}
}

func (t *ColumnsTool) Definition() mcp.Tool {
	return mcp.NewTool("model_columns",
		mcp.WithDescription("Documented columns of a dbt model in manifest order."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("model",
			mcp.Required(),
			mcp.Description("Model name, e.g. orders"),
		),
	)
}

func (t *ColumnsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, bad := modelArg(req)
	if bad != nil {
		return bad, nil
	}
	node, err := t.doc.FindByName(name)
	if err != nil {
		return lookupFailure(name, err), nil
	}

	out := Columns{Model: name, Columns: []manifest.Column{}}
	if node.Columns != nil {
		for pair := node.Columns.Oldest(); pair != nil; pair = pair.Next() {
			col := pair.Value
			if col.Name == "" {
				col.Name = pair.Key
			}
			out.Columns = append(out.Columns, col)
		}
	}
	return mcp.NewToolResultJSON(out)
}

// SearchTool handles search_models.
type SearchTool struct {
	index *search.Index
}

// NewSearchTool indexes doc once; the manifest never changes while serving.
func NewSearchTool(doc *manifest.Document) *SearchTool {
	return &SearchTool{index: search.Build(doc)}
}

func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("search_models",
		mcp.WithDescription(
			"Find dbt models and sources by name, column, file path, or description. "+
				"Falls back to near spellings of model names.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text query, e.g. 'customer revenue'"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 10)"),
		),
	)
}

func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	limit := req.GetInt("limit", search.DefaultLimit)

	results := search.Search(t.index, query, limit)
	if results == nil {
		results = []search.Result{}
	}
	return mcp.NewToolResultJSON(results)
}

type LineageModel struct {
	Name  string `json:"name"`
	Path  string `json:"path,omitempty"`
	Depth int    `json:"depth"`
}

type Lineage struct {
	Model     string         `json:"model"`
	Direction string         `json:"direction"`
	Models    []LineageModel `json:"models"`
}

// LineageTool handles model_lineage.
type LineageTool struct {
	graph *graph.Graph
}

func NewLineageTool(doc *manifest.Document) *LineageTool {
	return &LineageTool{graph: graph.Build(doc)}
}

func (t *LineageTool) Definition() mcp.Tool {
	return mcp.NewTool("model_lineage",
		mcp.WithDescription(
			"Every model a dbt model depends on (upstream) or every model that depends on it "+
				"(downstream), nearest first. Use downstream before changing a model's columns.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("model",
			mcp.Required(),
			mcp.Description("Model name, e.g. orders"),
		),
		mcp.WithString("direction",
			mcp.Enum("upstream", "downstream"),
			mcp.DefaultString("upstream"),
			mcp.Description("Which side of the lineage to walk"),
		),
		mcp.WithNumber("depth",
			mcp.Description("Levels to walk; 0 walks everything (default: 0)"),
		),
	)
}

func (t *LineageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, bad := modelArg(req)
	if bad != nil {
		return bad, nil
	}
	direction := req.GetString("direction", "upstream")
	depth := req.GetInt("depth", 0)

	var (
		hops []graph.Hop
		err  error
	)
	switch direction {
	case "upstream":
		hops, err = t.graph.Upstream(name, depth)
	case "downstream":
		hops, err = t.graph.Downstream(name, depth)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("direction must be upstream or downstream, got %q", direction)), nil
	}
	if err != nil {
		return lookupFailure(name, err), nil
	}

	out := Lineage{Model: name, Direction: direction, Models: []LineageModel{}}
	for _, hop := range hops {
		out.Models = append(out.Models, LineageModel{Name: hop.Node.Name, Path: hop.Node.File, Depth: hop.Depth})
	}
	return mcp.NewToolResultJSON(out)
}
