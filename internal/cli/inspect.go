package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbtai-dev/dbtai/internal/fileutil"
	"github.com/dbtai-dev/dbtai/internal/graph"
	"github.com/dbtai-dev/dbtai/internal/search"
	"github.com/dbtai-dev/dbtai/internal/sqlparse"
)

type ColumnsOutput struct {
	Model   string   `json:"model"`
	Columns []string `json:"columns"`
}

// RunColumns lists the output columns of the model's final CTE.
func RunColumns(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	_, code, err := p.sourceOf(name)
	if err != nil {
		return err
	}
	columns, err := sqlparse.FinalSelectedColumns(code)
	if err != nil {
		return fmt.Errorf("failed to read columns of %s: %w", name, err)
	}

	if asJSON {
		return fileutil.PrintJSON(ColumnsOutput{Model: name, Columns: columns})
	}
	for _, column := range columns {
		fmt.Println(column)
	}
	return nil
}

// RunContext prints the model description followed by the upstream context
// that generation prompts receive.
func RunContext(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	self, err := p.compiler.DescribeSelf(name)
	if err != nil {
		return p.withSuggestions(name, err)
	}
	upstream, err := p.compiler.CompileMarkdown(name)
	if err != nil {
		return err
	}

	fmt.Println(self)
	fmt.Println()
	fmt.Println("Upstream:")
	if upstream == "" {
		fmt.Println("(no upstream models)")
		return nil
	}
	fmt.Println(upstream)
	return nil
}

type ListEntry struct {
	Name         string `json:"name"`
	ResourceType string `json:"resource_type,omitempty"`
	Path         string `json:"path,omitempty"`
	Upstream     int    `json:"upstream"`
	Downstream   int    `json:"downstream"`
}

func RunList(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	lineage := graph.Build(p.doc)
	entries := make([]ListEntry, 0, p.doc.Len())
	for _, node := range p.doc.Nodes() {
		entry := ListEntry{
			Name:         node.Name,
			ResourceType: node.ResourceType,
			Upstream:     len(node.DependsOn.Nodes),
		}
		if linked, ok := lineage.Nodes[node.UniqueID]; ok {
			entry.Downstream = len(linked.InEdges)
		}
		if path, err := node.FilePath(); err == nil {
			entry.Path = path
		}
		entries = append(entries, entry)
	}

	if asJSON {
		return fileutil.PrintJSON(entries)
	}
	for _, entry := range entries {
		kind := entry.ResourceType
		if kind == "" {
			kind = "node"
		}
		fmt.Printf("%-8s %s\t%s\n", kind, entry.Name, entry.Path)
	}
	return nil
}

// RunSearch ranks models and sources by name, columns, path and description.
func RunSearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	limit, err := OptionalIntFlag(cmd, "limit", search.DefaultLimit)
	if err != nil {
		return err
	}

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	results := search.Search(search.Build(p.doc), query, limit)

	if asJSON {
		if results == nil {
			results = []search.Result{}
		}
		return fileutil.PrintJSON(results)
	}
	if len(results) == 0 {
		fmt.Printf("No models match %q.\n", query)
		return nil
	}
	for _, r := range results {
		fmt.Printf("%-24s %s\n", r.Name, r.File)
	}
	return nil
}

type LineageEntry struct {
	Name  string `json:"name"`
	Kind  string `json:"resource_type,omitempty"`
	Path  string `json:"path,omitempty"`
	Depth int    `json:"depth"`
}

type LineageOutput struct {
	Model     string         `json:"model"`
	Direction string         `json:"direction"`
	Models    []LineageEntry `json:"models"`
}

// RunLineage walks the transitive upstream of a model, or its dependents
// with --downstream.
func RunLineage(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	downstream, err := OptionalBoolFlag(cmd, "downstream", false)
	if err != nil {
		return err
	}
	depth, err := OptionalIntFlag(cmd, "depth", 0)
	if err != nil {
		return err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	lineage := graph.Build(p.doc)

	out := LineageOutput{Model: name, Direction: "upstream", Models: []LineageEntry{}}
	walk := lineage.Upstream
	if downstream {
		out.Direction = "downstream"
		walk = lineage.Downstream
	}
	hops, err := walk(name, depth)
	if err != nil {
		return p.withSuggestions(name, err)
	}
	for _, hop := range hops {
		out.Models = append(out.Models, LineageEntry{
			Name:  hop.Node.Name,
			Kind:  hop.Node.Kind,
			Path:  hop.Node.File,
			Depth: hop.Depth,
		})
	}

	if asJSON {
		return fileutil.PrintJSON(out)
	}
	if len(out.Models) == 0 {
		fmt.Printf("%s has no %s models.\n", name, out.Direction)
		return nil
	}
	for _, entry := range out.Models {
		fmt.Printf("%s%s\n", strings.Repeat("  ", entry.Depth-1), entry.Name)
	}
	return nil
}
