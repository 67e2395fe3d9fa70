// Package manifest reads a dbt manifest and answers questions about its
// dependency graph: node lookup by name, direct upstream resolution, the
// markdown context handed to prompts, and on-disk locations.
//
// A Document is loaded once per process and never mutated.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	ProjectFile = "dbt_project.yml"
	DefaultPath = "target/manifest.json"
)

type Column struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DataType    string `json:"data_type,omitempty"`
}

type DependsOn struct {
	Nodes  []string `json:"nodes"`
	Macros []string `json:"macros,omitempty"`
}

// Node is one derived model or source. Columns keep the manifest's key order.
type Node struct {
	UniqueID         string                                 `json:"unique_id"`
	Name             string                                 `json:"name"`
	ResourceType     string                                 `json:"resource_type"`
	Description      string                                 `json:"description"`
	Columns          *orderedmap.OrderedMap[string, Column] `json:"columns"`
	RawCode          *string                                `json:"raw_code"`
	RawSQL           *string                                `json:"raw_sql"`
	DependsOn        DependsOn                              `json:"depends_on"`
	OriginalFilePath *string                                `json:"original_file_path"`
}

// SourceText returns the node's raw code. Manifests older than dbt 1.3
// carry it as raw_sql.
func (n *Node) SourceText() (string, error) {
	if n.RawCode != nil {
		return *n.RawCode, nil
	}
	if n.RawSQL != nil {
		return *n.RawSQL, nil
	}
	return "", &MissingFieldError{Node: n.label(), Field: "raw_code"}
}

func (n *Node) FilePath() (string, error) {
	if n.OriginalFilePath == nil {
		return "", &MissingFieldError{Node: n.label(), Field: "original_file_path"}
	}
	return *n.OriginalFilePath, nil
}

// ColumnNames lists the column keys in manifest order.
func (n *Node) ColumnNames() []string {
	if n.Columns == nil {
		return nil
	}
	names := make([]string, 0, n.Columns.Len())
	for pair := n.Columns.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

func (n *Node) label() string {
	if n.UniqueID != "" {
		return n.UniqueID
	}
	return n.Name
}

// Document is the merged id -> node index. Sources are inserted first and
// derived nodes second, each in document key order; a derived node replaces
// a source with the same id but keeps the source's position.
type Document struct {
	nodes *orderedmap.OrderedMap[string, *Node]
}

type rawManifest struct {
	Nodes   *orderedmap.OrderedMap[string, *Node] `json:"nodes"`
	Sources *orderedmap.OrderedMap[string, *Node] `json:"sources"`
}

// Load checks that rootPath is a dbt project, then reads the manifest at
// manifestPath (relative to rootPath unless absolute).
func Load(rootPath, manifestPath string) (*Document, error) {
	if _, err := os.Stat(filepath.Join(rootPath, ProjectFile)); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotAProjectDirectory
		}
		return nil, fmt.Errorf("failed to inspect %s: %w", ProjectFile, err)
	}

	if strings.TrimSpace(manifestPath) == "" {
		manifestPath = DefaultPath
	}
	if !filepath.IsAbs(manifestPath) {
		manifestPath = filepath.Join(rootPath, manifestPath)
	}
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ManifestNotFoundError{Path: manifestPath}
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes manifest JSON without any filesystem checks.
func Parse(data []byte) (*Document, error) {
	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	doc := &Document{nodes: orderedmap.New[string, *Node]()}
	for _, group := range []*orderedmap.OrderedMap[string, *Node]{raw.Sources, raw.Nodes} {
		if group == nil {
			continue
		}
		for pair := group.Oldest(); pair != nil; pair = pair.Next() {
			node := pair.Value
			if node == nil {
				node = &Node{}
			}
			if node.UniqueID == "" {
				node.UniqueID = pair.Key
			}
			doc.nodes.Set(pair.Key, node)
		}
	}
	return doc, nil
}

func (d *Document) Len() int {
	return d.nodes.Len()
}

// Node looks a record up by id.
func (d *Document) Node(id string) (*Node, bool) {
	return d.nodes.Get(id)
}

// Nodes returns every record in iteration order.
func (d *Document) Nodes() []*Node {
	out := make([]*Node, 0, d.nodes.Len())
	for pair := d.nodes.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Names lists node names in iteration order. Duplicates are kept.
func (d *Document) Names() []string {
	out := make([]string, 0, d.nodes.Len())
	for pair := d.nodes.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.Name)
	}
	return out
}

// FindByName returns the first node whose name matches, in iteration order.
func (d *Document) FindByName(name string) (*Node, error) {
	for pair := d.nodes.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Name == name {
			return pair.Value, nil
		}
	}
	return nil, &NodeNotFoundError{Name: name}
}

// UpstreamOf resolves the direct dependencies of name in depends_on order.
// Any id missing from the document fails the whole lookup.
func (d *Document) UpstreamOf(name string) ([]*Node, error) {
	node, err := d.FindByName(name)
	if err != nil {
		return nil, err
	}
	upstream := make([]*Node, 0, len(node.DependsOn.Nodes))
	for _, id := range node.DependsOn.Nodes {
		dep, ok := d.nodes.Get(id)
		if !ok {
			return nil, &DanglingDependencyError{Node: name, Dependency: id}
		}
		upstream = append(upstream, dep)
	}
	return upstream, nil
}
