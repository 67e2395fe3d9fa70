package manifest

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	NoDescription = "(no description)"
	NoColumns     = "(no columns defined)"

	DefaultCacheSize = 256
)

// RenderNode renders one node as a header line followed by one bullet per
// column, or the no-columns marker.
func RenderNode(node *Node) string {
	var b strings.Builder
	b.WriteString(node.Name)
	b.WriteString(": ")
	b.WriteString(orPlaceholder(node.Description))

	if node.Columns == nil || node.Columns.Len() == 0 {
		b.WriteString("\n")
		b.WriteString(NoColumns)
		return b.String()
	}
	for pair := node.Columns.Oldest(); pair != nil; pair = pair.Next() {
		fmt.Fprintf(&b, "\n* %s: %s", pair.Key, orPlaceholder(pair.Value.Description))
	}
	return b.String()
}

// CompileMarkdown describes the direct upstream nodes of name, one
// paragraph each, separated by a blank line. No upstream yields "".
func CompileMarkdown(doc *Document, name string) (string, error) {
	upstream, err := doc.UpstreamOf(name)
	if err != nil {
		return "", err
	}
	paragraphs := make([]string, 0, len(upstream))
	for _, node := range upstream {
		paragraphs = append(paragraphs, RenderNode(node))
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// DescribeSelf renders the named node itself.
func DescribeSelf(doc *Document, name string) (string, error) {
	node, err := doc.FindByName(name)
	if err != nil {
		return "", err
	}
	return RenderNode(node), nil
}

// Compiler memoises rendered context per model name. The document is
// immutable, so cached entries never go stale.
type Compiler struct {
	doc   *Document
	cache *lru.Cache[string, string]
}

func NewCompiler(doc *Document, cacheSize int) (*Compiler, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create context cache: %w", err)
	}
	return &Compiler{doc: doc, cache: cache}, nil
}

func (c *Compiler) Document() *Document {
	return c.doc
}

func (c *Compiler) CompileMarkdown(name string) (string, error) {
	return c.cached("upstream\x00"+name, func() (string, error) {
		return CompileMarkdown(c.doc, name)
	})
}

func (c *Compiler) DescribeSelf(name string) (string, error) {
	return c.cached("self\x00"+name, func() (string, error) {
		return DescribeSelf(c.doc, name)
	})
}

// CompileMarkdownFor joins the upstream context of several models. Models
// without upstream nodes contribute nothing.
func (c *Compiler) CompileMarkdownFor(names []string) (string, error) {
	parts := make([]string, 0, len(names))
	for _, name := range names {
		text, err := c.CompileMarkdown(name)
		if err != nil {
			return "", err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func (c *Compiler) cached(key string, build func() (string, error)) (string, error) {
	if text, ok := c.cache.Get(key); ok {
		return text, nil
	}
	text, err := build()
	if err != nil {
		return "", err
	}
	c.cache.Add(key, text)
	return text, nil
}

func orPlaceholder(description string) string {
	if strings.TrimSpace(description) == "" {
		return NoDescription
	}
	return description
}
