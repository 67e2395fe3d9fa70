// Package sqlparse inspects and normalises dbt model SQL with tree-sitter.
// Jinja spans are masked before parsing and restored afterwards, so
// {{ ref(...) }} reads as a plain identifier to the grammar.
package sqlparse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/sql"
)

var ErrNoCTE = errors.New("no common table expressions found")

// CTE is one WITH entry: its name and the SQL of its body.
type CTE struct {
	Name string
	Body string
}

// Parser wraps a tree-sitter SQL parser. It is not safe for concurrent use.
type Parser struct {
	parser *sitter.Parser
}

func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(sql.GetLanguage())
	return &Parser{parser: p}
}

// FindCTEs returns every CTE in pre-order. Each call allocates a fresh slice.
func FindCTEs(source string) ([]CTE, error) {
	return NewParser().FindCTEs(source)
}

// FinalSelectedColumns returns the output names of the last CTE's select.
func FinalSelectedColumns(source string) ([]string, error) {
	return NewParser().FinalSelectedColumns(source)
}

// Lint normalises SQL: keywords lowercased, tabs expanded to four spaces,
// trailing whitespace trimmed, exactly one trailing newline.
func Lint(source string) string {
	return NewParser().Lint(source)
}

func (p *Parser) FindCTEs(source string) ([]CTE, error) {
	masked := mask(source)
	tree, err := p.parser.ParseCtx(context.Background(), nil, masked.text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SQL: %w", err)
	}
	defer tree.Close()

	nodes := collect(tree.RootNode(), "cte", nil)
	ctes := make([]CTE, 0, len(nodes))
	for _, node := range nodes {
		ctes = append(ctes, CTE{
			Name: masked.restore(cteName(node, masked.text)),
			Body: masked.restore(cteBody(node, masked.text)),
		})
	}
	return ctes, nil
}

func (p *Parser) FinalSelectedColumns(source string) ([]string, error) {
	masked := mask(source)
	tree, err := p.parser.ParseCtx(context.Background(), nil, masked.text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SQL: %w", err)
	}
	defer tree.Close()

	ctes := collect(tree.RootNode(), "cte", nil)
	if len(ctes) == 0 {
		return nil, ErrNoCTE
	}
	selects := collect(ctes[len(ctes)-1], "select_expression", nil)
	if len(selects) == 0 {
		return nil, fmt.Errorf("last CTE has no select list")
	}

	columns := make([]string, 0)
	list := selects[0]
	for i := 0; i < int(list.NamedChildCount()); i++ {
		term := list.NamedChild(i)
		if term.Type() != "term" {
			continue
		}
		columns = append(columns, masked.restore(termName(term, masked.text)))
	}
	return columns, nil
}

func (p *Parser) Lint(source string) string {
	masked := mask(source)
	text := masked.text
	if tree, err := p.parser.ParseCtx(context.Background(), nil, masked.text); err == nil {
		text = lowerKeywords(tree.RootNode(), masked.text)
		tree.Close()
	}
	return normalizeWhitespace(masked.restore(string(text)))
}

// collect gathers nodes of the given type in pre-order.
func collect(node *sitter.Node, nodeType string, out []*sitter.Node) []*sitter.Node {
	if node == nil {
		return out
	}
	if node.Type() == nodeType {
		out = append(out, node)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		out = collect(node.Child(i), nodeType, out)
	}
	return out
}

func cteName(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "identifier" {
			return child.Content(content)
		}
	}
	return ""
}

func cteBody(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "statement" {
			return strings.TrimSpace(child.Content(content))
		}
	}
	return ""
}

// termName prefers an explicit alias, then a column's own name.
func termName(term *sitter.Node, content []byte) string {
	if alias := term.ChildByFieldName("alias"); alias != nil {
		return alias.Content(content)
	}
	value := term.ChildByFieldName("value")
	if value == nil {
		return strings.TrimSpace(term.Content(content))
	}
	switch value.Type() {
	case "field":
		if name := value.ChildByFieldName("name"); name != nil {
			return name.Content(content)
		}
		if ids := collect(value, "identifier", nil); len(ids) > 0 {
			return ids[len(ids)-1].Content(content)
		}
	case "identifier":
		return value.Content(content)
	}
	return strings.TrimSpace(value.Content(content))
}

func lowerKeywords(root *sitter.Node, content []byte) []byte {
	out := append([]byte(nil), content...)
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if strings.HasPrefix(node.Type(), "keyword_") {
			start, end := node.StartByte(), node.EndByte()
			copy(out[start:end], bytes.ToLower(out[start:end]))
			return
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(root)
	return out
}

func normalizeWhitespace(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\t", "    "), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \r")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
}

var jinjaSpan = regexp.MustCompile(`(?s)\{\{.*?\}\}|\{%.*?%\}|\{#.*?#\}`)

type maskedSQL struct {
	text     []byte
	replacer *strings.Replacer
}

// mask swaps expressions for identifiers and statements or comments for
// SQL block comments.
func mask(source string) maskedSQL {
	pairs := make([]string, 0)
	n := 0
	text := jinjaSpan.ReplaceAllStringFunc(source, func(span string) string {
		placeholder := fmt.Sprintf("__jinja_%d__", n)
		if !strings.HasPrefix(span, "{{") {
			placeholder = "/*" + placeholder + "*/"
		}
		n++
		pairs = append(pairs, placeholder, span)
		return placeholder
	})
	return maskedSQL{text: []byte(text), replacer: strings.NewReplacer(pairs...)}
}

func (m maskedSQL) restore(text string) string {
	return m.replacer.Replace(text)
}
