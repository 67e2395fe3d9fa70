package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileMarkdownExampleScenario(t *testing.T) {
	doc := mustParse(t, exampleManifest)

	text, err := CompileMarkdown(doc, "order_summary")
	require.NoError(t, err)
	assert.Equal(t, "orders: (no description)\n(no columns defined)", text)
}

func TestCompileMarkdownNoUpstreamIsEmpty(t *testing.T) {
	doc := mustParse(t, exampleManifest)

	text, err := CompileMarkdown(doc, "orders")
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestCompileMarkdownMultipleParagraphs(t *testing.T) {
	doc := mustParse(t, exampleManifest)

	text, err := CompileMarkdown(doc, "customer_orders")
	require.NoError(t, err)
	want := "raw_customers: Customers from the app database\n" +
		"* id: Primary key\n" +
		"* email: (no description)\n" +
		"* created_at: Signup time\n" +
		"\n" +
		"order_summary: Daily totals\n" +
		"* total: (no description)"
	assert.Equal(t, want, text)
}

func TestCompileMarkdownPropagatesGraphErrors(t *testing.T) {
	doc := mustParse(t, exampleManifest)

	_, err := CompileMarkdown(doc, "broken")
	assert.ErrorIs(t, err, ErrDanglingDependency)
	_, err = CompileMarkdown(doc, "ghost")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestDescribeSelf(t *testing.T) {
	doc := mustParse(t, exampleManifest)

	text, err := DescribeSelf(doc, "order_summary")
	require.NoError(t, err)
	assert.Equal(t, "order_summary: Daily totals\n* total: (no description)", text)
}

func TestCompilerCachesAndMatchesUncached(t *testing.T) {
	doc := mustParse(t, exampleManifest)
	compiler, err := NewCompiler(doc, 0)
	require.NoError(t, err)

	first, err := compiler.CompileMarkdown("customer_orders")
	require.NoError(t, err)
	direct, err := CompileMarkdown(doc, "customer_orders")
	require.NoError(t, err)
	assert.Equal(t, direct, first)

	second, err := compiler.CompileMarkdown("customer_orders")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, compiler.cache.Len())

	self, err := compiler.DescribeSelf("orders")
	require.NoError(t, err)
	assert.Equal(t, "orders: (no description)\n(no columns defined)", self)
	assert.Equal(t, 2, compiler.cache.Len())
}

func TestCompilerDoesNotCacheErrors(t *testing.T) {
	doc := mustParse(t, exampleManifest)
	compiler, err := NewCompiler(doc, 4)
	require.NoError(t, err)

	_, err = compiler.CompileMarkdown("broken")
	require.Error(t, err)
	assert.Equal(t, 0, compiler.cache.Len())
}

func TestCompileMarkdownForSkipsEmpty(t *testing.T) {
	doc := mustParse(t, exampleManifest)
	compiler, err := NewCompiler(doc, 4)
	require.NoError(t, err)

	text, err := compiler.CompileMarkdownFor([]string{"orders", "order_summary"})
	require.NoError(t, err)
	assert.Equal(t, "orders: (no description)\n(no columns defined)", text)
}
