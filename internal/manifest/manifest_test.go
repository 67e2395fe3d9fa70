package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleManifest = `{
  "nodes": {
    "model.shop.orders": {
      "name": "orders",
      "resource_type": "model",
      "raw_code": "select * from {{ source('shop', 'raw_orders') }}",
      "original_file_path": "models/orders.sql",
      "depends_on": {"nodes": []},
      "columns": {}
    },
    "model.shop.order_summary": {
      "name": "order_summary",
      "resource_type": "model",
      "description": "Daily totals",
      "raw_code": "select sum(amount) as total from {{ ref('orders') }}",
      "original_file_path": "models/marts/order_summary.sql",
      "depends_on": {"nodes": ["model.shop.orders"]},
      "columns": {"total": {"name": "total", "description": null}}
    },
    "model.shop.customer_orders": {
      "name": "customer_orders",
      "raw_code": "select 1",
      "original_file_path": "models/customer_orders.sql",
      "depends_on": {"nodes": ["source.shop.raw_customers", "model.shop.order_summary"]},
      "columns": {}
    },
    "model.shop.broken": {
      "name": "broken",
      "raw_code": "select 1",
      "original_file_path": "models/broken.sql",
      "depends_on": {"nodes": ["model.shop.orders", "model.shop.missing"]}
    }
  },
  "sources": {
    "source.shop.raw_customers": {
      "name": "raw_customers",
      "resource_type": "source",
      "description": "Customers from the app database",
      "original_file_path": "models/sources.yml",
      "columns": {
        "id": {"name": "id", "description": "Primary key"},
        "email": {"name": "email", "description": ""},
        "created_at": {"name": "created_at", "description": "Signup time"}
      }
    }
  }
}`

func mustParse(t *testing.T, data string) *Document {
	t.Helper()
	doc, err := Parse([]byte(data))
	require.NoError(t, err)
	return doc
}

func TestParseMergesSourcesBeforeNodes(t *testing.T) {
	doc := mustParse(t, exampleManifest)

	require.Equal(t, 5, doc.Len())
	names := make([]string, 0, doc.Len())
	for _, node := range doc.Nodes() {
		names = append(names, node.Name)
	}
	assert.Equal(t, []string{"raw_customers", "orders", "order_summary", "customer_orders", "broken"}, names)
	assert.Equal(t, names, doc.Names())

	node, ok := doc.Node("model.shop.orders")
	require.True(t, ok)
	assert.Equal(t, "model.shop.orders", node.UniqueID)
}

func TestParseCollisionPrefersDerivedNode(t *testing.T) {
	doc := mustParse(t, `{
  "sources": {"x.dup": {"name": "from_source"}, "x.other": {"name": "other"}},
  "nodes": {"x.dup": {"name": "from_nodes"}}
}`)

	require.Equal(t, 2, doc.Len())
	node, ok := doc.Node("x.dup")
	require.True(t, ok)
	assert.Equal(t, "from_nodes", node.Name)
	assert.Equal(t, "from_nodes", doc.Nodes()[0].Name, "collision keeps the first insertion position")
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{"nodes": [`))
	require.Error(t, err)
}

func TestFindByName(t *testing.T) {
	doc := mustParse(t, exampleManifest)

	for _, name := range []string{"orders", "order_summary", "raw_customers"} {
		node, err := doc.FindByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, node.Name)
	}

	_, err := doc.FindByName("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	var notFound *NodeNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "nope", notFound.Name)
}

func TestFindByNameDuplicateNamesIsDeterministic(t *testing.T) {
	doc := mustParse(t, `{
  "nodes": {
    "model.a.dup": {"name": "dup", "description": "first"},
    "model.b.dup": {"name": "dup", "description": "second"}
  }
}`)

	first, err := doc.FindByName("dup")
	require.NoError(t, err)
	second, err := doc.FindByName("dup")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "first", first.Description)
}

func TestUpstreamOfPreservesOrder(t *testing.T) {
	doc := mustParse(t, exampleManifest)

	node, err := doc.FindByName("customer_orders")
	require.NoError(t, err)
	upstream, err := doc.UpstreamOf("customer_orders")
	require.NoError(t, err)
	require.Len(t, upstream, len(node.DependsOn.Nodes))
	assert.Equal(t, "raw_customers", upstream[0].Name)
	assert.Equal(t, "order_summary", upstream[1].Name)

	upstream, err = doc.UpstreamOf("orders")
	require.NoError(t, err)
	assert.Empty(t, upstream)
}

func TestUpstreamOfDanglingDependency(t *testing.T) {
	doc := mustParse(t, exampleManifest)

	upstream, err := doc.UpstreamOf("broken")
	require.Error(t, err)
	assert.Nil(t, upstream)
	assert.ErrorIs(t, err, ErrDanglingDependency)
	var dangling *DanglingDependencyError
	require.True(t, errors.As(err, &dangling))
	assert.Equal(t, "model.shop.missing", dangling.Dependency)
}

func TestNodeFieldsFailLazily(t *testing.T) {
	doc := mustParse(t, `{"nodes": {"model.a.bare": {"name": "bare"}, "model.a.legacy": {"name": "legacy", "raw_sql": "select 2"}}}`)

	bare, err := doc.FindByName("bare")
	require.NoError(t, err)
	_, err = bare.SourceText()
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = doc.SourcePath("bare")
	assert.ErrorIs(t, err, ErrMissingField)

	legacy, err := doc.FindByName("legacy")
	require.NoError(t, err)
	text, err := legacy.SourceText()
	require.NoError(t, err)
	assert.Equal(t, "select 2", text)
}

func TestColumnNamesKeepManifestOrder(t *testing.T) {
	doc := mustParse(t, exampleManifest)
	node, err := doc.FindByName("raw_customers")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email", "created_at"}, node.ColumnNames())
}

func TestLoadRequiresProjectFile(t *testing.T) {
	root := t.TempDir()
	_, err := Load(root, "")
	assert.ErrorIs(t, err, ErrNotAProjectDirectory)
}

func TestLoadRequiresManifest(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectFile), []byte("name: shop\n"), 0644))

	_, err := Load(root, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrManifestNotFound)
	assert.Contains(t, err.Error(), "dbt compile")
}

func TestLoadReadsDefaultPath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectFile), []byte("name: shop\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "target"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, DefaultPath), []byte(exampleManifest), 0644))

	doc, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, 5, doc.Len())
}
