package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbtai-dev/dbtai/internal/manifest"
)

const searchManifest = `{
  "nodes": {
    "model.shop.order_summary": {
      "unique_id": "model.shop.order_summary",
      "name": "order_summary",
      "resource_type": "model",
      "description": "Daily revenue per store",
      "original_file_path": "models/marts/order_summary.sql",
      "columns": {"revenue": {"name": "revenue", "description": "Gross revenue"}}
    },
    "model.shop.customers": {
      "unique_id": "model.shop.customers",
      "name": "customers",
      "resource_type": "model",
      "description": "One row per customer",
      "original_file_path": "models/customers.sql",
      "columns": {"email": {"name": "email", "description": ""}}
    }
  }
}`

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	doc, err := manifest.Parse([]byte(searchManifest))
	require.NoError(t, err)
	return Build(doc)
}

func TestSearchRanksNodeMatches(t *testing.T) {
	index := buildTestIndex(t)
	require.Equal(t, 2, index.DocumentCount)

	results := Search(index, "revenue", 5)
	require.Len(t, results, 1)
	assert.Equal(t, "order_summary", results[0].Name)
	assert.Equal(t, "models/marts/order_summary.sql", results[0].File)

	results = Search(index, "customer email", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "customers", results[0].Name)
}

func TestSearchTypoFallback(t *testing.T) {
	index := buildTestIndex(t)

	results := Search(index, "custmers", 3)
	require.NotEmpty(t, results)
	assert.Equal(t, "customers", results[0].Name)
}

func TestSimilarNames(t *testing.T) {
	index := buildTestIndex(t)

	assert.Equal(t, []string{"order_summary"}, SimilarNames(index, "order_sumary", 3))
	assert.Empty(t, SimilarNames(index, "inventory", 3))
}

func TestSearchDeterministicOrdering(t *testing.T) {
	index := &Index{
		DocumentCount: 2,
		AvgDocLength:  1,
		DocFreq:       map[string]int{"alpha": 2},
		Documents: []Document{
			{ID: "b", Length: 1, Terms: map[string]int{"alpha": 1}},
			{ID: "a", Length: 1, Terms: map[string]int{"alpha": 1}},
		},
	}

	results := Search(index, "alpha", 2)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
}

func TestSearchEmptyQuery(t *testing.T) {
	assert.Empty(t, Search(buildTestIndex(t), "  ", 3))
	assert.Empty(t, Search(nil, "orders", 3))
}
