package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoCTEs = `with a as (select 1 as x), b as (select x as y, z from a) select * from b`

func TestFindCTEs(t *testing.T) {
	ctes, err := FindCTEs(twoCTEs)
	require.NoError(t, err)
	require.Len(t, ctes, 2)
	assert.Equal(t, "a", ctes[0].Name)
	assert.Equal(t, "b", ctes[1].Name)
}

func TestFindCTEsReturnsFreshSlices(t *testing.T) {
	first, err := FindCTEs(twoCTEs)
	require.NoError(t, err)
	second, err := FindCTEs(twoCTEs)
	require.NoError(t, err)
	assert.Len(t, second, 2, "results must not accumulate across calls")

	first[0].Name = "mutated"
	assert.Equal(t, "a", second[0].Name)

	none, err := FindCTEs("select 1")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindCTEsWithJinja(t *testing.T) {
	ctes, err := FindCTEs("with orders as (select * from {{ ref('orders') }}) select * from orders")
	require.NoError(t, err)
	require.Len(t, ctes, 1)
	assert.Equal(t, "orders", ctes[0].Name)
	assert.Contains(t, ctes[0].Body, "{{ ref('orders') }}")
}

func TestFinalSelectedColumns(t *testing.T) {
	columns, err := FinalSelectedColumns(twoCTEs)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z"}, columns)

	_, err = FinalSelectedColumns("select 1")
	assert.ErrorIs(t, err, ErrNoCTE)
}

func TestLint(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "keywords and whitespace", in: "SELECT id\tFROM t   \n", want: "select id    from t\n"},
		{name: "adds trailing newline", in: "select 1", want: "select 1\n"},
		{name: "collapses trailing blank lines", in: "select 1\n\n\n", want: "select 1\n"},
		{name: "keeps jinja verbatim", in: "SELECT * FROM {{ ref('Orders') }}", want: "select * from {{ ref('Orders') }}\n"},
		{name: "keeps string literals", in: "SELECT 'SELECT' AS kind FROM t", want: "select 'SELECT' as kind from t\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Lint(tt.in))
		})
	}
}

func TestLintIsIdempotent(t *testing.T) {
	once := Lint("WITH a AS (\n\tSELECT 1 AS x  \n)\nSELECT * FROM a")
	assert.Equal(t, once, Lint(once))
}
