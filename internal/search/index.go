// Package search ranks manifest nodes against free-text queries with BM25,
// falling back to edit distance on names when no term matches.
package search

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/dbtai-dev/dbtai/internal/manifest"
)

const DefaultLimit = 10

var tokenPattern = regexp.MustCompile(`[a-z0-9_]+`)

type Document struct {
	ID     string
	Name   string
	Kind   string
	File   string
	Doc    string
	Length int
	Terms  map[string]int
}

type Index struct {
	DocumentCount int
	AvgDocLength  float64
	DocFreq       map[string]int
	Documents     []Document
}

type Result struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Kind  string  `json:"kind,omitempty"`
	File  string  `json:"file,omitempty"`
	Doc   string  `json:"description,omitempty"`
	Score float64 `json:"score"`
}

// Build indexes every node of doc. Names weigh most, then column names and
// file paths, then descriptions.
func Build(doc *manifest.Document) *Index {
	if doc == nil {
		return &Index{DocFreq: map[string]int{}}
	}

	nodes := doc.Nodes()
	documents := make([]Document, 0, len(nodes))
	docFreq := make(map[string]int)
	totalLength := 0

	for _, node := range nodes {
		file, _ := node.FilePath()
		terms := buildTerms(node, file)
		length := 0
		for _, count := range terms {
			length += count
		}
		if length == 0 {
			continue
		}

		id := node.UniqueID
		if id == "" {
			id = node.Name
		}
		documents = append(documents, Document{
			ID:     id,
			Name:   node.Name,
			Kind:   node.ResourceType,
			File:   file,
			Doc:    node.Description,
			Length: length,
			Terms:  terms,
		})
		totalLength += length

		for term := range terms {
			docFreq[term]++
		}
	}

	sort.Slice(documents, func(i, j int) bool {
		return documents[i].ID < documents[j].ID
	})

	avgDocLength := 0.0
	if len(documents) > 0 {
		avgDocLength = float64(totalLength) / float64(len(documents))
	}

	return &Index{
		DocumentCount: len(documents),
		AvgDocLength:  avgDocLength,
		DocFreq:       docFreq,
		Documents:     documents,
	}
}

func Search(index *Index, query string, limit int) []Result {
	if index == nil || len(index.Documents) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	seenTerms := make(map[string]bool, len(queryTerms))
	uniqueTerms := make([]string, 0, len(queryTerms))
	for _, term := range queryTerms {
		if seenTerms[term] {
			continue
		}
		seenTerms[term] = true
		uniqueTerms = append(uniqueTerms, term)
	}

	k1 := 1.2
	b := 0.75
	n := float64(index.DocumentCount)
	avgLen := index.AvgDocLength
	if avgLen <= 0 {
		avgLen = 1
	}

	results := make([]Result, 0)
	for _, doc := range index.Documents {
		score := 0.0
		docLen := float64(doc.Length)
		for _, term := range uniqueTerms {
			tf := float64(doc.Terms[term])
			if tf <= 0 {
				continue
			}
			df := float64(index.DocFreq[term])
			if df <= 0 {
				continue
			}
			idf := math.Log(1.0 + ((n - df + 0.5) / (df + 0.5)))
			numerator := tf * (k1 + 1.0)
			denominator := tf + k1*(1.0-b+b*(docLen/avgLen))
			score += idf * (numerator / denominator)
		}
		if score > 0 {
			results = append(results, resultFor(doc, score))
		}
	}

	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	if len(results) == 0 {
		return Similar(index, query, limit)
	}
	return results
}

// Similar returns nodes whose name is within a small edit distance of name.
func Similar(index *Index, name string, limit int) []Result {
	if index == nil {
		return nil
	}
	needle := normalizeForFuzzy(name)
	if needle == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	results := make([]Result, 0)
	for _, doc := range index.Documents {
		candidate := normalizeForFuzzy(doc.Name)
		if candidate == "" {
			continue
		}
		distance := levenshteinDistance(needle, candidate)
		threshold := len(candidate) / 3
		if threshold < 2 {
			threshold = 2
		}
		if distance > threshold {
			continue
		}
		results = append(results, resultFor(doc, 1.0/float64(1+distance)))
	}

	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// SimilarNames is Similar reduced to distinct node names.
func SimilarNames(index *Index, name string, limit int) []string {
	results := Similar(index, name, limit)
	names := make([]string, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		names = append(names, r.Name)
	}
	return names
}

func resultFor(doc Document, score float64) Result {
	return Result{ID: doc.ID, Name: doc.Name, Kind: doc.Kind, File: doc.File, Doc: doc.Doc, Score: score}
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

func buildTerms(node *manifest.Node, file string) map[string]int {
	terms := make(map[string]int)
	addWeighted(terms, node.Name, 4)
	addWeighted(terms, file, 2)
	addWeighted(terms, node.Description, 1)
	if node.Columns != nil {
		for pair := node.Columns.Oldest(); pair != nil; pair = pair.Next() {
			addWeighted(terms, pair.Key, 2)
			addWeighted(terms, pair.Value.Description, 1)
		}
	}
	return terms
}

func addWeighted(terms map[string]int, value string, weight int) {
	if weight <= 0 {
		return
	}
	for _, token := range tokenize(value) {
		terms[token] += weight
	}
}

func tokenize(value string) []string {
	value = strings.ToLower(value)
	if value == "" {
		return nil
	}
	return tokenPattern.FindAllString(value, -1)
}

func normalizeForFuzzy(value string) string {
	tokens := tokenize(value)
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(tokens, "")
}

func levenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		current := make([]int, len(b)+1)
		current[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			current[j] = min(current[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev = current
	}

	return prev[len(b)]
}
