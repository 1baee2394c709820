package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document is one indexed reference text with its embedding vector.
type Document struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata"`
	Embedding []float64         `json:"embedding"`
}

// SearchResult is a retrieved document with its similarity score.
type SearchResult struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"-"`
}

// Retriever answers top-K similarity queries against an index loaded
// from disk at startup. The query vector comes from the Embedder; when
// embedding fails the retriever degrades to keyword-overlap scoring so
// search stays available offline.
type Retriever struct {
	docs     []Document
	embedder Embedder
	topK     int
	// Model is the embedding model recorded alongside the index.
	Model string
}

// LoadRetriever reads index.jsonl (one document per line) and
// embedding_model.txt from dir.
func LoadRetriever(dir string, embedder Embedder, topK int) (*Retriever, error) {
	docs, err := loadIndexFile(filepath.Join(dir, "index.jsonl"))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("index at %s contains no documents", dir)
	}

	model := "unknown"
	if b, err := os.ReadFile(filepath.Join(dir, "embedding_model.txt")); err == nil {
		if m := strings.TrimSpace(string(b)); m != "" {
			model = m
		}
	}

	dim := 0
	if len(docs[0].Embedding) > 0 {
		dim = len(docs[0].Embedding)
	}
	log.Printf("[rag] loaded index: %d vectors, dimension %d, model %s", len(docs), dim, model)

	if topK <= 0 {
		topK = 6
	}
	return &Retriever{docs: docs, embedder: embedder, topK: topK, Model: model}, nil
}

func loadIndexFile(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	var docs []Document
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 256*1024)
	scanner.Buffer(buf, 8*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var d Document
		if err := json.Unmarshal([]byte(line), &d); err != nil {
			log.Printf("[rag] skipping malformed index line %d: %v", lineNo, err)
			continue
		}
		docs = append(docs, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return docs, nil
}

// Len returns the number of indexed documents.
func (r *Retriever) Len() int { return len(r.docs) }

// Dimension returns the embedding dimension of the index, 0 if unknown.
func (r *Retriever) Dimension() int {
	for _, d := range r.docs {
		if len(d.Embedding) > 0 {
			return len(d.Embedding)
		}
	}
	return 0
}

// Retrieve returns the top-K most similar documents for query, ranked
// by cosine similarity, descending. Ties keep index order.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]SearchResult, error) {
	var vec []float64
	if r.embedder != nil {
		v, err := r.embedder.Embed(ctx, query)
		if err != nil {
			log.Printf("[rag] embedding failed, falling back to keyword scoring: %v", err)
		} else {
			vec = v
		}
	}

	scored := make([]SearchResult, 0, len(r.docs))
	for _, d := range r.docs {
		var score float64
		if vec != nil && len(d.Embedding) == len(vec) {
			score = cosineSimilarity(vec, d.Embedding)
		} else {
			score = keywordOverlap(query, d.Content)
		}
		scored = append(scored, SearchResult{Content: d.Content, Metadata: d.Metadata, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > r.topK {
		scored = scored[:r.topK]
	}
	return scored, nil
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// keywordOverlap scores by the fraction of query terms present in the
// document. Crude, but keeps /api/search usable without an API key.
func keywordOverlap(query, content string) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}
	lc := strings.ToLower(content)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lc, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
