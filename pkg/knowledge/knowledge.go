// Package knowledge provides the document base used to ground assistant
// answers: Q/A documents loaded from a JSON file, persisted in SQLite and
// searchable by full-text relevance.
package knowledge

import (
	"context"
	"time"
)

// Document is one Q/A entry in the knowledge base.
type Document struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Snippet is a search result with its relevance rank.
type Snippet struct {
	Document
	Rank float64 `json:"rank"`
}

// Retriever finds documents relevant to a query.
type Retriever interface {
	// Search returns up to topK snippets ranked by relevance. An empty
	// result is valid; retrieval failures degrade answers but never
	// abort a turn.
	Search(ctx context.Context, query string, topK int) ([]Snippet, error)
}
