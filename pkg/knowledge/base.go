package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/byteai/voiceline/internal/store"
)

// Base is a SQLite-backed knowledge base with FTS5 search.
type Base struct {
	db     *store.DB
	logger *slog.Logger
}

// NewBase creates a knowledge base using the given database.
func NewBase(db *store.DB, logger *slog.Logger) *Base {
	return &Base{db: db, logger: logger.With("component", "knowledge")}
}

// kbFile is the on-disk JSON shape.
type kbFile struct {
	Documents []Document `json:"documents"`
}

// LoadFile reads a JSON knowledge base file and upserts its documents.
// Returns the number of documents loaded.
func (b *Base) LoadFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading knowledge base: %w", err)
	}

	var file kbFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parsing knowledge base: %w", err)
	}
	if len(file.Documents) == 0 {
		return 0, fmt.Errorf("no documents in knowledge base %s", path)
	}

	for i, doc := range file.Documents {
		if doc.ID == "" {
			doc.ID = fmt.Sprintf("doc_%d", i)
		}
		if doc.Category == "" {
			doc.Category = "general"
		}
		if err := b.Upsert(ctx, doc); err != nil {
			return 0, fmt.Errorf("storing document %s: %w", doc.ID, err)
		}
	}

	b.logger.Info("knowledge base loaded", "path", path, "documents", len(file.Documents))
	return len(file.Documents), nil
}

// Upsert inserts or updates a document.
func (b *Base) Upsert(ctx context.Context, doc Document) error {
	now := time.Now().Format(time.DateTime)
	_, err := b.db.SQL().ExecContext(ctx,
		`INSERT INTO documents (id, category, question, answer, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   category = excluded.category,
		   question = excluded.question,
		   answer = excluded.answer,
		   updated_at = excluded.updated_at`,
		doc.ID, doc.Category, doc.Question, doc.Answer, now, now,
	)
	return err
}

// ftsTermPattern extracts word tokens; everything else is stripped so a
// raw utterance can never break the FTS5 query syntax.
var ftsTermPattern = regexp.MustCompile(`[a-zA-Z0-9']+`)

// ftsQuery builds a safe OR query from free-form text.
func ftsQuery(text string) string {
	terms := ftsTermPattern.FindAllString(text, -1)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, "")+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// Search returns up to topK documents ranked by FTS5 relevance.
func (b *Base) Search(ctx context.Context, query string, topK int) ([]Snippet, error) {
	if topK <= 0 {
		topK = 3
	}

	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := b.db.SQL().QueryContext(ctx,
		`SELECT d.id, d.category, d.question, d.answer, d.created_at, d.updated_at, rank
		 FROM documents_fts
		 JOIN documents d ON d.rowid = documents_fts.rowid
		 WHERE documents_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		match, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	return scanSnippets(rows)
}

// All returns every document, ordered by category then question.
func (b *Base) All(ctx context.Context) ([]Document, error) {
	rows, err := b.db.SQL().QueryContext(ctx,
		`SELECT id, category, question, answer, created_at, updated_at, 0
		 FROM documents
		 ORDER BY category, question`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	snippets, err := scanSnippets(rows)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(snippets))
	for i, s := range snippets {
		docs[i] = s.Document
	}
	return docs, nil
}

// PromptText formats the whole knowledge base for inlining into a system
// prompt, grouped by category. Inlining the base skips per-turn retrieval
// latency for small bases.
func (b *Base) PromptText(ctx context.Context) (string, error) {
	docs, err := b.All(ctx)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", nil
	}

	byCategory := map[string][]Document{}
	for _, d := range docs {
		byCategory[d.Category] = append(byCategory[d.Category], d)
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var sb strings.Builder
	sb.WriteString("\n\nCompany Knowledge Base (use this to answer customer questions):")
	for _, c := range categories {
		sb.WriteString("\n[" + strings.ToUpper(c) + "]\n")
		for _, d := range byCategory[c] {
			sb.WriteString("Q: " + d.Question + "\n")
			sb.WriteString("A: " + d.Answer + "\n")
		}
	}
	return sb.String(), nil
}

func scanSnippets(rows *sql.Rows) ([]Snippet, error) {
	var out []Snippet
	for rows.Next() {
		var s Snippet
		var createdAt, updatedAt string
		if err := rows.Scan(&s.ID, &s.Category, &s.Question, &s.Answer, &createdAt, &updatedAt, &s.Rank); err != nil {
			return nil, err
		}
		s.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		s.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Verify Base implements Retriever at compile time.
var _ Retriever = (*Base)(nil)
