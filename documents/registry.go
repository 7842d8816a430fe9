package documents

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "rlm-engine/errors"
)

// Meta describes one loaded document.
type Meta struct {
	ID            string `json:"id"`
	Source        string `json:"source"`
	CharCount     int    `json:"char_count"`
	TokenEstimate int    `json:"token_estimate"`
	Preview       string `json:"preview"`
}

// Registry tracks the documents loaded for a run. It is safe for concurrent
// use; document text is immutable once registered.
type Registry struct {
	mu       sync.RWMutex
	texts    map[string]string
	meta     map[string]Meta
	activeID string
}

func NewRegistry() *Registry {
	return &Registry{
		texts: map[string]string{},
		meta:  map[string]Meta{},
	}
}

// Load registers a document's extracted text under id, replacing any previous
// document with that id, and marks it active.
func (r *Registry) Load(id, source, text string) Meta {
	meta := Meta{
		ID:            id,
		Source:        source,
		CharCount:     len(text),
		TokenEstimate: len(text) / 4,
		Preview:       preview(text, 500),
	}

	r.mu.Lock()
	r.texts[id] = text
	r.meta[id] = meta
	r.activeID = id
	r.mu.Unlock()
	return meta
}

// LoadText registers raw text with no file backing.
func (r *Registry) LoadText(id, text string) Meta {
	return r.Load(id, "text", text)
}

// Get returns the full text of a document.
func (r *Registry) Get(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	text, ok := r.texts[id]
	if !ok {
		return "", apperrors.WrapErrorf(apperrors.ErrNotFound, "document %q (available: %s)", id, strings.Join(r.idsLocked(), ", "))
	}
	return text, nil
}

// Meta returns the metadata of a document.
func (r *Registry) Meta(id string) (Meta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.meta[id]
	if !ok {
		return Meta{}, apperrors.WrapErrorf(apperrors.ErrNotFound, "document %q", id)
	}
	return m, nil
}

// Active returns the most recently loaded document's text, or "" when the
// registry is empty.
func (r *Registry) Active() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.texts[r.activeID]
}

// CombinedContext merges several documents into one context string with a
// separator naming each document, for cross-document queries.
func (r *Registry) CombinedContext(ids []string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for i, id := range ids {
		text, ok := r.texts[id]
		if !ok {
			return "", apperrors.WrapErrorf(apperrors.ErrNotFound, "document %q", id)
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "=== DOCUMENT: %s ===\n\n%s", id, text)
	}
	return b.String(), nil
}

// Remove deletes a document. Removing the active document leaves no active
// document until the next Load.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.texts, id)
	delete(r.meta, id)
	if r.activeID == id {
		r.activeID = ""
	}
	r.mu.Unlock()
}

// List returns metadata for every loaded document, sorted by id.
func (r *Registry) List() []Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Meta, 0, len(r.meta))
	for _, m := range r.meta {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) idsLocked() []string {
	ids := make([]string, 0, len(r.texts))
	for id := range r.texts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
