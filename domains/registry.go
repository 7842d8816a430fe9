package domains

import (
	"sort"
	"strings"

	"github.com/jdkato/prose/v2"

	apperrors "rlm-engine/errors"
)

// Registry holds the known domains and answers detection queries against all
// of them. The zero value is unusable; call NewRegistry.
type Registry struct {
	domains map[string]*Domain
	order   []string
}

// NewRegistry returns a registry seeded with the built-in domains.
func NewRegistry() *Registry {
	r := &Registry{domains: map[string]*Domain{}}
	for _, d := range []*Domain{Finance, Legal, Medical, Academic} {
		r.Register(d)
	}
	return r
}

// Register adds or replaces a domain by name.
func (r *Registry) Register(d *Domain) {
	if _, exists := r.domains[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	}
	r.domains[d.Name] = d
}

// Get looks a domain up by name.
func (r *Registry) Get(name string) (*Domain, error) {
	d, ok := r.domains[strings.ToLower(name)]
	if !ok {
		return nil, apperrors.WrapErrorf(apperrors.ErrNotFound, "domain %q", name)
	}
	return d, nil
}

// List returns the registered domains in registration order.
func (r *Registry) List() []*Domain {
	out := make([]*Domain, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.domains[name])
	}
	return out
}

// Score is one domain's detection confidence for a document.
type Score struct {
	Domain     *Domain
	Confidence float64
}

// Detect returns the best-matching domain for a document head and filename,
// or nil when nothing scores above zero.
func (r *Registry) Detect(text, filename string) *Domain {
	scores := r.DetectMulti(text, filename, 0.01)
	if len(scores) == 0 {
		return nil
	}
	return scores[0].Domain
}

// DetectMulti scores every registered domain and returns those at or above
// threshold, highest first. Pattern matching carries the score; a small
// vocabulary boost from tokenized synonym hits breaks ties between domains
// whose signatures overlap.
func (r *Registry) DetectMulti(text, filename string, threshold float64) []Score {
	head := text
	if len(head) > 2000 {
		head = head[:2000]
	}
	tokens := tokenCounts(head)

	var scored []Score
	for _, name := range r.order {
		d := r.domains[name]
		conf := d.Detect(head, filename) + vocabularyBoost(d, tokens)
		if conf > 1 {
			conf = 1
		}
		if conf >= threshold {
			scored = append(scored, Score{Domain: d, Confidence: round2(conf)})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Confidence > scored[j].Confidence
	})
	return scored
}

// ComposeSynonyms merges the synonym groups of several domains, concatenating
// and deduplicating terms when a concept appears in more than one.
func ComposeSynonyms(domains []*Domain) map[string][]string {
	merged := map[string][]string{}
	for _, d := range domains {
		for concept, terms := range d.Synonyms {
			seen := map[string]bool{}
			for _, t := range merged[concept] {
				seen[t] = true
			}
			for _, t := range terms {
				if !seen[t] {
					merged[concept] = append(merged[concept], t)
					seen[t] = true
				}
			}
		}
	}
	return merged
}

// tokenCounts tokenizes text and counts lowercased tokens. Tokenization
// failures degrade to an empty map; detection then rests on patterns alone.
func tokenCounts(text string) map[string]int {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithSegmentation(false))
	if err != nil {
		return map[string]int{}
	}
	counts := map[string]int{}
	for _, tok := range doc.Tokens() {
		counts[strings.ToLower(tok.Text)]++
	}
	return counts
}

// vocabularyBoost counts how many of a domain's single-word synonym terms
// occur as whole tokens in the document head, capped well below a single
// pattern match so vocabulary never outvotes structure.
func vocabularyBoost(d *Domain, tokens map[string]int) float64 {
	if len(tokens) == 0 {
		return 0
	}
	hits := 0
	for _, terms := range d.Synonyms {
		for _, term := range terms {
			if strings.ContainsRune(term, ' ') {
				continue
			}
			if tokens[strings.ToLower(term)] > 0 {
				hits++
			}
		}
	}
	boost := float64(hits) * 0.005
	if boost > 0.1 {
		boost = 0.1
	}
	return boost
}
