// Package domains routes documents to domain-specific vocabularies: synonym
// groups, detection patterns, and pre-built query templates for the document
// families the engine sees most (SEC filings, contracts, clinical records,
// papers).
package domains

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Domain is one document family: its detection patterns, term synonym groups,
// and canned extraction queries. Domains are immutable after construction.
type Domain struct {
	Name        string
	Description string

	// Synonyms maps a concept to the equivalent terms documents use for it,
	// e.g. "revenue" -> ["revenue", "net sales", ...].
	Synonyms map[string][]string

	// Patterns are content signatures scored during detection.
	Patterns []string

	// QueryTemplates are pre-built extraction queries; "{synonyms}" expands
	// to the concept's synonym list.
	QueryTemplates map[string]string

	// FilenameKeywords boost detection when present in the filename.
	FilenameKeywords []string

	compileOnce sync.Once
	compiled    []*regexp.Regexp
}

func (d *Domain) patterns() []*regexp.Regexp {
	d.compileOnce.Do(func() {
		d.compiled = make([]*regexp.Regexp, 0, len(d.Patterns))
		for _, p := range d.Patterns {
			d.compiled = append(d.compiled, regexp.MustCompile("(?i)"+p))
		}
	})
	return d.compiled
}

// Detect scores how strongly text (the first ~2000 chars of a document) and
// its filename indicate this domain; 0 means no signal, 1 is certain.
func (d *Domain) Detect(text, filename string) float64 {
	matches := 0
	for _, re := range d.patterns() {
		if re.MatchString(text) {
			matches++
		}
	}

	var score float64
	if len(d.Patterns) > 0 {
		denom := float64(len(d.Patterns)) * 0.3
		if denom < 1 {
			denom = 1
		}
		score = float64(matches) / denom
		if score > 1 {
			score = 1
		}
	}

	lower := strings.ToLower(filename)
	for _, kw := range d.FilenameKeywords {
		if strings.Contains(lower, kw) {
			score += 0.3
			if score > 1 {
				score = 1
			}
			break
		}
	}
	return round2(score)
}

// SynonymRegex builds a pipe-joined pattern matching every synonym of a
// concept. Unknown concepts match themselves.
func (d *Domain) SynonymRegex(concept string) string {
	terms, ok := d.Synonyms[strings.ToLower(concept)]
	if !ok {
		terms = []string{concept}
	}
	escaped := make([]string, len(terms))
	for i, t := range terms {
		escaped[i] = strings.NewReplacer("(", `\(`, ")", `\)`).Replace(t)
	}
	return strings.Join(escaped, "|")
}

// Query renders the template for a concept with its synonyms substituted, or
// "" when the domain has no template for it.
func (d *Domain) Query(concept string) string {
	tmpl, ok := d.QueryTemplates[strings.ToLower(concept)]
	if !ok {
		return ""
	}
	terms := d.Synonyms[strings.ToLower(concept)]
	return strings.ReplaceAll(tmpl, "{synonyms}", strings.Join(terms, ", "))
}

// Concepts lists the domain's synonym groups in stable order.
func (d *Domain) Concepts() []string {
	out := make([]string, 0, len(d.Synonyms))
	for c := range d.Synonyms {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
