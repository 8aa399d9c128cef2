package query

import (
	"strings"
	"unicode"

	"github.com/openstore/openstore/internal/model"
)

const (
	SortRelevance = "relevance"
	SortName      = "name"
	SortScore     = "score"
)

// Query is a normalized catalog filter. Zero values mean "no restriction".
type Query struct {
	Published  *bool
	Maintainer string

	Types      []string
	IDs        []string
	Frameworks []string

	// Architectures holds the alternation set of an architecture filter:
	// the requested value plus "all".
	Architectures []string

	Category string
	Author   string
	Search   string
	NSFW     *bool

	Sort  string
	Limit int
	Skip  int
}

// Build augments base with the filters found in p. Every filter is
// optional and they combine with AND.
func Build(p *Params, base Query) Query {
	q := base

	q.Limit = p.Get("limit").Int()
	q.Skip = p.Get("skip").Int()

	q.Sort = p.Get("sort").String()
	if q.Sort == "" {
		q.Sort = SortRelevance
	}

	if types := requestTypes(p); len(types) > 0 {
		q.Types = ExpandTypes(types)
	}

	if ids := p.Get("apps").Strings(true); len(ids) > 0 {
		q.IDs = ids
	}

	if frameworks := p.Get("frameworks").Strings(true); len(frameworks) > 0 {
		q.Frameworks = frameworks
	}

	if arch := p.Get("architecture").String(); arch != "" {
		q.Architectures = ArchitectureSet(arch)
	}

	if category := p.Get("category").String(); category != "" {
		q.Category = category
	}

	if author := p.Get("author").String(); author != "" {
		q.Author = author
	}

	if search := p.Get("search").String(); search != "" {
		q.Search = search
	}

	if nsfw := p.Get("nsfw").Tri(); nsfw != nil {
		q.NSFW = nsfw
	}

	return q
}

// requestTypes accepts both `types` and the singular `type`, the latter
// taking precedence.
func requestTypes(p *Params) []string {
	if v := p.Get("type"); v.Present() {
		return v.Strings(false)
	}
	return p.Get("types").Strings(false)
}

// ExpandTypes adds the derived types: webapp also matches webapp+, snap
// also matches snappy. Originals are kept and nothing is duplicated.
func ExpandTypes(types []string) []string {
	out := make([]string, 0, len(types)+2)
	seen := make(map[string]bool, len(types)+2)
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}

	for _, t := range types {
		add(t)
	}
	if seen[model.TypeWebapp] {
		add(model.TypeWebappP)
	}
	if seen[model.TypeSnap] {
		add(model.TypeSnappy)
	}
	return out
}

// ArchitectureSet returns the values an architecture filter accepts.
func ArchitectureSet(arch string) []string {
	if arch == model.ArchitectureAll {
		return []string{model.ArchitectureAll}
	}
	return []string{arch, model.ArchitectureAll}
}

// SortKey resolves the relevance pseudo key.
func (q Query) SortKey() string {
	if q.Sort == "" || q.Sort == SortRelevance {
		if q.Search != "" {
			return SortScore
		}
		return SortName
	}
	return q.Sort
}

// Matches evaluates every restriction except full text search, which is
// scored separately by Score.
func (q Query) Matches(pkg *model.Package) bool {
	if q.Published != nil && pkg.Published != *q.Published {
		return false
	}

	if q.Maintainer != "" && pkg.Maintainer != q.Maintainer {
		return false
	}

	if len(q.Types) > 0 && !intersects(q.Types, pkg.Types) {
		return false
	}

	if len(q.IDs) > 0 && !contains(q.IDs, pkg.ID) {
		return false
	}

	if len(q.Frameworks) > 0 && !intersects(q.Frameworks, pkg.Framework) {
		return false
	}

	if len(q.Architectures) > 0 {
		if !contains(q.Architectures, pkg.Architecture) && !intersects(q.Architectures, pkg.Architectures) {
			return false
		}
	}

	if q.Category != "" && pkg.Category != q.Category {
		return false
	}

	if q.Author != "" && pkg.Author != q.Author {
		return false
	}

	if q.NSFW != nil {
		isNSFW := pkg.NSFW != nil && *pkg.NSFW
		if isNSFW != *q.NSFW {
			return false
		}
	}

	return true
}

// Score is the text relevance of pkg for the search terms, 0 when no term
// matches. Any matching term is enough, like a text index.
func (q Query) Score(pkg *model.Package) float64 {
	terms := Tokenize(q.Search)
	if len(terms) == 0 {
		return 0
	}

	var score float64
	for _, f := range pkg.SearchFields() {
		words := Tokenize(f.Text)
		if len(words) == 0 {
			continue
		}

		hits := 0
		for _, w := range words {
			for _, t := range terms {
				if w == t || (len(t) > 2 && strings.HasPrefix(w, t)) {
					hits++
				}
			}
		}
		score += float64(f.Weight*hits) / float64(len(words))
	}
	return score
}

// Tokenize lower cases s and splits it on anything but letters and digits.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, v := range b {
		if contains(a, v) {
			return true
		}
	}
	return false
}
