// Package search ranks marketplace offers against a free-text query.
//
// Text is normalized to NFC and case folded, then split into words of
// letters, marks and digits, so Thai combining marks stay inside their word.
// A document's score is the Jaccard similarity |Q ∩ D| / |Q ∪ D| between the
// query's word set and the document's. A query word of three or more
// characters also matches document words it is a prefix of ("tok" finds
// "Tokyo"). Equal scores are ordered by how many query words hit the route,
// then by insertion order.
//
// An Index is immutable once built and safe for concurrent use.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const minPrefixRunes = 3

// Document is one offer's searchable text.
type Document struct {
	ID int
	// Route holds origin and destination.
	Route string
	// Body holds everything else: item types, restrictions, pickup place,
	// description.
	Body string
}

// Result is a ranked document id with its similarity score in (0, 1].
type Result struct {
	ID    int
	Score float64
}

type doc struct {
	id    int
	words map[string]struct{}
	route map[string]struct{}
}

// Index is a built set of documents.
type Index struct {
	docs []doc
}

// New indexes docs, skipping those without any words.
func New(docs []Document) *Index {
	out := make([]doc, 0, len(docs))
	for _, d := range docs {
		route := words(d.Route)
		all := words(d.Body)
		for w := range route {
			all[w] = struct{}{}
		}
		if len(all) == 0 {
			continue
		}
		out = append(out, doc{id: d.ID, words: all, route: route})
	}
	return &Index{docs: out}
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int { return len(ix.docs) }

// TopK returns up to k matching documents, best first. k <= 0 returns all
// matches. Documents sharing no word with the query are left out.
func (ix *Index) TopK(query string, k int) []Result {
	q := words(query)
	if len(q) == 0 {
		return nil
	}

	type hit struct {
		Result
		routeHits int
		pos       int
	}
	var hits []hit
	for pos, d := range ix.docs {
		n := matches(q, d.words)
		if n == 0 {
			continue
		}
		hits = append(hits, hit{
			Result:    Result{ID: d.id, Score: float64(n) / float64(len(q)+len(d.words)-n)},
			routeHits: matches(q, d.route),
			pos:       pos,
		})
	}
	sort.Slice(hits, func(a, b int) bool {
		ha, hb := hits[a], hits[b]
		if ha.Score != hb.Score {
			return ha.Score > hb.Score
		}
		if ha.routeHits != hb.routeHits {
			return ha.routeHits > hb.routeHits
		}
		return ha.pos < hb.pos
	})
	if len(hits) == 0 {
		return nil
	}
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = h.Result
	}
	return out
}

// matches counts query words found in set, exactly or as a prefix, capped
// at len(set) so two query words sharing one document word cannot push a
// score above 1.
func matches(q, set map[string]struct{}) int {
	n := 0
	for w := range q {
		if n == len(set) {
			break
		}
		if _, ok := set[w]; ok {
			n++
			continue
		}
		if utf8.RuneCountInString(w) < minPrefixRunes {
			continue
		}
		for s := range set {
			if strings.HasPrefix(s, w) {
				n++
				break
			}
		}
	}
	return n
}

var wordRE = regexp.MustCompile(`[\p{L}\p{M}\p{N}]+`)

// words returns the distinct normalized words of s.
func words(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range wordRE.FindAllString(cases.Fold().String(norm.NFC.String(s)), -1) {
		out[w] = struct{}{}
	}
	return out
}
