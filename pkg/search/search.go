// Package search ranks books against a free-text query by title and author.
package search

import (
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"paginasamarelas/pkg/text"
)

// MinQueryLength is the shortest trimmed query that filters a list.
// Shorter queries return the input untouched.
const MinQueryLength = 3

// Rank values, lower is better.
const (
	RankWordPrefix = 0
	RankTextPrefix = 1
	RankContains   = 2
	NoMatch        = -1
)

// Searchable is anything with a title and an author.
type Searchable interface {
	SearchTitle() string
	SearchAuthor() string
}

// Rank scores item against query:
//
//	0  some word of the title or author starts with the query
//	1  the whole title or author starts with the query
//	2  the title or author contains the query
//	-1 no match
func Rank(item Searchable, query string) int {
	title, author := item.SearchTitle(), item.SearchAuthor()
	q := text.Normalize(query)
	if hasWordWithPrefix(title, q) || hasWordWithPrefix(author, q) {
		return RankWordPrefix
	}
	if text.StartsWithText(title, query) || text.StartsWithText(author, query) {
		return RankTextPrefix
	}
	if text.ContainsSubstring(title, query) || text.ContainsSubstring(author, query) {
		return RankContains
	}
	return NoMatch
}

func hasWordWithPrefix(s, normalizedQuery string) bool {
	for _, word := range text.Tokenize(s) {
		if strings.HasPrefix(word, normalizedQuery) {
			return true
		}
	}
	return false
}

type ranked[T Searchable] struct {
	item T
	rank int
}

// Books filters items matching query and orders them by rank, then by title
// using numeric-aware collation ("Livro 2" before "Livro 10").
// Queries shorter than MinQueryLength after trimming return items as is.
func Books[T Searchable](items []T, query string) []T {
	if utf8.RuneCountInString(strings.TrimSpace(query)) < MinQueryLength {
		return items
	}
	matches := make([]ranked[T], 0, len(items))
	for _, item := range items {
		if r := Rank(item, query); r != NoMatch {
			matches = append(matches, ranked[T]{item: item, rank: r})
		}
	}
	// A Collator is not safe for concurrent use.
	col := collate.New(language.Und, collate.Numeric)
	slices.SortStableFunc(matches, func(a, b ranked[T]) int {
		if a.rank != b.rank {
			return a.rank - b.rank
		}
		return col.CompareString(a.item.SearchTitle(), b.item.SearchTitle())
	})
	out := make([]T, len(matches))
	for i, m := range matches {
		out[i] = m.item
	}
	return out
}
