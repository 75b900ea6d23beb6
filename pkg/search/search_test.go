package search

import (
	"fmt"
	"sync"
	"testing"
)

type book struct {
	title  string
	author string
}

func (b book) SearchTitle() string  { return b.title }
func (b book) SearchAuthor() string { return b.author }

func titles(items []book) []string {
	out := make([]string, len(items))
	for i, b := range items {
		out[i] = b.title
	}
	return out
}

func assertTitles(t *testing.T, got []book, want ...string) {
	t.Helper()
	g := titles(got)
	if len(g) != len(want) {
		t.Fatalf("titles = %q, want %q", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("titles = %q, want %q", g, want)
		}
	}
}

func TestBooksShortQueryIsIdentity(t *testing.T) {
	items := []book{
		{title: "Zeta", author: "A"},
		{title: "Alpha", author: "B"},
		{title: "Mid", author: "C"},
	}
	for _, q := range []string{"", " ", "ze", "  al  ", "çã"} {
		got := Books(items, q)
		if len(got) != len(items) {
			t.Fatalf("query %q: expected %d items, got %d", q, len(items), len(got))
		}
		if &got[0] != &items[0] {
			t.Fatalf("query %q: expected the input slice back", q)
		}
		assertTitles(t, got, "Zeta", "Alpha", "Mid")
	}
}

func TestBooksCasExample(t *testing.T) {
	items := []book{
		{title: "Dom Casmurro", author: "Machado de Assis"},
		{title: "Casamento Blindado", author: "Renato Cardoso"},
		{title: "O Cortiço", author: "Aluísio Azevedo"},
	}
	assertTitles(t, Books(items, "cas"), "Casamento Blindado", "Dom Casmurro")
}

func TestRankLevels(t *testing.T) {
	tests := []struct {
		name  string
		item  book
		query string
		want  int
	}{
		{"word prefix in title", book{title: "Dom Casmurro", author: "X"}, "cas", RankWordPrefix},
		{"word prefix in author", book{title: "Memórias", author: "Machado de Assis"}, "ass", RankWordPrefix},
		{"accented word prefix", book{title: "Anjos e Demônios", author: "Dan Brown"}, "demo", RankWordPrefix},
		{"text prefix across separator", book{title: "Sci-Fi Stories", author: "X"}, "sci-f", RankTextPrefix},
		{"substring only", book{title: "O Cortiço", author: "Aluísio Azevedo"}, "ortic", RankContains},
		{"substring spanning words", book{title: "Dom Casmurro", author: "X"}, "m cas", RankContains},
		{"no match", book{title: "O Cortiço", author: "Aluísio Azevedo"}, "tolkien", NoMatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Rank(tc.item, tc.query); got != tc.want {
				t.Fatalf("Rank(%q, %q) = %d, want %d", tc.item.title, tc.query, got, tc.want)
			}
		})
	}
}

func TestRankCortic(t *testing.T) {
	// "cortic" is a prefix of the word "cortico", so it ranks as a word match.
	if got := Rank(book{title: "O Cortiço", author: "Aluísio Azevedo"}, "cortic"); got != RankWordPrefix {
		t.Fatalf("rank = %d, want %d", got, RankWordPrefix)
	}
}

func TestBooksOrdersByRankThenTitle(t *testing.T) {
	items := []book{
		{title: "O Cortiço", author: "Aluísio Azevedo"},
		{title: "Ortiga Selvagem", author: "Ana"},
		{title: "Abortivo", author: "Ortiz"},
		{title: "Sem Relação", author: "Ninguém"},
		{title: "Cortinas", author: "Beto"},
	}
	// Rank 0: Ortiga (title word), Abortivo (author word). Rank 2: the rest.
	got := Books(items, "orti")
	assertTitles(t, got, "Abortivo", "Ortiga Selvagem", "Cortinas", "O Cortiço")
}

func TestBooksNumericTitleOrder(t *testing.T) {
	items := []book{
		{title: "Livro 10", author: "Autor"},
		{title: "Livro 2", author: "Autor"},
		{title: "Livro 1", author: "Autor"},
	}
	assertTitles(t, Books(items, "livro"), "Livro 1", "Livro 2", "Livro 10")
}

func TestBooksIncludesEverySubstringMatch(t *testing.T) {
	items := []book{
		{title: "Ficção Científica", author: "Vários"},
		{title: "Não Ficção", author: "Autor"},
		{title: "Romance", author: "Ficcionista"},
		{title: "Poesia", author: "Poeta"},
	}
	got := Books(items, "FICCAO")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %q", titles(got))
	}
	got = Books(items, "ficc")
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %q", titles(got))
	}
}

func TestBooksHandlesDuplicatesAndEmpty(t *testing.T) {
	if got := Books([]book{}, "qualquer"); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
	if got := Books[book](nil, "qualquer"); len(got) != 0 {
		t.Fatalf("expected empty result for nil input, got %d", len(got))
	}
	dup := []book{{title: "Duna", author: "Herbert"}, {title: "Duna", author: "Herbert"}}
	if got := Books(dup, "duna"); len(got) != 2 {
		t.Fatalf("expected both duplicates, got %d", len(got))
	}
}

func TestBooksConcurrentCallers(t *testing.T) {
	items := make([]book, 0, 50)
	for i := 0; i < 50; i++ {
		items = append(items, book{title: fmt.Sprintf("Livro %d", i), author: "Autor"})
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := Books(items, "livro")
			if len(got) != len(items) || got[0].title != "Livro 0" || got[len(got)-1].title != "Livro 49" {
				t.Errorf("unexpected concurrent result: first=%q last=%q", got[0].title, got[len(got)-1].title)
			}
		}()
	}
	wg.Wait()
}
