package catalog

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

const (
	defaultOpenLibraryURL = "https://openlibrary.org/search.json"
	openLibraryCoversURL  = "https://covers.openlibrary.org/b/id/"
)

// OpenLibrary searches the Open Library search API.
type OpenLibrary struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewOpenLibrary builds an Open Library provider.
func NewOpenLibrary(opts ClientOptions) *OpenLibrary {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = defaultOpenLibraryURL
	}
	return &OpenLibrary{
		baseURL: base,
		client:  opts.httpClient(),
		limiter: opts.limiter(),
	}
}

func (o *OpenLibrary) Name() string { return "openlibrary" }

type openLibrarySearch struct {
	Docs []struct {
		Key              string   `json:"key"`
		Title            string   `json:"title"`
		AuthorName       []string `json:"author_name"`
		NumberOfPages    int      `json:"number_of_pages_median"`
		FirstPublishYear int      `json:"first_publish_year"`
		CoverID          int      `json:"cover_i"`
		Language         []string `json:"language"`
		FirstSentence    []string `json:"first_sentence"`
	} `json:"docs"`
}

func (o *OpenLibrary) Search(ctx context.Context, q Query) ([]Result, error) {
	q = q.normalized()
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	params := url.Values{}
	switch q.Mode {
	case ModeTitle:
		params.Set("title", q.Text)
	case ModeAuthor:
		params.Set("author", q.Text)
	default:
		params.Set("q", q.Text)
	}
	params.Set("limit", strconv.Itoa(q.MaxResults))
	var body openLibrarySearch
	if err := getJSON(ctx, o.client, o.Name(), o.baseURL+"?"+params.Encode(), &body); err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(body.Docs))
	for _, doc := range body.Docs {
		if strings.TrimSpace(doc.Title) == "" {
			continue
		}
		r := Result{
			ExternalID: "openlibrary:" + strings.TrimPrefix(doc.Key, "/works/"),
			Title:      doc.Title,
			Authors:    nonNil(doc.AuthorName),
			PageCount:  doc.NumberOfPages,
			Source:     o.Name(),
		}
		if doc.FirstPublishYear > 0 {
			r.PublishedDate = strconv.Itoa(doc.FirstPublishYear)
		}
		if doc.CoverID > 0 {
			r.CoverURL = openLibraryCoversURL + strconv.Itoa(doc.CoverID) + "-M.jpg"
		}
		if len(doc.Language) > 0 {
			r.Language = doc.Language[0]
		}
		if len(doc.FirstSentence) > 0 {
			r.Description = doc.FirstSentence[0]
		}
		out = append(out, r)
	}
	return out, nil
}
