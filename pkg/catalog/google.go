package catalog

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultGoogleBooksURL = "https://www.googleapis.com/books/v1/volumes"

// GoogleBooks searches the Google Books volumes API.
type GoogleBooks struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// ClientOptions is shared by the HTTP providers.
type ClientOptions struct {
	// BaseURL overrides the provider endpoint.
	BaseURL string
	Timeout time.Duration
	// RequestsPerMinute caps outbound calls; <= 0 means unlimited.
	RequestsPerMinute int
}

func (o ClientOptions) httpClient() *http.Client {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (o ClientOptions) limiter() *rate.Limiter {
	if o.RequestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(o.RequestsPerMinute)), max(1, o.RequestsPerMinute/10))
}

// NewGoogleBooks builds a Google Books provider. apiKey may be empty.
func NewGoogleBooks(apiKey string, opts ClientOptions) *GoogleBooks {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = defaultGoogleBooksURL
	}
	return &GoogleBooks{
		baseURL: base,
		apiKey:  strings.TrimSpace(apiKey),
		client:  opts.httpClient(),
		limiter: opts.limiter(),
	}
}

func (g *GoogleBooks) Name() string { return "google" }

type googleVolumes struct {
	Items []struct {
		ID         string `json:"id"`
		VolumeInfo struct {
			Title         string   `json:"title"`
			Authors       []string `json:"authors"`
			Description   string   `json:"description"`
			PageCount     int      `json:"pageCount"`
			PublishedDate string   `json:"publishedDate"`
			Language      string   `json:"language"`
			ImageLinks    struct {
				Large          string `json:"large"`
				Thumbnail      string `json:"thumbnail"`
				SmallThumbnail string `json:"smallThumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

func (g *GoogleBooks) Search(ctx context.Context, q Query) ([]Result, error) {
	q = q.normalized()
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	term := q.Text
	switch q.Mode {
	case ModeTitle:
		term = "intitle:" + term
	case ModeAuthor:
		term = "inauthor:" + term
	}
	params := url.Values{}
	params.Set("q", term)
	params.Set("maxResults", strconv.Itoa(q.MaxResults))
	params.Set("printType", "books")
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}
	var body googleVolumes
	if err := getJSON(ctx, g.client, g.Name(), g.baseURL+"?"+params.Encode(), &body); err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(body.Items))
	for _, item := range body.Items {
		info := item.VolumeInfo
		if strings.TrimSpace(info.Title) == "" {
			continue
		}
		cover := info.ImageLinks.Large
		if cover == "" {
			cover = info.ImageLinks.Thumbnail
		}
		if cover == "" {
			cover = info.ImageLinks.SmallThumbnail
		}
		out = append(out, Result{
			ExternalID:    "google:" + item.ID,
			Title:         info.Title,
			Authors:       nonNil(info.Authors),
			PageCount:     info.PageCount,
			Description:   info.Description,
			PublishedDate: info.PublishedDate,
			CoverURL:      httpsURL(cover),
			Language:      info.Language,
			Source:        g.Name(),
		})
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
