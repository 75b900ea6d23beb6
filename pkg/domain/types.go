package domain

import (
	"strings"
	"time"
)

type BookStatus string

const (
	StatusToRead  BookStatus = "to-read"
	StatusReading BookStatus = "reading"
	StatusRead    BookStatus = "read"
)

// Statuses lists reading states in shelf order.
var Statuses = []BookStatus{StatusToRead, StatusReading, StatusRead}

// ParseBookStatus accepts the canonical values and the legacy Portuguese
// aliases (a-ler, lendo, lido).
func ParseBookStatus(raw string) (BookStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(StatusToRead), "a-ler":
		return StatusToRead, true
	case string(StatusReading), "lendo":
		return StatusReading, true
	case string(StatusRead), "lido":
		return StatusRead, true
	default:
		return "", false
	}
}

type CoverSource string

const (
	CoverFromAPI    CoverSource = "api"
	CoverFromUpload CoverSource = "upload"
	CoverManual     CoverSource = "manual"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Image        string    `json:"image,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Public strips owner-private fields.
func (u User) Public() PublicUser {
	return PublicUser{Username: u.Username, Name: u.Name, Image: u.Image}
}

// PublicUser is the part of a user safe to show to anyone.
type PublicUser struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Image    string `json:"image,omitempty"`
}

type Book struct {
	ID          int64       `json:"id"`
	OwnerID     int64       `json:"userId"`
	Title       string      `json:"title"`
	Author      string      `json:"author"`
	Genre       string      `json:"genre,omitempty"`
	Pages       int         `json:"pages"`
	CurrentPage int         `json:"currentPage"`
	Status      BookStatus  `json:"status"`
	Summary     string      `json:"summary,omitempty"`
	CoverURL    string      `json:"coverUrl,omitempty"`
	CoverSource CoverSource `json:"coverSource,omitempty"`
	ExternalID  string      `json:"externalId,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func (b Book) SearchTitle() string  { return b.Title }
func (b Book) SearchAuthor() string { return b.Author }

// Progress returns the read percentage (0-100) or 0 when pages is unknown.
func (b Book) Progress() int {
	if b.Pages <= 0 {
		return 0
	}
	p := b.CurrentPage * 100 / b.Pages
	if p > 100 {
		return 100
	}
	return p
}

// PublicBook is the book shape exposed on public profiles.
type PublicBook struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	Genre       string     `json:"genre,omitempty"`
	Pages       int        `json:"pages"`
	CurrentPage int        `json:"currentPage"`
	Status      BookStatus `json:"status"`
	CoverURL    string     `json:"coverUrl,omitempty"`
	Summary     string     `json:"summary,omitempty"`
}

func (b Book) Public() PublicBook {
	return PublicBook{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Genre:       b.Genre,
		Pages:       b.Pages,
		CurrentPage: b.CurrentPage,
		Status:      b.Status,
		CoverURL:    b.CoverURL,
		Summary:     b.Summary,
	}
}

func (b PublicBook) SearchTitle() string  { return b.Title }
func (b PublicBook) SearchAuthor() string { return b.Author }

// FeedEntry is a book joined with its owner's public fields.
type FeedEntry struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	Genre       string     `json:"genre,omitempty"`
	Pages       int        `json:"pages"`
	CurrentPage int        `json:"currentPage"`
	Summary     string     `json:"summary,omitempty"`
	CoverURL    string     `json:"coverUrl,omitempty"`
	Status      BookStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	UpdatedAgo  string     `json:"updatedAgo,omitempty"`
	User        PublicUser `json:"user"`
}

func (e FeedEntry) SearchTitle() string  { return e.Title }
func (e FeedEntry) SearchAuthor() string { return e.Author }

// ShelfStats counts a user's books by status.
type ShelfStats struct {
	ToRead  int `json:"toRead"`
	Reading int `json:"reading"`
	Read    int `json:"read"`
	Total   int `json:"total"`
}

// BookFilter narrows owner listings.
type BookFilter struct {
	Status BookStatus
}
