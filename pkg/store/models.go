package store

import (
	"time"

	"gorm.io/gorm"
)

// GORM models used for persistence.
type UserModel struct {
	ID int64 `gorm:"primaryKey"`
	// UsernameKey is the lower-cased username and carries the unique index.
	UsernameKey  string    `gorm:"uniqueIndex;not null"`
	Username     string    `gorm:"not null"`
	Name         string    `gorm:"not null"`
	Email        string
	Image        string
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// BookModel rows are soft-deleted so a feed cursor pointing at a removed
// book still resolves to its sort key.
type BookModel struct {
	ID          int64          `gorm:"primaryKey;index:idx_book_feed,priority:2"`
	OwnerID     int64          `gorm:"not null;index;index:idx_book_owner_external,priority:1"`
	Owner       UserModel      `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Title       string         `gorm:"not null"`
	Author      string         `gorm:"not null"`
	Genre       string
	Pages       int            `gorm:"not null;default:0"`
	CurrentPage int            `gorm:"not null;default:0"`
	Status      string         `gorm:"not null;index"`
	Summary     string         `gorm:"type:text"`
	CoverURL    string
	CoverSource string
	ExternalID  string         `gorm:"index:idx_book_owner_external,priority:2"`
	CreatedAt   time.Time      `gorm:"not null;index"`
	UpdatedAt   time.Time      `gorm:"not null;index:idx_book_feed,priority:1"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

// feedRow is the projection scanned by the feed query.
type feedRow struct {
	ID            int64
	Title         string
	Author        string
	Genre         string
	Pages         int
	CurrentPage   int
	Summary       string
	CoverURL      string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	OwnerUsername string
	OwnerName     string
	OwnerImage    string
}
