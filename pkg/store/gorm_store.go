package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"paginasamarelas/pkg/domain"
	"paginasamarelas/pkg/feed"
)

const migrateLockID int64 = 51534741

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock,
// so several API instances can start at once.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &BookModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateUser inserts a user and returns it with its assigned id.
func (s *GormStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	model := userToModel(u)
	model.ID = 0
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username_key"}}, DoNothing: true}).
		Create(&model)
	if res.Error != nil {
		return domain.User{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.User{}, ErrUsernameTaken
	}
	return userFromModel(model), nil
}

// UpdateUser writes the mutable profile fields.
func (s *GormStore) UpdateUser(ctx context.Context, u domain.User) error {
	return s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", u.ID).
		Updates(map[string]any{
			"name":       u.Name,
			"image":      u.Image,
			"email":      u.Email,
			"updated_at": u.UpdatedAt,
		}).Error
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id int64) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByUsername looks a user up ignoring case.
func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "username_key = ?", usernameKey(username)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// CreateBook inserts a book and returns it with its assigned id.
func (s *GormStore) CreateBook(ctx context.Context, b domain.Book) (domain.Book, error) {
	model := bookToModel(b)
	model.ID = 0
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&model).Error; err != nil {
		return domain.Book{}, err
	}
	return bookFromModel(model), nil
}

// UpdateBook writes every editable column, including zero values.
func (s *GormStore) UpdateBook(ctx context.Context, b domain.Book) error {
	return s.db.WithContext(ctx).Model(&BookModel{}).
		Where("id = ?", b.ID).
		Updates(map[string]any{
			"title":        b.Title,
			"author":       b.Author,
			"genre":        b.Genre,
			"pages":        b.Pages,
			"current_page": b.CurrentPage,
			"status":       string(b.Status),
			"summary":      b.Summary,
			"cover_url":    b.CoverURL,
			"cover_source": string(b.CoverSource),
			"external_id":  b.ExternalID,
			"updated_at":   b.UpdatedAt,
		}).Error
}

// GetBook retrieves a live book.
func (s *GormStore) GetBook(ctx context.Context, id int64) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// DeleteBook soft-deletes a book.
func (s *GormStore) DeleteBook(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&BookModel{}, "id = ?", id).Error
}

// ListBooksByOwner returns an owner's books, newest first.
func (s *GormStore) ListBooksByOwner(ctx context.Context, ownerID int64, filter domain.BookFilter) ([]domain.Book, error) {
	tx := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	var models []BookModel
	if err := tx.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// HasExternalID reports whether the owner already tracks a live book
// imported from the given catalog id.
func (s *GormStore) HasExternalID(ctx context.Context, ownerID int64, externalID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&BookModel{}).
		Where("owner_id = ? AND external_id = ?", ownerID, externalID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountBooks counts an owner's live books, optionally by status.
func (s *GormStore) CountBooks(ctx context.Context, ownerID int64, status domain.BookStatus) (int, error) {
	tx := s.db.WithContext(ctx).Model(&BookModel{}).Where("owner_id = ?", ownerID)
	if status != "" {
		tx = tx.Where("status = ?", string(status))
	}
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// FeedKey resolves a book id to its feed key, tombstones included.
func (s *GormStore) FeedKey(ctx context.Context, id int64) (feed.Key, bool, error) {
	var model BookModel
	err := s.db.WithContext(ctx).Unscoped().
		Select("id", "updated_at").
		Take(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return feed.Key{}, false, nil
		}
		return feed.Key{}, false, err
	}
	return feed.Key{UpdatedAt: model.UpdatedAt, ID: model.ID}, true, nil
}

// ListFeed returns live books joined with their owners in
// (updated_at desc, id desc) order, strictly after the given key.
func (s *GormStore) ListFeed(ctx context.Context, after *feed.Key, limit int) ([]domain.FeedEntry, error) {
	if limit <= 0 {
		return []domain.FeedEntry{}, nil
	}
	tx := s.db.WithContext(ctx).
		Table("book_models AS b").
		Select(`b.id, b.title, b.author, b.genre, b.pages, b.current_page, b.summary,
			b.cover_url, b.status, b.created_at, b.updated_at,
			u.username AS owner_username, u.name AS owner_name, u.image AS owner_image`).
		Joins("JOIN user_models u ON u.id = b.owner_id").
		Where("b.deleted_at IS NULL")
	if after != nil {
		tx = tx.Where("(b.updated_at < ? OR (b.updated_at = ? AND b.id < ?))",
			after.UpdatedAt, after.UpdatedAt, after.ID)
	}
	var rows []feedRow
	if err := tx.Order("b.updated_at DESC").Order("b.id DESC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]domain.FeedEntry, 0, len(rows))
	for _, r := range rows {
		items = append(items, feedEntryFromRow(r))
	}
	return items, nil
}

// Purge hard-deletes all books and users.
func (s *GormStore) Purge(ctx context.Context) (int64, int64, error) {
	var books, users int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&BookModel{})
		if res.Error != nil {
			return res.Error
		}
		books = res.RowsAffected
		res = tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&UserModel{})
		if res.Error != nil {
			return res.Error
		}
		users = res.RowsAffected
		return nil
	})
	return books, users, err
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		UsernameKey:  usernameKey(u.Username),
		Username:     u.Username,
		Name:         u.Name,
		Email:        u.Email,
		Image:        u.Image,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Name:         m.Name,
		Email:        m.Email,
		Image:        m.Image,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:          b.ID,
		OwnerID:     b.OwnerID,
		Title:       b.Title,
		Author:      b.Author,
		Genre:       b.Genre,
		Pages:       b.Pages,
		CurrentPage: b.CurrentPage,
		Status:      string(b.Status),
		Summary:     b.Summary,
		CoverURL:    b.CoverURL,
		CoverSource: string(b.CoverSource),
		ExternalID:  b.ExternalID,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Title:       m.Title,
		Author:      m.Author,
		Genre:       m.Genre,
		Pages:       m.Pages,
		CurrentPage: m.CurrentPage,
		Status:      domain.BookStatus(m.Status),
		Summary:     m.Summary,
		CoverURL:    m.CoverURL,
		CoverSource: domain.CoverSource(m.CoverSource),
		ExternalID:  m.ExternalID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func feedEntryFromRow(r feedRow) domain.FeedEntry {
	return domain.FeedEntry{
		ID:          r.ID,
		Title:       r.Title,
		Author:      r.Author,
		Genre:       r.Genre,
		Pages:       r.Pages,
		CurrentPage: r.CurrentPage,
		Summary:     r.Summary,
		CoverURL:    r.CoverURL,
		Status:      domain.BookStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		User: domain.PublicUser{
			Username: r.OwnerUsername,
			Name:     r.OwnerName,
			Image:    r.OwnerImage,
		},
	}
}
