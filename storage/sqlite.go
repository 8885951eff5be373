package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

var ErrNotInitialized = errors.New("storage is not initialized")

type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	dataPath string
}

type StorageInterface interface {
	Initialize() error
	SaveContent(content Content) error
	GetAllContent() ([]Content, error)
	GetContentByType(contentType ContentType) ([]Content, error)
	SearchContent(title string) ([]Content, error)
	Close() error
}

var _ StorageInterface = (*SQLiteStorage)(nil)

const contentColumns = `title, content_type, duration_minutes, rating, genres, description, year, source_url`

func NewSQLiteStorage(dataPath string) *SQLiteStorage {
	dbPath := filepath.Join(dataPath, "cine_journey.db")
	return &SQLiteStorage{
		dbPath:   dbPath,
		dataPath: dataPath,
	}
}

func (s *SQLiteStorage) Initialize() error {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(s.dataPath, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// The repository saves from several goroutines; sqlite serializes writers anyway.
	db.SetMaxOpenConns(1)
	s.db = db

	if err := s.RunMigrations(context.Background()); err != nil {
		return err
	}

	log.Info().Str("path", s.dbPath).Msg("SQLite catalog initialized")
	return nil
}

// SaveContent inserts the record or refreshes the existing row with the same title.
// created_at is kept from the first save.
func (s *SQLiteStorage) SaveContent(content Content) error {
	if err := content.Validate(); err != nil {
		return fmt.Errorf("refusing to save content: %w", err)
	}

	genres, err := json.Marshal(content.Genres)
	if err != nil {
		return fmt.Errorf("failed to encode genres: %w", err)
	}

	query := `
	INSERT INTO content (` + contentColumns + `, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(title) DO UPDATE SET
		content_type = excluded.content_type,
		duration_minutes = excluded.duration_minutes,
		rating = COALESCE(excluded.rating, content.rating),
		genres = excluded.genres,
		description = excluded.description,
		year = excluded.year,
		source_url = excluded.source_url,
		updated_at = CURRENT_TIMESTAMP
	`

	_, err = s.db.Exec(query, content.Title, string(content.ContentType), content.DurationMinutes,
		content.Rating, string(genres), content.Description, content.Year, content.SourceURL)
	if err != nil {
		return fmt.Errorf("failed to save content: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) GetAllContent() ([]Content, error) {
	query := `
	SELECT ` + contentColumns + `
	FROM content
	ORDER BY created_at DESC, title ASC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query content: %w", err)
	}
	defer rows.Close()

	return scanContents(rows)
}

func (s *SQLiteStorage) GetContentByType(contentType ContentType) ([]Content, error) {
	query := `
	SELECT ` + contentColumns + `
	FROM content
	WHERE content_type = ?
	ORDER BY created_at DESC, title ASC
	`

	rows, err := s.db.Query(query, string(contentType))
	if err != nil {
		return nil, fmt.Errorf("failed to query content by type: %w", err)
	}
	defer rows.Close()

	return scanContents(rows)
}

func (s *SQLiteStorage) SearchContent(title string) ([]Content, error) {
	query := `
	SELECT ` + contentColumns + `
	FROM content
	WHERE title LIKE ?
	ORDER BY created_at DESC, title ASC
	`

	rows, err := s.db.Query(query, "%"+title+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search content: %w", err)
	}
	defer rows.Close()

	return scanContents(rows)
}

func scanContents(rows *sql.Rows) ([]Content, error) {
	var contents []Content
	for rows.Next() {
		var (
			content     Content
			contentType string
			genres      string
		)
		err := rows.Scan(&content.Title, &contentType, &content.DurationMinutes, &content.Rating,
			&genres, &content.Description, &content.Year, &content.SourceURL)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		content.ContentType = ContentType(contentType)
		if genres != "" {
			if err := json.Unmarshal([]byte(genres), &content.Genres); err != nil {
				return nil, fmt.Errorf("failed to decode genres of %q: %w", content.Title, err)
			}
		}
		content.Genres = UniqueGenres(content.Genres)
		contents = append(contents, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate content: %w", err)
	}

	return contents, nil
}

func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStorage) GetDB() (*sql.DB, error) {
	if s.db == nil {
		db, err := sql.Open("sqlite3", s.dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		s.db = db
	}
	return s.db, nil
}

func (s *SQLiteStorage) GetStats() (map[string]int, error) {
	stats := make(map[string]int)

	var total int
	err := s.db.QueryRow("SELECT COUNT(*) FROM content").Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}
	stats["total"] = total

	for _, t := range []ContentType{ContentTypeMovie, ContentTypeShow} {
		var n int
		err = s.db.QueryRow("SELECT COUNT(*) FROM content WHERE content_type = ?", string(t)).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s count: %w", t, err)
		}
		stats[string(t)+"s"] = n
	}

	return stats, nil
}

func (s *SQLiteStorage) migrations() (*MigrationManager, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return NewMigrationManager(s.db)
}

func (s *SQLiteStorage) GetDatabaseVersion(ctx context.Context) (int64, error) {
	m, err := s.migrations()
	if err != nil {
		return 0, err
	}
	return m.Version(ctx)
}

func (s *SQLiteStorage) MigrationStatus(ctx context.Context) ([]MigrationStatus, error) {
	m, err := s.migrations()
	if err != nil {
		return nil, err
	}
	return m.Status(ctx)
}

func (s *SQLiteStorage) RunMigrations(ctx context.Context) error {
	m, err := s.migrations()
	if err != nil {
		return err
	}
	return m.Up(ctx)
}

func (s *SQLiteStorage) RollbackMigration(ctx context.Context) error {
	m, err := s.migrations()
	if err != nil {
		return err
	}
	return m.Down(ctx)
}

func (s *SQLiteStorage) ResetDatabase(ctx context.Context) error {
	m, err := s.migrations()
	if err != nil {
		return err
	}
	return m.Reset(ctx)
}
