package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/livesub/internal/session"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore keeps tab sessions and subtitle selections in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ session.Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		// embed.FS paths are always slash separated
		content, err := migrationFiles.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) LoadTab(ctx context.Context, tabID int) (session.Meta, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT tab_id, video_id, target_language, language_version, subtitle_url, updated_at
		 FROM tab_sessions
		 WHERE tab_id = ?`,
		tabID,
	)

	var meta session.Meta
	if err := row.Scan(
		&meta.TabID,
		&meta.VideoID,
		&meta.TargetLanguage,
		&meta.LanguageVersion,
		&meta.SubtitleURL,
		&meta.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Meta{}, false, nil
		}
		return session.Meta{}, false, err
	}
	return meta, true, nil
}

func (s *SQLiteStore) SaveTab(ctx context.Context, meta session.Meta) error {
	updatedAt := meta.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tab_sessions (
			tab_id, video_id, target_language, language_version, subtitle_url, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tab_id) DO UPDATE SET
			video_id=excluded.video_id,
			target_language=excluded.target_language,
			language_version=excluded.language_version,
			subtitle_url=excluded.subtitle_url,
			updated_at=excluded.updated_at`,
		meta.TabID,
		meta.VideoID,
		meta.TargetLanguage,
		meta.LanguageVersion,
		meta.SubtitleURL,
		updatedAt,
	)
	return err
}

func (s *SQLiteStore) DeleteTab(ctx context.Context, tabID int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tab_sessions WHERE tab_id = ?`, tabID)
	return err
}

// ListTabs returns every stored tab session, most recently updated first.
func (s *SQLiteStore) ListTabs(ctx context.Context) ([]session.Meta, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT tab_id, video_id, target_language, language_version, subtitle_url, updated_at
		 FROM tab_sessions
		 ORDER BY updated_at DESC, tab_id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]session.Meta, 0)
	for rows.Next() {
		var meta session.Meta
		if err := rows.Scan(
			&meta.TabID,
			&meta.VideoID,
			&meta.TargetLanguage,
			&meta.LanguageVersion,
			&meta.SubtitleURL,
			&meta.UpdatedAt,
		); err != nil {
			return nil, err
		}
		ret = append(ret, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// DeleteTabsUpdatedBefore removes tab sessions not touched since before,
// leaving the tabs in keep alone.
func (s *SQLiteStore) DeleteTabsUpdatedBefore(ctx context.Context, before time.Time, keep ...int) (int64, error) {
	query := `DELETE FROM tab_sessions WHERE updated_at < ?`
	args := []any{before.UTC()}
	if len(keep) > 0 {
		query += ` AND tab_id NOT IN (?` + strings.Repeat(`, ?`, len(keep)-1) + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) PutSubtitleSelection(ctx context.Context, sel SubtitleSelection) error {
	if sel.VideoID == "" {
		return fmt.Errorf("video id is required")
	}
	updatedAt := sel.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO subtitle_selections (video_id, subtitle_url, label, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(video_id) DO UPDATE SET
			subtitle_url=excluded.subtitle_url,
			label=excluded.label,
			updated_at=excluded.updated_at`,
		sel.VideoID,
		sel.URL,
		sel.Label,
		updatedAt,
	)
	return err
}

func (s *SQLiteStore) GetSubtitleSelection(ctx context.Context, videoID string) (SubtitleSelection, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT video_id, subtitle_url, label, updated_at
		 FROM subtitle_selections
		 WHERE video_id = ?`,
		videoID,
	)

	var sel SubtitleSelection
	if err := row.Scan(&sel.VideoID, &sel.URL, &sel.Label, &sel.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SubtitleSelection{}, false, nil
		}
		return SubtitleSelection{}, false, err
	}
	return sel, true, nil
}
