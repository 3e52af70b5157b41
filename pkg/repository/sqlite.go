// Package repository persists the full monitor state, in SQLite or in a JSON file
package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/umputun/feedmon/pkg/domain"
)

//go:embed schema.sql
var schemaFS embed.FS

// errCorrupt marks stored rows that can't be decoded, the only load failure reset to an empty state
var errCorrupt = errors.New("corrupt stored state")

// Config represents database configuration
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLite keeps the state in a SQLite database, one table per collection
type SQLite struct {
	db *sqlx.DB
}

type feedSQL struct {
	ID          string     `db:"id"`
	URL         string     `db:"url"`
	Name        string     `db:"name"`
	LastChecked *time.Time `db:"last_checked"`
	LastUpdate  *time.Time `db:"last_update"`
	AddedAt     time.Time  `db:"added_at"`
}

type topicSQL struct {
	ID              string    `db:"id"`
	Query           string    `db:"query"`
	CaseSensitive   bool      `db:"case_sensitive"`
	NotifyEmail     bool      `db:"notify_email"`
	NotifyExtension bool      `db:"notify_extension"`
	AddedAt         time.Time `db:"added_at"`
}

type matchSQL struct {
	ID            string     `db:"id"`
	FeedID        string     `db:"feed_id"`
	Title         string     `db:"title"`
	Description   string     `db:"description"`
	Link          string     `db:"link"`
	PubDate       string     `db:"pub_date"`
	MatchedTopics string     `db:"matched_topics"`
	Archived      bool       `db:"archived"`
	RemovedAt     *time.Time `db:"removed_at"`
	Position      int        `db:"position"`
}

// NewSQLite opens the database and creates the schema if needed
func NewSQLite(ctx context.Context, cfg Config) (*SQLite, error) {
	if cfg.DSN == "" {
		cfg.DSN = "file:feedmon.db?cache=shared&mode=rwc&_txlock=immediate"
	}

	db, err := sqlx.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000", // 5 second timeout for locks
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("execute schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Load reads the full state. Rows that can't be decoded are reported, replaced with an empty state
// and the empty state is saved right away. Query and driver errors are returned as is, stored rows untouched.
func (s *SQLite) Load(ctx context.Context) (domain.State, error) {
	state, err := s.load(ctx)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, errCorrupt) {
		return domain.NewState(), fmt.Errorf("load state: %w", err)
	}
	lgr.Printf("[WARN] can't read stored state, starting empty: %v", err)
	state = domain.NewState()
	if err := s.Save(ctx, state); err != nil {
		return state, fmt.Errorf("reset state: %w", err)
	}
	return state, nil
}

func (s *SQLite) load(ctx context.Context) (domain.State, error) {
	state := domain.NewState()

	var feeds []feedSQL
	if err := s.db.SelectContext(ctx, &feeds, "SELECT * FROM feeds ORDER BY added_at, id"); err != nil {
		return state, fmt.Errorf("get feeds: %w", err)
	}
	for _, f := range feeds {
		state.Feeds[f.ID] = domain.Feed{ID: f.ID, URL: f.URL, Name: f.Name, LastChecked: f.LastChecked,
			LastUpdate: f.LastUpdate, AddedAt: f.AddedAt}
	}

	var topics []topicSQL
	if err := s.db.SelectContext(ctx, &topics, "SELECT * FROM topics ORDER BY added_at, id"); err != nil {
		return state, fmt.Errorf("get topics: %w", err)
	}
	for _, t := range topics {
		state.Topics[t.ID] = domain.Topic{ID: t.ID, Query: t.Query, CaseSensitive: t.CaseSensitive,
			NotifyEmail: t.NotifyEmail, NotifyExtension: t.NotifyExtension, AddedAt: t.AddedAt}
	}

	var matches []matchSQL
	if err := s.db.SelectContext(ctx, &matches, "SELECT * FROM matches ORDER BY archived, position"); err != nil {
		return state, fmt.Errorf("get matches: %w", err)
	}
	for _, m := range matches {
		item, err := m.toDomain()
		if err != nil {
			return state, fmt.Errorf("%w: %w", errCorrupt, err)
		}
		if item.Archived {
			state.ArchivedMatches = append(state.ArchivedMatches, item)
			continue
		}
		state.RecentMatches = append(state.RecentMatches, item)
	}

	if err := s.db.SelectContext(ctx, &state.Evicted, "SELECT id FROM evicted ORDER BY position"); err != nil {
		return state, fmt.Errorf("get evicted: %w", err)
	}
	return state, nil
}

// Save replaces the stored state in a single transaction, retrying on lock errors
func (s *SQLite) Save(ctx context.Context, state domain.State) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	err := retrier.Do(ctx, func() error {
		if err := s.save(ctx, state); err != nil {
			if isBusy(err) {
				return err // retry
			}
			return &permanentError{err: err}
		}
		return nil
	})
	if pe := (*permanentError)(nil); errors.As(err, &pe) {
		return pe.err
	}
	return err
}

// permanentError stops save retries, only busy database errors are worth another attempt
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// isBusy reports whether err is a transient SQLite lock or busy error
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{"SQLITE_BUSY", "SQLITE_LOCKED", "database is locked", "database table is locked"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (s *SQLite) save(ctx context.Context, state domain.State) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				lgr.Printf("[WARN] rollback failed: %v", rbErr)
			}
		}
	}()

	for _, table := range []string{"feeds", "topics", "matches", "evicted"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, f := range state.Feeds {
		rec := feedSQL{ID: f.ID, URL: f.URL, Name: f.Name, LastChecked: f.LastChecked, LastUpdate: f.LastUpdate, AddedAt: f.AddedAt}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO feeds (id, url, name, last_checked, last_update, added_at)
			VALUES (:id, :url, :name, :last_checked, :last_update, :added_at)`, rec); err != nil {
			return fmt.Errorf("insert feed %s: %w", f.ID, err)
		}
	}

	for _, t := range state.Topics {
		rec := topicSQL{ID: t.ID, Query: t.Query, CaseSensitive: t.CaseSensitive, NotifyEmail: t.NotifyEmail,
			NotifyExtension: t.NotifyExtension, AddedAt: t.AddedAt}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO topics (id, query, case_sensitive, notify_email, notify_extension, added_at)
			VALUES (:id, :query, :case_sensitive, :notify_email, :notify_extension, :added_at)`, rec); err != nil {
			return fmt.Errorf("insert topic %s: %w", t.ID, err)
		}
	}

	insertMatches := func(items []domain.MatchItem, archived bool) error {
		for i, m := range items {
			rec, err := matchFromDomain(m, archived, i)
			if err != nil {
				return err
			}
			if _, err := tx.NamedExecContext(ctx, `INSERT INTO matches
				(id, feed_id, title, description, link, pub_date, matched_topics, archived, removed_at, position)
				VALUES (:id, :feed_id, :title, :description, :link, :pub_date, :matched_topics, :archived, :removed_at, :position)`,
				rec); err != nil {
				return fmt.Errorf("insert match %s: %w", m.ID, err)
			}
		}
		return nil
	}
	if err = insertMatches(state.RecentMatches, false); err != nil {
		return err
	}
	if err = insertMatches(state.ArchivedMatches, true); err != nil {
		return err
	}

	for i, id := range state.Evicted {
		if _, err = tx.ExecContext(ctx, "INSERT OR IGNORE INTO evicted (id, position) VALUES (?, ?)", id, i); err != nil {
			return fmt.Errorf("insert evicted %s: %w", id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func matchFromDomain(m domain.MatchItem, archived bool, pos int) (matchSQL, error) {
	topics := m.MatchedTopics
	if topics == nil {
		topics = []string{}
	}
	encoded, err := json.Marshal(topics)
	if err != nil {
		return matchSQL{}, fmt.Errorf("marshal topics of %s: %w", m.ID, err)
	}
	return matchSQL{ID: m.ID, FeedID: m.FeedID, Title: m.Title, Description: m.Description, Link: m.Link,
		PubDate: m.PubDate, MatchedTopics: string(encoded), Archived: archived, RemovedAt: m.RemovedAt, Position: pos}, nil
}

func (m matchSQL) toDomain() (domain.MatchItem, error) {
	var topics []string
	if err := json.Unmarshal([]byte(m.MatchedTopics), &topics); err != nil {
		return domain.MatchItem{}, fmt.Errorf("unmarshal topics of %s: %w", m.ID, err)
	}
	return domain.MatchItem{ID: m.ID, FeedID: m.FeedID, Title: m.Title, Description: m.Description, Link: m.Link,
		PubDate: m.PubDate, MatchedTopics: topics, Archived: m.Archived, RemovedAt: m.RemovedAt}, nil
}
