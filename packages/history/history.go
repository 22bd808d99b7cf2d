// Package history keeps a SQLite log of sent requests and their responses.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/restcheck/packages/http"
)

// DefaultLimit is the number of entries List returns for a limit <= 0.
const DefaultLimit = 20

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("history entry not found")

// Entry is one recorded exchange. Status is 0 and Error is set when the
// request never got a response.
type Entry struct {
	ID              string
	Timestamp       time.Time
	Method          string
	URL             string
	RequestHeaders  []http.Header
	RequestBody     string
	Status          int
	StatusText      string
	ResponseHeaders map[string]string
	ResponseBody    string
	Duration        time.Duration
	Error           string
}

// Store is a history database. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS history (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	timestamp TEXT NOT NULL,
	method TEXT NOT NULL,
	url TEXT NOT NULL,
	request_headers TEXT NOT NULL,
	request_body TEXT,
	status INTEGER NOT NULL,
	status_text TEXT NOT NULL,
	response_headers TEXT NOT NULL,
	response_body TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	error TEXT
);

CREATE INDEX IF NOT EXISTS idx_history_url ON history(url);
`

// Open opens the database at path, creating it and its directory if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores a request and the response it got. The entry takes the
// response's request id.
func (s *Store) Record(req *http.Request, resp *http.Response) (*Entry, error) {
	e := newEntry(req)
	if resp.RequestID != "" {
		e.ID = resp.RequestID
	}
	e.Status = resp.StatusCode
	e.StatusText = resp.Status
	e.ResponseHeaders = resp.Headers
	e.ResponseBody = resp.BodyString()
	e.Duration = resp.Duration
	return e, s.insert(e)
}

// RecordFailure stores a request that failed before a response arrived.
func (s *Store) RecordFailure(req *http.Request, sendErr error) (*Entry, error) {
	e := newEntry(req)
	e.Error = sendErr.Error()
	return e, s.insert(e)
}

func newEntry(req *http.Request) *Entry {
	return &Entry{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		Method:         req.Method,
		URL:            req.URL,
		RequestHeaders: req.Headers,
		RequestBody:    string(req.Body),
	}
}

func (s *Store) insert(e *Entry) error {
	reqHeaders, err := json.Marshal(e.RequestHeaders)
	if err != nil {
		return fmt.Errorf("failed to marshal request headers: %w", err)
	}
	respHeaders, err := json.Marshal(e.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("failed to marshal response headers: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO history (
			id, timestamp, method, url, request_headers, request_body,
			status, status_text, response_headers, response_body, duration_ms, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Timestamp.Format(time.RFC3339Nano),
		e.Method,
		e.URL,
		string(reqHeaders),
		e.RequestBody,
		e.Status,
		e.StatusText,
		string(respHeaders),
		e.ResponseBody,
		e.Duration.Milliseconds(),
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, timestamp, method, url, request_headers, request_body,
	       status, status_text, response_headers, response_body, duration_ms, error
	FROM history`

// List returns the most recent entries, newest first.
func (s *Store) List(limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.Query(selectColumns+` ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Get returns the entry with id.
func (s *Store) Get(id string) (*Entry, error) {
	e, err := scanEntry(s.db.QueryRow(selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// Clear deletes every entry and reports how many there were.
func (s *Store) Clear() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM history`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e           Entry
		timestamp   string
		reqHeaders  string
		respHeaders string
		reqBody     sql.NullString
		durationMs  int64
		errText     sql.NullString
	)
	err := row.Scan(&e.ID, &timestamp, &e.Method, &e.URL, &reqHeaders, &reqBody,
		&e.Status, &e.StatusText, &respHeaders, &e.ResponseBody, &durationMs, &errText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}

	if e.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
		return nil, fmt.Errorf("history entry %s: bad timestamp: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(reqHeaders), &e.RequestHeaders); err != nil {
		return nil, fmt.Errorf("history entry %s: bad request headers: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(respHeaders), &e.ResponseHeaders); err != nil {
		return nil, fmt.Errorf("history entry %s: bad response headers: %w", e.ID, err)
	}
	e.RequestBody = reqBody.String
	e.Duration = time.Duration(durationMs) * time.Millisecond
	e.Error = errText.String
	return &e, nil
}
