package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/kurspanel/kurspanel-server/internal/catalog"
	"github.com/kurspanel/kurspanel-server/internal/core"
)

// defaultBacklog caps how many retained messages a fresh subscription gets
// replayed before live deliveries.
const defaultBacklog = 100

const schema = `
CREATE TABLE IF NOT EXISTS schools (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	password_hash TEXT NOT NULL DEFAULT '',
	candidates    TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	school_id   TEXT NOT NULL,
	school_name TEXT NOT NULL,
	content     TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
`

// Store is the authoritative record store: SQLite persistence plus in-process
// fan-out of changes to push subscribers. It implements core.RecordStore and
// carries the credential lookup the identity collaborator needs.
type Store struct {
	db      *sql.DB
	log     *zerolog.Logger
	backlog int

	schoolFeed  *broadcast[[]core.School]
	messageFeed *broadcast[core.Message]
}

// New opens (and if needed creates) the database at dbPath.
func New(dbPath string, logger *zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{
		db:          db,
		log:         logger,
		backlog:     defaultBacklog,
		schoolFeed:  newBroadcast[[]core.School](),
		messageFeed: newBroadcast[core.Message](),
	}, nil
}

// SetBacklog overrides how many retained messages new subscriptions replay.
// Values below one keep the default.
func (s *Store) SetBacklog(n int) {
	if n > 0 {
		s.backlog = n
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==== core.RecordStore implementation ====

// FetchSchools reads the full current school set.
func (s *Store) FetchSchools(ctx context.Context) ([]core.School, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, candidates FROM schools ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query schools: %w", err)
	}
	defer rows.Close()

	var schools []core.School
	for rows.Next() {
		var (
			school core.School
			raw    string
		)
		if err := rows.Scan(&school.ID, &school.Name, &raw); err != nil {
			return nil, fmt.Errorf("scan school: %w", err)
		}
		counts, err := decodeCounts(raw)
		if err != nil {
			return nil, fmt.Errorf("school %s: %w", school.ID, err)
		}
		school.Candidates = counts
		schools = append(schools, school)
	}
	return schools, rows.Err()
}

// SubscribeSchools delivers the current snapshot immediately, then the full
// fresh snapshot after every candidate write.
func (s *Store) SubscribeSchools(cb func([]core.School, error)) (func(), error) {
	unsub := s.schoolFeed.subscribe(func(snapshot []core.School) {
		cb(snapshot, nil)
	})

	snapshot, err := s.FetchSchools(context.Background())
	if err != nil {
		cb(nil, err)
	} else {
		cb(snapshot, nil)
	}
	return unsub, nil
}

// WriteCandidates replaces one school's counts and fans the new snapshot out.
func (s *Store) WriteCandidates(ctx context.Context, schoolID string, counts core.CategoryCounts) error {
	for cat := range counts {
		if !catalog.Known(cat) {
			return fmt.Errorf("unknown category %q", cat)
		}
	}
	raw, err := encodeCounts(counts)
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE schools SET candidates = ? WHERE id = ?`, raw, schoolID)
	if err != nil {
		return fmt.Errorf("update candidates: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("unknown school %q", schoolID)
	}

	s.publishSchools()
	return nil
}

// SubscribeMessages replays the retained backlog oldest-first, then delivers
// every new append. The replay and the live feed may overlap under a
// concurrent append; subscribers dedup by id, losing a message is the only
// failure that matters here.
func (s *Store) SubscribeMessages(cb func(core.Message, error)) (func(), error) {
	unsub := s.messageFeed.subscribe(func(msg core.Message) {
		cb(msg, nil)
	})

	backlog, err := s.recentMessages(context.Background())
	if err != nil {
		cb(core.Message{}, err)
		return unsub, nil
	}
	for _, msg := range backlog {
		cb(msg, nil)
	}
	return unsub, nil
}

// AppendMessage stores a message with an assigned id and timestamp and fans
// it out to subscribers.
func (s *Store) AppendMessage(ctx context.Context, msg core.Message) (string, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("empty message content")
	}

	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, school_id, school_name, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.SchoolID, msg.SchoolName, msg.Content, msg.Timestamp.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert message: %w", err)
	}

	s.messageFeed.publish(msg)
	return msg.ID, nil
}

// ==== identity collaborator support ====

// SchoolCredentials returns one school record plus its password hash.
func (s *Store) SchoolCredentials(ctx context.Context, schoolID string) (core.School, string, error) {
	var (
		school core.School
		hash   string
		raw    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, password_hash, candidates FROM schools WHERE id = ?`,
		schoolID).Scan(&school.ID, &school.Name, &hash, &raw)
	if err != nil {
		return core.School{}, "", fmt.Errorf("query school %s: %w", schoolID, err)
	}
	counts, err := decodeCounts(raw)
	if err != nil {
		return core.School{}, "", fmt.Errorf("school %s: %w", schoolID, err)
	}
	school.Candidates = counts
	return school, hash, nil
}

// Seed is one school to provision at startup.
type Seed struct {
	ID           string
	Name         string
	PasswordHash string
}

// SeedSchools inserts schools that do not exist yet. Existing rows keep their
// counts; only the name and password hash are refreshed.
func (s *Store) SeedSchools(ctx context.Context, seeds []Seed) error {
	for _, seed := range seeds {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO schools (id, name, password_hash) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			                               password_hash = excluded.password_hash`,
			seed.ID, seed.Name, seed.PasswordHash)
		if err != nil {
			return fmt.Errorf("seed school %s: %w", seed.ID, err)
		}
	}
	if len(seeds) > 0 {
		s.log.Info().Int("schools", len(seeds)).Msg("schools seeded")
	}
	return nil
}

func (s *Store) publishSchools() {
	snapshot, err := s.FetchSchools(context.Background())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read snapshot for fan-out")
		return
	}
	s.schoolFeed.publish(snapshot)
}

func (s *Store) recentMessages(ctx context.Context) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, school_id, school_name, content, created_at
		 FROM (
			SELECT * FROM messages ORDER BY created_at DESC, id LIMIT ?
		 ) ORDER BY created_at ASC`, s.backlog)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []core.Message
	for rows.Next() {
		var (
			msg core.Message
			ms  int64
		)
		if err := rows.Scan(&msg.ID, &msg.SchoolID, &msg.SchoolName, &msg.Content, &ms); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Timestamp = time.UnixMilli(ms).UTC()
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func encodeCounts(counts core.CategoryCounts) (string, error) {
	plain := make(map[string]int, len(counts))
	for cat, n := range counts {
		if n < 0 {
			return "", fmt.Errorf("negative count for category %q", cat)
		}
		plain[string(cat)] = n
	}
	raw, err := json.Marshal(plain)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeCounts(raw string) (core.CategoryCounts, error) {
	plain := make(map[string]int)
	if err := json.Unmarshal([]byte(raw), &plain); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	counts := make(core.CategoryCounts, len(plain))
	for key, n := range plain {
		counts[catalog.Category(key)] = n
	}
	return counts, nil
}
