package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Mutation delivery states.
const (
	MutationPending   = "pending"
	MutationDelivered = "delivered"
	MutationFailed    = "failed"
)

// compactAfter is how long delivered and failed rows are kept before
// the daily compaction job purges them.
const compactAfter = 7 * 24 * time.Hour

// QueuedMutation is one captured write request: enough to replay it
// byte-for-byte once connectivity returns.
type QueuedMutation struct {
	ID        string      `json:"id"`
	Method    string      `json:"method"`
	Path      string      `json:"path"`
	Header    http.Header `json:"header"`
	Body      []byte      `json:"body"`
	CreatedAt time.Time   `json:"createdAt"`
	Status    string      `json:"status"`
	Attempts  int         `json:"attempts"`
}

// Queue is the durable store of failed write requests awaiting retry.
// Entries live in a local SQLite file, so they survive a console
// restart, and replay strictly in creation order.
type Queue struct {
	db   *sql.DB
	cron *cron.Cron
}

// OpenQueue opens (creating if needed) the queue database at path.
func OpenQueue(path string) (*Queue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	q := &Queue{db: db}
	if err := q.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return q, nil
}

func (q *Queue) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mutations (
			id TEXT PRIMARY KEY,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			header_json TEXT,
			body BLOB,
			created_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INTEGER NOT NULL DEFAULT 0,
			delivered_at TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mutations_status_created ON mutations(status, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := q.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the compaction job and closes the database.
func (q *Queue) Close() error {
	if q.cron != nil {
		ctx := q.cron.Stop()
		<-ctx.Done()
	}
	return q.db.Close()
}

// Enqueue persists a mutation for later replay. A missing id gets a
// fresh uuid; CreatedAt defaults to now and fixes the replay order.
func (q *Queue) Enqueue(ctx context.Context, m *QueuedMutation) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.Status = MutationPending

	headerJSON, err := json.Marshal(m.Header)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO mutations(id, method, path, header_json, body, created_at, status) VALUES(?,?,?,?,?,?,?)`,
		m.ID, m.Method, m.Path, string(headerJSON), m.Body, m.CreatedAt, m.Status)
	return err
}

// Pending returns undelivered mutations in FIFO creation order.
func (q *Queue) Pending(ctx context.Context) ([]QueuedMutation, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, method, path, header_json, body, created_at, status, attempts
		 FROM mutations WHERE status = ? ORDER BY created_at ASC, id ASC`, MutationPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QueuedMutation
	for rows.Next() {
		var m QueuedMutation
		var headerJSON string
		if err := rows.Scan(&m.ID, &m.Method, &m.Path, &headerJSON, &m.Body, &m.CreatedAt, &m.Status, &m.Attempts); err != nil {
			return nil, err
		}
		if headerJSON != "" {
			if err := json.Unmarshal([]byte(headerJSON), &m.Header); err != nil {
				return nil, err
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Depth returns the number of pending entries.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mutations WHERE status = ?`, MutationPending).Scan(&n)
	return n, err
}

func (q *Queue) markDelivered(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE mutations SET status = ?, attempts = attempts + 1, delivered_at = ? WHERE id = ?`,
		MutationDelivered, time.Now(), id)
	return err
}

func (q *Queue) markFailed(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE mutations SET status = ?, attempts = attempts + 1 WHERE id = ?`,
		MutationFailed, id)
	return err
}

func (q *Queue) bumpAttempts(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE mutations SET attempts = attempts + 1 WHERE id = ?`, id)
	return err
}

// Replay delivers pending mutations in FIFO order through send. A
// network-class failure stops the pass and leaves the entry (and
// everything behind it) pending for the next opportunity. A validation
// rejection marks the entry failed and moves on: the server state has
// moved past it and replaying it again would be wrong. Returns the
// number of confirmed deliveries.
func (q *Queue) Replay(ctx context.Context, send func(context.Context, QueuedMutation) error) (int, error) {
	pending, err := q.Pending(ctx)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, m := range pending {
		err := send(ctx, m)
		switch {
		case err == nil:
			if err := q.markDelivered(ctx, m.ID); err != nil {
				return delivered, err
			}
			delivered++
		case KindOf(err) == KindValidation:
			zap.S().Warnw("queued mutation rejected on replay, dropping",
				"id", m.ID,
				"path", m.Path,
				"error", err)
			if err := q.markFailed(ctx, m.ID); err != nil {
				return delivered, err
			}
		default:
			// network or auth trouble: keep the line intact and retry
			// the whole tail next time
			if bumpErr := q.bumpAttempts(ctx, m.ID); bumpErr != nil {
				zap.S().Warnw("failed to bump replay attempts", "id", m.ID, "error", bumpErr)
			}
			return delivered, err
		}
	}
	return delivered, nil
}

// StartCompaction schedules a daily job that purges delivered and
// dropped rows older than the retention window.
func (q *Queue) StartCompaction() {
	if q.cron != nil {
		return
	}
	q.cron = cron.New(cron.WithLocation(time.UTC))
	_, err := q.cron.AddFunc("0 4 * * *", q.compact)
	if err != nil {
		zap.S().Errorw("failed to register queue compaction job", "error", err)
		return
	}
	q.cron.Start()
	zap.S().Info("mutation queue compaction scheduled")
}

func (q *Queue) compact() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-compactAfter)
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM mutations WHERE status != ? AND created_at < ?`, MutationPending, cutoff)
	if err != nil {
		zap.S().Errorw("queue compaction failed", "error", err)
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		zap.S().Infow("compacted mutation queue", "purged", n)
	}
}
