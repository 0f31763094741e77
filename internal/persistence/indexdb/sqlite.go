package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"voxelstore.ai/internal/sim/tuning"
	"voxelstore.ai/internal/sim/world"
)

// SQLiteIndex is a secondary read model over the frame log. Writes are queued to a
// single writer goroutine and dropped when it falls behind; the JSONL log stays the
// source of truth.
type SQLiteIndex struct {
	db    *sqlx.DB
	runID string

	ch   chan world.FrameLogEntry
	wg   sync.WaitGroup
	once sync.Once

	closed         atomic.Bool
	dropFrameTotal atomic.Uint64
}

type QueueStats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	DropFrameTotal uint64 `json:"drop_frame_total"`
}

// OpenSQLite opens (or creates) the index at path. runID tags every frame written
// through this handle.
func OpenSQLite(path, runID string) (*SQLiteIndex, error) {
	return openSQLite(path, runID, 65536)
}

func openSQLite(path, runID string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:    db,
		runID: runID,
		ch:    make(chan world.FrameLogEntry, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			tuning_digest TEXT NOT NULL,
			tuning_json TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS frames (
			run_id TEXT NOT NULL,
			frame INTEGER NOT NULL,
			commands INTEGER NOT NULL,
			region_chunks INTEGER NOT NULL,
			region_entities INTEGER NOT NULL,
			moved INTEGER NOT NULL,
			spawned INTEGER NOT NULL,
			removed INTEGER NOT NULL,
			transitions INTEGER NOT NULL,
			live_entities INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			blocks INTEGER NOT NULL,
			step_ms REAL NOT NULL,
			digest TEXT NOT NULL,
			error TEXT NOT NULL,
			PRIMARY KEY (run_id, frame)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_frames_digest ON frames(digest) WHERE digest != '';`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) RunID() string { return s.runID }

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteFrame queues e for indexing. It never blocks the frame loop.
func (s *SQLiteIndex) WriteFrame(e world.FrameLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- e:
	default:
		s.dropFrameTotal.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() QueueStats {
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropFrameTotal: s.dropFrameTotal.Load(),
	}
}

// RecordRun stores the effective tuning for this run.
func (s *SQLiteIndex) RecordRun(worldID string, seed int64, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO runs(run_id,world_id,seed,tuning_digest,tuning_json,started_at) VALUES(?,?,?,?,?,?)`,
		s.runID, worldID, seed, hex.EncodeToString(sum[:]), string(b), now,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	insertFrame, _ := s.db.Preparex(`INSERT OR REPLACE INTO frames(
		run_id,frame,commands,region_chunks,region_entities,moved,spawned,removed,
		transitions,live_entities,chunks,blocks,step_ms,digest,error
	) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertFrame != nil {
			_ = insertFrame.Close()
		}
	}()

	var (
		tx            *sqlx.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.Beginx()
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for e := range s.ch {
		begin()
		if tx == nil || insertFrame == nil {
			continue
		}
		if _, err := tx.Stmtx(insertFrame).Exec(
			s.runID,
			int64(e.Frame),
			e.Commands,
			e.RegionChunks,
			e.RegionEnts,
			e.Moved,
			e.Spawned,
			e.Removed,
			e.Transitions,
			e.LiveEntities,
			e.Chunks,
			e.Blocks,
			e.StepMS,
			e.Digest,
			e.Error,
		); err != nil {
			rollback()
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}

type RunRow struct {
	RunID        string `db:"run_id" json:"run_id"`
	WorldID      string `db:"world_id" json:"world_id"`
	Seed         int64  `db:"seed" json:"seed"`
	TuningDigest string `db:"tuning_digest" json:"tuning_digest"`
	StartedAt    string `db:"started_at" json:"started_at"`
}

type FrameRow struct {
	RunID          string  `db:"run_id" json:"run_id"`
	Frame          int64   `db:"frame" json:"frame"`
	Commands       int     `db:"commands" json:"commands"`
	RegionChunks   int     `db:"region_chunks" json:"region_chunks"`
	RegionEntities int     `db:"region_entities" json:"region_entities"`
	Moved          int     `db:"moved" json:"moved"`
	Spawned        int     `db:"spawned" json:"spawned"`
	Removed        int     `db:"removed" json:"removed"`
	Transitions    int     `db:"transitions" json:"transitions"`
	LiveEntities   int     `db:"live_entities" json:"live_entities"`
	Chunks         int     `db:"chunks" json:"chunks"`
	Blocks         int     `db:"blocks" json:"blocks"`
	StepMS         float64 `db:"step_ms" json:"step_ms"`
	Digest         string  `db:"digest" json:"digest,omitempty"`
	Error          string  `db:"error" json:"error,omitempty"`
}

type Summary struct {
	RunID          string  `db:"run_id" json:"run_id"`
	Frames         int64   `db:"frames" json:"frames"`
	FirstFrame     int64   `db:"first_frame" json:"first_frame"`
	LastFrame      int64   `db:"last_frame" json:"last_frame"`
	Skipped        int64   `db:"skipped" json:"skipped"`
	Spawned        int64   `db:"spawned" json:"spawned"`
	Removed        int64   `db:"removed" json:"removed"`
	Transitions    int64   `db:"transitions" json:"transitions"`
	MaxLive        int64   `db:"max_live" json:"max_live"`
	MaxChunks      int64   `db:"max_chunks" json:"max_chunks"`
	AvgStepMS      float64 `db:"avg_step_ms" json:"avg_step_ms"`
	MaxStepMS      float64 `db:"max_step_ms" json:"max_step_ms"`
	LastDigestedAt int64   `db:"last_digested_at" json:"last_digested_at"`
}

var ErrNoFrames = errors.New("no frames for run")

func (s *SQLiteIndex) Runs(ctx context.Context) ([]RunRow, error) {
	var out []RunRow
	err := s.db.SelectContext(ctx, &out,
		`SELECT run_id, world_id, seed, tuning_digest, started_at FROM runs ORDER BY started_at`)
	return out, err
}

// FrameRange returns frames [from, to] of runID in frame order.
func (s *SQLiteIndex) FrameRange(ctx context.Context, runID string, from, to uint64) ([]FrameRow, error) {
	var out []FrameRow
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM frames
		WHERE run_id = ? AND frame BETWEEN ? AND ?
		ORDER BY frame`, runID, int64(from), int64(to))
	return out, err
}

func (s *SQLiteIndex) Summary(ctx context.Context, runID string) (Summary, error) {
	var out Summary
	err := s.db.GetContext(ctx, &out, `SELECT
			run_id,
			COUNT(*) AS frames,
			MIN(frame) AS first_frame,
			MAX(frame) AS last_frame,
			SUM(CASE WHEN error != '' THEN 1 ELSE 0 END) AS skipped,
			SUM(spawned) AS spawned,
			SUM(removed) AS removed,
			SUM(transitions) AS transitions,
			MAX(live_entities) AS max_live,
			MAX(chunks) AS max_chunks,
			AVG(step_ms) AS avg_step_ms,
			MAX(step_ms) AS max_step_ms,
			COALESCE(MAX(CASE WHEN digest != '' THEN frame END), -1) AS last_digested_at
		FROM frames WHERE run_id = ? GROUP BY run_id`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, fmt.Errorf("%w: %s", ErrNoFrames, runID)
	}
	return out, err
}

// DigestAt returns the recorded state digest of runID at frame, if one was logged.
func (s *SQLiteIndex) DigestAt(ctx context.Context, runID string, frame uint64) (string, error) {
	var d string
	err := s.db.GetContext(ctx, &d, `SELECT digest FROM frames WHERE run_id = ? AND frame = ?`, runID, int64(frame))
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return d, err
}
