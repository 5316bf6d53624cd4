// Package audit persists the guardian's intervention trail in SQLite.
// Writes are asynchronous: recording never blocks a plan or a
// reservation on disk I/O.
package audit

import (
	"database/sql"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/usermihir/Agentic-EV/core/model"
	"github.com/usermihir/Agentic-EV/infra/logger"
)

// SQLiteStore appends intervention records to a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	ch   chan model.Intervention
	wg   sync.WaitGroup
	log  logger.Logger
	once sync.Once
}

// NewSQLiteStore opens or creates the database, ensures the schema and
// starts the background writer.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS interventions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts INTEGER NOT NULL,
        action TEXT NOT NULL,
        reason TEXT,
        station_id TEXT,
        connector_id TEXT,
        promised REAL,
        actual REAL
    );
    CREATE INDEX IF NOT EXISTS idx_interventions_ts ON interventions(ts);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &SQLiteStore{
		db:  db,
		ch:  make(chan model.Intervention, 256),
		log: logger.New("audit"),
	}
	s.wg.Add(1)
	go s.writer()
	return s, nil
}

func (s *SQLiteStore) writer() {
	defer s.wg.Done()
	for rec := range s.ch {
		if err := s.insert(rec); err != nil {
			s.log.Errorf("audit insert: %v", err)
		}
	}
}

func (s *SQLiteStore) insert(rec model.Intervention) error {
	var promised, actual any
	if rec.Promised != nil {
		promised = *rec.Promised
	}
	if rec.Actual != nil {
		actual = *rec.Actual
	}
	_, err := s.db.Exec(`INSERT INTO interventions (ts, action, reason, station_id, connector_id, promised, actual)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Unix(), rec.Action, rec.Reason, rec.StationID, rec.ConnectorID, promised, actual)
	return err
}

// Record queues the intervention for persistence. A full queue drops
// the record rather than stalling the caller.
func (s *SQLiteStore) Record(rec model.Intervention) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	select {
	case s.ch <- rec:
	default:
		s.log.Warnf("audit queue full, dropping %s for %s", rec.Action, rec.ConnectorID)
	}
}

// Query returns up to limit interventions recorded at or after since,
// newest first. A non-positive limit defaults to 100.
func (s *SQLiteStore) Query(since time.Time, limit int) ([]model.Intervention, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT ts, action, reason, station_id, connector_id, promised, actual
        FROM interventions WHERE ts >= ? ORDER BY ts DESC, id DESC LIMIT ?`,
		since.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Intervention
	for rows.Next() {
		var (
			ts               int64
			rec              model.Intervention
			promised, actual sql.NullFloat64
		)
		if err := rows.Scan(&ts, &rec.Action, &rec.Reason, &rec.StationID, &rec.ConnectorID, &promised, &actual); err != nil {
			return nil, err
		}
		rec.Timestamp = time.Unix(ts, 0).UTC()
		if promised.Valid {
			v := promised.Float64
			rec.Promised = &v
		}
		if actual.Valid {
			v := actual.Float64
			rec.Actual = &v
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close drains the write queue and closes the database.
func (s *SQLiteStore) Close() error {
	s.once.Do(func() {
		close(s.ch)
	})
	s.wg.Wait()
	return s.db.Close()
}
