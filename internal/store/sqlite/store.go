// Package sqlite persists candle history and the append-only trade ledger.
//
// Persistence is best-effort from the engine's point of view: a failed write
// is logged and the in-memory state proceeds. Durability loss must never
// stall the decision loop.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"scalper-botv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the bot database: candle history keyed by bucket start
// (upsert semantics, one row per bucket) and an append-only trade ledger
// keyed by auto-incrementing id.
type Store struct {
	db *sql.DB
}

// Open creates the Store, enabling WAL mode and initializing the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer discipline
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", path)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			time     INTEGER PRIMARY KEY,
			open     REAL NOT NULL,
			high     REAL NOT NULL,
			low      REAL NOT NULL,
			close    REAL NOT NULL,
			rsi      REAL,
			bb_lower REAL,
			bb_upper REAL
		);

		CREATE TABLE IF NOT EXISTS trades (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			action    TEXT NOT NULL,
			price     REAL NOT NULL,
			quantity  REAL NOT NULL,
			profit    REAL NOT NULL DEFAULT 0,
			timestamp TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp);
	`)
	return err
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// UpsertCandle replaces the row for the candle's bucket along with the
// indicator values computed for it. Last write for a bucket wins.
func (s *Store) UpsertCandle(c model.Candle, rsi, bbLower, bbUpper float64) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO candles (time, open, high, low, close, rsi, bb_lower, bb_upper)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Time, c.Open, c.High, c.Low, c.Close, rsi, bbLower, bbUpper,
	)
	if err != nil {
		return fmt.Errorf("sqlite upsert candle: %w", err)
	}
	return nil
}

// RecentCandles returns up to n candles ordered oldest→newest, fewer if the
// history is shorter.
func (s *Store) RecentCandles(n int) ([]model.Candle, error) {
	rows, err := s.db.Query(`
		SELECT time, open, high, low, close
		FROM candles ORDER BY time DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close); err != nil {
			return nil, fmt.Errorf("sqlite scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query is newest-first for the LIMIT; callers want oldest-first.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// AppendTrade writes one ledger row. Ledger rows are never updated or deleted.
func (s *Store) AppendTrade(t model.TradeRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO trades (action, price, quantity, profit, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		t.Action, t.Price, t.Quantity, t.Profit, t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("sqlite append trade: %w", err)
	}
	return nil
}

// RecentTrades returns the last n ledger rows, newest first.
func (s *Store) RecentTrades(n int) ([]model.TradeRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, action, price, quantity, profit, timestamp
		FROM trades ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	var trades []model.TradeRecord
	for rows.Next() {
		var t model.TradeRecord
		if err := rows.Scan(&t.ID, &t.Action, &t.Price, &t.Quantity, &t.Profit, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("sqlite scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// CandleCount returns the number of stored candles.
func (s *Store) CandleCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM candles`).Scan(&n)
	return n, err
}

// Prune deletes candles whose bucket start is older than now−maxAge and
// returns the number removed. The trade ledger is never pruned.
func (s *Store) Prune(maxAge time.Duration) (int64, error) {
	threshold := time.Now().UnixMilli() - maxAge.Milliseconds()
	res, err := s.db.Exec(`DELETE FROM candles WHERE time < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("sqlite prune: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
