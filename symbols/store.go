package symbols

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS symbol_master (
	broker           TEXT NOT NULL,
	trading_symbol   TEXT NOT NULL,
	exchange_segment TEXT NOT NULL,
	instrument_id    TEXT NOT NULL,
	name             TEXT NOT NULL DEFAULT '',
	lot_size         INTEGER NOT NULL DEFAULT 0,
	tick_size        TEXT NOT NULL DEFAULT '0',
	instrument_type  TEXT NOT NULL DEFAULT '',
	expiry           TEXT NOT NULL DEFAULT '',
	strike           TEXT NOT NULL DEFAULT '0',
	option_type      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (broker, trading_symbol, exchange_segment)
);
CREATE INDEX IF NOT EXISTS idx_symbol_master_lookup
	ON symbol_master (broker, exchange_segment, trading_symbol COLLATE NOCASE);
`

// OpenDB opens (or creates) the SQLite reference database and applies the schema
func OpenDB(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" && !strings.Contains(path, "?") {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open symbol db: %w", err)
	}
	if path == ":memory:" {
		// each new connection to :memory: is a fresh database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create symbol schema: %w", err)
	}
	return db, nil
}

// SQLiteStore keeps one broker's scrip master in the shared symbol_master table
type SQLiteStore struct {
	db     *sql.DB
	broker string
}

// NewSQLiteStore returns a store scoped to brokerName
func NewSQLiteStore(db *sql.DB, brokerName string) *SQLiteStore {
	return &SQLiteStore{db: db, broker: brokerName}
}

// Replace clears the broker's rows and bulk inserts records in one transaction
func (s *SQLiteStore) Replace(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM symbol_master WHERE broker = ?`, s.broker); err != nil {
		return fmt.Errorf("clear %s symbols: %w", s.broker, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO symbol_master
			(broker, trading_symbol, exchange_segment, instrument_id, name, lot_size,
			 tick_size, instrument_type, expiry, strike, option_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			s.broker,
			r.TradingSymbol,
			strings.ToUpper(r.ExchangeSegment),
			r.InstrumentID,
			r.Name,
			r.LotSize,
			r.TickSize.String(),
			r.InstrumentType,
			r.Expiry,
			r.Strike.String(),
			r.OptionType,
		); err != nil {
			return fmt.Errorf("insert %s/%s: %w", r.ExchangeSegment, r.TradingSymbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// All returns every record stored for the broker
func (s *SQLiteStore) All(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trading_symbol, exchange_segment, instrument_id, name, lot_size,
		       tick_size, instrument_type, expiry, strike, option_type
		FROM symbol_master WHERE broker = ?`, s.broker)
	if err != nil {
		return nil, fmt.Errorf("query %s symbols: %w", s.broker, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r            Record
			tick, strike string
		)
		if err := rows.Scan(&r.TradingSymbol, &r.ExchangeSegment, &r.InstrumentID, &r.Name, &r.LotSize,
			&tick, &r.InstrumentType, &r.Expiry, &strike, &r.OptionType); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		r.TickSize = Decimal(tick)
		r.Strike = Decimal(strike)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of rows stored for the broker
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbol_master WHERE broker = ?`, s.broker).Scan(&n)
	return n, err
}
