/*
SQLiteBatchStore implements BatchStore.
Table is batch_store

Internally,

1) Upsert uses INSERT OR REPLACE keyed on (OpID, BatchIndex).
2) UpdatedAtUnix is written by the caller, not by the database.
*/
package opstore

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eil-protocol/eil-go/eiltypes"
)

type SQLiteBatchStore struct {
	db    *sql.DB
	stmts *stmtCache
}

func NewSQLiteBatchStore(dbPath string) (*SQLiteBatchStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	storage := &SQLiteBatchStore{db: db, stmts: newStmtCache(db)}
	if err := storage.init(); err != nil {
		return nil, err
	}

	return storage, nil
}

// Table's row structure is according to MonitoredBatch
func (s *SQLiteBatchStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS batch_store (
		OpID TEXT,
		BatchIndex INTEGER,
		ChainID INTEGER,
		UserOpHash BLOB,
		Status TEXT,
		TxHash BLOB,
		RevertReason TEXT,
		UpdatedAtUnix INTEGER,
		PRIMARY KEY (OpID, BatchIndex)
	);
	CREATE INDEX IF NOT EXISTS idx_batch_status ON batch_store (Status);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteBatchStore) Close() error {
	s.stmts.Clear()
	return s.db.Close()
}

func (s *SQLiteBatchStore) Upsert(b *MonitoredBatch) error {
	query := `
	INSERT OR REPLACE INTO batch_store (OpID, BatchIndex, ChainID, UserOpHash, Status, TxHash, RevertReason, UpdatedAtUnix)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`
	stmt, err := s.stmts.Prepare(query)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(b.OpID, b.BatchIndex, int64(b.ChainID), b.UserOpHash, string(b.Status), b.TxHash, b.RevertReason, b.UpdatedAtUnix)
	return err
}

func (s *SQLiteBatchStore) GetByOp(opID string) ([]*MonitoredBatch, error) {
	query := `
	SELECT OpID, BatchIndex, ChainID, UserOpHash, Status, TxHash, RevertReason, UpdatedAtUnix
	FROM batch_store WHERE OpID = ? ORDER BY BatchIndex;
	`
	stmt, err := s.stmts.Prepare(query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(opID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBatches(rows)
}

func (s *SQLiteBatchStore) GetByStatus(status ...eiltypes.BatchStatus) ([]*MonitoredBatch, error) {
	if len(status) == 0 {
		return nil, nil
	}
	query := `
	SELECT OpID, BatchIndex, ChainID, UserOpHash, Status, TxHash, RevertReason, UpdatedAtUnix
	FROM batch_store WHERE Status IN (?` + strings.Repeat(", ?", len(status)-1) + `);
	`
	args := make([]interface{}, len(status))
	for i, st := range status {
		args[i] = string(st)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBatches(rows)
}

func scanBatches(rows *sql.Rows) ([]*MonitoredBatch, error) {
	var batches []*MonitoredBatch
	for rows.Next() {
		b := &MonitoredBatch{}
		var chainID int64
		var status string
		if err := rows.Scan(&b.OpID, &b.BatchIndex, &chainID, &b.UserOpHash, &status, &b.TxHash, &b.RevertReason, &b.UpdatedAtUnix); err != nil {
			return nil, err
		}
		b.ChainID = eiltypes.ChainId(chainID)
		b.Status = eiltypes.BatchStatus(status)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}
