package file

import (
	"database/sql"
	"errors"
	"fmt"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	_ "github.com/mattn/go-sqlite3"
)

const (
	createSwapTable = `CREATE TABLE IF NOT EXISTS swap (
		slot INTEGER PRIMARY KEY,
		data BLOB NOT NULL
	)`
	upsertSlot = `INSERT INTO swap (slot, data) VALUES (?, ?)
		ON CONFLICT(slot) DO UPDATE SET data = excluded.data`
	selectSlot = `SELECT data FROM swap WHERE slot = ?`
)

// SQLiteStore keeps one row per written swap slot.
type SQLiteStore struct {
	db    *sql.DB
	slots int
}

func NewSQLiteStore(path string, slots int) (*SQLiteStore, error) {
	if slots < 0 || slots > util.MaxSwapSlots {
		return nil, util.ErrInvalidSwapSize
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createSwapTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create swap table: %w", err)
	}

	return &SQLiteStore{db: db, slots: slots}, nil
}

func (s *SQLiteStore) WritePage(src []byte, slot util.SlotIdx) error {
	if err := checkSlot(src, slot, s.slots); err != nil {
		return fmt.Errorf("[WritePage] slot %d: %w", slot, err)
	}
	if _, err := s.db.Exec(upsertSlot, int64(slot), src); err != nil {
		return fmt.Errorf("[WritePage] slot %d: %w", slot, err)
	}
	return nil
}

func (s *SQLiteStore) ReadPage(dst []byte, slot util.SlotIdx) error {
	if err := checkSlot(dst, slot, s.slots); err != nil {
		return fmt.Errorf("[ReadPage] slot %d: %w", slot, err)
	}

	var data []byte
	err := s.db.QueryRow(selectSlot, int64(slot)).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("[ReadPage] slot %d: %w", slot, util.ErrSlotNotWritten)
	case err != nil:
		return fmt.Errorf("[ReadPage] slot %d: %w", slot, err)
	case len(data) != util.PageSize:
		return fmt.Errorf("[ReadPage] slot %d holds %d bytes: %w", slot, len(data), util.ErrInvalidPageBuffer)
	}
	copy(dst, data)
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
