// Package sqlite provides a state backend on SQLite through GORM.
package sqlite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/govm-net/abihost/state"
)

func init() {
	state.MustRegister(state.SQLiteBackend, func(opts state.Options) (state.KVStore, error) {
		return Open(opts)
	})
}

// DBEntry is one key-value row.
type DBEntry struct {
	Key   []byte `gorm:"column:k;primaryKey;type:blob"`
	Value []byte `gorm:"column:v;type:blob;not null"`
}

// TableName specifies the table name for DBEntry
func (DBEntry) TableName() string {
	return "kv_entries"
}

// Store is a state.KVStore backed by a single SQLite table.
type Store struct {
	db *gorm.DB
}

var _ state.KVStore = (*Store)(nil)

// Open opens or creates opts.Dir/opts.Name.db.
func Open(opts state.Options) (*Store, error) {
	if opts.InMemory {
		return nil, errors.New("sqlite backend does not support in-memory mode")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}
	path := filepath.Join(opts.Dir, opts.Name+".db")

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&DBEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	// sqlite allows one writer; a single connection keeps readers from hitting SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	var e DBEntry
	result := s.db.Where("k = ?", key).Limit(1).Find(&e)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	if e.Value == nil {
		e.Value = []byte{}
	}
	return e.Value, nil
}

func (s *Store) Has(key []byte) (bool, error) {
	var count int64
	if err := s.db.Model(&DBEntry{}).Where("k = ?", key).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check key: %w", err)
	}
	return count > 0, nil
}

func (s *Store) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	start, end := state.PrefixRange(prefix)
	q := s.db.Model(&DBEntry{}).Order("k")
	if start != nil {
		q = q.Where("k >= ?", start)
	}
	if end != nil {
		q = q.Where("k < ?", end)
	}
	rows, err := q.Rows()
	if err != nil {
		return fmt.Errorf("failed to iterate: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e DBEntry
		if err := s.db.ScanRows(rows, &e); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		if e.Value == nil {
			e.Value = []byte{}
		}
		if !fn(e.Key, e.Value) {
			break
		}
	}
	return rows.Err()
}

func (s *Store) Apply(batch *state.Batch) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, op := range batch.Ops() {
			if op.Delete {
				if err := tx.Where("k = ?", op.Key).Delete(&DBEntry{}).Error; err != nil {
					return fmt.Errorf("failed to delete key: %w", err)
				}
				continue
			}
			e := DBEntry{Key: op.Key, Value: op.Value}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "k"}},
				DoUpdates: clause.AssignmentColumns([]string{"v"}),
			}).Create(&e).Error
			if err != nil {
				return fmt.Errorf("failed to put key: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
