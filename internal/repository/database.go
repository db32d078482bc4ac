package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Howters/ArisanOnChain-sub000/internal/config"
	"github.com/Howters/ArisanOnChain-sub000/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the derived read model. It is opened once at startup, injected into
// the indexer and the query façade, and closed on shutdown.
type Store struct {
	db       *gorm.DB
	snapshot *sql.TxOptions
}

// Open connects and migrates the store described by cfg.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	db, err := database.Init(cfg)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// New wraps an already migrated gorm handle.
func New(db *gorm.DB) *Store {
	s := &Store{db: db}
	if db.Dialector.Name() == "postgres" {
		s.snapshot = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return s
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Update runs fn in one read-write transaction. Any error rolls back every write.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&Tx{db: db})
	})
}

// View runs fn against a stable snapshot.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	var opts []*sql.TxOptions
	if s.snapshot != nil {
		opts = append(opts, s.snapshot)
	}
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&Tx{db: db})
	}, opts...)
}

// Tx exposes insert / upsert / find-by-key primitives scoped to one transaction.
type Tx struct {
	db *gorm.DB
}

// upsert inserts value or, on a natural-key conflict, overwrites every non-key column.
func (t *Tx) upsert(value interface{}, columns ...string) error {
	cols := make([]clause.Column, len(columns))
	for i, c := range columns {
		cols[i] = clause.Column{Name: c}
	}
	return t.db.Clauses(clause.OnConflict{Columns: cols, UpdateAll: true}).Create(value).Error
}

// insertOnce inserts value unless a row with the same natural key exists.
func (t *Tx) insertOnce(value interface{}, columns ...string) (bool, error) {
	cols := make([]clause.Column, len(columns))
	for i, c := range columns {
		cols[i] = clause.Column{Name: c}
	}
	res := t.db.Clauses(clause.OnConflict{Columns: cols, DoNothing: true}).Create(value)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// first loads one row into dest; it returns (false, nil) when nothing matches.
func (t *Tx) first(dest interface{}, query string, args ...interface{}) (bool, error) {
	err := t.db.Where(query, args...).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query %T: %w", dest, err)
	}
	return true, nil
}

// save writes a loaded row back by primary key, or upserts a new one by natural key.
func (t *Tx) save(value interface{}, id int64, columns ...string) error {
	if id != 0 {
		return t.db.Save(value).Error
	}
	return t.upsert(value, columns...)
}
