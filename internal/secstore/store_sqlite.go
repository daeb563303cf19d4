package secstore

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"aegis/pkg/faults"
	"aegis/pkg/platform/clock"
)

// record is the gorm model backing one stored entry.
type record struct {
	Key       string `gorm:"primaryKey;column:key"`
	Value     []byte `gorm:"column:value"`
	Encrypted bool   `gorm:"column:encrypted"`
	// ExpiresAt is epoch milliseconds; zero means no expiry.
	ExpiresAt int64 `gorm:"column:expires_at;index"`
}

func (record) TableName() string {
	return "secure_entries"
}

// SQLiteStore persists entries in a local SQLite database so token bundles,
// counters, and session state survive process restarts.
type SQLiteStore struct {
	db     *gorm.DB
	sealer Sealer
	clock  clock.Clock
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteSealer enables at-rest sealing for entries written with
// Options.Encrypted.
func WithSQLiteSealer(sealer Sealer) SQLiteOption {
	return func(s *SQLiteStore) {
		s.sealer = sealer
	}
}

// WithSQLiteClock overrides the clock used for expiry checks.
func WithSQLiteClock(c clock.Clock) SQLiteOption {
	return func(s *SQLiteStore) {
		s.clock = c
	}
}

// NewSQLiteStore opens (or creates) the database at path and migrates the
// schema. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeStorageError, "could not open secure store")
	}
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, faults.Wrap(err, faults.CodeStorageError, "could not migrate secure store")
	}
	s := &SQLiteStore{db: db, clock: clock.NewSystem()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var rec record
	err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeStorageError, "could not read entry")
	}
	if rec.ExpiresAt > 0 && s.clock.Now().UnixMilli() >= rec.ExpiresAt {
		// Lazy expiry: drop the stale row on read.
		s.db.WithContext(ctx).Delete(&record{}, "key = ?", key)
		return nil, ErrNotFound
	}
	if rec.Encrypted {
		if s.sealer == nil {
			return nil, faults.New(faults.CodeStorageError, "encrypted entry but no sealer configured")
		}
		return s.sealer.Open(rec.Value)
	}
	return rec.Value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, opts Options) error {
	stored := value
	if opts.Encrypted {
		if s.sealer == nil {
			return faults.New(faults.CodeStorageError, "encrypted write but no sealer configured")
		}
		sealed, err := s.sealer.Seal(value)
		if err != nil {
			return err
		}
		stored = sealed
	}

	var expiresAt int64
	if opts.TTL > 0 {
		expiresAt = s.clock.Now().Add(opts.TTL).UnixMilli()
	}

	rec := record{Key: key, Value: stored, Encrypted: opts.Encrypted, ExpiresAt: expiresAt}
	err := s.db.WithContext(ctx).Save(&rec).Error
	if err != nil {
		return faults.Wrap(err, faults.CodeStorageError, "could not write entry")
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Delete(&record{}, "key = ?", key).Error
	if err != nil {
		return faults.Wrap(err, faults.CodeStorageError, "could not remove entry")
	}
	return nil
}

func (s *SQLiteStore) RemoveByPrefix(ctx context.Context, prefix string) (int, error) {
	res := s.db.WithContext(ctx).Delete(&record{}, "key LIKE ?", prefix+"%")
	if res.Error != nil {
		return 0, faults.Wrap(res.Error, faults.CodeStorageError, "could not remove entries")
	}
	return int(res.RowsAffected), nil
}

// DeleteExpired removes every entry whose expiry has passed as of now.
// The time parameter is injected for testability.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Delete(&record{}, "expires_at > 0 AND expires_at <= ?", now.UnixMilli())
	if res.Error != nil {
		return 0, faults.Wrap(res.Error, faults.CodeStorageError, "could not delete expired entries")
	}
	return int(res.RowsAffected), nil
}
