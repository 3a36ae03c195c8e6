// Package store implements the namespaced local record store: JSON values
// under prefixed string keys, persisted in a single sqlite key-value table.
//
// The read/write surface deliberately reports failures as booleans rather
// than errors; callers that need to abort map a false return onto a
// storage error. Decode failures and quota exhaustion are logged and
// absorbed.
package store

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ExportVersion stamps export payloads so importers can reject shapes they
// do not understand.
const ExportVersion = "1.0.0"

// DefaultQuota mirrors the ~5MB budget of a browser local store.
const DefaultQuota = 5 * 1024 * 1024

// Well-known record keys.
const (
	KeyTasks           = "tasks"
	KeyCategories      = "categories"
	KeyInitialized     = "initialized"
	KeyCategoriesInit  = "categories-initialized"
	KeyUserPreferences = "user-preferences"
	KeyIDMap           = "id-map"
)

type record struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value []byte `gorm:"column:value"`
}

func (record) TableName() string { return "records" }

type Store struct {
	db     *gorm.DB
	prefix string
	quota  int64
	logger zerolog.Logger
}

// Open opens (or creates) the sqlite file backing the store. A quota of 0
// disables the byte budget.
func Open(path, prefix string, quota int64, logger zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, err
	}
	return &Store{db: db, prefix: prefix, quota: quota, logger: logger}, nil
}

// Ping verifies the underlying sqlite handle is still usable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) key(k string) string { return s.prefix + k }

// Get decodes the value at key into dest and reports whether it succeeded.
// On a miss or a decode failure dest is left untouched, so callers keep
// whatever default they preloaded it with.
func (s *Store) Get(key string, dest interface{}) bool {
	var rec record
	err := s.db.Where("key = ?", s.key(key)).First(&rec).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			s.logger.Warn().Err(err).Str("key", key).Msg("store read failed")
		}
		return false
	}
	// Decode into a scratch value first: json.Unmarshal half-fills its
	// target before reporting a type error, and dest must stay untouched
	// on failure.
	scratch := reflect.New(reflect.TypeOf(dest).Elem())
	if err := json.Unmarshal(rec.Value, scratch.Interface()); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("store value unparsable, using default")
		return false
	}
	reflect.ValueOf(dest).Elem().Set(scratch.Elem())
	return true
}

// Set serializes value and upserts it. Returns false on serialization
// failure, write failure, or quota exhaustion; the caller sees a uniform
// failure flag either way.
func (s *Store) Set(key string, value interface{}) bool {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("store value not serializable")
		return false
	}
	return s.setRaw(key, data)
}

func (s *Store) setRaw(key string, data []byte) bool {
	if s.quota > 0 && s.wouldExceedQuota(key, int64(len(data))) {
		s.logger.Error().Str("key", key).Int("bytes", len(data)).Msg("store quota exceeded")
		return false
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&record{Key: s.key(key), Value: data}).Error
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("store write failed")
		return false
	}
	return true
}

func (s *Store) wouldExceedQuota(key string, incoming int64) bool {
	var usage int64
	s.db.Model(&record{}).
		Where("key LIKE ?", s.prefix+"%").
		Where("key <> ?", s.key(key)).
		Select("COALESCE(SUM(LENGTH(value)), 0)").
		Scan(&usage)
	return usage+incoming > s.quota
}

func (s *Store) Remove(key string) bool {
	if err := s.db.Where("key = ?", s.key(key)).Delete(&record{}).Error; err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("store remove failed")
		return false
	}
	return true
}

// ClearAll removes every record under this store's prefix. Records owned
// by other namespaces sharing the table are untouched.
func (s *Store) ClearAll() bool {
	if err := s.db.Where("key LIKE ?", s.prefix+"%").Delete(&record{}).Error; err != nil {
		s.logger.Error().Err(err).Msg("store clear failed")
		return false
	}
	return true
}

// Export dumps every namespaced record, keyed by the prefix-stripped name,
// plus _exportDate and _version metadata.
func (s *Store) Export() (map[string]json.RawMessage, error) {
	var recs []record
	if err := s.db.Where("key LIKE ?", s.prefix+"%").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(recs)+2)
	for _, rec := range recs {
		out[strings.TrimPrefix(rec.Key, s.prefix)] = json.RawMessage(rec.Value)
	}
	date, _ := json.Marshal(time.Now().UTC().Format(time.RFC3339))
	version, _ := json.Marshal(ExportVersion)
	out["_exportDate"] = date
	out["_version"] = version
	return out, nil
}

// Import loads an export payload. With merge=false the namespace is cleared
// first; with merge=true each key is written over whatever is present.
// Keys prefixed "_" are metadata and skipped.
func (s *Store) Import(data map[string]json.RawMessage, merge bool) error {
	if !merge {
		if ok := s.ClearAll(); !ok {
			return gorm.ErrInvalidTransaction
		}
	}
	for key, raw := range data {
		if strings.HasPrefix(key, "_") {
			continue
		}
		if !json.Valid(raw) {
			s.logger.Warn().Str("key", key).Msg("skipping invalid value on import")
			continue
		}
		if ok := s.setRaw(key, raw); !ok {
			return &importError{key: key}
		}
	}
	return nil
}

type importError struct{ key string }

func (e *importError) Error() string { return "import failed writing key " + e.key }
