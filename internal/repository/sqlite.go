// Package repository содержит локальное встроенное хранилище коллекций на SQLite.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mmeshcher/staysync/internal/model"
)

var (
	// ErrNotFound возвращается, если запись с указанным ключом отсутствует.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey возвращается при вставке записи с уже существующим ключом.
	ErrDuplicateKey = errors.New("duplicate record key")
	// ErrCollectionNotInTx возвращается при обращении к коллекции, не объявленной в транзакции.
	ErrCollectionNotInTx = errors.New("collection is not part of the transaction")
	// ErrEmptyKey возвращается для записи без ключа.
	ErrEmptyKey = errors.New("record key is empty")
)

const (
	settingsID      = "app_settings"
	insertBatchSize = 100
	retryAttempts   = 2
	retryBaseDelay  = 50 * time.Millisecond
)

type record struct {
	Collection string         `gorm:"primaryKey;size:32"`
	ID         string         `gorm:"primaryKey;size:191"`
	Seq        int64          `gorm:"not null;index"`
	Body       datatypes.JSON `gorm:"not null"`
}

func (record) TableName() string { return "records" }

type settingsRecord struct {
	ID   string         `gorm:"primaryKey"`
	Body datatypes.JSON `gorm:"not null"`
}

func (settingsRecord) TableName() string { return "settings" }

// Tx описывает операции над коллекциями внутри одной локальной транзакции.
type Tx interface {
	Count(ctx context.Context, c model.Collection) (int64, error)
	Clear(ctx context.Context, c model.Collection) error
	BulkInsert(ctx context.Context, c model.Collection, docs []model.Document) error
	Scan(ctx context.Context, c model.Collection) ([]model.Document, error)
	Put(ctx context.Context, c model.Collection, doc model.Document) error
	Get(ctx context.Context, c model.Collection, id string) (model.Document, error)
}

// SQLiteStore — встроенное хранилище коллекций документов.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore открывает (или создаёт) файл базы и применяет схему.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	// Один writer: очистка и вставка коллекции не перемежаются с чтением.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&record{}, &settingsRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close закрывает соединение с базой.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// withRetry повторяет операцию при временной блокировке базы.
func (s *SQLiteStore) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(retryAttempts, retry.NewExponential(retryBaseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && isBusyError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isBusyError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Transaction выполняет fn в одной локальной транзакции, ограниченной перечисленными коллекциями.
func (s *SQLiteStore) Transaction(ctx context.Context, collections []model.Collection, fn func(tx Tx) error) error {
	allowed := make(map[model.Collection]struct{}, len(collections))
	for _, c := range collections {
		allowed[c] = struct{}{}
	}

	return s.withRetry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
			return fn(&sqliteTx{db: db, allowed: allowed})
		})
	})
}

// Count возвращает количество записей коллекции.
func (s *SQLiteStore) Count(ctx context.Context, c model.Collection) (int64, error) {
	var n int64
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		n, err = count(s.db.WithContext(ctx), c)
		return err
	})
	return n, err
}

// Clear удаляет все записи коллекции.
func (s *SQLiteStore) Clear(ctx context.Context, c model.Collection) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		return clearCollection(s.db.WithContext(ctx), c)
	})
}

// BulkInsert добавляет записи в конец коллекции. Повтор ключа отменяет всю вставку.
func (s *SQLiteStore) BulkInsert(ctx context.Context, c model.Collection, docs []model.Document) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
			return bulkInsert(db, c, docs)
		})
	})
}

// Scan возвращает все записи коллекции в порядке вставки.
func (s *SQLiteStore) Scan(ctx context.Context, c model.Collection) ([]model.Document, error) {
	var docs []model.Document
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		docs, err = scan(s.db.WithContext(ctx), c)
		return err
	})
	return docs, err
}

// Put вставляет или заменяет одну запись, сохраняя её позицию.
func (s *SQLiteStore) Put(ctx context.Context, c model.Collection, doc model.Document) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
			return put(db, c, doc)
		})
	})
}

// Get возвращает одну запись по ключу.
func (s *SQLiteStore) Get(ctx context.Context, c model.Collection, id string) (model.Document, error) {
	var doc model.Document
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		doc, err = get(s.db.WithContext(ctx), c, id)
		return err
	})
	return doc, err
}

// LoadSettings читает сохранённую запись настроек. found=false, если настройки ещё не сохранялись.
func (s *SQLiteStore) LoadSettings(ctx context.Context) (model.Settings, bool, error) {
	var rec settingsRecord
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Where("id = ?", settingsID).Take(&rec).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Settings{}, false, nil
		}
		return model.Settings{}, false, fmt.Errorf("load settings: %w", err)
	}

	var settings model.Settings
	if err := json.Unmarshal(rec.Body, &settings); err != nil {
		return model.Settings{}, false, fmt.Errorf("decode settings: %w", err)
	}
	return settings, true, nil
}

// SaveSettings сохраняет запись настроек.
func (s *SQLiteStore) SaveSettings(ctx context.Context, settings model.Settings) error {
	body, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	rec := settingsRecord{ID: settingsID, Body: datatypes.JSON(body)}
	return s.withRetry(ctx, func(ctx context.Context) error {
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"body"}),
		}).Create(&rec).Error
		if err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
		return nil
	})
}

type sqliteTx struct {
	db      *gorm.DB
	allowed map[model.Collection]struct{}
}

func (t *sqliteTx) check(c model.Collection) error {
	if _, ok := t.allowed[c]; !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotInTx, c)
	}
	return nil
}

func (t *sqliteTx) Count(ctx context.Context, c model.Collection) (int64, error) {
	if err := t.check(c); err != nil {
		return 0, err
	}
	return count(t.db.WithContext(ctx), c)
}

func (t *sqliteTx) Clear(ctx context.Context, c model.Collection) error {
	if err := t.check(c); err != nil {
		return err
	}
	return clearCollection(t.db.WithContext(ctx), c)
}

func (t *sqliteTx) BulkInsert(ctx context.Context, c model.Collection, docs []model.Document) error {
	if err := t.check(c); err != nil {
		return err
	}
	return bulkInsert(t.db.WithContext(ctx), c, docs)
}

func (t *sqliteTx) Scan(ctx context.Context, c model.Collection) ([]model.Document, error) {
	if err := t.check(c); err != nil {
		return nil, err
	}
	return scan(t.db.WithContext(ctx), c)
}

func (t *sqliteTx) Put(ctx context.Context, c model.Collection, doc model.Document) error {
	if err := t.check(c); err != nil {
		return err
	}
	return put(t.db.WithContext(ctx), c, doc)
}

func (t *sqliteTx) Get(ctx context.Context, c model.Collection, id string) (model.Document, error) {
	if err := t.check(c); err != nil {
		return model.Document{}, err
	}
	return get(t.db.WithContext(ctx), c, id)
}

func count(db *gorm.DB, c model.Collection) (int64, error) {
	var n int64
	if err := db.Model(&record{}).Where("collection = ?", string(c)).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", c, err)
	}
	return n, nil
}

func clearCollection(db *gorm.DB, c model.Collection) error {
	if err := db.Where("collection = ?", string(c)).Delete(&record{}).Error; err != nil {
		return fmt.Errorf("clear %s: %w", c, err)
	}
	return nil
}

func nextSeq(db *gorm.DB, c model.Collection) (int64, error) {
	var maxSeq sql.NullInt64
	err := db.Model(&record{}).
		Where("collection = ?", string(c)).
		Select("MAX(seq)").
		Row().
		Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("select max seq %s: %w", c, err)
	}
	if !maxSeq.Valid {
		return 0, nil
	}
	return maxSeq.Int64 + 1, nil
}

func bulkInsert(db *gorm.DB, c model.Collection, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}

	seq, err := nextSeq(db, c)
	if err != nil {
		return err
	}

	recs := make([]record, 0, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("%w: %s[%d]", ErrEmptyKey, c, i)
		}
		recs = append(recs, record{
			Collection: string(c),
			ID:         d.ID,
			Seq:        seq + int64(i),
			Body:       datatypes.JSON(d.Body),
		})
	}

	if err := db.CreateInBatches(recs, insertBatchSize).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w in %s", ErrDuplicateKey, c)
		}
		return fmt.Errorf("bulk insert %s: %w", c, err)
	}
	return nil
}

func scan(db *gorm.DB, c model.Collection) ([]model.Document, error) {
	var recs []record
	if err := db.Where("collection = ?", string(c)).Order("seq, id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("scan %s: %w", c, err)
	}

	docs := make([]model.Document, 0, len(recs))
	for _, r := range recs {
		docs = append(docs, model.Document{ID: r.ID, Body: json.RawMessage(r.Body)})
	}
	return docs, nil
}

func put(db *gorm.DB, c model.Collection, doc model.Document) error {
	if doc.ID == "" {
		return ErrEmptyKey
	}

	seq, err := nextSeq(db, c)
	if err != nil {
		return err
	}

	rec := record{Collection: string(c), ID: doc.ID, Seq: seq, Body: datatypes.JSON(doc.Body)}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"body"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", c, doc.ID, err)
	}
	return nil
}

func get(db *gorm.DB, c model.Collection, id string) (model.Document, error) {
	var rec record
	err := db.Where("collection = ? AND id = ?", string(c), id).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Document{}, fmt.Errorf("%w: %s/%s", ErrNotFound, c, id)
		}
		return model.Document{}, fmt.Errorf("get %s/%s: %w", c, id, err)
	}
	return model.Document{ID: rec.ID, Body: json.RawMessage(rec.Body)}, nil
}
