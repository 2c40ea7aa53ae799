package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Document is the row every collection shares in the SQL backend.
type Document struct {
	Collection string `gorm:"primaryKey;type:varchar(64)"`
	ID         string `gorm:"primaryKey;type:varchar(128)"`
	Data       string `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GORMOptions configures OpenGORM.
type GORMOptions struct {
	Driver       string // postgres, mysql or sqlite
	DSN          string
	LogLevel     string
	PollInterval time.Duration // 0 disables polling in subscriptions
}

// GORMStore keeps documents in a single SQL table.
type GORMStore struct {
	db           *gorm.DB
	feed         *feed
	log          *zap.Logger
	pollInterval time.Duration

	// notifyMu orders snapshot loads with their publishes so subscribers
	// never receive an older membership after a newer one.
	notifyMu sync.Mutex
}

// OpenDialector opens a gorm connection for the named driver.
func OpenDialector(driver, dsn, logLevel string) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch driver {
	case "postgres":
		dial = postgres.Open(dsn)
	case "mysql":
		dial = mysql.Open(dsn)
	case "sqlite":
		dial = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	lvl := logger.Warn
	switch logLevel {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(lvl)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	return db, nil
}

// OpenGORM connects and migrates the documents table.
func OpenGORM(o GORMOptions, log *zap.Logger) (*GORMStore, error) {
	db, err := OpenDialector(o.Driver, o.DSN, o.LogLevel)
	if err != nil {
		return nil, err
	}
	return NewGORM(db, o.PollInterval, log)
}

// NewGORM wraps an existing connection.
func NewGORM(db *gorm.DB, pollInterval time.Duration, log *zap.Logger) (*GORMStore, error) {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate documents table: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GORMStore{
		db:           db,
		feed:         newFeed(),
		log:          log,
		pollInterval: pollInterval,
	}, nil
}

func (s *GORMStore) Create(ctx context.Context, collection, id string, data any) (string, error) {
	body, err := encode(data)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.New().String()
	}

	doc := Document{Collection: collection, ID: id, Data: string(body)}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&doc)
	if res.Error != nil {
		return "", fmt.Errorf("failed to create %s/%s: %w", collection, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return "", fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
	}
	s.notify(ctx, collection)
	return id, nil
}

func (s *GORMStore) Set(ctx context.Context, collection, id string, data any) error {
	body, err := encode(data)
	if err != nil {
		return err
	}

	doc := Document{Collection: collection, ID: id, Data: string(body)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", collection, id, err)
	}
	s.notify(ctx, collection)
	return nil
}

func (s *GORMStore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	var doc Document
	err := s.db.WithContext(ctx).First(&doc, "collection = ? AND id = ?", collection, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return jsonSnapshot{id: doc.ID, data: []byte(doc.Data)}, nil
}

func (s *GORMStore) Delete(ctx context.Context, collection, id string) error {
	res := s.db.WithContext(ctx).Delete(&Document{}, "collection = ? AND id = ?", collection, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, res.Error)
	}
	if res.RowsAffected > 0 {
		s.notify(ctx, collection)
	}
	return nil
}

// Query pushes string equality down to the database's JSON functions.
// Other value types are not supported by this backend.
func (s *GORMStore) Query(ctx context.Context, collection, field string, value any) ([]Snapshot, error) {
	str, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s == %T", ErrUnsupported, field, value)
	}
	if !validField(field) {
		return nil, fmt.Errorf("%w: field %q", ErrUnsupported, field)
	}

	var expr string
	switch s.db.Dialector.Name() {
	case "postgres":
		expr = "CAST(data AS jsonb) ->> '" + field + "' = ?"
	case "mysql":
		expr = "JSON_UNQUOTE(JSON_EXTRACT(data, '$." + field + "')) = ?"
	default:
		expr = "json_extract(data, '$." + field + "') = ?"
	}

	var docs []Document
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Where(expr, str).
		Order("id").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, field, err)
	}
	return toSnapshots(docs), nil
}

func (s *GORMStore) GetAll(ctx context.Context, collection string) ([]Snapshot, error) {
	docs, err := s.load(ctx, collection)
	if err != nil {
		return nil, err
	}
	return toSnapshots(docs), nil
}

func (s *GORMStore) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	s.notifyMu.Lock()
	docs, err := s.load(ctx, collection)
	if err != nil {
		s.notifyMu.Unlock()
		return nil, err
	}
	sub, err := s.feed.subscribe(ctx, collection, toSnapshots(docs))
	s.notifyMu.Unlock()
	if err != nil {
		return nil, err
	}

	if s.pollInterval > 0 {
		go s.poll(ctx, sub, fingerprint(docs))
	}
	return sub, nil
}

func (s *GORMStore) ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error {
	return s.updateArray(ctx, collection, id, field, true, values)
}

func (s *GORMStore) ArrayRemove(ctx context.Context, collection, id, field string, values ...any) error {
	return s.updateArray(ctx, collection, id, field, false, values)
}

func (s *GORMStore) updateArray(ctx context.Context, collection, id, field string, union bool, values []any) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		// sqlite serialises writers on its own and has no FOR UPDATE.
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var doc Document
		if err := q.First(&doc, "collection = ? AND id = ?", collection, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
			}
			return err
		}

		next, err := applyArray([]byte(doc.Data), field, union, values)
		if err != nil {
			return err
		}
		return tx.Model(&Document{}).
			Where("collection = ? AND id = ?", collection, id).
			Updates(map[string]any{"data": string(next), "updated_at": time.Now()}).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update %s/%s.%s: %w", collection, id, field, err)
	}
	s.notify(ctx, collection)
	return nil
}

func (s *GORMStore) Close() error {
	s.feed.close()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GORMStore) load(ctx context.Context, collection string) ([]Document, error) {
	var docs []Document
	if err := s.db.WithContext(ctx).Where("collection = ?", collection).Order("id").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", collection, err)
	}
	return docs, nil
}

// notify republishes the collection after a local write. A failed reload is
// logged; subscribers catch up on the next write or poll.
func (s *GORMStore) notify(ctx context.Context, collection string) {
	if s.feed.count(collection) == 0 {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	docs, err := s.load(context.WithoutCancel(ctx), collection)
	if err != nil {
		s.log.Warn("failed to reload collection for subscribers", zap.String("collection", collection), zap.Error(err))
		return
	}
	s.feed.publish(collection, toSnapshots(docs))
}

// poll picks up writes made by other processes. A failed load ends the
// subscription with that error.
func (s *GORMStore) poll(ctx context.Context, sub *localSub, last string) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sub.mu.Lock()
		ended := sub.ended
		sub.mu.Unlock()
		if ended {
			return
		}

		s.notifyMu.Lock()
		docs, err := s.load(ctx, sub.collection)
		if err != nil {
			s.notifyMu.Unlock()
			if ctx.Err() == nil {
				sub.end(err)
			}
			return
		}
		if fp := fingerprint(docs); fp != last {
			last = fp
			s.feed.publishTo(sub, toSnapshots(docs))
		}
		s.notifyMu.Unlock()
	}
}

func toSnapshots(docs []Document) []Snapshot {
	out := make([]Snapshot, 0, len(docs))
	for _, d := range docs {
		out = append(out, jsonSnapshot{id: d.ID, data: []byte(d.Data)})
	}
	return out
}

func fingerprint(docs []Document) string {
	var b strings.Builder
	for _, d := range docs {
		b.WriteString(d.ID)
		b.WriteByte('@')
		b.WriteString(d.UpdatedAt.UTC().Format(time.RFC3339Nano))
		b.WriteByte(';')
	}
	return b.String()
}

func validField(field string) bool {
	if field == "" {
		return false
	}
	for _, r := range field {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
