package subscribers

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/icewatch/ticketwatch/internal/crypto"
)

// subscriberRow is the gorm model of the subscribers table
type subscriberRow struct {
	ChatID       int64 `gorm:"primaryKey;autoIncrement:false"`
	Name         string
	SubscribedAt time.Time `gorm:"index"`
}

func (subscriberRow) TableName() string { return "subscribers" }

// SQLRegistry stores subscribers in a SQL table through gorm
type SQLRegistry struct {
	db  *gorm.DB
	enc *crypto.Encryptor
}

// OpenSQLite opens (and migrates) a SQLite database at path
func OpenSQLite(path string, enc *crypto.Encryptor) (*SQLRegistry, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	return NewSQLRegistry(db, enc)
}

// NewSQLRegistry uses an already opened database, creating the table if needed
func NewSQLRegistry(db *gorm.DB, enc *crypto.Encryptor) (*SQLRegistry, error) {
	if err := db.AutoMigrate(&subscriberRow{}); err != nil {
		return nil, fmt.Errorf("migrating subscribers table: %w", err)
	}
	return &SQLRegistry{db: db, enc: enc}, nil
}

func (r *SQLRegistry) Add(ctx context.Context, s Subscriber) (bool, error) {
	s = stamp(s)
	name, err := sealName(r.enc, s.Name)
	if err != nil {
		return false, err
	}

	row := subscriberRow{ChatID: s.ChatID, Name: name, SubscribedAt: s.SubscribedAt}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("inserting subscriber: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *SQLRegistry) Remove(ctx context.Context, chatID int64) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&subscriberRow{}, chatID)
	if res.Error != nil {
		return false, fmt.Errorf("deleting subscriber: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *SQLRegistry) List(ctx context.Context) ([]Subscriber, error) {
	var rows []subscriberRow
	if err := r.db.WithContext(ctx).Order("subscribed_at, chat_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing subscribers: %w", err)
	}

	out := make([]Subscriber, 0, len(rows))
	for _, row := range rows {
		name, err := openName(r.enc, row.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, Subscriber{ChatID: row.ChatID, Name: name, SubscribedAt: row.SubscribedAt})
	}
	return out, nil
}

func (r *SQLRegistry) Count(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&subscriberRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting subscribers: %w", err)
	}
	return int(n), nil
}

// Close releases the underlying connection pool
func (r *SQLRegistry) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
