package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// credentialEntry is one persisted key/value pair of a namespace.
type credentialEntry struct {
	Service string `gorm:"primaryKey;size:255"`
	Name    string `gorm:"primaryKey;size:64"`
	Value   string `gorm:"not null"`
}

// TableName overrides the GORM default table name.
func (credentialEntry) TableName() string {
	return "credential_entries"
}

// SQLBackend stores entries in the credential_entries table, one row per key.
// Save runs in a transaction that replaces all rows of the namespace.
type SQLBackend struct {
	db     *gorm.DB
	closer func() error
}

// NewSQLBackend uses an existing GORM connection and migrates the table.
// The caller keeps ownership of db.
func NewSQLBackend(ctx context.Context, db *gorm.DB) (*SQLBackend, error) {
	if db == nil {
		return nil, errors.New("tokenstore: database is required")
	}
	if err := db.WithContext(ctx).AutoMigrate(&credentialEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &SQLBackend{db: db}, nil
}

// OpenSQLite opens (or creates) the SQLite database at dsn.
// Close releases the connection.
func OpenSQLite(ctx context.Context, dsn string) (*SQLBackend, error) {
	if dsn == "" {
		return nil, errors.New("tokenstore: sqlite dsn is required")
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	backend, err := NewSQLBackend(ctx, db)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}

	backend.closer = func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return backend, nil
}

// Load implements Backend.
func (b *SQLBackend) Load(ctx context.Context, service string) (map[string]string, error) {
	var rows []credentialEntry
	if err := b.db.WithContext(ctx).Where("service = ?", service).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	entries := make(map[string]string, len(rows))
	for _, row := range rows {
		entries[row.Name] = row.Value
	}
	return entries, nil
}

// Save implements Backend.
func (b *SQLBackend) Save(ctx context.Context, service string, entries map[string]string) error {
	rows := make([]credentialEntry, 0, len(entries))
	for name, value := range entries {
		rows = append(rows, credentialEntry{Service: service, Name: name, Value: value})
	}

	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("service = ?", service).Delete(&credentialEntry{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// Delete implements Backend.
func (b *SQLBackend) Delete(ctx context.Context, service string) error {
	return b.db.WithContext(ctx).Where("service = ?", service).Delete(&credentialEntry{}).Error
}

// Close closes the connection if the backend opened it.
func (b *SQLBackend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}
