package db

import (
  "fmt"

  "gorm.io/driver/sqlite"
  "gorm.io/gorm"

  types "github.com/yungbote/knowledge-registry/internal/domain"
  "github.com/yungbote/knowledge-registry/internal/platform/envutil"
  "github.com/yungbote/knowledge-registry/internal/platform/logger"
)

// SQLiteService backs local development and single-node deployments. The
// schema is identical to postgres; unique indexes carry the dedup contract.
type SQLiteService struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSQLiteService(log *logger.Logger) (*SQLiteService, error) {
  serviceLog := log.With("service", "SQLiteService")

  path := envutil.Str("SQLITE_PATH", "knowledge_registry.db")

  serviceLog.Info("Opening SQLite database...", "path", path)
  db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    serviceLog.Error("Failed to open SQLite database", "error", err)
    return nil, fmt.Errorf("failed to open sqlite database: %w", err)
  }

  if err := db.Exec(`PRAGMA foreign_keys = ON`).Error; err != nil {
    return nil, fmt.Errorf("failed to enable sqlite foreign keys: %w", err)
  }

  return &SQLiteService{db: db, log: serviceLog}, nil
}

func (s *SQLiteService) AutoMigrateAll() error {
  s.log.Info("Auto migrating sqlite tables...")
  err := s.db.AutoMigrate(
    &types.Source{},
    &types.ContentItem{},
    &types.ProcessingStatus{},
  )
  if err != nil {
    s.log.Error("Auto migration failed for sqlite tables", "error", err)
    return err
  }
  return nil
}

func (s *SQLiteService) DB() *gorm.DB {
  return s.db
}
