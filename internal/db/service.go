package db

import (
  "fmt"

  "gorm.io/gorm"

  "github.com/yungbote/knowledge-registry/internal/platform/envutil"
  "github.com/yungbote/knowledge-registry/internal/platform/logger"
)

// Service is the storage bootstrap: one backing database plus schema migration.
type Service interface {
  DB() *gorm.DB
  AutoMigrateAll() error
}

// New picks the backend from STORAGE_DRIVER: "postgres" (default) or "sqlite".
func New(log *logger.Logger) (Service, error) {
  driver := envutil.Str("STORAGE_DRIVER", "postgres")
  switch driver {
  case "postgres":
    return NewPostgresService(log)
  case "sqlite":
    return NewSQLiteService(log)
  default:
    return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", driver)
  }
}
