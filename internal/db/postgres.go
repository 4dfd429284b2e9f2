package db

import (
  "fmt"

  "gorm.io/driver/postgres"
  "gorm.io/gorm"

  types "github.com/yungbote/knowledge-registry/internal/domain"
  "github.com/yungbote/knowledge-registry/internal/platform/envutil"
  "github.com/yungbote/knowledge-registry/internal/platform/logger"
)

type PostgresService struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
  serviceLog := log.With("service", "PostgresService")

  postgresHost := envutil.Str("POSTGRES_HOST", "localhost")
  postgresPort := envutil.Str("POSTGRES_PORT", "5432")
  postgresUser := envutil.Str("POSTGRES_USER", "postgres")
  postgresPassword := envutil.Str("POSTGRES_PASSWORD", "")
  postgresName := envutil.Str("POSTGRES_NAME", "knowledge_registry")
  postgresSSLMode := envutil.Str("POSTGRES_SSLMODE", "disable")

  dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName, postgresSSLMode)

  serviceLog.Info("Connecting to Postgres...", "host", postgresHost, "db", postgresName)
  db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    serviceLog.Error("Failed to connect to Postgres", "error", err)
    return nil, fmt.Errorf("failed to connect to postgres: %w", err)
  }

  return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
  s.log.Info("Auto migrating postgres tables...")
  err := s.db.AutoMigrate(
    &types.Source{},
    &types.ContentItem{},
    &types.ProcessingStatus{},
  )
  if err != nil {
    s.log.Error("Auto migration failed for postgres tables", "error", err)
    return err
  }

  s.log.Info("Configuring foreign key relationships for postgres tables...")
  if err := s.db.Exec(`
    ALTER TABLE "content_item" DROP CONSTRAINT IF EXISTS "fk_content_item_source_rid";
    ALTER TABLE "content_item"
    ADD CONSTRAINT "fk_content_item_source_rid"
    FOREIGN KEY ("source_rid")
    REFERENCES "source"("source_rid")
  `).Error; err != nil {
    return fmt.Errorf("failed to add fk_content_item_source_rid: %w", err)
  }
  if err := s.db.Exec(`
    ALTER TABLE "processing_status" DROP CONSTRAINT IF EXISTS "fk_processing_status_content_rid";
    ALTER TABLE "processing_status"
    ADD CONSTRAINT "fk_processing_status_content_rid"
    FOREIGN KEY ("content_rid")
    REFERENCES "content_item"("rid")
  `).Error; err != nil {
    return fmt.Errorf("failed to add fk_processing_status_content_rid: %w", err)
  }
  return nil
}

func (s *PostgresService) DB() *gorm.DB {
  return s.db
}
