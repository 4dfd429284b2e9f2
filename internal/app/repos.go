package app

import (
	"gorm.io/gorm"

	repos "github.com/yungbote/knowledge-registry/internal/data/repos/knowledge"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
)

type Repos struct {
	Sources      repos.SourceRepo
	ContentItems repos.ContentItemRepo
	Statuses     repos.ProcessingStatusRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Sources:      repos.NewSourceRepo(db, log),
		ContentItems: repos.NewContentItemRepo(db, log),
		Statuses:     repos.NewProcessingStatusRepo(db, log),
	}
}
