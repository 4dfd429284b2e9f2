package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	repos "github.com/yungbote/knowledge-registry/internal/data/repos/knowledge"
	types "github.com/yungbote/knowledge-registry/internal/domain"
	"github.com/yungbote/knowledge-registry/internal/platform/dbctx"
	"github.com/yungbote/knowledge-registry/internal/platform/envutil"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
)

// Reconciler reopens processing rows whose agent died mid-flight. A row stuck
// in processing past the visibility timeout goes back to pending so the next
// ingestion pass can pick it up. Failed rows are never touched; retrying
// those stays an operator decision.
type Reconciler struct {
	db       *gorm.DB
	log      *logger.Logger
	statuses repos.ProcessingStatusRepo

	interval time.Duration
	timeout  time.Duration
	batch    int
}

func NewReconciler(db *gorm.DB, baseLog *logger.Logger, statuses repos.ProcessingStatusRepo) *Reconciler {
	return &Reconciler{
		db:       db,
		log:      baseLog.With("component", "Reconciler"),
		statuses: statuses,
		interval: envutil.Seconds("RECONCILE_INTERVAL_SECONDS", 60*time.Second),
		timeout:  envutil.Seconds("RECONCILE_TIMEOUT_SECONDS", 15*time.Minute),
		batch:    envutil.Int("RECONCILE_BATCH", 100),
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := r.RunOnce(dbctx.Context{Ctx: ctx})
				if err != nil {
					r.log.Warn("Reconcile pass failed", "error", err)
					continue
				}
				if n > 0 {
					r.log.Info("Reopened stale processing rows", "count", n)
				}
			}
		}
	}()
}

// RunOnce performs a single reconcile pass and reports how many rows it
// reopened. The state guard on the transition makes the pass safe against
// rows that complete between the scan and the update.
func (r *Reconciler) RunOnce(dbc dbctx.Context) (int, error) {
	cutoff := time.Now().Add(-r.timeout)
	rows, err := r.statuses.ListStaleProcessing(dbc, cutoff, r.batch)
	if err != nil {
		return 0, err
	}

	reopened := 0
	for _, row := range rows {
		ok, err := r.statuses.TransitionFrom(dbc, row.ContentRID, row.AgentID,
			[]types.ProcessingState{types.StateProcessing},
			map[string]interface{}{
				"state":      types.StatePending,
				"started_at": nil,
			})
		if err != nil {
			r.log.Warn("Reopen failed", "content_rid", row.ContentRID, "agent_id", row.AgentID, "error", err)
			continue
		}
		if ok {
			reopened++
		}
	}
	return reopened, nil
}
