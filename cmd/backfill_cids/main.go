package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/knowledge-registry/internal/app"
	types "github.com/yungbote/knowledge-registry/internal/domain"
	"github.com/yungbote/knowledge-registry/internal/identifier"
	"github.com/yungbote/knowledge-registry/internal/platform/dbctx"
)

type ridList []string

func (l *ridList) String() string { return strings.Join(*l, ",") }
func (l *ridList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var sources ridList
	var dryRun bool
	var limit int
	var workers int
	flag.Var(&sources, "source", "source_rid to backfill (repeatable; default all)")
	flag.BoolVar(&dryRun, "dry-run", false, "report planned updates without writing")
	flag.IntVar(&limit, "limit", 0, "max rows to scan (0 = all)")
	flag.IntVar(&workers, "workers", 4, "concurrent hash workers")
	flag.Parse()

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	items := application.Repos.ContentItems

	rows, err := items.ListMissingCID(dbc, limit)
	if err != nil {
		fmt.Printf("list rows missing cid: %v\n", err)
		os.Exit(1)
	}
	if len(sources) > 0 {
		want := make(map[string]bool, len(sources))
		for _, s := range sources {
			want[s] = true
		}
		filtered := rows[:0]
		for _, row := range rows {
			if want[row.SourceRID] {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	if len(rows) == 0 {
		fmt.Println("no content rows missing a cid")
		return
	}

	if workers < 1 {
		workers = 1
	}
	var updated, collisions, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, row := range rows {
		row := row // per-iteration copy; required while go.mod targets go < 1.22
		g.Go(func() error {
			data, err := row.Bytes()
			if err != nil {
				failed.Add(1)
				fmt.Printf("decode %s: %v\n", row.RID, err)
				return nil
			}
			cid := identifier.GenerateContentCID(data)
			wdbc := dbctx.Context{Ctx: gctx}

			// Never overwrite into an existing (source, cid) pair; that row
			// is the canonical copy of these bytes.
			existing, err := items.GetBySourceCID(wdbc, row.SourceRID, cid)
			if err != nil {
				failed.Add(1)
				fmt.Printf("lookup %s: %v\n", row.RID, err)
				return nil
			}
			if existing != nil && existing.RID != row.RID {
				collisions.Add(1)
				fmt.Printf("collision: %s would duplicate %s under %s (cid %s)\n", row.RID, existing.RID, row.SourceRID, cid)
				return nil
			}
			if dryRun {
				updated.Add(1)
				fmt.Printf("[dry-run] %s -> %s\n", row.RID, cid)
				return nil
			}
			ok, err := items.UpdateCID(wdbc, row.RID, cid)
			if err != nil {
				if types.IsDuplicate(err) {
					collisions.Add(1)
					fmt.Printf("collision: %s lost update race under %s (cid %s)\n", row.RID, row.SourceRID, cid)
					return nil
				}
				failed.Add(1)
				fmt.Printf("update %s: %v\n", row.RID, err)
				return nil
			}
			if ok {
				updated.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Printf("backfill aborted: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("done; scanned=%d updated=%d collisions=%d failed=%d\n", len(rows), updated.Load(), collisions.Load(), failed.Load())
}
