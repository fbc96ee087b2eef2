// Command btreedb wires a config file to a pager and a BTree, optionally
// starting the periodic rebuild scheduler, and reports basic index stats.
// It intentionally has no statement parser or interactive loop: feeding
// the tree is the job of whatever sits on top of this package.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/kvindex/btreedb/internal/config"
	"github.com/kvindex/btreedb/internal/maintenance"
	"github.com/kvindex/btreedb/internal/storage/pager"
)

var (
	flagConfig   = flag.String("config", "", "path to a YAML config file (defaults built in if omitted)")
	flagTraverse = flag.Bool("traverse", false, "print a level-order page-id walk before waiting for shutdown")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *flagConfig != "" {
		loaded, err := config.Load(*flagConfig)
		if err != nil {
			log.Fatalf("btreedb: %v", err)
		}
		cfg = loaded
	}

	p, closeFn, err := openPager(cfg)
	if err != nil {
		log.Fatalf("btreedb: open pager: %v", err)
	}
	defer closeFn()

	tree, err := pager.NewBTree(cfg.Branch, cfg.Unique, p)
	if err != nil {
		log.Fatalf("btreedb: new tree: %v", err)
	}

	var sched *maintenance.Scheduler
	if cfg.RebuildSchedule != "" {
		sched = maintenance.New(tree, log.Default())
		if err := sched.Start(cfg.RebuildSchedule); err != nil {
			log.Fatalf("btreedb: start scheduler: %v", err)
		}
		defer sched.Stop()
		log.Printf("btreedb: rebuild scheduler running on %q", cfg.RebuildSchedule)
	}

	printStats(p)

	if *flagTraverse {
		printTraversal(tree)
	}

	ctx := make(chan os.Signal, 1)
	signal.Notify(ctx, os.Interrupt, syscall.SIGTERM)
	<-ctx
	log.Print("btreedb: shutting down")
}

func openPager(cfg config.Config) (pager.Pager, func(), error) {
	if cfg.PagePath == "" {
		p := pager.NewMemPager()
		return p, func() {}, nil
	}
	fp, err := pager.OpenFilePager(cfg.PagePath, pager.FilePagerConfig{
		WriteBufferPages: cfg.WriteBufferPages,
		ReadCachePages:   cfg.ReadCachePages,
	})
	if err != nil {
		return nil, nil, err
	}
	return fp, func() { fp.Close() }, nil
}

func printTraversal(tree *pager.BTree) {
	levels, err := tree.Traverse()
	if err != nil {
		log.Printf("btreedb: traverse: %v", err)
		return
	}
	for i, level := range levels {
		ids := lo.Map(level, func(id pager.PageID, _ int) string {
			return fmt.Sprintf("%d", id)
		})
		fmt.Printf("level %d: %s\n", i, strings.Join(ids, ", "))
	}
}

func printStats(p pager.Pager) {
	switch v := p.(type) {
	case *pager.MemPager:
		fmt.Printf("btreedb: in-memory pager, %s pages resident\n", humanize.Comma(int64(v.Count())))
	case *pager.FilePager:
		s := v.Stats()
		fmt.Printf("btreedb: file pager %s, %s bytes on disk, %s buffered, %s cached\n",
			s.InstanceID,
			humanize.Comma(s.FileBytes),
			humanize.Comma(int64(s.BufferedPages)),
			humanize.Comma(int64(s.CachedPages)))
	}
}
