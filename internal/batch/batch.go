package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ZhipengHe/nemdatatools/internal/cache"
	"github.com/ZhipengHe/nemdatatools/internal/config"
	"github.com/ZhipengHe/nemdatatools/internal/downloader"
	"github.com/ZhipengHe/nemdatatools/internal/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// FetchFunc downloads one data request. Extracted as a function type so
// batch runs can be tested without a live archive.
type FetchFunc func(ctx context.Context, req downloader.Request) ([]storage.Record, error)

// Result holds the outcome of one batch download task.
type Result struct {
	Records []storage.Record
	Err     error
}

// Start runs the configured batch download commands, prefetching data
// into the local cache. Tables are downloaded for the configured date
// range one by one with the politeness delay, then in full for each
// configured year in parallel bounded by the configured worker count.
// Per-table failures are logged and recorded in the results; only
// context cancellation aborts the run.
func Start(ctx context.Context, batchCfg *config.Batch, dlCfg *config.Download, cacheMgr *cache.Manager) error {
	fetch := func(ctx context.Context, req downloader.Request) ([]storage.Record, error) {
		return downloader.FetchData(ctx, req, dlCfg, cacheMgr)
	}

	if batchCfg.StartDate != "" {
		results := DownloadMultipleTables(ctx, fetch, batchCfg.Tables, batchCfg.StartDate, batchCfg.EndDate, batchCfg.Regions, dlCfg.DelaySec)
		var failed int
		for _, result := range results {
			if result.Err != nil {
				failed++
			}
		}
		log.Info().Int("tables", len(results)).Int("failed", failed).Msg("batch table download completed")
	}

	if len(batchCfg.Years) > 0 {
		results := DownloadYearlyData(ctx, fetch, batchCfg.Years, batchCfg.Tables, dlCfg.MaxWorkers)
		var failed int
		for _, tables := range results {
			for _, result := range tables {
				if result.Err != nil {
					failed++
				}
			}
		}
		log.Info().Int("years", len(results)).Int("failed", failed).Msg("batch yearly download completed")
	}

	return ctx.Err()
}

// DownloadMultipleTables downloads the given tables one by one for the
// same date range and regions, with a politeness delay between tables.
// A failed table is recorded in its result and does not stop the rest.
func DownloadMultipleTables(ctx context.Context, fetch FetchFunc, tables []string, startDate, endDate string, regions []string, delaySec int) map[string]Result {
	results := make(map[string]Result, len(tables))
	for i, table := range tables {
		if i > 0 && delaySec > 0 {
			tick := time.NewTicker(time.Duration(delaySec) * time.Second)
			select {
			case <-tick.C:
				tick.Stop()
			case <-ctx.Done():
				tick.Stop()
				results[table] = Result{Err: ctx.Err()}
				return results
			}
		}
		records, err := fetch(ctx, downloader.Request{
			DataType:  table,
			StartDate: startDate,
			EndDate:   endDate,
			Regions:   regions,
		})
		if err != nil {
			log.Error().Err(err).Str("table", table).Msg("table download failed")
		}
		results[table] = Result{Records: records, Err: err}
	}
	return results
}

// DownloadYearlyData downloads full calendar years of the given tables in
// parallel, bounded by maxWorkers. Per-task failures are recorded in the
// results, not propagated; only context cancellation stops the whole run.
func DownloadYearlyData(ctx context.Context, fetch FetchFunc, years []int, tables []string, maxWorkers int) map[int]map[string]Result {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	results := make(map[int]map[string]Result, len(years))
	for _, year := range years {
		results[year] = make(map[string]Result, len(tables))
	}

	var (
		mu  sync.Mutex
		sem = make(chan struct{}, maxWorkers)
	)
	taskGroup, taskCtx := errgroup.WithContext(ctx)
	for _, year := range years {
		for _, table := range tables {
			year, table := year, table
			taskGroup.Go(func() error {
				select {
				case sem <- struct{}{}:
				case <-taskCtx.Done():
					mu.Lock()
					results[year][table] = Result{Err: taskCtx.Err()}
					mu.Unlock()
					return taskCtx.Err()
				}
				defer func() { <-sem }()

				records, err := fetch(taskCtx, downloader.Request{
					DataType:  table,
					StartDate: fmt.Sprintf("%d/01/01", year),
					EndDate:   fmt.Sprintf("%d/12/31", year),
				})
				if err != nil {
					log.Error().Err(err).Int("year", year).Str("table", table).Msg("yearly download failed")
				} else {
					log.Info().Int("year", year).Str("table", table).Int("records", len(records)).Msg("yearly download completed")
				}
				mu.Lock()
				results[year][table] = Result{Records: records, Err: err}
				mu.Unlock()

				// Task errors are recorded, not returned: returning would
				// cancel the sibling tasks through the group context.
				return nil
			})
		}
	}
	_ = taskGroup.Wait()
	return results
}
