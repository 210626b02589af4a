package downloader

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ZhipengHe/nemdatatools/internal/cache"
	"github.com/ZhipengHe/nemdatatools/internal/catalog"
	"github.com/ZhipengHe/nemdatatools/internal/config"
	"github.com/ZhipengHe/nemdatatools/internal/connector"
	"github.com/ZhipengHe/nemdatatools/internal/normalize"
	"github.com/ZhipengHe/nemdatatools/internal/storage"
	"github.com/ZhipengHe/nemdatatools/internal/timeutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Request describes one data download. Dates are AEMO format strings,
// matching the request surface of the package.
type Request struct {
	DataType  string
	StartDate string
	EndDate   string
	Regions   []string
	Overwrite bool
}

// logErrStack logs error with stack trace.
func logErrStack(err error) {
	log.Error().Stack().Err(errors.WithStack(err)).Msg("")
}

// Start downloads a configured dataset and commits it to the configured
// storage systems.
// If any error occurs, retry the dataset with a time gap till it reaches
// a configured number of retry.
// Retry counter will be reset back to zero if the elapsed time since the last retry is greater than the configured one.
func Start(appCtx context.Context, dataset config.Dataset, dlCfg *config.Download, connCfg *config.Connection, cacheMgr *cache.Manager) error {
	var retryCount int
	lastRetryTime := time.Now()

	for {
		err := newNEMWeb(appCtx, dataset, dlCfg, connCfg, cacheMgr)
		if err == nil {
			return nil
		}
		log.Error().Err(err).Str("dataset", dataset.DataType).Msg("error occurred")
		if dlCfg.Retry.Number == 0 {
			return errors.New("not able to download from nemweb archive. please check the log for details")
		}
		if dlCfg.Retry.ResetSec == 0 || time.Since(lastRetryTime).Seconds() < float64(dlCfg.Retry.ResetSec) {
			retryCount++
		} else {
			retryCount = 1
		}
		lastRetryTime = time.Now()
		if retryCount > dlCfg.Retry.Number {
			return fmt.Errorf("not able to download from nemweb archive even after %v retry. please check the log for details", dlCfg.Retry.Number)
		}

		log.Error().Str("dataset", dataset.DataType).Int("retry", retryCount).Msg(fmt.Sprintf("retrying download in %v seconds", dlCfg.Retry.GapSec))
		tick := time.NewTicker(time.Duration(dlCfg.Retry.GapSec) * time.Second)
		select {
		case <-tick.C:
			tick.Stop()

		// Return, if there is any error from another dataset.
		case <-appCtx.Done():
			tick.Stop()
			log.Error().Str("dataset", dataset.DataType).Msg("ctx canceled, return from Start")
			return appCtx.Err()
		}
	}
}

// nemweb holds the state of one dataset download pipeline.
type nemweb struct {
	rest       *connector.REST
	dlCfg      *config.Download
	connCfg    *config.Connection
	cache      *cache.Manager
	ter        *storage.Terminal
	mysql      *storage.MySQL
	es         *storage.ElasticSearch
	pg         *storage.Postgres
	commitName string
}

func newNEMWeb(appCtx context.Context, dataset config.Dataset, dlCfg *config.Download, connCfg *config.Connection, cacheMgr *cache.Manager) error {

	// If any storage commit function fails, force all the other functions to stop and return.
	nemErrGroup, ctx := errgroup.WithContext(appCtx)

	n := nemweb{dlCfg: dlCfg, connCfg: connCfg, cache: cacheMgr}

	rest, err := connector.GetREST()
	if err != nil {
		logErrStack(err)
		return err
	}
	n.rest = rest

	n.commitName = dataset.CommitName
	if n.commitName == "" {
		n.commitName = dataset.DataType
	}
	for _, str := range dataset.Storages {
		switch str {
		case "terminal":
			n.ter = storage.GetTerminal()
		case "mysql":
			n.mysql = storage.GetMySQL()
		case "elastic_search":
			n.es = storage.GetElasticSearch()
		case "postgres":
			n.pg = storage.GetPostgres()
		}
	}

	records, err := n.FetchData(ctx, Request{
		DataType:  dataset.DataType,
		StartDate: dataset.StartDate,
		EndDate:   dataset.EndDate,
		Regions:   dataset.Regions,
		Overwrite: dataset.Overwrite,
	})
	if err != nil {
		return err
	}

	nemErrGroup.Go(func() error {
		return n.commit(ctx, records)
	})

	return nemErrGroup.Wait()
}

// commit buffers records in memory and flushes them to each configured
// storage system at its configured commit buffer size.
func (n *nemweb) commit(ctx context.Context, records []storage.Record) error {
	var (
		terRecords   []storage.Record
		mysqlRecords []storage.Record
		esRecords    []storage.Record
		pgRecords    []storage.Record
	)
	for i := range records {
		record := records[i]
		record.CommitName = n.commitName

		if n.ter != nil {
			terRecords = append(terRecords, record)
			if len(terRecords) == n.connCfg.Terminal.RecordCommitBuf {
				n.ter.CommitRecords(terRecords)
				terRecords = nil
			}
		}
		if n.mysql != nil {
			mysqlRecords = append(mysqlRecords, record)
			if len(mysqlRecords) == n.connCfg.MySQL.RecordCommitBuf {
				if err := n.mysql.CommitRecords(ctx, mysqlRecords); err != nil {
					if !errors.Is(err, ctx.Err()) {
						logErrStack(err)
					}
					return err
				}
				mysqlRecords = nil
			}
		}
		if n.es != nil {
			esRecords = append(esRecords, record)
			if len(esRecords) == n.connCfg.ES.RecordCommitBuf {
				if err := n.es.CommitRecords(ctx, esRecords); err != nil {
					if !errors.Is(err, ctx.Err()) {
						logErrStack(err)
					}
					return err
				}
				esRecords = nil
			}
		}
		if n.pg != nil {
			pgRecords = append(pgRecords, record)
			if len(pgRecords) == n.connCfg.Postgres.RecordCommitBuf {
				if err := n.pg.CommitRecords(ctx, pgRecords); err != nil {
					if !errors.Is(err, ctx.Err()) {
						logErrStack(err)
					}
					return err
				}
				pgRecords = nil
			}
		}
	}

	// Flush the remainder.
	if n.ter != nil && len(terRecords) > 0 {
		n.ter.CommitRecords(terRecords)
	}
	if n.mysql != nil && len(mysqlRecords) > 0 {
		if err := n.mysql.CommitRecords(ctx, mysqlRecords); err != nil {
			if !errors.Is(err, ctx.Err()) {
				logErrStack(err)
			}
			return err
		}
	}
	if n.es != nil && len(esRecords) > 0 {
		if err := n.es.CommitRecords(ctx, esRecords); err != nil {
			if !errors.Is(err, ctx.Err()) {
				logErrStack(err)
			}
			return err
		}
	}
	if n.pg != nil && len(pgRecords) > 0 {
		if err := n.pg.CommitRecords(ctx, pgRecords); err != nil {
			if !errors.Is(err, ctx.Err()) {
				logErrStack(err)
			}
			return err
		}
	}
	return nil
}

// FetchData downloads data for the request and returns it in the uniform
// record form. The local cache is consulted first unless the request asks
// for an overwrite; fresh downloads are normalized, region filtered and
// cached before returning.
func (n *nemweb) FetchData(ctx context.Context, req Request) ([]storage.Record, error) {
	dt, err := catalog.Lookup(req.DataType)
	if err != nil {
		logErrStack(err)
		return nil, err
	}
	if err = catalog.ValidateRegions(req.Regions); err != nil {
		logErrStack(err)
		return nil, err
	}
	start, err := timeutil.ParseDate(req.StartDate)
	if err != nil {
		logErrStack(err)
		return nil, err
	}
	end, err := timeutil.ParseDate(req.EndDate)
	if err != nil {
		logErrStack(err)
		return nil, err
	}
	if end.Before(start) {
		err = errors.Errorf("end date %v is before start date %v", req.EndDate, req.StartDate)
		logErrStack(err)
		return nil, err
	}

	key := cache.Key(dt.Name, start, end, req.Regions)
	if !req.Overwrite {
		if records, _, ok := n.cache.Get(key); ok {
			log.Info().Str("data_type", dt.Name).Str("key", key).Int("records", len(records)).Msg("cache hit")
			return records, nil
		}
	}

	base := n.dlCfg.ArchiveBaseURL
	if base == "" {
		base = config.MMSDMArchiveBaseURL
	}
	resources, err := catalog.Resolve(base, dt.Name, start, end)
	if err != nil {
		logErrStack(err)
		return nil, err
	}

	var (
		records []storage.Record
		sources []string
	)
	for i, resource := range resources {
		if i > 0 && n.dlCfg.DelaySec > 0 {
			tick := time.NewTicker(time.Duration(n.dlCfg.DelaySec) * time.Second)
			select {
			case <-tick.C:
				tick.Stop()
			case <-ctx.Done():
				tick.Stop()
				return nil, ctx.Err()
			}
		}
		monthly, err := n.fetchResource(ctx, resource, dt)
		if err != nil {
			if !errors.Is(err, ctx.Err()) {
				logErrStack(err)
			}
			return nil, err
		}
		records = append(records, monthly...)
		sources = append(sources, resource.URL)
	}

	records = normalize.FilterRegions(records, req.Regions)
	records = normalize.Standardize(records)
	records = normalize.TrimRange(records, start, timeutil.DayEnd(end))

	err = n.cache.Put(key, &cache.Manifest{
		DataType:  dt.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Regions:   req.Regions,
		Sources:   sources,
	}, records)
	if err != nil {
		logErrStack(err)
		return nil, err
	}
	log.Info().Str("data_type", dt.Name).Str("key", key).Int("records", len(records)).Msg("dataset downloaded")
	return records, nil
}

// fetchResource downloads one monthly archive zip and parses the report
// member of the requested table.
func (n *nemweb) fetchResource(ctx context.Context, resource catalog.Resource, dt catalog.DataType) ([]storage.Record, error) {
	req, err := n.rest.Request(ctx, resource.URL)
	if err != nil {
		return nil, err
	}
	resp, err := n.rest.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Errorf("archive file not published : %v", resource.URL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("code : %v, status : %v, url : %v", resp.StatusCode, resp.Status, resource.URL)
	}

	// Zip central directory lives at the end of the file, so the body is
	// read fully before extraction.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read archive body")
	}
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, errors.Wrapf(err, "open archive zip : %v", resource.FileName)
	}
	for _, member := range zr.File {
		if !strings.HasSuffix(strings.ToUpper(member.Name), ".CSV") {
			continue
		}
		mr, err := member.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "open archive member : %v", member.Name)
		}
		records, err := normalize.ParseReport(mr, dt)
		mr.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "parse archive member : %v", member.Name)
		}
		log.Debug().Str("data_type", dt.Name).Str("file", member.Name).Int("records", len(records)).Msg("archive member parsed")
		return records, nil
	}
	return nil, errors.Errorf("archive contains no csv report : %v", resource.FileName)
}

// FetchData downloads data for the request through a one-off pipeline with
// no storage commits. This is the programmatic surface of the package.
func FetchData(ctx context.Context, req Request, dlCfg *config.Download, cacheMgr *cache.Manager) ([]storage.Record, error) {
	rest, err := connector.GetREST()
	if err != nil {
		logErrStack(err)
		return nil, err
	}
	n := nemweb{rest: rest, dlCfg: dlCfg, cache: cacheMgr}
	return n.FetchData(ctx, req)
}

// CheckConnection checks the connection to the NEMWeb server, or to the
// configured archive override when one is set.
func CheckConnection(ctx context.Context, dlCfg *config.Download) error {
	rest, err := connector.GetREST()
	if err != nil {
		logErrStack(err)
		return err
	}
	url := dlCfg.ArchiveBaseURL
	if url == "" {
		url = config.NEMWebBaseURL
	}
	if err = rest.Ping(ctx, url); err != nil {
		logErrStack(err)
		return err
	}
	return nil
}
