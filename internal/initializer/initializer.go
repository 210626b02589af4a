package initializer

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ZhipengHe/nemdatatools/internal/batch"
	"github.com/ZhipengHe/nemdatatools/internal/cache"
	"github.com/ZhipengHe/nemdatatools/internal/catalog"
	"github.com/ZhipengHe/nemdatatools/internal/config"
	"github.com/ZhipengHe/nemdatatools/internal/connector"
	"github.com/ZhipengHe/nemdatatools/internal/downloader"
	"github.com/ZhipengHe/nemdatatools/internal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"golang.org/x/sync/errgroup"
)

// Start will initialize various required systems and then execute the app.
func Start(mainCtx context.Context, cfg *config.Config) error {

	// Setting up logger.
	// If the path given in the config for logging ends with .log then create a log file with the same name and
	// write log messages to it. Otherwise, create a new log file with a timestamp attached to it's name in the given path.
	var (
		logFile *os.File
		err     error
	)
	if strings.HasSuffix(cfg.Log.FilePath, ".log") {
		logFile, err = os.OpenFile(cfg.Log.FilePath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0666)
		if err != nil {
			return fmt.Errorf("not able to open or create log file: %v", cfg.Log.FilePath)
		}
	} else {
		logFile, err = os.Create(cfg.Log.FilePath + "_" + strconv.Itoa(int(time.Now().Unix())) + ".log")
		if err != nil {
			return fmt.Errorf("not able to create log file: %v", cfg.Log.FilePath+"_"+strconv.Itoa(int(time.Now().Unix()))+".log")
		}
	}
	defer logFile.Close()

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	switch cfg.Log.Level {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	fileLogger := zerolog.New(logFile).With().Timestamp().Logger()
	log.Logger = fileLogger
	log.Info().Msg("logger setup is done")

	// Establish connections to different storage systems, the REST
	// connector and also validate few user defined config values.
	var (
		terStr bool
		sqlStr bool
		esStr  bool
		pgStr  bool
	)
	for _, dataset := range cfg.Datasets {
		if _, err = catalog.Lookup(dataset.DataType); err != nil {
			log.Error().Stack().Err(errors.WithStack(err)).Msg("")
			return err
		}
		if err = catalog.ValidateRegions(dataset.Regions); err != nil {
			log.Error().Stack().Err(errors.WithStack(err)).Msg("")
			return err
		}
		for _, str := range dataset.Storages {
			switch str {
			case "terminal":
				if !terStr {
					_ = storage.InitTerminal(os.Stdout)
					terStr = true
					log.Info().Msg("terminal connected")
				}
			case "mysql":
				if !sqlStr {
					_, err = storage.InitMySQL(&cfg.Connection.MySQL)
					if err != nil {
						err = errors.Wrap(err, "mysql connection")
						log.Error().Stack().Err(errors.WithStack(err)).Msg("")
						return err
					}
					sqlStr = true
					log.Info().Msg("mysql connected")
				}
			case "elastic_search":
				if !esStr {
					_, err = storage.InitElasticSearch(&cfg.Connection.ES)
					if err != nil {
						err = errors.Wrap(err, "elastic search connection")
						log.Error().Stack().Err(errors.WithStack(err)).Msg("")
						return err
					}
					esStr = true
					log.Info().Msg("elastic search connected")
				}
			case "postgres":
				if !pgStr {
					_, err = storage.InitPostgres(mainCtx, &cfg.Connection.Postgres)
					if err != nil {
						err = errors.Wrap(err, "postgres connection")
						log.Error().Stack().Err(errors.WithStack(err)).Msg("")
						return err
					}
					pgStr = true
					log.Info().Msg("postgres connected")
				}
			default:
				err = errors.Errorf("unknown storage system : %v", str)
				log.Error().Stack().Err(errors.WithStack(err)).Msg("")
				return err
			}
		}
	}
	for _, table := range cfg.Batch.Tables {
		if _, err = catalog.Lookup(table); err != nil {
			log.Error().Stack().Err(errors.WithStack(err)).Msg("")
			return err
		}
	}
	if err = catalog.ValidateRegions(cfg.Batch.Regions); err != nil {
		log.Error().Stack().Err(errors.WithStack(err)).Msg("")
		return err
	}
	if cfg.Download.DelaySec < 0 {
		err = errors.New("delay_sec should not be negative")
		log.Error().Stack().Err(errors.WithStack(err)).Msg("")
		return err
	}

	_ = connector.InitREST(&cfg.Connection.REST)
	log.Info().Msg("REST connection setup is done")

	if err = downloader.CheckConnection(mainCtx, &cfg.Download); err != nil {
		err = errors.Wrap(err, "nemweb connection")
		log.Error().Stack().Err(errors.WithStack(err)).Msg("")
		return err
	}
	log.Info().Msg("nemweb connected")

	cacheMgr, err := cache.NewManager(cfg.Cache.Dir)
	if err != nil {
		err = errors.Wrap(err, "cache setup")
		log.Error().Stack().Err(errors.WithStack(err)).Msg("")
		return err
	}
	log.Info().Str("dir", cacheMgr.Dir()).Msg("cache setup is done")

	// Start each dataset download and the configured batch commands. If
	// any dataset fails after retry, force all the other datasets to stop
	// and exit the app.
	appErrGroup, appCtx := errgroup.WithContext(mainCtx)

	for _, dataset := range cfg.Datasets {
		dataset := dataset
		appErrGroup.Go(func() error {
			return downloader.Start(appCtx, dataset, &cfg.Download, &cfg.Connection, cacheMgr)
		})
	}

	if len(cfg.Batch.Tables) > 0 {
		appErrGroup.Go(func() error {
			return batch.Start(appCtx, &cfg.Batch, &cfg.Download, cacheMgr)
		})
	}

	err = appErrGroup.Wait()
	if err != nil {
		log.Error().Msg("exiting the app")
		return err
	}
	return nil
}
