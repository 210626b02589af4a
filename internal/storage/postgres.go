package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ZhipengHe/nemdatatools/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is for connecting and inserting data to postgres.
type Postgres struct {
	Pool *pgxpool.Pool
	Cfg  *config.Postgres
}

var postgres Postgres

// connString builds a postgres connection string from config.
// Password is url-encoded to handle special characters.
func connString(cfg *config.Postgres) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}

// InitPostgres initializes postgres connection pool with configured values.
func InitPostgres(appCtx context.Context, cfg *config.Postgres) (*Postgres, error) {
	if postgres.Pool == nil {
		poolCfg, err := pgxpool.ParseConfig(connString(cfg))
		if err != nil {
			return nil, err
		}
		poolCfg.MinConns = int32(cfg.MinConns)
		poolCfg.MaxConns = int32(cfg.MaxConns)
		pool, err := pgxpool.NewWithConfig(appCtx, poolCfg)
		if err != nil {
			return nil, err
		}
		var ctx context.Context
		if cfg.ReqTimeoutSec > 0 {
			timeoutCtx, cancel := context.WithTimeout(appCtx, time.Duration(cfg.ReqTimeoutSec)*time.Second)
			ctx = timeoutCtx
			defer cancel()
		} else {
			ctx = context.Background()
		}
		if err = pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		postgres = Postgres{
			Pool: pool,
			Cfg:  cfg,
		}
	}
	return &postgres, nil
}

// GetPostgres returns already prepared postgres instance.
func GetPostgres() *Postgres {
	return &postgres
}

// CommitRecords batch inserts input record data to database.
// Each numeric field of a record becomes one row of the record table.
func (p *Postgres) CommitRecords(appCtx context.Context, data []Record) error {
	batch := &pgx.Batch{}
	for i := range data {
		record := &data[i]
		for _, name := range record.FieldNames() {
			batch.Queue(
				"INSERT INTO record(data_type, commit_name, region, field, value, timestamp, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
				record.DataType, record.CommitName, record.Region, name, record.Fields[name], record.Timestamp, time.Now().UTC(),
			)
		}
	}
	if batch.Len() == 0 {
		return nil
	}
	var ctx context.Context
	if p.Cfg.ReqTimeoutSec > 0 {
		timeoutCtx, cancel := context.WithTimeout(appCtx, time.Duration(p.Cfg.ReqTimeoutSec)*time.Second)
		ctx = timeoutCtx
		defer cancel()
	} else {
		ctx = context.Background()
	}
	return p.Pool.SendBatch(ctx, batch).Close()
}
