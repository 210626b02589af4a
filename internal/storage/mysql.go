package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ZhipengHe/nemdatatools/internal/config"
)

// MySQL is for connecting and inserting data to mysql.
type MySQL struct {
	DB  *sql.DB
	Cfg *config.MySQL
}

var mysql MySQL

// Go time gives Z00:00, mysql timestamp needs +00:00 for UTC.
const mysqlTimestamp = "2006-01-02T15:04:05.999+00:00"

// InitMySQL initializes mysql connection with configured values.
func InitMySQL(cfg *config.MySQL) (*MySQL, error) {
	if mysql.DB == nil {
		dataSourceName := cfg.User + ":" + cfg.Password + cfg.URL + "/" + cfg.Schema
		db, err := sql.Open("mysql",
			dataSourceName)
		if err != nil {
			return nil, err
		}
		db.SetConnMaxLifetime(time.Second * time.Duration(cfg.ConnMaxLifetimeSec))
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)

		var ctx context.Context
		if cfg.ReqTimeoutSec > 0 {
			timeoutCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ReqTimeoutSec)*time.Second)
			ctx = timeoutCtx
			defer cancel()
		} else {
			ctx = context.Background()
		}
		err = db.PingContext(ctx)
		if err != nil {
			return nil, err
		}
		mysql = MySQL{
			DB:  db,
			Cfg: cfg,
		}
	}
	return &mysql, nil
}

// GetMySQL returns already prepared mysql instance.
func GetMySQL() *MySQL {
	return &mysql
}

// CommitRecords batch inserts input record data to database.
// Each numeric field of a record becomes one row of the record table.
func (m *MySQL) CommitRecords(appCtx context.Context, data []Record) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO record(data_type, commit_name, region, field, value, timestamp, created_at) VALUES ")
	first := true
	for i := range data {
		record := &data[i]
		for _, name := range record.FieldNames() {
			if first {
				first = false
			} else {
				sb.WriteString(",")
			}
			sb.WriteString(fmt.Sprintf("(\"%v\", \"%v\", \"%v\", \"%v\", %v, \"%v\", \"%v\")", record.DataType, record.CommitName, record.Region, name, record.Fields[name], record.Timestamp.Format(mysqlTimestamp), time.Now().UTC().Format(mysqlTimestamp)))
		}
	}
	if first {
		return nil
	}
	var ctx context.Context
	if m.Cfg.ReqTimeoutSec > 0 {
		timeoutCtx, cancel := context.WithTimeout(appCtx, time.Duration(m.Cfg.ReqTimeoutSec)*time.Second)
		ctx = timeoutCtx
		defer cancel()
	} else {
		ctx = context.Background()
	}
	_, err := m.DB.ExecContext(ctx, sb.String())
	if err != nil {
		return err
	}
	return nil
}
