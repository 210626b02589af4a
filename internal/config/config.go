package config

const (
	// NEMWebBaseURL is the root url of the AEMO NEMWeb site.
	NEMWebBaseURL = "https://nemweb.com.au/"
	// MMSDMArchiveBaseURL is the base url of the MMSDM historical data archive.
	MMSDMArchiveBaseURL = "https://nemweb.com.au/Data_Archive/Wholesale_Electricity/MMSDM/"
)

// Config contains config values for the app.
// Struct values are loaded from user defined JSON config file.
type Config struct {
	Datasets   []Dataset  `json:"datasets"`
	Batch      Batch      `json:"batch"`
	Download   Download   `json:"download"`
	Cache      Cache      `json:"cache"`
	Connection Connection `json:"connection"`
	Log        Log        `json:"log"`
}

// Dataset contains config values for one data download request.
type Dataset struct {
	DataType   string   `json:"data_type"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	Regions    []string `json:"regions"`
	CommitName string   `json:"commit_name"`
	Storages   []string `json:"storages"`
	Overwrite  bool     `json:"overwrite"`
}

// Batch contains config values for batch download commands. Tables are
// downloaded for the given date range, and in full for each given year.
// Batch downloads prefetch data into the local cache.
type Batch struct {
	Tables    []string `json:"tables"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Regions   []string `json:"regions"`
	Years     []int    `json:"years"`
}

// Download contains config values for the download process.
type Download struct {
	DelaySec   int   `json:"delay_sec"`
	MaxWorkers int   `json:"max_workers"`
	Retry      Retry `json:"retry"`

	// ArchiveBaseURL overrides the default MMSDM archive url.
	// Mainly used to point the app to a stub server during testing.
	ArchiveBaseURL string `json:"archive_base_url"`
}

// Retry contains config values for retry process.
type Retry struct {
	Number   int `json:"number"`
	GapSec   int `json:"gap_sec"`
	ResetSec int `json:"reset_sec"`
}

// Cache contains config values for the local data cache.
type Cache struct {
	Dir string `json:"dir"`
}

// Connection contains config values for different API and storage connections.
type Connection struct {
	REST     REST     `json:"rest"`
	Terminal Terminal `json:"terminal"`
	MySQL    MySQL    `json:"mysql"`
	ES       ES       `json:"elastic_search"`
	Postgres Postgres `json:"postgres"`
}

// REST contains config values for REST API connection.
type REST struct {
	ReqTimeoutSec       int `json:"request_timeout_sec"`
	MaxIdleConns        int `json:"max_idle_conns"`
	MaxIdleConnsPerHost int `json:"max_idle_conns_per_host"`
}

// Terminal contains config values for terminal display.
type Terminal struct {
	RecordCommitBuf int `json:"record_commit_buffer"`
}

// MySQL contains config values for mysql.
type MySQL struct {
	User               string `json:"user"`
	Password           string `json:"password"`
	URL                string `json:"URL"`
	Schema             string `json:"schema"`
	ReqTimeoutSec      int    `json:"request_timeout_sec"`
	ConnMaxLifetimeSec int    `json:"conn_max_lifetime_sec"`
	MaxOpenConns       int    `json:"max_open_conns"`
	MaxIdleConns       int    `json:"max_idle_conns"`
	RecordCommitBuf    int    `json:"record_commit_buffer"`
}

// ES contains config values for elastic search.
type ES struct {
	Addresses           []string `json:"addresses"`
	Username            string   `json:"username"`
	Password            string   `json:"password"`
	IndexName           string   `json:"index_name"`
	ReqTimeoutSec       int      `json:"request_timeout_sec"`
	MaxIdleConns        int      `json:"max_idle_conns"`
	MaxIdleConnsPerHost int      `json:"max_idle_conns_per_host"`
	RecordCommitBuf     int      `json:"record_commit_buffer"`
}

// Postgres contains config values for postgres.
type Postgres struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	User            string `json:"user"`
	Password        string `json:"password"`
	Name            string `json:"name"`
	SSLMode         string `json:"ssl_mode"`
	MinConns        int    `json:"min_conns"`
	MaxConns        int    `json:"max_conns"`
	ReqTimeoutSec   int    `json:"request_timeout_sec"`
	RecordCommitBuf int    `json:"record_commit_buffer"`
}

// Log contains config values for logging.
type Log struct {
	Level    string `json:"level"`
	FilePath string `json:"file_path"`
}
