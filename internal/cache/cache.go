package cache

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ZhipengHe/nemdatatools/internal/storage"
	"github.com/ZhipengHe/nemdatatools/internal/timeutil"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	manifestFile = "manifest.json"
	dataFile     = "data.json"
)

// Key returns the content address of a data request: hex SHA-256 of the
// canonical request descriptor. Regions are sorted so equivalent requests
// share an entry.
func Key(dataType string, start, end time.Time, regions []string) string {
	sorted := make([]string, len(regions))
	copy(sorted, regions)
	sort.Strings(sorted)
	descriptor := dataType + "|" + timeutil.FormatDateTime(start) + "|" + timeutil.FormatDateTime(end) + "|" + strings.Join(sorted, ",")
	sum := sha256.Sum256([]byte(descriptor))
	return hex.EncodeToString(sum[:])
}

// Manifest describes one cache entry.
type Manifest struct {
	Key       string    `json:"key"`
	DataType  string    `json:"data_type"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Regions   []string  `json:"regions"`
	Records   int       `json:"records"`
	Sources   []string  `json:"sources"`
	CreatedAt time.Time `json:"created_at"`
}

// cacheRecord is the stored JSON form of a record. One record per line in
// the entry data file.
type cacheRecord struct {
	DataType  string             `json:"data_type"`
	Region    string             `json:"region"`
	Timestamp string             `json:"timestamp"`
	Fields    map[string]float64 `json:"fields"`
}

// Manager manages the local content-addressed store of downloaded data.
type Manager struct {
	dir string
}

// NewManager initializes the cache directory.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create cache directory")
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the cache root directory.
func (m *Manager) Dir() string {
	return m.dir
}

func (m *Manager) entryDir(key string) string {
	return filepath.Join(m.dir, key[:2], key)
}

// Get returns the cached records for the key, or false on a miss. A
// corrupt entry is removed and treated as a miss.
func (m *Manager) Get(key string) ([]storage.Record, *Manifest, bool) {
	manifest, records, err := m.load(key)
	if err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			log.Warn().Err(err).Str("key", key).Msg("removing corrupt cache entry")
			_ = m.Remove(key)
		}
		return nil, nil, false
	}
	return records, manifest, true
}

func (m *Manager) load(key string) (*Manifest, []storage.Record, error) {
	dir := m.entryDir(key)
	mf, err := os.Open(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, nil, errors.Wrap(err, "open manifest")
	}
	var manifest Manifest
	err = jsoniter.NewDecoder(mf).Decode(&manifest)
	mf.Close()
	if err != nil {
		return nil, nil, errors.Wrap(err, "decode manifest")
	}
	if manifest.Key != key {
		return nil, nil, errors.Errorf("manifest key mismatch : %v", manifest.Key)
	}

	df, err := os.Open(filepath.Join(dir, dataFile))
	if err != nil {
		return nil, nil, errors.Wrap(err, "open data file")
	}
	defer df.Close()
	records := make([]storage.Record, 0, manifest.Records)
	scanner := bufio.NewScanner(df)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var cr cacheRecord
		if err := jsoniter.Unmarshal(line, &cr); err != nil {
			return nil, nil, errors.Wrap(err, "decode data row")
		}
		timestamp, err := timeutil.ParseDate(cr.Timestamp)
		if err != nil {
			return nil, nil, errors.Wrap(err, "decode data row timestamp")
		}
		records = append(records, storage.Record{
			DataType:  cr.DataType,
			Region:    cr.Region,
			Timestamp: timestamp,
			Fields:    cr.Fields,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "read data file")
	}
	if len(records) != manifest.Records {
		return nil, nil, errors.Errorf("manifest record count mismatch : expected %v, got %v", manifest.Records, len(records))
	}
	return &manifest, records, nil
}

// Put stores records under the key. Files are written to a temp directory
// first and renamed in, so a crashed write never leaves a readable half
// entry.
func (m *Manager) Put(key string, manifest *Manifest, records []storage.Record) error {
	manifest.Key = key
	manifest.Records = len(records)
	manifest.CreatedAt = time.Now().UTC()

	dir := m.entryDir(key)
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return errors.Wrap(err, "create cache bucket")
	}
	tmp, err := os.MkdirTemp(filepath.Dir(dir), key+".tmp")
	if err != nil {
		return errors.Wrap(err, "create temp entry")
	}
	defer os.RemoveAll(tmp)

	df, err := os.Create(filepath.Join(tmp, dataFile))
	if err != nil {
		return errors.Wrap(err, "create data file")
	}
	w := bufio.NewWriter(df)
	for i := range records {
		record := &records[i]
		line, err := jsoniter.Marshal(cacheRecord{
			DataType:  record.DataType,
			Region:    record.Region,
			Timestamp: timeutil.FormatDateTime(record.Timestamp),
			Fields:    record.Fields,
		})
		if err != nil {
			df.Close()
			return errors.Wrap(err, "encode data row")
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		df.Close()
		return errors.Wrap(err, "write data file")
	}
	if err := df.Close(); err != nil {
		return errors.Wrap(err, "close data file")
	}

	mf, err := os.Create(filepath.Join(tmp, manifestFile))
	if err != nil {
		return errors.Wrap(err, "create manifest")
	}
	err = jsoniter.NewEncoder(mf).Encode(manifest)
	if cerr := mf.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, "write manifest")
	}

	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrap(err, "replace cache entry")
	}
	if err := os.Rename(tmp, dir); err != nil {
		return errors.Wrap(err, "rename cache entry")
	}
	return nil
}

// Remove deletes the entry for the key, if present.
func (m *Manager) Remove(key string) error {
	return os.RemoveAll(m.entryDir(key))
}

// Purge deletes all cache entries.
func (m *Manager) Purge() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return errors.Wrap(err, "read cache directory")
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(m.dir, entry.Name())); err != nil {
			return errors.Wrap(err, "purge cache entry")
		}
	}
	return nil
}
