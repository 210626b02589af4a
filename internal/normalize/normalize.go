package normalize

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/ZhipengHe/nemdatatools/internal/catalog"
	"github.com/ZhipengHe/nemdatatools/internal/storage"
	"github.com/ZhipengHe/nemdatatools/internal/timeutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MMS data model row markers. A report file is a sequence of blocks: a C
// comment row, an I header row naming the columns, then D data rows.
const (
	rowComment = "C"
	rowHeader  = "I"
	rowData    = "D"
)

// reportHeader holds the column layout of the current report block.
type reportHeader struct {
	columns   []string
	tsIdx     int
	regionIdx int
}

// ParseReport reads an MMS data model report file and returns the rows of
// the given data type in the uniform record form. Rows of other report
// blocks in the same file are ignored. Malformed data rows are skipped and
// counted; an error is returned only if the report contains no matching
// block at all.
func ParseReport(r io.Reader, dt catalog.DataType) ([]storage.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var (
		header    *reportHeader
		records   []storage.Record
		blockSeen bool
		malformed int
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read report row")
		}
		if len(row) < 4 {
			continue
		}
		switch row[0] {
		case rowComment:
			continue
		case rowHeader:
			if row[1] != dt.ReportType || row[2] != dt.ReportSubtype {
				header = nil
				continue
			}
			h := reportHeader{columns: row[4:], tsIdx: -1, regionIdx: -1}
			for i, col := range h.columns {
				switch col {
				case dt.TimestampCol:
					h.tsIdx = i
				case dt.RegionCol:
					h.regionIdx = i
				}
			}
			if h.tsIdx == -1 || h.regionIdx == -1 {
				return nil, errors.Errorf("report header of %v is missing %v or %v column", dt.Name, dt.TimestampCol, dt.RegionCol)
			}
			header = &h
			blockSeen = true
		case rowData:
			if header == nil || row[1] != dt.ReportType || row[2] != dt.ReportSubtype {
				continue
			}
			values := row[4:]
			if len(values) != len(header.columns) {
				malformed++
				continue
			}
			timestamp, err := timeutil.ParseDate(values[header.tsIdx])
			if err != nil {
				malformed++
				continue
			}
			record := storage.Record{
				DataType:  dt.Name,
				Region:    values[header.regionIdx],
				Timestamp: timestamp,
				Fields:    make(map[string]float64),
			}
			for i, v := range values {
				if i == header.tsIdx || i == header.regionIdx || v == "" {
					continue
				}
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					// Non-numeric informational column, e.g. run no or flag text.
					continue
				}
				record.Fields[header.columns[i]] = f
			}
			records = append(records, record)
		}
	}
	if !blockSeen {
		return nil, errors.Errorf("report contains no %v block", dt.Name)
	}
	if malformed > 0 {
		log.Warn().Str("data_type", dt.Name).Int("rows", malformed).Msg("skipped malformed report rows")
	}
	return records, nil
}

// FilterRegions keeps only records of the given regions. An empty region
// list keeps all records.
func FilterRegions(records []storage.Record, regions []string) []storage.Record {
	if len(regions) == 0 {
		return records
	}
	keep := make(map[string]bool, len(regions))
	for _, region := range regions {
		keep[region] = true
	}
	filtered := records[:0]
	for i := range records {
		if keep[records[i].Region] {
			filtered = append(filtered, records[i])
		}
	}
	return filtered
}

// Standardize sorts records by timestamp then region and drops duplicate
// (timestamp, region) pairs, keeping the first occurrence.
func Standardize(records []storage.Record) []storage.Record {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Region < records[j].Region
		}
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	out := records[:0]
	for i := range records {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if records[i].Timestamp.Equal(last.Timestamp) && records[i].Region == last.Region {
				continue
			}
		}
		out = append(out, records[i])
	}
	return out
}

// TrimRange keeps records with timestamps inside the request range.
// Settlement timestamps label interval ends, so the lower bound is
// exclusive and the upper bound inclusive.
func TrimRange(records []storage.Record, start, end time.Time) []storage.Record {
	out := records[:0]
	for i := range records {
		ts := records[i].Timestamp
		if ts.After(start) && !ts.After(end) {
			out = append(out, records[i])
		}
	}
	return out
}
