package storage

import (
	"sort"
	"time"
)

// Record represents final form of market data parsed from an AEMO report
// ready to store. Fields holds the numeric report columns keyed by column
// name.
type Record struct {
	DataType   string
	CommitName string
	Region     string
	Timestamp  time.Time
	Fields     map[string]float64
}

// FieldNames returns the sorted field names of the record.
func (r *Record) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
