package storage

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestCommitRecordsToTerminal(t *testing.T) {
	var out bytes.Buffer
	ter := InitTerminal(&out)

	ter.CommitRecords([]Record{
		{
			DataType:   "DISPATCHPRICE",
			CommitName: "dispatch_price_jan",
			Region:     "NSW1",
			Timestamp:  time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC),
			Fields:     map[string]float64{"RRP": 85.5, "ROP": 85.5},
		},
	})

	got := out.String()
	for _, want := range []string{"dispatch_price_jan", "NSW1", "2024-01-01 00:05:00", "ROP=85.5 RRP=85.5"} {
		if !strings.Contains(got, want) {
			t.Fatal("ERROR : terminal output missing", want, ":", got)
		}
	}
}
