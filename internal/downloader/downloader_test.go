package downloader

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZhipengHe/nemdatatools/internal/cache"
	"github.com/ZhipengHe/nemdatatools/internal/config"
	"github.com/ZhipengHe/nemdatatools/internal/connector"
	"github.com/ZhipengHe/nemdatatools/internal/storage"
)

const dispatchPriceReport = `C,NEMP.WORLD,DISPATCHPRICE,AEMO,PUBLIC,2024/02/01,00:00:00,DISPATCH,PRICE
I,DISPATCH,PRICE,1,SETTLEMENTDATE,RUNNO,REGIONID,INTERVENTION,RRP
D,DISPATCH,PRICE,1,"2024/01/01 00:05:00",1,NSW1,0,85.5
D,DISPATCH,PRICE,1,"2024/01/01 00:05:00",1,VIC1,0,77.25
D,DISPATCH,PRICE,1,"2024/01/01 00:10:00",1,NSW1,0,90.0
C,"END OF REPORT",5
`

// archiveZip builds an in-memory monthly archive file with one csv member.
func archiveZip(t *testing.T, member, report string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(member)
	if err != nil {
		t.Fatal("ERROR :", err)
	}
	if _, err = w.Write([]byte(report)); err != nil {
		t.Fatal("ERROR :", err)
	}
	if err = zw.Close(); err != nil {
		t.Fatal("ERROR :", err)
	}
	return buf.Bytes()
}

// stubArchive serves the january 2024 DISPATCHPRICE archive file and counts
// the requests it receives.
func stubArchive(t *testing.T, hits *int32) *httptest.Server {
	body := archiveZip(t, "PUBLIC_DVD_DISPATCHPRICE_202401010000.CSV", dispatchPriceReport)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			return
		}
		atomic.AddInt32(hits, 1)
		if strings.HasSuffix(r.URL.Path, "PUBLIC_DVD_DISPATCHPRICE_202401010000.zip") {
			w.Write(body)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
}

func TestFetchData(t *testing.T) {
	var hits int32
	srv := stubArchive(t, &hits)
	defer srv.Close()

	_ = connector.InitREST(&config.REST{ReqTimeoutSec: 5, MaxIdleConns: 2, MaxIdleConnsPerHost: 2})
	cacheMgr, err := cache.NewManager(t.TempDir())
	if err != nil {
		t.Fatal("ERROR :", err)
	}
	dlCfg := config.Download{ArchiveBaseURL: srv.URL + "/"}

	req := Request{
		DataType:  "DISPATCHPRICE",
		StartDate: "2024/01/01",
		EndDate:   "2024/01/31",
		Regions:   []string{"NSW1"},
	}
	records, err := FetchData(context.Background(), req, &dlCfg, cacheMgr)
	if err != nil {
		t.Fatal("ERROR :", err)
	}

	// VIC1 row filtered out, two NSW1 rows kept.
	if len(records) != 2 {
		t.Fatal("ERROR : wrong record count :", len(records))
	}
	for i := range records {
		if records[i].Region != "NSW1" {
			t.Fatal("ERROR : filtered region present :", records[i].Region)
		}
	}
	if records[0].Fields["RRP"] != 85.5 {
		t.Fatal("ERROR : wrong RRP value :", records[0].Fields["RRP"])
	}
	if !records[0].Timestamp.Equal(time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)) {
		t.Fatal("ERROR : wrong timestamp :", records[0].Timestamp)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatal("ERROR : wrong archive request count :", hits)
	}

	// Second identical request is served from cache, not the archive.
	cached, err := FetchData(context.Background(), req, &dlCfg, cacheMgr)
	if err != nil {
		t.Fatal("ERROR :", err)
	}
	if len(cached) != 2 {
		t.Fatal("ERROR : wrong cached record count :", len(cached))
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatal("ERROR : cache hit should not touch the archive :", hits)
	}

	// Overwrite bypasses the cache read and refreshes the entry.
	req.Overwrite = true
	if _, err = FetchData(context.Background(), req, &dlCfg, cacheMgr); err != nil {
		t.Fatal("ERROR :", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatal("ERROR : overwrite should touch the archive :", hits)
	}
}

func TestFetchDataBadRequest(t *testing.T) {
	_ = connector.InitREST(&config.REST{ReqTimeoutSec: 5})
	cacheMgr, err := cache.NewManager(t.TempDir())
	if err != nil {
		t.Fatal("ERROR :", err)
	}
	dlCfg := config.Download{ArchiveBaseURL: "http://127.0.0.1:1/"}

	bad := []Request{
		{DataType: "NOSUCHTYPE", StartDate: "2024/01/01", EndDate: "2024/01/31"},
		{DataType: "DISPATCHPRICE", StartDate: "2024/01/01", EndDate: "2024/01/31", Regions: []string{"NZ1"}},
		{DataType: "DISPATCHPRICE", StartDate: "01-01-2024", EndDate: "2024/01/31"},
		{DataType: "DISPATCHPRICE", StartDate: "2024/01/31", EndDate: "2024/01/01"},
	}
	for _, req := range bad {
		if _, err := FetchData(context.Background(), req, &dlCfg, cacheMgr); err == nil {
			t.Fatal("ERROR : expected error for bad request :", req)
		}
	}
}

func TestFetchDataMissingArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_ = connector.InitREST(&config.REST{ReqTimeoutSec: 5})
	cacheMgr, err := cache.NewManager(t.TempDir())
	if err != nil {
		t.Fatal("ERROR :", err)
	}
	dlCfg := config.Download{ArchiveBaseURL: srv.URL + "/"}

	req := Request{DataType: "DISPATCHPRICE", StartDate: "2024/01/01", EndDate: "2024/01/31"}
	if _, err := FetchData(context.Background(), req, &dlCfg, cacheMgr); err == nil {
		t.Fatal("ERROR : expected error for unpublished archive file")
	}
}

func TestStartCommitsToTerminal(t *testing.T) {
	var hits int32
	srv := stubArchive(t, &hits)
	defer srv.Close()

	_ = connector.InitREST(&config.REST{ReqTimeoutSec: 5})
	var out bytes.Buffer
	_ = storage.InitTerminal(&out)
	cacheMgr, err := cache.NewManager(t.TempDir())
	if err != nil {
		t.Fatal("ERROR :", err)
	}

	dataset := config.Dataset{
		DataType:   "DISPATCHPRICE",
		StartDate:  "2024/01/01",
		EndDate:    "2024/01/31",
		Regions:    []string{"NSW1", "VIC1"},
		CommitName: "dispatch_price_test",
		Storages:   []string{"terminal"},
	}
	dlCfg := config.Download{
		ArchiveBaseURL: srv.URL + "/",
		Retry:          config.Retry{Number: 1, GapSec: 1},
	}
	connCfg := config.Connection{Terminal: config.Terminal{RecordCommitBuf: 2}}

	if err = Start(context.Background(), dataset, &dlCfg, &connCfg, cacheMgr); err != nil {
		t.Fatal("ERROR :", err)
	}

	got := out.String()
	for _, want := range []string{"dispatch_price_test", "NSW1", "VIC1", "RRP=85.5"} {
		if !strings.Contains(got, want) {
			t.Fatal("ERROR : terminal output missing", want, ":", got)
		}
	}
}

func TestCheckConnection(t *testing.T) {
	srv := stubArchive(t, new(int32))
	defer srv.Close()

	_ = connector.InitREST(&config.REST{ReqTimeoutSec: 5})
	if err := CheckConnection(context.Background(), &config.Download{ArchiveBaseURL: srv.URL + "/"}); err != nil {
		t.Fatal("ERROR :", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()
	if err := CheckConnection(context.Background(), &config.Download{ArchiveBaseURL: down.URL + "/"}); err == nil {
		t.Fatal("ERROR : expected error for unreachable archive")
	}
}

func TestStartRetryExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_ = connector.InitREST(&config.REST{ReqTimeoutSec: 5})
	cacheMgr, err := cache.NewManager(t.TempDir())
	if err != nil {
		t.Fatal("ERROR :", err)
	}

	dataset := config.Dataset{
		DataType:  "DISPATCHPRICE",
		StartDate: "2024/01/01",
		EndDate:   "2024/01/31",
		Storages:  []string{"terminal"},
	}
	dlCfg := config.Download{
		ArchiveBaseURL: srv.URL + "/",
		Retry:          config.Retry{Number: 1, GapSec: 1},
	}
	connCfg := config.Connection{Terminal: config.Terminal{RecordCommitBuf: 2}}

	if err = Start(context.Background(), dataset, &dlCfg, &connCfg, cacheMgr); err == nil {
		t.Fatal("ERROR : expected error after retry exhausted")
	}
}
