package connector

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ZhipengHe/nemdatatools/internal/config"
)

func TestREST(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			io.WriteString(w, "hello")
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	rest := InitREST(&config.REST{ReqTimeoutSec: 5, MaxIdleConns: 2, MaxIdleConnsPerHost: 2})
	got, err := GetREST()
	if err != nil {
		t.Fatal("ERROR :", err)
	}
	if got != rest {
		t.Fatal("ERROR : GetREST should return the prepared instance")
	}

	req, err := rest.Request(context.Background(), srv.URL+"/ok")
	if err != nil {
		t.Fatal("ERROR :", err)
	}
	resp, err := rest.Do(req)
	if err != nil {
		t.Fatal("ERROR :", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal("ERROR :", err)
	}
	if string(body) != "hello" {
		t.Fatal("ERROR : wrong response body :", string(body))
	}

	if err = rest.Ping(context.Background(), srv.URL+"/ok"); err != nil {
		t.Fatal("ERROR :", err)
	}
	if err = rest.Ping(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatal("ERROR : expected ping error for missing url")
	}
}
