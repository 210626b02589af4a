package connector

import (
	"context"
	"net/http"
	"time"

	"github.com/ZhipengHe/nemdatatools/internal/config"
	"github.com/pkg/errors"
)

// REST is for REST API connection.
type REST struct {
	HTTPClient *http.Client
	Cfg        *config.REST
}

var rest REST

// InitREST initializes REST connection with configured values.
func InitREST(cfg *config.REST) *REST {
	if rest.HTTPClient == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConns = cfg.MaxIdleConns
		t.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
		rest = REST{
			HTTPClient: &http.Client{
				Timeout:   time.Duration(cfg.ReqTimeoutSec) * time.Second,
				Transport: t,
			},
			Cfg: cfg,
		}
	}
	return &rest
}

// GetREST returns already prepared REST instance.
func GetREST() (*REST, error) {
	if rest.HTTPClient == nil {
		return nil, errors.New("REST connection is not yet prepared")
	}
	return &rest, nil
}

// Request creates a new GET request for the url.
func (r *REST) Request(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Do sends the request to the server.
func (r *REST) Do(req *http.Request) (*http.Response, error) {
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Ping sends a HEAD request to the url to check the connection to the
// server. Response body is ignored.
func (r *REST) Ping(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("code : %v, status : %v", resp.StatusCode, resp.Status)
	}
	return nil
}
