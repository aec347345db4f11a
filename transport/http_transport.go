// Package transport carries encoded calls to an endpoint over HTTP.
//
// One *http.Client is shared by all calls of a proxy. Its Transport keeps a
// pool of idle keep-alive connections per host, so concurrent calls reuse
// connections instead of dialing each time.
package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"obj-rpc/codec"
	"time"

	"github.com/pkg/errors"
)

const DefaultPoolSize = 16

// NewHTTPClient builds a client keeping up to poolSize idle connections per
// host. A poolSize below 1 means DefaultPoolSize. The client has no overall
// timeout; a call waits as long as the operation runs.
func NewHTTPClient(poolSize int) *http.Client {
	if poolSize < 1 {
		poolSize = DefaultPoolSize
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          poolSize * 4,
			MaxIdleConnsPerHost:   poolSize,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// Reply is the raw outcome of one POST.
type Reply struct {
	Status int
	Body   []byte
}

// Post sends body to url as the payload of one call and reads the whole
// answer. Only transport failures are errors; any HTTP status is a Reply.
func Post(ctx context.Context, client *http.Client, url, codecName string, header http.Header, body []byte) (*Reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	for k, vs := range header {
		req.Header[k] = append([]string(nil), vs...)
	}
	req.Header.Set("Content-Type", "text/plain; charset=us-ascii")
	req.Header.Set(codec.Header, codecName)

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "post %s", url)
	}
	defer CleanlyCloseBody(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read response from %s", url)
	}
	return &Reply{Status: resp.StatusCode, Body: data}, nil
}

// CleanlyCloseBody drains and closes a response body so its connection can
// go back to the pool.
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}
