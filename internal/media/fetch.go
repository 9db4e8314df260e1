package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

// Fetcher downloads remote media by URL.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a Fetcher. A nil client uses a client with the given timeout.
func NewFetcher(client *http.Client, timeout time.Duration, maxBytes int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if maxBytes <= 0 {
		maxBytes = 25 * 1024 * 1024
	}
	return &Fetcher{client: client, maxBytes: maxBytes}
}

// Open starts downloading rawURL. The returned reader fails with
// ErrAssetTooLarge once more than the configured cap has been read.
func (f *Fetcher) Open(ctx context.Context, rawURL string) (Payload, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Payload{}, fmt.Errorf("%w: url is required", ErrSourceUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return Payload{}, fmt.Errorf("%w: status %d", ErrSourceUnavailable, resp.StatusCode)
	}
	if resp.ContentLength > f.maxBytes {
		_ = resp.Body.Close()
		return Payload{}, fmt.Errorf("%w: max %d bytes", ErrAssetTooLarge, f.maxBytes)
	}
	return Payload{
		Reader: readCloser{Reader: LimitReader(resp.Body, f.maxBytes), Closer: resp.Body},
		Mime:   resp.Header.Get("Content-Type"),
		Name:   path.Base(req.URL.Path),
		Size:   resp.ContentLength,
	}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
