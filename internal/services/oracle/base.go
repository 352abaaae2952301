package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	xhttp "Preda/pkg/http"
)

// httpBase holds the shared client and issues JSON GETs against an endpoint.
type httpBase struct {
	endpoint string
	client   *xhttp.Client
	attempts int
}

func newHTTPBase(endpoint string, client *xhttp.Client, attempts int) *httpBase {
	if client == nil {
		client = xhttp.NewClient(xhttp.WithTimeout(10 * time.Second))
	}
	if attempts < 1 {
		attempts = 1
	}
	return &httpBase{endpoint: endpoint, client: client, attempts: attempts}
}

func (b *httpBase) getJSON(ctx context.Context, path string, dest interface{}) error {
	if b.endpoint == "" {
		return fmt.Errorf("oracle endpoint not configured")
	}
	url := b.endpoint + "/" + path
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: url}, dest)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	return nil
}

// getJSONWithRetry retries transport failures and 5xx answers with linear backoff.
func (b *httpBase) getJSONWithRetry(ctx context.Context, path string, dest interface{}) error {
	var err error
	for i := 1; i <= b.attempts; i++ {
		err = b.getJSON(ctx, path, dest)
		if err == nil || !retryable(err) || i == b.attempts {
			return err
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
