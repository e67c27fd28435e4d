package subscription

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Beep206/CyberVPN-sub008/internal/netutil"
)

// DefaultFetchTimeout bounds one subscription fetch.
const DefaultFetchTimeout = 30 * time.Second

// maxResponseSize caps a subscription body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10 MB

// SubscriptionUserAgent identifies the fetch. Some providers sniff known
// client agents and serve a different document format, so the value is a
// plain product token.
const SubscriptionUserAgent = "CyberVPN/1.0"

// Fetcher retrieves a subscription body. Implementations return the raw
// bytes without decoding; any failure is reported as a *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchCause tags the reason a fetch failed.
type FetchCause string

const (
	FetchCauseStatus     FetchCause = "status"
	FetchCauseTimeout    FetchCause = "timeout"
	FetchCauseConnection FetchCause = "connection"
	FetchCauseCancelled  FetchCause = "cancelled"
	FetchCauseInvalidURL FetchCause = "invalid_url"
)

// FetchError describes a failed subscription fetch. It always carries the
// URL; StatusCode is set only for HTTP status failures.
type FetchError struct {
	URL        string
	StatusCode int
	Cause      FetchCause
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Cause {
	case FetchCauseStatus:
		return fmt.Sprintf("subscription %s returned status %d", e.URL, e.StatusCode)
	case FetchCauseInvalidURL:
		return fmt.Sprintf("invalid subscription URL %q: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetching subscription %s failed (%s): %s", e.URL, e.Cause, netutil.Message(e.Err))
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPFetcher is the production Fetcher.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher builds a fetcher whose requests time out after the given
// duration (callers may still pass a shorter-lived context).
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPFetcher{
		client:    netutil.NewHTTPClient(timeout),
		userAgent: SubscriptionUserAgent,
	}
}

// Fetch retrieves the body at rawURL. A malformed URL is rejected before any
// network call; non-2xx statuses and transport failures surface as typed
// fetch errors, never as a silently empty result.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		if err == nil {
			err = fmt.Errorf("not an absolute http(s) URL")
		}
		return nil, &FetchError{URL: rawURL, Cause: FetchCauseInvalidURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Cause: FetchCauseInvalidURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Cause: classifyCause(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Cause: FetchCauseStatus}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Cause: classifyCause(err), Err: err}
	}
	if len(body) > maxResponseSize {
		return nil, &FetchError{URL: rawURL, Cause: FetchCauseConnection,
			Err: fmt.Errorf("subscription body exceeds %d bytes", maxResponseSize)}
	}

	logrus.WithFields(logrus.Fields{"url": rawURL, "bytes": len(body)}).
		Debug("subscription body fetched")
	return body, nil
}

func classifyCause(err error) FetchCause {
	switch netutil.Classify(err) {
	case netutil.CauseTimeout:
		return FetchCauseTimeout
	case netutil.CauseCancelled:
		return FetchCauseCancelled
	default:
		return FetchCauseConnection
	}
}
