package subscription

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Beep206/CyberVPN-sub008/core/record"
)

// stubFetcher serves a fixed body and counts calls.
type stubFetcher struct {
	body  []byte
	err   error
	calls atomic.Int32
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.body, nil
}

const (
	validLine   = "trojan://pw@server.example:443#Home"
	invalidLine = "trojan://pw@server.example:notaport"
)

func base64Body(lines ...string) []byte {
	return []byte(base64.StdEncoding.EncodeToString([]byte(strings.Join(lines, "\n"))))
}

func TestAggregator_PartialSuccess(t *testing.T) {
	fetcher := &stubFetcher{body: base64Body(validLine, invalidLine)}
	agg := NewAggregator(WithFetcher(fetcher), WithCacheTTL(0))

	result, err := agg.Import(context.Background(), "https://sub.example/feed")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(result.Configs) != 1 {
		t.Fatalf("Expected 1 config, got %d", len(result.Configs))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Expected 1 error, got %d", len(result.Errors))
	}
	if result.Errors[0].LineNumber != 2 {
		t.Errorf("Expected failure on line 2, got %d", result.Errors[0].LineNumber)
	}
	if result.Errors[0].RawURI != invalidLine {
		t.Errorf("Expected raw URI preserved, got %q", result.Errors[0].RawURI)
	}
	if !result.IsPartialSuccess() {
		t.Error("Expected partial success")
	}

	entry := result.Configs[0]
	if entry.Source != record.SourceSubscriptionURL {
		t.Errorf("Expected subscription source, got %q", entry.Source)
	}
	if entry.SubscriptionURL != "https://sub.example/feed" {
		t.Errorf("Expected subscription URL recorded, got %q", entry.SubscriptionURL)
	}
	if entry.Name != "Home" {
		t.Errorf("Expected name from remark, got %q", entry.Name)
	}
}

func TestAggregator_IdempotentIdentity(t *testing.T) {
	fetcher := &stubFetcher{body: base64Body(validLine, "vless://uuid@b.example:443")}
	agg := NewAggregator(WithFetcher(fetcher), WithCacheTTL(0))

	first, err := agg.Import(context.Background(), "https://sub.example/feed")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := agg.Import(context.Background(), "https://sub.example/feed")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(first.Configs) != len(second.Configs) {
		t.Fatalf("Expected equal config counts, got %d and %d", len(first.Configs), len(second.Configs))
	}
	for i := range first.Configs {
		if first.Configs[i].ID != second.Configs[i].ID {
			t.Errorf("Entry %d: expected stable ID, got %q and %q",
				i, first.Configs[i].ID, second.Configs[i].ID)
		}
	}
}

func TestAggregator_AllInvalidIsNotAFetchFailure(t *testing.T) {
	fetcher := &stubFetcher{body: base64Body(invalidLine, "ss://%%%@h:1", "vless://@h:443")}
	agg := NewAggregator(WithFetcher(fetcher), WithCacheTTL(0))

	result, err := agg.Import(context.Background(), "https://sub.example/feed")
	if err != nil {
		t.Fatalf("Expected the fetch itself to succeed, got %v", err)
	}
	if len(result.Configs) != 0 {
		t.Errorf("Expected no configs, got %d", len(result.Configs))
	}
	if len(result.Errors) != 3 {
		t.Errorf("Expected an error per line, got %d", len(result.Errors))
	}
	if !result.IsFailure() {
		t.Error("Expected failure outcome")
	}
}

func TestAggregator_NameFallback(t *testing.T) {
	fetcher := &stubFetcher{body: []byte("trojan://pw@server.example:443")}
	agg := NewAggregator(WithFetcher(fetcher), WithCacheTTL(0))

	result, err := agg.Import(context.Background(), "https://sub.example/feed")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := result.Configs[0].Name; got != "trojan server.example" {
		t.Errorf("Expected generated name, got %q", got)
	}
}

func TestAggregator_CacheAvoidsRefetch(t *testing.T) {
	fetcher := &stubFetcher{body: base64Body(validLine)}
	agg := NewAggregator(WithFetcher(fetcher), WithCacheTTL(time.Minute))

	for i := 0; i < 3; i++ {
		if _, err := agg.Import(context.Background(), "https://sub.example/feed"); err != nil {
			t.Fatalf("Import %d failed: %v", i, err)
		}
	}
	if calls := fetcher.calls.Load(); calls != 1 {
		t.Errorf("Expected a single fetch, got %d", calls)
	}
}

func TestAggregator_FetchErrorPropagates(t *testing.T) {
	fetchErr := &FetchError{URL: "https://sub.example/feed", StatusCode: 503, Cause: FetchCauseStatus}
	agg := NewAggregator(WithFetcher(&stubFetcher{err: fetchErr}), WithCacheTTL(0))

	_, err := agg.Import(context.Background(), "https://sub.example/feed")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *FetchError, got %T (%v)", err, err)
	}
	if fe.StatusCode != 503 || fe.Cause != FetchCauseStatus {
		t.Errorf("Unexpected fetch error: %+v", fe)
	}
}

func TestAggregator_DecodeErrorIsFatal(t *testing.T) {
	agg := NewAggregator(WithFetcher(&stubFetcher{body: []byte("%%% garbage %%%")}), WithCacheTTL(0))

	_, err := agg.Import(context.Background(), "https://sub.example/feed")
	if err == nil || !strings.Contains(err.Error(), "not valid base64") {
		t.Errorf("Expected decode error, got %v", err)
	}
}

func TestAggregator_ImportAll(t *testing.T) {
	var served atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Add(1)
		switch r.URL.Path {
		case "/good":
			fmt.Fprint(w, validLine+"\n"+"vless://uuid@b.example:443")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	agg := NewAggregator(WithFetcher(NewHTTPFetcher(5*time.Second)), WithCacheTTL(0))
	urls := []string{server.URL + "/good", server.URL + "/missing"}

	outcomes := agg.ImportAll(context.Background(), urls)
	if len(outcomes) != 2 {
		t.Fatalf("Expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].URL != urls[0] || outcomes[1].URL != urls[1] {
		t.Error("Expected outcomes in input order")
	}
	if outcomes[0].Err != nil {
		t.Errorf("Expected first import to succeed, got %v", outcomes[0].Err)
	}
	if len(outcomes[0].Result.Configs) != 2 {
		t.Errorf("Expected 2 configs, got %d", len(outcomes[0].Result.Configs))
	}

	var fe *FetchError
	if !errors.As(outcomes[1].Err, &fe) || fe.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 fetch error, got %v", outcomes[1].Err)
	}
}

func TestAggregator_ImportURI(t *testing.T) {
	agg := NewAggregator(WithCacheTTL(0))

	entry, err := agg.ImportURI(validLine, record.SourceClipboard)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if entry.Source != record.SourceClipboard {
		t.Errorf("Expected clipboard source, got %q", entry.Source)
	}
	if entry.SubscriptionURL != "" {
		t.Errorf("Expected no subscription URL, got %q", entry.SubscriptionURL)
	}
	if entry.ID != record.IdentityForURI(validLine) {
		t.Error("Expected ID derived from the raw URI")
	}

	if _, err := agg.ImportURI("wireguard://x", record.SourceManualURI); err == nil {
		t.Error("Expected unknown scheme to fail")
	}
}
