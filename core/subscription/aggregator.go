package subscription

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Beep206/CyberVPN-sub008/core/parsers"
	"github.com/Beep206/CyberVPN-sub008/core/record"
)

// DefaultCacheTTL is how long a subscription result is served from cache
// before the URL is fetched again.
const DefaultCacheTTL = 5 * time.Minute

// maxConcurrentImports bounds ImportAll fan-out.
const maxConcurrentImports = 8

// Aggregator runs the fetch → decode → dispatch pipeline for subscription
// URLs. Concurrent imports of the same URL are collapsed into one fetch, and
// results are cached with a TTL so a UI refreshing several views does not
// hammer the provider.
type Aggregator struct {
	fetcher  Fetcher
	registry *parsers.Registry
	cache    *gocache.Cache
	group    singleflight.Group
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithFetcher overrides the HTTP fetcher, mainly for tests.
func WithFetcher(f Fetcher) Option {
	return func(a *Aggregator) { a.fetcher = f }
}

// WithRegistry overrides the parser registry.
func WithRegistry(r *parsers.Registry) Option {
	return func(a *Aggregator) { a.registry = r }
}

// WithCacheTTL sets the result cache lifetime. A non-positive TTL disables
// caching entirely.
func WithCacheTTL(ttl time.Duration) Option {
	return func(a *Aggregator) {
		if ttl <= 0 {
			a.cache = nil
			return
		}
		a.cache = gocache.New(ttl, 2*ttl)
	}
}

// NewAggregator builds an aggregator with the default fetcher, registry and
// cache unless overridden.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		fetcher:  NewHTTPFetcher(DefaultFetchTimeout),
		registry: parsers.DefaultRegistry(),
		cache:    gocache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Import fetches, decodes and parses one subscription URL. Fetch and decode
// failures are fatal and returned as the error; per-line parse failures are
// collected into the result and never abort the batch. A result with zero
// configs and a populated error list is a valid, reportable outcome.
func (a *Aggregator) Import(ctx context.Context, subURL string) (*record.SubscriptionParseResult, error) {
	subURL = strings.TrimSpace(subURL)

	v, err, shared := a.group.Do(subURL, func() (any, error) {
		if a.cache != nil {
			if hit, ok := a.cache.Get(subURL); ok {
				return hit.(*record.SubscriptionParseResult), nil
			}
		}
		body, err := a.fetcher.Fetch(ctx, subURL)
		if err != nil {
			return nil, err
		}
		result, err := a.ParseBody(subURL, body)
		if err != nil {
			return nil, err
		}
		if a.cache != nil {
			a.cache.SetDefault(subURL, result)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logrus.WithField("url", subURL).Debug("subscription import shared with a concurrent caller")
	}
	return v.(*record.SubscriptionParseResult), nil
}

// ParseBody runs the decode and dispatch phase over an already-fetched body.
// It is pure apart from logging, so it also serves offline imports and
// tests.
func (a *Aggregator) ParseBody(subURL string, body []byte) (*record.SubscriptionParseResult, error) {
	lines, err := DecodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("decode subscription body: %w", err)
	}

	result := &record.SubscriptionParseResult{}
	for _, line := range lines {
		rec, err := a.registry.Dispatch(line.Raw)
		if err != nil {
			result.Errors = append(result.Errors, record.LineError{
				LineNumber: line.Number,
				RawURI:     line.Raw,
				Message:    err.Error(),
			})
			continue
		}
		result.Configs = append(result.Configs, record.ImportedConfigEntry{
			ID:              record.IdentityForURI(line.Raw),
			Source:          record.SourceSubscriptionURL,
			SubscriptionURL: subURL,
			Name:            rec.DisplayName(),
			Record:          rec,
		})
	}

	logrus.WithFields(logrus.Fields{
		"url":    subURL,
		"parsed": len(result.Configs),
		"failed": len(result.Errors),
	}).Debug("subscription body parsed")
	return result, nil
}

// ImportOutcome pairs a subscription URL with its import result or error.
type ImportOutcome struct {
	URL    string
	Result *record.SubscriptionParseResult
	Err    error
}

// ImportAll imports several subscription URLs concurrently. Each URL's
// pipeline is independent: one subscription failing does not cancel the
// others. Outcomes are returned in input order.
func (a *Aggregator) ImportAll(ctx context.Context, urls []string) []ImportOutcome {
	outcomes := make([]ImportOutcome, len(urls))

	var g errgroup.Group
	g.SetLimit(maxConcurrentImports)
	for i, subURL := range urls {
		i, subURL := i, subURL
		g.Go(func() error {
			result, err := a.Import(ctx, subURL)
			outcomes[i] = ImportOutcome{URL: subURL, Result: result, Err: err}
			return nil
		})
	}
	g.Wait()
	return outcomes
}

// ImportURI is the single-URI entry point for manual paste, QR scan and
// clipboard imports, bypassing the subscription pipeline.
func (a *Aggregator) ImportURI(uri string, source record.Source) (*record.ImportedConfigEntry, error) {
	rec, err := a.registry.Dispatch(uri)
	if err != nil {
		return nil, err
	}
	return &record.ImportedConfigEntry{
		ID:     record.IdentityForURI(uri),
		Source: source,
		Name:   rec.DisplayName(),
		Record: rec,
	}, nil
}
