// Package directory resolves the company receiving address for each chain.
package directory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-go-utils/retry"

	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/metrics"
)

const (
	DefaultTTL          = 5 * time.Minute
	DefaultFetchTimeout = 10 * time.Second
	companyPath         = "/wallets/company"
	cacheKey            = "company"
)

var (
	ErrNoDestination = errors.New("directory: no receiving address for chain")
	ErrUnavailable   = errors.New("directory: company wallets unavailable")
	ErrRejected      = errors.New("directory: api reported failure")
)

// Source tells where a lookup was answered from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

type Config struct {
	APIURL       string            `yaml:"APIURL"`
	TTL          time.Duration     `yaml:"TTL"`
	FetchTimeout time.Duration     `yaml:"FetchTimeout"`
	FailClosed   bool              `yaml:"FailClosed"`
	Fallback     map[string]string `yaml:"Fallback"`
}

type apiResponse struct {
	Success bool              `json:"success"`
	Data    map[string]string `json:"data"`
	Message string            `json:"message,omitempty"`
}

type Directory struct {
	registry   *chains.Registry
	httpClient *http.Client
	cache      Cache
	url        string
	ttl        time.Duration
	budget     time.Duration
	failClosed bool
	fallback   Entries

	fetchMu sync.Mutex
}

// New validates the fallback table up front: a malformed fallback address
// is a configuration error, not something to discover mid-payment. Without
// a fallback table the directory fails closed.
func New(cfg Config, registry *chains.Registry, cache Cache, httpClient *http.Client) (*Directory, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if !cfg.FailClosed && len(cfg.Fallback) == 0 {
		log.Warn("no fallback company wallets configured, payments are refused while the directory is down")
		cfg.FailClosed = true
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.FetchTimeout}
	}

	fallback := Entries{}
	if !cfg.FailClosed {
		for k, addr := range cfg.Fallback {
			key, err := chains.ParseKey(k)
			if err != nil {
				return nil, errors.Wrap(err, "fallback directory")
			}
			if err := validEntry(registry, key, addr); err != nil {
				return nil, errors.Wrapf(err, "fallback directory %s", key)
			}
			fallback[key] = strings.TrimSpace(addr)
		}
		for _, d := range registry.All() {
			if _, ok := fallback[d.Key]; !ok {
				return nil, errors.Newf("fallback directory has no address for %s", d.Key)
			}
		}
	}

	return &Directory{
		registry:   registry,
		httpClient: httpClient,
		cache:      cache,
		url:        strings.TrimRight(cfg.APIURL, "/") + companyPath,
		ttl:        cfg.TTL,
		budget:     cfg.FetchTimeout,
		failClosed: cfg.FailClosed,
		fallback:   fallback,
	}, nil
}

// Lookup returns the receiving address for key. It never returns an empty
// or placeholder address.
func (d *Directory) Lookup(ctx context.Context, key chains.Key) (string, Source, error) {
	entries, src, err := d.Entries(ctx)
	if err != nil {
		return "", src, err
	}
	addr, ok := entries[key]
	if !ok || addr == "" {
		if src != SourceFallback && !d.failClosed {
			if fb, ok := d.fallback[key]; ok {
				log.Warn("company wallet missing from directory, using fallback", "chain", key)
				metrics.DirectoryLookups.WithLabelValues(string(SourceFallback)).Inc()
				return fb, SourceFallback, nil
			}
		}
		return "", src, errors.Wrapf(ErrNoDestination, "%s", key)
	}
	return addr, src, nil
}

// Entries returns the full directory, from cache when fresh.
func (d *Directory) Entries(ctx context.Context) (Entries, Source, error) {
	if e, ok := d.cached(ctx); ok {
		metrics.DirectoryLookups.WithLabelValues(string(SourceCache)).Inc()
		return e, SourceCache, nil
	}

	d.fetchMu.Lock()
	defer d.fetchMu.Unlock()

	// another caller may have refreshed while we waited
	if e, ok := d.cached(ctx); ok {
		metrics.DirectoryLookups.WithLabelValues(string(SourceCache)).Inc()
		return e, SourceCache, nil
	}

	e, err := d.fetch(ctx)
	if err == nil {
		if cerr := d.cache.Set(ctx, cacheKey, e, d.ttl); cerr != nil {
			log.Warn("cache company directory", "error", cerr)
		}
		metrics.DirectoryLookups.WithLabelValues(string(SourceRemote)).Inc()
		return e, SourceRemote, nil
	}

	if d.failClosed {
		log.Error("company directory unavailable, refusing payment", "error", err)
		metrics.DirectoryLookups.WithLabelValues("refused").Inc()
		return nil, "", errors.Wrap(ErrUnavailable, err.Error())
	}
	// fallback entries are never cached so the next call tries the API again
	log.Warn("company directory unavailable, using fallback table", "error", err)
	metrics.DirectoryLookups.WithLabelValues(string(SourceFallback)).Inc()
	return copyEntries(d.fallback), SourceFallback, nil
}

// Invalidate drops the cached directory.
func (d *Directory) Invalidate(ctx context.Context) error {
	return d.cache.Delete(ctx, cacheKey)
}

func (d *Directory) cached(ctx context.Context) (Entries, bool) {
	e, ok, err := d.cache.Get(ctx, cacheKey)
	if err != nil {
		log.Warn("read cached company directory", "error", err)
		return nil, false
	}
	return e, ok && len(e) > 0
}

func (d *Directory) fetch(ctx context.Context) (Entries, error) {
	fctx, cancel := context.WithTimeout(ctx, d.budget)
	defer cancel()

	cfg := retry.DefaultConfig()
	cfg.InitialDelayBeforeRetrying = 100 * time.Millisecond
	cfg.MaxDelayBeforeRetrying = 2 * time.Second

	var (
		out      Entries
		rejected error
		lastErr  error
	)
	_, err := retry.Retry(fctx, cfg,
		func(ctx context.Context) ([]interface{}, error) {
			resp, err := d.get(ctx)
			if err != nil {
				lastErr = err
				return nil, err
			}
			// an explicit failure from the API is an answer, not a transient error
			if !resp.Success {
				rejected = errors.Wrapf(ErrRejected, "%s", resp.Message)
				return nil, nil
			}
			out = d.sanitize(resp.Data)
			return nil, nil
		},
		nil,
		"fetch company wallets")

	switch {
	case rejected != nil:
		return nil, rejected
	case len(out) > 0:
		return out, nil
	case out != nil:
		return nil, errors.New("directory: api returned no usable addresses")
	case lastErr != nil:
		return nil, lastErr
	case err != nil:
		return nil, err
	}
	return nil, fctx.Err()
}

func (d *Directory) get(ctx context.Context) (apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return apiResponse{}, errors.Wrap(err, "build directory request")
	}
	req.Header.Set("Accept", "application/json")

	res, err := d.httpClient.Do(req)
	if err != nil {
		return apiResponse{}, errors.Wrap(err, "GET company wallets")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return apiResponse{}, errors.Wrap(err, "read company wallets")
	}
	if res.StatusCode >= 300 {
		return apiResponse{}, errors.Newf("GET company wallets: %s", res.Status)
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return apiResponse{}, errors.Wrap(err, "decode company wallets")
	}
	return out, nil
}

// sanitize keeps only supported chains with well-formed addresses.
func (d *Directory) sanitize(data map[string]string) Entries {
	out := Entries{}
	for k, addr := range data {
		key, err := chains.ParseKey(k)
		if err != nil {
			continue
		}
		if err := validEntry(d.registry, key, addr); err != nil {
			log.Warn("ignoring company wallet", "chain", key, "address", addr, "error", err)
			continue
		}
		out[key] = strings.TrimSpace(addr)
	}
	return out
}

func validEntry(registry *chains.Registry, key chains.Key, addr string) error {
	desc, err := registry.Get(key)
	if err != nil {
		return err
	}
	addr = strings.TrimSpace(addr)
	if isPlaceholder(addr) {
		return errors.Wrapf(chains.ErrInvalidAddress, "placeholder %q", addr)
	}
	if strings.EqualFold(addr, desc.StablecoinContract) {
		return errors.Wrap(chains.ErrInvalidAddress, "token contract is not a receiving address")
	}
	return chains.ValidateAddress(desc.Family, addr)
}

func isPlaceholder(addr string) bool {
	a := strings.ToLower(addr)
	if a == "" {
		return true
	}
	for _, marker := range []string{"placeholder", "your_", "...", "<"} {
		if strings.Contains(a, marker) {
			return true
		}
	}
	return false
}
