package rates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"remit/internal/core"
)

//go:generate go tool go.uber.org/mock/mockgen -source=provider.go -destination=source_mock.go -package=rates

// Source fetches a raw interbank rate for a currency pair.
type Source interface {
	FetchRate(ctx context.Context, base, quote string) (decimal.Decimal, error)
	Name() string
}

type cachedQuote struct {
	rate      decimal.Decimal
	source    string
	fetchedAt time.Time
}

// Provider caches interbank rates with a TTL and applies the configured
// margin to produce customer rates. It degrades in order: fresh fetch,
// last-known-good cached rate, configured static fallback. It never
// touches ledger state.
type Provider struct {
	source Source
	cfg    Config
	logger core.Logger
	margin decimal.Decimal
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedQuote
}

func NewProvider(source Source, cfg Config, logger core.Logger) *Provider {
	return &Provider{
		source: source,
		cfg:    cfg,
		logger: logger,
		margin: decimal.NewFromFloat(cfg.Margin),
		now:    time.Now,
		cache:  make(map[string]cachedQuote),
	}
}

// NewProviderAt is NewProvider with an injectable clock, for tests that
// need deterministic TTL behavior.
func NewProviderAt(source Source, cfg Config, logger core.Logger, now func() time.Time) *Provider {
	p := NewProvider(source, cfg, logger)
	p.now = now
	return p
}

func (p *Provider) GetRate(ctx context.Context, base, quote string) (core.RateQuote, error) {
	if base == quote {
		return p.quoteFrom(base, quote, decimal.NewFromInt(1), "identity"), nil
	}

	key := base + "/" + quote
	now := p.now()

	p.mu.RLock()
	cached, ok := p.cache[key]
	p.mu.RUnlock()

	if ok && now.Sub(cached.fetchedAt) < p.cfg.CacheTTL {
		return p.quoteFrom(base, quote, cached.rate, cached.source), nil
	}

	rate, err := p.source.FetchRate(ctx, base, quote)
	if err == nil {
		p.mu.Lock()
		p.cache[key] = cachedQuote{rate: rate, source: p.source.Name(), fetchedAt: now}
		p.mu.Unlock()
		return p.quoteFrom(base, quote, rate, p.source.Name()), nil
	}

	// Last-known-good beats failing the transaction, but the staleness is
	// an operational signal.
	if ok {
		p.logger.ErrorContext(ctx, "rate fetch failed, serving stale cached rate",
			"pair", key,
			"cached_at", cached.fetchedAt,
			"error", err,
		)
		return p.quoteFrom(base, quote, cached.rate, cached.source+" (stale)"), nil
	}

	if fallback, ferr := p.staticFallback(base, quote); ferr == nil {
		p.logger.ErrorContext(ctx, "rate fetch failed, serving static fallback rate",
			"pair", key,
			"error", err,
		)
		return p.quoteFrom(base, quote, fallback, "static-fallback"), nil
	}

	return core.RateQuote{}, fmt.Errorf("no rate available for %s: %w", key, err)
}

func (p *Provider) quoteFrom(base, quote string, rate decimal.Decimal, source string) core.RateQuote {
	return core.RateQuote{
		Base:         base,
		Quote:        quote,
		Rate:         rate,
		CustomerRate: rate.Mul(decimal.NewFromInt(1).Sub(p.margin)),
		Source:       source,
		Timestamp:    p.now().UTC(),
	}
}

func (p *Provider) staticFallback(base, quote string) (decimal.Decimal, error) {
	raw, ok := p.cfg.FallbackRates[base+"-"+quote]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no fallback rate configured for %s/%s", base, quote)
	}
	return decimal.NewFromString(raw)
}
