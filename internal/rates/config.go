package rates

import (
	"time"
)

type Config struct {
	ProviderURL   string            `envconfig:"RATES_PROVIDER_URL" default:"https://api.frankfurter.dev/v1/latest"`
	Timeout       time.Duration     `envconfig:"RATES_TIMEOUT" default:"5s"`
	CacheTTL      time.Duration     `envconfig:"RATES_CACHE_TTL" default:"10m"`
	Margin        float64           `envconfig:"RATES_MARGIN" default:"0.025"`
	FallbackRates map[string]string `envconfig:"RATES_FALLBACK"` // "EUR-HNL:30.0,USD-EUR:0.92"
}
