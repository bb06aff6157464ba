package bank

import (
	"time"
)

type Config struct {
	BaseURL      string        `envconfig:"BANK_BASE_URL" default:"http://localhost:9292"`
	Token        string        `envconfig:"BANK_TOKEN"`
	Timeout      time.Duration `envconfig:"BANK_TIMEOUT" default:"10s"`
	MaxRetries   int           `envconfig:"BANK_MAX_RETRIES" default:"3"`
	RetryBackoff time.Duration `envconfig:"BANK_RETRY_BACKOFF" default:"200ms"`
}
