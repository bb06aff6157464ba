package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"remit/internal/bank"
	"remit/internal/core"
	"remit/internal/http"
	"remit/internal/rates"
	"remit/internal/sqlite"
)

type Config struct {
	LogLevel int `envconfig:"LOG_LEVEL" default:"-4"`

	Database     sqlite.Config
	HTTP         http.Config
	Rates        rates.Config
	Bank         bank.Config
	Orchestrator core.OrchestratorConfig
	Reconciler   core.ReconcilerConfig

	// Pools maps currency to pooled-account routing details, formatted
	// "bankID|externalAccountID|iban|bic", e.g.
	// POOLS="EUR:fake1|acc-eur-1|DE89370400440532013000|MARKDEFF".
	Pools map[string]string `envconfig:"POOLS"`
}

func Load() (Config, error) {
	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process config: %w", err)
	}

	return config, nil
}

// MasterAccounts parses the configured pools into registry seed records.
func (c Config) MasterAccounts() ([]core.MasterAccount, error) {
	accounts := make([]core.MasterAccount, 0, len(c.Pools))

	for currency, raw := range c.Pools {
		parts := strings.Split(raw, "|")
		if len(parts) != 4 {
			return nil, fmt.Errorf("malformed pool config for %s: want bankID|accountID|iban|bic", currency)
		}

		accounts = append(accounts, core.MasterAccount{
			Currency:            currency,
			CorrespondentBankID: parts[0],
			ExternalAccountID:   parts[1],
			IBAN:                parts[2],
			BIC:                 parts[3],
		})
	}

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Currency < accounts[j].Currency })
	return accounts, nil
}

// Currencies lists the configured pool currencies.
func (c Config) Currencies() []string {
	currencies := make([]string, 0, len(c.Pools))
	for currency := range c.Pools {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)
	return currencies
}
