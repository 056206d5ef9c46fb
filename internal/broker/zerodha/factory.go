package zerodha

import (
	"fmt"

	"autotrader/internal/store"
	"autotrader/internal/types"
)

// FromConfig builds a Kite client from loaded config and secrets.
func FromConfig(cfg *store.Config) (*Zerodha, error) {
	if cfg.Secrets.KiteAPIKey == "" || cfg.Secrets.KiteAccessToken == "" {
		return nil, fmt.Errorf("%w: kite credentials missing", types.ErrConfiguration)
	}
	return NewZerodha(Params{
		APIKey:      cfg.Secrets.KiteAPIKey,
		AccessToken: cfg.Secrets.KiteAccessToken,
		Exchange:    cfg.Exchange,
		Timeout:     cfg.Timeout(cfg.Timeouts.BrokerSeconds),
		Session:     cfg.InTradingHours,
	}), nil
}
