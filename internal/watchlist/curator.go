// Package watchlist builds the symbol universe for a cycle from the
// configured static list and discovered most-active symbols.
package watchlist

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"autotrader/internal/interfaces"
	"autotrader/internal/logger"
	"autotrader/internal/store"
	"autotrader/internal/types"
)

// LastListKey holds the previously curated list as a JSON array.
const LastListKey = "watchlist.last"

type Curator struct {
	cfg    *store.Config
	source interfaces.ActivitySource
	kv     interfaces.KV
}

func NewCurator(cfg *store.Config, source interfaces.ActivitySource, kv interfaces.KV) *Curator {
	return &Curator{cfg: cfg, source: source, kv: kv}
}

// Curate merges static and discovered symbols, static first, upper-cased,
// deduplicated and capped. Discovery failures degrade to the static list.
func (c *Curator) Curate(ctx context.Context) (types.WatchlistResult, error) {
	var res types.WatchlistResult
	seen := map[string]bool{}
	limit := c.cfg.Watchlist.MaxSize

	add := func(sym string) bool {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			return false
		}
		if limit > 0 && len(res.Symbols) >= limit {
			return false
		}
		seen[sym] = true
		res.Symbols = append(res.Symbols, sym)
		return true
	}

	for _, sym := range c.cfg.Watchlist.Static {
		if add(sym) {
			res.Static++
		}
	}

	if c.cfg.Watchlist.Dynamic && c.source != nil {
		dctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout(c.cfg.Timeouts.DiscoverySeconds))
		active, err := c.source.MostActive(dctx)
		cancel()
		if err != nil {
			res.Degraded = types.DegradedDiscoveryUnavailable
			logger.Warn(ctx, "Discovery unavailable, using static watchlist", "error", err)
		} else {
			for _, a := range c.filter(active) {
				if add(a.Symbol) {
					res.Discovered++
				}
			}
		}
	}

	last := c.lastList(ctx)
	for _, sym := range res.Symbols {
		if !last[sym] {
			res.Added = append(res.Added, sym)
		}
	}
	if len(res.Added) > 0 {
		logger.Info(ctx, "Watchlist symbols added", "symbols", res.Added)
	}

	if c.kv != nil {
		b, _ := json.Marshal(res.Symbols)
		if err := c.kv.SetKV(ctx, LastListKey, string(b)); err != nil {
			return res, err
		}
	}
	logger.Info(ctx, "Watchlist curated",
		"size", len(res.Symbols),
		"static", res.Static,
		"discovered", res.Discovered,
		"degraded", res.Degraded,
	)
	return res, nil
}

// filter keeps liquid symbols inside the price band, busiest first.
func (c *Curator) filter(active []types.ActiveSymbol) []types.ActiveSymbol {
	w := c.cfg.Watchlist
	var out []types.ActiveSymbol
	for _, a := range active {
		if a.TradeCount < w.MinTradeCount {
			continue
		}
		if a.Price < w.MinPrice || (w.MaxPrice > 0 && a.Price > w.MaxPrice) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TradeCount > out[j].TradeCount })
	return out
}

func (c *Curator) lastList(ctx context.Context) map[string]bool {
	out := map[string]bool{}
	if c.kv == nil {
		return out
	}
	raw, ok, err := c.kv.GetKV(ctx, LastListKey)
	if err != nil {
		logger.Warn(ctx, "Previous watchlist unavailable", "error", err)
		return out
	}
	if !ok {
		return out
	}
	var syms []string
	if err := json.Unmarshal([]byte(raw), &syms); err != nil {
		return out
	}
	for _, s := range syms {
		out[s] = true
	}
	return out
}
