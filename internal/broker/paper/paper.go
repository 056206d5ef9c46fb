// Package paper is the dry-run broker. Fills happen at the market-data
// last price and the whole account lives in the store's key/value table,
// so nothing is kept in memory between cycles.
package paper

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"autotrader/internal/interfaces"
	"autotrader/internal/logger"
	"autotrader/internal/store"
	"autotrader/internal/types"
)

const StateKey = "paper.state"

type holding struct {
	Qty      int     `json:"qty"`
	AvgPrice float64 `json:"avg_price"`
}

type restingStop struct {
	Symbol    string  `json:"symbol"`
	Qty       int     `json:"qty"`
	StopPrice float64 `json:"stop_price"`
}

type state struct {
	Cash     float64                `json:"cash"`
	Holdings map[string]holding     `json:"holdings"`
	Stops    map[string]restingStop `json:"stops"`
}

type Broker struct {
	cfg  *store.Config
	kv   interfaces.KV
	data interfaces.MarketData
	now  func() time.Time
	mu   sync.Mutex
}

var _ interfaces.Broker = (*Broker)(nil)

func New(cfg *store.Config, kv interfaces.KV, data interfaces.MarketData) *Broker {
	return &Broker{cfg: cfg, kv: kv, data: data, now: time.Now}
}

func money(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func (b *Broker) load(ctx context.Context) (state, error) {
	st := state{Cash: b.cfg.Paper.StartingCash}
	raw, ok, err := b.kv.GetKV(ctx, StateKey)
	if err != nil {
		return st, err
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return st, fmt.Errorf("decode paper state: %w", err)
		}
	}
	if st.Holdings == nil {
		st.Holdings = map[string]holding{}
	}
	if st.Stops == nil {
		st.Stops = map[string]restingStop{}
	}
	return st, nil
}

func (b *Broker) save(ctx context.Context, st state) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return b.kv.SetKV(ctx, StateKey, string(raw))
}

// sweep fills resting stops whose trigger the last price has crossed.
func (b *Broker) sweep(ctx context.Context, st *state, prices map[string]float64) bool {
	changed := false
	ids := make([]string, 0, len(st.Stops))
	for id := range st.Stops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s := st.Stops[id]
		last, ok := prices[s.Symbol]
		if !ok || last <= 0 || last > s.StopPrice {
			continue
		}
		h := st.Holdings[s.Symbol]
		qty := s.Qty
		if qty > h.Qty {
			qty = h.Qty
		}
		delete(st.Stops, id)
		changed = true
		if qty <= 0 {
			continue
		}
		st.Cash = money(st.Cash + float64(qty)*s.StopPrice)
		h.Qty -= qty
		if h.Qty == 0 {
			delete(st.Holdings, s.Symbol)
		} else {
			st.Holdings[s.Symbol] = h
		}
		logger.Risk(ctx, s.Symbol, "PAPER_STOP_FILLED", "qty", qty, "stop", s.StopPrice, "last", last)
	}
	return changed
}

func (b *Broker) prices(ctx context.Context, st state) map[string]float64 {
	out := make(map[string]float64, len(st.Holdings))
	for sym := range st.Holdings {
		p, err := b.data.LastPrice(ctx, sym)
		if err != nil {
			logger.Warn(ctx, "Paper broker could not price holding", "symbol", sym, "error", err)
			continue
		}
		out[sym] = p
	}
	return out
}

func (b *Broker) Account(ctx context.Context) (types.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.load(ctx)
	if err != nil {
		return types.Account{}, err
	}
	prices := b.prices(ctx, st)
	if b.sweep(ctx, &st, prices) {
		if err := b.save(ctx, st); err != nil {
			return types.Account{}, err
		}
	}

	value := st.Cash
	for sym, h := range st.Holdings {
		p, ok := prices[sym]
		if !ok {
			p = h.AvgPrice
		}
		value += float64(h.Qty) * p
	}
	return types.Account{PortfolioValue: money(value), BuyingPower: st.Cash, Cash: st.Cash}, nil
}

func (b *Broker) Positions(ctx context.Context) ([]types.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	prices := b.prices(ctx, st)
	if b.sweep(ctx, &st, prices) {
		if err := b.save(ctx, st); err != nil {
			return nil, err
		}
	}

	out := make([]types.Position, 0, len(st.Holdings))
	for sym, h := range st.Holdings {
		out = append(out, types.Position{Symbol: sym, Qty: h.Qty, AvgPrice: h.AvgPrice, Last: prices[sym]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (b *Broker) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	if req.Qty <= 0 {
		return types.OrderResp{}, fmt.Errorf("invalid quantity %d", req.Qty)
	}
	symbol := strings.ToUpper(req.Symbol)

	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.load(ctx)
	if err != nil {
		return types.OrderResp{}, err
	}
	id := "PAPER-" + uuid.NewString()

	if req.Type == types.OrderTypeStop {
		if req.Side != types.ActionSell || req.StopPrice <= 0 {
			return types.OrderResp{}, fmt.Errorf("unsupported stop order %s at %.2f", req.Side, req.StopPrice)
		}
		st.Stops[id] = restingStop{Symbol: symbol, Qty: req.Qty, StopPrice: req.StopPrice}
		if err := b.save(ctx, st); err != nil {
			return types.OrderResp{}, err
		}
		return types.OrderResp{OrderID: id, Status: "TRIGGER PENDING", Message: "paper"}, nil
	}

	price, err := b.data.LastPrice(ctx, symbol)
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("price %s: %w", symbol, err)
	}
	h := st.Holdings[symbol]
	cost := money(float64(req.Qty) * price)

	switch req.Side {
	case types.ActionBuy:
		if cost > st.Cash {
			return types.OrderResp{}, fmt.Errorf("insufficient paper cash: need %.2f, have %.2f", cost, st.Cash)
		}
		total := h.AvgPrice*float64(h.Qty) + cost
		h.Qty += req.Qty
		h.AvgPrice = money(total / float64(h.Qty))
		st.Holdings[symbol] = h
		st.Cash = money(st.Cash - cost)
	case types.ActionSell:
		if req.Qty > h.Qty {
			return types.OrderResp{}, fmt.Errorf("cannot sell %d %s, holding %d", req.Qty, symbol, h.Qty)
		}
		h.Qty -= req.Qty
		if h.Qty == 0 {
			delete(st.Holdings, symbol)
		} else {
			st.Holdings[symbol] = h
		}
		st.Cash = money(st.Cash + cost)
	default:
		return types.OrderResp{}, fmt.Errorf("unsupported side %q", req.Side)
	}

	if err := b.save(ctx, st); err != nil {
		return types.OrderResp{}, err
	}
	logger.Debug(ctx, "Paper order filled", "symbol", symbol, "side", req.Side, "qty", req.Qty, "price", price, "cash", st.Cash)
	return types.OrderResp{OrderID: id, Status: "COMPLETE", FillPrice: price, Message: "paper"}, nil
}

func (b *Broker) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := st.Stops[orderID]; !ok {
		return fmt.Errorf("order %s not open", orderID)
	}
	delete(st.Stops, orderID)
	return b.save(ctx, st)
}

// Clock follows the configured session; the paper market has no holidays.
func (b *Broker) Clock(ctx context.Context) (types.MarketClock, error) {
	now := b.now()
	return types.MarketClock{IsOpen: b.cfg.InTradingHours(now), Timestamp: now}, nil
}
