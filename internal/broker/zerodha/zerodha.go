package zerodha

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"autotrader/internal/interfaces"
	"autotrader/internal/logger"
	"autotrader/internal/types"
)

const (
	varietyRegular = "regular"
	productCNC     = "CNC"
	validityDay    = "DAY"
	orderMarket    = "MARKET"
	orderStopMkt   = "SL-M"
	maxTagLen      = 20
)

type Params struct {
	APIKey      string
	AccessToken string
	Exchange    string
	Timeout     time.Duration
	// Session reports whether t is inside trading hours. Kite has no
	// market clock endpoint.
	Session func(t time.Time) bool
}

// Zerodha is the live Kite Connect broker and market-data source.
type Zerodha struct {
	p      Params
	kc     *kiteconnect.Client
	mapper *instrumentMapper
	now    func() time.Time
}

var (
	_ interfaces.Broker     = (*Zerodha)(nil)
	_ interfaces.MarketData = (*Zerodha)(nil)
)

func NewZerodha(p Params) *Zerodha {
	if p.Exchange == "" {
		p.Exchange = "NSE"
	}
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	if p.Timeout > 0 {
		kc.SetHTTPClient(&http.Client{Timeout: p.Timeout})
	}
	return &Zerodha{p: p, kc: kc, mapper: newInstrumentMapper(), now: time.Now}
}

// SetBaseURI points the client at another Kite-compatible endpoint.
func (z *Zerodha) SetBaseURI(uri string) {
	z.kc.SetBaseURI(uri)
}

func (z *Zerodha) Account(ctx context.Context) (types.Account, error) {
	margins, err := z.kc.GetUserMargins()
	if err != nil {
		return types.Account{}, fmt.Errorf("kite margins: %w", err)
	}
	holdings, err := z.kc.GetHoldings()
	if err != nil {
		return types.Account{}, fmt.Errorf("kite holdings: %w", err)
	}
	var invested float64
	for _, h := range holdings {
		invested += float64(h.Quantity) * h.LastPrice
	}
	eq := margins.Equity
	return types.Account{
		PortfolioValue: eq.Net + invested,
		BuyingPower:    eq.Net,
		Cash:           eq.Available.Cash,
	}, nil
}

// Positions merges settled holdings with today's net positions.
func (z *Zerodha) Positions(ctx context.Context) ([]types.Position, error) {
	holdings, err := z.kc.GetHoldings()
	if err != nil {
		return nil, fmt.Errorf("kite holdings: %w", err)
	}
	positions, err := z.kc.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("kite positions: %w", err)
	}

	merged := map[string]*types.Position{}
	var order []string
	add := func(sym string, qty int, avg, last float64) {
		sym = strings.ToUpper(sym)
		p, ok := merged[sym]
		if !ok {
			p = &types.Position{Symbol: sym}
			merged[sym] = p
			order = append(order, sym)
		}
		if qty > 0 && avg > 0 {
			total := p.AvgPrice*float64(p.Qty) + avg*float64(qty)
			p.AvgPrice = total / float64(p.Qty+qty)
		}
		p.Qty += qty
		if last > 0 {
			p.Last = last
		}
	}
	for _, h := range holdings {
		add(h.Tradingsymbol, h.Quantity, h.AveragePrice, h.LastPrice)
	}
	for _, p := range positions.Net {
		if p.Product != productCNC {
			continue
		}
		add(p.Tradingsymbol, p.Quantity, p.AveragePrice, p.LastPrice)
	}

	out := make([]types.Position, 0, len(order))
	for _, sym := range order {
		if p := merged[sym]; p.Qty > 0 {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (z *Zerodha) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	params, err := orderParams(req, z.p.Exchange)
	if err != nil {
		return types.OrderResp{}, err
	}
	resp, err := z.kc.PlaceOrder(varietyRegular, params)
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("kite place order: %w", err)
	}

	out := types.OrderResp{OrderID: resp.OrderID, Status: "PLACED"}
	if req.Type == types.OrderTypeMarket {
		// Market orders usually fill before the history call returns.
		if hist, err := z.kc.GetOrderHistory(resp.OrderID); err == nil && len(hist) > 0 {
			last := hist[len(hist)-1]
			out.Status = last.Status
			out.FillPrice = last.AveragePrice
			out.Message = last.StatusMessage
		} else if err != nil {
			logger.Warn(ctx, "Order history unavailable", "order_id", resp.OrderID, "error", err)
		}
	}
	return out, nil
}

func (z *Zerodha) CancelOrder(ctx context.Context, orderID string) error {
	if _, err := z.kc.CancelOrder(varietyRegular, orderID, nil); err != nil {
		return fmt.Errorf("kite cancel %s: %w", orderID, err)
	}
	return nil
}

func (z *Zerodha) Clock(ctx context.Context) (types.MarketClock, error) {
	now := z.now()
	open := false
	if z.p.Session != nil {
		open = z.p.Session(now)
	}
	return types.MarketClock{IsOpen: open, Timestamp: now}, nil
}

func orderParams(req types.OrderReq, exchange string) (kiteconnect.OrderParams, error) {
	if req.Qty <= 0 {
		return kiteconnect.OrderParams{}, fmt.Errorf("invalid quantity %d", req.Qty)
	}
	p := kiteconnect.OrderParams{
		Exchange:        exchange,
		Tradingsymbol:   strings.ToUpper(req.Symbol),
		Validity:        validityDay,
		Product:         productCNC,
		TransactionType: string(req.Side),
		Quantity:        req.Qty,
		Tag:             sanitizeTag(req.Tag),
	}
	switch req.Side {
	case types.ActionBuy, types.ActionSell:
	default:
		return kiteconnect.OrderParams{}, fmt.Errorf("unsupported side %q", req.Side)
	}
	switch req.Type {
	case types.OrderTypeMarket, "":
		p.OrderType = orderMarket
	case types.OrderTypeStop:
		if req.StopPrice <= 0 {
			return kiteconnect.OrderParams{}, fmt.Errorf("stop order without trigger price")
		}
		p.OrderType = orderStopMkt
		p.TriggerPrice = req.StopPrice
	default:
		return kiteconnect.OrderParams{}, fmt.Errorf("unsupported order type %q", req.Type)
	}
	return p, nil
}

// sanitizeTag keeps what Kite accepts in a tag: alphanumerics, up to 20.
func sanitizeTag(tag string) string {
	var b strings.Builder
	for _, r := range tag {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() == maxTagLen {
			break
		}
	}
	return b.String()
}
