package risk

import "strings"

// builtinSectors covers the large caps most watchlists start from.
// Configured sectors take precedence.
var builtinSectors = map[string]string{
	// NSE
	"RELIANCE":   "energy",
	"ONGC":       "energy",
	"BPCL":       "energy",
	"IOC":        "energy",
	"NTPC":       "utilities",
	"POWERGRID":  "utilities",
	"TCS":        "it",
	"INFY":       "it",
	"WIPRO":      "it",
	"HCLTECH":    "it",
	"TECHM":      "it",
	"LTIM":       "it",
	"HDFCBANK":   "banking",
	"ICICIBANK":  "banking",
	"SBIN":       "banking",
	"KOTAKBANK":  "banking",
	"AXISBANK":   "banking",
	"INDUSINDBK": "banking",
	"BAJFINANCE": "finance",
	"BAJAJFINSV": "finance",
	"HINDUNILVR": "fmcg",
	"ITC":        "fmcg",
	"NESTLEIND":  "fmcg",
	"BRITANNIA":  "fmcg",
	"MARUTI":     "auto",
	"TATAMOTORS": "auto",
	"M&M":        "auto",
	"BAJAJ-AUTO": "auto",
	"EICHERMOT":  "auto",
	"SUNPHARMA":  "pharma",
	"DRREDDY":    "pharma",
	"CIPLA":      "pharma",
	"DIVISLAB":   "pharma",
	"TATASTEEL":  "metals",
	"JSWSTEEL":   "metals",
	"HINDALCO":   "metals",
	"LT":         "infrastructure",
	"ULTRACEMCO": "cement",
	"BHARTIARTL": "telecom",

	// US
	"AAPL":  "technology",
	"MSFT":  "technology",
	"NVDA":  "technology",
	"AMD":   "technology",
	"INTC":  "technology",
	"GOOGL": "communication",
	"META":  "communication",
	"AMZN":  "consumer",
	"TSLA":  "consumer",
	"JPM":   "financials",
	"BAC":   "financials",
	"GS":    "financials",
	"XOM":   "energy",
	"CVX":   "energy",
	"JNJ":   "healthcare",
	"PFE":   "healthcare",
	"UNH":   "healthcare",
}

// SectorOf resolves a symbol's sector. Unknown symbols are their own
// sector.
func SectorOf(symbol string, configured map[string]string) string {
	s := strings.ToUpper(symbol)
	if sector, ok := configured[s]; ok && sector != "" {
		return strings.ToLower(sector)
	}
	if sector, ok := builtinSectors[s]; ok {
		return sector
	}
	return s
}
