package zerodha

import (
	"strings"
	"sync"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// instrumentMapper manages bidirectional mapping between symbols and tokens
type instrumentMapper struct {
	symbolToToken map[string]uint32
	tokenToSymbol map[uint32]string
	mu            sync.RWMutex
}

func newInstrumentMapper() *instrumentMapper {
	return &instrumentMapper{
		symbolToToken: make(map[string]uint32),
		tokenToSymbol: make(map[uint32]string),
	}
}

// load replaces the mapping with the equity instruments of a dump and
// returns how many were kept.
func (im *instrumentMapper) load(instruments kiteconnect.Instruments) int {
	sym := make(map[string]uint32, len(instruments))
	tok := make(map[uint32]string, len(instruments))
	for _, in := range instruments {
		if in.InstrumentType != "" && in.InstrumentType != "EQ" {
			continue
		}
		s := strings.ToUpper(in.Tradingsymbol)
		t := uint32(in.InstrumentToken)
		sym[s] = t
		tok[t] = s
	}

	im.mu.Lock()
	defer im.mu.Unlock()
	im.symbolToToken = sym
	im.tokenToSymbol = tok
	return len(sym)
}

func (im *instrumentMapper) loaded() bool {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return len(im.symbolToToken) > 0
}

func (im *instrumentMapper) getToken(symbol string) (uint32, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()

	token, exists := im.symbolToToken[symbol]
	return token, exists
}

func (im *instrumentMapper) getSymbol(token uint32) string {
	im.mu.RLock()
	defer im.mu.RUnlock()

	return im.tokenToSymbol[token]
}
