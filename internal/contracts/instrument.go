package contracts

// Instrument is a member of the investable universe. An instrument that
// is not directly tradable (an index) maps to a tradable proxy (an ETF);
// several instruments may share one proxy.
type Instrument struct {
	ID     string `json:"id"`     // unique identifier within the universe
	Symbol string `json:"symbol"` // display symbol
	Proxy  string `json:"proxy"`  // tradable proxy symbol, empty when directly tradable
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// TradeSymbol returns the symbol orders are placed against.
func (i *Instrument) TradeSymbol() string {
	if i.Proxy != "" {
		return i.Proxy
	}
	return i.Symbol
}
