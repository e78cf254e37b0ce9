package model

// Token identifies one side of a pool. Amounts of the token are always
// handled with Decimals already applied.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals uint8  `json:"decimals"`
}
