// Package common provides shared utilities across the application.
package common

import (
	"strings"
)

// StockCode represents a parsed A-share stock code.
// Canonical form is the bare six-digit code (e.g. "601360"); the exchange is
// inferred from the code prefix when not given explicitly.
type StockCode struct {
	// Code is the six-digit security code (e.g. "601360")
	Code string
	// Exchange is the listing venue code ("SH", "SZ", "BJ")
	Exchange string
	// Raw is the original input string
	Raw string
}

// prefixToExchange maps leading code digits to the listing exchange.
// 60/68 Shanghai, 00/30 Shenzhen, 43/83/87/92 Beijing.
var prefixToExchange = []struct {
	prefix   string
	exchange string
}{
	{"60", "SH"},
	{"68", "SH"},
	{"90", "SH"},
	{"00", "SZ"},
	{"30", "SZ"},
	{"20", "SZ"},
	{"43", "BJ"},
	{"83", "BJ"},
	{"87", "BJ"},
	{"92", "BJ"},
}

var exchangeNames = map[string]string{
	"SH": "上交所",
	"SZ": "深交所",
	"BJ": "北交所",
}

// ParseStockCode parses a stock code in any of the accepted forms:
//   - "601360"           bare six-digit code, exchange inferred
//   - "601360.SH"        code with exchange suffix
//   - "SH601360"         exchange-prefixed form
//   - "sh.601360"        lowercase with separator
//
// An empty Code on the result means the input was not a recognizable code.
func ParseStockCode(input string) StockCode {
	raw := input
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" {
		return StockCode{}
	}

	exchange := ""

	// Suffix form: 601360.SH
	if idx := strings.LastIndex(s, "."); idx > 0 {
		if _, ok := exchangeNames[s[idx+1:]]; ok {
			exchange = s[idx+1:]
			s = s[:idx]
		}
	}

	// Prefix form: SH601360 or SH.601360
	for ex := range exchangeNames {
		if strings.HasPrefix(s, ex) {
			exchange = ex
			s = strings.TrimPrefix(strings.TrimPrefix(s, ex), ".")
			break
		}
	}

	if !isSixDigits(s) {
		return StockCode{}
	}

	if exchange == "" {
		exchange = inferExchange(s)
	}

	return StockCode{
		Code:     s,
		Exchange: exchange,
		Raw:      raw,
	}
}

func isSixDigits(s string) bool {
	if len(s) != 6 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func inferExchange(code string) string {
	for _, m := range prefixToExchange {
		if strings.HasPrefix(code, m.prefix) {
			return m.exchange
		}
	}
	return ""
}

// String returns the bare six-digit code, the form the data service expects.
func (c StockCode) String() string {
	return c.Code
}

// Qualified returns the suffix-qualified form, e.g. "601360.SH". Codes with
// no resolvable exchange come back bare.
func (c StockCode) Qualified() string {
	if c.Code == "" {
		return ""
	}
	if c.Exchange == "" {
		return c.Code
	}
	return c.Code + "." + c.Exchange
}

// ExchangeName returns the Chinese venue name, or "" when unknown.
func (c StockCode) ExchangeName() string {
	return exchangeNames[c.Exchange]
}

// ParseStockCodes parses a list of inputs, dropping anything unrecognizable.
func ParseStockCodes(inputs []string) []StockCode {
	result := make([]StockCode, 0, len(inputs))
	for _, in := range inputs {
		if parsed := ParseStockCode(in); parsed.Code != "" {
			result = append(result, parsed)
		}
	}
	return result
}
