package common

import "unicode/utf8"

// TruncateBytes cuts s down to at most max bytes without splitting a UTF-8
// codepoint. Chinese filings are multi-byte almost everywhere, so a naive
// byte slice would routinely produce invalid trailing sequences.
func TruncateBytes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// TruncateRunes cuts s down to at most max runes, appending suffix when
// anything was removed.
func TruncateRunes(s string, max int, suffix string) string {
	if max <= 0 {
		return suffix
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + suffix
}
