package xlsx

import (
	"strings"
)

func hyperlinkFormula(url, text string) string {
	return `HYPERLINK("` + escapeFormulaString(url) + `","` + escapeFormulaString(text) + `")`
}

func escapeFormulaString(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// parseHyperlinkFormula extracts the URL and the optional label from
// HYPERLINK("url","label"). Both arguments must be string literals.
func parseHyperlinkFormula(formula string) (url, label string, ok bool) {
	f := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(formula), "="))
	if len(f) < len("HYPERLINK()") || !strings.EqualFold(f[:len("HYPERLINK(")], "HYPERLINK(") || !strings.HasSuffix(f, ")") {
		return "", "", false
	}
	args := strings.TrimSpace(f[len("HYPERLINK(") : len(f)-1])

	url, rest, ok := readStringLiteral(args)
	if !ok {
		return "", "", false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return url, "", true
	}
	if !strings.HasPrefix(rest, ",") && !strings.HasPrefix(rest, ";") {
		return "", "", false
	}
	label, tail, ok := readStringLiteral(strings.TrimSpace(rest[1:]))
	if !ok || strings.TrimSpace(tail) != "" {
		return "", "", false
	}
	return url, label, true
}

func readStringLiteral(s string) (value, rest string, ok bool) {
	if !strings.HasPrefix(s, `"`) {
		return "", "", false
	}
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != '"' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '"' {
			b.WriteByte('"')
			i++
			continue
		}
		return b.String(), s[i+1:], true
	}
	return "", "", false
}
