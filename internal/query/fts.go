package query

import "strings"

// RewriteFTSQuery turns a user-supplied search string into an FTS5 MATCH
// expression (§4.E "FTS query rewriter"):
//  1. tokenize respecting double-quoted substrings (a quoted phrase stays
//     one token, quotes included);
//  2. upper-case the bare tokens and/or/not so FTS5 treats them as boolean
//     operators;
//  3. wrap any unquoted token containing '-' or '/' in double quotes, since
//     FTS5 would otherwise read a hyphen as a column filter or NOT prefix;
//  4. join with single spaces.
func RewriteFTSQuery(q string) string {
	tokens := tokenizeFTS(q)
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = rewriteToken(t)
	}
	return strings.Join(out, " ")
}

// tokenizeFTS splits on whitespace, treating a double-quoted span
// (including its quotes) as a single token even if it contains spaces.
func tokenizeFTS(q string) []string {
	var tokens []string
	var b strings.Builder
	inQuote := false

	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}

	for _, r := range q {
		switch {
		case r == '"':
			b.WriteRune(r)
			inQuote = !inQuote
			if !inQuote {
				flush()
			}
		case !inQuote && (r == ' ' || r == '\t' || r == '\n'):
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func rewriteToken(tok string) string {
	if strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) && len(tok) >= 2 {
		return tok // already a quoted phrase, leave untouched
	}
	switch strings.ToLower(tok) {
	case "and", "or", "not":
		return strings.ToUpper(tok)
	}
	if strings.ContainsAny(tok, "-/") {
		return `"` + tok + `"`
	}
	return tok
}
