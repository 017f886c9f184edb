package token

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// bareToken matches input that is nothing but a token.
var bareToken = regexp.MustCompile(`^[A-Za-z0-9_-]+={0,2}$`)

// BuildLink encodes p and appends it to base as "#<key>=<token>".
func BuildLink(base string, key Kind, p Payload) (string, error) {
	tok, err := Encode(p)
	if err != nil {
		return "", err
	}
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base = base[:i]
	}
	return fmt.Sprintf("%s#%s=%s", base, key, url.QueryEscape(tok)), nil
}

// ExtractToken pulls the token for key out of user input. Accepted forms, in
// preference order: a bare token, "key=token", a full URL whose fragment or
// query carries key, free text ending in a "#..." fragment. Anything else is
// returned trimmed, so decoding produces the error.
func ExtractToken(input string, key Kind) string {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return ""
	}
	if bareToken.MatchString(raw) {
		return raw
	}

	if strings.HasPrefix(raw, string(key)+"=") {
		if tok := queryValue(raw, key); tok != "" {
			return tok
		}
	}

	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		if tok := queryValue(u.EscapedFragment(), key); tok != "" {
			return tok
		}
		if tok := queryValue(u.RawQuery, key); tok != "" {
			return tok
		}
	}

	if i := strings.LastIndexByte(raw, '#'); i >= 0 {
		if tok := queryValue(raw[i+1:], key); tok != "" {
			return tok
		}
	}

	return raw
}

// ParseFragment returns the offer and answer tokens carried by a location
// fragment (with or without the leading '#').
func ParseFragment(fragment string) (offer, answer string) {
	fragment = strings.TrimPrefix(fragment, "#")
	if fragment == "" {
		return "", ""
	}
	return queryValue(fragment, KindOffer), queryValue(fragment, KindAnswer)
}

// queryValue returns the value of the first "key=value" pair in s, split on
// '&' or ';'. Percent escapes are decoded but '+' is kept, since the standard
// base64 alphabet uses it.
func queryValue(s string, key Kind) string {
	for _, pair := range strings.FieldsFunc(s, func(r rune) bool { return r == '&' || r == ';' }) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k != string(key) {
			continue
		}
		if unescaped, err := url.PathUnescape(v); err == nil {
			v = unescaped
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
