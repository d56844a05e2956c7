// Package stub fills placeholder tokens in the text templates shipped with
// caddyd (the Caddyfile and the systemd unit). Tokens are plain substrings,
// not template actions: every occurrence of a token is replaced by its value.
package stub

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Placeholder tokens understood by the shipped stubs.
const (
	FPMAddress = "FPM_ADDRESS"
	HomePath   = "VALET_HOME_PATH"
	ValetPath  = "VALET_PATH"
)

// Known lists every token the shipped templates may use.
var Known = []string{FPMAddress, HomePath, ValetPath}

// ErrUnresolved is returned when a template holds a known token with no value.
var ErrUnresolved = errors.New("unresolved placeholder")

// Render replaces each key of values found in src with its value.
//
// Replacement is a single left-to-right pass, so a value is never re-scanned
// for tokens and may itself contain token text. Longer tokens win over
// shorter ones at the same position. A Known token in src with no entry in
// values yields an error wrapping ErrUnresolved.
func Render(src string, values map[string]string) (string, error) {
	tokens := make([]string, 0, len(values))
	for tok := range values {
		if tok == "" {
			return "", fmt.Errorf("empty placeholder token")
		}
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})

	pairs := make([]string, 0, 2*len(tokens))
	masks := make([]string, 0, 2*len(tokens))
	for _, tok := range tokens {
		pairs = append(pairs, tok, values[tok])
		masks = append(masks, tok, "\x00")
	}

	// Mask the supplied tokens; whatever Known token survives has no value.
	if left := Unresolved(strings.NewReplacer(masks...).Replace(src)); len(left) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnresolved, strings.Join(left, ", "))
	}
	return strings.NewReplacer(pairs...).Replace(src), nil
}

// Unresolved returns the known tokens still present in s.
func Unresolved(s string) []string {
	var left []string
	for _, tok := range Known {
		if strings.Contains(s, tok) {
			left = append(left, tok)
		}
	}
	return left
}
