package service

import (
	"regexp"
	"strings"
)

// evmAddressPattern matches an EVM-style address: 0x followed by exactly 40
// hex characters. Word boundaries keep longer hex blobs (tx hashes) from
// yielding phantom addresses.
var evmAddressPattern = regexp.MustCompile(`\b0x[0-9a-fA-F]{40}\b`)

// ExtractAddresses scans free text for address-shaped substrings and returns
// them deduplicated case-insensitively, first-seen order and casing preserved.
// Pure and deterministic, no failure mode beyond an empty result.
func ExtractAddresses(text string) []string {
	matches := evmAddressPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		key := strings.ToLower(m)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}
