// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"sort"
	"strings"
)

// EncodeOptionIDs packs a set of option ids into ",a,b," form. Sorting makes
// equal sets encode identically; the surrounding commas let a single id be
// matched with LIKE '%,id,%'.
func EncodeOptionIDs(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return "," + strings.Join(sorted, ",") + ","
}

// DecodeOptionIDs reverses EncodeOptionIDs.
func DecodeOptionIDs(s string) []string {
	s = strings.Trim(s, ",")
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// OptionIDPattern is the LIKE pattern matching votes that include id.
func OptionIDPattern(id string) string {
	return "%," + id + ",%"
}
