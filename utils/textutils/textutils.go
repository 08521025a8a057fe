// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

// Package textutils normalizes operator answers and display strings.
package textutils

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var lowerFrench = cases.Lower(language.French)

// NormalizeAnswer trims s and lowercases it with French rules, so "  OUI "
// and "Oui" both become "oui". Accents are kept: "Non" and "nón" differ.
func NormalizeAnswer(s string) string {
	return lowerFrench.String(strings.TrimSpace(s))
}

// ASCIIFolding removes accents, for output devices limited to ASCII
// ("Prédites" -> "Predites").
func ASCIIFolding(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		s,
	)

	return s
}
