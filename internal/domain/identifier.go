package domain

import (
	"net/netip"
	"regexp"
	"strings"
)

// Loose email shape; source systems emit case-inconsistent addresses so the
// match is case-insensitive and classification never rejects.
var emailPattern = regexp.MustCompile(`(?i)^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// ClassifyIdentifier maps a raw identifier string to its kind. Total and
// mutually exclusive: email wins over IPv4, IPv4 over IPv6, anything else is
// a name.
func ClassifyIdentifier(value string) Identifier {
	trimmed := strings.TrimSpace(value)

	if emailPattern.MatchString(trimmed) {
		return Identifier{Kind: IdentifierEmail, Value: value}
	}
	if addr, err := netip.ParseAddr(trimmed); err == nil {
		if addr.Is4() {
			return Identifier{Kind: IdentifierIPv4, Value: value}
		}
		return Identifier{Kind: IdentifierIPv6, Value: value}
	}
	return Identifier{Kind: IdentifierName, Value: value}
}

// ClassifyIdentifiers classifies a batch, dropping empty strings.
func ClassifyIdentifiers(values []string) []Identifier {
	out := make([]Identifier, 0, len(values))
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		out = append(out, ClassifyIdentifier(value))
	}
	return out
}

// SplitIdentifiers separates classified identifiers into the IP and email
// groups used for secondary store lookups. Names are not used for lookup.
func SplitIdentifiers(ids []Identifier) (ipIDs, emailIDs []string) {
	for _, id := range ids {
		switch id.Kind {
		case IdentifierIPv4, IdentifierIPv6:
			ipIDs = append(ipIDs, id.Value)
		case IdentifierEmail:
			emailIDs = append(emailIDs, id.Value)
		}
	}
	return ipIDs, emailIDs
}

// EmailVariants returns the dedup'd set of the address plus its lower and
// upper case forms, preserving first-seen order.
func EmailVariants(email string) []string {
	return UniqueStrings([]string{email, strings.ToLower(email), strings.ToUpper(email)})
}

// UniqueStrings removes duplicates and blanks, keeping first-seen order.
func UniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
