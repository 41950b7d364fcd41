package domain

import (
	"reflect"
	"testing"
)

func TestClassifyIdentifier(t *testing.T) {
	cases := []struct {
		value string
		kind  IdentifierKind
	}{
		{"a@b.com", IdentifierEmail},
		{"First.Last+tag@Example.ORG", IdentifierEmail},
		{"192.168.0.1", IdentifierIPv4},
		{"::1", IdentifierIPv6},
		{"2001:db8::8a2e:370:7334", IdentifierIPv6},
		{"John Doe", IdentifierName},
		{"", IdentifierName},
		{"999.1.1.1", IdentifierName},
	}

	for _, tc := range cases {
		got := ClassifyIdentifier(tc.value)
		if got.Kind != tc.kind {
			t.Fatalf("classify %q: expected %s, got %s", tc.value, tc.kind, got.Kind)
		}
		if got.Value != tc.value {
			t.Fatalf("classify %q: value mutated to %q", tc.value, got.Value)
		}
	}
}

func TestSplitIdentifiersIgnoresNames(t *testing.T) {
	ids := ClassifyIdentifiers([]string{"a@b.com", "10.0.0.1", "::1", "Jane Doe", ""})

	ipIDs, emailIDs := SplitIdentifiers(ids)
	if !reflect.DeepEqual(ipIDs, []string{"10.0.0.1", "::1"}) {
		t.Fatalf("unexpected ip ids: %v", ipIDs)
	}
	if !reflect.DeepEqual(emailIDs, []string{"a@b.com"}) {
		t.Fatalf("unexpected email ids: %v", emailIDs)
	}
}

func TestEmailVariants(t *testing.T) {
	variants := EmailVariants("First@B.com")
	if !reflect.DeepEqual(variants, []string{"First@B.com", "first@b.com", "FIRST@B.COM"}) {
		t.Fatalf("unexpected variants: %v", variants)
	}

	// Already-lowercase addresses collapse to a single entry.
	if got := EmailVariants("a@b.com"); !reflect.DeepEqual(got, []string{"a@b.com", "A@B.COM"}) {
		t.Fatalf("unexpected variants for lowercase input: %v", got)
	}
}

func TestUniqueStringsPreservesOrder(t *testing.T) {
	got := UniqueStrings([]string{"b", "a", "b", "", "c", "a"})
	if !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("unexpected result: %v", got)
	}
}
