package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"simple lowercase", "jane@example.com", "jane@example.com"},
		{"uppercase and whitespace", "  Jane.Doe@Example.COM ", "jane.doe@example.com"},
		{"gmail dots stripped", "john.doe@gmail.com", "johndoe@gmail.com"},
		{"gmail plus tag stripped", "John.Doe+jobs@gmail.com", "johndoe@gmail.com"},
		{"googlemail folded", "john.doe@googlemail.com", "johndoe@gmail.com"},
		{"non-gmail dots kept", "john.doe@acme.com", "john.doe@acme.com"},
		{"non-gmail plus kept", "john+tag@acme.com", "john+tag@acme.com"},
		{"no at sign", "not-an-email", "not-an-email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEmail(tt.in))
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"formatted us", "(555) 123-4567", "5551234567"},
		{"dashed", "555-123-4567", "5551234567"},
		{"country code dropped", "+1 555 123 4567", "5551234567"},
		{"eleven digits leading one", "15551234567", "5551234567"},
		{"international keeps last ten", "+44 20 7946 0958", "2079460958"},
		{"short number passes through", "12345", "12345"},
		{"letters ignored", "ext. 555-123-4567", "5551234567"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.in))
		})
	}
}

func TestNormalizeLinkedIn(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"profile url", "https://www.linkedin.com/in/jane-doe-123", "jane-doe-123"},
		{"pub url", "https://linkedin.com/pub/jane-doe/1/2/3", "jane-doe"},
		{"trailing slash", "https://linkedin.com/in/janedoe/", "janedoe"},
		{"uppercase folded", "https://LinkedIn.com/in/JaneDoe", "janedoe"},
		{"bare slug passes through", "jane-doe-123", "jane-doe-123"},
		{"garbage", "https://example.com/profile", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLinkedIn(tt.in))
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		first string
		last  string
		want  string
	}{
		{"empty", "", "", ""},
		{"plain", "Jane", "Doe", "jane|doe"},
		{"nickname canonicalized", "Bob", "Smith", "robert|smith"},
		{"canonical unchanged", "Robert", "Smith", "robert|smith"},
		{"suffix stripped", "Robert", "Smith Jr.", "robert|smith"},
		{"multiple suffixes", "Robert", "Smith Jr. PhD", "robert|smith"},
		{"comma suffix", "Robert", "Smith, III", "robert|smith"},
		{"single-token surname kept", "Victor", "V", "victor|v"},
		{"first name only", "Jane", "", "jane|"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.first, tt.last))
		})
	}
}

// Every normalizer must be idempotent: detection compares stored values that
// may already be normalized against fresh raw input.
func TestNormalizationIdempotent(t *testing.T) {
	emails := []string{"John.Doe+jobs@gmail.com", "jane@acme.com", "WEIRD@CASE.ORG"}
	for _, e := range emails {
		once := NormalizeEmail(e)
		assert.Equal(t, once, NormalizeEmail(once), "email %q", e)
	}

	phones := []string{"(555) 123-4567", "+1 555 123 4567", "12345"}
	for _, p := range phones {
		once := NormalizePhone(p)
		assert.Equal(t, once, NormalizePhone(once), "phone %q", p)
	}

	urls := []string{"https://www.linkedin.com/in/jane-doe-123", "jane-doe-123"}
	for _, u := range urls {
		once := NormalizeLinkedIn(u)
		assert.Equal(t, once, NormalizeLinkedIn(once), "linkedin %q", u)
	}
}
