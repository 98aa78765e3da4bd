package identity

import (
	"regexp"
	"strings"
)

// Normalization turns raw contact fields into canonical comparable forms.
// All functions are pure and idempotent: feeding an already-normalized value
// back in returns the same value. Empty or unusable input normalizes to "".

// nicknames maps common short forms to a canonical given name so that
// "Bob Smith" and "Robert Smith" produce the same name key. Canonical names
// never appear as keys, which keeps the lookup idempotent.
var nicknames = map[string]string{
	"abby":   "abigail",
	"alex":   "alexander",
	"andy":   "andrew",
	"becky":  "rebecca",
	"beth":   "elizabeth",
	"betty":  "elizabeth",
	"bill":   "william",
	"billy":  "william",
	"bob":    "robert",
	"bobby":  "robert",
	"charlie": "charles",
	"chris":  "christopher",
	"chuck":  "charles",
	"dan":    "daniel",
	"danny":  "daniel",
	"dave":   "david",
	"dick":   "richard",
	"drew":   "andrew",
	"ed":     "edward",
	"eddie":  "edward",
	"frank":  "francis",
	"greg":   "gregory",
	"hank":   "henry",
	"jack":   "john",
	"jeff":   "jeffrey",
	"jen":    "jennifer",
	"jenny":  "jennifer",
	"jerry":  "gerald",
	"jim":    "james",
	"jimmy":  "james",
	"joe":    "joseph",
	"johnny": "john",
	"kate":   "katherine",
	"kathy":  "katherine",
	"katie":  "katherine",
	"ken":    "kenneth",
	"kenny":  "kenneth",
	"larry":  "lawrence",
	"liz":    "elizabeth",
	"matt":   "matthew",
	"meg":    "margaret",
	"mike":   "michael",
	"nick":   "nicholas",
	"pat":    "patricia",
	"peggy":  "margaret",
	"ray":    "raymond",
	"rich":   "richard",
	"rick":   "richard",
	"rob":    "robert",
	"ron":    "ronald",
	"ronnie": "ronald",
	"sam":    "samuel",
	"stan":   "stanley",
	"steve":  "steven",
	"sue":    "susan",
	"susie":  "susan",
	"ted":    "theodore",
	"tim":    "timothy",
	"tom":    "thomas",
	"tommy":  "thomas",
	"tony":   "anthony",
	"vicky":  "victoria",
	"walt":   "walter",
	"will":   "william",
}

// nameSuffixes are generational and professional suffixes stripped from the
// surname before comparison ("Smith Jr." vs "Smith").
var nameSuffixes = map[string]bool{
	"jr": true, "sr": true,
	"ii": true, "iii": true, "iv": true, "v": true,
	"phd": true, "md": true, "esq": true, "dds": true,
	"jd": true, "mba": true, "cpa": true, "rn": true,
}

var linkedinSlugRe = regexp.MustCompile(`/(?:in|pub)/([a-z0-9][a-z0-9\-_.%]*)`)

// bareSlugRe accepts an already-extracted profile slug, so normalizing twice
// yields the same result.
var bareSlugRe = regexp.MustCompile(`^[a-z0-9][a-z0-9\-_.%]*$`)

// NormalizeEmail lowercases and trims an email address. Gmail addresses get
// the full canonical treatment: dots stripped from the local part, +tag
// suffixes removed, and googlemail.com folded into gmail.com.
func NormalizeEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return ""
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local, domain := email[:at], email[at+1:]
	if domain == "gmail.com" || domain == "googlemail.com" {
		local = strings.ReplaceAll(local, ".", "")
		if plus := strings.Index(local, "+"); plus >= 0 {
			local = local[:plus]
		}
		domain = "gmail.com"
	}
	return local + "@" + domain
}

// NormalizePhone reduces a phone number to its last 10 digits. A leading US
// country code "1" on an 11-digit number is dropped. Numbers shorter than 10
// digits are returned as their raw digit string.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) >= 10 {
		return digits[len(digits)-10:]
	}
	return digits
}

// NormalizeLinkedIn extracts the profile slug from a LinkedIn URL
// (…/in/<slug> or …/pub/<slug>…). A value that is already a bare slug passes
// through unchanged. Returns "" when no slug can be found.
func NormalizeLinkedIn(raw string) string {
	u := strings.ToLower(strings.TrimSpace(raw))
	if u == "" {
		return ""
	}
	if m := linkedinSlugRe.FindStringSubmatch(u); m != nil {
		return m[1]
	}
	if bareSlugRe.MatchString(u) {
		return u
	}
	return ""
}

// NormalizeName builds a composite "first|last" comparison key. Nicknames
// map to their canonical given name and surname suffixes are stripped, so
// "Bob Smith Jr." and "Robert Smith" collide.
func NormalizeName(first, last string) string {
	f := strings.ToLower(strings.TrimSpace(first))
	l := strings.ToLower(strings.TrimSpace(last))
	if f == "" && l == "" {
		return ""
	}
	if canon, ok := nicknames[f]; ok {
		f = canon
	}
	l = strings.NewReplacer(",", " ", ".", " ").Replace(l)
	parts := strings.Fields(l)
	// Never strip a single-token surname: "V" or "Do" may be the whole name.
	for len(parts) > 1 && nameSuffixes[parts[len(parts)-1]] {
		parts = parts[:len(parts)-1]
	}
	return f + "|" + strings.Join(parts, " ")
}
