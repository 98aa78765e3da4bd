package identity

import (
	"regexp"
	"sort"
	"strings"
)

// Experience is a single employment entry as the fingerprint builder sees it,
// ordered most-recent-first in the parsed resume payload.
type Experience struct {
	Company string `json:"company"`
	Title   string `json:"title"`
}

const (
	// maxFingerprintEntries caps how much history feeds the fingerprint;
	// older positions add noise, not signal.
	maxFingerprintEntries = 5

	tupleSeparator = ";"
)

var corpSuffixRe = regexp.MustCompile(`[\s,]+(inc|llc|ltd|corp|co)\.?$`)

// NormalizeCompany lowercases a company name and strips trailing corporate
// suffixes so "Acme, Inc." and "Acme" compare equal.
func NormalizeCompany(raw string) string {
	c := strings.ToLower(strings.TrimSpace(raw))
	for {
		trimmed := strings.TrimSpace(corpSuffixRe.ReplaceAllString(c, ""))
		if trimmed == c {
			return c
		}
		c = trimmed
	}
}

// ExperienceFingerprint derives a comparable summary of a candidate's recent
// work history: up to the 5 most recent entries as sorted
// "company:title" tuples joined with ";". Returns "" when there is nothing
// to fingerprint.
func ExperienceFingerprint(entries []Experience) string {
	recent := entries
	if len(recent) > maxFingerprintEntries {
		recent = recent[:maxFingerprintEntries]
	}
	var tuples []string
	for _, e := range recent {
		company := NormalizeCompany(e.Company)
		title := strings.ToLower(strings.TrimSpace(e.Title))
		if company == "" && title == "" {
			continue
		}
		tuples = append(tuples, company+":"+title)
	}
	if len(tuples) == 0 {
		return ""
	}
	sort.Strings(tuples)
	return strings.Join(tuples, tupleSeparator)
}

// FingerprintTuples splits a fingerprint back into its tuple set.
func FingerprintTuples(fingerprint string) map[string]struct{} {
	tuples := make(map[string]struct{})
	if fingerprint == "" {
		return tuples
	}
	for _, t := range strings.Split(fingerprint, tupleSeparator) {
		if t != "" {
			tuples[t] = struct{}{}
		}
	}
	return tuples
}

// FingerprintOverlap counts company:title tuples two fingerprints share.
func FingerprintOverlap(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	tuplesA := FingerprintTuples(a)
	overlap := 0
	for t := range FingerprintTuples(b) {
		if _, ok := tuplesA[t]; ok {
			overlap++
		}
	}
	return overlap
}
