package dedup

import (
	"fmt"
	"strings"

	"candidate-dedup/internal/identity"
	"candidate-dedup/internal/storage"
)

// Batch scanning has no privileged "new submission" side, so it cannot use
// the asymmetric tiered matcher. It scores unordered pairs with additive
// points instead; the two algorithms are intentionally separate.
const (
	scanPhonePoints    = 30
	scanNamePoints     = 25
	scanLinkedInPoints = 35
	scanSkillPoints    = 10

	// scanFlagThreshold is the minimum pair score that flags a duplicate.
	scanFlagThreshold = 50

	// skillJaccardFloor is the overlap a skill set must clear to add points.
	skillJaccardFloor = 0.7
)

// ScanSummary reports the result of one batch scan pass.
type ScanSummary struct {
	CandidatesScanned int `json:"candidates_scanned"`
	DuplicatesFound   int `json:"duplicates_found"`
	ItemsAdded        int `json:"items_added"`
}

// scanSignals caches a candidate's normalized comparison fields for the
// O(n²) pass.
type scanSignals struct {
	phone    string
	nameKey  string
	linkedin string
	skills   map[string]struct{}
}

func newScanSignals(c *storage.CandidateRecord) scanSignals {
	skills := make(map[string]struct{}, len(c.Skills))
	for _, s := range c.Skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			skills[s] = struct{}{}
		}
	}
	return scanSignals{
		phone:    identity.NormalizePhone(c.Phone),
		nameKey:  identity.NormalizeName(c.FirstName, c.LastName),
		linkedin: identity.NormalizeLinkedIn(c.LinkedInURL),
		skills:   skills,
	}
}

// scorePair computes the additive duplicate score for one unordered pair.
func scorePair(a, b scanSignals) (int, []storage.MatchReason) {
	score := 0
	var reasons []storage.MatchReason

	if a.phone != "" && a.phone == b.phone {
		score += scanPhonePoints
		reasons = append(reasons, storage.MatchReason{
			Kind:       storage.ReasonPhoneMatch,
			Confidence: 0.85,
			Detail:     fmt.Sprintf("normalized phone %q matches", a.phone),
		})
	}
	if a.nameKey != "" && a.nameKey == b.nameKey {
		score += scanNamePoints
		reasons = append(reasons, storage.MatchReason{
			Kind:       storage.ReasonNameSimilarity,
			Confidence: 0.40,
			Detail:     fmt.Sprintf("name key %q matches", a.nameKey),
		})
	}
	if a.linkedin != "" && a.linkedin == b.linkedin {
		score += scanLinkedInPoints
		reasons = append(reasons, storage.MatchReason{
			Kind:       storage.ReasonLinkedInMatch,
			Confidence: 0.85,
			Detail:     fmt.Sprintf("linkedin profile %q matches", a.linkedin),
		})
	}
	if j := jaccard(a.skills, b.skills); j > skillJaccardFloor {
		score += scanSkillPoints
		reasons = append(reasons, storage.MatchReason{
			Kind:       storage.ReasonSkillOverlap,
			Confidence: j,
			Detail:     fmt.Sprintf("skill sets overlap (jaccard %.2f)", j),
		})
	}
	return score, reasons
}

// scanMatchType buckets a pair score. Batch scanning never sees a raw email,
// so it can never produce a hard match.
func scanMatchType(score int) storage.MatchType {
	switch {
	case score >= 90:
		return storage.MatchStrong
	case score >= 65:
		return storage.MatchFuzzy
	default:
		return storage.MatchReview
	}
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for s := range a {
		if _, ok := b[s]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
