// Package scorer computes qualification scores for prospects against a
// campaign's target audience. Scoring is pure: no I/O, no randomness.
package scorer

import (
	"strings"

	"github.com/sells-group/outreach-cli/internal/model"
)

// QualificationThreshold is the score above which a prospect is QUALIFIED.
const QualificationThreshold = 0.7

// Completeness and targeting weights. Additive, clamped to 1.0.
const (
	weightHeadline   = 0.2
	weightCompany    = 0.2
	weightPosition   = 0.2
	weightExperience = 0.2
	weightSkills     = 0.2

	weightIndustryMatch = 0.3
	weightLocationMatch = 0.2
	weightPositionMatch = 0.3
)

// Score maps a prospect and a target audience to a score in [0, 1].
//
// Profile completeness contributes a fixed weight per present field;
// targeting adds weight for industry and location set membership (exact)
// and for any target position appearing as a case-insensitive substring of
// the prospect's position. Positions are free text ("Senior CTO"), which is
// why they match by substring while industry and location match exactly.
func Score(p model.Prospect, ta model.TargetAudience) float64 {
	var score float64

	if p.Headline != "" {
		score += weightHeadline
	}
	if p.Company != "" {
		score += weightCompany
	}
	if p.Position != "" {
		score += weightPosition
	}
	if len(p.Experience) > 0 {
		score += weightExperience
	}
	if len(p.Skills) > 0 {
		score += weightSkills
	}

	if len(ta.Industries) > 0 && contains(ta.Industries, p.Industry) {
		score += weightIndustryMatch
	}
	if len(ta.Locations) > 0 && contains(ta.Locations, p.Location) {
		score += weightLocationMatch
	}
	if len(ta.Positions) > 0 && matchesPosition(ta.Positions, p.Position) {
		score += weightPositionMatch
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// StatusForScore derives the post-scoring status. Downstream delivery states
// (CONTACTED and beyond) are set elsewhere and never by scoring.
func StatusForScore(score float64) model.ProspectStatus {
	if score > QualificationThreshold {
		return model.ProspectStatusQualified
	}
	return model.ProspectStatusPending
}

func contains(set []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func matchesPosition(targets []string, position string) bool {
	if position == "" {
		return false
	}
	lower := strings.ToLower(position)
	for _, t := range targets {
		if t == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
