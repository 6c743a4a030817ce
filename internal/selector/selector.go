// internal/selector/selector.go
package selector

import (
	"strings"

	"ai-junction/internal/common/errors"
	"ai-junction/internal/common/logger"
	"ai-junction/internal/models"
)

const (
	intentWeight        = 2.0
	typeMatchWeight     = 1.0
	performanceWeight   = 0.1
	keywordCountPenalty = 1.0
)

// Selector picks the best-matching backend for an analyzed request. It holds
// no state beyond its logger and is safe for concurrent use.
type Selector struct {
	logger logger.Logger
}

func New(log logger.Logger) *Selector {
	return &Selector{
		logger: log.WithFields(map[string]interface{}{"component": "selector"}),
	}
}

// Candidate is a backend with its computed score.
type Candidate struct {
	ID    string             `json:"id"`
	Name  string             `json:"name"`
	Type  models.BackendType `json:"type"`
	Score float64            `json:"score"`
}

// Score computes the match score of one descriptor against the request:
//
//	keyword k found in the description: + 1/(occurrences(k)+1)
//	intent found in the description:    + 2
//	type equals the preferred type:     + 1
//	always:                             + performance_score*0.1
//
// All substring checks are case-insensitive. An empty intent is a substring
// of every description.
func Score(d models.BackendDescriptor, req models.AnalyzedRequest) float64 {
	score := 0.0
	description := strings.ToLower(d.Description)

	for _, keyword := range req.Keywords {
		k := strings.ToLower(keyword)
		if strings.Contains(description, k) {
			score += 1 / (float64(strings.Count(description, k)) + keywordCountPenalty)
		}
	}

	if strings.Contains(description, strings.ToLower(req.Intent)) {
		score += intentWeight
	}

	if d.Type == req.PreferredType {
		score += typeMatchWeight
	}

	score += d.PerformanceScore * performanceWeight

	return score
}

// Select returns the highest-scoring descriptor. Ties go to the earliest
// descriptor in input order. An empty input yields NO_CANDIDATE.
func (s *Selector) Select(descriptors []models.BackendDescriptor, req models.AnalyzedRequest) (*models.BackendDescriptor, error) {
	if len(descriptors) == 0 {
		s.logger.Warn("No suitable AI found", map[string]interface{}{
			"keywords": req.Keywords,
			"intent":   req.Intent,
		})
		return nil, errors.NewNoCandidateError()
	}

	best := 0
	bestScore := Score(descriptors[0], req)
	for i := 1; i < len(descriptors); i++ {
		if score := Score(descriptors[i], req); score > bestScore {
			best, bestScore = i, score
		}
	}

	selected := descriptors[best]
	s.logger.Info("Selected AI", map[string]interface{}{
		"id":         selected.ID,
		"type":       string(selected.Type),
		"score":      bestScore,
		"candidates": len(descriptors),
	})

	return &selected, nil
}

// Ranked scores every descriptor, preserving input order.
func (s *Selector) Ranked(descriptors []models.BackendDescriptor, req models.AnalyzedRequest) []Candidate {
	out := make([]Candidate, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, Candidate{
			ID:    d.ID,
			Name:  d.Name,
			Type:  d.Type,
			Score: Score(d, req),
		})
	}
	return out
}
