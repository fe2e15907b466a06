package pipeline

import (
	"errors"
	"math"
)

const (
	maxScore          = 100
	maxComponentScore = 25

	minWordCount     = 100
	optimalWordCount = 1000

	wordCountThreshold300 = 300
	wordCountThreshold500 = 500
	wordCountScore10      = 10
	wordCountScore15      = 15
	wordCountScore20      = 20

	metadataFieldScore = 5

	readabilityScoreDefault = 10
	readabilityScoreFair    = 15
	// idealSentenceMin and idealSentenceMax bound the average sentence
	// length, in words, that reads well.
	idealSentenceMin = 10
	idealSentenceMax = 25
	fairSentenceMin  = 6
	fairSentenceMax  = 35

	// educationalSaturation is the number of distinct educational terms
	// that earns the full educational value.
	educationalSaturation = 12
	// educationalDensityBonus rewards dense terminology in short documents.
	educationalDensityBonus = 20
	densityPerThousandWords = 15.0
)

// Scores is the output of a Scorer, each in [0,100].
type Scores struct {
	Quality          int `json:"quality"`
	EducationalValue int `json:"educational_value"`
	Confidence       int `json:"confidence"`
}

// ErrUnscorable reports text a scorer cannot rate.
var ErrUnscorable = errors.New("no words to score")

// Scorer is pure and deterministic: the same text and metadata always yield
// the same scores. An error leaves the item stored but unanalyzed.
type Scorer interface {
	Score(text string, meta Metadata) (Scores, error)
}

// HeuristicScorer combines a four-factor quality model (word count, metadata
// completeness, structural richness and readability, 25 points each) with
// educational keyword coverage.
type HeuristicScorer struct {
	terms *keywordSet
}

// NewHeuristicScorer creates a scorer with the built-in educational
// vocabulary.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{terms: newKeywordSet(educationalTerms)}
}

// Score implements Scorer.
func (s *HeuristicScorer) Score(text string, meta Metadata) (Scores, error) {
	words := meta.WordCount
	if words == 0 {
		words = wordCount(text)
	}
	if words == 0 {
		return Scores{}, ErrUnscorable
	}

	quality := wordCountScore(words) +
		metadataScore(meta) +
		richnessScore(meta) +
		readabilityScore(text, words)

	terms := s.terms.match(normalizeText(meta.Title + " " + text))[educationalLabel]
	educational := educationalValue(terms, words)

	return Scores{
		Quality:          clamp(quality),
		EducationalValue: educational,
		Confidence:       confidence(words, terms, meta),
	}, nil
}

// wordCountScore scores based on word count (0-25 points).
func wordCountScore(words int) int {
	switch {
	case words < minWordCount:
		return 0
	case words < wordCountThreshold300:
		return wordCountScore10
	case words < wordCountThreshold500:
		return wordCountScore15
	case words < optimalWordCount:
		return wordCountScore20
	default:
		return maxComponentScore
	}
}

// metadataScore gives 5 points per present field (0-25 points).
func metadataScore(meta Metadata) int {
	score := 0
	for _, present := range []bool{
		meta.Title != "",
		meta.Description != "",
		meta.Author != "",
		meta.Keywords != "",
		meta.PublishedAt != "" || meta.CanonicalURL != "",
	} {
		if present {
			score += metadataFieldScore
		}
	}
	return score
}

// richnessScore rewards document structure (0-25 points).
func richnessScore(meta Metadata) int {
	score := 0
	switch {
	case meta.Headings >= 3 || meta.Pages >= 3:
		score += 10
	case meta.Headings >= 1 || meta.Pages >= 1:
		score += 5
	}
	if meta.ListItems >= 3 {
		score += 5
	}
	if meta.HasImage {
		score += 5
	}
	if meta.Language != "" {
		score += 5
	}
	return min(score, maxComponentScore)
}

// readabilityScore rates the average sentence length (0-25 points).
func readabilityScore(text string, words int) int {
	if words < minWordCount {
		return readabilityScoreDefault
	}
	n := len(sentences(text))
	if n == 0 {
		return readabilityScoreDefault
	}
	avg := float64(words) / float64(n)
	switch {
	case avg >= idealSentenceMin && avg <= idealSentenceMax:
		return maxComponentScore
	case avg >= fairSentenceMin && avg <= fairSentenceMax:
		return readabilityScoreFair
	default:
		return readabilityScoreDefault
	}
}

// educationalValue scales distinct-term coverage to 0-80 and adds up to 20
// for term density.
func educationalValue(terms, words int) int {
	if terms == 0 {
		return 0
	}
	coverage := math.Min(1, float64(terms)/educationalSaturation)
	value := coverage * (maxScore - educationalDensityBonus)
	if words > 0 {
		density := float64(terms) * 1000 / float64(words)
		value += math.Min(1, density/densityPerThousandWords) * educationalDensityBonus
	}
	return clamp(int(math.Round(value)))
}

// confidence measures how much evidence the scores rest on.
func confidence(words, terms int, meta Metadata) int {
	c := 20
	switch {
	case words >= optimalWordCount:
		c += 40
	case words >= wordCountThreshold300:
		c += 30
	case words >= minWordCount:
		c += 20
	}
	if meta.Title != "" {
		c += 10
	}
	if meta.Method == MethodReadability || meta.Method == MethodPDF {
		c += 10
	}
	if terms >= 3 {
		c += 20
	}
	return clamp(c)
}

func clamp(v int) int {
	return max(0, min(maxScore, v))
}
