package pipeline

import (
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// keywordGroup is a label and the phrases that evidence it.
type keywordGroup struct {
	Label    string
	Keywords []string
}

// keywordSet matches the phrases of many groups in a single pass.
type keywordSet struct {
	// mu guards matcher, whose Match mutates per-call state.
	mu       sync.Mutex
	matcher  *ahocorasick.Matcher
	keywords []string
	// owner maps a dictionary index to its group index.
	owner  []int
	groups []keywordGroup
}

func newKeywordSet(groups []keywordGroup) *keywordSet {
	s := &keywordSet{groups: groups}
	seen := make(map[string]bool)
	for gi, g := range groups {
		for _, kw := range g.Keywords {
			padded := normalizeText(kw)
			if strings.TrimSpace(padded) == "" || seen[g.Label+"\x00"+padded] {
				continue
			}
			seen[g.Label+"\x00"+padded] = true
			s.keywords = append(s.keywords, padded)
			s.owner = append(s.owner, gi)
		}
	}
	if len(s.keywords) > 0 {
		s.matcher = ahocorasick.NewStringMatcher(s.keywords)
	}
	return s
}

// match returns, per group label, the number of distinct keywords found in
// normalized. Groups without a hit are absent.
func (s *keywordSet) match(normalized string) map[string]int {
	hits := make(map[string]int)
	if s.matcher == nil {
		return hits
	}
	s.mu.Lock()
	found := s.matcher.Match([]byte(normalized))
	s.mu.Unlock()

	for _, idx := range found {
		if idx < 0 || idx >= len(s.owner) {
			continue
		}
		hits[s.groups[s.owner[idx]].Label]++
	}
	return hits
}

// best returns the label with the most hits. Ties go to the group listed
// first. ok is false when nothing matched.
func (s *keywordSet) best(hits map[string]int) (label string, ok bool) {
	top := 0
	for _, g := range s.groups {
		if n := hits[g.Label]; n > top {
			top = n
			label = g.Label
		}
	}
	return label, top > 0
}
