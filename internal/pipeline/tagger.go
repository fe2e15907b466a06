package pipeline

import "sort"

// Tags is the classification derived from a document.
type Tags struct {
	Subjects []string
	Category string
	ExamType string
}

// Tagger derives subject tags, a category and an exam type from text.
type Tagger interface {
	Tag(title, text string) Tags
}

// KeywordTagger matches fixed keyword dictionaries.
type KeywordTagger struct {
	subjects   *keywordSet
	exams      *keywordSet
	categories *keywordSet
}

// NewKeywordTagger creates a tagger with the built-in dictionaries.
func NewKeywordTagger() *KeywordTagger {
	return &KeywordTagger{
		subjects:   newKeywordSet(subjectGroups),
		exams:      newKeywordSet(examGroups),
		categories: newKeywordSet(categoryGroups),
	}
}

// Tag implements Tagger. Subjects are sorted; category falls back to
// "general" and exam type to "".
func (t *KeywordTagger) Tag(title, text string) Tags {
	normalized := normalizeText(title + " " + text)

	hits := t.subjects.match(normalized)
	subjects := make([]string, 0, len(hits))
	for label := range hits {
		subjects = append(subjects, label)
	}
	sort.Strings(subjects)

	category, ok := t.categories.best(t.categories.match(normalized))
	if !ok {
		category = defaultCategory
	}
	exam, _ := t.exams.best(t.exams.match(normalized))

	return Tags{Subjects: subjects, Category: category, ExamType: exam}
}
