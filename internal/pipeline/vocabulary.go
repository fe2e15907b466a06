package pipeline

const (
	educationalLabel = "educational"
	defaultCategory  = "general"
)

var educationalTerms = []keywordGroup{
	{Label: educationalLabel, Keywords: []string{
		"lesson", "lesson plan", "lesson note", "curriculum", "syllabus", "scheme of work",
		"learning objectives", "learning outcomes", "students", "pupils", "teacher",
		"exercise", "worksheet", "practice questions", "past questions", "past paper",
		"marking scheme", "answer key", "solution", "solutions", "examination", "exam",
		"test", "quiz", "assessment", "revision", "tutorial", "lecture", "chapter",
		"textbook", "definition", "example", "theorem", "formula", "experiment",
		"homework", "assignment", "study guide", "objectives", "explain", "calculate",
	}},
}

var subjectGroups = []keywordGroup{
	{Label: "mathematics", Keywords: []string{
		"mathematics", "maths", "math", "algebra", "calculus", "geometry", "trigonometry",
		"quadratic equation", "differentiation", "integration", "probability", "statistics",
	}},
	{Label: "physics", Keywords: []string{
		"physics", "velocity", "acceleration", "momentum", "newton", "kinetic energy",
		"electromagnetism", "optics", "wave motion", "thermodynamics",
	}},
	{Label: "chemistry", Keywords: []string{
		"chemistry", "chemical reaction", "periodic table", "molecule", "organic chemistry",
		"stoichiometry", "electrolysis", "acids and bases", "titration",
	}},
	{Label: "biology", Keywords: []string{
		"biology", "photosynthesis", "cell division", "genetics", "ecology", "enzymes",
		"respiration", "evolution", "mitosis", "meiosis",
	}},
	{Label: "english", Keywords: []string{
		"english language", "grammar", "comprehension", "essay writing", "vocabulary",
		"literature in english", "figures of speech", "summary writing", "phonetics",
	}},
	{Label: "economics", Keywords: []string{
		"economics", "demand and supply", "inflation", "elasticity", "national income",
		"opportunity cost", "market structure",
	}},
	{Label: "history", Keywords: []string{
		"history", "colonial", "independence", "civilization", "world war", "historical",
	}},
	{Label: "geography", Keywords: []string{
		"geography", "climate", "map reading", "latitude", "longitude", "erosion", "population",
	}},
	{Label: "computer_science", Keywords: []string{
		"computer science", "algorithm", "programming", "data structure", "database",
		"computer studies", "flowchart",
	}},
}

var examGroups = []keywordGroup{
	{Label: "waec", Keywords: []string{"waec", "wassce", "west african examinations council"}},
	{Label: "jamb", Keywords: []string{"jamb", "utme", "unified tertiary matriculation examination"}},
	{Label: "neco", Keywords: []string{"neco", "national examinations council"}},
	{Label: "gce", Keywords: []string{"gce", "general certificate of education"}},
	{Label: "igcse", Keywords: []string{"igcse", "gcse"}},
	{Label: "a_level", Keywords: []string{"a level", "a-level", "advanced level"}},
	{Label: "sat", Keywords: []string{"sat exam", "sat practice", "scholastic assessment test"}},
}

var categoryGroups = []keywordGroup{
	{Label: "past_questions", Keywords: []string{
		"past questions", "past question", "past paper", "past papers", "marking scheme",
		"answer key", "objective questions", "theory questions",
	}},
	{Label: "lesson_notes", Keywords: []string{
		"lesson note", "lesson notes", "lesson plan", "scheme of work", "lecture notes",
		"class notes", "learning objectives",
	}},
	{Label: "syllabus", Keywords: []string{"syllabus", "curriculum", "course outline", "topics to be covered"}},
	{Label: "practice", Keywords: []string{
		"worksheet", "practice questions", "exercises", "quiz", "mock exam", "test yourself",
	}},
	{Label: "textbook", Keywords: []string{"textbook", "chapter", "table of contents", "glossary", "index"}},
	{Label: "tutorial", Keywords: []string{"tutorial", "step by step", "how to", "worked example", "video lesson"}},
}
