package schema

// Categories accepted by the triage schema.
var Categories = []string{
	"Science", "Technology", "Politics", "Environment", "Health",
	"Business", "Sports", "Entertainment", "Education", "Other",
}

// Sentiments accepted by the triage schema.
var Sentiments = []string{
	"Optimistic", "Encouraging", "Celebratory", "Critical", "Cautionary", "Alarming",
	"Factual", "Analytical", "Balanced", "Controversial", "Sensationalist", "Mixed",
}

// EntityTypes accepted for main_entities[].type.
var EntityTypes = []string{"PERSON", "ORGANIZATION", "LOCATION", "EVENT", "OTHER"}

// TriageSchema is the first-pass classification contract.
func TriageSchema() *ExtractionSchema {
	entity := Object("", map[string]*ExtractionSchema{
		"text": String("The name of the entity"),
		"type": String("The type of entity", EntityTypes...),
		"role": String("The role this entity plays in the article",
			"Subject", "Source", "Authority", "Critic", "Beneficiary", "Victim", "Other"),
	}, "text", "type")

	return Object("", map[string]*ExtractionSchema{
		"category":  String("The main category of the article", Categories...),
		"sentiment": String("The nuanced sentiment or tone of the article", Sentiments...),
		"key_claim": String("A concise summary of the main assertion or finding (max 100 words)"),
		"requires_deep_analysis": String("Whether the topic is complex, controversial, or has significant societal impact",
			"Yes", "No"),
		"keywords": Array("3-5 specific keywords that identify this article's main topic",
			String(""), 3, 5),
		"main_entities": Array("The most important named entities in the article", entity, 0, 0),
		"narrative_focus": Object("The aspect of the story that receives the most attention", map[string]*ExtractionSchema{
			"primary_focus": String("The primary focus of the article",
				"Facts/Events", "People/Characters", "Conflict", "Impact/Outcomes",
				"Context/Background", "Opinions/Reactions", "Process/Mechanics", "Controversy/Debate"),
			"emphasized_aspects": Array("Elements of the story that receive extra emphasis", String(""), 0, 3),
		}, "primary_focus", "emphasized_aspects"),
		"source_style": Object("Characteristics of the reporting approach", map[string]*ExtractionSchema{
			"depth":           String("", "In-depth", "Standard", "Brief/Superficial"),
			"formality":       String("", "Formal", "Semi-formal", "Conversational"),
			"technical_level": String("", "Expert", "Specialist", "General audience"),
			"use_of_sources":  String("", "Multiple cited sources", "Limited sources", "No clear sourcing"),
		}, "depth", "formality", "technical_level", "use_of_sources"),
	}, "category", "sentiment", "key_claim", "requires_deep_analysis", "keywords", "main_entities",
		"narrative_focus", "source_style")
}

// DeepSchema is the single-article bias and framing contract.
func DeepSchema() *ExtractionSchema {
	bias := Object("", map[string]*ExtractionSchema{
		"type": String("", "Loaded language", "Selective reporting", "Ad hominem attacks", "Appeal to emotion",
			"Unsubstantiated claims", "Framing bias", "False equivalence", "None detected"),
		"example": String("A specific example from the text"),
	}, "type")

	return Object("", map[string]*ExtractionSchema{
		"political_leaning_detected": String("The political leaning detected in the article",
			"Left-leaning", "Right-leaning", "Centrist", "Neutral/Objective", "Unclear"),
		"bias_indicators": Array("Bias types detected in the article", bias, 0, 0),
		"main_arguments":  Array("2-4 key arguments or points presented", String(""), 2, 4),
		"information_quality": Object("Assessment of factual information quality", map[string]*ExtractionSchema{
			"verifiable_claims_count":   Integer("Number of distinct, objectively verifiable claims"),
			"cites_sources_within_text": Boolean("Whether the text names sources, studies, reports or informants"),
			"evidence_types": Array("Types of evidence used", String("",
				"Expert opinions", "Research/studies", "Data/statistics", "Historical examples",
				"Personal anecdotes", "Official documents", "Unnamed sources", "None provided"), 0, 0),
			"context_completeness": String("", "Complete", "Partial", "Minimal", "Misleading"),
		}, "verifiable_claims_count", "cites_sources_within_text", "evidence_types", "context_completeness"),
		"source_analysis": Object("The source's approach to reporting", map[string]*ExtractionSchema{
			"reporting_style": String("", "Straight news reporting", "Analysis/interpretation", "Opinion/commentary",
				"Investigative reporting", "Explainer/educational", "Advocacy journalism"),
			"perspective_diversity": String("", "Multiple balanced perspectives", "Multiple perspectives with clear bias",
				"Limited perspectives", "Single perspective only"),
			"audience_targeting": String("", "Broad general public", "Politically aligned audience",
				"Special interest group", "Expert/technical audience"),
		}, "reporting_style", "perspective_diversity", "audience_targeting"),
		"framing_devices": Object("How the article frames the subject matter", map[string]*ExtractionSchema{
			"primary_frame": String("", "Economic", "Political", "Moral/ethical", "Scientific/technical",
				"Human interest", "Conflict/controversy", "Historic/precedent", "Security/threat",
				"Justice/rights", "Progress/innovation"),
			"metaphors_used": Array("Key metaphors or analogies", String(""), 0, 0),
			"emphasis_techniques": Array("", String("", "Repetition", "Vivid descriptions", "Emotional language",
				"Authoritative quotations", "Statistical emphasis", "Historical parallels", "Dire predictions",
				"Positive forecasting"), 0, 0),
		}, "primary_frame", "emphasis_techniques"),
		"comparative_indicators": Object("What distinguishes this coverage", map[string]*ExtractionSchema{
			"unique_perspectives": Array("", String(""), 0, 3),
			"potential_omissions": Array("", String(""), 0, 3),
			"emphasis_pattern": String("", "Factual details", "Political implications", "Economic impacts",
				"Moral/ethical concerns", "Historical context", "Future implications", "Personal stories",
				"Conflict aspects", "Expert perspectives"),
		}, "unique_perspectives", "potential_omissions", "emphasis_pattern"),
		"analysis_confidence": String("Confidence level in this analysis", "High", "Medium", "Low"),
	}, "political_leaning_detected", "bias_indicators", "main_arguments", "information_quality",
		"source_analysis", "framing_devices", "comparative_indicators", "analysis_confidence")
}

// ComparativeSchema is the multi-article coverage comparison contract.
func ComparativeSchema() *ExtractionSchema {
	strs := func(description string, maxItems int) *ExtractionSchema {
		return Array(description, String(""), 0, maxItems)
	}
	sourcesList := strs("Sources", 0)

	sourceDifference := Object("", map[string]*ExtractionSchema{
		"source_name":         String("The name of the source"),
		"distinctive_focus":   String("What this source uniquely emphasizes"),
		"distinctive_angle":   String("The unique perspective this source takes"),
		"unique_entities":     strs("Entities mentioned only in this source", 0),
		"apparent_priorities": strs("What seems most important to this source", 3),
	}, "source_name", "distinctive_focus", "distinctive_angle", "apparent_priorities")

	gap := Object("", map[string]*ExtractionSchema{
		"information_item": String("Information that varies across sources"),
		"present_in":       strs("Sources that include it", 0),
		"absent_in":        strs("Sources that omit it", 0),
		"significance": String("Why the gap matters", "Critical context", "Alternative perspective",
			"Contradictory evidence", "Qualifying information", "Background detail"),
	}, "information_item", "present_in", "absent_in", "significance")

	dimension := Object("", map[string]*ExtractionSchema{
		"dimension": String("", "Responsibility/blame attribution", "Problem definition", "Moral evaluation",
			"Solution proposal", "Conflict emphasis", "Economic impact", "Human impact",
			"Political implications", "Historical context"),
		"variations": Array("", Object("", map[string]*ExtractionSchema{
			"frame_variant": String("A specific way the dimension is framed"),
			"sources":       sourcesList,
		}, "frame_variant", "sources"), 0, 0),
	}, "dimension", "variations")

	tone := Object("", map[string]*ExtractionSchema{
		"tone_type": String("", "Alarmist", "Reassuring", "Clinical/detached", "Empathetic", "Authoritative",
			"Questioning", "Doubtful", "Celebratory", "Condemning"),
		"sources": sourcesList,
	}, "tone_type", "sources")

	interest := Object("", map[string]*ExtractionSchema{
		"source":             String(""),
		"apparent_interests": strs("Angles this source seems interested in", 3),
		"possible_motivations": Array("", String("", "Audience appeal", "Political alignment",
			"Business/economic interests", "Expertise/specialization", "Ideological commitment",
			"Regional focus", "Sensationalism/engagement", "Educational mission"), 0, 2),
	}, "source", "apparent_interests", "possible_motivations")

	return Object("", map[string]*ExtractionSchema{
		"story_core_facts": Object("Core facts agreed upon across sources", map[string]*ExtractionSchema{
			"core_event":         String("The basic event being reported"),
			"core_entities":      strs("Entities present in all or most sources", 0),
			"consistent_details": Array("Details consistently reported", String(""), 1, 0),
		}, "core_event", "core_entities", "consistent_details"),
		"source_differences": Array("How each source differs", sourceDifference, 2, 0),
		"information_gaps":   Array("Information present in some sources but missing in others", gap, 0, 0),
		"framing_comparison": Object("How sources frame the same story", map[string]*ExtractionSchema{
			"framing_dimensions": Array("", dimension, 0, 0),
			"dominant_narrative": String("The most common narrative across sources"),
			"counter_narratives": Array("", Object("", map[string]*ExtractionSchema{
				"narrative": String(""),
				"sources":   sourcesList,
			}, "narrative", "sources"), 0, 0),
		}, "framing_dimensions", "dominant_narrative"),
		"language_analysis": Object("Language differences between sources", map[string]*ExtractionSchema{
			"tone_variations": Array("", tone, 0, 0),
			"charged_language": Array("", Object("", map[string]*ExtractionSchema{
				"source":   String(""),
				"examples": strs("", 3),
			}, "source", "examples"), 0, 0),
		}, "tone_variations"),
		"source_interests":     Array("", interest, 0, 0),
		"analysis_limitations": strs("Caveats for this comparison", 3),
	}, "story_core_facts", "source_differences", "information_gaps", "framing_comparison",
		"language_analysis", "source_interests", "analysis_limitations")
}
