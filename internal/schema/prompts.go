package schema

const triagePrompt = `You are a media analyst reviewing news coverage. Classify the article below and describe how it frames its information.

ARTICLE CONTENT:
{content}

Produce:

1. category: one of Science, Technology, Politics, Environment, Health, Business, Sports, Entertainment, Education, Other.
2. sentiment: exactly one of Optimistic, Encouraging, Celebratory, Critical, Cautionary, Alarming, Factual, Analytical, Balanced, Controversial, Sensationalist, Mixed.
3. key_claim: the main assertion or finding in at most 100 words.
4. requires_deep_analysis: "Yes" when the topic is complex, controversial or has broad societal impact, otherwise "No".
5. keywords: 3 to 5 specific keywords that identify this story.
6. main_entities: the people, organizations, locations and events involved, each with text, type (PERSON, ORGANIZATION, LOCATION, EVENT, OTHER) and role (Subject, Source, Authority, Critic, Beneficiary, Victim, Other).
7. narrative_focus: primary_focus (Facts/Events, People/Characters, Conflict, Impact/Outcomes, Context/Background, Opinions/Reactions, Process/Mechanics, Controversy/Debate) and up to 3 emphasized_aspects.
8. source_style: depth, formality, technical_level and use_of_sources.

Respond with a single JSON object. Partial example:
{
  "category": "Science",
  "sentiment": "Cautionary",
  "key_claim": "Plastic-eating bacteria could help clean the oceans, but researchers warn it is not a complete solution.",
  "requires_deep_analysis": "Yes",
  "keywords": ["marine bacteria", "plastic pollution", "ocean remediation"],
  "main_entities": [
    {"text": "Nature", "type": "ORGANIZATION", "role": "Source"}
  ],
  "narrative_focus": {"primary_focus": "Impact/Outcomes", "emphasized_aspects": ["environmental benefits"]},
  "source_style": {"depth": "In-depth", "formality": "Semi-formal", "technical_level": "General audience", "use_of_sources": "Multiple cited sources"}
}
`

const deepPrompt = `You are a media analyst examining a single news article in depth. Focus on how the outlet frames the story, what it emphasizes or leaves out, and what that says about its reporting approach.

ARTICLE CONTENT:
{content}

Cover:

1. political_leaning_detected and bias_indicators (type plus a concrete example from the text).
2. main_arguments: 2 to 4 key arguments or points.
3. information_quality: verifiable_claims_count, cites_sources_within_text, evidence_types, context_completeness.
4. source_analysis: reporting_style, perspective_diversity, audience_targeting.
5. framing_devices: primary_frame, metaphors_used, emphasis_techniques.
6. comparative_indicators: unique_perspectives, potential_omissions, emphasis_pattern.
7. analysis_confidence: High, Medium or Low.

Respond with a single JSON object using exactly these keys. Partial example:
{
  "political_leaning_detected": "Centrist",
  "bias_indicators": [{"type": "Selective reporting", "example": "Mentions program benefits but not costs"}],
  "main_arguments": ["The policy reduces inequality", "Business groups warn about competitiveness"],
  "information_quality": {"verifiable_claims_count": 7, "cites_sources_within_text": true, "evidence_types": ["Data/statistics"], "context_completeness": "Partial"}
}
`

const comparativePrompt = `You are a media analyst comparing how different outlets cover the same news story. Look at differences in framing, emphasis, included or excluded information, and the apparent interests of each outlet.

RELATED ARTICLES COVERING THE SAME STORY:
{content}

Cover:

1. story_core_facts: the core event, entities common to most sources, details every source reports.
2. source_differences: for each source its distinctive focus and angle, entities only it mentions, and its apparent priorities.
3. information_gaps: information present in some sources and absent in others, and why the gap matters.
4. framing_comparison: dimensions where framing differs, the dominant narrative, and counter-narratives.
5. language_analysis: tone variations and emotionally charged language per source.
6. source_interests: what each source appears most interested in and plausible motivations.
7. analysis_limitations: caveats for this comparison.

Respond with a single JSON object following the schema. Stay objective and evidence-based.
`
