package ai

// ExtractEntitiesPrompt expects the entity vocabulary and the source text.
const ExtractEntitiesPrompt = `
# Task Context
You extract structured facts about Tamil cinema from text. You identify every person, movie, organization and location mentioned.

# Background Data
Allowed entity types:
%s

# Detailed Task Description & Rules
- Only use the entity types listed above. Ignore anything that does not fit one of them.
- "name" is the entity name exactly as written in the text, without titles such as "Superstar" or "Dr." when the bare name is also present.
- Add a property only when the text states it. Only use the property keys listed for the type.
- Write years as four digit numbers.
- Return each entity once, even if it is mentioned several times.
- Do not invent entities that are not in the text.

# Examples
Text: "Rajinikanth starred in Jailer directed by Nelson in 2023"
Entities:
- {"name": "Rajinikanth", "type": "Person", "properties": [{"key": "role", "value": "Actor"}]}
- {"name": "Nelson", "type": "Person", "properties": [{"key": "role", "value": "Director"}]}
- {"name": "Jailer", "type": "Movie", "properties": [{"key": "release_year", "value": "2023"}]}

# Immediate Task Description or Request
Extract the entities of the following text and return them as JSON of the form
{"entities": [{"name": "...", "type": "...", "properties": [{"key": "...", "value": "..."}]}]}.
Return {"entities": []} if there is nothing to extract.

Text:
%s
`

// ExtractRelationsPrompt expects the relation vocabulary, the known entities
// and the source text.
const ExtractRelationsPrompt = `
# Task Context
You extract relationships between already identified Tamil cinema entities.

# Background Data
Allowed relationship types (subject type -> object type):
%s

Known entities:
%s

# Detailed Task Description & Rules
- Only use the relationship types listed above, in the stated direction.
- "subject" and "object" must be names from the known entity list, written exactly as listed.
- Only report relationships the text states or directly implies.
- Add a property only when the text states it. Only use the property keys listed for the relationship.
- Do not report a relationship type that is not listed, even if the text states it (for example marriages or awards).

# Examples
Text: "Rajinikanth starred in Jailer directed by Nelson in 2023"
Relationships:
- {"subject": "Rajinikanth", "predicate": "ACTED_IN", "object": "Jailer", "properties": []}
- {"subject": "Nelson", "predicate": "DIRECTED", "object": "Jailer", "properties": []}

# Immediate Task Description or Request
Return the relationships as JSON of the form
{"relations": [{"subject": "...", "predicate": "...", "object": "...", "properties": [{"key": "...", "value": "..."}]}]}.
Return {"relations": []} if there are none.

Text:
%s
`

// TranslateQueryPrompt expects the graph schema description, the row limit
// and the question.
const TranslateQueryPrompt = `
# Task Context
You translate questions about Tamil cinema into a single read-only Cypher query for a Neo4j graph.

# Background Data
Graph schema:
%s

# Detailed Task Description & Rules
- Use only the node labels, relationship types and properties of the schema. Respect relationship direction.
- The query must only read. Never use CREATE, MERGE, DELETE, DETACH, SET, REMOVE, DROP, LOAD CSV, FOREACH or CALL.
- If the question asks to change, delete or clear data, still return a read-only query that answers nothing more than what can be read, or an empty query.
- Match names case-insensitively: toLower(n.display_name) CONTAINS toLower('...') or n.identity_key = '...' with a lowercase name.
- Return whole nodes (RETURN p, m) rather than single properties so the answer has full context.
- Always end with LIMIT %d or a smaller limit.
- Return exactly one statement without a trailing semicolon.

# Examples
Question: "Who directed Jailer?"
{"query": "MATCH (p:Person)-[:DIRECTED]->(m:Movie) WHERE toLower(m.display_name) = 'jailer' RETURN p, m LIMIT 25", "reasoning": "directors are Person nodes linked to the Movie by DIRECTED"}

Question: "Which movies did Kamal Haasan act in after 2000?"
{"query": "MATCH (p:Person)-[r:ACTED_IN]->(m:Movie) WHERE toLower(p.display_name) CONTAINS 'kamal haasan' AND m.release_year > 2000 RETURN p, r, m ORDER BY m.release_year LIMIT 25", "reasoning": "filter ACTED_IN by release year"}

# Immediate Task Description or Request
Return JSON of the form {"query": "...", "reasoning": "..."} for this question:
%s
`

// AnswerPrompt expects the question and the serialized context.
const AnswerPrompt = `
# Task Context
You answer questions about Tamil cinema using only facts retrieved from a knowledge graph.

# Background Data
Retrieved context (JSON). "main_results" answer the question directly, "related" lists neighbouring facts:
%s

# Detailed Task Description & Rules
- Use only the context above. Do not add facts from your own knowledge.
- If the context does not contain the answer, say that the information is not available in the knowledge graph.
- Prefer display names over identity keys.
- Be concise: answer in one to three sentences.

# Immediate Task Description or Request
Question: %s
`

// AnswerSystemPrompt is sent as system prompt with AnswerPrompt.
const AnswerSystemPrompt = "You are a careful assistant for a Tamil cinema knowledge graph. You never state facts that are not in the provided context."
