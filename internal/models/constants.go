package models

const (
	// NumberGroupRegex matches digit groups joined by thousand (or lakh) separators.
	NumberGroupRegex = `\d{1,3}(,\d{2,3})+`
	// JSONObjectRegex spans from the first opening brace to the last closing brace.
	JSONObjectRegex = `\{[\s\S]*\}`

	DefaultTopK      = 5
	DefaultChunkSize = 500

	MinClauseLength     = 5
	EmptyClauseSummary  = "Please provide a legal or policy clause to summarize."
	UnparsedConfidence  = 0.5
	ParseFailureMessage = "Could not parse LLM response"
	EchoPrefix          = "Echo: "
)

var (
	DecisionSystemPrompt = `
You are an expert insurance claim processor. Given a user query and a list of relevant policy document clauses (numbered), you must:
- Parse the query for key details (age, procedure, location, policy duration, etc.)
- Evaluate the provided clauses to determine if the claim is approved, the payout amount (if any), and provide a justification.
- Reference the clause numbers in your justification (e.g., "as per Clause 2").
- Output a JSON with: decision (approved/rejected), amount (plain number, no commas), and justification (with clause references).
- Do NOT output clause_mapping; that will be handled by the backend.
- Respond ONLY with a valid JSON object, no explanation, no markdown, no extra text.
- Use only plain numbers (no commas, no currency symbols) for the amount field in the JSON.
`

	// DecisionPromptTemplate takes the query and the numbered clause block.
	DecisionPromptTemplate = `
User Query: %s

Relevant Clauses (numbered):
%s

Respond ONLY in the following JSON format:
{
  "decision": "approved/rejected",
  "amount": <number or null>,
  "justification": "..."
}
Respond ONLY with a valid JSON object, no explanation, no markdown, no extra text. Use only plain numbers (no commas, no currency symbols) for the amount field in the JSON.
`

	SummarySystemPrompt = "You are a legal language simplifier. Always respond in JSON as instructed."

	// SummaryPromptTemplate takes the clause text.
	SummaryPromptTemplate = `
You are a legal language simplifier. Given the following legal or policy clause, rewrite it in clear, plain English so that a non-technical person can understand it. If the clause is already simple, say so. If you are unsure, say 'Model is unsure.'

Clause:
%s

Respond ONLY in the following JSON format:
{
  "summary": "...plain English summary...",
  "confidence": <number between 0 and 1>,
  "flag": <true/false if model is unsure>
}
`
)
