package chat

import "strings"

// fallbackResponse pairs a question keyword with its canned answer, used when
// the LLM is unavailable. The chat must always answer with something.
type fallbackResponse struct {
	keyword  string
	response string
}

// fallbackResponses is matched in order: a question touching several topics
// always gets the answer for the first listed keyword it contains.
var fallbackResponses = []fallbackResponse{
	{
		keyword:  "non-compete",
		response: "The employment agreement contains a non-compete clause that restricts the employee from working with competitors for 3 years after termination. This duration exceeds the legal limit in most jurisdictions, which is typically 1-2 years. It's recommended to reduce this to 1 year to ensure compliance.",
	},
	{
		keyword:  "termination",
		response: "The termination notice period in the agreement is 5 days, which is below the minimum requirement of 2 weeks in the applicable jurisdiction. This needs to be updated to at least 14 days to comply with labor regulations.",
	},
	{
		keyword:  "compensation",
		response: "The compensation section includes a base salary and bonus structure, but is missing clear payment terms and frequency, which is required by labor laws. It's recommended to specify payment dates and methods in this section.",
	},
	{
		keyword:  "intellectual property",
		response: "The intellectual property clause is generally compliant, transferring ownership of work product to the employer. However, it should be amended to exclude intellectual property developed entirely outside of work hours and without company resources.",
	},
	{
		keyword:  "compliance score",
		response: "The compliance score of 78% is calculated based on the number of compliant versus non-compliant clauses, weighted by severity. There are 2 critical issues and 3 warning issues affecting this score. Fixing the critical issues related to non-compete duration and termination notice would improve the score significantly.",
	},
	{
		keyword:  "critical issues",
		response: "The document has 2 critical compliance issues: 1) The non-compete duration exceeds legal limits (3 years vs recommended 1 year) and 2) The termination notice period is below the minimum required (5 days vs. required 14 days).",
	},
}

const genericFallback = "Based on the compliance report, this employment agreement needs several modifications to ensure legal compliance. The main issues involve the non-compete clause duration, insufficient termination notice period, and unclear compensation terms. Would you like specific details about any of these issues?"

// FallbackResponse returns a deterministic keyword-matched answer for a
// question, or a generic summary when no keyword matches.
func FallbackResponse(message string) string {
	lowercase := strings.ToLower(message)

	for _, fb := range fallbackResponses {
		if strings.Contains(lowercase, fb.keyword) {
			return fb.response
		}
	}

	return genericFallback
}
