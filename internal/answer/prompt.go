// Package answer produces the verdict text for a question and its retrieved facts.
package answer

import "strings"

// NoDataPlaceholder replaces the fact list when nothing was retrieved.
const NoDataPlaceholder = "No spending data available"

const promptTemplate = `You are a personal finance AI assistant.

User question:
{{user_question}}

Relevant spending facts:
{{retrieved_facts}}

Please provide:
1. Clear analysis of the situation
2. Key reason(s) or patterns
3. 2-3 actionable suggestions

Be concise and specific with numbers from the facts provided.`

// BuildPrompt renders the prompt template. Facts become "- fact" lines in retrieval order.
func BuildPrompt(question string, facts []string) string {
	list := NoDataPlaceholder
	if len(facts) > 0 {
		lines := make([]string, len(facts))
		for i, f := range facts {
			lines[i] = "- " + f
		}
		list = strings.Join(lines, "\n")
	}
	// Single pass, so placeholders inside the question are left alone.
	return strings.NewReplacer(
		"{{user_question}}", question,
		"{{retrieved_facts}}", list,
	).Replace(promptTemplate)
}
