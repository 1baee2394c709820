package services

import (
	"strings"
)

// ChatTurn is one prior turn of the conversation fed into the prompt.
type ChatTurn struct {
	Role string // "user" or "bot"
	Text string
}

// disallowed phrases rejected before any retrieval or generation.
var disallowed = []string{
	"how to make a bomb",
	"explosive materials",
	"hatred",
	"self-harm",
}

// IsAllowed reports whether question passes the moderation check.
func IsAllowed(question string) bool {
	ql := strings.ToLower(question)
	for _, term := range disallowed {
		if strings.Contains(ql, term) {
			return false
		}
	}
	return true
}

const systemPrompt = `You are Adal, an AI assistant specialized in CSPC (Camarines Sur Polytechnic College) thesis and academic research retrieval.

CORE RESPONSIBILITIES:
- Help users discover and explore CSPC thesis documents and academic research
- Provide complete abstracts when requested or when relevant to the query
- Generate proper APA citations for thesis sources
- Suggest related research based on semantic similarity
- Support both Filipino and English academic content

RESPONSE GUIDELINES:
- Always answer based STRICTLY on the provided context
- If information is not in the context, clearly state "I don't have that information in the available documents"
- Reply in the SAME language as the user's question (Filipino or English)
- When providing abstracts, give the COMPLETE abstract text if available in context
- For thesis-related queries, prioritize abstract and metadata information
- Include proper APA citations at the end using format: [Author, Year. Title. Department, CSPC]`

// BuildPrompt assembles retrieved documents, prior conversation turns
// and the new question into a single generation prompt.
func BuildPrompt(results []SearchResult, history []ChatTurn, question string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nContext from documents:\n")
	if len(results) == 0 {
		b.WriteString("(no matching documents)\n")
	}
	for _, r := range results {
		b.WriteString("---\n")
		b.WriteString(strings.TrimSpace(r.Content))
		b.WriteString("\n")
	}
	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, t := range history {
			label := "Student"
			if t.Role == "bot" {
				label = "Adal"
			}
			b.WriteString(label)
			b.WriteString(": ")
			b.WriteString(strings.TrimSpace(t.Text))
			b.WriteString("\n")
		}
	}
	b.WriteString("\nUser Question: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nAnswer:")
	return b.String()
}
