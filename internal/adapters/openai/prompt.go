package openai

import (
	"fmt"
	"strings"

	"github.com/mikey/llm-email-classifier/internal/core"
)

// categoryDefinitions describes each category the way the prompt presents it
var categoryDefinitions = map[core.Category]string{
	core.CategoryImportant:   "Personal or work-related emails requiring immediate attention",
	core.CategoryPromotional: "Sales, discounts, marketing campaigns",
	core.CategorySocial:      "Social networks, friends, family",
	core.CategoryMarketing:   "Marketing newsletters, notifications",
	core.CategorySpam:        "Unwanted or unsolicited emails",
	core.CategoryGeneral:     "If none of the above match",
}

const promptFormat = `Classify the following email into one of these categories:
%s
Email Details:
From: %s
Subject: %s
Content: %s

Respond with JSON only:
{
  "category": "chosen_category",
  "confidence": 0.95,
  "reasoning": "brief explanation"
}
`

// buildPrompt interpolates one email into the classification instruction.
// Content is the plain-text body when present, otherwise the snippet.
func buildPrompt(email *core.Email, content string) string {
	var categories strings.Builder
	for _, cat := range core.AllCategories {
		fmt.Fprintf(&categories, "- %s: %s\n", cat, categoryDefinitions[cat])
	}

	return fmt.Sprintf(promptFormat, categories.String(), email.From, email.Subject, content)
}
