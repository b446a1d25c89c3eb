package ai

import "strings"

// buildCategorizePrompt constructs the completion prompt for one merchant
// description. Only the description is sent; account numbers and other PII
// never leave the process.
func buildCategorizePrompt(description string) string {
	var b strings.Builder

	b.WriteString("You are a personal-finance assistant that identifies merchants from bank-statement descriptions.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Given the merchant description below, identify the business and a spending category.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a single JSON object.\n\n")
	b.WriteString("The object must have these fields:\n")
	b.WriteString("- \"entityName\": string, the cleaned-up business name (e.g. \"Woolworths\", not \"WOOLWORTHS 1234 NSW\")\n")
	b.WriteString("- \"category\": string, a short spending category (e.g. \"Groceries\", \"Dining\", \"Transport\")\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- If the business cannot be identified, use the cleaned description as \"entityName\".\n")
	b.WriteString("- Return ONLY valid raw JSON.\n")
	b.WriteString("- Do NOT wrap the response in code fences.\n")
	b.WriteString("- Do NOT use ```json or any Markdown.\n")
	b.WriteString("- Output must begin with \"{\" and end with \"}\".\n\n")
	b.WriteString("Merchant description: ")
	b.WriteString(strings.TrimSpace(description))

	return b.String()
}

// cleanModelJSON strips markdown code-fence wrapping and surrounding junk
// that models sometimes emit despite instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// If there is still junk around the JSON object, keep only the span from
	// the first '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
