package enrich

import "strings"

// BuildPrompt renders the provider prompt for a company. The output depends only on
// the entity's identity fields.
func BuildPrompt(e Entity) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(`
You are a B2B research assistant. Use web search to find public information about the company below.

Return ONLY a single JSON object with these keys:
- description (string; two or three sentences on what the company does)
- sector (string; the industry or market sector)
- estimatedSize (string; employee range such as "1-10", "11-50", "51-200", "201-500", "501-1000", "1000+")
- painPoints (array of short strings; likely business challenges this company faces)

Rules:
- If you cannot determine a field, use null (or an empty array for painPoints).
- Do not include extra keys or any text outside the JSON object.
`))
	b.WriteString("\n\nCompany name: ")
	b.WriteString(strings.TrimSpace(e.Name))
	if d := strings.TrimSpace(e.Domain); d != "" {
		b.WriteString("\nWebsite domain: ")
		b.WriteString(d)
	}
	if a := strings.TrimSpace(e.Address); a != "" {
		b.WriteString("\nAddress: ")
		b.WriteString(a)
	}
	b.WriteString("\n")
	return b.String()
}
