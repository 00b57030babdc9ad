package common

import "strings"

// StripMarkdownFence removes a wrapping markdown code-fence from report text.
// Analysis backends sometimes persist reports as "```markdown\n...\n```";
// consumers expect the bare body. Plain text passes through unchanged.
func StripMarkdownFence(report string) string {
	if report == "" {
		return report
	}

	cleaned := strings.TrimSpace(report)

	if strings.HasPrefix(cleaned, "```markdown") {
		cleaned = cleaned[len("```markdown"):]
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = cleaned[len("```"):]
	}

	if strings.HasSuffix(cleaned, "```") {
		cleaned = cleaned[:len(cleaned)-3]
	}

	return strings.TrimSpace(cleaned)
}
