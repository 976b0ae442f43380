package personalize

import (
	"fmt"
	"strings"

	"github.com/sells-group/outreach-cli/internal/model"
)

// defaultTemplate is used when a campaign carries no template of its own.
const defaultTemplate = "Hi {{firstName}}, I came across your profile and was impressed by your work at {{company}}. Would you be open to a quick chat?"

// Fallback renders the campaign template against the prospect. Placeholders
// with no corresponding value become empty strings. The result is never
// empty: a template that substitutes down to nothing (all placeholders, no
// data) renders the default template instead.
func Fallback(template string, p model.Prospect) string {
	if strings.TrimSpace(template) == "" {
		template = defaultTemplate
	}

	msg := render(template, p)
	if msg == "" {
		msg = render(defaultTemplate, p)
	}

	if p.Industry != "" {
		msg += fmt.Sprintf(" I noticed you work in %s, which is exactly the space we focus on.", p.Industry)
	}
	return msg
}

func render(template string, p model.Prospect) string {
	replacer := strings.NewReplacer(
		"{{firstName}}", p.FirstName,
		"{{lastName}}", p.LastName,
		"{{company}}", p.Company,
		"{{position}}", p.Position,
		"{{location}}", p.Location,
	)
	return collapseSpaces(replacer.Replace(template))
}

// collapseSpaces tidies double spaces left behind by empty substitutions and
// trims leading and trailing whitespace on each line, preserving line breaks
// in multi-line templates. "Hello Jean from " becomes "Hello Jean from".
func collapseSpaces(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(strings.Join(strings.Fields(line), " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
