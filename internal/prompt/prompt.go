// Package prompt renders the context-only answering instruction sent to
// language models.
package prompt

import (
	"strings"
	"text/template"
)

// NotAvailable is the phrase a model must give when the context lacks the answer.
const NotAvailable = "answer is not available in the context"

// ContextSeparator joins retrieved passages inside the prompt.
const ContextSeparator = "\n\n"

var qa = template.Must(template.New("qa").Parse(`
Answer the question as detailed as possible from the provided context, make sure to provide all the details, if the answer is not in
provided context just say, "{{.NotAvailable}}", don't provide the wrong answer


Context:
 {{.Context}}?

Question: 
{{.Question}}


Answer:
`))

// Render fills the instruction with the passages, in rank order, and the question.
func Render(contexts []string, question string) (string, error) {
	var b strings.Builder
	err := qa.Execute(&b, struct {
		NotAvailable string
		Context      string
		Question     string
	}{NotAvailable, strings.Join(contexts, ContextSeparator), question})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// IsNotAvailable reports whether answer is the model's "not in context" reply.
func IsNotAvailable(answer string) bool {
	return strings.Contains(strings.ToLower(answer), NotAvailable)
}
