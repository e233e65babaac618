package rewrite

import (
	"fmt"
	"strings"
)

// ColumnistSections is the required section order of the final article.
var ColumnistSections = []string{
	"Title",
	"Introduction",
	"One-line summary",
	"Background",
	"What it means for you",
	"Worked example",
	"Illustrative case",
	"Action steps",
	"FAQ",
	"Disclaimer",
	"Tags",
}

const editorSystemPrompt = `You are a careful financial copy editor.
Edit the draft you are given and reply with a single JSON object:
{"cleanDraft": string, "editorNotes": [string], "calcChecks": [{"claim": string, "before": string, "after": string, "corrected": bool}]}

Rules:
- Do not add facts, figures, names or dates that are not already in the draft.
- Rewrite overstated or imperative language ("you must", "guaranteed") in a neutral, informational tone.
- Check every arithmetic claim. Record each in calcChecks with the text before and after any correction.
- Keep markdown formatting.`

func columnistSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a personal-finance columnist turning an edited news draft into an explainer.\n")
	b.WriteString("Reply with a single JSON object:\n")
	b.WriteString(`{"title": string, "metaDescription": string, "tags": [string], "markdown": string}`)
	b.WriteString("\n\nThe markdown must contain these sections in this order:\n")
	for i, s := range ColumnistSections {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Do not introduce numbers that are not in the draft. The worked example may only reuse figures from it.\n")
	b.WriteString("- metaDescription is at most 160 characters.\n")
	b.WriteString("- The disclaimer states the article is general information, not financial advice.\n")
	return b.String()
}

func editorUserPrompt(title, category, content string) string {
	return fmt.Sprintf("Title: %s\nCategory: %s\n\nDraft:\n%s", title, category, content)
}

func columnistUserPrompt(title, category, cleanDraft string) string {
	return fmt.Sprintf("Working title: %s\nCategory: %s\n\nEdited draft:\n%s", title, category, cleanDraft)
}
