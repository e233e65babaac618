package rewrite

import (
	"encoding/json"
	"strings"

	"github.com/jonesrussell/finblog/internal/ai"
	"github.com/jonesrussell/finblog/internal/domain"
)

const editorFallbackNote = "editor response was not structured output; original draft kept unchanged"

type editorOutput struct {
	CleanDraft  string             `json:"cleanDraft"`
	EditorNotes []string           `json:"editorNotes"`
	CalcChecks  []domain.CalcCheck `json:"calcChecks"`
}

type columnistOutput struct {
	Title           string   `json:"title"`
	MetaDescription string   `json:"metaDescription"`
	Tags            []string `json:"tags"`
	Markdown        string   `json:"markdown"`
}

// structuredBody strips a surrounding code fence and reports whether the
// response attempts a JSON object.
func structuredBody(text string) (string, bool) {
	body := strings.TrimSpace(text)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimPrefix(body, "json")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
		body = strings.TrimSpace(body)
	}
	return body, strings.HasPrefix(body, "{")
}

// parseEditor decodes the editor response. Free text degrades to the input
// draft; a broken or incomplete JSON object is a parse error.
func parseEditor(provider, text, input string) (editorOutput, bool, error) {
	if strings.TrimSpace(text) == "" {
		return editorOutput{}, false, ai.NewParseError(provider, "empty editor response", nil)
	}

	body, structured := structuredBody(text)
	if !structured {
		return editorOutput{
			CleanDraft:  input,
			EditorNotes: []string{editorFallbackNote},
		}, true, nil
	}

	var out editorOutput
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return editorOutput{}, false, ai.NewParseError(provider, "invalid editor JSON: "+err.Error(), err)
	}
	if strings.TrimSpace(out.CleanDraft) == "" {
		return editorOutput{}, false, ai.NewParseError(provider, "editor JSON missing cleanDraft", nil)
	}
	return out, false, nil
}

// parseColumnist decodes the columnist response. Free text degrades to the
// clean draft with placeholder metadata.
func parseColumnist(provider, text, cleanDraft string, placeholder domain.ColumnistMeta) (columnistOutput, bool, error) {
	if strings.TrimSpace(text) == "" {
		return columnistOutput{}, false, ai.NewParseError(provider, "empty columnist response", nil)
	}

	body, structured := structuredBody(text)
	if !structured {
		return columnistOutput{
			Title:           placeholder.Title,
			MetaDescription: placeholder.MetaDescription,
			Tags:            placeholder.Tags,
			Markdown:        cleanDraft,
		}, true, nil
	}

	var out columnistOutput
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return columnistOutput{}, false, ai.NewParseError(provider, "invalid columnist JSON: "+err.Error(), err)
	}
	switch {
	case strings.TrimSpace(out.Markdown) == "":
		return columnistOutput{}, false, ai.NewParseError(provider, "columnist JSON missing markdown", nil)
	case strings.TrimSpace(out.Title) == "":
		return columnistOutput{}, false, ai.NewParseError(provider, "columnist JSON missing title", nil)
	}
	if len(out.Tags) == 0 {
		out.Tags = placeholder.Tags
	}
	return out, false, nil
}
