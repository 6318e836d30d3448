package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/tax"
)

const previewLength = 60

// MalformedResponseError is returned when model output cannot be decoded.
// It is never retried.
type MalformedResponseError struct {
	Preview string
	Reason  string
}

func (e *MalformedResponseError) Error() string {
	if e.Preview == "" {
		return "No text in response"
	}
	return fmt.Sprintf("Invalid JSON: %q...", e.Preview)
}

// Unwrap reports common.ErrEmptyResponse when the model returned no text.
func (e *MalformedResponseError) Unwrap() error {
	if e.Preview == "" {
		return common.ErrEmptyResponse
	}
	return nil
}

// cleanMarkdownWrapper strips a surrounding ``` or ```json fence. The tag
// matches in any case.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if len(content) >= 4 && strings.EqualFold(content[:4], "json") {
		content = content[4:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// parseResults decodes a JSON array of results, or a single object, keyed by
// id. Entries without an id are dropped.
func parseResults(text string) (map[string]model.ClassificationResult, error) {
	cleaned := cleanMarkdownWrapper(text)
	if cleaned == "" {
		return nil, &MalformedResponseError{Reason: "no text in response"}
	}

	var results []model.ClassificationResult
	if strings.HasPrefix(cleaned, "{") {
		var single model.ClassificationResult
		if err := json.Unmarshal([]byte(cleaned), &single); err != nil {
			return nil, &MalformedResponseError{Preview: preview(cleaned), Reason: err.Error()}
		}
		results = append(results, single)
	} else if err := json.Unmarshal([]byte(cleaned), &results); err != nil {
		return nil, &MalformedResponseError{Preview: preview(cleaned), Reason: err.Error()}
	}

	byID := make(map[string]model.ClassificationResult, len(results))
	for _, r := range results {
		if r.ID == "" {
			continue
		}
		r.ScheduleCLine = tax.NormalizeLine(r.ScheduleCLine)
		byID[r.ID] = r
	}
	return byID, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > previewLength {
		r = r[:previewLength]
	}
	return string(r)
}
