package generation

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Prompt names, one per template under prompts/.
const (
	PromptTitleIdeas   = "title_ideas.tmpl"
	PromptOutline      = "outline.tmpl"
	PromptSection      = "section.tmpl"
	PromptFAQs         = "faqs.tmpl"
	PromptKeyTakeaways = "key_takeaways.tmpl"
)

var prompts = template.Must(
	template.New("prompts").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(promptFS, "prompts/*.tmpl"),
)

// PromptData is the data available to every prompt template.
type PromptData struct {
	Topic    string
	Title    string
	Section  string
	Content  string
	Count    int
	Words    int
	Length   string
	Tone     string
	Language string
	Keywords []string
}

// RenderPrompt executes the named prompt template.
func RenderPrompt(name string, data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("%w: failed to render prompt %s: %v", ErrInvalidConfig, name, err)
	}
	return buf.String(), nil
}

// Response shapes the prompt templates ask for.
type (
	titleIdeasResponse struct {
		Titles []string `json:"titles"`
	}
	outlineResponse struct {
		Sections []string `json:"sections"`
	}
	sectionResponse struct {
		Content string `json:"content"`
	}
	faqsResponse struct {
		FAQs []FAQ `json:"faqs"`
	}
	takeawaysResponse struct {
		Takeaways []string `json:"takeaways"`
	}
)

// DecodeJSON parses a model response into v. Markdown code fences around the
// JSON are tolerated because models add them even when told not to.
func DecodeJSON(text string, v any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	if text == "" {
		return fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("%w: failed to parse JSON response: %v", ErrInvalidResponse, err)
	}
	return nil
}
