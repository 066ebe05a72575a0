package storyboard

import (
	_ "embed"
	"strings"
	"text/template"
)

//go:embed prompt.tmpl
var promptText string

var promptTmpl = template.Must(template.New("storyboard").Parse(promptText))

type PromptInput struct {
	FilmMinutes int
	Language    string
	SRT         string
}

// BuildPrompt renders the storyboard producer prompt for the given subtitles.
func BuildPrompt(in PromptInput) (string, error) {
	if in.Language == "" {
		in.Language = "en"
	}
	var b strings.Builder
	if err := promptTmpl.Execute(&b, in); err != nil {
		return "", err
	}
	return b.String(), nil
}
