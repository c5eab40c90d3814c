package prompt

// Built-in templates guarantee that every provider has a usable prompt even
// when no template directory is configured. User-supplied templates with the
// same (provider, mode) pair override these.
var builtinTemplates = []TemplateConfig{
	{
		Name:         "default",
		Version:      "1",
		Provider:     fallbackKey,
		Mode:         fallbackKey,
		SystemPrompt: defaultSystemPrompt,
	},
}

const defaultSystemPrompt = `{{- if .Persona -}}
{{.Persona}}
{{- else -}}
You are a helpful personal assistant. Answer concisely and truthfully.
{{- end}}
{{if .Rules}}
## Rules
{{.Rules}}
{{end}}
{{- if .Memories}}
## Relevant memories
{{range .Memories -}}
- {{if .Source}}[{{.Source}}] {{end}}{{.Content}}
{{end}}
{{- end}}
{{- if .Summaries}}
## Conversation summaries
{{range .Summaries -}}
- {{.}}
{{end}}
{{- end}}
Current time: {{.Timestamp}}`
