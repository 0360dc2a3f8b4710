package runner

import (
	"bufio"
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"text/template"

	"github.com/google/uuid"
)

// PromptData is what a prompt template sees on each iteration.
type PromptData struct {
	Iteration int
	Total     int
	Model     string
	UUID      string
}

// PromptTemplate renders the configured prompt once per iteration. A prompt
// without template actions renders to itself.
type PromptTemplate struct {
	raw   string
	tmpl  *template.Template
	mu    sync.RWMutex
	files map[string][]string
}

func ParsePrompt(text string) (*PromptTemplate, error) {
	p := &PromptTemplate{raw: text, files: make(map[string][]string)}
	if !strings.Contains(text, "{{") {
		return p, nil
	}

	funcs := template.FuncMap{
		"randomInt":    randomInt,
		"randomUUID":   randomUUID,
		"uuid":         randomUUID,
		"randomChoice": randomChoice,
		"randomLine":   p.randomLine,
	}
	t, err := template.New("prompt").Funcs(funcs).Option("missingkey=error").Parse(preprocess(text))
	if err != nil {
		return nil, fmt.Errorf("%w: prompt template: %w", ErrInvalidConfig, err)
	}
	p.tmpl = t
	return p, nil
}

// preprocess lets users write {{iteration}} instead of {{.Iteration}}.
func preprocess(s string) string {
	r := strings.NewReplacer(
		"{{iteration}}", "{{.Iteration}}",
		"{{total}}", "{{.Total}}",
		"{{model}}", "{{.Model}}",
		"{{requestID}}", "{{.UUID}}",
	)
	return r.Replace(s)
}

func (p *PromptTemplate) Templated() bool {
	return p.tmpl != nil
}

func (p *PromptTemplate) Render(data PromptData) (string, error) {
	if p.tmpl == nil {
		return p.raw, nil
	}
	if data.UUID == "" {
		data.UUID = uuid.NewString()
	}
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

func randomInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return rand.Intn(hi-lo) + lo
}

func randomUUID() string {
	return uuid.New().String()
}

func randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[rand.Intn(len(choices))]
}

// randomLine picks a non-blank line from filename. Files are read once.
func (p *PromptTemplate) randomLine(filename string) (string, error) {
	p.mu.RLock()
	lines, ok := p.files[filename]
	p.mu.RUnlock()

	if !ok {
		p.mu.Lock()
		defer p.mu.Unlock()

		if lines, ok = p.files[filename]; !ok {
			content, err := os.ReadFile(filename)
			if err != nil {
				return "", fmt.Errorf("failed to read file '%s': %w", filename, err)
			}
			scanner := bufio.NewScanner(bytes.NewReader(content))
			for scanner.Scan() {
				if line := strings.TrimSpace(scanner.Text()); line != "" {
					lines = append(lines, line)
				}
			}
			p.files[filename] = lines
		}
	}

	if len(lines) == 0 {
		return "", nil
	}
	return lines[rand.Intn(len(lines))], nil
}
