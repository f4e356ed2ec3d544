package prompts

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
)

//go:embed templates
var templateFS embed.FS

// registry is the parsed template set. All templates share one namespace, so
// an agent template can pull in a partial with {{template "common/actions" .}}.
// It is built once at init and read-only afterwards.
type registry struct {
	set     *template.Template
	sources map[PromptID]string
}

//nolint:gochecknoglobals // read-only after init
var globalRegistry *registry

//nolint:gochecknoinits // templates are embedded; a parse failure is a build defect
func init() {
	r, err := newRegistry(templateFS)
	if err != nil {
		panic(fmt.Sprintf("failed to load embedded templates: %v", err))
	}
	globalRegistry = r
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"join":       strings.Join,
		"hasContent": func(s string) bool { return strings.TrimSpace(s) != "" },
		"inc":        func(i int) int { return i + 1 },
		"lower":      strings.ToLower,
		"upper":      strings.ToUpper,
	}
}

// newRegistry parses every templates/**/*.tmpl file in fsys. The template
// name is its path below templates/ without the extension.
func newRegistry(fsys fs.FS) (*registry, error) {
	r := &registry{
		set:     template.New("prompts").Funcs(funcMap()),
		sources: make(map[PromptID]string),
	}
	err := fs.WalkDir(fsys, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ".tmpl") {
			return err
		}
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("reading template %s: %w", p, err)
		}
		id := pathToPromptID(p)
		if _, err := r.set.New(string(id)).Parse(string(content)); err != nil {
			return fmt.Errorf("parsing template %s: %w", p, err)
		}
		if !strings.HasPrefix(string(id), "common/") {
			r.sources[id] = string(content)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// pathToPromptID converts templates/agent/step.tmpl to agent/step.
func pathToPromptID(p string) PromptID {
	return PromptID(strings.TrimSuffix(strings.TrimPrefix(p, "templates/"), ".tmpl"))
}

func (r *registry) get(id PromptID) (*template.Template, error) {
	if _, ok := r.sources[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return r.set.Lookup(string(id)), nil
}

func (r *registry) getSource(id PromptID) (string, error) {
	source, ok := r.sources[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return source, nil
}

func (r *registry) list() []PromptID {
	ids := make([]PromptID, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	return ids
}
