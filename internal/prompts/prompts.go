package prompts

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Render executes a prompt template with the provided data.
//
// Example:
//
//	prompt, err := prompts.Render(prompts.AgentStep, prompts.StepData{
//	    Task:     "open notepad",
//	    Step:     1,
//	    MaxSteps: 15,
//	    Width:    1920,
//	    Height:   1080,
//	})
func Render(id PromptID, data any) (string, error) {
	if err := ValidateData(id, data); err != nil {
		return "", err
	}
	tmpl, err := globalRegistry.get(id)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Join(ErrTemplateExecution, fmt.Errorf("prompt %s: %w", id, err))
	}
	return strings.TrimSpace(buf.String()), nil
}

// MustRender executes a prompt template and panics on error.
// Use this only with known-good data.
func MustRender(id PromptID, data any) string {
	result, err := Render(id, data)
	if err != nil {
		panic(fmt.Sprintf("prompts.MustRender(%s): %v", id, err))
	}
	return result
}

// List returns all registered prompt IDs, sorted.
func List() []PromptID {
	ids := globalRegistry.list()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Exists checks if a prompt ID is registered.
func Exists(id PromptID) bool {
	_, err := globalRegistry.get(id)
	return err == nil
}

// GetTemplate returns the raw template source for a prompt ID.
func GetTemplate(id PromptID) (string, error) {
	return globalRegistry.getSource(id)
}

// ValidateData checks that data has the type the prompt expects.
func ValidateData(id PromptID, data any) error {
	var ok bool
	switch id {
	case AgentStep:
		_, ok = data.(StepData)
	case AnalyzeScreen:
		_, ok = data.(AnalyzeData)
	case ChatSystem:
		_, ok = data.(ChatSystemData)
	default:
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: prompt %s got %T", ErrInvalidData, id, data)
	}
	return nil
}
