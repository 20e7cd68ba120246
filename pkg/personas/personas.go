// Package personas holds the persona records the dog can embody: a name,
// a system prompt, a voice from the model's fixed voice set, and the
// optional image-prompt/default-motivation fields the awareness loop and
// look_and_see draw on. A mutable name-keyed registry supports switching
// and runtime-generated personas.
package personas

import (
	"fmt"
	"strings"
)

// Persona is one selectable character.
type Persona struct {
	Name   string `yaml:"name" json:"name"`
	Prompt string `yaml:"prompt" json:"prompt"`
	Voice  string `yaml:"voice" json:"voice"`

	ImagePrompt       string `yaml:"image_prompt,omitempty" json:"image_prompt,omitempty"`
	DefaultMotivation string `yaml:"default_motivation,omitempty" json:"default_motivation,omitempty"`
	Description       string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Voices is the fixed set the realtime endpoint accepts.
var Voices = []string{"alloy", "ash", "ballad", "coral", "echo", "sage", "shimmer", "verse"}

// Validate checks the required fields and that the voice is one the
// endpoint will accept.
func (p Persona) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("personas: name is required")
	}
	if strings.TrimSpace(p.Prompt) == "" {
		return fmt.Errorf("personas: %s: prompt is required", p.Name)
	}
	if !validVoice(p.Voice) {
		return fmt.Errorf("personas: %s: unknown voice %q", p.Name, p.Voice)
	}
	return nil
}

func validVoice(voice string) bool {
	for _, v := range Voices {
		if v == voice {
			return true
		}
	}
	return false
}

// Motivation returns the persona's default motivation, or a generic one
// when the record does not carry its own.
func (p Persona) Motivation() string {
	if p.DefaultMotivation != "" {
		return p.DefaultMotivation
	}
	return "You should engage with your surroundings."
}
