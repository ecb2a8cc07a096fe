// Package modelfile loads state machine models from YAML files.
//
// A model file names its states, superstates, transitions and error routes.
// Behavior is bound by name through a Registry:
//
//	name: door
//	states: [closed, open, jammed]
//	initial: closed
//	errors:
//	  stuck: {message: "door stuck"}
//	exceptions:
//	  - {error: stuck, target: jammed}
//	transitions:
//	  - {from: closed, on: push, to: open, action: "fail:stuck"}
//	  - {from: open, on: push, to: closed}
package modelfile

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// File is the decoded content of a model file
type File struct {
	Name                 string               `mapstructure:"name"`
	States               []string             `mapstructure:"states"`
	Initial              string               `mapstructure:"initial"`
	SuppressInitialEntry bool                 `mapstructure:"suppress_initial_entry"`
	StepLimit            int                  `mapstructure:"step_limit"`
	Errors               map[string]ErrorSpec `mapstructure:"errors"`
	Exceptions           []RuleSpec           `mapstructure:"exceptions"`
	SuperStates          []SuperStateSpec     `mapstructure:"superstates"`
	Hooks                []HookSpec           `mapstructure:"hooks"`
	Transitions          []TransitionSpec     `mapstructure:"transitions"`
}

// ErrorSpec declares a named error. An error that wraps another one
// matches every route declared for its parent.
type ErrorSpec struct {
	Message string `mapstructure:"message"`
	Wraps   string `mapstructure:"wraps"`
}

// RuleSpec routes an error category to a target state. "*" matches every
// error and an empty target keeps the machine where it is.
type RuleSpec struct {
	Error  string `mapstructure:"error"`
	Target string `mapstructure:"target"`
}

// SuperStateSpec declares a superstate and its substates
type SuperStateSpec struct {
	State      string     `mapstructure:"state"`
	Memory     string     `mapstructure:"memory"`
	Initial    string     `mapstructure:"initial"`
	SubStates  []string   `mapstructure:"substates"`
	Inherit    bool       `mapstructure:"inherit"`
	Exceptions []RuleSpec `mapstructure:"exceptions"`
}

// HookSpec binds entry and exit actions to a state
type HookSpec struct {
	State string `mapstructure:"state"`
	Entry string `mapstructure:"entry"`
	Exit  string `mapstructure:"exit"`
}

// TransitionSpec declares a transition. Without "on" it is a null
// transition and without "to" it is internal.
type TransitionSpec struct {
	From       string     `mapstructure:"from"`
	On         *string    `mapstructure:"on"`
	Priority   int        `mapstructure:"priority"`
	Guard      string     `mapstructure:"guard"`
	To         string     `mapstructure:"to"`
	Action     string     `mapstructure:"action"`
	Exceptions []RuleSpec `mapstructure:"exceptions"`
}

// IsNull reports whether the transition fires without an event
func (t TransitionSpec) IsNull() bool {
	return t.On == nil
}

// Parse decodes a YAML model. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("empty model")
	}

	var f File
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &f,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	return &f, nil
}

// Load reads and parses the model file at path
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}
