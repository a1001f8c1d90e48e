package decode

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// EventShape describes the event a log is decoded against.
type EventShape struct {
	Event abi.Event

	// positional is set when the ABI declared an input without a name.
	// abi.NewEvent renames such inputs to argN, so it is recorded from the
	// raw JSON before parsing.
	positional bool
}

// NewEventShape wraps a parsed ABI event. Inputs keep the names the event
// carries; an input with an empty name makes the args positional.
func NewEventShape(event abi.Event) *EventShape {
	shape := &EventShape{Event: event}
	for _, input := range event.Inputs {
		if input.Name == "" {
			shape.positional = true
		}
	}
	return shape
}

// ParseEventShape picks an event out of a JSON ABI. An empty name is allowed
// when the ABI declares exactly one event.
func ParseEventShape(abiJSON string, name string) (*EventShape, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	shape, err := ShapeFromABI(parsed, name)
	if err != nil {
		return nil, err
	}
	positional, err := declaresUnnamedInput(abiJSON, shape.Event)
	if err != nil {
		return nil, err
	}
	shape.positional = shape.positional || positional
	return shape, nil
}

type abiEntry struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Inputs []struct {
		Name string `json:"name"`
	} `json:"inputs"`
}

// declaresUnnamedInput finds the JSON declaration of event and reports
// whether any of its inputs had an empty name.
func declaresUnnamedInput(abiJSON string, event abi.Event) (bool, error) {
	var entries []abiEntry
	if err := json.Unmarshal([]byte(abiJSON), &entries); err != nil {
		return false, fmt.Errorf("parse abi: %w", err)
	}
	for _, entry := range entries {
		if entry.Type != "event" || entry.Name != event.RawName || len(entry.Inputs) != len(event.Inputs) {
			continue
		}
		for _, input := range entry.Inputs {
			if input.Name == "" {
				return true, nil
			}
		}
	}
	return false, nil
}

// ShapeFromABI looks up an event by name in a parsed ABI.
func ShapeFromABI(parsed abi.ABI, name string) (*EventShape, error) {
	if name == "" {
		if len(parsed.Events) != 1 {
			return nil, fmt.Errorf("event name required, abi has %d events", len(parsed.Events))
		}
		for _, event := range parsed.Events {
			return NewEventShape(event), nil
		}
	}
	event, ok := parsed.Events[name]
	if !ok {
		return nil, fmt.Errorf("event %s not found in abi", name)
	}
	return NewEventShape(event), nil
}

func (s *EventShape) Name() string {
	return s.Event.Name
}

// ID is the signature hash expected in topic 0.
func (s *EventShape) ID() common.Hash {
	return s.Event.ID
}

// Signature returns the canonical signature, e.g. Transfer(address,address,uint256).
func (s *EventShape) Signature() string {
	return s.Event.Sig
}

// Unnamed reports whether any input was declared without a name, in which
// case args are positional.
func (s *EventShape) Unnamed() bool {
	return s.positional
}

// Descriptor identifies the shape by name, parameter types, parameter names,
// indexed flags and anonymity. Shapes sharing a signature can still differ here.
func (s *EventShape) Descriptor() string {
	desc := s.Event.String()
	if s.Event.Anonymous {
		desc += " anonymous"
	}
	if s.positional {
		desc += " positional"
	}
	return desc
}

func (s *EventShape) emptyArgs() interface{} {
	if s.Unnamed() {
		return []interface{}{}
	}
	return map[string]interface{}{}
}

// keyed returns the inputs with a unique map key per argument so unnamed
// inputs do not collide while decoding.
func (s *EventShape) keyed() abi.Arguments {
	out := make(abi.Arguments, 0, len(s.Event.Inputs))
	for i, input := range s.Event.Inputs {
		input.Name = argKey(s.Event.Inputs, i)
		out = append(out, input)
	}
	return out
}

func argKey(inputs abi.Arguments, i int) string {
	if inputs[i].Name != "" {
		return inputs[i].Name
	}
	return fmt.Sprintf("_%d", i)
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
