package decode

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"logwatch/internal/model"
)

// MismatchKind classifies why a log could not be bound to its event shape.
type MismatchKind int

const (
	TopicsMismatch MismatchKind = iota + 1
	DataMismatch
)

func (k MismatchKind) String() string {
	switch k {
	case TopicsMismatch:
		return "topics mismatch"
	case DataMismatch:
		return "data mismatch"
	default:
		return "unknown mismatch"
	}
}

// MismatchError reports a log whose topics or data do not fit the event.
type MismatchError struct {
	Kind  MismatchKind
	Event string
	Err   error
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("decode %s: %s: %v", e.Event, e.Kind, e.Err)
}

func (e *MismatchError) Unwrap() error {
	return e.Err
}

var errSignatureMismatch = errors.New("topic0 does not match event signature")

// Decode formats a raw log and, when a shape is given, binds its arguments.
//
// A nil log with a nil error means the record was dropped: strict mode and
// the log does not fit the shape. In lenient mode such a log is returned with
// the event name set and empty args. Logs whose topic0 is not the shape's
// signature are returned as generic logs. A non-nil error is a malformed wire
// field and concerns this record only.
func Decode(raw model.RawLog, shape *EventShape, strict bool) (*model.Log, error) {
	log, _, err := DecodeWithMismatch(raw, shape, strict)
	return log, err
}

// DecodeWithMismatch is Decode that also reports why a log did not fit the
// shape, whether or not it was dropped.
func DecodeWithMismatch(raw model.RawLog, shape *EventShape, strict bool) (*model.Log, *MismatchError, error) {
	log, err := FormatLog(raw)
	if err != nil {
		return nil, nil, err
	}
	if shape == nil {
		return log, nil, nil
	}

	args, err := shape.Bind(log.Topics, log.Data)
	if err == nil {
		log.EventName = shape.Name()
		log.Args = args
		return log, nil, nil
	}

	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		return log, nil, nil
	}
	if strict {
		return nil, mismatch, nil
	}
	log.EventName = shape.Name()
	log.Args = shape.emptyArgs()
	return log, mismatch, nil
}

// DecodeBatch decodes every record independently. Failed records are
// reported in errs and left out of logs; they never stop their siblings.
func DecodeBatch(raws []model.RawLog, shape *EventShape, strict bool) (logs []model.Log, errs []error) {
	logs = make([]model.Log, 0, len(raws))
	for _, raw := range raws {
		log, err := Decode(raw, shape, strict)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if log == nil {
			continue
		}
		logs = append(logs, *log)
	}
	return logs, errs
}

// Bind decodes indexed arguments from topics and the rest from data.
func (s *EventShape) Bind(topics []common.Hash, data []byte) (interface{}, error) {
	event := s.Event
	if !event.Anonymous {
		if len(topics) == 0 || topics[0] != event.ID {
			return nil, errSignatureMismatch
		}
		topics = topics[1:]
	}

	inputs := s.keyed()
	indexed := indexedArguments(inputs)
	if len(topics) != len(indexed) {
		return nil, &MismatchError{
			Kind:  TopicsMismatch,
			Event: event.Name,
			Err:   fmt.Errorf("expected %d indexed topics, got %d", len(indexed), len(topics)),
		}
	}

	values := make(map[string]interface{}, len(inputs))
	if err := abi.ParseTopicsIntoMap(values, indexed, topics); err != nil {
		return nil, &MismatchError{Kind: TopicsMismatch, Event: event.Name, Err: err}
	}
	if err := inputs.UnpackIntoMap(values, data); err != nil {
		return nil, &MismatchError{Kind: DataMismatch, Event: event.Name, Err: err}
	}

	if s.Unnamed() {
		out := make([]interface{}, 0, len(inputs))
		for _, input := range inputs {
			out = append(out, values[input.Name])
		}
		return out, nil
	}
	return values, nil
}
