package protocol

import (
	"encoding/json"
	"fmt"
)

// Frame is the wire envelope for every server push: a string tag plus an
// opaque payload.
type Frame struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode parses one raw text frame into a typed event. A frame whose tag
// falls outside the closed set decodes to Unknown with a nil error; the
// caller decides to log and drop it. A frame that cannot be parsed at all
// returns an error and must not reach the reducer.
func Decode(raw []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("decode frame: missing type tag")
	}

	data := f.Data
	if len(data) == 0 {
		data = []byte("{}")
	}

	unmarshal := func(t EventType, v any) error {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode %s payload: %w", t, err)
		}
		return nil
	}

	switch f.Type {
	case EvtConnectionEstablished:
		var e ConnectionEstablished
		return e, unmarshal(f.Type, &e)
	case EvtPlayerConnected:
		var e PlayerConnected
		return e, unmarshal(f.Type, &e)
	case EvtPlayerDisconnected:
		var e PlayerDisconnected
		return e, unmarshal(f.Type, &e)
	case EvtPlayerJoined:
		var e PlayerJoined
		return e, unmarshal(f.Type, &e)
	case EvtQuestionSubmitted:
		var e QuestionSubmitted
		return e, unmarshal(f.Type, &e)
	case EvtAnswerSubmitted:
		var e AnswerSubmitted
		return e, unmarshal(f.Type, &e)
	case EvtSubmissionsEnded, EvtVotingStarted:
		var e VotingStarted
		return e, unmarshal(f.Type, &e)
	case EvtVoteSubmitted:
		var e VoteSubmitted
		return e, unmarshal(f.Type, &e)
	case EvtVotingEnded, EvtResultsReady:
		var e ResultsReady
		return e, unmarshal(f.Type, &e)
	case EvtNextRoundStarted:
		var e NextRoundStarted
		return e, unmarshal(f.Type, &e)
	case EvtGameStateUpdate:
		var e GameStateUpdate
		return e, unmarshal(f.Type, &e)
	case EvtDiceQuestionSelected:
		var e DiceQuestionSelected
		return e, unmarshal(f.Type, &e)
	case EvtQuestionEdited:
		var e QuestionEdited
		return e, unmarshal(f.Type, &e)
	case EvtAutoModeProgress:
		var e AutoModeProgress
		return e, unmarshal(f.Type, &e)
	case EvtAutoTimerCancelled:
		var e AutoTimerCancelled
		return e, unmarshal(f.Type, &e)
	default:
		return Unknown{Type: f.Type}, nil
	}
}

// Encode wraps a payload into a wire frame. The client never sends events,
// but the test server and any future peer need the inverse of Decode.
func Encode(t EventType, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return json.Marshal(Frame{Type: t, Data: raw})
}
