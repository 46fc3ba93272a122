package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/rocketscienceinc/caro/internal/entity"
)

var ErrInvalidPayload = errors.New("invalid payload")

type Type string

const (
	TypeMove         Type = "move"
	TypeStateSync    Type = "state_sync"
	TypeSessionStart Type = "session_start"
	TypeSessionEnd   Type = "session_end"
	TypeChat         Type = "chat"
	TypePing         Type = "ping"
	TypePong         Type = "pong"
)

// Message is one of the variants below. The variant is identified on the wire by its Type tag.
type Message interface {
	Type() Type
}

type Move struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// StateSync carries a full game for resynchronisation. The receiver replaces its state with it.
type StateSync struct {
	Board      entity.Board      `json:"board"`
	Turn       entity.Owner      `json:"turn"`
	Status     entity.Status     `json:"status"`
	Difficulty entity.Difficulty `json:"difficulty"`
}

type SessionStart struct {
	Difficulty entity.Difficulty `json:"difficulty"`
	IsHost     bool              `json:"is_host"`
	SessionID  string            `json:"session_id,omitempty"`
}

// SessionEnd - Winner is NoOwner for a draw or an abandoned game.
type SessionEnd struct {
	Winner entity.Owner `json:"winner"`
}

type Chat struct {
	Text string `json:"text"`
}

type Ping struct{}

type Pong struct{}

func (Move) Type() Type         { return TypeMove }
func (StateSync) Type() Type    { return TypeStateSync }
func (SessionStart) Type() Type { return TypeSessionStart }
func (SessionEnd) Type() Type   { return TypeSessionEnd }
func (Chat) Type() Type         { return TypeChat }
func (Ping) Type() Type         { return TypePing }
func (Pong) Type() Type         { return TypePong }

// Entity - the move as understood by the rules engine.
func (that Move) Entity() entity.Move {
	return entity.Move{Row: that.Row, Col: that.Col}
}

func MoveFrom(move entity.Move) Move {
	return Move{Row: move.Row, Col: move.Col}
}

// StateSyncFrom - snapshot of the parts of state both peers must agree on.
func StateSyncFrom(state entity.GameState) StateSync {
	return StateSync{
		Board:      state.Board.Clone(),
		Turn:       state.Turn,
		Status:     state.Status,
		Difficulty: state.Difficulty,
	}
}

// Apply - replaces the synchronised fields of state. Mode, Connected and IsHost are local and kept.
func (that StateSync) Apply(state entity.GameState) entity.GameState {
	state.Board = that.Board.Clone()
	state.Turn = that.Turn
	state.Status = that.Status
	state.Difficulty = that.Difficulty

	return state
}

type envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var decoders = map[Type]func(payload json.RawMessage) (Message, error){
	TypeMove:         decodeMove,
	TypeStateSync:    decodeStateSync,
	TypeSessionStart: decodeSessionStart,
	TypeSessionEnd:   decodeSessionEnd,
	TypeChat:         decodeChat,
	TypePing: func(json.RawMessage) (Message, error) {
		return Ping{}, nil
	},
	TypePong: func(json.RawMessage) (Message, error) {
		return Pong{}, nil
	},
}

// Encode - serialises msg as {"type": ..., "payload": ...}.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrInvalidPayload)
	}

	if err := validate(msg); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", msg.Type(), err)
	}

	env := envelope{Type: msg.Type()}

	switch msg.(type) {
	case Ping, Pong:
	default:
		payload, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", msg.Type(), err)
		}
		env.Payload = payload
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", msg.Type(), err)
	}

	return data, nil
}

// Decode - reads the tag first and only then the payload of that variant.
// Malformed input, an unknown tag or an invalid payload yields (nil, false).
func Decode(data []byte) (Message, bool) {
	msg, err := DecodeErr(data)
	if err != nil {
		return nil, false
	}

	return msg, true
}

// DecodeErr - same as Decode but tells why the input was rejected.
func DecodeErr(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	decode, ok := decoders[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown message type %q", ErrInvalidPayload, env.Type)
	}

	msg, err := decode(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
	}

	return msg, nil
}

func unmarshalPayload(payload json.RawMessage, target any) error {
	if len(bytes.TrimSpace(payload)) == 0 || bytes.Equal(payload, []byte("null")) {
		return fmt.Errorf("%w: payload is missing", ErrInvalidPayload)
	}

	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	return nil
}

func decodeMove(payload json.RawMessage) (Message, error) {
	var raw struct {
		Row *int `json:"row"`
		Col *int `json:"col"`
	}
	if err := unmarshalPayload(payload, &raw); err != nil {
		return nil, err
	}

	if raw.Row == nil || raw.Col == nil {
		return nil, fmt.Errorf("%w: row and col are required", ErrInvalidPayload)
	}

	return validated(Move{Row: *raw.Row, Col: *raw.Col})
}

func decodeStateSync(payload json.RawMessage) (Message, error) {
	var msg StateSync
	if err := unmarshalPayload(payload, &msg); err != nil {
		return nil, err
	}

	return validated(msg)
}

func decodeSessionStart(payload json.RawMessage) (Message, error) {
	var msg SessionStart
	if err := unmarshalPayload(payload, &msg); err != nil {
		return nil, err
	}

	return validated(msg)
}

func decodeSessionEnd(payload json.RawMessage) (Message, error) {
	var msg SessionEnd
	if err := unmarshalPayload(payload, &msg); err != nil {
		return nil, err
	}

	return validated(msg)
}

func decodeChat(payload json.RawMessage) (Message, error) {
	var msg Chat
	if err := unmarshalPayload(payload, &msg); err != nil {
		return nil, err
	}

	return validated(msg)
}

func validated(msg Message) (Message, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// validate - the checks both sides of the codec share, so that whatever Encode
// accepts Decode gives back unchanged.
func validate(msg Message) error {
	switch msg := msg.(type) {
	case Move:
		if msg.Row < 0 || msg.Col < 0 {
			return fmt.Errorf("%w: negative cell %d,%d", ErrInvalidPayload, msg.Row, msg.Col)
		}
	case StateSync:
		if err := msg.Difficulty.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}

		if err := msg.Board.Validate(msg.Difficulty.Size()); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}

		if !msg.Turn.IsPlayer() {
			return fmt.Errorf("%w: unknown turn %q", ErrInvalidPayload, msg.Turn)
		}

		if !msg.Status.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidPayload, msg.Status)
		}
	case SessionStart:
		if err := msg.Difficulty.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}

		if !utf8.ValidString(msg.SessionID) {
			return fmt.Errorf("%w: session id is not valid UTF-8", ErrInvalidPayload)
		}
	case SessionEnd:
		if msg.Winner != entity.NoOwner && !msg.Winner.IsPlayer() {
			return fmt.Errorf("%w: unknown winner %q", ErrInvalidPayload, msg.Winner)
		}
	case Chat:
		if !utf8.ValidString(msg.Text) {
			return fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidPayload)
		}
	}

	return nil
}
