package entity

import (
	"fmt"

	"github.com/rocketscienceinc/caro/internal/apperror"
)

type Difficulty string

const (
	EasyDifficulty   Difficulty = "easy"
	MediumDifficulty Difficulty = "medium"
	HardDifficulty   Difficulty = "hard"
)

// Size - board side for the difficulty, or 0 for an unknown one.
func (that Difficulty) Size() int {
	switch that {
	case EasyDifficulty:
		return 3
	case MediumDifficulty:
		return 6
	case HardDifficulty:
		return 9
	default:
		return 0
	}
}

func (that Difficulty) Validate() error {
	if that.Size() == 0 {
		return fmt.Errorf("%w: %q", apperror.ErrUnknownDifficulty, that)
	}
	return nil
}

func ParseDifficulty(value string) (Difficulty, error) {
	difficulty := Difficulty(value)
	if err := difficulty.Validate(); err != nil {
		return "", err
	}
	return difficulty, nil
}

type Status string

const (
	StatusPlaying Status = "playing"
	StatusXWon    Status = "x_won"
	StatusOWon    Status = "o_won"
	StatusDraw    Status = "draw"
)

// WinFor - the terminal status for a win by owner.
func WinFor(owner Owner) Status {
	if owner == PlayerO {
		return StatusOWon
	}
	return StatusXWon
}

// Winner - the side that won, NoOwner while playing or on a draw.
func (that Status) Winner() Owner {
	switch that {
	case StatusXWon:
		return PlayerX
	case StatusOWon:
		return PlayerO
	default:
		return NoOwner
	}
}

func (that Status) IsTerminal() bool {
	return that != StatusPlaying
}

func (that Status) Valid() bool {
	switch that {
	case StatusPlaying, StatusXWon, StatusOWon, StatusDraw:
		return true
	default:
		return false
	}
}

type Mode string

const (
	SinglePlayerMode Mode = "single"
	NetworkedMode    Mode = "networked"
)

// GameState is one game instance. Board, Turn and Status only change through the rules engine.
type GameState struct {
	Board      Board      `json:"board"`
	Turn       Owner      `json:"turn"`
	Status     Status     `json:"status"`
	Difficulty Difficulty `json:"difficulty"`
	Mode       Mode       `json:"mode"`
	Connected  bool       `json:"connected"`
	IsHost     bool       `json:"is_host"`
}

// NewGame - a fresh game: empty board sized by difficulty, X to move.
func NewGame(difficulty Difficulty, mode Mode) GameState {
	return GameState{
		Board:      EmptyBoard(difficulty.Size()),
		Turn:       PlayerX,
		Status:     StatusPlaying,
		Difficulty: difficulty,
		Mode:       mode,
	}
}

func (that GameState) IsFinished() bool {
	return that.Status.IsTerminal()
}

func (that GameState) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that GameState) IsNetworked() bool {
	return that.Mode == NetworkedMode
}
