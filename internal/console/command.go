package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rocketscienceinc/caro/internal/entity"
)

var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
)

type CommandKind int

const (
	CommandMove CommandKind = iota + 1
	CommandRestart
	CommandChat
	CommandHelp
	CommandQuit
)

type Command struct {
	Kind CommandKind

	Move       entity.Move
	Difficulty entity.Difficulty
	Text       string
}

const helpText = `commands:
  <row> <col>            place your mark, e.g. "1 2" or "1,2"
  restart [difficulty]   new game, difficulty is easy, medium or hard
  chat <text>            message the peer
  help                   this text
  quit                   end the session and exit
`

// ParseCommand - one input line into a Command. Restart without a difficulty keeps the current one.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrEmptyCommand
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "help", "?":
		return Command{Kind: CommandHelp}, nil
	case "quit", "exit", "q":
		return Command{Kind: CommandQuit}, nil
	case "chat", "say":
		if rest == "" {
			return Command{}, fmt.Errorf("%w: chat needs a text", ErrUnknownCommand)
		}
		return Command{Kind: CommandChat, Text: rest}, nil
	case "restart", "new":
		if rest == "" {
			return Command{Kind: CommandRestart}, nil
		}
		difficulty, err := entity.ParseDifficulty(strings.ToLower(rest))
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandRestart, Difficulty: difficulty}, nil
	}

	return parseMove(line)
}

func parseMove(line string) (Command, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
	if len(fields) != 2 {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
	}

	row, err := strconv.Atoi(fields[0])
	if err != nil {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
	}

	col, err := strconv.Atoi(fields[1])
	if err != nil {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
	}

	return Command{Kind: CommandMove, Move: entity.Move{Row: row, Col: col}}, nil
}
