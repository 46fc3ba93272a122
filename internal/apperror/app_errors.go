package apperror

import "errors"

var (
	ErrGameFinished      = errors.New("game is already finished")
	ErrGameIsNotStarted  = errors.New("game is not started")
	ErrNotYourTurn       = errors.New("it's not your turn")
	ErrCellOccupied      = errors.New("cell is already occupied")
	ErrInvalidCell       = errors.New("invalid cell index")
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	ErrNoAvailableMoves  = errors.New("no available moves")
)

var (
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrConnectionFailed     = errors.New("connection failed")
	ErrSessionClosed        = errors.New("session is closed")
	ErrInvalidSessionState  = errors.New("invalid session state")
	ErrPongTimeout          = errors.New("peer did not answer ping")
	ErrNotConnected         = errors.New("peer is not connected")
	ErrNotHost              = errors.New("only the host can do this")
)
