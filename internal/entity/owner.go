package entity

// Owner is the side a mark on the board belongs to.
//
// PlayerX is the side that opens a game: the human in single-player and the
// host in networked play. PlayerO answers: the AI or the joining peer.
type Owner string

const (
	NoOwner Owner = ""
	PlayerX Owner = "X"
	PlayerO Owner = "O"
)

// Opponent - returns the other side. NoOwner has no opponent.
func (that Owner) Opponent() Owner {
	switch that {
	case PlayerX:
		return PlayerO
	case PlayerO:
		return PlayerX
	default:
		return NoOwner
	}
}

func (that Owner) IsPlayer() bool {
	return that == PlayerX || that == PlayerO
}

func (that Owner) String() string {
	if that == NoOwner {
		return "."
	}
	return string(that)
}
