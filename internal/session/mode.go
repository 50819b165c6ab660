package session

import "github.com/nextlevelbuilder/botlink/pkg/protocol"

// Mode is the controller's top-level state.
type Mode int

const (
	ModeDisconnected Mode = iota
	ModeLinking
	ModeAwaitingVerification
	ModeAdmin
)

func (m Mode) String() string {
	switch m {
	case ModeDisconnected:
		return "disconnected"
	case ModeLinking:
		return "linking"
	case ModeAwaitingVerification:
		return "awaiting_verification"
	case ModeAdmin:
		return "admin"
	}
	return "unknown"
}

// State is a point-in-time copy of the session. Selected, when set, is
// always one of Linked except while Mode is ModeLinking.
type State struct {
	Linked   []protocol.Binding
	Selected *protocol.Binding
	Mode     Mode
}

// InviteLink is a fresh invitation for a new roster member.
type InviteLink struct {
	PassUUID string
	URL      string
}
