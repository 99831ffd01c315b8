package session

import "fmt"

// Status is the membership status of the local session.
type Status int

const (
	// Anonymous: not in a room.
	Anonymous Status = iota
	// Joining: a create, join or resume was sent and is awaiting
	// confirmation. Observably the same as Anonymous; nothing that needs
	// membership is allowed yet.
	Joining
	// Joined: the server confirmed membership of RoomName.
	Joined
)

func (s Status) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Joining:
		return "joining"
	case Joined:
		return "joined"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Session is the client's view of its membership.
//
// RoomName is set only while Joined, and never without DisplayName.
// ResumeToken is set only after the server acknowledged a join.
type Session struct {
	Status      Status
	RoomName    string
	DisplayName string
	ResumeToken string
}

// Message is one chat line. Messages are immutable once appended.
type Message struct {
	ID     string
	Author string
	Body   string
	// Synthetic marks an ID generated locally because the server sent
	// none. Such IDs are only list keys.
	Synthetic bool
}

// Fault is the single live error reported by the server.
type Fault struct {
	Code    string
	Message string
}

func (f Fault) String() string {
	switch {
	case f.Code == "":
		return f.Message
	case f.Message == "":
		return f.Code
	default:
		return f.Code + ": " + f.Message
	}
}

// State is a copy of everything the machine owns, for rendering.
type State struct {
	Session  Session
	Messages []Message
	Fault    *Fault
}

// Change reports a session transition to subscribers.
type Change struct {
	From  Session
	To    Session
	Cause string
}
