// Package session reconciles the local room session with the server. It
// owns the Session, the message transcript and the live Fault; every
// trigger (user intent, connection lifecycle, inbound frame) goes through
// the Machine, which is not safe for concurrent use and is driven from the
// UI loop.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SandroK0/chat-rooms/internal/protocol"
	"github.com/SandroK0/chat-rooms/internal/transport"
)

// TokenKey is the keystore key holding the resume token.
const TokenKey = "token"

// Precondition errors. Nothing is sent when one of these is returned.
var (
	ErrNotConnected = errors.New("not connected")
	ErrNotJoined    = errors.New("not in a room")
	ErrNoToken      = errors.New("no session token")
	ErrJoined       = errors.New("already in a room")
)

// Link is the part of a connection handle the machine uses.
type Link interface {
	Send(frame []byte) error
	State() transport.State
}

// TokenStore persists the resume token across restarts.
type TokenStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Invalidator is told when the room listing is likely stale.
type Invalidator interface {
	Invalidate()
}

// Config wires a Machine to its collaborators. Directory and Logger are
// optional.
type Config struct {
	Tokens    TokenStore
	Directory Invalidator
	Logger    *slog.Logger
	// Now is used for fallback message IDs. Defaults to time.Now.
	Now func() time.Time
}

// Machine is the session state machine.
type Machine struct {
	tokens    TokenStore
	directory Invalidator
	logger    *slog.Logger
	now       func() time.Time

	link     Link
	opened   Link // link whose opened notification has been handled
	resumed  Link // link on which reconnect_room was last sent
	resuming bool // Joining was entered by a resume, not a local join

	// pending is set while a reconnect_room awaits its answer.
	pending bool
	// abandoned holds the token of a resume the user left before the
	// server answered it.
	abandoned string
	// nextName is the identity of a join requested while already joined.
	// It replaces DisplayName when room_joined arrives.
	nextName string

	session     Session
	messages    []Message
	fault       *Fault
	subscribers []func(Change)
}

// New creates a Machine and loads any persisted resume token.
func New(cfg Config) *Machine {
	m := &Machine{
		tokens:    cfg.Tokens,
		directory: cfg.Directory,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.tokens != nil {
		token, err := m.tokens.Get(TokenKey)
		if err != nil {
			m.logger.Warn("loading session token", "error", err)
		}
		m.session.ResumeToken = token
	}
	return m
}

// Subscribe registers fn to be called after every session change.
func (m *Machine) Subscribe(fn func(Change)) {
	m.subscribers = append(m.subscribers, fn)
}

// Session returns the current session.
func (m *Machine) Session() Session { return m.session }

// Messages returns a copy of the transcript.
func (m *Machine) Messages() []Message {
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Fault returns the live server error, or nil.
func (m *Machine) Fault() *Fault {
	if m.fault == nil {
		return nil
	}
	f := *m.fault
	return &f
}

// DismissFault clears the live server error.
func (m *Machine) DismissFault() { m.fault = nil }

// State returns a copy of everything the machine owns.
func (m *Machine) State() State {
	return State{Session: m.session, Messages: m.Messages(), Fault: m.Fault()}
}

// Connected reports whether the current link is open and its opened
// notification has been handled. Until then nothing but reconnect_room may
// be sent on it.
func (m *Machine) Connected() bool {
	return m.link != nil && m.link == m.opened && m.link.State() == transport.Open
}

// --- connection lifecycle ---

// Attach makes link the current connection. Lifecycle calls for any other
// link are ignored.
func (m *Machine) Attach(link Link) {
	m.link = link
}

// Opened handles the current link becoming open. If a resume token is held
// it sends reconnect_room, once per link, before anything else.
func (m *Machine) Opened(link Link) {
	if link != m.link {
		m.logger.Debug("ignoring open of stale connection")
		return
	}
	m.opened = link
	token := m.session.ResumeToken
	if token == "" || m.resumed == link {
		return
	}
	if err := m.send(protocol.ReconnectRoom, protocol.ReconnectRequest{Token: token}); err != nil {
		m.logger.Warn("sending reconnect_room", "error", err)
		return
	}
	m.resumed = link
	m.pending = true
	m.logger.Info("resuming session")
	if m.session.Status == Anonymous {
		prev := m.session
		m.session.Status = Joining
		m.resuming = true
		m.commit(prev, "resume")
	}
}

// Closed handles the current link closing. The session and token are kept
// so the next link can resume. A local join still awaiting confirmation is
// abandoned.
func (m *Machine) Closed(link Link, cause error) {
	if link != m.link {
		return
	}
	m.logger.Info("disconnected", "error", cause)
	m.opened = nil
	m.pending = false
	m.abandoned = ""
	m.nextName = ""
	if m.session.Status == Joining && !m.resuming {
		prev := m.session
		m.session.Status = Anonymous
		m.commit(prev, "disconnected")
	}
}

// Receive decodes a frame from link and applies it. Malformed frames are
// logged and dropped without touching any state.
func (m *Machine) Receive(link Link, frame []byte) {
	if link != m.link {
		m.logger.Debug("ignoring frame from stale connection")
		return
	}
	ev, err := protocol.Decode(frame)
	if err != nil {
		m.logger.Warn("discarding malformed frame", "error", err)
		return
	}
	m.Apply(ev)
}

// --- local intents ---

// SetDisplayName sets the identity used by the next create or join.
func (m *Machine) SetDisplayName(name string) error {
	if m.session.Status != Anonymous {
		return ErrJoined
	}
	if err := ValidateUsername(name); err != nil {
		return err
	}
	prev := m.session
	m.session.DisplayName = name
	m.commit(prev, "display name")
	return nil
}

// CreateRoom asks the server to create room and join the creator as user.
// The directory is refreshed whether or not the send succeeds.
func (m *Machine) CreateRoom(room, user string) error {
	if err := ValidateRoomName(room); err != nil {
		return err
	}
	if err := ValidateUsername(user); err != nil {
		return err
	}
	prev := m.session
	err := m.send(protocol.CreateRoom, protocol.RoomRequest{RoomName: room, Username: user})
	m.invalidate()
	m.requestIdentity(user)
	if err != nil {
		m.nextName = ""
		m.commit(prev, "create_room")
		return fmt.Errorf("create room %q: %w", room, err)
	}
	m.pending = false
	if m.session.Status != Joined {
		m.session.Status = Joining
		m.resuming = false
	}
	m.fault = nil
	m.commit(prev, "create_room")
	return nil
}

// JoinRoom asks the server to join room as user. The transcript is cleared
// right away.
func (m *Machine) JoinRoom(room, user string) error {
	if !m.Connected() {
		return ErrNotConnected
	}
	if err := ValidateRoomName(room); err != nil {
		return err
	}
	if err := ValidateUsername(user); err != nil {
		return err
	}
	prev := m.session
	m.messages = nil
	m.requestIdentity(user)
	if err := m.send(protocol.JoinRoom, protocol.RoomRequest{RoomName: room, Username: user}); err != nil {
		m.nextName = ""
		m.commit(prev, "join_room")
		return fmt.Errorf("join room %q: %w", room, err)
	}
	m.pending = false
	if m.session.Status != Joined {
		m.session.Status = Joining
		m.resuming = false
	}
	m.fault = nil
	m.invalidate()
	m.commit(prev, "join_room")
	return nil
}

// LeaveRoom leaves the current room. The local effect is applied at once
// without waiting for the server: room, token and transcript are cleared.
// The display name is kept. A failed send is returned after the local
// effect has been applied.
func (m *Machine) LeaveRoom() error {
	token := m.session.ResumeToken
	if token == "" {
		return ErrNoToken
	}
	var sendErr error
	left := false
	if m.Connected() && m.session.Status == Joined {
		sendErr = m.send(protocol.LeaveRoom, protocol.LeaveRequest{
			RoomName: m.session.RoomName,
			Username: m.session.DisplayName,
			Token:    token,
		})
		left = sendErr == nil
	}
	if m.pending && !left {
		m.abandoned = token
	}
	m.pending = false
	prev := m.session
	m.session = Session{Status: Anonymous, DisplayName: prev.DisplayName}
	m.resuming = false
	m.nextName = ""
	m.messages = nil
	m.fault = nil
	m.deleteToken()
	m.invalidate()
	m.commit(prev, "leave_room")
	if sendErr != nil {
		return fmt.Errorf("leave room %q: %w", prev.RoomName, sendErr)
	}
	return nil
}

// SendMessage sends body to the current room. The message appears in the
// transcript only when the server broadcasts it back.
func (m *Machine) SendMessage(body string) error {
	if !m.Connected() {
		return ErrNotConnected
	}
	if m.session.Status != Joined {
		return ErrNotJoined
	}
	if err := ValidateMessage(body); err != nil {
		return err
	}
	err := m.send(protocol.SendMessage, protocol.MessageRequest{
		RoomName: m.session.RoomName,
		Username: m.session.DisplayName,
		Body:     body,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// --- inbound ---

// Apply folds one decoded server event into the machine.
func (m *Machine) Apply(ev protocol.Inbound) {
	switch e := ev.(type) {
	case protocol.RoomJoinedEvent:
		if m.session.DisplayName == "" && m.nextName == "" {
			m.logger.Warn("room_joined without a display name", "room", e.RoomName)
			return
		}
		prev := m.session
		if e.RoomName != prev.RoomName {
			m.messages = nil
		}
		if m.nextName != "" {
			m.session.DisplayName = m.nextName
			m.nextName = ""
		}
		m.session.Status = Joined
		m.session.RoomName = e.RoomName
		m.setToken(e.Token)
		m.resuming = false
		m.fault = nil
		m.commit(prev, string(e.Type()))

	case protocol.RoomReconnectedEvent:
		if !m.pending {
			m.unsolicitedResume(e)
			return
		}
		m.pending = false
		prev := m.session
		if e.RoomName != prev.RoomName {
			m.messages = nil
		}
		m.session.Status = Joined
		m.session.RoomName = e.RoomName
		m.session.DisplayName = e.Username
		if e.Token != "" && e.Token != prev.ResumeToken {
			m.setToken(e.Token)
		}
		m.resuming = false
		m.fault = nil
		m.commit(prev, string(e.Type()))

	case protocol.RoomLeftEvent:
		m.reset(string(e.Type()))

	case protocol.InvalidTokenEvent:
		m.logger.Info("session token rejected")
		m.abandoned = ""
		m.reset(string(e.Type()))

	case protocol.MessageReceivedEvent:
		if m.session.Status != Joined {
			m.logger.Debug("dropping message outside a room", "author", e.Username)
			return
		}
		msg := Message{ID: e.ID, Author: e.Username, Body: e.Body}
		if msg.ID == "" {
			msg.ID = fallbackID(m.now())
			msg.Synthetic = true
		}
		m.messages = append(m.messages, msg)

	case protocol.ErrorEvent:
		m.fault = &Fault{Code: e.Code, Message: e.Message}
		m.logger.Warn("server error", "code", e.Code, "message", e.Message)

	case protocol.RoomCreatedEvent:
		m.logger.Debug("room created", "room", e.RoomName)

	default:
		m.logger.Debug("ignoring event", "eventType", ev.Type())
	}
}

// reset forces the session back to Anonymous and forgets the token. It is
// a no-op on a session that is already fully reset.
func (m *Machine) reset(cause string) {
	m.pending = false
	m.nextName = ""
	s := m.session
	if s.Status == Anonymous && s.ResumeToken == "" && s.RoomName == "" && len(m.messages) == 0 {
		return
	}
	prev := s
	m.session = Session{Status: Anonymous}
	m.resuming = false
	m.messages = nil
	m.fault = nil
	m.deleteToken()
	m.commit(prev, cause)
}

// unsolicitedResume handles room_reconnected when no resume is pending.
// If the user left while the resume was in flight, the server has just
// re-admitted us, so the abandoned membership is left explicitly.
func (m *Machine) unsolicitedResume(e protocol.RoomReconnectedEvent) {
	token := m.abandoned
	if token == "" {
		m.logger.Warn("room_reconnected without a pending resume", "room", e.RoomName)
		return
	}
	m.abandoned = ""
	m.logger.Info("leaving room resumed after leave", "room", e.RoomName)
	err := m.send(protocol.LeaveRoom, protocol.LeaveRequest{
		RoomName: e.RoomName,
		Username: e.Username,
		Token:    token,
	})
	if err != nil {
		m.logger.Warn("sending leave_room", "error", err)
	}
}

// --- helpers ---

// requestIdentity records the name for a create or join. While joined the
// confirmed name stays in use for the current room until room_joined.
func (m *Machine) requestIdentity(user string) {
	if m.session.Status == Joined {
		m.nextName = user
		return
	}
	m.nextName = ""
	m.session.DisplayName = user
}

func (m *Machine) send(t protocol.EventType, data any) error {
	if !m.Connected() {
		return ErrNotConnected
	}
	frame, err := protocol.Encode(t, data)
	if err != nil {
		return err
	}
	if err := m.link.Send(frame); err != nil {
		if errors.Is(err, transport.ErrNotOpen) {
			return ErrNotConnected
		}
		return err
	}
	return nil
}

func (m *Machine) setToken(token string) {
	m.session.ResumeToken = token
	if m.tokens == nil {
		return
	}
	if err := m.tokens.Set(TokenKey, token); err != nil {
		m.logger.Warn("saving session token", "error", err)
	}
}

func (m *Machine) deleteToken() {
	m.session.ResumeToken = ""
	if m.tokens == nil {
		return
	}
	if err := m.tokens.Delete(TokenKey); err != nil {
		m.logger.Warn("deleting session token", "error", err)
	}
}

func (m *Machine) invalidate() {
	if m.directory != nil {
		m.directory.Invalidate()
	}
}

func (m *Machine) commit(prev Session, cause string) {
	if prev == m.session {
		return
	}
	m.logger.Debug("session change", "cause", cause,
		"from", prev.Status, "to", m.session.Status, "room", m.session.RoomName)
	c := Change{From: prev, To: m.session, Cause: cause}
	for _, fn := range m.subscribers {
		fn(c)
	}
}
