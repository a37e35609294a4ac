// Package syncengine keeps one viewer's playback and chat in step with the rest of a room.
package syncengine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/watch-party/internal/domain"
	"github.com/cwrk-planet/watch-party/internal/protocol"
	"github.com/cwrk-planet/watch-party/internal/videosource"
)

const (
	DefaultDriftTolerance = 2 * time.Second
	DefaultSettleWindow   = 500 * time.Millisecond
)

var (
	ErrNoVideo  = errors.New("no video loaded")
	ErrEmptyURL = errors.New("video url is empty")
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Phase tells whether player callbacks are currently attributed to a remote frame.
type Phase int

const (
	PhaseSteady Phase = iota
	PhaseApplyingRemote
)

func (p Phase) String() string {
	if p == PhaseApplyingRemote {
		return "applying_remote"
	}
	return "steady"
}

// Transport carries outbound frames to the relay.
type Transport interface {
	Send(frame any) error
}

type Config struct {
	RoomID   string
	UserID   string
	UserName string

	DriftTolerance time.Duration
	SettleWindow   time.Duration
}

// ChatEntry is a server confirmed chat message.
type ChatEntry struct {
	ID        string
	UserID    string
	UserName  string
	Content   string
	CreatedAt time.Time
}

// Hooks are called after the engine state has changed, outside the engine lock.
type Hooks struct {
	StateChanged func(State)
	Chat         func(ChatEntry)
	Presence     func([]protocol.Member)
	Notice       func(string)
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	State              State
	Phase              Phase
	URL                string
	Source             *videosource.Match
	IsPlaying          bool
	LastKnownTimestamp float64
	EchoSuppressed     bool
	Ready              bool
	Chat               []ChatEntry
	Members            []protocol.Member
}

// Engine is safe for concurrent use by the UI, the player callbacks and the transport reader.
// Player commands, sends and hooks run after the lock is released so that player callbacks
// can re-enter the engine.
type Engine struct {
	cfg    Config
	player Player
	tr     Transport
	clock  Clock
	hooks  Hooks

	mu            sync.Mutex
	state         State
	url           string
	source        *videosource.Match
	playing       bool // desired playing state, applied once the player is ready
	lastTS        float64
	suppressUntil time.Time
	chat          []ChatEntry
	members       []protocol.Member
}

func New(cfg Config, player Player, tr Transport, clock Clock, hooks Hooks) *Engine {
	if cfg.DriftTolerance <= 0 {
		cfg.DriftTolerance = DefaultDriftTolerance
	}
	if cfg.SettleWindow <= 0 {
		cfg.SettleWindow = DefaultSettleWindow
	}
	if clock == nil {
		clock = RealClock()
	}
	return &Engine{cfg: cfg, player: player, tr: tr, clock: clock, hooks: hooks}
}

// effects are collected under the lock and run after it is released.
type effects struct {
	steps []func() error
}

func (fx *effects) do(f func() error) { fx.steps = append(fx.steps, f) }

func (fx *effects) run() error {
	var errs []error
	for _, f := range fx.steps {
		if err := f(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) send(fx *effects, frame any) {
	fx.do(func() error { return e.tr.Send(frame) })
}

func (e *Engine) setState(fx *effects, s State) {
	if e.state == s {
		return
	}
	e.state = s
	if h := e.hooks.StateChanged; h != nil {
		fx.do(func() error { h(s); return nil })
	}
}

func (e *Engine) suppressedLocked() bool {
	return e.clock.Now().Before(e.suppressUntil)
}

// Join announces this session to the room. It is also the reconnect path: frames missed
// while disconnected are not replayed.
func (e *Engine) Join() error {
	e.mu.Lock()
	e.members = nil
	e.mu.Unlock()
	return e.tr.Send(protocol.NewJoinRoom(e.cfg.RoomID, e.cfg.UserID, e.cfg.UserName))
}

// SubmitURL loads a newly chosen video locally and starts it from zero for everyone.
func (e *Engine) SubmitURL(raw string) (string, error) {
	url := videosource.Canonicalize(raw)
	if url == "" {
		return "", ErrEmptyURL
	}

	var fx effects
	e.mu.Lock()
	e.loadLocked(&fx, url, true, 0)
	e.send(&fx, protocol.NewVideoUpdate(e.cfg.RoomID, url, true, 0))
	e.mu.Unlock()

	return url, fx.run()
}

func (e *Engine) loadLocked(fx *effects, url string, playing bool, ts float64) {
	e.url = url
	e.source = nil
	if m, ok := videosource.Classify(url); ok {
		e.source = &m
	}
	e.playing = playing
	e.lastTS = ts
	e.setState(fx, StateLoading)
	fx.do(func() error { return e.player.Load(url) })
}

// Play is a local play action.
func (e *Engine) Play() error {
	return e.localToggle(true)
}

// Pause is a local pause action.
func (e *Engine) Pause() error {
	return e.localToggle(false)
}

func (e *Engine) localToggle(play bool) error {
	var fx effects
	e.mu.Lock()
	switch e.state {
	case StateIdle:
		e.mu.Unlock()
		return ErrNoVideo
	case StatePlaying:
		if play {
			e.mu.Unlock()
			return nil
		}
	case StatePaused:
		if !play {
			e.mu.Unlock()
			return nil
		}
	}
	e.toggleLocked(&fx, play)
	e.emitLocked(&fx)
	e.mu.Unlock()

	return fx.run()
}

// toggleLocked drives the player when it can take commands; while loading only the desired
// state is recorded.
func (e *Engine) toggleLocked(fx *effects, play bool) {
	e.playing = play
	if e.state == StateLoading || e.state == StateIdle {
		return
	}
	if play {
		e.setState(fx, StatePlaying)
		fx.do(e.player.Play)
	} else {
		e.setState(fx, StatePaused)
		fx.do(e.player.Pause)
	}
}

func (e *Engine) emitLocked(fx *effects) {
	pos := e.lastTS
	if e.state != StateLoading {
		pos = e.player.Position()
		e.lastTS = pos
	}
	e.send(fx, protocol.NewVideoUpdate(e.cfg.RoomID, e.url, e.playing, pos))
}

// Seek is a local seek; the new position is broadcast with the current play state.
func (e *Engine) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	var fx effects
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		return ErrNoVideo
	}
	e.lastTS = seconds
	if e.state != StateLoading {
		fx.do(func() error { return e.player.Seek(seconds) })
	}
	e.send(&fx, protocol.NewVideoUpdate(e.cfg.RoomID, e.url, e.playing, seconds))
	e.mu.Unlock()

	return fx.run()
}

// SendChat sends content to the relay. Nothing is added locally until the relay
// broadcasts the stored message back.
func (e *Engine) SendChat(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.ErrEmptyMessage
	}
	return e.tr.Send(protocol.NewChatSend(e.cfg.RoomID, e.cfg.UserID, content))
}

// HandlePlayerReady is the player's "can play" callback.
func (e *Engine) HandlePlayerReady() {
	var fx effects
	e.mu.Lock()
	if e.state != StateLoading {
		e.mu.Unlock()
		return
	}
	e.setState(&fx, StateReady)

	// bring the fresh player to the room's position and play state without echoing
	e.suppressUntil = e.clock.Now().Add(e.cfg.SettleWindow)
	if ts := e.lastTS; ts > e.cfg.DriftTolerance.Seconds() {
		fx.do(func() error { return e.player.Seek(ts) })
	}
	if e.playing {
		e.setState(&fx, StatePlaying)
		fx.do(e.player.Play)
	}
	e.mu.Unlock()

	e.logErr("player ready", fx.run())
}

// HandlePlayerPlay is the player's play callback. Outside the settle window it is a
// local user action.
func (e *Engine) HandlePlayerPlay() {
	e.playerToggled(true)
}

// HandlePlayerPause is the player's pause callback.
func (e *Engine) HandlePlayerPause() {
	e.playerToggled(false)
}

func (e *Engine) playerToggled(play bool) {
	var fx effects
	e.mu.Lock()
	if e.suppressedLocked() {
		e.mu.Unlock()
		slog.Debug("syncengine: callback suppressed", "play", play)
		return
	}
	switch {
	case e.state != StateReady && e.state != StatePlaying && e.state != StatePaused:
		e.mu.Unlock()
		return
	case play && e.state == StatePlaying, !play && e.state == StatePaused:
		e.mu.Unlock()
		return
	}
	e.playing = play
	if play {
		e.setState(&fx, StatePlaying)
	} else {
		e.setState(&fx, StatePaused)
	}
	e.emitLocked(&fx)
	e.mu.Unlock()

	e.logErr("player callback", fx.run())
}

// HandleFrame applies one frame received from the relay.
func (e *Engine) HandleFrame(data []byte) error {
	f, err := protocol.Decode(data)
	if err != nil {
		return err
	}

	switch f.Type {
	case protocol.TypeVideoUpdate:
		return e.applyRemote(f)
	case protocol.TypeChatMessage:
		e.appendChat(f)
	case protocol.TypePresence:
		e.setMembers(f.Members)
	case protocol.TypeUserJoined:
		e.memberJoined(protocol.Member{UserID: f.UserID.String(), UserName: f.UserName})
	case protocol.TypeUserLeft:
		e.memberLeft(f.UserID.String())
	case protocol.TypeError:
		if h := e.hooks.Notice; h != nil {
			h(f.Message)
		}
	}
	return nil
}

func (e *Engine) applyRemote(f protocol.Frame) error {
	if e.cfg.RoomID != "" && f.RoomID.String() != e.cfg.RoomID {
		return nil
	}
	url, playing, ts := f.Playback()

	var fx effects
	e.mu.Lock()
	e.suppressUntil = e.clock.Now().Add(e.cfg.SettleWindow)

	if url != "" && url != e.url {
		e.loadLocked(&fx, url, playing, ts)
		e.mu.Unlock()
		return fx.run()
	}

	e.lastTS = ts
	if e.state == StateIdle || e.state == StateLoading {
		e.playing = playing
		e.mu.Unlock()
		return nil
	}

	if drift := math.Abs(e.player.Position() - ts); drift > e.cfg.DriftTolerance.Seconds() {
		fx.do(func() error { return e.player.Seek(ts) })
	} else {
		slog.Debug("syncengine: drift within tolerance", "drift", drift)
	}
	if playing != (e.state == StatePlaying) {
		e.toggleLocked(&fx, playing)
	}
	e.playing = playing
	e.mu.Unlock()

	return fx.run()
}

func (e *Engine) appendChat(f protocol.Frame) {
	entry := ChatEntry{
		ID:        f.ID,
		UserID:    f.UserID.String(),
		Content:   f.Content,
		CreatedAt: f.CreatedAt,
	}
	if f.User != nil {
		entry.UserName = f.User.Name
	}

	e.mu.Lock()
	e.chat = append(e.chat, entry)
	e.mu.Unlock()

	if h := e.hooks.Chat; h != nil {
		h(entry)
	}
}

func (e *Engine) setMembers(ms []protocol.Member) {
	e.mu.Lock()
	e.members = append([]protocol.Member(nil), ms...)
	out := append([]protocol.Member(nil), e.members...)
	e.mu.Unlock()
	e.notifyPresence(out)
}

func (e *Engine) memberJoined(m protocol.Member) {
	e.mu.Lock()
	e.members = append(e.members, m)
	out := append([]protocol.Member(nil), e.members...)
	e.mu.Unlock()
	e.notifyPresence(out)
}

func (e *Engine) memberLeft(userID string) {
	e.mu.Lock()
	for i, m := range e.members {
		if m.UserID == userID {
			e.members = append(e.members[:i], e.members[i+1:]...)
			break
		}
	}
	out := append([]protocol.Member(nil), e.members...)
	e.mu.Unlock()
	e.notifyPresence(out)
}

func (e *Engine) notifyPresence(ms []protocol.Member) {
	if h := e.hooks.Presence; h != nil {
		h(ms)
	}
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		State:              e.state,
		Phase:              PhaseSteady,
		URL:                e.url,
		IsPlaying:          e.playing,
		LastKnownTimestamp: e.lastTS,
		Ready:              e.state == StateReady || e.state == StatePlaying || e.state == StatePaused,
		Chat:               append([]ChatEntry(nil), e.chat...),
		Members:            append([]protocol.Member(nil), e.members...),
	}
	if e.source != nil {
		m := *e.source
		s.Source = &m
	}
	if e.suppressedLocked() {
		s.Phase = PhaseApplyingRemote
		s.EchoSuppressed = true
	}
	return s
}

func (e *Engine) logErr(op string, err error) {
	if err != nil {
		slog.Warn("syncengine: "+op, "err", err)
	}
}
