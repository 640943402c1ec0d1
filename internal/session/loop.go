package session

import (
	"context"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/dkrasnow/quizwire/internal/content"
	"github.com/dkrasnow/quizwire/internal/protocol"
	"github.com/dkrasnow/quizwire/internal/store"
)

// Msg is the tagged union of everything the coordinator loop processes.
// Every mutation arrives here, so no two ever interleave.
type Msg interface{ isMsg() }

// Join registers a freshly accepted connection and its outbox.
type Join struct {
	ConnID string
	Outbox chan protocol.ServerMessage
	Device Device
}

func (Join) isMsg() {}

// Leave is the implicit release of every role the connection held.
type Leave struct{ ConnID string }

func (Leave) isMsg() {}

// FromClient carries one decoded inbound message.
type FromClient struct {
	ConnID string
	Msg    protocol.ClientMessage
}

func (FromClient) isMsg() {}

// GetView replies with a race-free copy of observable state; used by the
// HTTP state endpoint and tests.
type GetView struct{ Reply chan View }

func (GetView) isMsg() {}

type Shutdown struct{}

func (Shutdown) isMsg() {}

// View is what GetView reports.
type View struct {
	protocol.PublicState
	NumClients       int  `json:"num_clients"`
	HostConnected    bool `json:"host_connected"`
	Displays         int  `json:"displays"`
	PendingTakeovers int  `json:"pending_takeovers"`
}

type client struct {
	outbox   chan protocol.ServerMessage
	device   Device
	joinedAt time.Time
}

// Options configures a Coordinator.
type Options struct {
	Title               string
	DefaultTimeLimitSec int
	ShuffleQuestions    bool
	ShuffleChoices      bool
	TickInterval        time.Duration
	Cache               *content.Cache
	Store               store.Store
	Logger              *zap.Logger

	// Clock and Rand default to the real thing; tests inject fakes.
	Clock clockwork.Clock
	Rand  *rand.Rand
}

// Coordinator owns the Session and serializes every mutation through one
// goroutine; each event is handled to completion, broadcast included, before
// the next is accepted.
type Coordinator struct {
	inbox   chan Msg
	clients map[string]*client
	sess    *Session
	cache   *content.Cache
	effects *effects
	log     *zap.Logger
	wall    clockwork.Clock
	tick    time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewCoordinator(parent context.Context, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(opts.Clock.Now().UnixNano()))
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 250 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	c := &Coordinator{
		inbox:   make(chan Msg, 64),
		clients: make(map[string]*client),
		sess:    New(opts.Title, opts.DefaultTimeLimitSec, opts.ShuffleQuestions, opts.ShuffleChoices, opts.Clock, opts.Rand),
		cache:   opts.Cache,
		effects: newEffects(ctx, opts.Store, opts.Logger),
		log:     opts.Logger,
		wall:    opts.Clock,
		tick:    opts.TickInterval,
		ctx:     ctx,
		cancel:  cancel,
	}
	go c.loop()
	return c
}

// Inbox exposes the message channel to the transport layer and tests.
func (c *Coordinator) Inbox() chan<- Msg { return c.inbox }

func (c *Coordinator) loop() {
	ticker := c.wall.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return

		case <-ticker.Chan():
			c.onTick()

		case m := <-c.inbox:
			switch msg := m.(type) {
			case Join:
				c.clients[msg.ConnID] = &client{
					outbox:   msg.Outbox,
					device:   msg.Device,
					joinedAt: c.wall.Now(),
				}
				c.send(msg.ConnID, protocol.ServerMessage{Type: protocol.MsgState, State: c.publicState()})

			case Leave:
				c.onLeave(msg.ConnID)

			case FromClient:
				c.dispatch(msg.ConnID, msg.Msg)

			case GetView:
				msg.Reply <- c.view()

			case Shutdown:
				c.shutdown()
				return
			}
		}
	}
}

// onTick drives the only autonomous transition: forcing a reveal once the
// budget is spent. Otherwise it just refreshes the countdown on every client.
func (c *Coordinator) onTick() {
	if c.sess.TimeExpired() {
		c.doReveal()
		c.broadcast()
		return
	}
	public := c.publicState()
	for id := range c.clients {
		c.send(id, protocol.ServerMessage{Type: protocol.MsgState, State: public})
	}
}

func (c *Coordinator) onLeave(connID string) {
	if cl := c.clients[connID]; cl != nil {
		close(cl.outbox)
		delete(c.clients, connID)
	}
	if c.sess.ReleaseConn(connID) {
		c.broadcast()
	}
}

// drop forcibly disconnects a connection: kicked notice, outbox closed,
// every held role released. The caller broadcasts afterwards.
func (c *Coordinator) drop(connID, reason string) {
	c.send(connID, protocol.ServerMessage{Type: protocol.MsgKicked, Reason: reason})
	if cl := c.clients[connID]; cl != nil {
		close(cl.outbox)
		delete(c.clients, connID)
	}
	c.sess.ReleaseConn(connID)
}

func (c *Coordinator) dispatch(connID string, m protocol.ClientMessage) {
	switch m.Type {
	case protocol.MsgRegisterHost:
		c.registerHost(connID)

	case protocol.MsgRegisterDisplay:
		c.sess.Displays[connID] = struct{}{}
		c.broadcast()

	case protocol.MsgJoinTeam:
		c.joinTeam(connID, m.Code)

	case protocol.MsgLockAnswer:
		if m.ChoiceIndex == nil {
			c.log.Debug("lockAnswer without choice index", zap.String("conn", connID))
			return
		}
		if err := c.sess.LockAnswer(connID, *m.ChoiceIndex); err != nil {
			c.log.Debug("lock rejected", zap.String("conn", connID), zap.Error(err))
			return
		}
		c.broadcast()

	case protocol.MsgHostStart,
		protocol.MsgHostPauseToggle,
		protocol.MsgHostReveal,
		protocol.MsgHostAdvance,
		protocol.MsgHostReset,
		protocol.MsgHostKick,
		protocol.MsgHostApproveTakeover,
		protocol.MsgHostDenyTakeover,
		protocol.MsgHostSetShuffle,
		protocol.MsgHostSetManual,
		protocol.MsgHostAdjustScore:
		// Host-only commands from anyone else die silently: no
		// privilege-escalation feedback.
		if c.sess.HostID == "" || connID != c.sess.HostID {
			c.log.Debug("ignoring host command from non-host",
				zap.String("type", m.Type), zap.String("conn", connID))
			return
		}
		c.dispatchHost(connID, m)

	default:
		c.log.Debug("unknown message type", zap.String("type", m.Type), zap.String("conn", connID))
	}
}

func (c *Coordinator) dispatchHost(connID string, m protocol.ClientMessage) {
	switch m.Type {
	case protocol.MsgHostStart:
		if err := c.sess.Start(c.cache.Questions()); err != nil {
			// Configuration errors are the one class the host must see.
			c.send(connID, protocol.ServerMessage{Type: protocol.MsgError, Reason: err.Error()})
			c.log.Warn("start rejected", zap.Error(err))
			return
		}
		c.log.Info("game started",
			zap.String("session", c.sess.ID),
			zap.Int("questions", len(c.sess.Run)))
		c.broadcast()

	case protocol.MsgHostPauseToggle:
		c.pauseToggle()

	case protocol.MsgHostReveal:
		if c.doReveal() {
			c.broadcast()
		}

	case protocol.MsgHostAdvance:
		c.advance()

	case protocol.MsgHostReset:
		c.sess.Reset()
		c.log.Info("session reset", zap.String("session", c.sess.ID))
		c.broadcast()

	case protocol.MsgHostKick:
		ref := m.TeamID
		if ref == "" {
			ref = m.Code
		}
		team := c.sess.TeamByRef(ref)
		if team == nil {
			c.log.Debug("kick for unknown team", zap.String("ref", ref))
			return
		}
		c.drop(team.ConnID, "kicked by host")
		c.broadcast()

	case protocol.MsgHostApproveTakeover:
		c.approveTakeover(m.Code)

	case protocol.MsgHostDenyTakeover:
		if req, ok := c.sess.DenyTakeover(m.Code); ok {
			c.send(req.ConnID, protocol.ServerMessage{Type: protocol.MsgTakeoverDenied, Code: m.Code})
			c.broadcast()
		}

	case protocol.MsgHostSetShuffle:
		// The run is built at start; toggles only matter in the lobby.
		if c.sess.Phase != PhaseLobby {
			return
		}
		if m.ShuffleQuestions != nil {
			c.sess.ShuffleQuestions = *m.ShuffleQuestions
		}
		if m.ShuffleChoices != nil {
			c.sess.ShuffleChoices = *m.ShuffleChoices
		}
		c.broadcast()

	case protocol.MsgHostSetManual:
		if m.Enabled == nil {
			return
		}
		c.sess.ManualScoring = *m.Enabled
		c.broadcast()

	case protocol.MsgHostAdjustScore:
		if m.Delta == nil {
			return
		}
		totals, err := c.sess.AdjustScore(m.TeamID, *m.Delta)
		if err != nil {
			c.log.Debug("score adjust for unknown team", zap.String("ref", m.TeamID))
			return
		}
		c.effects.SyncScores(totals)
		c.broadcast()
	}
}

func (c *Coordinator) registerHost(connID string) {
	if prev := c.sess.HostID; prev != "" && prev != connID {
		c.drop(prev, "host role taken over")
	}
	c.sess.HostID = connID
	c.log.Info("host registered", zap.String("conn", connID))
	c.broadcast()
}

func (c *Coordinator) joinTeam(connID, code string) {
	identity, ok := c.cache.Identity(code)
	if !ok {
		c.send(connID, protocol.ServerMessage{Type: protocol.MsgJoinError, Reason: "unknown team code"})
		return
	}
	cl := c.clients[connID]
	if cl == nil {
		return
	}

	switch c.sess.ClaimTeam(identity, connID, cl.device) {
	case ClaimJoined:
		team := c.sess.Teams[connID]
		view := teamView(team, c.sess.Phase)
		c.send(connID, protocol.ServerMessage{Type: protocol.MsgJoined, Team: &view})
		c.log.Info("team joined", zap.String("code", code), zap.String("conn", connID))
		c.broadcast()

	case ClaimPending:
		c.send(connID, protocol.ServerMessage{Type: protocol.MsgTakeoverRequested, Code: code})
		if c.sess.HostID != "" {
			tv := c.takeoverView(code)
			c.send(c.sess.HostID, protocol.ServerMessage{Type: protocol.MsgTakeoverPending, Takeover: &tv})
		}
		c.log.Info("takeover requested", zap.String("code", code), zap.String("conn", connID))
		c.broadcast()

	case ClaimRejected:
		c.send(connID, protocol.ServerMessage{Type: protocol.MsgJoinError, Reason: "connection already holds a team"})
	}
}

func (c *Coordinator) approveTakeover(code string) {
	req, evicted, ok := c.sess.ApproveTakeover(code)
	if !ok {
		return
	}
	if evicted != "" {
		c.drop(evicted, "team claimed from another device")
	}

	// Complete the requester's claim only if that connection is still alive;
	// otherwise the code simply stays free.
	if cl := c.clients[req.ConnID]; cl != nil {
		identity, found := c.cache.Identity(code)
		if found && c.sess.ClaimTeam(identity, req.ConnID, cl.device) == ClaimJoined {
			team := c.sess.Teams[req.ConnID]
			view := teamView(team, c.sess.Phase)
			c.send(req.ConnID, protocol.ServerMessage{Type: protocol.MsgTakeoverApproved, Code: code})
			c.send(req.ConnID, protocol.ServerMessage{Type: protocol.MsgJoined, Team: &view})
			c.log.Info("takeover approved", zap.String("code", code), zap.String("conn", req.ConnID))
		}
	}
	c.broadcast()
}

// pauseToggle flips the run clock; the first resume of a question also fires
// the once-per-question log effect.
func (c *Coordinator) pauseToggle() {
	if c.sess.Paused {
		first, err := c.sess.Resume()
		if err != nil {
			c.log.Debug("resume rejected", zap.Error(err))
			return
		}
		if first {
			if q, ok := c.sess.CurrentQuestion(); ok {
				c.effects.LogQuestion(store.QuestionLogRow{
					RunID:        c.sess.RunID,
					SessionID:    c.sess.ID,
					QuestionID:   q.ID,
					QuestionNum:  c.sess.QIndex + 1,
					Prompt:       q.Prompt,
					CorrectIndex: q.CorrectIndex,
					TimeLimitSec: q.TimeLimitSec,
					AskedAt:      c.wall.Now(),
				})
			}
		}
	} else {
		if err := c.sess.Pause(); err != nil {
			c.log.Debug("pause rejected", zap.Error(err))
			return
		}
	}
	c.broadcast()
}

// doReveal runs the reveal transition and hands the audit rows and score
// totals to the effects runner. Reports whether the transition happened.
func (c *Coordinator) doReveal() bool {
	rows, totals, err := c.sess.Reveal()
	if err != nil {
		c.log.Debug("reveal rejected", zap.Error(err))
		return false
	}
	c.effects.LogAnswers(rows)
	c.effects.SyncScores(totals)
	c.log.Info("question revealed",
		zap.String("session", c.sess.ID),
		zap.Int("question", c.sess.QIndex+1),
		zap.Int("answers", len(rows)))
	return true
}

func (c *Coordinator) advance() {
	switch c.sess.Phase {
	case PhaseRevealed:
		if err := c.sess.ShowLeaderboard(); err != nil {
			return
		}
		c.broadcast()
	case PhaseLeaderboard:
		finished, err := c.sess.Next()
		if err != nil {
			return
		}
		if finished {
			c.log.Info("game finished", zap.String("session", c.sess.ID))
		}
		c.broadcast()
	default:
		c.log.Debug("advance in wrong phase", zap.String("phase", string(c.sess.Phase)))
	}
}

// broadcast pushes the public projection to every observer and the host
// projection to the host. Runs after every successful mutation.
func (c *Coordinator) broadcast() {
	public := c.publicState()
	for id := range c.clients {
		c.send(id, protocol.ServerMessage{Type: protocol.MsgState, State: public})
	}
	if host := c.sess.HostID; host != "" {
		c.send(host, protocol.ServerMessage{Type: protocol.MsgHostState, HostState: c.hostState()})
	}
}

// send is non-blocking: a client whose outbox is full is dropped rather than
// allowed to stall the loop.
func (c *Coordinator) send(connID string, msg protocol.ServerMessage) {
	cl := c.clients[connID]
	if cl == nil {
		return
	}
	select {
	case cl.outbox <- msg:
	default:
		c.log.Warn("client outbox full, dropping connection", zap.String("conn", connID))
		close(cl.outbox)
		delete(c.clients, connID)
		c.sess.ReleaseConn(connID)
	}
}

func (c *Coordinator) shutdown() {
	for id, cl := range c.clients {
		close(cl.outbox)
		delete(c.clients, id)
	}
	c.cancel()
}
