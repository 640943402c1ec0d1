package session

import (
	"sort"

	"github.com/dkrasnow/quizwire/internal/protocol"
)

// publicState renders the projection every observer receives.
func (c *Coordinator) publicState() *protocol.PublicState {
	s := c.sess
	state := &protocol.PublicState{
		Title:            s.Title,
		SessionID:        s.ID,
		Phase:            string(s.Phase),
		QuestionIndex:    s.QIndex,
		QuestionCount:    len(s.Run),
		Paused:           s.Paused,
		ManualScoring:    s.ManualScoring,
		RemainingSeconds: s.RemainingSeconds(),
		Teams:            make([]protocol.TeamView, 0, len(s.Teams)),
	}

	if q, ok := s.CurrentQuestion(); ok && s.Phase != PhaseFinished {
		state.Question = &protocol.QuestionView{
			ID:           q.ID,
			Prompt:       q.Prompt,
			Choices:      q.Choices[:],
			CorrectIndex: q.CorrectIndex,
			TimeLimitSec: q.TimeLimitSec,
			MediaURL:     q.MediaURL,
		}
	}

	for _, team := range s.teamsByCode() {
		state.Teams = append(state.Teams, teamView(team, s.Phase))
	}
	return state
}

func teamView(t *Team, phase Phase) protocol.TeamView {
	view := protocol.TeamView{
		Code:        t.Code,
		Name:        t.Name,
		Avatar:      t.Avatar,
		Members:     t.Members,
		Score:       t.Score,
		Locked:      t.Locked(),
		LastOutcome: string(t.LastOutcome),
		LastPoints:  t.LastPoints,
	}
	// The locked choice itself stays hidden until reveal so teams cannot
	// trail each other mid-question.
	if t.Locked() && phase != PhaseQuestion {
		view.ChoiceIndex = t.Choice
	}
	return view
}

// hostState renders the privileged projection: device metadata per team plus
// the takeover queue.
func (c *Coordinator) hostState() *protocol.HostState {
	s := c.sess
	hs := &protocol.HostState{
		Teams:     make([]protocol.TeamDeviceView, 0, len(s.Teams)),
		Takeovers: make([]protocol.TakeoverView, 0),
		Displays:  len(s.Displays),
	}

	for _, team := range s.teamsByCode() {
		hs.Teams = append(hs.Teams, protocol.TeamDeviceView{
			Code:   team.Code,
			Name:   team.Name,
			Device: c.deviceView(team.ConnID),
		})
	}
	for _, req := range s.PendingTakeovers() {
		hs.Takeovers = append(hs.Takeovers, c.takeoverViewFor(req))
	}
	sort.Slice(hs.Takeovers, func(i, j int) bool {
		return hs.Takeovers[i].RequestedAt.Before(hs.Takeovers[j].RequestedAt)
	})
	return hs
}

func (c *Coordinator) deviceView(connID string) protocol.DeviceView {
	view := protocol.DeviceView{ConnID: connID}
	if cl := c.clients[connID]; cl != nil {
		view.RemoteAddr = cl.device.RemoteAddr
		view.UserAgent = cl.device.UserAgent
		view.JoinedAt = cl.joinedAt
	}
	return view
}

func (c *Coordinator) takeoverViewFor(req TakeoverRequest) protocol.TakeoverView {
	view := protocol.TakeoverView{
		Code:        req.Code,
		RequestedAt: req.RequestedAt,
		Device: protocol.DeviceView{
			ConnID:     req.ConnID,
			RemoteAddr: req.Device.RemoteAddr,
			UserAgent:  req.Device.UserAgent,
		},
	}
	if id, ok := c.cache.Identity(req.Code); ok {
		view.TeamName = id.Name
	}
	return view
}

func (c *Coordinator) takeoverView(code string) protocol.TakeoverView {
	for _, req := range c.sess.PendingTakeovers() {
		if req.Code == code {
			return c.takeoverViewFor(req)
		}
	}
	return protocol.TakeoverView{Code: code}
}

func (c *Coordinator) view() View {
	return View{
		PublicState:      *c.publicState(),
		NumClients:       len(c.clients),
		HostConnected:    c.sess.HostID != "",
		Displays:         len(c.sess.Displays),
		PendingTakeovers: len(c.sess.PendingTakeovers()),
	}
}
