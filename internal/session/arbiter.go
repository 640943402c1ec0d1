package session

import (
	"sort"
	"time"

	"github.com/dkrasnow/quizwire/internal/content"
)

// ClaimResult is the outcome of a team code claim attempt.
type ClaimResult int

const (
	ClaimRejected ClaimResult = iota
	ClaimJoined
	ClaimPending
)

// Device is lightweight connection metadata, surfaced only to the host.
type Device struct {
	RemoteAddr string
	UserAgent  string
}

// TakeoverRequest tracks the most recent connection asking to claim an
// already-held code. At most one per code; it never displaces the holder
// without an explicit host approval.
type TakeoverRequest struct {
	Code        string
	ConnID      string
	RequestedAt time.Time
	Device      Device
}

// arbiter enforces at most one live connection per team code and owns the
// takeover queue. It never touches the Teams map; Session methods pair the
// two so the claimed set and live teams stay in lockstep.
type arbiter struct {
	claimed map[string]string // code -> conn id
	pending map[string]TakeoverRequest
}

func newArbiter() *arbiter {
	return &arbiter{
		claimed: make(map[string]string),
		pending: make(map[string]TakeoverRequest),
	}
}

func (a *arbiter) holder(code string) (string, bool) {
	connID, ok := a.claimed[code]
	return connID, ok
}

func (a *arbiter) setHolder(code, connID string) { a.claimed[code] = connID }

// release frees the code iff connID still holds it.
func (a *arbiter) release(code, connID string) {
	if a.claimed[code] == connID {
		delete(a.claimed, code)
	}
}

// requestTakeover records the request, replacing any prior requester for the
// same code.
func (a *arbiter) requestTakeover(req TakeoverRequest) { a.pending[req.Code] = req }

// takePending removes and returns the pending request for code.
func (a *arbiter) takePending(code string) (TakeoverRequest, bool) {
	req, ok := a.pending[code]
	if ok {
		delete(a.pending, code)
	}
	return req, ok
}

// dropRequestsFrom discards any pending requests made by a now-gone
// connection. Reports whether anything changed.
func (a *arbiter) dropRequestsFrom(connID string) bool {
	changed := false
	for code, req := range a.pending {
		if req.ConnID == connID {
			delete(a.pending, code)
			changed = true
		}
	}
	return changed
}

// pendingRequests returns the takeover queue ordered by request time.
func (a *arbiter) pendingRequests() []TakeoverRequest {
	reqs := make([]TakeoverRequest, 0, len(a.pending))
	for _, req := range a.pending {
		reqs = append(reqs, req)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].RequestedAt.Before(reqs[j].RequestedAt) })
	return reqs
}

func (a *arbiter) clear() {
	a.claimed = make(map[string]string)
	a.pending = make(map[string]TakeoverRequest)
}

// ClaimTeam attempts to bind a roster identity to a connection. Rejected when
// the connection already holds a team; pending when the code is held by
// someone else (the request is queued for host arbitration); joined otherwise.
func (s *Session) ClaimTeam(id content.TeamIdentity, connID string, dev Device) ClaimResult {
	if s.Teams[connID] != nil {
		return ClaimRejected
	}
	if holder, held := s.arb.holder(id.Code); held && holder != connID {
		s.arb.requestTakeover(TakeoverRequest{
			Code:        id.Code,
			ConnID:      connID,
			RequestedAt: s.wall.Now(),
			Device:      dev,
		})
		return ClaimPending
	}

	s.arb.setHolder(id.Code, connID)
	s.Teams[connID] = &Team{
		ConnID:  connID,
		Code:    id.Code,
		Name:    id.Name,
		Avatar:  id.Avatar,
		Members: id.Members,
	}
	return ClaimJoined
}

// ApproveTakeover evicts the current holder (if any) and hands back the
// pending request so the caller can complete the requester's claim — or just
// free the code when the requester has vanished. evicted is the prior
// holder's conn id, empty when the claim had already lapsed.
func (s *Session) ApproveTakeover(code string) (req TakeoverRequest, evicted string, ok bool) {
	req, ok = s.arb.takePending(code)
	if !ok {
		return TakeoverRequest{}, "", false
	}
	if holder, held := s.arb.holder(code); held {
		evicted = holder
		s.removeTeam(holder)
	}
	return req, evicted, true
}

// DenyTakeover discards the pending request, returning it so the requester
// can be notified.
func (s *Session) DenyTakeover(code string) (TakeoverRequest, bool) {
	return s.arb.takePending(code)
}

// ReleaseConn idempotently strips every role a connection holds: team (code
// freed), host, display, and any takeover requests it filed. Used for
// disconnects, kicks and takeover evictions alike.
func (s *Session) ReleaseConn(connID string) (changed bool) {
	if s.removeTeam(connID) {
		changed = true
	}
	if s.arb.dropRequestsFrom(connID) {
		changed = true
	}
	if s.HostID == connID {
		s.HostID = ""
		changed = true
	}
	if _, ok := s.Displays[connID]; ok {
		delete(s.Displays, connID)
		changed = true
	}
	return changed
}

func (s *Session) removeTeam(connID string) bool {
	team := s.Teams[connID]
	if team == nil {
		return false
	}
	s.arb.release(team.Code, connID)
	delete(s.Teams, connID)
	return true
}

// PendingTakeovers exposes the queue for the host projection.
func (s *Session) PendingTakeovers() []TakeoverRequest { return s.arb.pendingRequests() }
