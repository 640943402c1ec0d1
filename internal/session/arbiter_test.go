package session

import (
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dkrasnow/quizwire/internal/content"
)

func alpha() content.TeamIdentity {
	return content.TeamIdentity{Code: "AAA1", Name: "Alpha", Members: []string{"ana", "bo"}}
}

func newArbSession(fake *clockwork.FakeClock) *Session {
	return New("Arb Night", 30, false, false, fake, rand.New(rand.NewSource(7)))
}

func TestClaimUnclaimedCodeJoins(t *testing.T) {
	s := newArbSession(clockwork.NewFakeClock())

	if res := s.ClaimTeam(alpha(), "c1", Device{RemoteAddr: "10.0.0.1:1"}); res != ClaimJoined {
		t.Fatalf("claim = %v, want ClaimJoined", res)
	}
	team := s.Teams["c1"]
	if team == nil || team.Code != "AAA1" || team.Name != "Alpha" {
		t.Fatalf("team not created: %+v", team)
	}
}

func TestClaimWhileHoldingATeamIsRejected(t *testing.T) {
	s := newArbSession(clockwork.NewFakeClock())
	s.ClaimTeam(alpha(), "c1", Device{})

	other := content.TeamIdentity{Code: "BBB2", Name: "Bravo"}
	if res := s.ClaimTeam(other, "c1", Device{}); res != ClaimRejected {
		t.Fatalf("second claim from same conn = %v, want ClaimRejected", res)
	}
}

func TestClaimHeldCodeQueuesTakeover(t *testing.T) {
	fake := clockwork.NewFakeClock()
	s := newArbSession(fake)
	s.ClaimTeam(alpha(), "c1", Device{})

	if res := s.ClaimTeam(alpha(), "c2", Device{RemoteAddr: "10.0.0.2:2"}); res != ClaimPending {
		t.Fatalf("claim of held code = %v, want ClaimPending", res)
	}
	// The holder is untouched and no second team exists.
	if s.Teams["c1"] == nil || s.Teams["c2"] != nil {
		t.Fatal("takeover request displaced the holder")
	}

	// A newer requester replaces the old one: only the most recent is kept.
	fake.Advance(time.Minute)
	s.ClaimTeam(alpha(), "c3", Device{RemoteAddr: "10.0.0.3:3"})
	pending := s.PendingTakeovers()
	if len(pending) != 1 || pending[0].ConnID != "c3" {
		t.Fatalf("pending = %+v, want single request from c3", pending)
	}
}

func TestApproveTakeoverEvictsHolderFirst(t *testing.T) {
	s := newArbSession(clockwork.NewFakeClock())
	s.ClaimTeam(alpha(), "c1", Device{})
	s.Teams["c1"].Score = 12
	s.ClaimTeam(alpha(), "c2", Device{})

	req, evicted, ok := s.ApproveTakeover("AAA1")
	if !ok || req.ConnID != "c2" || evicted != "c1" {
		t.Fatalf("approve: req=%+v evicted=%q ok=%v", req, evicted, ok)
	}
	if s.Teams["c1"] != nil {
		t.Fatal("holder team survived approval")
	}
	// The code is free: the requester's claim now succeeds.
	if res := s.ClaimTeam(alpha(), "c2", Device{}); res != ClaimJoined {
		t.Fatalf("requester claim after approval = %v, want ClaimJoined", res)
	}
	if len(s.PendingTakeovers()) != 0 {
		t.Fatal("request survived approval")
	}
}

func TestApproveWithoutPendingRequestIsNoop(t *testing.T) {
	s := newArbSession(clockwork.NewFakeClock())
	s.ClaimTeam(alpha(), "c1", Device{})

	if _, _, ok := s.ApproveTakeover("AAA1"); ok {
		t.Fatal("approve with no pending request reported ok")
	}
	if s.Teams["c1"] == nil {
		t.Fatal("holder evicted without a pending request")
	}
}

func TestDenyTakeoverLeavesHolderUntouched(t *testing.T) {
	s := newArbSession(clockwork.NewFakeClock())
	s.ClaimTeam(alpha(), "c1", Device{})
	s.Teams["c1"].Score = 7
	s.ClaimTeam(alpha(), "c2", Device{})

	req, ok := s.DenyTakeover("AAA1")
	if !ok || req.ConnID != "c2" {
		t.Fatalf("deny: req=%+v ok=%v", req, ok)
	}
	holder := s.Teams["c1"]
	if holder == nil || holder.Score != 7 {
		t.Fatalf("holder disturbed by denial: %+v", holder)
	}
	if len(s.PendingTakeovers()) != 0 {
		t.Fatal("request survived denial")
	}
}

func TestReleaseConnFreesEverything(t *testing.T) {
	s := newArbSession(clockwork.NewFakeClock())
	s.ClaimTeam(alpha(), "c1", Device{})

	if changed := s.ReleaseConn("c1"); !changed {
		t.Fatal("release reported no change")
	}
	if changed := s.ReleaseConn("c1"); changed {
		t.Fatal("second release not idempotent")
	}
	// Code is claimable again.
	if res := s.ClaimTeam(alpha(), "c9", Device{}); res != ClaimJoined {
		t.Fatalf("claim after release = %v, want ClaimJoined", res)
	}
}

func TestRequesterDisconnectDropsItsRequests(t *testing.T) {
	s := newArbSession(clockwork.NewFakeClock())
	s.ClaimTeam(alpha(), "c1", Device{})
	s.ClaimTeam(alpha(), "c2", Device{})

	if changed := s.ReleaseConn("c2"); !changed {
		t.Fatal("release of requester reported no change")
	}
	if len(s.PendingTakeovers()) != 0 {
		t.Fatal("pending request outlived its requester")
	}
	if s.Teams["c1"] == nil {
		t.Fatal("holder lost its claim when the requester vanished")
	}
}

func TestOneHolderPerCode(t *testing.T) {
	s := newArbSession(clockwork.NewFakeClock())
	conns := []string{"c1", "c2", "c3", "c4"}
	joined := 0
	for _, conn := range conns {
		if s.ClaimTeam(alpha(), conn, Device{}) == ClaimJoined {
			joined++
		}
	}
	if joined != 1 {
		t.Fatalf("code joined %d times, want exactly 1", joined)
	}
	holders := 0
	for _, team := range s.Teams {
		if team.Code == "AAA1" {
			holders++
		}
	}
	if holders != 1 {
		t.Fatalf("code held by %d teams, want 1", holders)
	}
}
