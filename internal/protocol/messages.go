// Package protocol defines the JSON wire messages exchanged with host, team
// and display clients, and the two role-scoped state projections.
package protocol

import "time"

// Client -> Server message types.
const (
	MsgRegisterHost        = "registerHost"
	MsgRegisterDisplay     = "registerDisplay"
	MsgJoinTeam            = "joinTeam"
	MsgLockAnswer          = "lockAnswer"
	MsgHostStart           = "hostStart"
	MsgHostPauseToggle     = "hostPauseToggle"
	MsgHostReveal          = "hostReveal"
	MsgHostAdvance         = "hostAdvance"
	MsgHostReset           = "hostReset"
	MsgHostKick            = "hostKick"
	MsgHostApproveTakeover = "hostApproveTakeover"
	MsgHostDenyTakeover    = "hostDenyTakeover"
	MsgHostSetShuffle      = "hostSetShuffle"
	MsgHostSetManual       = "hostSetManualScoring"
	MsgHostAdjustScore     = "hostAdjustScore"
)

// Server -> Client message types.
const (
	MsgState             = "state"
	MsgHostState         = "hostState"
	MsgJoined            = "joined"
	MsgJoinError         = "joinError"
	MsgTakeoverRequested = "takeoverRequested"
	MsgTakeoverPending   = "takeoverPending"
	MsgTakeoverApproved  = "takeoverApproved"
	MsgTakeoverDenied    = "takeoverDenied"
	MsgKicked            = "kicked"
	MsgError             = "error"
)

// ClientMessage is the single inbound envelope. Fields beyond Type are
// meaningful only for the types that use them; pointer fields distinguish
// "absent" from zero values.
type ClientMessage struct {
	Type             string `json:"type"`
	Code             string `json:"code,omitempty"`
	TeamID           string `json:"team_id,omitempty"`
	ChoiceIndex      *int   `json:"choice_index,omitempty"`
	Delta            *int   `json:"delta,omitempty"`
	Enabled          *bool  `json:"enabled,omitempty"`
	ShuffleQuestions *bool  `json:"shuffle_questions,omitempty"`
	ShuffleChoices   *bool  `json:"shuffle_choices,omitempty"`
}

// ServerMessage is the single outbound envelope.
type ServerMessage struct {
	Type      string        `json:"type"`
	State     *PublicState  `json:"state,omitempty"`
	HostState *HostState    `json:"host_state,omitempty"`
	Team      *TeamView     `json:"team,omitempty"`
	Takeover  *TakeoverView `json:"takeover,omitempty"`
	Code      string        `json:"code,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// QuestionView is the display form of the current question. The correct
// index travels before reveal so clients can render the reveal locally; the
// game is a shared room, not an adversarial one.
type QuestionView struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
	TimeLimitSec int      `json:"time_limit_sec"`
	MediaURL     string   `json:"media_url,omitempty"`
}

// TeamView carries everything team and display clients need about one team.
type TeamView struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Avatar      string   `json:"avatar,omitempty"`
	Members     []string `json:"members,omitempty"`
	Score       int      `json:"score"`
	Locked      bool     `json:"locked"`
	ChoiceIndex *int     `json:"choice_index,omitempty"`
	LastOutcome string   `json:"last_outcome,omitempty"`
	LastPoints  int      `json:"last_points"`
}

// PublicState is the projection pushed to every observer.
type PublicState struct {
	Title            string        `json:"title"`
	SessionID        string        `json:"session_id"`
	Phase            string        `json:"phase"`
	QuestionIndex    int           `json:"question_index"`
	QuestionCount    int           `json:"question_count"`
	Paused           bool          `json:"paused"`
	ManualScoring    bool          `json:"manual_scoring"`
	RemainingSeconds int           `json:"remaining_seconds"`
	Question         *QuestionView `json:"question,omitempty"`
	Teams            []TeamView    `json:"teams"`
}

// DeviceView is host-only connection metadata.
type DeviceView struct {
	ConnID     string    `json:"conn_id"`
	RemoteAddr string    `json:"remote_addr"`
	UserAgent  string    `json:"user_agent"`
	JoinedAt   time.Time `json:"joined_at"`
}

// TakeoverView is one pending takeover request, host-only except when echoed
// back to its requester.
type TakeoverView struct {
	Code        string     `json:"code"`
	TeamName    string     `json:"team_name,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
	Device      DeviceView `json:"device"`
}

// TeamDeviceView pairs a team with its connection metadata.
type TeamDeviceView struct {
	Code   string     `json:"code"`
	Name   string     `json:"name"`
	Device DeviceView `json:"device"`
}

// HostState is the privileged projection pushed to the host connection only.
type HostState struct {
	Teams     []TeamDeviceView `json:"teams"`
	Takeovers []TakeoverView   `json:"takeovers"`
	Displays  int              `json:"displays"`
}
