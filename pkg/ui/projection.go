package ui

import (
	"errors"

	"chainvote/pkg/data"
)

// Surface is a top-level screen the client can show
type Surface string

const (
	SurfaceEntry   Surface = "entry"
	SurfaceAdmin   Surface = "admin"
	SurfaceVoter   Surface = "voter"
	SurfaceResults Surface = "results"
)

// Level classifies a notification
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Control names a user affordance that triggers a network call
type Control string

const (
	ControlAdminLogin      Control = "admin-login"
	ControlAdminVerify     Control = "admin-verify"
	ControlVoterLogin      Control = "voter-login"
	ControlVoterVerify     Control = "voter-verify"
	ControlAddCandidate    Control = "add-candidate"
	ControlRemoveCandidate Control = "remove-candidate"
	ControlStartElection   Control = "start-election"
	ControlStopElection    Control = "stop-election"
	ControlResetElection   Control = "reset-election"
	ControlEditTitle       Control = "edit-title"
	ControlAudit           Control = "audit"
	ControlCandidates      Control = "candidates"
	ControlBallot          Control = "ballot"
	ControlCastVote        Control = "cast-vote"
	ControlResults         Control = "results"
)

// Projection is the side-effect sink the core renders into.
// Implementations must be safe for concurrent use: the poller renders from
// its own goroutine.
type Projection interface {
	RenderElection(state data.ElectionState)
	RenderConnectionLost(err error)
	RenderCandidates(candidates []data.Candidate)
	RenderAudit(report data.AuditReport)
	RenderBallot(ballot data.Ballot)
	RenderReceipt(receipt data.Receipt)
	RenderResults(report data.ResultsReport)
	PromptChallenge(role data.Role, message string)
	Navigate(surface Surface)
	Notify(level Level, message string)
	SetBusy(control Control, busy bool)
}

// Confirmer asks the user to approve an irreversible action
type Confirmer interface {
	Confirm(prompt string) bool
}

// NotifyError reports err at the triggering action. Cancellations are silent.
func NotifyError(view Projection, err error) {
	if err == nil || errors.Is(err, data.ErrCancelled) {
		return
	}
	view.Notify(LevelError, data.UserMessage(err))
}
