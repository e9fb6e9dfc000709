// Package uitest provides a recording Projection for tests
package uitest

import (
	"sync"

	"chainvote/pkg/data"
	"chainvote/pkg/ui"
)

// Notice is one recorded notification
type Notice struct {
	Level   ui.Level
	Message string
}

// Prompt is one recorded OTP prompt
type Prompt struct {
	Role    data.Role
	Message string
}

// BusyChange is one recorded SetBusy call
type BusyChange struct {
	Control ui.Control
	Busy    bool
}

// Recorder captures every projection call and answers confirmations from
// a scripted queue. An exhausted queue declines.
type Recorder struct {
	mu sync.Mutex

	elections      []data.ElectionState
	connectionLost []error
	candidates     [][]data.Candidate
	audits         []data.AuditReport
	ballots        []data.Ballot
	receipts       []data.Receipt
	results        []data.ResultsReport
	prompts        []Prompt
	surfaces       []ui.Surface
	notices        []Notice
	busy           []BusyChange

	offline       bool
	answers       []bool
	confirmations []string
}

// New creates an empty recorder
func New() *Recorder {
	return &Recorder{}
}

// Answer queues confirmation answers in order
func (r *Recorder) Answer(answers ...bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, answers...)
}

func (r *Recorder) Confirm(prompt string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.confirmations = append(r.confirmations, prompt)
	if len(r.answers) == 0 {
		return false
	}
	answer := r.answers[0]
	r.answers = r.answers[1:]
	return answer
}

func (r *Recorder) RenderElection(state data.ElectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elections = append(r.elections, state)
	r.offline = false
}

func (r *Recorder) RenderConnectionLost(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectionLost = append(r.connectionLost, err)
	r.offline = true
}

func (r *Recorder) RenderCandidates(candidates []data.Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates = append(r.candidates, append([]data.Candidate(nil), candidates...))
}

func (r *Recorder) RenderAudit(report data.AuditReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, report)
}

func (r *Recorder) RenderBallot(ballot data.Ballot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ballots = append(r.ballots, ballot)
}

func (r *Recorder) RenderReceipt(receipt data.Receipt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts = append(r.receipts, receipt)
}

func (r *Recorder) RenderResults(report data.ResultsReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, report)
}

func (r *Recorder) PromptChallenge(role data.Role, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, Prompt{Role: role, Message: message})
}

func (r *Recorder) Navigate(surface ui.Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surfaces = append(r.surfaces, surface)
}

func (r *Recorder) Notify(level ui.Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Level: level, Message: message})
}

func (r *Recorder) SetBusy(control ui.Control, busy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy = append(r.busy, BusyChange{Control: control, Busy: busy})
}

// Elections returns every rendered election snapshot
func (r *Recorder) Elections() []data.ElectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]data.ElectionState(nil), r.elections...)
}

// LastElection returns the most recent snapshot, if any
func (r *Recorder) LastElection() (data.ElectionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.elections) == 0 {
		return data.ElectionState{}, false
	}
	return r.elections[len(r.elections)-1], true
}

// ConnectionLosses returns how many times the connection error was shown
func (r *Recorder) ConnectionLosses() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connectionLost)
}

// Offline reports whether the connection error is the current display state
func (r *Recorder) Offline() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offline
}

func (r *Recorder) CandidateLists() [][]data.Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]data.Candidate(nil), r.candidates...)
}

func (r *Recorder) Audits() []data.AuditReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]data.AuditReport(nil), r.audits...)
}

func (r *Recorder) Ballots() []data.Ballot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]data.Ballot(nil), r.ballots...)
}

func (r *Recorder) Receipts() []data.Receipt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]data.Receipt(nil), r.receipts...)
}

func (r *Recorder) Results() []data.ResultsReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]data.ResultsReport(nil), r.results...)
}

func (r *Recorder) Prompts() []Prompt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Prompt(nil), r.prompts...)
}

func (r *Recorder) Surfaces() []ui.Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ui.Surface(nil), r.surfaces...)
}

// LastSurface returns the current surface, or "" if never navigated
func (r *Recorder) LastSurface() ui.Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.surfaces) == 0 {
		return ""
	}
	return r.surfaces[len(r.surfaces)-1]
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// LastNotice returns the most recent notification, or a zero Notice
func (r *Recorder) LastNotice() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}
	}
	return r.notices[len(r.notices)-1]
}

func (r *Recorder) BusyChanges() []BusyChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]BusyChange(nil), r.busy...)
}

// Confirmations returns every confirmation prompt shown
func (r *Recorder) Confirmations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.confirmations...)
}
