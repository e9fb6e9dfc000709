package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"chainvote/pkg/data"
	"chainvote/pkg/security"
)

const noVotesPlaceholder = "No votes"

// Terminal renders the projection as plain text lines
type Terminal struct {
	mu      sync.Mutex
	out     io.Writer
	surface Surface
	shown   *data.ElectionState
	offline bool
}

// NewTerminal creates a renderer writing to out
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{
		out:     out,
		surface: SurfaceEntry,
	}
}

// Surface returns the surface most recently navigated to
func (t *Terminal) Surface() Surface {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.surface
}

// RenderElection prints the status line. A snapshot identical to the one
// already on screen is not repeated.
func (t *Terminal) RenderElection(state data.ElectionState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.offline && t.shown != nil && sameSnapshot(*t.shown, state) {
		return
	}
	t.offline = false
	t.shown = &state

	chain := "VERIFIED"
	if !state.ChainValid {
		chain = "!! INTEGRITY CHECK FAILED: LEDGER MAY BE TAMPERED !!"
	}
	fmt.Fprintf(t.out, "[%s] %s | votes %d | blocks %d | chain %s\n",
		strings.ToUpper(state.Phase.String()),
		security.Sanitize(state.Title),
		state.TotalVotes,
		state.ChainLength,
		chain)
}

func sameSnapshot(a, b data.ElectionState) bool {
	a.FetchedAt = b.FetchedAt
	return a == b
}

// RenderConnectionLost prints the connection error once per outage
func (t *Terminal) RenderConnectionLost(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.offline {
		return
	}
	t.offline = true
	fmt.Fprintf(t.out, "[CONNECTION ERROR] %s\n", data.UserMessage(err))
}

func (t *Terminal) RenderCandidates(candidates []data.Candidate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(candidates) == 0 {
		fmt.Fprintln(t.out, "No candidates registered.")
		return
	}
	w := tabwriter.NewWriter(t.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDEPARTMENT")
	for _, c := range candidates {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, security.Sanitize(c.Name), c.Department)
	}
	w.Flush()
}

func (t *Terminal) RenderAudit(report data.AuditReport) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(t.out, "== Audit ==")
	fmt.Fprintln(t.out, security.Sanitize(report.Narrative))
	fmt.Fprintln(t.out, "== Results breakdown ==")
	for _, dept := range report.Departments() {
		t.writeDepartment(dept, report.Results[dept], true)
	}
}

func (t *Terminal) RenderBallot(ballot data.Ballot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "== Ballot: %s ==\n", ballot.Department)
	if len(ballot.Candidates) == 0 {
		fmt.Fprintln(t.out, "No candidates in your department.")
		return
	}
	for _, c := range ballot.Candidates {
		fmt.Fprintf(t.out, "  [%s] %s\n", c.ID, security.Sanitize(c.Name))
		if c.Manifesto != "" {
			fmt.Fprintf(t.out, "      %s\n", security.Sanitize(c.Manifesto))
		}
	}
}

func (t *Terminal) RenderReceipt(receipt data.Receipt) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "Vote recorded for %s in block #%d\n", security.Sanitize(receipt.Candidate.Name), receipt.BlockIndex)
	fmt.Fprintf(t.out, "Transaction: %s\n", receipt.TransactionHash)
}

func (t *Terminal) RenderResults(report data.ResultsReport) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "== Results: %s ==\n", security.Sanitize(report.Title))
	if !report.ChainValid {
		fmt.Fprintln(t.out, "!! INTEGRITY CHECK FAILED: RESULTS CANNOT BE TRUSTED !!")
	}
	for _, dept := range report.Departments() {
		t.writeDepartment(dept, report.Results[dept], false)
	}
}

func (t *Terminal) writeDepartment(dept string, result data.DepartmentResult, withMargin bool) {
	name, votes := noVotesPlaceholder, 0
	if result.Winner != nil {
		name, votes = security.Sanitize(result.Winner.Name), result.Winner.Votes
	}
	fmt.Fprintf(t.out, "%s\n  Winner: %s\n  Votes: %d / %d\n", dept, name, votes, result.TotalVotes)
	if withMargin {
		fmt.Fprintf(t.out, "  Margin: %d\n", result.Margin)
	}
}

func (t *Terminal) PromptChallenge(role data.Role, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(t.out, security.Sanitize(message))
	fmt.Fprintf(t.out, "Enter the 6-digit code with: otp %s <code>\n", role)
}

func (t *Terminal) Navigate(surface Surface) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.surface = surface
	fmt.Fprintf(t.out, "-> %s\n", surface)
}

func (t *Terminal) Notify(level Level, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "[%s] %s\n", level, security.Sanitize(message))
}

// SetBusy only announces the start of a call; the result notification
// marks its end.
func (t *Terminal) SetBusy(control Control, busy bool) {
	if !busy {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "... %s\n", control)
}
