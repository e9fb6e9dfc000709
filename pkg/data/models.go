package data

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Role identifies which actor an identity or pending verification belongs to
type Role string

const (
	RoleAdmin Role = "admin"
	RoleVoter Role = "voter"
)

// Roles lists every role the client knows about
var Roles = []Role{RoleAdmin, RoleVoter}

// ParseRole converts user input into a Role
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleVoter:
		return RoleVoter, nil
	}
	return "", &ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", s)}
}

func (r Role) String() string {
	return string(r)
}

// Identity is an established, OTP-verified actor
type Identity struct {
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	Department string `json:"department,omitempty"`
}

// PendingVerification bridges an accepted login request and the OTP step
type PendingVerification struct {
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	Department string    `json:"department,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Identity converts the pending record into the identity it will become
func (p PendingVerification) Identity() Identity {
	return Identity{Email: p.Email, Role: p.Role, Department: p.Department}
}

// Phase is the election lifecycle stage
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseLive
	PhaseClosed
)

var phaseNames = map[Phase]string{
	PhaseWaiting: "waiting",
	PhaseLive:    "live",
	PhaseClosed:  "closed",
}

// ParsePhase maps the server's state string onto a Phase
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown election phase %q", s)
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// CanTransition reports whether moving from p to next is a lifecycle edge.
// Reset back to Waiting is allowed from any phase.
func (p Phase) CanTransition(next Phase) bool {
	if next == PhaseWaiting {
		return true
	}
	return next == p+1
}

// ElectionState is one server snapshot of the election
type ElectionState struct {
	Phase       Phase     `json:"phase"`
	Title       string    `json:"title"`
	TotalVotes  int       `json:"total_votes"`
	ChainLength int       `json:"chain_length"`
	ChainValid  bool      `json:"chain_valid"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Candidate is a registered candidate as returned by the server
type Candidate struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Manifesto  string `json:"manifesto"`
}

// Winner is the leading candidate of a department
type Winner struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Votes int    `json:"votes"`
}

// Tally is a single candidate's vote count inside a department breakdown
type Tally struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Votes int    `json:"votes"`
}

// DepartmentResult is the outcome for one department.
// Winner is nil when no votes were cast or the election has not concluded.
type DepartmentResult struct {
	Winner     *Winner `json:"winner"`
	TotalVotes int     `json:"total_votes"`
	Margin     int     `json:"margin"`
	Breakdown  []Tally `json:"full_breakdown,omitempty"`
}

// AuditReport is the on-demand admin audit
type AuditReport struct {
	Narrative string                      `json:"audit"`
	Results   map[string]DepartmentResult `json:"results"`
}

// Departments returns the result keys in a stable order for rendering
func (a AuditReport) Departments() []string {
	return sortedKeys(a.Results)
}

// ResultsReport is the public results view
type ResultsReport struct {
	Title      string                      `json:"title"`
	ChainValid bool                        `json:"chain_valid"`
	Results    map[string]DepartmentResult `json:"results"`
}

// Departments returns the result keys in a stable order for rendering
func (r ResultsReport) Departments() []string {
	return sortedKeys(r.Results)
}

// Ballot is the candidate list a voter may choose from
type Ballot struct {
	Department string      `json:"department"`
	Candidates []Candidate `json:"candidates"`
}

// Receipt is the server's confirmation of a cast vote
type Receipt struct {
	TransactionHash string    `json:"transaction_hash"`
	BlockIndex      int       `json:"block_index"`
	Candidate       Candidate `json:"candidate"`
}

func sortedKeys(m map[string]DepartmentResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
