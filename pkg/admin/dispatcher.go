package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"chainvote/pkg/data"
	"chainvote/pkg/security"
	"chainvote/pkg/session"
	"chainvote/pkg/ui"
)

// Confirmation prompts
const (
	PromptRemoveCandidate = "Remove this candidate?"
	PromptStartElection   = "Start the election? Voters will be able to cast votes."
	PromptStopElection    = "Stop the election and calculate results?"
	PromptResetElection   = "WARNING: This will wipe the entire blockchain and all data. Continue?"
	PromptResetConfirm    = "This action cannot be undone. Are you absolutely sure?"
)

// API is the admin half of the remote election API
type API interface {
	AddCandidate(ctx context.Context, adminEmail, name, department string) (data.Candidate, error)
	RemoveCandidate(ctx context.Context, adminEmail, candidateID string) error
	StartElection(ctx context.Context, adminEmail string) error
	StopElection(ctx context.Context, adminEmail string) error
	ResetElection(ctx context.Context, adminEmail string) error
	SetTitle(ctx context.Context, adminEmail, title string) error
	Candidates(ctx context.Context, adminEmail string) ([]data.Candidate, error)
	Audit(ctx context.Context, adminEmail string) (data.AuditReport, error)
}

// StateRefresher re-fetches and renders the election state
type StateRefresher interface {
	Refresh(ctx context.Context) (data.ElectionState, error)
}

// Dispatcher runs admin commands on behalf of the signed-in admin.
// Authorization is the server's job; the dispatcher only attaches the
// admin email to every request.
type Dispatcher struct {
	api      API
	store    *session.Store
	state    StateRefresher
	view     ui.Projection
	confirm  ui.Confirmer
	controls *ui.Controls
	logger   *zap.Logger
}

// NewDispatcher returns data.ErrNotAuthenticated unless store holds an
// admin identity
func NewDispatcher(api API, store *session.Store, state StateRefresher, view ui.Projection, confirm ui.Confirmer, controls *ui.Controls, logger *zap.Logger) (*Dispatcher, error) {
	if _, ok := store.Get(data.RoleAdmin); !ok {
		return nil, data.ErrNotAuthenticated
	}
	return &Dispatcher{
		api:      api,
		store:    store,
		state:    state,
		view:     view,
		confirm:  confirm,
		controls: controls,
		logger:   logger.Named("admin"),
	}, nil
}

// AddCandidate registers a candidate. The call covers server-side
// manifesto generation and can take a long time.
func (d *Dispatcher) AddCandidate(ctx context.Context, name, department string) (data.Candidate, error) {
	name = strings.TrimSpace(name)
	department = strings.ToUpper(strings.TrimSpace(department))

	var added data.Candidate
	err := d.run("add candidate", ui.ControlAddCandidate, func(email string) error {
		if err := security.RequireFields(map[string]string{
			"name":       name,
			"department": department,
		}, "name", "department"); err != nil {
			return err
		}

		candidate, err := d.api.AddCandidate(ctx, email, name, department)
		if err != nil {
			return err
		}
		added = candidate
		d.logger.Info("Candidate added",
			zap.String("candidateID", candidate.ID),
			zap.String("department", department))
		d.view.Notify(ui.LevelSuccess, fmt.Sprintf("Candidate registered: %s", name))
		return nil
	})
	if err != nil {
		return data.Candidate{}, err
	}

	d.refreshCandidates(ctx)
	return added, nil
}

// RemoveCandidate deletes a candidate after one confirmation
func (d *Dispatcher) RemoveCandidate(ctx context.Context, candidateID string) error {
	candidateID = strings.TrimSpace(candidateID)
	err := d.run("remove candidate", ui.ControlRemoveCandidate, func(email string) error {
		if candidateID == "" {
			return &data.ValidationError{Field: "candidate_id", Message: security.MsgMissingFields}
		}
		if !d.confirm.Confirm(PromptRemoveCandidate) {
			return data.ErrCancelled
		}
		if err := d.api.RemoveCandidate(ctx, email, candidateID); err != nil {
			return err
		}
		d.logger.Info("Candidate removed", zap.String("candidateID", candidateID))
		return nil
	})
	if err != nil {
		return err
	}

	d.refreshCandidates(ctx)
	return nil
}

// StartElection opens voting after one confirmation
func (d *Dispatcher) StartElection(ctx context.Context) error {
	return d.lifecycle(ctx, "start election", ui.ControlStartElection, d.api.StartElection, PromptStartElection)
}

// StopElection closes voting after one confirmation
func (d *Dispatcher) StopElection(ctx context.Context) error {
	return d.lifecycle(ctx, "stop election", ui.ControlStopElection, d.api.StopElection, PromptStopElection)
}

// ResetElection wipes the ledger. Both confirmations must be accepted.
func (d *Dispatcher) ResetElection(ctx context.Context) error {
	err := d.lifecycle(ctx, "reset election", ui.ControlResetElection, d.api.ResetElection, PromptResetElection, PromptResetConfirm)
	if err != nil {
		return err
	}
	d.refreshCandidates(ctx)
	return nil
}

// EditTitle renames the election
func (d *Dispatcher) EditTitle(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	err := d.run("edit title", ui.ControlEditTitle, func(email string) error {
		if title == "" {
			return &data.ValidationError{Field: "title", Message: security.MsgMissingFields}
		}
		if err := d.api.SetTitle(ctx, email, title); err != nil {
			return err
		}
		d.logger.Info("Election title updated", zap.String("title", title))
		d.view.Notify(ui.LevelSuccess, "Title Updated")
		return nil
	})
	if err != nil {
		return err
	}

	d.refreshState(ctx)
	return nil
}

// RefreshCandidates fetches and renders the candidate list
func (d *Dispatcher) RefreshCandidates(ctx context.Context) ([]data.Candidate, error) {
	var candidates []data.Candidate
	err := d.run("list candidates", ui.ControlCandidates, func(email string) error {
		list, err := d.api.Candidates(ctx, email)
		if err != nil {
			return err
		}
		candidates = list
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.view.RenderCandidates(candidates)
	return candidates, nil
}

// FetchAudit loads the audit report. It is fetched fresh on every call.
func (d *Dispatcher) FetchAudit(ctx context.Context) (data.AuditReport, error) {
	var report data.AuditReport
	err := d.run("fetch audit", ui.ControlAudit, func(email string) error {
		r, err := d.api.Audit(ctx, email)
		if err != nil {
			return err
		}
		report = r
		return nil
	})
	if err != nil {
		return data.AuditReport{}, err
	}

	d.view.RenderAudit(report)
	return report, nil
}

func (d *Dispatcher) lifecycle(ctx context.Context, action string, ctrl ui.Control, call func(context.Context, string) error, prompts ...string) error {
	err := d.run(action, ctrl, func(email string) error {
		for _, prompt := range prompts {
			if !d.confirm.Confirm(prompt) {
				return data.ErrCancelled
			}
		}
		if err := call(ctx, email); err != nil {
			return err
		}
		d.logger.Info("Election lifecycle action accepted", zap.String("action", action))
		return nil
	})
	if err != nil {
		return err
	}

	d.refreshState(ctx)
	return nil
}

// run executes fn under the control latch with the current admin email.
// Every failure is reported to the user here.
func (d *Dispatcher) run(action string, ctrl ui.Control, fn func(email string) error) error {
	err := d.controls.Run(ctrl, func() error {
		admin, ok := d.store.Get(data.RoleAdmin)
		if !ok {
			return data.ErrNotAuthenticated
		}
		return fn(admin.Email)
	})
	if err != nil {
		if !errors.Is(err, data.ErrCancelled) {
			d.logger.Warn("Admin action failed", zap.String("action", action), zap.Error(err))
		}
		ui.NotifyError(d.view, err)
	}
	return err
}

func (d *Dispatcher) refreshState(ctx context.Context) {
	if _, err := d.state.Refresh(ctx); err != nil {
		d.logger.Debug("State refresh failed", zap.Error(err))
	}
}

func (d *Dispatcher) refreshCandidates(ctx context.Context) {
	_, _ = d.RefreshCandidates(ctx)
}
