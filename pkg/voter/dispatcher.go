package voter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"chainvote/pkg/data"
	"chainvote/pkg/security"
	"chainvote/pkg/session"
	"chainvote/pkg/ui"
)

// PromptCastVote is asked before a vote is submitted
const PromptCastVote = "Cast your vote for %s? This cannot be changed."

// API is the voter half of the remote election API
type API interface {
	Ballot(ctx context.Context, email string) (data.Ballot, error)
	CastVote(ctx context.Context, email, candidateID string) (data.Receipt, error)
	HasVoted(ctx context.Context, email string) (bool, error)
	Results(ctx context.Context) (data.ResultsReport, error)
}

// Dispatcher runs the voter surface commands
type Dispatcher struct {
	api      API
	store    *session.Store
	view     ui.Projection
	confirm  ui.Confirmer
	controls *ui.Controls
	logger   *zap.Logger

	mu     sync.Mutex
	ballot *data.Ballot
}

// NewDispatcher creates a voter dispatcher. Unlike the admin dispatcher it
// can exist before sign-in, since results are public.
func NewDispatcher(api API, store *session.Store, view ui.Projection, confirm ui.Confirmer, controls *ui.Controls, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		api:      api,
		store:    store,
		view:     view,
		confirm:  confirm,
		controls: controls,
		logger:   logger.Named("voter"),
	}
}

// Ballot fetches the candidates of the voter's department
func (d *Dispatcher) Ballot(ctx context.Context) (data.Ballot, error) {
	var ballot data.Ballot
	err := d.run("load ballot", ui.ControlBallot, func(id data.Identity) error {
		b, err := d.api.Ballot(ctx, id.Email)
		if err != nil {
			return err
		}
		ballot = b
		return nil
	})
	if err != nil {
		return data.Ballot{}, err
	}

	d.mu.Lock()
	d.ballot = &ballot
	d.mu.Unlock()
	d.view.RenderBallot(ballot)
	return ballot, nil
}

// CastVote submits a vote after one confirmation. The server consumes the
// voter session, so the local identity is cleared and results are shown.
func (d *Dispatcher) CastVote(ctx context.Context, candidateID string) (data.Receipt, error) {
	candidateID = strings.TrimSpace(candidateID)

	var receipt data.Receipt
	err := d.run("cast vote", ui.ControlCastVote, func(id data.Identity) error {
		if candidateID == "" {
			return &data.ValidationError{Field: "candidate_id", Message: security.MsgMissingFields}
		}
		if !d.confirm.Confirm(fmt.Sprintf(PromptCastVote, d.candidateName(candidateID))) {
			return data.ErrCancelled
		}

		r, err := d.api.CastVote(ctx, id.Email, candidateID)
		if err != nil {
			return err
		}
		receipt = r

		d.logger.Info("Vote cast",
			zap.String("email", security.Fingerprint(id.Email)),
			zap.String("department", id.Department),
			zap.Int("blockIndex", r.BlockIndex))

		if err := d.store.Logout(data.RoleVoter); err != nil {
			d.logger.Error("Failed to clear voter session", zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return data.Receipt{}, err
	}

	d.mu.Lock()
	d.ballot = nil
	d.mu.Unlock()
	d.view.RenderReceipt(receipt)
	d.view.Notify(ui.LevelSuccess, "Your vote has been recorded on the blockchain")
	d.view.Navigate(ui.SurfaceResults)
	return receipt, nil
}

// Status reports whether the signed-in voter has already voted
func (d *Dispatcher) Status(ctx context.Context) (bool, error) {
	var voted bool
	err := d.run("check status", ui.ControlBallot, func(id data.Identity) error {
		v, err := d.api.HasVoted(ctx, id.Email)
		if err != nil {
			return err
		}
		voted = v
		return nil
	})
	if err != nil {
		return false, err
	}

	if voted {
		d.view.Notify(ui.LevelInfo, "You have already voted in this election")
	} else {
		d.view.Notify(ui.LevelInfo, "You have not voted yet")
	}
	return voted, nil
}

// Results fetches the public results. No sign-in is needed.
func (d *Dispatcher) Results(ctx context.Context) (data.ResultsReport, error) {
	var report data.ResultsReport
	err := d.controls.Run(ui.ControlResults, func() error {
		r, err := d.api.Results(ctx)
		if err != nil {
			return err
		}
		report = r
		return nil
	})
	if err != nil {
		d.logger.Warn("Results fetch failed", zap.Error(err))
		ui.NotifyError(d.view, err)
		return data.ResultsReport{}, err
	}

	if !report.ChainValid {
		d.logger.Warn("Results served from a ledger that failed its integrity check")
	}
	d.view.RenderResults(report)
	return report, nil
}

func (d *Dispatcher) candidateName(candidateID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ballot != nil {
		for _, c := range d.ballot.Candidates {
			if c.ID == candidateID {
				return c.Name
			}
		}
	}
	return "candidate " + candidateID
}

func (d *Dispatcher) run(action string, ctrl ui.Control, fn func(id data.Identity) error) error {
	err := d.controls.Run(ctrl, func() error {
		id, ok := d.store.Get(data.RoleVoter)
		if !ok {
			return data.ErrNotAuthenticated
		}
		return fn(id)
	})
	if err != nil {
		if !errors.Is(err, data.ErrCancelled) {
			d.logger.Warn("Voter action failed", zap.String("action", action), zap.Error(err))
		}
		ui.NotifyError(d.view, err)
	}
	return err
}
