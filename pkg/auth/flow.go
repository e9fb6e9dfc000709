package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"chainvote/pkg/config"
	"chainvote/pkg/data"
	"chainvote/pkg/security"
	"chainvote/pkg/session"
	"chainvote/pkg/ui"
)

const defaultChallengeMessage = "OTP sent to your email"

// Ticket confirms that the server dispatched an OTP
type Ticket struct {
	Role     data.Role
	Email    string
	Message  string
	IssuedAt time.Time
}

// Flow runs the two-step OTP login for both roles
type Flow struct {
	kinds    map[data.Role]Kind
	store    *session.Store
	view     ui.Projection
	controls *ui.Controls
	logger   *zap.Logger
}

// NewFlow creates a login flow backed by api and store
func NewFlow(api API, store *session.Store, cfg *config.Config, view ui.Projection, controls *ui.Controls, logger *zap.Logger) *Flow {
	return &Flow{
		kinds: map[data.Role]Kind{
			data.RoleAdmin: adminKind{api: api, types: cfg.Election.ElectionTypes},
			data.RoleVoter: voterKind{api: api, cfg: cfg},
		},
		store:    store,
		view:     view,
		controls: controls,
		logger:   logger.Named("auth"),
	}
}

// RequestChallenge validates claim and asks the server to send an OTP.
// On success the pending verification is replaced and the OTP prompt shown.
func (f *Flow) RequestChallenge(ctx context.Context, role data.Role, claim Claim) (Ticket, error) {
	ticket, err := f.requestChallenge(ctx, role, claim)
	if err != nil {
		ui.NotifyError(f.view, err)
		return Ticket{}, err
	}
	return ticket, nil
}

func (f *Flow) requestChallenge(ctx context.Context, role data.Role, claim Claim) (Ticket, error) {
	kind, err := f.kind(role)
	if err != nil {
		return Ticket{}, err
	}

	claim, err = kind.Validate(claim)
	if err != nil {
		return Ticket{}, err
	}

	var ticket Ticket
	err = f.controls.Run(kind.RequestControl(), func() error {
		message, err := kind.SubmitIdentity(ctx, claim)
		if err != nil {
			f.logger.Warn("Challenge request failed",
				zap.Stringer("role", role),
				zap.String("email", security.Fingerprint(claim.Email)),
				zap.Error(err))
			return err
		}

		pending := data.PendingVerification{
			Email:      claim.Email,
			Role:       role,
			Department: claim.Department,
			IssuedAt:   time.Now().UTC(),
		}
		if prev, ok := f.store.GetPending(); ok {
			f.logger.Debug("Replacing pending verification",
				zap.Stringer("previousRole", prev.Role),
				zap.String("previousEmail", security.Fingerprint(prev.Email)))
		}
		if err := f.store.SetPending(pending); err != nil {
			return fmt.Errorf("storing pending verification: %w", err)
		}

		if strings.TrimSpace(message) == "" {
			message = defaultChallengeMessage
		}
		ticket = Ticket{Role: role, Email: claim.Email, Message: message, IssuedAt: pending.IssuedAt}
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}

	f.logger.Info("OTP challenge issued",
		zap.Stringer("role", role),
		zap.String("email", security.Fingerprint(ticket.Email)))
	f.view.PromptChallenge(role, ticket.Message)
	return ticket, nil
}

// VerifyChallenge submits code for the pending verification of role.
// A failed attempt leaves the pending record in place for a retry.
func (f *Flow) VerifyChallenge(ctx context.Context, role data.Role, code string) (data.Identity, error) {
	id, err := f.verifyChallenge(ctx, role, code)
	if err != nil {
		ui.NotifyError(f.view, err)
		return data.Identity{}, err
	}
	return id, nil
}

func (f *Flow) verifyChallenge(ctx context.Context, role data.Role, code string) (data.Identity, error) {
	kind, err := f.kind(role)
	if err != nil {
		return data.Identity{}, err
	}

	pending, ok := f.store.GetPending()
	if !ok || pending.Role != role {
		f.logger.Warn("Verification without pending challenge", zap.Stringer("role", role))
		return data.Identity{}, data.ErrInvalidState
	}

	code = strings.TrimSpace(code)
	if err := security.ValidateOTP(code); err != nil {
		return data.Identity{}, err
	}

	var id data.Identity
	err = f.controls.Run(kind.VerifyControl(), func() error {
		verified, err := kind.VerifyCode(ctx, pending, code)
		if err != nil {
			f.logger.Warn("OTP verification failed",
				zap.Stringer("role", role),
				zap.String("email", security.Fingerprint(pending.Email)),
				zap.Error(err))
			return err
		}

		if err := f.store.Establish(role, verified); err != nil {
			return fmt.Errorf("storing identity: %w", err)
		}
		id = verified
		return nil
	})
	if err != nil {
		return data.Identity{}, err
	}

	f.logger.Info("Identity verified",
		zap.Stringer("role", role),
		zap.String("email", security.Fingerprint(id.Email)),
		zap.String("department", id.Department))
	f.view.Notify(ui.LevelSuccess, fmt.Sprintf("Signed in as %s", id.Email))
	f.view.Navigate(kind.Surface())
	return id, nil
}

// Abandon discards the pending verification, as when the user leaves the
// OTP step
func (f *Flow) Abandon() error {
	if _, ok := f.store.GetPending(); !ok {
		return nil
	}
	if err := f.store.ClearPending(); err != nil {
		return fmt.Errorf("clearing pending verification: %w", err)
	}
	f.logger.Debug("Pending verification abandoned")
	return nil
}

// Pending returns the role awaiting an OTP, if any
func (f *Flow) Pending() (data.Role, bool) {
	pending, ok := f.store.GetPending()
	return pending.Role, ok
}

func (f *Flow) kind(role data.Role) (Kind, error) {
	kind, ok := f.kinds[role]
	if !ok {
		return nil, &data.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}
	}
	return kind, nil
}
