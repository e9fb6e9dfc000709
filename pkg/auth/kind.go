package auth

import (
	"context"
	"strings"

	"chainvote/pkg/config"
	"chainvote/pkg/data"
	"chainvote/pkg/security"
	"chainvote/pkg/ui"
)

// MsgUnknownElectionType is shown when the admin picks a type that is not offered
const MsgUnknownElectionType = "Please select a valid election type"

// API is the part of the remote election API the login flow uses
type API interface {
	AdminLogin(ctx context.Context, email, title string) (string, error)
	AdminVerify(ctx context.Context, email, otp string) error
	VoterLogin(ctx context.Context, email, department string) (string, error)
	VoterVerify(ctx context.Context, email, otp string) (string, error)
}

// Claim is what the user typed on a login form
type Claim struct {
	Email string
	// Department is required for voters
	Department string
	// ElectionType is an admin preset title, or config.CustomTitle
	ElectionType string
	CustomTitle  string
}

// Kind is one role's half of the login flow
type Kind interface {
	Role() data.Role
	// Validate normalizes the claim and rejects it without a network call
	Validate(claim Claim) (Claim, error)
	// SubmitIdentity asks the server to send an OTP and returns its instruction
	SubmitIdentity(ctx context.Context, claim Claim) (string, error)
	// VerifyCode submits code for the pending identity
	VerifyCode(ctx context.Context, pending data.PendingVerification, code string) (data.Identity, error)
	Surface() ui.Surface
	RequestControl() ui.Control
	VerifyControl() ui.Control
}

type adminKind struct {
	api   API
	types []string
}

func (adminKind) Role() data.Role { return data.RoleAdmin }
func (adminKind) Surface() ui.Surface { return ui.SurfaceAdmin }
func (adminKind) RequestControl() ui.Control { return ui.ControlAdminLogin }
func (adminKind) VerifyControl() ui.Control { return ui.ControlAdminVerify }

// Validate resolves the election title. The resolved title is carried in
// CustomTitle so SubmitIdentity needs no further branching.
func (k adminKind) Validate(claim Claim) (Claim, error) {
	claim.Email = security.NormalizeEmail(claim.Email)
	claim.ElectionType = strings.TrimSpace(claim.ElectionType)
	claim.CustomTitle = strings.TrimSpace(claim.CustomTitle)

	if claim.Email == "" || claim.ElectionType == "" {
		return Claim{}, &data.ValidationError{Field: "email", Message: security.MsgMissingFields}
	}

	if strings.EqualFold(claim.ElectionType, config.CustomTitle) {
		if claim.CustomTitle == "" {
			return Claim{}, &data.ValidationError{Field: "title", Message: security.MsgMissingFields}
		}
		claim.ElectionType = config.CustomTitle
		return claim, nil
	}

	if !k.offers(claim.ElectionType) {
		return Claim{}, &data.ValidationError{Field: "title", Message: MsgUnknownElectionType}
	}
	claim.CustomTitle = claim.ElectionType
	return claim, nil
}

func (k adminKind) offers(electionType string) bool {
	if len(k.types) == 0 {
		return true
	}
	for _, t := range k.types {
		if t == electionType {
			return true
		}
	}
	return false
}

func (k adminKind) SubmitIdentity(ctx context.Context, claim Claim) (string, error) {
	return k.api.AdminLogin(ctx, claim.Email, claim.CustomTitle)
}

func (k adminKind) VerifyCode(ctx context.Context, pending data.PendingVerification, code string) (data.Identity, error) {
	if err := k.api.AdminVerify(ctx, pending.Email, code); err != nil {
		return data.Identity{}, err
	}
	return data.Identity{Email: pending.Email, Role: data.RoleAdmin}, nil
}

type voterKind struct {
	api API
	cfg *config.Config
}

func (voterKind) Role() data.Role { return data.RoleVoter }
func (voterKind) Surface() ui.Surface { return ui.SurfaceVoter }
func (voterKind) RequestControl() ui.Control { return ui.ControlVoterLogin }
func (voterKind) VerifyControl() ui.Control { return ui.ControlVoterVerify }

func (k voterKind) Validate(claim Claim) (Claim, error) {
	claim.Email = security.NormalizeEmail(claim.Email)
	claim.Department = strings.ToUpper(strings.TrimSpace(claim.Department))

	if err := security.RequireFields(map[string]string{
		"email":      claim.Email,
		"department": claim.Department,
	}, "email", "department"); err != nil {
		return Claim{}, err
	}
	if err := security.ValidateVoterEmail(claim.Email); err != nil {
		return Claim{}, err
	}
	if !k.cfg.HasDepartment(claim.Department) {
		return Claim{}, &data.ValidationError{Field: "department", Message: security.MsgUnknownDepartment}
	}
	return claim, nil
}

func (k voterKind) SubmitIdentity(ctx context.Context, claim Claim) (string, error) {
	return k.api.VoterLogin(ctx, claim.Email, claim.Department)
}

// VerifyCode prefers the department the server bound to the session
func (k voterKind) VerifyCode(ctx context.Context, pending data.PendingVerification, code string) (data.Identity, error) {
	department, err := k.api.VoterVerify(ctx, pending.Email, code)
	if err != nil {
		return data.Identity{}, err
	}
	if department == "" {
		department = pending.Department
	}
	return data.Identity{Email: pending.Email, Role: data.RoleVoter, Department: department}, nil
}
