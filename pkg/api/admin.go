package api

import (
	"context"
	"net/http"
	"net/url"

	"chainvote/pkg/data"
)

type adminRequest struct {
	AdminEmail  string `json:"admin_email"`
	Name        string `json:"name,omitempty"`
	Department  string `json:"department,omitempty"`
	CandidateID string `json:"candidate_id,omitempty"`
	Title       string `json:"title,omitempty"`
}

// AddCandidate registers a candidate. The server writes the manifesto
// during this call, so it runs under the slow timeout.
func (c *Client) AddCandidate(ctx context.Context, adminEmail, name, department string) (data.Candidate, error) {
	var resp struct {
		Candidate data.Candidate `json:"candidate"`
	}
	err := c.do(ctx, http.MethodPost, "/admin/candidate/add", nil, adminRequest{
		AdminEmail: adminEmail,
		Name:       name,
		Department: department,
	}, &resp, c.slowTimeout)
	return resp.Candidate, err
}

// RemoveCandidate deletes a candidate
func (c *Client) RemoveCandidate(ctx context.Context, adminEmail, candidateID string) error {
	return c.do(ctx, http.MethodDelete, "/admin/candidate/remove", nil, adminRequest{
		AdminEmail:  adminEmail,
		CandidateID: candidateID,
	}, nil, c.timeout)
}

// StartElection moves the election from waiting to live
func (c *Client) StartElection(ctx context.Context, adminEmail string) error {
	return c.post(ctx, "/admin/election/start", adminRequest{AdminEmail: adminEmail}, nil)
}

// StopElection moves the election from live to closed
func (c *Client) StopElection(ctx context.Context, adminEmail string) error {
	return c.post(ctx, "/admin/election/stop", adminRequest{AdminEmail: adminEmail}, nil)
}

// ResetElection wipes the ledger and returns the election to waiting
func (c *Client) ResetElection(ctx context.Context, adminEmail string) error {
	return c.post(ctx, "/admin/election/reset", adminRequest{AdminEmail: adminEmail}, nil)
}

// SetTitle renames the election
func (c *Client) SetTitle(ctx context.Context, adminEmail, title string) error {
	return c.post(ctx, "/admin/election/title", adminRequest{
		AdminEmail: adminEmail,
		Title:      title,
	}, nil)
}

// Candidates lists every candidate in server order
func (c *Client) Candidates(ctx context.Context, adminEmail string) ([]data.Candidate, error) {
	var resp struct {
		Candidates []data.Candidate `json:"candidates"`
	}
	if err := c.get(ctx, "/admin/candidates", url.Values{"admin_email": {adminEmail}}, &resp); err != nil {
		return nil, err
	}
	return resp.Candidates, nil
}

// Audit fetches the narrative audit and results breakdown
func (c *Client) Audit(ctx context.Context, adminEmail string) (data.AuditReport, error) {
	var resp data.AuditReport
	if err := c.get(ctx, "/admin/audit", url.Values{"admin_email": {adminEmail}}, &resp); err != nil {
		return data.AuditReport{}, err
	}
	return resp, nil
}
