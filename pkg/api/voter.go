package api

import (
	"context"
	"net/url"

	"chainvote/pkg/data"
)

// Ballot lists the candidates of the voter's own department
func (c *Client) Ballot(ctx context.Context, email string) (data.Ballot, error) {
	var resp data.Ballot
	if err := c.get(ctx, "/voter/candidates", url.Values{"email": {email}}, &resp); err != nil {
		return data.Ballot{}, err
	}
	return resp, nil
}

// CastVote records a vote on the ledger
func (c *Client) CastVote(ctx context.Context, email, candidateID string) (data.Receipt, error) {
	var resp data.Receipt
	err := c.post(ctx, "/voter/vote", map[string]string{
		"email":        email,
		"candidate_id": candidateID,
	}, &resp)
	return resp, err
}

// HasVoted reports whether the server has already recorded a vote for email
func (c *Client) HasVoted(ctx context.Context, email string) (bool, error) {
	var resp struct {
		HasVoted bool `json:"has_voted"`
	}
	if err := c.get(ctx, "/voter/status", url.Values{"email": {email}}, &resp); err != nil {
		return false, err
	}
	return resp.HasVoted, nil
}
