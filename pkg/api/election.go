package api

import (
	"context"
	"fmt"
	"time"

	"chainvote/pkg/data"
)

type stateResponse struct {
	State       string `json:"state"`
	Title       string `json:"title"`
	TotalVotes  int    `json:"total_votes"`
	ChainLength int    `json:"chain_length"`
	ChainValid  bool   `json:"chain_valid"`
}

// ElectionState fetches the public election snapshot
func (c *Client) ElectionState(ctx context.Context) (data.ElectionState, error) {
	const op = "GET /election/state"

	var resp stateResponse
	if err := c.get(ctx, "/election/state", nil, &resp); err != nil {
		return data.ElectionState{}, err
	}

	phase, err := data.ParsePhase(resp.State)
	if err != nil {
		return data.ElectionState{}, &data.ConnectivityError{Op: op, Err: err}
	}
	if resp.TotalVotes < 0 || resp.ChainLength < 0 {
		return data.ElectionState{}, &data.ConnectivityError{
			Op:  op,
			Err: fmt.Errorf("negative counters (votes=%d, chain=%d)", resp.TotalVotes, resp.ChainLength),
		}
	}

	return data.ElectionState{
		Phase:       phase,
		Title:       resp.Title,
		TotalVotes:  resp.TotalVotes,
		ChainLength: resp.ChainLength,
		ChainValid:  resp.ChainValid,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// Results fetches the public per-department results
func (c *Client) Results(ctx context.Context) (data.ResultsReport, error) {
	var resp data.ResultsReport
	if err := c.get(ctx, "/results", nil, &resp); err != nil {
		return data.ResultsReport{}, err
	}
	return resp, nil
}
