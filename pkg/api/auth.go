package api

import (
	"context"
)

type loginResponse struct {
	Message string `json:"message"`
}

type voterVerifyResponse struct {
	Email      string `json:"email"`
	Department string `json:"department"`
}

// AdminLogin asks the server to send an admin OTP.
// The returned message is the server's human-readable instruction.
func (c *Client) AdminLogin(ctx context.Context, email, title string) (string, error) {
	var resp loginResponse
	err := c.post(ctx, "/admin/login", map[string]string{
		"email": email,
		"title": title,
	}, &resp)
	return resp.Message, err
}

// AdminVerify submits the admin OTP
func (c *Client) AdminVerify(ctx context.Context, email, otp string) error {
	return c.post(ctx, "/admin/verify-otp", map[string]string{
		"email": email,
		"otp":   otp,
	}, nil)
}

// VoterLogin asks the server to send a voter OTP
func (c *Client) VoterLogin(ctx context.Context, email, department string) (string, error) {
	var resp loginResponse
	err := c.post(ctx, "/voter/login", map[string]string{
		"email":      email,
		"department": department,
	}, &resp)
	return resp.Message, err
}

// VoterVerify submits the voter OTP and returns the department the server
// bound to the session, which may be empty on older servers
func (c *Client) VoterVerify(ctx context.Context, email, otp string) (string, error) {
	var resp voterVerifyResponse
	err := c.post(ctx, "/voter/verify-otp", map[string]string{
		"email": email,
		"otp":   otp,
	}, &resp)
	return resp.Department, err
}
