package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"chainvote/pkg/admin"
	"chainvote/pkg/auth"
	"chainvote/pkg/config"
	"chainvote/pkg/data"
	"chainvote/pkg/ui"
)

// ErrQuit is returned by Execute when the user asks to leave
var ErrQuit = errors.New("quit")

// LineReader supplies one line of user input at a time
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

type command struct {
	usage string
	help  string
	run   func(a *App, ctx context.Context, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"state":            {"state", "fetch the election state now", (*App).cmdState},
		"admin-login":      {"admin-login <email> <type#|CUSTOM> [title]", "request an admin OTP", (*App).cmdAdminLogin},
		"voter-login":      {"voter-login <email> <department>", "request a voter OTP", (*App).cmdVoterLogin},
		"otp":              {"otp [admin|voter] <code>", "submit the 6-digit code", (*App).cmdVerify},
		"verify":           {"verify [admin|voter] <code>", "same as otp", (*App).cmdVerify},
		"abandon":          {"abandon", "discard the pending verification", (*App).cmdAbandon},
		"admin":            {"admin", "open the admin surface", (*App).cmdEnterAdmin},
		"candidates":       {"candidates", "list all candidates", (*App).cmdCandidates},
		"add-candidate":    {"add-candidate <name> <department>", "register a candidate", (*App).cmdAddCandidate},
		"remove-candidate": {"remove-candidate <id>", "remove a candidate", (*App).cmdRemoveCandidate},
		"start":            {"start", "start the election", (*App).cmdStart},
		"stop":             {"stop", "stop the election", (*App).cmdStop},
		"reset":            {"reset", "wipe the ledger and all data", (*App).cmdReset},
		"title":            {"title <new title>", "rename the election", (*App).cmdTitle},
		"audit":            {"audit", "show the audit report", (*App).cmdAudit},
		"ballot":           {"ballot", "show your department's ballot", (*App).cmdBallot},
		"vote":             {"vote <candidate-id>", "cast your vote", (*App).cmdVote},
		"status":           {"status", "check whether you have voted", (*App).cmdStatus},
		"results":          {"results", "show the public results", (*App).cmdResults},
		"logout":           {"logout [admin|voter]", "sign out", (*App).cmdLogout},
		"help":             {"help", "list commands", (*App).cmdHelp},
		"quit":             {"quit", "exit", (*App).cmdQuit},
	}
}

// Run reads commands from in until EOF, quit, or ctx is cancelled
func (a *App) Run(ctx context.Context, in LineReader) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := in.ReadLine("chainvote> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading command: %w", err)
		}

		if err := a.Execute(ctx, line); errors.Is(err, ErrQuit) {
			return nil
		}
	}
}

// Execute runs one command line. Failures have already been shown to the
// user when it returns.
func (a *App) Execute(ctx context.Context, line string) error {
	args, err := splitArgs(line)
	if err != nil {
		ui.NotifyError(a.view, err)
		return err
	}
	if len(args) == 0 {
		return nil
	}

	name := strings.ToLower(args[0])
	cmd, ok := commands[name]
	if !ok {
		err := &data.ValidationError{Message: fmt.Sprintf("unknown command %q, type help for a list", args[0])}
		ui.NotifyError(a.view, err)
		return err
	}

	a.logger.Debug("Executing command", zap.String("command", name), zap.Int("args", len(args)-1))
	return cmd.run(a, ctx, args[1:])
}

func (a *App) cmdState(ctx context.Context, _ []string) error {
	state, err := a.poller.FetchOnce(ctx)
	if err != nil {
		return err
	}
	a.view.Notify(ui.LevelInfo, fmt.Sprintf("Election is %s", state.Phase))
	return nil
}

func (a *App) cmdAdminLogin(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return a.usage("admin-login")
	}

	claim := auth.Claim{Email: args[0]}
	switch choice := args[1]; {
	case strings.EqualFold(choice, config.CustomTitle):
		claim.ElectionType = config.CustomTitle
		claim.CustomTitle = strings.Join(args[2:], " ")
	default:
		claim.ElectionType = a.presetTitle(choice)
	}

	_, err := a.flow.RequestChallenge(ctx, data.RoleAdmin, claim)
	return err
}

// presetTitle resolves a 1-based preset number to its title. Anything
// else is passed through for the flow to validate.
func (a *App) presetTitle(choice string) string {
	n, err := strconv.Atoi(choice)
	if err != nil {
		return choice
	}
	types := a.config.Election.ElectionTypes
	if n < 1 || n > len(types) {
		return choice
	}
	return types[n-1]
}

func (a *App) cmdVoterLogin(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return a.usage("voter-login")
	}
	_, err := a.flow.RequestChallenge(ctx, data.RoleVoter, auth.Claim{Email: args[0], Department: args[1]})
	return err
}

func (a *App) cmdVerify(ctx context.Context, args []string) error {
	var (
		role data.Role
		code string
	)
	switch len(args) {
	case 1:
		pending, ok := a.flow.Pending()
		if !ok {
			ui.NotifyError(a.view, data.ErrInvalidState)
			return data.ErrInvalidState
		}
		role, code = pending, args[0]
	case 2:
		r, err := data.ParseRole(args[0])
		if err != nil {
			ui.NotifyError(a.view, err)
			return err
		}
		role, code = r, args[1]
	default:
		return a.usage("otp")
	}

	if _, err := a.flow.VerifyChallenge(ctx, role, code); err != nil {
		return err
	}
	if role == data.RoleAdmin {
		return a.withAdmin(func(d *admin.Dispatcher) error {
			_, err := d.RefreshCandidates(ctx)
			return err
		})
	}
	return nil
}

func (a *App) cmdAbandon(_ context.Context, _ []string) error {
	if err := a.flow.Abandon(); err != nil {
		ui.NotifyError(a.view, err)
		return err
	}
	a.view.Navigate(ui.SurfaceEntry)
	return nil
}

func (a *App) cmdEnterAdmin(ctx context.Context, _ []string) error {
	_, err := a.EnterAdmin(ctx)
	return err
}

// withAdmin runs fn against the admin dispatcher, redirecting to the
// entry surface when nobody is signed in as admin
func (a *App) withAdmin(fn func(*admin.Dispatcher) error) error {
	d, err := a.Admin()
	if err != nil {
		a.view.Navigate(ui.SurfaceEntry)
		ui.NotifyError(a.view, err)
		return err
	}
	return fn(d)
}

func (a *App) cmdCandidates(ctx context.Context, _ []string) error {
	return a.withAdmin(func(d *admin.Dispatcher) error {
		_, err := d.RefreshCandidates(ctx)
		return err
	})
}

func (a *App) cmdAddCandidate(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return a.usage("add-candidate")
	}
	return a.withAdmin(func(d *admin.Dispatcher) error {
		_, err := d.AddCandidate(ctx, args[0], args[1])
		return err
	})
}

func (a *App) cmdRemoveCandidate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return a.usage("remove-candidate")
	}
	return a.withAdmin(func(d *admin.Dispatcher) error {
		return d.RemoveCandidate(ctx, args[0])
	})
}

func (a *App) cmdStart(ctx context.Context, _ []string) error {
	return a.withAdmin(func(d *admin.Dispatcher) error { return d.StartElection(ctx) })
}

func (a *App) cmdStop(ctx context.Context, _ []string) error {
	return a.withAdmin(func(d *admin.Dispatcher) error { return d.StopElection(ctx) })
}

func (a *App) cmdReset(ctx context.Context, _ []string) error {
	return a.withAdmin(func(d *admin.Dispatcher) error { return d.ResetElection(ctx) })
}

func (a *App) cmdTitle(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.usage("title")
	}
	return a.withAdmin(func(d *admin.Dispatcher) error {
		return d.EditTitle(ctx, strings.Join(args, " "))
	})
}

func (a *App) cmdAudit(ctx context.Context, _ []string) error {
	return a.withAdmin(func(d *admin.Dispatcher) error {
		_, err := d.FetchAudit(ctx)
		return err
	})
}

func (a *App) cmdBallot(ctx context.Context, _ []string) error {
	_, err := a.voter.Ballot(ctx)
	return err
}

func (a *App) cmdVote(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return a.usage("vote")
	}
	_, err := a.voter.CastVote(ctx, args[0])
	return err
}

func (a *App) cmdStatus(ctx context.Context, _ []string) error {
	_, err := a.voter.Status(ctx)
	return err
}

func (a *App) cmdResults(ctx context.Context, _ []string) error {
	_, err := a.voter.Results(ctx)
	return err
}

func (a *App) cmdLogout(_ context.Context, args []string) error {
	switch len(args) {
	case 0:
		var signedIn []data.Role
		for _, role := range data.Roles {
			if _, ok := a.store.Get(role); ok {
				signedIn = append(signedIn, role)
			}
		}
		if len(signedIn) != 1 {
			return a.usage("logout")
		}
		return a.Logout(signedIn[0])
	case 1:
		role, err := data.ParseRole(args[0])
		if err != nil {
			ui.NotifyError(a.view, err)
			return err
		}
		return a.Logout(role)
	}
	return a.usage("logout")
}

func (a *App) cmdHelp(_ context.Context, _ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Commands:")
	for _, name := range names {
		fmt.Fprintf(&b, "\n  %-44s %s", commands[name].usage, commands[name].help)
	}
	if types := a.config.Election.ElectionTypes; len(types) > 0 {
		b.WriteString("\nElection types:")
		for i, t := range types {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, t)
		}
		fmt.Fprintf(&b, "\n  %s <title>", config.CustomTitle)
	}
	fmt.Fprintf(&b, "\nDepartments: %s", strings.Join(a.config.Election.Departments, ", "))

	a.view.Notify(ui.LevelInfo, b.String())
	return nil
}

func (a *App) cmdQuit(_ context.Context, _ []string) error {
	return ErrQuit
}

func (a *App) usage(name string) error {
	err := &data.ValidationError{Message: "usage: " + commands[name].usage}
	ui.NotifyError(a.view, err)
	return err
}

// splitArgs splits line into words with shell quoting rules. A # outside
// quotes starts a comment.
func splitArgs(line string) ([]string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return nil, &data.ValidationError{Message: fmt.Sprintf("malformed command line: %v", err)}
	}
	if len(args) == 0 {
		return nil, nil
	}
	return args, nil
}
