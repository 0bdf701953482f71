package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/usecase"
	"github.com/lexdesk/officeauth/usecase/directory"
	"github.com/lexdesk/officeauth/usecase/session"
)

// sessionClient is the part of session.Resolver the commands drive.
type sessionClient interface {
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, in directory.SignUpInput) error
	Logout(ctx context.Context)
	State() session.State
	Permissions() domain.FeaturePermissions
	ValidatePayment(ctx context.Context) domain.PaymentValidationResult
	ShowPaymentModal() bool
	DismissPaymentModal()
}

var errNotSignedIn = errors.New("not signed in, run `officectl login` first")

type whoami struct {
	User        *domain.SessionUser `json:"user"`
	Office      *domain.Office      `json:"office,omitempty"`
	FirstLogin  bool                `json:"first_login"`
	Degraded    bool                `json:"degraded"`
	NeedsAction bool                `json:"show_payment_modal"`
}

type paymentView struct {
	Result           domain.PaymentValidationResult `json:"result"`
	ShowPaymentModal bool                           `json:"show_payment_modal"`
}

// registerCommands binds every officectl operation. Passwords come from the
// -password flag or, when absent, the first line of stdin.
func registerCommands(d *usecase.Dispatcher, client sessionClient, stdin io.Reader) {
	d.RegisterCommand("login", "-email <email> [-password <password>]  sign in and resolve access",
		func(ctx context.Context, args []string) (interface{}, error) {
			fs := flag.NewFlagSet("login", flag.ContinueOnError)
			email := fs.String("email", "", "account e-mail")
			password := fs.String("password", "", "account password (read from stdin when empty)")
			if err := fs.Parse(args); err != nil {
				return nil, err
			}
			pw, err := passwordOrStdin(*password, stdin)
			if err != nil {
				return nil, err
			}
			if err := client.Login(ctx, strings.TrimSpace(*email), pw); err != nil {
				return nil, err
			}
			return describe(client), nil
		})

	d.RegisterCommand("register", "-email <email> -name <full name> [-password <password>]  create an account",
		func(ctx context.Context, args []string) (interface{}, error) {
			fs := flag.NewFlagSet("register", flag.ContinueOnError)
			email := fs.String("email", "", "account e-mail")
			name := fs.String("name", "", "full name")
			password := fs.String("password", "", "account password (read from stdin when empty)")
			if err := fs.Parse(args); err != nil {
				return nil, err
			}
			pw, err := passwordOrStdin(*password, stdin)
			if err != nil {
				return nil, err
			}
			in := directory.SignUpInput{Email: strings.TrimSpace(*email), Password: pw, FullName: strings.TrimSpace(*name)}
			if err := client.Register(ctx, in); err != nil {
				return nil, err
			}
			return describe(client), nil
		})

	d.RegisterCommand("logout", "sign out and forget stored tokens",
		func(ctx context.Context, _ []string) (interface{}, error) {
			client.Logout(ctx)
			return map[string]string{"status": "signed out"}, nil
		})

	d.RegisterQuery("whoami", "show the resolved user and office",
		func(context.Context, []string) (interface{}, error) {
			if !client.State().Authenticated() {
				return nil, errNotSignedIn
			}
			return describe(client), nil
		})

	d.RegisterQuery("permissions", "show feature permissions",
		func(context.Context, []string) (interface{}, error) {
			if !client.State().Authenticated() {
				return nil, errNotSignedIn
			}
			return client.Permissions(), nil
		})

	d.RegisterQuery("payment", "[-dismiss]  re-check the trial and subscription state",
		func(ctx context.Context, args []string) (interface{}, error) {
			fs := flag.NewFlagSet("payment", flag.ContinueOnError)
			dismiss := fs.Bool("dismiss", false, "dismiss the payment prompt for this run")
			if err := fs.Parse(args); err != nil {
				return nil, err
			}
			if !client.State().Authenticated() {
				return nil, errNotSignedIn
			}
			result := client.ValidatePayment(ctx)
			if *dismiss {
				client.DismissPaymentModal()
			}
			return paymentView{Result: result, ShowPaymentModal: client.ShowPaymentModal()}, nil
		})
}

func describe(client sessionClient) whoami {
	state := client.State()
	return whoami{
		User:        state.User,
		Office:      state.Office,
		FirstLogin:  state.FirstLogin,
		Degraded:    state.Degraded,
		NeedsAction: client.ShowPaymentModal(),
	}
}

func passwordOrStdin(flagValue string, stdin io.Reader) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if stdin == nil {
		return "", domain.NewError(domain.ErrCodeInvalid, "password is required")
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", domain.NewError(domain.ErrCodeInvalid, "password is required")
	}
	return line, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCode maps domain error codes to process exit statuses.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errNotSignedIn),
		domain.IsDomainError(err, domain.ErrCodeInvalidCredentials),
		domain.IsDomainError(err, domain.ErrCodeUnauthorized):
		return 3
	case domain.IsDomainError(err, domain.ErrCodeProfileUnavailable),
		domain.IsDomainError(err, domain.ErrCodeForbidden):
		return 4
	case errors.Is(err, usecase.ErrUnknownOperation),
		errors.Is(err, flag.ErrHelp),
		domain.IsDomainError(err, domain.ErrCodeInvalid):
		return 2
	default:
		return 1
	}
}
