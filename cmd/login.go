package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marcus/imtti/internal/clientconfig"
	"github.com/marcus/imtti/internal/fallback"
	"github.com/marcus/imtti/internal/models"
	"github.com/marcus/imtti/internal/output"
)

var errLoginFailed = errors.New("login failed")

// isInteractive reports whether prompts can be shown.
var isInteractive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

var loginCmd = &cobra.Command{
	Use:     "login",
	Short:   "Log in as an admin, center or student",
	GroupID: "session",
	Long: `Log in against the IMTTI API and remember who you are.

Logins always need the API: credentials are never checked against the local
store. Missing credentials are prompted for when running in a terminal.`,
}

// emailLogin is (*fallback.Client).AdminLogin or CenterLogin.
type emailLogin func(c *fallback.Client, ctx context.Context, email, password string) fallback.Result

func newEmailLoginCmd(role string, login emailLogin) *cobra.Command {
	c := &cobra.Command{
		Use:   role,
		Short: fmt.Sprintf("Log in as a %s with email and password", role),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = os.Getenv("IMTTI_PASSWORD")
			}

			if email == "" || password == "" {
				if !isInteractive() {
					return fmt.Errorf("--email and --password are required (or set IMTTI_PASSWORD)")
				}
				if err := promptEmailLogin(role, &email, &password); err != nil {
					return err
				}
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := a.context(cmd)
			defer cancel()

			res := login(a.client, ctx, email, password)
			return finishLogin(cmd, a, role, email, res)
		},
	}
	c.Flags().String("email", "", "account email")
	c.Flags().String("password", "", "account password (env: IMTTI_PASSWORD)")
	return c
}

var loginStudentCmd = &cobra.Command{
	Use:   "student",
	Short: "Log in as a student with registration id and date of birth",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		regID, _ := cmd.Flags().GetString("registration-id")
		dob, _ := cmd.Flags().GetString("dob")

		if regID == "" || dob == "" {
			if !isInteractive() {
				return fmt.Errorf("--registration-id and --dob are required")
			}
			if err := promptStudentLogin(&regID, &dob); err != nil {
				return err
			}
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := a.context(cmd)
		defer cancel()

		res := a.client.StudentLogin(ctx, regID, dob)
		return finishLogin(cmd, a, "student", regID, res)
	},
}

func promptEmailLogin(role string, email, password *string) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(titleCase(role)+" email").
				Value(email).
				Validate(required("email")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(required("password")),
		),
	).Run()
}

func promptStudentLogin(regID, dob *string) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Registration ID").
				Value(regID).
				Validate(required("registration id")),
			huh.NewInput().
				Title("Date of birth").
				Placeholder("YYYY-MM-DD").
				Value(dob).
				Validate(validDate),
		),
	).Run()
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validDate(s string) error {
	if _, err := time.Parse(time.DateOnly, strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("use YYYY-MM-DD")
	}
	return nil
}

// finishLogin saves the session when the API accepted the credentials.
func finishLogin(cmd *cobra.Command, a *app, role, identifier string, res fallback.Result) error {
	if res.Source != fallback.SourceRemote {
		if res.Err != nil {
			return fmt.Errorf("%w: %v", errLoginFailed, res.Err)
		}
		return fmt.Errorf("%w: API unreachable at %s", errLoginFailed, a.cfg.BaseURL())
	}

	rec, ok := res.Record()
	if !ok || rec.IDString() == "" {
		return fmt.Errorf("%w: unexpected response from API", errLoginFailed)
	}

	sess := &clientconfig.Session{
		Role:       role,
		ID:         rec.IDString(),
		Identifier: identifier,
		Name:       displayName(rec),
		APIURL:     a.cfg.BaseURL(),
		LoggedInAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := clientconfig.SaveSession(sess); err != nil {
		return &configError{fmt.Errorf("save session: %w", err)}
	}

	if jsonOut, _ := outputMode(cmd.Flags()); jsonOut {
		return output.JSON(rec)
	}
	who := sess.Name
	if who == "" {
		who = identifier
	}
	output.Success("Logged in as %s %s (id %s)", role, who, sess.ID)
	return nil
}

func displayName(rec models.Record) string {
	for _, key := range []string{"name", "full_name", "center_name", "email"} {
		if s, ok := rec[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Forget the saved login",
	GroupID: "session",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := clientconfig.ClearSession(); err != nil {
			return &configError{err}
		}
		output.Success("Logged out")
		return nil
	},
}

func init() {
	loginCmd.AddCommand(newEmailLoginCmd("admin", (*fallback.Client).AdminLogin))
	loginCmd.AddCommand(newEmailLoginCmd("center", (*fallback.Client).CenterLogin))

	loginStudentCmd.Flags().String("registration-id", "", "student registration id")
	loginStudentCmd.Flags().String("dob", "", "date of birth (YYYY-MM-DD)")
	loginCmd.AddCommand(loginStudentCmd)

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
