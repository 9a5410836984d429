package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/jobtrail/internal/gateway"
	"github.com/kalambet/jobtrail/internal/storage"
)

// passwordEnv lets scripts sign in without a prompt.
const passwordEnv = "JOBTRAIL_PASSWORD"

// prompter reads answers for flags left empty.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: stderr}
}

func (p *prompter) ask(label, current string) (string, error) {
	if current != "" {
		return current, nil
	}
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// --- login ---

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Long: `Sign in to the jobtrail backend. The session is stored locally for seven
days and shared with the dashboard server and the assistant tools.

Examples:
  jobtrail login --email me@example.com
  JOBTRAIL_PASSWORD=... jobtrail login --email me@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv(passwordEnv)
		}

		p := newPrompter(cmd)
		var err error
		if email, err = p.ask("Email", email); err != nil {
			return err
		}
		if password, err = p.ask("Password", password); err != nil {
			return err
		}
		if email == "" || password == "" {
			return fmt.Errorf("email and password are required")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		env, err := a.gw.Login(ctx, email, password)
		if err != nil {
			return fmt.Errorf("signing in: %w", err)
		}
		if !env.Success || env.Data.Token == "" {
			return fmt.Errorf("%s", orDefault(env.Message, "Invalid email or password"))
		}

		sess := env.Data.Session(time.Now())
		if err := a.store.SaveSession(ctx, storage.DefaultSession, sess); err != nil {
			return fmt.Errorf("storing session: %w", err)
		}
		printSuccess("Signed in as %s", orDefault(env.Data.User.Email, email))
		return nil
	},
}

func init() {
	loginCmd.Flags().String("email", "", "account email")
	loginCmd.Flags().String("password", "", "account password (or set "+passwordEnv+")")
}

// --- register ---

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		confirm, _ := cmd.Flags().GetString("confirm-password")
		if password == "" {
			password = os.Getenv(passwordEnv)
		}
		if confirm == "" && os.Getenv(passwordEnv) != "" {
			confirm = os.Getenv(passwordEnv)
		}

		p := newPrompter(cmd)
		var err error
		for _, f := range []struct {
			label string
			v     *string
		}{
			{"Username", &username},
			{"Email", &email},
			{"Password", &password},
			{"Confirm password", &confirm},
		} {
			if *f.v, err = p.ask(f.label, *f.v); err != nil {
				return err
			}
		}

		reg := gateway.Registration{Username: username, Email: email, Password: password}
		if err := reg.Validate(confirm); err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		env, err := a.gw.Register(ctx, reg)
		if err != nil {
			return fmt.Errorf("registering: %w", err)
		}
		if !env.Success || env.Data.Token == "" {
			return fmt.Errorf("%s", orDefault(env.Message, "Registration failed"))
		}
		if err := a.store.SaveSession(ctx, storage.DefaultSession, env.Data.Session(time.Now())); err != nil {
			return fmt.Errorf("storing session: %w", err)
		}
		printSuccess("Account %s created and signed in", username)
		return nil
	},
}

func init() {
	registerCmd.Flags().String("username", "", "user name")
	registerCmd.Flags().String("email", "", "account email")
	registerCmd.Flags().String("password", "", "password (or set "+passwordEnv+")")
	registerCmd.Flags().String("confirm-password", "", "password again")
}

// --- logout ---

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.store.DeleteSession(cmd.Context(), storage.DefaultSession)
		if errors.Is(err, storage.ErrNotFound) {
			printWarning("Not signed in")
			return nil
		}
		if err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
		printSuccess("Signed out")
		return nil
	},
}

// --- whoami ---

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		_, sess, err := a.signedIn(cmd.Context())
		if err != nil {
			return err
		}
		printStatus("Role", "%s", orDefault(sess.Role, "user"))
		printStatus("Signed in", "%s", sess.IssuedAt.Local().Format(time.DateTime))
		printStatus("Expires", "%s (in %s)", sess.ExpiresAt.Local().Format(time.DateTime),
			time.Until(sess.ExpiresAt).Round(time.Minute))
		printStatus("Backend", "%s", a.gw.BaseURL())
		return nil
	},
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
