package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/parley/internal/session"
	"github.com/spf13/cobra"
)

var credentialsFlags struct {
	Password string
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and remember the session",
	Long:  `Log in to the chat backend. The token is stored and reused by every other command until you log out.`,
	Example: `parley login alice
echo secret | parley login alice`,
	Args: cobra.ExactArgs(1),
	RunE: login,
}

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create an account",
	Long:  `Create an account on the chat backend. This does not log you in.`,
	Args:  cobra.ExactArgs(1),
	RunE:  register,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE:  logout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	Args:  cobra.NoArgs,
	RunE:  whoami,
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&credentialsFlags.Password, "password", "p", "", "Password (read from stdin if not set)")
	}
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}

// password returns the --password flag or the first line of stdin.
func password(cmd *cobra.Command) (string, error) {
	if credentialsFlags.Password != "" {
		return credentialsFlags.Password, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(cmd.ErrOrStderr())
	return strings.TrimRight(line, "\r\n"), nil
}

func login(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := openApp(ctx)
	defer a.Close()

	pw, err := password(cmd)
	if err != nil {
		return err
	}

	if err := a.session.Login(ctx, args[0], pw); err != nil {
		if errors.Is(err, session.ErrLoginFailed) {
			return errors.New("invalid username or password")
		}
		return err
	}
	if err := a.session.Wait(ctx); err != nil {
		return err
	}

	user := a.session.User()
	if user == nil {
		return errors.New("the backend rejected the new session")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user.Username)
	return nil
}

func register(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := openApp(ctx)
	defer a.Close()

	pw, err := password(cmd)
	if err != nil {
		return err
	}

	if err := a.session.Register(ctx, args[0], pw); err != nil {
		log.Debug("registration failed", "error", err)
		return errors.New("registration failed")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Registered! You can now log in")
	return nil
}

func logout(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a := openApp(ctx)
	defer a.Close()

	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func whoami(cmd *cobra.Command, _ []string) error {
	a := openApp(cmd.Context())
	defer a.Close()

	if err := a.authorize(session.AccessAuthenticated); err != nil {
		return err
	}

	user := a.session.User()
	fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d, %s)\n", user.Username, user.ID, role(*user))
	return nil
}
