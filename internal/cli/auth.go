package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	loginRemember   bool
	loginNoValidate bool
)

var loginCmd = &cobra.Command{
	Use:   "login [api-key]",
	Short: "Check and store the backend API key",
	Long: `Login validates an API key against the backend and keeps it for later
commands. The key is read from the argument or, when omitted, from stdin.

Without --remember the key is only checked; it is written to
~/.papertrail/credentials.yaml only when --remember is given.

Example:
  papertrail login sk-ant-... --remember
  echo "$KEY" | papertrail login --remember`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.creds.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "✓ API key removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().BoolVar(&loginRemember, "remember", false, "save the key to ~/.papertrail/credentials.yaml")
	loginCmd.Flags().BoolVar(&loginNoValidate, "no-validate", false, "store the key without asking the backend")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	var key string
	if len(args) == 1 {
		key = args[0]
	} else {
		fmt.Fprint(os.Stderr, "API key: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read API key: %w", err)
		}
		key = line
	}
	key = strings.TrimSpace(key)

	if !loginNoValidate {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		res := a.client.ValidateAPIKey(ctx, key)
		if !res.OK {
			return fmt.Errorf("API key rejected: %s", res.Error)
		}
		fmt.Fprintln(os.Stderr, "✓ API key accepted")
	}

	if err := a.creds.Set(key, loginRemember); err != nil {
		return err
	}
	if loginRemember {
		fmt.Fprintln(os.Stderr, "✓ API key saved")
	}
	return nil
}
