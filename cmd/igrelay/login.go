package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in to Instagram and save the session",
	Long: `Log in to Instagram with the configured account and save the session so
that 'igrelay run' can start without logging in again.

The username comes from the argument or INSTAGRAM_USERNAME. When
INSTAGRAM_PASSWORD is empty and stdin is a terminal you are prompted for the
password; it is never echoed or stored.

An existing saved session for the account is replaced.`,
	Example: `  # Log in as the configured account
  igrelay login

  # Log in as a specific account
  igrelay login relay_account`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	if len(args) > 0 {
		cfg.Instagram.Username = strings.TrimPrefix(strings.TrimSpace(args[0]), "@")
	}
	if cfg.Instagram.Username == "" {
		fmt.Print("Instagram username: ")
		username, err := readLine()
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
		cfg.Instagram.Username = username
	}
	if cfg.Instagram.Password == "" && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Printf("Password for %s: ", cfg.Instagram.Username)
		password, err := readPassword()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		cfg.Instagram.Password = password
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, err := newSessionManager(cfg, log)
	if err != nil {
		return err
	}

	session, err := sessions.Establish(ctx)
	if err != nil {
		return err
	}
	if err := sessions.Persist(session); err != nil {
		return err
	}

	fmt.Printf("Logged in as %s (user id %s)\n", session.Username, session.UserID)
	fmt.Printf("Session saved to the %s store\n", strings.ToLower(cfg.Storage.SessionBackend))
	return nil
}

// readPassword reads a password from stdin without echoing
func readPassword() (string, error) {
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func readLine() (string, error) {
	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
