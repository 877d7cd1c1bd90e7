package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mhgscraper/pkg/auth"
	"mhgscraper/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored site cookies",
	Long: `Manage named cookie profiles for manhuagui.

Profiles are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - MHG_COOKIE environment variable (read only)

Select a profile with --profile; without it the MHG_COOKIE variable and
then the "default" profile are tried before the configured cookie.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store a cookie profile",
	Long: `Store the site's Cookie header under a profile name.

The cookie is read without echo. The profile name defaults to "default".`,
	Example: `  # Store the default profile
  mhgscraper auth login

  # Store a named profile
  mhgscraper auth login main`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove a stored cookie profile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored cookie profiles",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(authListCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := auth.DefaultProfile
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		name = strings.TrimSpace(args[0])
	}

	reader := bufio.NewReader(os.Stdin)

	auth.ShowCookieGuide(os.Stdout)

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("\nProfile '%s' already exists. Replace it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	var cookie string
	for {
		fmt.Print("\nCookie header (hidden): ")
		cookie, err = readSecret(reader)
		if err != nil {
			return fmt.Errorf("failed to read cookie: %w", err)
		}
		if err = auth.ValidateCookie(cookie); err == nil {
			break
		}

		fmt.Printf("\n%s\n", ui.Red(err.Error()))
		auth.ShowQuickGuide(os.Stdout)
		fmt.Print("\nTry again? (Y/n): ")
		retry, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(retry)) == "n" {
			return &exitError{err: err}
		}
	}

	fmt.Print("User agent (press Enter to use the default): ")
	userAgent, _ := reader.ReadString('\n')

	profile := &auth.Profile{
		Name:         name,
		Cookie:       strings.TrimSpace(cookie),
		UserAgent:    strings.TrimSpace(userAgent),
		LastModified: time.Now(),
	}
	if err := manager.Store(profile); err != nil {
		return err
	}

	ui.PrintSuccess("Profile saved: " + name)
	fmt.Println("\nUse it with:")
	if name == auth.DefaultProfile {
		fmt.Println("  mhgscraper download <series-url>")
	} else {
		fmt.Printf("  mhgscraper download <series-url> --profile %s\n", name)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := auth.DefaultProfile
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	if err := manager.Delete(name); err != nil {
		if errors.Is(err, auth.ErrProfileNotFound) {
			ui.PrintWarning("No such profile", name)
			return nil
		}
		return err
	}
	ui.PrintSuccess("Profile removed: " + name)
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	profiles, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	if len(profiles) == 0 {
		ui.PrintInfo("No stored profiles", "Use 'mhgscraper auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Profiles")
	fmt.Println()

	for i, p := range profiles {
		sanitized := auth.Sanitize(p)
		fmt.Printf("%d. %s\n", i+1, sanitized.Name)
		fmt.Printf("   Cookie: %s\n", sanitized.Cookie)
		if sanitized.UserAgent != "" {
			fmt.Printf("   User Agent: %s\n", sanitized.UserAgent)
		}
		if !sanitized.LastModified.IsZero() {
			fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
	return nil
}

// readSecret reads a line from stdin without echo when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
