package cmd

import (
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aine1100/pixbay-backend/cmd/pixbay/internal/auth"
	"github.com/aine1100/pixbay-backend/cmd/pixbay/internal/client"
	"github.com/aine1100/pixbay-backend/cmd/pixbay/internal/output"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  "Store, inspect and clear the access token the CLI uses.",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an access token",
	Long: `Store a Pixbay access token for subsequent commands.

Tokens are issued by the Pixbay platform when you log in through the
app. Paste one here, or pass it with --token.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear stored credentials",
	Long:  "Remove the stored access token.",
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long:  "Show the stored token's owner and expiry.",
	RunE:  runStatus,
}

var tokenFlag string

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)

	loginCmd.Flags().StringVarP(&tokenFlag, "token", "t", "", "access token (prompted if omitted)")
}

func requireAuth() (*client.Client, error) {
	if !auth.IsLoggedIn() {
		output.Error("Not logged in. Run 'pixbay auth login' first.")
		return nil, fmt.Errorf("not authenticated")
	}

	c := client.New()
	c.SetToken(auth.GetToken())
	return c, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	token := tokenFlag
	if token == "" {
		fmt.Print("Access token: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			output.Error("Could not read token: " + err.Error())
			return nil
		}
		token = string(raw)
	}

	stored, err := auth.FromToken(token)
	if err != nil {
		output.Error(err.Error())
		return nil
	}
	if time.Now().After(stored.ExpiresAt) {
		output.Error("Token is already expired")
		return nil
	}

	if err := auth.Save(stored); err != nil {
		output.Error("Could not save credentials: " + err.Error())
		return nil
	}

	printSuccess("Logged in as " + stored.UserID)
	printInfo(fmt.Sprintf("Token expires %s", stored.ExpiresAt.Format(time.RFC1123)))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	if err := auth.Clear(); err != nil {
		output.Error("Could not clear credentials: " + err.Error())
		return nil
	}
	printSuccess("Logged out")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	stored, err := auth.Load()
	if err != nil || stored == nil {
		printInfo("Not logged in")
		return nil
	}

	if getFormat() == "json" {
		return output.JSON(map[string]interface{}{
			"user_id":    stored.UserID,
			"phone":      stored.Phone,
			"expires_at": stored.ExpiresAt,
			"expired":    time.Now().After(stored.ExpiresAt),
		})
	}

	output.Header("Authentication")
	fmt.Println()
	pairs := [][]string{
		{"User", stored.UserID},
	}
	if stored.Phone != "" {
		pairs = append(pairs, []string{"Phone", stored.Phone})
	}
	pairs = append(pairs, []string{"Expires", stored.ExpiresAt.Format(time.RFC1123)})
	output.KeyValue(pairs)

	if time.Now().After(stored.ExpiresAt) {
		fmt.Println()
		output.Warning("Token has expired. Run 'pixbay auth login' again.")
	}
	return nil
}
