package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/eshaffer321/docvault-go/pkg/docvault"
	"github.com/spf13/cobra"
)

var (
	loginUsername string
	loginPassword string
	whoamiJSON    bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Long: `Signs in with a username and password. The password may also be given
in DOCVAULT_PASSWORD to keep it out of the shell history.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and forget the stored credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, logger, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer closeClient(client, logger)

		client.Auth.Logout(commandContext(cmd))
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "account username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "account password")
	_ = loginCmd.MarkFlagRequired("username")
	whoamiCmd.Flags().BoolVar(&whoamiJSON, "json", false, "Output the profile as JSON")
}

func runLogin(cmd *cobra.Command, args []string) error {
	password := loginPassword
	if password == "" {
		password = os.Getenv("DOCVAULT_PASSWORD")
	}
	if password == "" {
		return fmt.Errorf("a password is required")
	}

	client, logger, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	if err := client.Auth.Login(commandContext(cmd), loginUsername, password); err != nil {
		return fmt.Errorf("login failed: %s", docvault.Message(err))
	}

	user := client.Auth.CurrentUser()
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Username)
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	client, logger, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	if !client.Auth.IsAuthenticated() {
		return fmt.Errorf("not signed in")
	}

	user, err := client.Auth.Me(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("profile request failed: %s", docvault.Message(err))
	}

	if whoamiJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(user)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Username: %s\n", user.Username)
	fmt.Fprintf(out, "Name:     %s %s\n", user.FirstName, user.LastName)
	fmt.Fprintf(out, "Email:    %s\n", user.Email)
	if session := client.Auth.Session(); session != nil {
		fmt.Fprintf(out, "Expires:  %s\n", session.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
