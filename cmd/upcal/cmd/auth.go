package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"upcal/internal/auth"
	"upcal/internal/core"
	"upcal/internal/util"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Grant upcal access to your calendar",
	Long: `Grant upcal access to your calendar provider.

For Google and Outlook this opens your browser for the OAuth consent
screen and stores the resulting token locally. For CalDAV it verifies
the configured credentials against the server.

Access is requested once. If you decline it on the consent screen, the
decision sticks: upcal stops asking and instead points you at your
provider's settings page, where you can allow access and start over.`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	gate := manager.Gate()

	switch gate.Mode() {
	case auth.ModeEvents:
		fmt.Println("✅ Calendar access is already granted.")
		return nil
	case auth.ModeSettingsPrompt:
		fmt.Println("🚫 Calendar access was denied earlier.")
		fmt.Println()
		fmt.Println("upcal will not ask again. Allow access in your provider's settings,")
		fmt.Println("then run 'upcal auth' once more:")
		fmt.Printf("  %s\n", util.MakeHyperlink(settingsURL, settingsURL))
		return nil
	}

	switch state := manager.RequestAccess(cmd.Context()); state {
	case core.AuthGranted:
		fmt.Println("\n✅ Calendar access granted!")
		fmt.Printf("📋 Loaded %d upcoming events.\n", len(manager.Events()))
		fmt.Println("\nYou can now run 'upcal' to see your agenda, or 'upcal ui' for the interactive view.")
		return nil
	case core.AuthDenied:
		fmt.Println("\n🚫 You declined calendar access.")
		fmt.Println()
		fmt.Println("upcal will not ask again. To change your mind, allow access in your")
		fmt.Println("provider's settings and run 'upcal auth' again:")
		fmt.Printf("  %s\n", util.MakeHyperlink(settingsURL, settingsURL))
		return nil
	default:
		return fmt.Errorf("authorization did not complete: %s", manager.LastError())
	}
}
