package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rmYes bool

var rmCmd = &cobra.Command{
	Use:   "rm <event>",
	Short: "Delete an event",
	Long: `Delete a single event, found by ID or by a title match among your
upcoming events. The deletion is committed on the provider immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: runRm,
}

func init() {
	rmCmd.Flags().BoolVarP(&rmYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(rmCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
	if err := requireAccess(); err != nil {
		return err
	}

	ev, err := resolveEvent(cmd, args[0])
	if err != nil {
		return err
	}

	if !rmYes {
		fmt.Println("About to delete:")
		printEventDetail(ev)
		fmt.Print("\nDelete? [y/N] ")

		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
			fmt.Println("Canceled.")
			return nil
		}
	}

	if !manager.Delete(cmd.Context(), ev) {
		return fmt.Errorf("delete failed: %s", manager.LastError())
	}

	fmt.Printf("🗑️  Deleted %q\n", ev.Title)
	return nil
}
