package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "List the calendars visible to upcal",
	Long: `List your provider's calendars. New events land on the default
calendar, marked with a star.`,
	RunE: runCalendars,
}

func init() {
	rootCmd.AddCommand(calendarsCmd)
}

func runCalendars(cmd *cobra.Command, args []string) error {
	if err := requireAccess(); err != nil {
		return err
	}

	calendars, err := provider.Calendars(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list calendars: %w", err)
	}

	def, err := provider.DefaultCalendar(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to resolve default calendar: %w", err)
	}

	fmt.Printf("📅 Calendars on %s:\n\n", provider.Name())
	for _, cal := range calendars {
		marker := "  "
		if cal.ID == def.ID {
			marker = "⭐"
		}
		fmt.Printf("%s %s\n", marker, cal.Name)
		fmt.Printf("   ID: %s\n", cal.ID)
	}

	fmt.Printf("\nTotal: %d calendars\n", len(calendars))
	return nil
}
