package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"upcal/internal/adapter/caldav"
	"upcal/internal/adapter/google"
	"upcal/internal/adapter/outlook"
	"upcal/internal/auth"
	"upcal/internal/core"
	"upcal/internal/session"
	"upcal/internal/store"
	"upcal/internal/util"
)

var (
	cfgFile string

	provider    core.Provider
	manager     *session.Manager
	credsStore  *store.Store
	settingsURL string
)

var rootCmd = &cobra.Command{
	Use:   "upcal",
	Short: "Your next 30 days of calendar, in the terminal",
	Long: `upcal shows and manages the upcoming month of your calendar from the
terminal. It talks to Google Calendar, Outlook, or any CalDAV server.

Run without arguments to print the agenda, or 'upcal ui' for the
interactive view. Before anything works you grant calendar access once
with 'upcal auth'.`,
	PersistentPreRunE: initProvider,
	RunE:              runAgenda,
}

func Execute() {
	err := rootCmd.Execute()
	if credsStore != nil {
		credsStore.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/upcal/config.yaml)")
	rootCmd.PersistentFlags().String("provider", "", "calendar provider (google, outlook, caldav)")

	viper.BindPFlag("provider", rootCmd.PersistentFlags().Lookup("provider"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".config", "upcal")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("UPCAL")
	viper.AutomaticEnv()

	viper.SetDefault("provider", "google")
	viper.SetDefault("credentials_file", "~/.config/upcal/credentials.json")
	viper.SetDefault("store_file", "~/.config/upcal/upcal.db")
	viper.SetDefault("tenant_id", "common")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initProvider builds the credential store, the provider handle, and
// the session manager. The handle lives for the whole process; commands
// never construct their own.
func initProvider(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	storePath := expandPath(viper.GetString("store_file"))
	if err := os.MkdirAll(filepath.Dir(storePath), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var err error
	credsStore, err = store.Open(storePath)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}

	switch name := viper.GetString("provider"); name {
	case "google":
		credsFile := expandPath(viper.GetString("credentials_file"))
		if _, err := os.Stat(credsFile); os.IsNotExist(err) {
			return fmt.Errorf("credentials file not found: %s\n\nDownload an OAuth client for a desktop app from the Google Cloud console\nand place it there", credsFile)
		}
		provider = google.NewGoogleAdapter("google", "Google Calendar", credsFile, credsStore)
		settingsURL = google.SettingsURL

	case "outlook":
		clientID := viper.GetString("client_id")
		if clientID == "" {
			return fmt.Errorf("client_id not configured for the Outlook provider\n\nAdd it to your config:\n  client_id: \"your-azure-app-client-id\"")
		}
		provider = outlook.NewOutlookAdapter("outlook", "Outlook Calendar", clientID, viper.GetString("tenant_id"), credsStore)
		settingsURL = outlook.SettingsURL

	case "caldav":
		serverURL := viper.GetString("caldav_url")
		if serverURL == "" {
			return fmt.Errorf("caldav_url not configured\n\nAdd your server to the config:\n  caldav_url: \"https://dav.example.com\"\n  caldav_username: \"you\"\n  caldav_password: \"app-password\"")
		}
		adapter := caldav.NewCalDAVAdapter("caldav", "CalDAV",
			serverURL, viper.GetString("caldav_username"), viper.GetString("caldav_password"), credsStore)
		provider = adapter
		settingsURL = adapter.SettingsHint()

	default:
		return fmt.Errorf("unknown provider: %s (supported: google, outlook, caldav)", name)
	}

	manager = session.NewManager(provider)
	manager.Gate().CheckStatus(cmd.Context())
	return nil
}

// requireAccess gates every event-touching command on the authorization
// state, mirroring the surface routing of the interactive view.
func requireAccess() error {
	switch manager.Gate().Mode() {
	case auth.ModeEvents:
		return nil
	case auth.ModeSettingsPrompt:
		return fmt.Errorf("calendar access was denied\n\nAllow access in your provider's settings, then try again:\n  %s", settingsURL)
	default:
		return fmt.Errorf("calendar access has not been granted yet\n\nRun 'upcal auth' first")
	}
}

func runAgenda(cmd *cobra.Command, args []string) error {
	if err := requireAccess(); err != nil {
		return err
	}

	manager.Fetch(cmd.Context())
	if msg := manager.LastError(); msg != "" {
		return fmt.Errorf("%s", msg)
	}

	events := manager.Events()
	now := time.Now()

	fmt.Printf("📅 Events from %s to %s:\n", now.Format("Jan 2"), now.Add(session.Window).Format("Jan 2"))
	fmt.Println("─────────────────────────────────────────────────")

	if len(events) == 0 {
		fmt.Println("No upcoming events found.")
		return nil
	}

	lastDay := ""
	for _, event := range events {
		day := event.Start.Local().Format("Mon, Jan 2")
		if day != lastDay {
			fmt.Printf("\n%s\n", day)
			lastDay = day
		}
		printEvent(event)
	}

	fmt.Println()
	fmt.Println("─────────────────────────────────────────────────")
	fmt.Printf("Total: %d events\n", len(events))

	return nil
}

func printEvent(event core.Event) {
	timeStr := event.Start.Local().Format("3:04 PM")
	if event.IsAllDay {
		timeStr = "All day"
	}

	title := event.Title
	if title == "" {
		title = "(untitled)"
	}

	fmt.Printf("  %-9s %s\n", timeStr, title)
	if event.Calendar.Name != "" {
		fmt.Printf("            📅 %s\n", event.Calendar.Name)
	}
	if event.Notes != "" {
		fmt.Printf("            📝 %s\n", util.TruncateText(strings.ReplaceAll(event.Notes, "\n", " "), 70))
	}
	if event.InProgress(time.Now()) {
		fmt.Printf("            🟢 IN PROGRESS (%s remaining)\n", formatDurationCompact(time.Until(event.End)))
	}
}

// printEventDetail is the long form used by edit/rm confirmations.
func printEventDetail(event core.Event) {
	fmt.Printf("  %s\n", event.Title)
	fmt.Printf("  🕐 When:     %s\n", formatEventTime(event.Start, event.End, event.IsAllDay))
	fmt.Printf("  ⏱️  Duration: %s\n", formatDurationCompact(event.Duration()))
	if event.Calendar.Name != "" {
		fmt.Printf("  📅 Calendar: %s\n", event.Calendar.Name)
	}
	if event.Notes != "" {
		fmt.Printf("  📝 Notes:    %s\n", util.TruncateText(strings.ReplaceAll(event.Notes, "\n", " "), 70))
	}
	fmt.Printf("  🆔 ID:       %s\n", event.ID)
}

func formatDurationCompact(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		if hours > 0 {
			return fmt.Sprintf("%dd %dh", days, hours)
		}
		return fmt.Sprintf("%dd", days)
	}
	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", minutes)
}

func formatEventTime(start, end time.Time, isAllDay bool) string {
	localStart := start.Local()
	localEnd := end.Local()

	if isAllDay {
		if localStart.Day() == localEnd.Day() || end.Sub(start) <= 24*time.Hour {
			return localStart.Format("Mon, Jan 2") + " (all day)"
		}
		return fmt.Sprintf("%s - %s (all day)", localStart.Format("Mon, Jan 2"), localEnd.Add(-24*time.Hour).Format("Mon, Jan 2"))
	}

	if localStart.Day() == localEnd.Day() {
		return fmt.Sprintf("%s, %s - %s", localStart.Format("Mon, Jan 2"), localStart.Format("3:04 PM"), localEnd.Format("3:04 PM"))
	}
	return fmt.Sprintf("%s - %s", localStart.Format("Mon, Jan 2 3:04 PM"), localEnd.Format("Mon, Jan 2 3:04 PM"))
}

// parseDateTime parses "YYYY-MM-DD HH:MM", "HH:MM" (today), "today
// HH:MM", or "tomorrow HH:MM" in the local timezone.
func parseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	replace := func(prefix string, day time.Time) (time.Time, error) {
		clock, err := time.Parse("15:04", strings.TrimSpace(strings.TrimPrefix(s, prefix)))
		if err != nil {
			return time.Time{}, err
		}
		return day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute), nil
	}

	switch {
	case strings.HasPrefix(s, "today "):
		return replace("today ", today)
	case strings.HasPrefix(s, "tomorrow "):
		return replace("tomorrow ", today.AddDate(0, 0, 1))
	}

	if t, err := time.ParseInLocation("2006-01-02 15:04", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse("15:04", s); err == nil {
		return today.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
	}

	return time.Time{}, fmt.Errorf("unable to parse time: %q (use 'YYYY-MM-DD HH:MM', 'HH:MM', 'today HH:MM', or 'tomorrow HH:MM')", s)
}

// parseDate parses a bare date: "YYYY-MM-DD", "today", or "tomorrow",
// at local midnight.
func parseDate(s string) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch s {
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	}

	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %q (use YYYY-MM-DD, 'today', or 'tomorrow')", s)
}

// expandPath expands ~ to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
