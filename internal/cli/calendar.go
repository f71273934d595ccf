package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/calsync/internal/control"
	"github.com/vietddude/calsync/internal/eventsync/orchestrator"
	"github.com/vietddude/calsync/internal/eventsync/recovery"
	"github.com/vietddude/calsync/internal/infra/calendar"
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Calendar administration",
}

var calendarTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Create and delete a test event with the configured credentials",
	Run:   runCalendarTest,
}

var calendarValidateCmd = &cobra.Command{
	Use:   "validate <credentials.json>",
	Short: "Check a service account credentials file",
	Args:  cobra.ExactArgs(1),
	Run:   runCalendarValidate,
}

func init() {
	calendarCmd.AddCommand(calendarTestCmd)
	calendarCmd.AddCommand(calendarValidateCmd)
	rootCmd.AddCommand(calendarCmd)
}

func runCalendarTest(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if !cfg.Calendar.Enabled {
		slog.Error("Calendar integration is disabled; configure credentials first")
		os.Exit(1)
	}

	svc := orchestrator.NewService(
		control.CalendarConnector(cfg.Calendar),
		nil,
		orchestrator.Config{CalendarID: cfg.Calendar.CalendarID, Location: cfg.Calendar.Location},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := svc.TestConnection(ctx)
	if err != nil {
		slog.Error("Calendar connection test failed", "reason", recovery.UserMessage(err), "error", err)
		os.Exit(1)
	}
	fmt.Printf("calendar %s reachable: test event %s created and deleted\n", cfg.Calendar.CalendarID, res.ID)
}

func runCalendarValidate(cmd *cobra.Command, args []string) {
	stylelog.InitDefault()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		slog.Error("Failed to read credentials", "path", args[0], "error", err)
		os.Exit(1)
	}
	if err := calendar.ValidateCredentials(raw); err != nil {
		slog.Error("Invalid credentials", "error", err)
		os.Exit(1)
	}
	fmt.Println("credentials look valid")
}
