package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"
)

var syncCmd = &cobra.Command{
	Use:   "sync <appointment-id>",
	Short: "Sync one appointment to the calendar through a running service",
	Args:  cobra.ExactArgs(1),
	Run:   runSync,
}

var appointmentFile string

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Trigger processing of queued calendar retries",
	Run:   runRetry,
}

func init() {
	syncCmd.Flags().StringVarP(&appointmentFile, "file", "f", "", "appointment JSON to save before syncing")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(retryCmd)
}

func runSync(cmd *cobra.Command, args []string) {
	stylelog.InitDefault()

	var out struct {
		AppointmentID  string `json:"appointment_id"`
		CalendarSynced bool   `json:"calendar_synced"`
		EventID        string `json:"event_id"`
		Warning        string `json:"warning"`
		Error          string `json:"error"`
	}
	var body io.Reader
	if appointmentFile != "" {
		raw, err := os.ReadFile(appointmentFile)
		if err != nil {
			slog.Error("Failed to read appointment", "path", appointmentFile, "error", err)
			os.Exit(1)
		}
		body = bytes.NewReader(raw)
	}
	code := post("/appointments/"+url.PathEscape(args[0])+"/sync", body, &out)
	if code != http.StatusOK {
		slog.Error("Sync request failed", "status", code, "error", out.Error)
		os.Exit(1)
	}
	if !out.CalendarSynced {
		slog.Warn(out.Warning, "appointment_id", out.AppointmentID)
		return
	}
	fmt.Printf("appointment %s synced as event %s\n", out.AppointmentID, out.EventID)
}

func runRetry(cmd *cobra.Command, args []string) {
	stylelog.InitDefault()

	var out struct {
		Scheduled int `json:"scheduled"`
	}
	if code := post("/retries", nil, &out); code != http.StatusAccepted {
		slog.Error("Retry request failed", "status", code)
		os.Exit(1)
	}
	fmt.Printf("scheduled %d retries\n", out.Scheduled)
}

func post(path string, body io.Reader, out any) int {
	resp, err := httpClient.Post(serverAddr+path, "application/json", body)
	if err != nil {
		slog.Error("Failed to reach calsync", "addr", serverAddr, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		slog.Error("Failed to decode response", "error", err)
		os.Exit(1)
	}
	return resp.StatusCode
}
