package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/calsync/internal/core/domain"
)

var serverAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show calendar sync status of a running service",
	Run:   runStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "http://localhost:8080", "address of a running calsync service")
	rootCmd.AddCommand(statusCmd)
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

func runStatus(cmd *cobra.Command, args []string) {
	stylelog.InitDefault()

	resp, err := httpClient.Get(serverAddr + "/status")
	if err != nil {
		slog.Error("Failed to reach calsync", "addr", serverAddr, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var st domain.SyncStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		slog.Error("Failed to decode status", "error", err)
		os.Exit(1)
	}
	printStatus(st)
}

func printStatus(st domain.SyncStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "CALENDAR\t%s\n", st.CalendarID)
	_, _ = fmt.Fprintf(w, "STATE\t%s\n", st.State)
	lastSync := "never"
	if !st.LastSync.IsZero() {
		lastSync = st.LastSync.Format(time.RFC3339)
	}
	_, _ = fmt.Fprintf(w, "LAST SYNC\t%s\n", lastSync)
	_, _ = fmt.Fprintf(w, "QUEUED RETRIES\t%d\n", st.QueueSize)
	_, _ = fmt.Fprintf(w, "TOTAL ERRORS\t%d\n", st.TotalErrors)

	ops := make([]string, 0, len(st.ErrorsByOperation))
	for op := range st.ErrorsByOperation {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)
	for _, op := range ops {
		_, _ = fmt.Fprintf(w, "  %s\t%d\n", op, st.ErrorsByOperation[domain.Operation(op)])
	}
	_ = w.Flush()

	if len(st.RecentErrors) == 0 {
		return
	}
	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tOPERATION\tAPPOINTMENT\tRETRIES\tERROR")
	for _, e := range st.RecentErrors {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			e.Timestamp.Format(time.RFC3339), e.Operation, e.AppointmentID, e.RetryCount, e.ErrorMsg)
	}
	_ = w.Flush()
}
