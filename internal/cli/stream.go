package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/papertrail/internal/coordinator"
	"github.com/ppiankov/papertrail/internal/model"
)

var (
	streamOut     string
	streamTimeout time.Duration
	metricsAddr   string
)

var streamCmd = &cobra.Command{
	Use:   "stream [job-id]",
	Short: "Stream the claims of a job",
	Long: `Stream follows the claim stream of a job and prints the claim snapshot as
JSON once the job is done. Progress goes to stderr.

Without a job id the last uploaded job is resumed. When the stream fails,
the claims received so far are still written. A stream that ends without
a done record counts as failed and the command exits non-zero.

Example:
  papertrail stream
  papertrail stream 7f3c... --out claims.json
  papertrail stream --metrics-addr :9090`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStream,
}

func init() {
	rootCmd.AddCommand(streamCmd)

	streamCmd.Flags().StringVarP(&streamOut, "out", "o", "", "write the claim snapshot to this file (default stdout)")
	addStreamFlags(streamCmd)
}

// addStreamFlags registers the flags shared by commands that stream
func addStreamFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&streamTimeout, "stream-timeout", 0, "give up on the stream after this long (0 waits forever)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while streaming")
}

func runStream(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	key, err := a.credential()
	if err != nil {
		return err
	}

	jobID := a.creds.LastJob()
	if len(args) == 1 {
		jobID = args[0]
	}
	if jobID == "" {
		return fmt.Errorf("no job to stream: pass a job id or run 'papertrail upload' first")
	}

	return streamJob(cmd.Context(), a, jobID, key, streamOut)
}

// streamJob tracks jobID until it is done, failed or interrupted and
// writes whatever claims arrived
func streamJob(parent context.Context, a *app, jobID, key, out string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if streamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, streamTimeout)
		defer cancel()
	}

	addr := metricsAddr
	if addr == "" {
		addr = a.cfg.Metrics.Addr
	}
	a.serveMetrics(ctx, addr)

	coord := coordinator.New(a.client, nil,
		coordinator.WithLogger(a.logger),
		coordinator.WithMetrics(a.metrics),
	)
	if err := coord.Track(jobID, key); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "⚙️  Streaming job %s\n", jobID)

	done := make(chan struct{})
	go reportProgress(coord, done)

	status, waitErr := coord.Wait(ctx)
	close(done)
	if waitErr != nil {
		coord.Stop()
		status = coord.Status()
	}

	fmt.Fprintf(os.Stderr, "\n")
	if err := writeSnapshot(out, jobID, coord.Snapshot()); err != nil {
		return err
	}

	switch {
	case waitErr != nil:
		return fmt.Errorf("stream interrupted with %d claims: %w", status.Claims, waitErr)
	case status.State == coordinator.Errored:
		return fmt.Errorf("stream failed with %d claims: %s", status.Claims, status.Message())
	}

	fmt.Fprintf(os.Stderr, "✓ Job %s done: %d claims", jobID, status.Claims)
	if status.DecodeErrors > 0 {
		fmt.Fprintf(os.Stderr, " (%d unreadable lines skipped)", status.DecodeErrors)
	}
	fmt.Fprintln(os.Stderr)
	return nil
}

// reportProgress rewrites one stderr status line on every change
func reportProgress(coord *coordinator.Coordinator, done <-chan struct{}) {
	for {
		ch := coord.Changes()
		printProgress(coord.Status())

		select {
		case <-ch:
		case <-done:
			return
		}
	}
}

func printProgress(st coordinator.Status) {
	phase := "waiting"
	pct := 0
	if st.Progress != nil {
		phase = string(st.Progress.Phase)
		pct = st.Progress.Percent()
	}
	fmt.Fprintf(os.Stderr, "\r  %-8s %3d%%  claims: %-5d state: %-9s", phase, pct, st.Claims, st.State)
}

// claimLine formats one claim for human output
func claimLine(c model.Claim) string {
	status := c.Status.Present()
	verdict := c.Verdict.Present()
	line := fmt.Sprintf("%s %-12s %s %-19s %s", status.Symbol, status.Label, verdict.Symbol, verdict.Label, c.ID)
	if c.Confidence != nil {
		line += fmt.Sprintf(" (%.0f%%)", *c.Confidence*100)
	}
	return line
}
