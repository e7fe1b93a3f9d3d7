package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/papertrail/internal/gateway"
	"github.com/ppiankov/papertrail/internal/model"
	"github.com/ppiankov/papertrail/internal/reconcile"
	"github.com/ppiankov/papertrail/internal/worker"
)

var (
	verifySource     string
	verifyJob        string
	verifyClaimIDs   []string
	verifyClaimsFile string
	verifyOut        string
	verifyWorkers    int
	verifyTimeout    time.Duration
	verifyAll        bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <claims.json>",
	Short: "Verify claims against a source document",
	Long: `Verify checks claims from a snapshot written by 'papertrail stream' against
a source document and records the verdicts in the snapshot.

By default every claim without a verdict is verified. Requests run in
parallel with a configurable worker count.

Example:
  papertrail verify claims.json --source cited-paper.pdf
  papertrail verify claims.json --source src.pdf --claim c1 --claim c7
  papertrail verify claims.json --source src.pdf --claims-file ids.txt --workers 8`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifySource, "source", "", "source document to verify against (required)")
	verifyCmd.Flags().StringVar(&verifyJob, "job", "", "job id (default: the snapshot's job, then the last upload)")
	verifyCmd.Flags().StringArrayVar(&verifyClaimIDs, "claim", nil, "claim id to verify (repeatable)")
	verifyCmd.Flags().StringVar(&verifyClaimsFile, "claims-file", "", "file with one claim id per line")
	verifyCmd.Flags().BoolVar(&verifyAll, "all", false, "verify claims that already have a verdict too")
	verifyCmd.Flags().StringVarP(&verifyOut, "out", "o", "", "output path (default: overwrite the input snapshot)")
	verifyCmd.Flags().IntVar(&verifyWorkers, "workers", 0, "concurrent verifications (default concurrency.verify_workers)")
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 10*time.Minute, "total timeout")
	_ = verifyCmd.MarkFlagRequired("source")
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	key, err := a.credential()
	if err != nil {
		return err
	}

	input := args[0]
	claims, err := readClaims(input)
	if err != nil {
		return err
	}
	jobID := resolveJob(a, verifyJob, input)
	if jobID == "" {
		return model.Missing("job id")
	}

	doc, err := readDocument(verifySource)
	if err != nil {
		return err
	}

	store := reconcile.New()
	if err := store.SeedFrom(claims); err != nil {
		return err
	}
	gw := gateway.New(store, gateway.WithVerifier(a.client), gateway.WithLogger(a.logger))

	ids, err := selectClaims(claims, verifyClaimIDs, verifyClaimsFile, func(c model.Claim) bool {
		return verifyAll || c.Verdict == model.VerdictNone
	})
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to verify")
		return nil
	}

	workers := verifyWorkers
	if workers <= 0 {
		workers = a.cfg.Concurrency.VerifyWorkers
	}

	fmt.Fprintf(os.Stderr, "⚙️  Verifying %d claims of job %s against %s with %d workers\n", len(ids), jobID, doc.Name, workers)

	ctx, cancel := context.WithTimeout(cmd.Context(), verifyTimeout)
	defer cancel()

	results := worker.NewBatchVerifier(gw, workers, a.logger).VerifyClaims(ctx, jobID, ids, doc, key)

	failed := 0
	for _, res := range results {
		if res.Error != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", res.ClaimID, res.Error)
			continue
		}
		fmt.Fprintf(os.Stderr, "%s\n", claimLine(*res.Claim))
	}

	out := verifyOut
	if out == "" {
		out = input
	}
	if err := writeSnapshot(out, jobID, store.Snapshot()); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n  Verified: %d  Failed: %d  Output: %s\n", len(results)-failed, failed, out)
	if failed > 0 {
		return fmt.Errorf("%d of %d verifications failed", failed, len(results))
	}
	return nil
}

// resolveJob picks the flag, then the snapshot's job, then the saved job
func resolveJob(a *app, flagJob, snapshotPath string) string {
	if flagJob != "" {
		return flagJob
	}
	if id := readSnapshotJob(snapshotPath); id != "" {
		return id
	}
	return a.creds.LastJob()
}

// selectClaims returns explicit ids from flags or file, else every claim
// accepted by keep
func selectClaims(claims []model.Claim, ids []string, file string, keep func(model.Claim) bool) ([]string, error) {
	if file != "" {
		fromFile, err := worker.ReadClaimIDsFromFile(file)
		if err != nil {
			return nil, err
		}
		ids = append(ids, fromFile...)
	}
	if len(ids) > 0 {
		return ids, nil
	}

	for _, c := range claims {
		if keep(c) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}
