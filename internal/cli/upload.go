package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	uploadTimeout  time.Duration
	uploadNoStream bool
	uploadOut      string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <paper.pdf>",
	Short: "Upload a paper and stream its claims",
	Long: `Upload sends a paper to the backend, saves the returned job id for
'papertrail stream' to resume, and then streams the job's claims.

Example:
  papertrail upload paper.pdf
  papertrail upload paper.pdf --out claims.json
  papertrail upload paper.pdf --no-stream`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().DurationVar(&uploadTimeout, "timeout", 2*time.Minute, "upload timeout")
	uploadCmd.Flags().BoolVar(&uploadNoStream, "no-stream", false, "print the job id and exit")
	uploadCmd.Flags().StringVarP(&uploadOut, "out", "o", "", "write the claim snapshot to this file (default stdout)")
	addStreamFlags(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	key, err := a.credential()
	if err != nil {
		return err
	}

	doc, err := readDocument(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), uploadTimeout)
	jobID, err := a.client.UploadPaper(ctx, doc, key)
	cancel()
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	if err := a.creds.SaveJob(jobID); err != nil {
		a.logger.Warn("could not save job id", "job_id", jobID, "error", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Uploaded %s (job %s)\n", doc.Name, jobID)

	if uploadNoStream {
		fmt.Println(jobID)
		return nil
	}
	return streamJob(cmd.Context(), a, jobID, key, uploadOut)
}
