package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/papertrail/internal/gateway"
	"github.com/ppiankov/papertrail/internal/model"
	"github.com/ppiankov/papertrail/internal/reconcile"
)

var (
	suggestText     string
	suggestClaimIDs []string
	suggestOut      string
	suggestTimeout  time.Duration
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [claims.json]",
	Short: "Suggest citations for uncited claims",
	Long: `Suggest looks up candidate citations for uncited and weakly cited claims
in a snapshot and merges them into each claim, skipping duplicates.

With --text it prints suggestions for a single statement instead.

The provider is set by suggest.provider: backend (default), openai,
anthropic or ollama. Results are cached by claim text.

Example:
  papertrail suggest claims.json
  papertrail suggest claims.json --claim c3
  papertrail suggest --text "Graph networks outperform CNNs on molecules"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	suggestCmd.Flags().StringVar(&suggestText, "text", "", "suggest citations for this statement only")
	suggestCmd.Flags().StringArrayVar(&suggestClaimIDs, "claim", nil, "claim id to look up (repeatable)")
	suggestCmd.Flags().StringVarP(&suggestOut, "out", "o", "", "output path (default: overwrite the input snapshot)")
	suggestCmd.Flags().DurationVar(&suggestTimeout, "timeout", 5*time.Minute, "total timeout")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	provider, err := a.suggester()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), suggestTimeout)
	defer cancel()

	if !provider.IsAvailable(ctx) {
		return fmt.Errorf("suggestion provider %s is not available, check suggest.api_key and suggest.base_url", provider.Name())
	}

	if suggestText != "" {
		list, err := provider.SuggestCitations(ctx, suggestText)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reconcile.MergeSuggestions(list))
	}
	if len(args) == 0 {
		return errors.New("pass a claims snapshot or --text")
	}

	input := args[0]
	claims, err := readClaims(input)
	if err != nil {
		return err
	}
	store := reconcile.New()
	if err := store.SeedFrom(claims); err != nil {
		return err
	}
	gw := gateway.New(store, gateway.WithSuggester(provider), gateway.WithLogger(a.logger))

	ids, err := selectClaims(claims, suggestClaimIDs, "", func(c model.Claim) bool {
		return c.Status.NeedsCitation()
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "⚙️  Looking up citations for %d claims with %s\n", len(ids), provider.Name())

	failed := 0
	for _, id := range ids {
		c, err := gw.Suggest(ctx, id)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", id, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "✓ %s: %d suggestions\n", id, len(c.Suggestions))
	}

	out := suggestOut
	if out == "" {
		out = input
	}
	if err := writeSnapshot(out, readSnapshotJob(input), store.Snapshot()); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d lookups failed", failed, len(ids))
	}
	return nil
}
