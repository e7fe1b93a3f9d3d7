package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/papertrail/internal/model"
)

var showCmd = &cobra.Command{
	Use:   "show <claims.json>",
	Short: "Print a claim snapshot as a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		claims, err := readClaims(args[0])
		if err != nil {
			return err
		}

		counts := make(map[model.ClaimStatus]int)
		for _, c := range claims {
			counts[c.Status]++
			fmt.Println(claimLine(c))
			fmt.Printf("    %s\n", c.Text)
			for _, s := range c.Suggestions {
				fmt.Printf("    ↳ %s %s\n", s.Title, s.URL)
			}
		}

		fmt.Println()
		for _, st := range model.ClaimStatuses() {
			p := st.Present()
			fmt.Printf("%s %-12s %d\n", p.Symbol, p.Label, counts[st])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
