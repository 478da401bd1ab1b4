package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var (
		userID  int64
		asJSON  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single financial question",
		Example: `  finmesh ask "Is it a good time to invest in gold ETFs?"
  finmesh ask --user-id 42 "Should I rebalance my portfolio?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := wireApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			var uid *int64
			if userID != 0 {
				uid = &userID
			}

			res := a.mesh.Advise(cmd.Context(), strings.Join(args, " "), uid)

			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res.Answer)
			}

			if _, err := fmt.Fprintln(out, res.Answer.Answer); err != nil {
				return err
			}

			if len(res.Answer.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, src := range res.Answer.Sources {
					fmt.Fprintf(out, "  - %s\n", src)
				}
			}

			if verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "\nrun=%s outcome=%s portfolio=%t\n", res.RunID, res.Outcome, res.PortfolioUsed)
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&userID, "user-id", 0, "user whose stored portfolio grounds the advice")
	flags.BoolVar(&asJSON, "json", false, "print the answer as JSON")
	flags.BoolVarP(&verbose, "verbose", "v", false, "print run details to stderr")

	return cmd
}
