package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	queryTopK  int
	queryDebug bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question against the uploaded documents",
	Long: `Retrieves the chunks closest to the question and prints the
extractive answer with its source files.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (server default when 0)")
	queryCmd.Flags().BoolVar(&queryDebug, "debug", false, "show the retrieved chunks")
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(healthCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	res, err := newClient().Query(cmd.Context(), args[0], queryTopK, queryDebug)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if outputJSON {
		return printJSON(cmd, res)
	}

	cmd.Println(res.Answer)
	if len(res.Sources) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, s := range res.Sources {
			cmd.Printf("  - %s\n", s)
		}
	}
	for _, c := range res.Chunks {
		cmd.Printf("\n  [%d] %s #%d (%.4f)\n      %s\n", c.Rank, c.Filename, c.ChunkID, c.Score, c.Text)
	}
	return nil
}

func runHealth(cmd *cobra.Command, _ []string) error {
	res, err := newClient().Health(cmd.Context())
	if outputJSON && res.Status != "" {
		if perr := printJSON(cmd, res); perr != nil {
			return perr
		}
	} else if res.Status != "" {
		cmd.Printf("%s: %s\n", res.Service, res.Status)
		for name, state := range res.Checks {
			cmd.Printf("  %s: %s\n", name, state)
		}
	}
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
