// Package cli implements the ragctl command line client.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rag-pipeline/internal/client"
)

// DefaultServer is used when neither --server nor RAG_SERVER is set.
const DefaultServer = "http://localhost:10000"

var (
	serverURL  string
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Command line client for the RAG Pipeline API",
	Long: `ragctl uploads documents to a RAG Pipeline server, asks questions
against them, and manages the stored documents.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("RAG_SERVER", DefaultServer), "server base URL (env RAG_SERVER)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print raw JSON responses")
}

// Execute runs the root command, printing results to stdout.
func Execute() error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.Execute()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *client.Client {
	return client.New(serverURL)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
