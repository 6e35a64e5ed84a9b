package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"rag-pipeline/internal/client"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [files...]",
	Short: "Upload documents for indexing",
	Long: `Uploads PDF, DOCX, Markdown or text files in one request.
Directories are expanded to the supported files below them.
The server rejects the whole request if any file breaks a limit.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var docsCmd = &cobra.Command{
	Use:   "docs [document-id]",
	Short: "List stored documents, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDocs,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	paths, err := client.ExpandPaths(cmd.Context(), args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no uploadable files found")
	}

	res, err := newClient().Upload(cmd.Context(), paths...)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	if outputJSON {
		return printJSON(cmd, res)
	}

	cmd.Println(res.Message)
	for _, d := range res.Documents {
		cmd.Printf("  %s  %s (%d chunks)\n", d.DocumentID, d.Filename, d.Chunks)
	}
	cmd.Printf("Total chunks: %d\n", res.TotalChunks)
	return nil
}

func runDocs(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return runShowDocument(cmd, args[0])
	}

	res, err := newClient().Metadata(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing documents failed: %w", err)
	}
	if outputJSON {
		return printJSON(cmd, res)
	}

	if len(res.Documents) == 0 {
		cmd.Println("No documents.")
		return nil
	}
	cmd.Printf("%d documents, %d chunks\n\n", res.TotalDocuments, res.TotalChunks)
	for _, d := range res.Documents {
		cmd.Printf("  %s  %-30s %5d chunks  %s\n", d.DocumentID, d.Filename, d.ChunkCount, d.UploadDate)
	}
	return nil
}

func runShowDocument(cmd *cobra.Command, documentID string) error {
	doc, err := newClient().Document(cmd.Context(), documentID)
	if err != nil {
		return fmt.Errorf("loading document failed: %w", err)
	}
	if outputJSON {
		return printJSON(cmd, doc)
	}

	cmd.Printf("ID:       %s\n", doc.DocumentID)
	cmd.Printf("File:     %s\n", doc.Filename)
	cmd.Printf("Uploaded: %s\n", doc.UploadDate)
	cmd.Printf("Chunks:   %d\n", doc.ChunkCount)
	if len(doc.Metadata) > 0 {
		cmd.Printf("Metadata: %s\n", doc.Metadata)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	res, err := newClient().Delete(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	if outputJSON {
		return printJSON(cmd, res)
	}

	if !res.Deleted {
		cmd.Printf("Document %s not found.\n", res.DocumentID)
		return nil
	}
	cmd.Printf("Deleted %s (%d chunks).\n", res.DocumentID, res.ChunksRemoved)
	return nil
}
