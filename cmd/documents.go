package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Inspect and remove stored documents",
}

var documentsSummaryCmd = &cobra.Command{
	Use:   "summary <document-id>",
	Short: "Show chunk count and content length of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildComponents()
		if err != nil {
			return err
		}
		summary, err := c.documents.Summarize(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), summary)
	},
}

var documentsChunksCmd = &cobra.Command{
	Use:   "chunks <document-id>",
	Short: "List the chunks of a document in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildComponents()
		if err != nil {
			return err
		}
		chunks, err := c.documents.Chunks(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), chunks)
	},
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete every chunk of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildComponents()
		if err != nil {
			return err
		}
		if err := c.documents.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Document %s deleted\n", args[0])
		return nil
	},
}

var documentsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store-wide counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildComponents()
		if err != nil {
			return err
		}
		stats, err := c.documents.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

func init() {
	documentsCmd.AddCommand(documentsSummaryCmd, documentsChunksCmd, documentsDeleteCmd, documentsStatsCmd)
	rootCmd.AddCommand(documentsCmd)
}
