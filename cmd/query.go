package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"medicopilot/src/core/rag"
)

var (
	queryMaxResults int
	queryJSON       bool
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question against the ingested documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryMaxResults, "max-results", "k", 0, "number of chunks to retrieve (default rag.max_results)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the answer as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	maxResults := viper.GetInt("rag.max_results")
	if cmd.Flags().Changed("max-results") {
		maxResults = queryMaxResults
	}
	if err := rag.ValidateQuestion(question, maxResults); err != nil {
		return err
	}

	c, err := buildComponents()
	if err != nil {
		return err
	}

	answer := c.retrieval.Answer(cmd.Context(), question, maxResults)
	if queryJSON {
		return printJSON(cmd.OutOrStdout(), answer)
	}
	printAnswer(cmd.OutOrStdout(), answer)
	return nil
}

func printAnswer(w io.Writer, answer *rag.Answer) {
	fmt.Fprintln(w, answer.Answer)
	if len(answer.Sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, s := range answer.Sources {
		fmt.Fprintf(w, "  %d. %s (fragment %d, relevance %.2f)\n", i+1, s.Filename, s.ChunkIndex, s.RelevanceScore)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
