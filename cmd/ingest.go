package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"medicopilot/src/core/extract"
	"medicopilot/src/core/upload"
	"medicopilot/src/fsutil"
	"medicopilot/src/log"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Ingest files or directories of documents",
	Long: `Ingest reads every supported file (.pdf, .txt, .docx) under the given
paths and stores it in the vector store. Directories are walked recursively.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	fs := fsutil.NewLocalFileStore()

	files, err := collectFiles(fs, args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported files found")
	}

	c, err := buildComponents()
	if err != nil {
		return err
	}
	uploads, err := c.uploadService(ctx)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("ingesting"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var failed int
	for _, path := range files {
		bar.Describe(filepath.Base(path))

		if err := ingestFile(cmd, fs, uploads, path); err != nil {
			failed++
			log.Error(err, "Failed to ingest file", "path", path)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	fmt.Fprintf(cmd.OutOrStdout(), "%d ingested, %d failed\n", len(files)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func ingestFile(cmd *cobra.Command, fs fsutil.FileStore, uploads *upload.Service, path string) error {
	content, err := fs.ReadFile(path)
	if err != nil {
		return err
	}
	result, err := uploads.Ingest(cmd.Context(), filepath.Base(path), content)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d chunks\n", result.DocumentID, path, result.TotalChunks)
	return nil
}

// collectFiles expands directories into the supported files they contain.
func collectFiles(fs fsutil.FileStore, paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if !extract.IsSupported(p) {
				return nil, fmt.Errorf("unsupported file type: %s", p)
			}
			files = append(files, p)
			continue
		}
		found, err := fs.ListFiles(p, extract.IsSupported)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}
