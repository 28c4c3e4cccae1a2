package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"docqa/internal/app"
	"docqa/internal/model"
)

var (
	fileID       string
	askFileID    string
	jsonOutput   bool
	previewLimit int
)

func init() {
	ingestCmd.Flags().StringVar(&fileID, "id", "", "file_id to store the document under (default: new uuid)")
	askCmd.Flags().StringVar(&askFileID, "file", "", "restrict the answer to one file_id")
	askCmd.Flags().BoolVar(&jsonOutput, "json", false, "print {answer, intent} as JSON")
	textCmd.Flags().BoolVar(&jsonOutput, "json", false, "print pages as JSON")
	chunksCmd.Flags().IntVar(&previewLimit, "limit", 10, "number of chunks to show (0 for all)")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Extract, store and index a PDF or image",
	Long: `Extract text from a document and index it under a file_id.

Examples:
  docqa ingest report.pdf
  docqa ingest --id 6f1c... scan.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(false)
		if err != nil {
			return err
		}
		defer engine.Close()

		id := strings.TrimSpace(fileID)
		if id == "" {
			id = uuid.NewString()
		}
		res, err := engine.RAG.Ingest(cmd.Context(), id, args[0])
		if err != nil {
			return err
		}
		return printIngest(cmd.OutOrStdout(), res)
	},
}

var reingestCmd = &cobra.Command{
	Use:   "reingest <file_id> <path>",
	Short: "Replace everything stored for a file_id with a fresh ingestion",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(false)
		if err != nil {
			return err
		}
		defer engine.Close()

		res, err := engine.RAG.Reingest(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printIngest(cmd.OutOrStdout(), res)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed documents",
	Long: `Answer a question strictly from indexed content.

Examples:
  docqa ask "What is the refund policy?"
  docqa ask --file 6f1c... "show full document"
  docqa ask --file 6f1c... "extract questions"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(true)
		if err != nil {
			return err
		}
		defer engine.Close()

		ans, err := engine.RAG.Answer(cmd.Context(), strings.Join(args, " "), askFileID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), ans)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), ans.Text)
		return err
	},
}

var textCmd = &cobra.Command{
	Use:   "text <file_id>",
	Short: "Print the extracted text of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(false)
		if err != nil {
			return err
		}
		defer engine.Close()

		pages, err := engine.RAG.GetRawText(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(pages) == 0 {
			return fmt.Errorf("%s", app.MsgNoText)
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), struct {
				FileID    string       `json:"file_id"`
				PageCount int          `json:"page_count"`
				Pages     []model.Page `json:"pages"`
			}{args[0], len(pages), pages})
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), app.FormatPages(pages))
		return err
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <file_id>",
	Short: "Remove a file's raw text and indexed chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(false)
		if err != nil {
			return err
		}
		defer engine.Close()

		if engine.RAG.Delete(cmd.Context(), args[0]) {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		} else {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "nothing stored for %s\n", args[0])
		}
		return err
	},
}

var chunksCmd = &cobra.Command{
	Use:   "chunks",
	Short: "Preview indexed chunks in insertion order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		engine, err := openEngine(false)
		if err != nil {
			return err
		}
		defer engine.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d chunks indexed\n", engine.RAG.ChunkCount())
		for _, c := range engine.RAG.PreviewChunks(previewLimit) {
			fmt.Fprintf(out, "--- %s page %d\n%s\n", c.FileID, c.Page, c.Text)
		}
		return nil
	},
}

func printIngest(w io.Writer, res *app.IngestResult) error {
	_, err := fmt.Fprintf(w, "file_id=%s pages=%d chunks=%d\n", res.FileID, res.PageCount, res.ChunkCount)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
