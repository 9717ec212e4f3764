package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pdfchat/internal/app"
	"github.com/fyrsmithlabs/pdfchat/internal/chunker"
	"github.com/fyrsmithlabs/pdfchat/internal/tui"
)

func newSearchCmd() *cobra.Command {
	var width int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the chunks retrieved for a query",
		Long: `Run retrieval only and print each selected chunk with its similarity
score and page number. No chat model is called.

Examples:
  pdfchat search "File type associations" -k 10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := setup(cmd, setupOptions{})
			if err != nil {
				return err
			}
			defer rt.close()

			a, err := rt.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			matches, err := a.Retriever.Invoke(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "no matching chunks")
				return nil
			}
			for _, m := range matches {
				fmt.Fprintf(out, "* %s\n", tui.FormatSource(m, width))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 100, "snippet width in characters")
	return cmd
}

func newChunksCmd() *cobra.Command {
	var show int

	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "Extract and split the document without embedding it",
		Long: `Load the configured document, split it with the configured chunk size,
overlap and separator and print statistics. Useful for tuning chunking
before paying for embeddings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := setup(cmd, setupOptions{})
			if err != nil {
				return err
			}
			defer rt.close()

			docs, chunks, err := app.Load(ctx, rt.cfg, rt.buildOptions()...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			st := chunkStats(chunks)
			fmt.Fprintf(out, "Document:  %s\n", rt.cfg.PDFDocument)
			fmt.Fprintf(out, "Pages:     %d\n", len(docs))
			fmt.Fprintf(out, "Chunks:    %d\n", st.count)
			if st.count > 0 {
				fmt.Fprintf(out, "Bytes:     min %d, max %d, avg %.1f\n", st.min, st.max, st.avg)
			}
			for i := 0; i < show && i < len(chunks); i++ {
				c := chunks[i]
				fmt.Fprintf(out, "\n[%d] p.%d %d-%d\n%s\n", i, c.Page, c.Start, c.End, c.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&show, "show", 0, "print the first N chunks")
	return cmd
}

type stats struct {
	count    int
	min, max int
	avg      float64
}

func chunkStats(chunks []chunker.Chunk) stats {
	st := stats{count: len(chunks)}
	if st.count == 0 {
		return st
	}
	total := 0
	st.min = chunks[0].Len()
	for _, c := range chunks {
		n := c.Len()
		total += n
		st.min = min(st.min, n)
		st.max = max(st.max, n)
	}
	st.avg = float64(total) / float64(st.count)
	return st
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pdfchat by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
