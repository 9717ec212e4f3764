// Command pdfchat answers questions about a PDF document with a local
// retrieval-augmented chat model.
//
// Usage:
//
//	# Run the scripted demo questions against ./materials/doc.pdf
//	pdfchat ask --pdf ./materials/doc.pdf
//
//	# Interactive chat with the metrics endpoint enabled
//	pdfchat chat --tui --serve
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// globalFlags are the persistent flags shared by every command. Only flags
// the user set are passed on as config overrides.
type globalFlags struct {
	configPath   string
	pdf          string
	model        string
	searchType   string
	k            int
	chunkSize    int
	chunkOverlap int
	backend      string
	logLevel     string
	serve        bool
	port         int
}

var flags globalFlags

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps configuration problems to 2 and everything else to 1.
func exitCode(err error) int {
	if errors.Is(err, qaerr.ErrConfig) {
		return 2
	}
	return 1
}

func newRootCmd() *cobra.Command {
	flags = globalFlags{}

	root := &cobra.Command{
		Use:   "pdfchat",
		Short: "Chat with a PDF document",
		Long: `pdfchat loads a PDF, splits it into chunks, embeds them into an in-memory
vector index and answers questions with a chat model, keeping the
conversation history of the session.

Configuration is read from --config, ./pdfchat.yaml or
$XDG_CONFIG_HOME/pdfchat/config.yaml, then PDFCHAT_* environment variables,
then flags.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file path")
	pf.StringVar(&flags.pdf, "pdf", "", "PDF document to index")
	pf.StringVarP(&flags.model, "model", "m", "", "chat model name")
	pf.StringVar(&flags.searchType, "search-type", "", "retrieval strategy: similarity, mmr or similarityWithScoreThreshold")
	pf.IntVarP(&flags.k, "k", "k", 0, "chunks retrieved per question")
	pf.IntVar(&flags.chunkSize, "chunk-size", 0, "maximum chunk length in characters")
	pf.IntVar(&flags.chunkOverlap, "chunk-overlap", 0, "characters shared by consecutive chunks")
	pf.StringVar(&flags.backend, "index", "", "vector index backend: memory or chromem")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.BoolVar(&flags.serve, "serve", false, "expose /health and /metrics while running")
	pf.IntVar(&flags.port, "port", 0, "port for --serve")

	root.AddCommand(
		newAskCmd(),
		newChatCmd(),
		newSearchCmd(),
		newChunksCmd(),
		newVersionCmd(),
	)
	return root
}

// overrides converts the flags the user set into config keys.
func overrides(cmd *cobra.Command) map[string]any {
	out := map[string]any{}
	set := func(name, key string, val any) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			out[key] = val
		}
	}
	set("pdf", "pdf_document", flags.pdf)
	set("model", "model", flags.model)
	set("search-type", "search_type", flags.searchType)
	set("k", "k_documents", flags.k)
	set("chunk-size", "chunk_size", flags.chunkSize)
	set("chunk-overlap", "chunk_overlap", flags.chunkOverlap)
	set("index", "index.backend", flags.backend)
	set("log-level", "logging.level", flags.logLevel)
	set("serve", "server.enabled", flags.serve)
	set("port", "server.port", flags.port)
	return out
}
