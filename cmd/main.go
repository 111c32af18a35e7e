package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/pkg/config"
	"github.com/xhad/handbook/pkg/llm"
	"github.com/xhad/handbook/pkg/logger"
	"github.com/xhad/handbook/pkg/rag"
	"github.com/xhad/handbook/pkg/store"
)

var stateLabels = map[rag.State]string{
	rag.StateReceived:   "📨 Reading question...",
	rag.StateCondensing: "✏️  Rewriting follow-up...",
	rag.StateRetrieving: "🔍 Searching documents...",
	rag.StateNoContext:  "🤷 Nothing relevant found",
	rag.StateComposing:  "🤖 Generating answer...",
	rag.StateDone:       "✓ Done",
}

func main() {
	var (
		configPath string
		topK       int
	)
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.IntVar(&topK, "top-k", 0, "Chunks to retrieve per question (0 uses retrieval.default_top_k)")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %s", e.Error())
		}
		os.Exit(2)
	}

	// Keep pipeline logs from drawing over the spinner.
	logger.Init("error", cfg.Log.Format)

	if err := run(cfg, topK); err != nil {
		log.Fatal(err)
	}
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

func run(cfg *config.Config, topK int) error {
	ctx := context.Background()

	model, err := llm.NewChatModel(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize chat model: %w", err)
	}

	embedder, err := llm.NewEmbedder(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	connectSpinner := getSpinner("🔌 Connecting to vector store...")
	chunks, err := store.Open(ctx, cfg, embedder)
	connectSpinner.Finish()
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer chunks.Close()

	service := rag.NewService(model, chunks, nil,
		rag.WithDefaultTopK(cfg.Retrieval.DefaultTopK),
		rag.WithFetchKFloor(cfg.Retrieval.FetchKFloor),
	)

	color.Cyan("\nAsk about HR policies and benefits (type '/reset' to start over, 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	var history []models.HistoryEntry
	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(query) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/reset":
			history = nil
			color.Yellow("History cleared.")
			continue
		}

		spinner := getSpinner(stateLabels[rag.StateReceived])
		stateCtx := rag.WithStateObserver(ctx, func(state rag.State) {
			spinner.Describe(color.CyanString(stateLabels[state]))
		})

		resp, err := service.Chat(stateCtx, models.ChatRequest{Query: query, TopK: topK, History: history})
		spinner.Finish()
		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		assistantPrompt("Assistant: %s\n", resp.Answer)
		printCitations(resp.Citations)

		history = append(history,
			models.HistoryEntry{Role: models.RoleUser, Content: query},
			models.HistoryEntry{Role: models.RoleAssistant, Content: resp.Answer},
		)
	}

	return scanner.Err()
}

func printCitations(citations []models.Citation) {
	if len(citations) == 0 {
		return
	}
	color.New(color.Faint).Println("\nSources:")
	for _, c := range citations {
		fmt.Println(formatCitation(c))
	}
}

// formatCitation renders "[i] source (p. N)".
func formatCitation(c models.Citation) string {
	source := "unknown"
	if c.Source != nil {
		source = *c.Source
	}
	line := fmt.Sprintf("[%d] %s", c.Index, source)
	if c.Page != nil {
		line += fmt.Sprintf(" (p. %d)", *c.Page)
	}
	return line
}
