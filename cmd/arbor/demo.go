package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arbor-sh/arbor"
	"github.com/arbor-sh/arbor/pkg/domain"
	"github.com/arbor-sh/arbor/pkg/observability"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted conversation against the built-in catalog",
	Long:  `Runs a short scripted conversation showing search, recommendation, ordering and support triage, then drops into an interactive prompt.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger(cmd)
		configPath, _ := cmd.Flags().GetString("config")
		interactive, _ := cmd.Flags().GetBool("interactive")

		agent, err := arbor.New(
			arbor.WithConfigFile(configPath),
			arbor.WithLogger(logger),
			arbor.WithMetrics(observability.NewLogSink(logger)),
			arbor.WithCatalog(demoCatalog()),
		)
		if err != nil {
			fmt.Printf("Error initializing agent: %v\n", err)
			os.Exit(1)
		}
		defer agent.Close()

		ctx := context.Background()
		const sessionID = "demo"

		script := []domain.TurnRequest{
			{SessionID: sessionID, Utterance: "hello there"},
			{SessionID: sessionID, Utterance: "show me your servers"},
			{SessionID: sessionID, Utterance: "recommend a high performance server"},
			{SessionID: sessionID, Utterance: "I want to buy one"},
			{SessionID: sessionID, Utterance: "order it", Context: map[string]any{"record_id": "srv-perf", "quantity": 1}},
			{SessionID: sessionID, Utterance: "help, it arrived broken"},
		}

		for _, req := range script {
			fmt.Printf("> %s\n", req.Utterance)
			serveTurn(ctx, agent, req)
		}

		if !interactive {
			return
		}

		fmt.Println("Type your message ('exit' to quit):")
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				return
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "exit" {
				return
			}
			serveTurn(ctx, agent, domain.TurnRequest{SessionID: sessionID, Utterance: line})
		}
	},
}

func serveTurn(ctx context.Context, agent *arbor.Agent, req domain.TurnRequest) {
	resp, err := agent.SubmitTurn(ctx, req)
	if err != nil && resp.SessionID == "" {
		fmt.Printf("  rejected: %v\n", err)
		return
	}
	if err != nil {
		fmt.Printf("  [%s] %v\n", resp.Type, err)
		fmt.Println("  recovering session")
		if rerr := agent.Recover(ctx, req.SessionID); rerr != nil {
			fmt.Printf("  recover failed: %v\n", rerr)
		}
		return
	}

	switch {
	case len(resp.Results) > 0:
		fmt.Printf("  [%s] %d result(s):\n", resp.Type, len(resp.Results))
		for _, rec := range resp.Results {
			fmt.Printf("    - %s (%s) $%.2f\n", rec.Name, rec.ID, rec.Price)
		}
	case len(resp.Suggestions) > 0:
		fmt.Printf("  [%s] top suggestion: %s\n", resp.Type, resp.Suggestions[0].Text)
	default:
		fmt.Printf("  [%s] %s\n", resp.Type, resp.Message)
	}
	for _, w := range resp.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().BoolP("interactive", "i", false, "Keep the conversation open after the script")
}
