package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/internal/pipeline"
)

var (
	askProfile     string
	askJSON        bool
	askHistoryFile string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one shopping question",
	Example: `  shopping-cli ask "겨울용 패딩 재킷 추천해줘"
  shopping-cli ask --profile performance --json "20만원 이하 무선 이어폰 비교"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner, err := initRunner(cfg, "ask")
		if err != nil {
			return err
		}

		history, err := readHistory(askHistoryFile)
		if err != nil {
			return err
		}

		req := pipeline.Request{
			Query:    strings.Join(args, " "),
			Profile:  askProfile,
			Messages: history,
		}
		result, runErr := runner.Run(ctx, req, pipeline.WithProgress(logProgress))
		if result == nil {
			return runErr
		}
		if err := writeResult(cmd.OutOrStdout(), result, askJSON); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	askCmd.Flags().StringVar(&askProfile, "profile", "", "profile name (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full run result as JSON")
	askCmd.Flags().StringVar(&askHistoryFile, "history", "", "JSON file with earlier conversation turns")
	rootCmd.AddCommand(askCmd)
}

// logProgress reports pipeline progress on the logger so stdout carries
// only the answer.
func logProgress(ev pipeline.Event) {
	switch ev.Kind {
	case pipeline.EventStage:
		zap.L().Info("ask: stage",
			zap.String("stage", string(ev.Stage)),
			zap.String("status", string(ev.Status)),
			zap.Bool("degraded", ev.Degraded),
			zap.String("detail", ev.Detail),
		)
	case pipeline.EventAttempt:
		if ev.Error == "" {
			return
		}
		zap.L().Warn("ask: attempt failed",
			zap.String("operation", ev.Operation),
			zap.Int("attempt", ev.Attempt),
			zap.Int("max_attempts", ev.MaxTries),
			zap.Bool("retrying", ev.Retrying),
			zap.String("error", ev.Error),
		)
	}
}

func writeResult(w io.Writer, result *model.RunResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(result), "encode result")
	}

	if result.Outcome == model.OutcomeAborted {
		_, err := fmt.Fprintln(w, result.FailureMessage)
		return err
	}
	if _, err := fmt.Fprintln(w, result.FinalAnswer); err != nil {
		return err
	}

	sources := pageSources(result)
	if len(sources) > 0 {
		fmt.Fprintln(w)          //nolint:errcheck
		fmt.Fprintln(w, "출처:") //nolint:errcheck
		for i, src := range sources {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, src) //nolint:errcheck
		}
	}
	return nil
}

// pageSources lists successfully scraped URLs in search order.
func pageSources(result *model.RunResult) []string {
	var out []string
	for _, hit := range result.SearchResults {
		page, ok := result.ScrapedPages[hit.URL]
		if ok && page.Status == model.PageStatusOK {
			out = append(out, hit.URL)
		}
	}
	return out
}

func readHistory(path string) ([]model.ConversationTurn, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read history %s", path)
	}
	var turns []model.ConversationTurn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, eris.Wrapf(err, "parse history %s", path)
	}
	return turns, nil
}
