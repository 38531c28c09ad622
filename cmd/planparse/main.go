package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quangtrung-dev/planparse/internal/config"
	"github.com/quangtrung-dev/planparse/internal/doctree"
	"github.com/quangtrung-dev/planparse/internal/export"
	"github.com/quangtrung-dev/planparse/internal/extract"
	"github.com/quangtrung-dev/planparse/internal/ingest"
	"github.com/quangtrung-dev/planparse/internal/pipeline"
	"github.com/quangtrung-dev/planparse/internal/store"
	"github.com/quangtrung-dev/planparse/internal/target"
	"github.com/quangtrung-dev/planparse/internal/textextract"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "planparse",
		Short: "Extract KPI targets from Vietnamese planning resolutions",
		Long: `Planparse reads provincial planning resolutions (nghị quyết) and
extracts their structure, quantitative targets and appendix tables.

It accepts text, markdown, HTML, CSV, DOCX and PDF files; scanned PDFs
fall back to OCR when pdftoppm and tesseract are installed.`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("use-llm", false, "Ask Claude before the rule-based extractor (needs ANTHROPIC_API_KEY)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log processing detail to stderr")

	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(appendixCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse one resolution and print what was found",
		Long: `Parse one resolution file end to end.

Example:
  planparse parse nghi-quyet-01.pdf
  planparse parse nghi-quyet-01.pdf --json
  planparse parse nghi-quyet-01.docx --sections`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			onlyTargets, _ := cmd.Flags().GetBool("targets")
			onlySections, _ := cmd.Flags().GetBool("sections")

			res, err := runOnce(cmd, args[0], nil)
			if err != nil {
				return err
			}

			switch {
			case asJSON:
				return printJSON(res)
			case onlyTargets:
				return printJSON(res.SectionTargets)
			case onlySections:
				if res.Document == nil {
					fmt.Println("(no structure)")
					return nil
				}
				printTree(res.Document.Sections, 0)
				return nil
			}

			printSummary(res)
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Print the full result as JSON")
	cmd.Flags().Bool("targets", false, "Print only the extracted targets as JSON")
	cmd.Flags().Bool("sections", false, "Print only the section tree")
	return cmd
}

func appendixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appendix <file>",
		Short: "Parse a resolution and print its appendix tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			res, err := runOnce(cmd, args[0], nil)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(res.Appendices)
			}

			if len(res.Appendices) == 0 {
				fmt.Println("No appendices found.")
				return nil
			}
			for _, ap := range res.Appendices {
				fmt.Printf("Phụ lục %d: %s\n", ap.Number, ap.TitleVi)
				fmt.Printf("  type: %s, columns: %s, rows: %d\n",
					ap.Type, strings.Join(ap.Columns, " | "), len(ap.Rows))
			}
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Print the appendices as JSON")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Parse a resolution and write an XLSX workbook",
		Long: `Parse a resolution and write its targets and appendices to an
XLSX workbook, one sheet for targets plus one per appendix.

Example:
  planparse export nghi-quyet-01.pdf -o targets.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				base := filepath.Base(args[0])
				output = strings.TrimSuffix(base, filepath.Ext(base)) + ".xlsx"
			}

			res, err := runOnce(cmd, args[0], nil)
			if err != nil {
				return err
			}
			if res.Status == pipeline.StatusSkipped {
				return fmt.Errorf("document skipped: %s", res.SkipReason)
			}

			log := buildLogger(cmd)
			data, err := export.Workbook(res, log)
			if err != nil {
				return fmt.Errorf("rendering workbook: %w", err)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("writing workbook: %w", err)
			}

			fmt.Printf("Wrote %s (%d targets, %d appendices)\n",
				output, res.TargetCount(), len(res.Appendices))
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output path (default: input name with .xlsx)")
	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir> [dir...]",
		Short: "Watch directories and process resolutions as they arrive",
		Long: `Watch one or more directories recursively and run every new or
changed resolution file through the pipeline.

With --db, results are persisted to SQLite and duplicate content is
skipped; without it every file is a dry run printed to stdout.

Example:
  planparse watch ./inbox
  planparse watch ./inbox --db planparse.db --initial-scan`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			debounce, _ := cmd.Flags().GetDuration("debounce")
			initialScan, _ := cmd.Flags().GetBool("initial-scan")
			useLLM, _ := cmd.Flags().GetBool("use-llm")

			log := buildLogger(cmd)

			var st pipeline.Store
			if dbPath != "" {
				s, err := store.Open(dbPath, log)
				if err != nil {
					return fmt.Errorf("opening store: %w", err)
				}
				defer s.Close()
				st = s
			}
			w := buildWorker(log, st)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
				Roots:       args,
				InitialScan: initialScan,
				Debounce:    debounce,
				Logger:      log,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Watching %s (Ctrl-C to stop)\n", strings.Join(args, ", "))
			for {
				select {
				case p, ok := <-paths:
					if !ok {
						return nil
					}
					job := pipeline.NewJob("", filepath.Base(p), useLLM)
					job.SetSourcePath(p)
					w.Process(ctx, job)
					printWatchLine(p, job.Snapshot())
				case werr, ok := <-errs:
					if ok && werr != nil {
						log.Error("watch error", "error", werr)
					}
				case <-ctx.Done():
					return nil
				}
			}
		},
	}

	cmd.Flags().String("db", "", "SQLite path to persist results (empty: dry run)")
	cmd.Flags().Duration("debounce", 500*time.Millisecond, "Settle time before a changed file is processed")
	cmd.Flags().Bool("initial-scan", false, "Also process files already present")
	return cmd
}

// buildLogger keeps stdout for command output; logs go to stderr and
// stay quiet unless --verbose.
func buildLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func buildWorker(log *slog.Logger, st pipeline.Store) *pipeline.Worker {
	cfg := config.Load()
	texts := textextract.NewExtractor(textextract.Config{
		Pdftotext:     cfg.PdftotextBin,
		Pdftoppm:      cfg.PdftoppmBin,
		Tesseract:     cfg.TesseractBin,
		TesseractLang: cfg.TesseractLang,
		DPI:           cfg.OCRDPI,
		MaxOCRPages:   cfg.OCRMaxPages,
	}, log)
	llm := extract.New(extract.Options{
		UseLLM: true, // per-job flag decides; without a key this is still rule-based
		APIKey: cfg.AnthropicAPIKey,
		Model:  cfg.AnthropicModel,
		Logger: log,
	})
	return pipeline.NewWorker(texts, texts.ProbeCapabilities(), llm, st, log,
		cfg.MinMeaningfulLength, cfg.MaxConcurrentLeaves)
}

// runOnce pushes a single file through the pipeline synchronously.
func runOnce(cmd *cobra.Command, path string, st pipeline.Store) (*pipeline.Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("source file: %w", err)
	}
	useLLM, _ := cmd.Flags().GetBool("use-llm")

	log := buildLogger(cmd)
	w := buildWorker(log, st)

	job := pipeline.NewJob("", filepath.Base(path), useLLM)
	job.SetSourcePath(path)
	w.Process(cmd.Context(), job)

	snap := job.Snapshot()
	if snap.Status == pipeline.StatusFailed {
		return nil, fmt.Errorf("processing failed: %s", strings.Join(snap.Progress.Errors, "; "))
	}
	res := job.Result()
	if res == nil {
		return nil, fmt.Errorf("processing ended in state %q without a result", snap.Status)
	}
	return res, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(res *pipeline.Result) {
	if res.Title != "" {
		fmt.Printf("Document:   %s\n", res.Title)
	}
	fmt.Printf("Status:     %s", res.Status)
	if res.SkipReason != "" {
		fmt.Printf(" (%s)", res.SkipReason)
	}
	fmt.Println()
	fmt.Printf("Method:     %s\n", res.Method)
	if res.Document != nil {
		fmt.Printf("Sections:   %d\n", len(res.Document.Flatten()))
	}
	fmt.Printf("Targets:    %d\n", res.TargetCount())
	fmt.Printf("Appendices: %d\n", len(res.Appendices))
	for _, e := range res.Errors {
		fmt.Printf("Error:      %s\n", e)
	}

	for _, group := range res.SectionTargets {
		fmt.Printf("\n[%s] %s\n", group.Number, group.Title)
		for _, tg := range group.Targets {
			fmt.Printf("  - %s\n", formatTarget(tg))
		}
	}
}

func formatTarget(tg target.Target) string {
	var b strings.Builder
	b.WriteString(tg.NameVi)
	b.WriteString(": ")
	switch {
	case tg.Min != nil && tg.Max != nil:
		b.WriteString(formatFloat(*tg.Min) + "-" + formatFloat(*tg.Max))
	case tg.Value != nil:
		b.WriteString(formatFloat(*tg.Value))
	default:
		b.WriteString("(qualitative)")
	}
	if tg.Unit != "" {
		b.WriteString(" " + tg.Unit)
	}
	if tg.Year != nil {
		b.WriteString(" by " + strconv.Itoa(*tg.Year))
	}
	if cmp := tg.Metadata["comparison"]; cmp != "" {
		b.WriteString(" [" + cmp + "]")
	}
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func printTree(secs []*doctree.Section, depth int) {
	for _, s := range secs {
		fmt.Printf("%s%s\n", strings.Repeat("  ", depth), heading(s))
		printTree(s.Children, depth+1)
	}
}

// heading reconstructs the marker the way the source writes it.
func heading(s *doctree.Section) string {
	var h string
	switch s.Level {
	case doctree.LevelDieu:
		h = "Điều " + s.Number + "."
	case doctree.LevelLetter:
		h = s.Number + ")"
	case doctree.LevelDash:
		h = "-"
	default:
		h = s.Number + "."
	}
	if s.Title != "" {
		h += " " + s.Title
	}
	return h
}

func printWatchLine(path string, snap pipeline.JobSnapshot) {
	switch snap.Status {
	case pipeline.StatusCompleted:
		fmt.Printf("%s: completed (%d targets, %d appendices)\n",
			path, snap.Progress.TargetsFound, snap.Progress.AppendicesFound)
	case pipeline.StatusPartial:
		fmt.Printf("%s: partial (%d targets, %d errors)\n",
			path, snap.Progress.TargetsFound, len(snap.Progress.Errors))
	case pipeline.StatusSkipped:
		fmt.Printf("%s: skipped\n", path)
	case pipeline.StatusDupSkipped:
		fmt.Printf("%s: duplicate of stored content, skipped\n", path)
	default:
		fmt.Printf("%s: %s\n", path, snap.Status)
	}
}
