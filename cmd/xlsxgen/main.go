// Command xlsxgen converts CSV files into a single .xlsx workbook, one
// sheet per input file.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.alis.build/alog"
)

const logEnvLocal alog.LoggingEnvironment = "LOCAL"

var (
	outputPath    string
	inlineStrings bool
	inputEncoding string
	layoutPath    string
	header        bool
	autoFilter    bool
	stage         bool
	verbose       bool
)

func main() {
	alog.SetLoggingEnvironment(logEnvLocal)

	rootCmd := &cobra.Command{
		Use:   "xlsxgen [flags] input.csv...",
		Short: "Convert CSV files into an Excel workbook",
		Long: `xlsxgen reads one or more CSV files and writes them as sheets of a
single .xlsx workbook. Values are typed as booleans, numbers, dates,
datetimes, formulas or text.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output .xlsx path")
	rootCmd.Flags().BoolVar(&inlineStrings, "inline-strings", false, "Write text inline instead of through the shared string table")
	rootCmd.Flags().StringVar(&inputEncoding, "encoding", "utf-8", "Input encoding: utf-8, windows-1252, iso-8859-1")
	rootCmd.Flags().StringVar(&layoutPath, "layout", "", "YAML file with per-sheet names, widths, merges and formats")
	rootCmd.Flags().BoolVar(&header, "header", false, "Render the first row of each sheet in bold")
	rootCmd.Flags().BoolVar(&autoFilter, "autofilter", false, "Add an autofilter over the used range of each sheet")
	rootCmd.Flags().BoolVar(&stage, "stage", false, "Stage package parts on disk before zipping")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log progress")
	_ = rootCmd.MarkFlagRequired("output")

	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		alog.Errorf(ctx, "xlsxgen: %v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if verbose {
		alog.SetLevel(alog.LevelDebug)
	} else {
		alog.SetLevel(alog.LevelWarning)
	}

	enc, err := lookupEncoding(inputEncoding)
	if err != nil {
		return err
	}

	var layout *Layout
	if layoutPath != "" {
		layout, err = LoadLayout(layoutPath)
		if err != nil {
			return fmt.Errorf("layout %s: %w", layoutPath, err)
		}
		alog.Debugf(ctx, "loaded layout with %d sheet entries", len(layout.Sheets))
	}

	cfg := Config{
		Output:        outputPath,
		Inputs:        args,
		InlineStrings: inlineStrings,
		Encoding:      enc,
		Layout:        layout,
		Header:        header,
		AutoFilter:    autoFilter,
		Stage:         stage,
	}
	if err := Convert(ctx, cfg); err != nil {
		return err
	}
	alog.Infof(ctx, "wrote %s", outputPath)
	return nil
}
