package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/antenna-tracker/catalog"
	"github.com/signalsfoundry/antenna-tracker/internal/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "catalogconv:", err)
		os.Exit(1)
	}
}

type options struct {
	yamlPath string
	tlePath  string
	logLevel string
}

func newRootCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "catalogconv CATALOG",
		Short: "Convert a raw satellite export into the tracker's YAML catalog",
		Long: `catalogconv reads a satellite catalog (the semicolon separated CSV export or
an existing YAML catalog), validates every record, and writes it as YAML.
With --tle it also writes a three-line element file for Gpredict.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.NewWithWriter(logging.Config{Level: opts.logLevel}, cmd.ErrOrStderr())
			return convert(cmd.Context(), args[0], opts, cmd.OutOrStdout(), log)
		},
	}
	cmd.Flags().StringVarP(&opts.yamlPath, "yaml", "o", "", "write the YAML catalog here instead of stdout")
	cmd.Flags().StringVar(&opts.tlePath, "tle", "", "also write a three-line element file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")
	return cmd
}

func convert(ctx context.Context, src string, opts options, stdout io.Writer, log logging.Logger) error {
	cat, err := catalog.Load(src)
	if err != nil {
		return err
	}
	records := cat.Records()

	if err := writeTo(opts.yamlPath, stdout, func(w io.Writer) error {
		return catalog.WriteYAML(w, records)
	}); err != nil {
		return fmt.Errorf("write yaml: %w", err)
	}
	log.Info(ctx, "catalog converted",
		logging.String("source", src),
		logging.String("yaml", opts.yamlPath),
		logging.Int("satellites", len(records)),
	)

	if opts.tlePath != "" {
		if err := writeTo(opts.tlePath, nil, func(w io.Writer) error {
			return catalog.WriteTLE(w, records)
		}); err != nil {
			return fmt.Errorf("write tle: %w", err)
		}
		log.Info(ctx, "element file written", logging.String("path", opts.tlePath))
	}
	return nil
}

// writeTo runs write against path, or against fallback when path is empty.
func writeTo(path string, fallback io.Writer, write func(io.Writer) error) error {
	if path == "" {
		return write(fallback)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
