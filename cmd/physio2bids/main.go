// Command physio2bids converts physiological recordings (CMRR DICOM,
// AcqKnowledge, Siemens PMU) into BIDS physiological recording files.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/arloliu/bidsphysio"
	"github.com/arloliu/bidsphysio/bids"
	"github.com/arloliu/bidsphysio/config"
	"github.com/arloliu/bidsphysio/format"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "physio2bids:", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "physio2bids",
		Short:         "Convert physiological recordings to BIDS physio files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		newConvertCmd("convert", "Convert any supported input, detecting the format per file", format.KindUnknown),
		newConvertCmd("dcm", "Convert a CMRR physio DICOM file", format.KindCMRR),
		newConvertCmd("acq", "Convert AcqKnowledge files", format.KindAcq),
		newConvertCmd("pmu", "Convert Siemens PMU log files", format.KindPMU),
		newSchemaCmd(),
	)

	return root
}

func newConvertCmd(use, short string, kind format.Kind) *cobra.Command {
	cfg := defaultConfig()
	cfg.Format = kind

	cmd := &cobra.Command{
		Use:   use + " -i FILE... -b PREFIX",
		Short: short,
		Long: short + ".\n\nInput files may be given with repeated -i flags or as extra arguments " +
			"after -i, e.g. `-i run.puls run.resp`.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := completeConfig(cmd, &cfg, args); err != nil {
				return err
			}

			return runConvert(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&cfg.Inputs, "infiles", "i", nil, "input file(s)")
	flags.StringVarP(&cfg.BIDSPrefix, "bidsprefix", "b", "", "BIDS output prefix; should match the _bold.nii.gz")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "debug logging and partial recovery warnings")
	flags.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "YAML configuration overlay (env "+envConfigPath+")")
	flags.StringVar(&cfg.Compression, "compression", cfg.Compression, "table codec: gzip, zstd, s2, lz4 or none")
	flags.BoolVar(&cfg.AlignTrigger, "align-trigger", false, "make the first trigger onset t = 0 (always on for PMU runs with a trigger log)")
	if kind == format.KindUnknown || kind == format.KindAcq {
		flags.Float64Var(&cfg.StartTime, "start-time", 0, "AcqKnowledge start time in seconds")
	}
	if kind == format.KindUnknown || kind == format.KindPMU {
		flags.Float64Var(&cfg.ReferenceTime, "reference-time", 0, "PMU reference time in seconds since midnight")
	}

	return cmd
}

// completeConfig folds positional arguments and flag presence into cfg and
// validates it.
func completeConfig(cmd *cobra.Command, cfg *Config, args []string) error {
	cfg.Inputs = append(cfg.Inputs, args...)
	cfg.StartTimeSet = cmd.Flags().Changed("start-time")
	cfg.ReferenceTimeSet = cmd.Flags().Changed("reference-time")

	return cfg.Validate()
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})).
		With(slog.String("run", uuid.NewString()))
}

func runConvert(stdout, stderr io.Writer, cfg Config) error {
	logger := newLogger(stderr, cfg.Verbose)

	physioCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return err
	}
	ct, _ := format.ParseCompression(cfg.Compression)

	opts := []bidsphysio.Option{
		bidsphysio.WithConfig(physioCfg),
		bidsphysio.WithFormat(cfg.Format),
		bidsphysio.WithCompression(ct),
		bidsphysio.WithLogger(logger),
	}
	if cfg.Verbose {
		opts = append(opts, bidsphysio.WithVerbose())
	}
	if cfg.StartTimeSet {
		opts = append(opts, bidsphysio.WithStartTime(cfg.StartTime))
	}
	if cfg.ReferenceTimeSet {
		opts = append(opts, bidsphysio.WithReferenceTime(cfg.ReferenceTime))
	}
	if cfg.AlignTrigger {
		opts = append(opts, bidsphysio.WithTriggerAlignment())
	}

	logger.Debug("starting conversion",
		slog.String("format", cfg.Format.String()),
		slog.Any("inputs", cfg.Inputs),
		slog.String("prefix", cfg.BIDSPrefix),
	)

	res, err := bidsphysio.Convert(cfg.Inputs, cfg.BIDSPrefix, opts...)
	if err != nil {
		logger.Error("conversion failed", slog.Any("error", err))
		return err
	}

	for _, p := range res.Paths {
		fmt.Fprintln(stdout, p)
	}
	logger.Info("conversion finished", slog.Int("groups", len(res.Groups)), slog.Int("files", len(res.Paths)))

	return nil
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the physio sidecar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := bids.Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))

			return err
		},
	}
}
