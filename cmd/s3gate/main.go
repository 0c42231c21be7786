// Command s3gate runs transfer batches from the command line. It is a thin
// shell over the engine: load config, run one operation, map the outcome to
// an exit code a scheduler can branch on.
//
// Exit codes:
//
//	0  success
//	1  unexpected failure
//	2  misconfiguration
//	3  no files to transfer
//	4  some transfers failed
package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/s3gate/s3gate"
	"github.com/s3gate/s3gate/config"
	"github.com/s3gate/s3gate/errors"
	"github.com/s3gate/s3gate/report"
)

// version is injected at build time.
var version = "dev"

var log = logrus.New()

var (
	configDir      string
	configFilename string
)

func main() {
	root := &cobra.Command{
		Use:           "s3gate",
		Short:         "One-to-many S3 object synchronization",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configDir, "config-folder", "c", config.DefaultDir,
		"folder holding the configuration and credential files")
	root.PersistentFlags().StringVar(&configFilename, "config-filename", config.DefaultFilename,
		"configuration file name within the config folder")

	root.AddCommand(sendCmd(), listCmd(), reportCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("Command failed")
		os.Exit(exitCode(err))
	}
}

// listedObject is one entry of a JSON listing, produced by list and
// consumed by send.
type listedObject struct {
	Key string `json:"key"`
}

func sendCmd() *cobra.Command {
	var (
		listingFile string
		dryRun      bool
		backfill    bool
	)

	cmd := &cobra.Command{
		Use:   "send [KEY]",
		Short: "Transfer objects from the source to all destinations",
		Long: "Transfer objects from the source to all destinations.\n\n" +
			"With KEY, exactly that object is transferred. With --listing-file, the\n" +
			"keys are read from a JSON listing produced by the list command. With\n" +
			"neither, the source is searched for recently modified objects first.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(s3gate.WithDryRun(dryRun))
			if err != nil {
				return err
			}

			var keys []string
			switch {
			case len(args) == 1:
				keys = []string{args[0]}
			case listingFile != "":
				keys, err = readListing(listingFile)
				if err != nil {
					return err
				}
			default:
				keys, err = engine.Lookup(cmd.Context(), backfill)
				if err != nil {
					return err
				}
			}

			return engine.Transfer(cmd.Context(), keys)
		},
	}
	cmd.Flags().StringVarP(&listingFile, "listing-file", "l", "",
		"JSON listing of keys to transfer")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"derive and log destination keys without copying")
	cmd.Flags().BoolVar(&backfill, "backfill", false,
		"ignore the timedelta window and transfer everything under the prefix")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		output   string
		backfill bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently modified source objects as a JSON listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}

			keys, err := engine.Lookup(cmd.Context(), backfill)
			if err != nil {
				return err
			}

			listing := make([]listedObject, len(keys))
			for i, key := range keys {
				listing[i] = listedObject{Key: key}
			}
			data, err := json.MarshalIndent(listing, "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return billy.NewOSFS("/").WriteFile(output, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "",
		"write the listing to this file instead of stdout")
	cmd.Flags().BoolVar(&backfill, "backfill", false,
		"ignore the timedelta window and list everything under the prefix")
	return cmd
}

func reportCmd() *cobra.Command {
	var rctx report.Context

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Send a failure alert email for a finished batch",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			sender, err := report.NewSender(cfg.General.AlertsFrom,
				cfg.General.AlertsTo, cfg.General.AlertsSMTPServer, log)
			if err != nil {
				return err
			}

			rctx.Timestamp = time.Now()
			return sender.Send(rctx)
		},
	}
	cmd.Flags().StringVar(&rctx.Name, "name", os.Getenv("S3GATE_WORKFLOW_NAME"),
		"name of the failed batch")
	cmd.Flags().StringVar(&rctx.Namespace, "namespace", os.Getenv("S3GATE_WORKFLOW_NAMESPACE"),
		"namespace the batch ran in")
	cmd.Flags().StringVar(&rctx.Status, "status", os.Getenv("S3GATE_WORKFLOW_STATUS"),
		"failure status reported by the runner")
	cmd.Flags().StringVar(&rctx.Host, "host", os.Getenv("S3GATE_WORKFLOW_HOST"),
		"UI host linked from the alert")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "s3gate", version)
		},
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(billy.NewOSFS("/"), configDir, configFilename)
}

func newEngine(opts ...s3gate.Option) (*s3gate.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return s3gate.New(cfg, append([]s3gate.Option{s3gate.WithLogger(log)}, opts...)...)
}

func readListing(path string) ([]string, error) {
	data, err := billy.NewOSFS("/").ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading listing %s: %w", path, err)
	}

	var listing []listedObject
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("parsing listing %s: %w", path, err)
	}

	keys := make([]string, len(listing))
	for i, obj := range listing {
		keys[i] = obj.Key
	}
	return keys, nil
}

func exitCode(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrMisconfigured):
		return 2
	case stderrors.Is(err, errors.ErrNoFilesToTransfer):
		return 3
	case stderrors.Is(err, errors.ErrSomeTransfersFailed):
		return 4
	default:
		return 1
	}
}
