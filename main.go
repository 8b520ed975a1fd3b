package main

import (
	"os"

	"BlurServer/config"
	"BlurServer/logger"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "blurserver",
	Short: "NDPluginBlur frame smoothing server",
	Long: `blurserver smooths N-dimensional frames with a normalized box, Gaussian,
median or bilateral filter and publishes the results.

Frames arrive over HTTP (POST /api/frames) and results are streamed on
/ws/frames and optionally forwarded to an HTTP sink. Parameters are read
and written over REST or the gRPC ParamService.

Examples:
  blurserver                          # run with ./config.yaml
  blurserver --config /etc/blur.yaml  # run with a given config
  blurserver --backend native --dev   # pure Go filters, console logging`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("backend") {
			cfg.Backend, _ = cmd.Flags().GetString("backend")
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("dev") {
			cfg.Development, _ = cmd.Flags().GetBool("dev")
		}
		if err := logger.Init(cfg.Development); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		defer logger.Sync()
		return run(cfg)
	},
}

func init() {
	rootCmd.Flags().StringP("config", "c", "config.yaml", "path of the YAML configuration")
	rootCmd.Flags().String("backend", "", "smoothing backend: opencv or native")
	rootCmd.Flags().Bool("dev", false, "development logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
