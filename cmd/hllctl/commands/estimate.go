package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardcount/hllsketch/config"
	"github.com/cardcount/hllsketch/hll"
)

// NewEstimateCommand loads a serialized sketch and prints its mode,
// lgConfigK, estimate, composite estimate, and bounds at 1/2/3 standard
// deviations. The HIP estimate is not printed separately.
func NewEstimateCommand() *cobra.Command {
	var (
		configPath  string
		inPath      string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Print the cardinality estimate and bounds for a serialized sketch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Logging.Level)
			m := newMetrics()
			addr := cfg.Metrics.ListenAddr
			if cmd.Flags().Changed("metrics-addr") {
				addr = metricsAddr
			}

			serveCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() { _ = m.serve(serveCtx, log, addr) }()

			raw, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read sketch: %w", err)
			}
			sk, err := hll.NewSketchFromSlice(raw, true)
			if err != nil {
				return fmt.Errorf("parse sketch: %w", err)
			}

			estimate, err := sk.GetEstimate()
			if err != nil {
				return err
			}
			m.lastEstimate.Set(estimate)

			composite, err := sk.GetCompositeEstimate()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "mode:              %s\n", sk.GetMode())
			fmt.Fprintf(cmd.OutOrStdout(), "lgConfigK:         %d\n", sk.GetLgConfigK())
			fmt.Fprintf(cmd.OutOrStdout(), "estimate:          %.4f\n", estimate)
			fmt.Fprintf(cmd.OutOrStdout(), "compositeEstimate: %.4f\n", composite)
			for _, n := range []int{1, 2, 3} {
				lo, err := sk.GetLowerBound(n)
				if err != nil {
					return err
				}
				hi, err := sk.GetUpperBound(n)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "bounds(%d stddev):  [%.4f, %.4f]\n", n, lo, hi)
			}

			log.Info().Str("in", inPath).Float64("estimate", estimate).Msg("estimate computed")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to hllctl.yaml")
	cmd.Flags().StringVar(&inPath, "in", "", "serialized sketch file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve /metrics on, e.g. :9090")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}
