package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardcount/hllsketch/config"
	"github.com/cardcount/hllsketch/hll"
)

// NewMergeCommand unions any number of serialized sketches into one output sketch.
// Inputs may carry different lgConfigK; the union downsamples to the smallest one seen.
func NewMergeCommand() *cobra.Command {
	var (
		configPath string
		inPaths    []string
		outPath    string
		encName    string
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Union serialized sketches into one output sketch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Logging.Level)
			m := newMetrics()

			enc := cfg.Sketch.Encoding
			if cmd.Flags().Changed("type") {
				enc = encName
			}
			tgtHllType, err := config.ParseEncoding(enc)
			if err != nil {
				return err
			}

			serveCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() { _ = m.serve(serveCtx, log, cfg.Metrics.ListenAddr) }()

			if len(inPaths) == 0 {
				return fmt.Errorf("merge requires at least one --in")
			}

			var union hll.Union
			var unionLgK int
			for i, p := range inPaths {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				raw, err := os.ReadFile(p)
				if err != nil {
					return fmt.Errorf("read %s: %w", p, err)
				}
				sk, err := hll.NewSketchFromSlice(raw, true)
				if err != nil {
					return fmt.Errorf("parse %s: %w", p, err)
				}
				if i == 0 {
					unionLgK = sk.GetLgConfigK()
					union, err = hll.NewUnion(unionLgK)
					if err != nil {
						return fmt.Errorf("construct union: %w", err)
					}
				}
				kind := "same_k"
				if sk.GetLgConfigK() != unionLgK {
					kind = "cross_k"
				}
				if err := union.UpdateSketch(sk); err != nil {
					return fmt.Errorf("merge %s: %w", p, err)
				}
				m.merges.WithLabelValues(kind).Inc()
				log.Info().Str("in", p).Int("lg_config_k", sk.GetLgConfigK()).Str("kind", kind).Msg("merged sketch")
			}

			result, err := union.GetResult(tgtHllType)
			if err != nil {
				return fmt.Errorf("materialize result: %w", err)
			}
			est, err := result.GetEstimate()
			if err != nil {
				return err
			}
			m.lastEstimate.Set(est)

			out, err := result.ToCompactSlice()
			if err != nil {
				return fmt.Errorf("serialize result: %w", err)
			}
			if err := os.WriteFile(outPath, out, 0o600); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			log.Info().Int("inputs", len(inPaths)).Float64("estimate", est).Str("out", outPath).Msg("union written")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to hllctl.yaml")
	cmd.Flags().StringArrayVar(&inPaths, "in", nil, "serialized sketch file (repeatable)")
	cmd.Flags().StringVar(&outPath, "out", "", "output file for the merged sketch")
	cmd.Flags().StringVar(&encName, "type", "hll8", "target encoding for the result: hll4, hll6, or hll8")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
