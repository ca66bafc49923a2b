package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardcount/hllsketch/config"
	"github.com/cardcount/hllsketch/hll"
)

// NewUpdateCommand builds a sketch from newline-delimited input, one update
// per line, and writes its compact serialization to --out.
func NewUpdateCommand() *cobra.Command {
	var (
		configPath string
		lgK        int
		encName    string
		inPath     string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Build a sketch from newline-delimited input",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Logging.Level)
			m := newMetrics()

			if !cmd.Flags().Changed("lgk") {
				lgK = cfg.Sketch.LgConfigK
			}
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

			sk, err := hll.NewSketch(lgK, tgtHllType)
			if err != nil {
				return fmt.Errorf("construct sketch: %w", err)
			}
			log.Info().Int("lg_config_k", lgK).Str("encoding", enc).Msg("sketch constructed")

			in, err := os.Open(inPath)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer in.Close()

			prevMode := sk.GetMode()
			scanner := bufio.NewScanner(in)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			count := 0
			for scanner.Scan() {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				line := scanner.Text()
				if line == "" {
					continue
				}
				if err := sk.UpdateString(line); err != nil {
					return fmt.Errorf("update: %w", err)
				}
				m.updates.Inc()
				count++
				if newMode := sk.GetMode(); newMode != prevMode {
					log.Info().
						Int("lg_config_k", lgK).
						Str("encoding", enc).
						Str("transition", modeTransitionLabel(prevMode, newMode)).
						Msg("mode promotion")
					m.promotions.WithLabelValues(modeTransitionLabel(prevMode, newMode)).Inc()
					prevMode = newMode
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			est, err := sk.GetEstimate()
			if err != nil {
				return err
			}
			m.lastEstimate.Set(est)

			out, err := sk.ToCompactSlice()
			if err != nil {
				return fmt.Errorf("serialize sketch: %w", err)
			}
			if err := os.WriteFile(outPath, out, 0o600); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			log.Info().Int("items", count).Float64("estimate", est).Str("out", outPath).Msg("sketch written")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to hllctl.yaml")
	cmd.Flags().IntVar(&lgK, "lgk", 12, "log2 of the number of registers")
	cmd.Flags().StringVar(&encName, "type", "hll8", "target encoding: hll4, hll6, or hll8")
	cmd.Flags().StringVar(&inPath, "in", "", "input file, one item per line")
	cmd.Flags().StringVar(&outPath, "out", "", "output file for the compact sketch")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func modeTransitionLabel(from, to fmt.Stringer) string {
	return fmt.Sprintf("%s->%s", from, to)
}
