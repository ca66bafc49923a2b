package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardcount/hllsketch/config"
	"github.com/cardcount/hllsketch/hll"
)

// NewInspectCommand prints the decoded preamble fields and current mode of
// a serialized sketch, for diagnostics.
func NewInspectCommand() *cobra.Command {
	var (
		configPath string
		inPath     string
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the decoded preamble and mode of a serialized sketch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Logging.Level)

			raw, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read sketch: %w", err)
			}
			sk, err := hll.NewSketchFromSlice(raw, false)
			if err != nil {
				return fmt.Errorf("parse sketch: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "serializationVersion: %d\n", sk.GetSerializationVersion())
			fmt.Fprintf(out, "bytes:                %d\n", len(raw))
			fmt.Fprintf(out, "lgConfigK:            %d\n", sk.GetLgConfigK())
			fmt.Fprintf(out, "encoding:             %v\n", encodingName(sk.GetEncoding()))
			fmt.Fprintf(out, "mode:                 %s\n", sk.GetMode())
			fmt.Fprintf(out, "empty:                %v\n", sk.IsEmpty())
			fmt.Fprintf(out, "updatableBytes:       %d\n", sk.GetUpdatableSerializationBytes())

			log.Debug().Str("in", inPath).Msg("inspected sketch")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to hllctl.yaml")
	cmd.Flags().StringVar(&inPath, "in", "", "serialized sketch file")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

func encodingName(enc hll.Encoding) string {
	switch enc {
	case hll.EncodingHll4:
		return "hll4"
	case hll.EncodingHll6:
		return "hll6"
	case hll.EncodingHll8:
		return "hll8"
	default:
		return fmt.Sprintf("encoding(%d)", int(enc))
	}
}
