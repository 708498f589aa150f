package protocol

import (
	"fmt"

	"github.com/datazip-inc/airlake/destination"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils"
	"github.com/datazip-inc/airlake/utils/logger"
	"github.com/spf13/cobra"
)

// writeCmd consumes the messages of a source from stdin
func writeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write",
		Short: "write command",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if configPath == "" {
				return fmt.Errorf("--config not passed")
			} else if catalogPath == "" {
				return fmt.Errorf("--catalog not passed")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			catalog := &types.ConfiguredCatalog{}
			if err := utils.UnmarshalFile(ctx, catalogPath, catalog, false); err != nil {
				return err
			}

			var writer destination.Writer
			if !dryRun {
				writerConfig := &destination.WriterConfig{}
				if err := utils.UnmarshalFile(ctx, configPath, writerConfig, true); err != nil {
					return err
				}

				var err error
				if writer, err = destination.NewWriter(ctx, writerConfig); err != nil {
					return err
				}
			}

			_, err := destination.Run(ctx, writer, catalog, cmd.InOrStdin(), logger.LogMessage, dryRun)
			return err
		},
	}
}
