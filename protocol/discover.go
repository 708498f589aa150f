package protocol

import (
	"fmt"

	"github.com/datazip-inc/airlake/utils"
	"github.com/datazip-inc/airlake/utils/logger"
	"github.com/spf13/cobra"
)

func discoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "discover command",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if configPath == "" {
				return fmt.Errorf("--config not passed")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			config := connector.GetConfigRef()
			if err := utils.UnmarshalFile(cmd.Context(), configPath, config, true); err != nil {
				return err
			}

			catalog, err := connector.Discover(cmd.Context(), config)
			if err != nil {
				return err
			}
			if len(catalog.Catalog.Streams) == 0 {
				return fmt.Errorf("no streams found in connector")
			}
			return logger.LogMessage(catalog)
		},
	}
}
