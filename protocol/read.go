package protocol

import (
	"fmt"
	"time"

	"github.com/datazip-inc/airlake/constants"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils"
	"github.com/datazip-inc/airlake/utils/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "read command",
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
			config := connector.GetConfigRef()
			if err := utils.UnmarshalFile(ctx, configPath, config, true); err != nil {
				return err
			}

			catalog := &types.ConfiguredCatalog{}
			if err := utils.UnmarshalFile(ctx, catalogPath, catalog, false); err != nil {
				return err
			}

			state, err := loadState(cmd)
			if err != nil {
				return err
			}

			startTime := time.Now()
			records := 0
			for message, err := range connector.Read(ctx, config, catalog, state) {
				if err != nil {
					logger.Errorf("Sync failed after %d records: %s", records, err)
					return err
				}

				if message.Type == types.RecordMessage {
					records++
				}
				if message.Type == types.StateMessage && viper.GetBool(constants.CompressState) {
					compressed, err := message.State.Data.Compress()
					if err != nil {
						return err
					}
					message = types.NewStateMessage(compressed)
				}
				if err := logger.LogMessage(message); err != nil {
					return err
				}
			}

			logger.Infof("Read %d records in %s", records, time.Since(startTime).Round(time.Millisecond))
			return nil
		},
	}
}

// loadState reads the optional --state file; compressed envelopes are
// unpacked, an empty file means no prior state
func loadState(cmd *cobra.Command) (types.State, error) {
	if statePath == "" {
		return types.State{}, nil
	}

	state := types.State{}
	if err := utils.UnmarshalFile(cmd.Context(), statePath, &state, false); err != nil {
		return nil, err
	}
	return state.Decompress()
}
