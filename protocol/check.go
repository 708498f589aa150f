/*
 * Copyright 2025 Olake By Datazip
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package protocol

import (
	"fmt"

	"github.com/datazip-inc/airlake/destination"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils"
	"github.com/datazip-inc/airlake/utils/logger"
	"github.com/spf13/cobra"
)

// checkCmd reports connectivity as a CONNECTION_STATUS message; failures are
// data, the command itself only fails when the message cannot be written
func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "check command",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				return fmt.Errorf("--config not passed")
			}

			// destination check
			if connector == nil {
				status := types.NewConnectionStatusMessage(types.ConnectionSucceed, "")
				writerConfig := &destination.WriterConfig{}
				err := utils.UnmarshalFile(cmd.Context(), configPath, writerConfig, true)
				if err == nil {
					var writer destination.Writer
					if writer, err = destination.NewWriter(cmd.Context(), writerConfig); err == nil {
						err = writer.Close(cmd.Context())
					}
				}
				if err != nil {
					status = types.NewConnectionStatusMessage(types.ConnectionFailed, err.Error())
				}
				return logger.LogMessage(status)
			}

			config := connector.GetConfigRef()
			if err := utils.UnmarshalFile(cmd.Context(), configPath, config, true); err != nil {
				return logger.LogMessage(types.NewConnectionStatusMessage(types.ConnectionFailed, err.Error()))
			}
			return logger.LogMessage(connector.Check(cmd.Context(), config))
		},
	}
}
