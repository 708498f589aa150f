package protocol

import (
	"fmt"
	"path/filepath"

	"github.com/datazip-inc/airlake/constants"
	"github.com/datazip-inc/airlake/drivers/abstract"
	"github.com/datazip-inc/airlake/utils/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configPath      string
	catalogPath     string
	statePath       string
	encryptionKey   string
	destinationType string
	logLevel        string
	compressState   bool
	dryRun          bool

	connector *abstract.AbstractSource
)

func newRootCommand(use string) *cobra.Command {
	root := &cobra.Command{
		Use:   use,
		Short: "Airbyte protocol connector",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				viper.Set(constants.ConfigFolder, filepath.Dir(configPath))
			}
			if encryptionKey != "" {
				viper.Set(constants.EncryptionKey, encryptionKey)
			}
			if cmd.Flags().Changed("log-level") {
				viper.Set(constants.LogLevel, logLevel)
			}
			if cmd.Flags().Changed("compress-state") {
				viper.Set(constants.CompressState, compressState)
			}

			// logger uses CONFIG_FOLDER
			logger.Init()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return fmt.Errorf("'%s' is an invalid command. Use '%s --help' to display usage guide", args[0], use)
		},
		// Disable Cobra CLI's built-in usage and error handling
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "", "", "Path to the connector config (JSON or YAML)")
	flags.StringVarP(&catalogPath, "catalog", "", "", "Path to the configured catalog")
	flags.StringVarP(&encryptionKey, "encryption-key", "", "", "(Optional) Decryption key of the config. Provide the ARN of a KMS key or a custom string")
	flags.StringVarP(&logLevel, "log-level", "", constants.DefaultLogLevel, "(Optional) Log level: debug, info, warn, error")
	return root
}

// CreateRootCommand builds the source CLI: spec, check, discover and read
func CreateRootCommand(source abstract.Source) *cobra.Command {
	connector = abstract.NewAbstractSource(source)

	root := newRootCommand(source.Type())
	root.PersistentFlags().StringVarP(&statePath, "state", "", "", "(Optional) Path to the state of the previous sync")
	root.PersistentFlags().BoolVarP(&compressState, "compress-state", "", false, "(Optional) Emit state messages as base64/gzip envelopes")
	root.AddCommand(specCmd(), checkCmd(), discoverCmd(), readCmd())
	return root
}

// CreateDestinationCommand builds the destination CLI over the registered
// writers: spec, check and write
func CreateDestinationCommand() *cobra.Command {
	connector = nil

	root := newRootCommand("destination")
	root.PersistentFlags().StringVarP(&destinationType, "destination-type", "", "", "Destination type for spec")
	root.PersistentFlags().BoolVarP(&dryRun, "dry-run", "", false, "(Optional) Parse and count messages without writing")
	root.AddCommand(specCmd(), checkCmd(), writeCmd())
	return root
}

func init() {
	viper.SetEnvPrefix(constants.EnvPrefix)
	viper.AutomaticEnv()
}
