package airlake

import (
	"os"

	_ "github.com/datazip-inc/airlake/destination/local" // registering local file writer
	"github.com/datazip-inc/airlake/drivers/abstract"
	"github.com/datazip-inc/airlake/protocol"
	"github.com/datazip-inc/airlake/utils/logger"
	"github.com/datazip-inc/airlake/utils/safego"
)

// RegisterSource runs the source CLI for the given connector
func RegisterSource(source abstract.Source) {
	defer safego.Recovery(true)

	err := protocol.CreateRootCommand(source).Execute()
	if err != nil {
		logger.Fatal(err)
	}

	os.Exit(0)
}

// RegisterDestination runs the destination CLI over the registered writers
func RegisterDestination() {
	defer safego.Recovery(true)

	err := protocol.CreateDestinationCommand().Execute()
	if err != nil {
		logger.Fatal(err)
	}

	os.Exit(0)
}
