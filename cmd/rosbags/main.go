// Command rosbags is the CLI entrypoint: a thin wrapper around cli.App.
package main

import (
	"os"

	"github.com/rosbags-go/rosbags/cli"
	"github.com/rosbags-go/rosbags/logging"
)

func main() {
	log := logging.NewLogger("rosbags")
	if err := cli.App(log).Run(os.Args); err != nil {
		log.Errorw("rosbags exited with an error", "error", err)
		os.Exit(1)
	}
}
