// Package cli wires the convert subcommand spec.md §6 describes onto
// urfave/cli/v2, matching the teacher's flag-and-action command style.
package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/rosbags-go/rosbags/logging"
	"github.com/rosbags-go/rosbags/rosbag2"
	"github.com/rosbags-go/rosbags/rosbag2/convert"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

// App builds the rosbags command-line app.
func App(log logging.Logger) *cli.App {
	return &cli.App{
		Name:  "rosbags",
		Usage: "convert ROS message-log containers",
		Commands: []*cli.Command{
			convertCommand(log),
		},
	}
}

func convertCommand(log logging.Logger) *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "convert a rosbag2 directory between storage identifiers",
		ArgsUsage: "SRC",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dst", Usage: "destination directory (defaults to SRC with a storage-identifier suffix)"},
			&cli.StringFlag{Name: "storage", Value: "sqlite3", Usage: "destination storage identifier (only sqlite3 is written)"},
			&cli.StringSliceFlag{Name: "include-topic", Usage: "only convert these topics (repeatable)"},
			&cli.StringSliceFlag{Name: "exclude-topic", Usage: "skip these topics (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return cli.Exit("convert requires exactly one SRC argument", 1)
			}
			src := c.Args().Get(0)
			dst := c.String("dst")
			if dst == "" {
				dst = src + "." + c.String("storage")
			}

			reg := registry.New()
			opts := convert.Options{
				DstStorageIdentifier: c.String("storage"),
				CompressionMode:      rosbag2.CompressionNone,
				IncludeTopics:        c.StringSlice("include-topic"),
				ExcludeTopics:        c.StringSlice("exclude-topic"),
			}
			if err := convert.Convert(src, dst, opts, reg, log); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}
