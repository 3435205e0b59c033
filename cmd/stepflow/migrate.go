package main

import (
	"context"

	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/migrations"
	cli "github.com/urfave/cli/v3"
)

func NewMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:      "migrate",
		Aliases:   []string{"m"},
		Usage:     "Upgrade a flow version file to the current schema version",
		ArgsUsage: "FILE",
		Flags:     []cli.Flag{formatFlag(), outputFlag()},
		Action: func(ctx context.Context, command *cli.Command) error {
			path, err := fileArg(command)
			if err != nil {
				return err
			}

			logger := log.WithModule("cli").With("command", "migrate", "file", path)

			doc, err := readDocument(path)
			if err != nil {
				return err
			}

			pipeline := migrations.New(logger)

			fv, err := pipeline.Type(pipeline.Apply(doc))
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Flow version migrated",
				"from", doc.SchemaVersion(),
				"to", fv.SchemaVersion)

			return writeFlowVersion(command, fv)
		},
	}
}
