package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/stepflow/pkg/cmd"
	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/migrations"
	"github.com/dukex/stepflow/pkg/operations"
	cli "github.com/urfave/cli/v3"
)

var ErrMissingOperations = errors.New("missing --operations file")

func NewApplyCommand() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Aliases:   []string{"a"},
		Usage:     "Apply structural operations to a flow version file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "operations",
				Aliases: []string{"ops"},
				Usage:   "JSON or YAML file with one operation request or a list of them",
			},
			&cli.BoolFlag{
				Name:  "in-place",
				Usage: "Overwrite FILE with the result",
			},
			formatFlag(),
			outputFlag(),
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			path, err := fileArg(command)
			if err != nil {
				return err
			}

			if command.String("operations") == "" {
				return ErrMissingOperations
			}

			logger := log.WithModule("cli").With("command", "apply", "file", path)

			doc, err := readDocument(path)
			if err != nil {
				return err
			}

			reqs, err := readRequests(command.String("operations"))
			if err != nil {
				return err
			}

			registry, err := cmd.NewRegistry(logger)
			if err != nil {
				return err
			}

			pipeline := migrations.New(logger)
			engine := operations.NewEngine(logger, registry, operations.WithMigrator(pipeline))

			fv, err := pipeline.Type(pipeline.Apply(doc))
			if err != nil {
				return err
			}

			for i, req := range reqs {
				fv, err = engine.Apply(fv, req)
				if err != nil {
					return fmt.Errorf("operation %d (%s): %w", i+1, req.Type, err)
				}
			}

			logger.InfoContext(ctx, "Operations applied", "count", len(reqs), "valid", fv.Valid)

			if command.Bool("in-place") {
				if err := command.Set("output", path); err != nil {
					return err
				}

				if !command.IsSet("format") && isYAML(path) {
					if err := command.Set("format", formatYAML); err != nil {
						return err
					}
				}
			}

			return writeFlowVersion(command, fv)
		},
	}
}
