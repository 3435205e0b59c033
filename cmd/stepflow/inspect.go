package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/migrations"
	"github.com/dukex/stepflow/pkg/models"
	cli "github.com/urfave/cli/v3"
)

func NewInspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Aliases:   []string{"i"},
		Usage:     "Print the step tree of a flow version file",
		ArgsUsage: "FILE",
		Action: func(_ context.Context, command *cli.Command) error {
			path, err := fileArg(command)
			if err != nil {
				return err
			}

			doc, err := readDocument(path)
			if err != nil {
				return err
			}

			pipeline := migrations.New(log.WithModule("cli").With("command", "inspect", "file", path))

			fv, err := pipeline.Type(pipeline.Apply(doc))
			if err != nil {
				return err
			}

			return printFlowVersion(stdout(command), doc.SchemaVersion(), fv)
		},
	}
}

func printFlowVersion(w io.Writer, storedVersion string, fv *models.FlowVersion) error {
	p := &treePrinter{w: w}

	p.linef(0, "%s (%s, valid=%t)", fv.DisplayName, fv.State, fv.Valid)
	p.linef(0, "schema: %s -> %s", orNone(storedVersion), fv.SchemaVersion)

	if len(fv.ConnectionIDs) > 0 {
		p.linef(0, "connections: %s", strings.Join(fv.ConnectionIDs, ", "))
	}

	if len(fv.AgentIDs) > 0 {
		p.linef(0, "agents: %s", strings.Join(fv.AgentIDs, ", "))
	}

	p.chain(1, fv.Trigger)

	return p.err
}

type treePrinter struct {
	w   io.Writer
	err error
}

func (p *treePrinter) linef(depth int, format string, args ...any) {
	if p.err != nil {
		return
	}

	_, p.err = fmt.Fprintf(p.w, strings.Repeat("  ", depth)+format+"\n", args...)
}

// chain prints s and every step after it at depth.
func (p *treePrinter) chain(depth int, s models.Step) {
	for !models.IsNil(s) {
		p.step(depth, s)
		s = s.Base().NextAction
	}
}

func (p *treePrinter) step(depth int, s models.Step) {
	var flags []string
	if !s.Base().Valid {
		flags = append(flags, "invalid")
	}

	if a, ok := s.(models.Action); ok && a.IsSkipped() {
		flags = append(flags, "skipped")
	}

	suffix := ""
	if len(flags) > 0 {
		suffix = " [" + strings.Join(flags, ", ") + "]"
	}

	p.linef(depth, "%s %s%s", s.Base().Name, s.Type(), suffix)

	switch v := s.(type) {
	case *models.LoopOnItemsAction:
		if !models.IsNil(v.FirstLoopAction) {
			p.chain(depth+1, v.FirstLoopAction)
		}
	case *models.RouterAction:
		for _, b := range v.Branches {
			p.linef(depth+1, "%s (%s)", b.Branch.BranchName, b.Branch.BranchType)

			if !models.IsNil(b.Child) {
				p.chain(depth+2, b.Child)
			}
		}
	}
}

func orNone(v string) string {
	if v == "" {
		return "none"
	}

	return v
}
