package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/stepflow/pkg/migrations"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/operations"
	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	ErrMissingFile   = errors.New("missing flow version file argument")
	ErrUnknownFormat = errors.New("unknown output format")
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format (json, yaml)",
		Value:   formatJSON,
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write the result to this file instead of stdout",
	}
}

func fileArg(command *cli.Command) (string, error) {
	path := command.Args().First()
	if path == "" {
		return "", ErrMissingFile
	}

	return path, nil
}

// readJSON returns the content of a .json, .yaml or .yml file as JSON.
func readJSON(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if !isYAML(path) {
		return data, nil
	}

	var value any
	if err := yaml.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	out, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("converting %s to JSON: %w", path, err)
	}

	return out, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}

	return false
}

func readDocument(path string) (migrations.Document, error) {
	data, err := readJSON(path)
	if err != nil {
		return nil, err
	}

	doc, err := migrations.DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	return doc, nil
}

// readRequests accepts one operation request or a list of them.
func readRequests(path string) ([]operations.Request, error) {
	data, err := readJSON(path)
	if err != nil {
		return nil, err
	}

	data = bytes.TrimSpace(data)

	if bytes.HasPrefix(data, []byte("[")) {
		var reqs []operations.Request
		if err := json.Unmarshal(data, &reqs); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}

		return reqs, nil
	}

	var req operations.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	return []operations.Request{req}, nil
}

func writeFlowVersion(command *cli.Command, fv *models.FlowVersion) error {
	data, err := encode(fv, command.String("format"))
	if err != nil {
		return err
	}

	if path := command.String("output"); path != "" {
		return os.WriteFile(path, data, 0o600)
	}

	_, err = stdout(command).Write(data)

	return err
}

func encode(fv *models.FlowVersion, format string) ([]byte, error) {
	data, err := json.MarshalIndent(fv, "", "  ")
	if err != nil {
		return nil, err
	}

	switch format {
	case formatJSON, "":
		return append(data, '\n'), nil
	case formatYAML:
		var value any
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, err
		}

		return yaml.Marshal(value)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func stdout(command *cli.Command) io.Writer {
	return command.Root().Writer
}
