package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	cli "github.com/urfave/cli/v3"

	"github.com/lyzr/workflow-router/cmd/router/container"
	"github.com/lyzr/workflow-router/cmd/router/service"
	"github.com/lyzr/workflow-router/common/clients"
)

func NewImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a generated-workflow JSON file",
		ArgsUsage: "<file.json>",
		Action: func(ctx context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return fmt.Errorf("import needs a file path")
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return withContainer(ctx, command, func(c *container.Container) error {
				return importWorkflow(ctx, c.WorkflowService, data, command.Root().Writer)
			})
		},
	}
}

func NewExportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Print a workflow with its nodes and edges as JSON",
		ArgsUsage: "<workflow_id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := strconv.ParseInt(command.Args().First(), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("export needs a positive workflow id")
			}
			return withContainer(ctx, command, func(c *container.Container) error {
				return exportWorkflow(ctx, c.WorkflowService, id, command.Root().Writer)
			})
		},
	}
}

func importWorkflow(ctx context.Context, svc *service.WorkflowService, data []byte, w io.Writer) error {
	gen, err := clients.ParseGenerated(data)
	if err != nil {
		return err
	}
	report, err := svc.Import(ctx, gen)
	if err != nil {
		return err
	}
	return writeJSON(w, report)
}

func exportWorkflow(ctx context.Context, svc *service.WorkflowService, id int64, w io.Writer) error {
	export, err := svc.Export(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to export workflow %d: %w", id, err)
	}
	return writeJSON(w, export)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
