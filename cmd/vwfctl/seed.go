package main

import (
	"context"
	"fmt"
	"io"

	cli "github.com/urfave/cli/v3"

	"github.com/lyzr/workflow-router/cmd/router/container"
	"github.com/lyzr/workflow-router/cmd/router/service"
	"github.com/lyzr/workflow-router/common/clients"
)

func NewSeedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create the sample workflows",
		Action: func(ctx context.Context, command *cli.Command) error {
			return withContainer(ctx, command, func(c *container.Container) error {
				return seed(ctx, c.WorkflowService, command.Root().Writer)
			})
		},
	}
}

func pos(v float64) *float64 { return &v }

func sampleWorkflows() []*clients.GeneratedWorkflow {
	return []*clients.GeneratedWorkflow{
		{
			Title:       "Sample Workflow 1",
			Description: "This is a sample workflow for testing purposes.",
			Domain:      "Testing",
			Nodes: []clients.GeneratedNode{
				{ID: "start", Type: "action", Title: "Start", X: pos(100), Y: pos(100)},
				{ID: "process", Type: "action", Title: "Process", X: pos(200), Y: pos(100)},
				{ID: "end", Type: "terminal", Title: "End", X: pos(300), Y: pos(100)},
			},
			Edges: []clients.GeneratedEdge{
				{FromNodeID: "start", ToNodeID: "process", Label: "Next", Style: "solid"},
				{FromNodeID: "process", ToNodeID: "end", Label: "Finish", Style: "solid"},
			},
		},
		{
			Title:       "Sample Workflow 2",
			Description: "Another sample workflow for demonstration.",
			Domain:      "Demonstration",
		},
	}
}

func seed(ctx context.Context, svc *service.WorkflowService, w io.Writer) error {
	for _, wf := range sampleWorkflows() {
		report, err := svc.Import(ctx, wf)
		if err != nil {
			return fmt.Errorf("failed to seed %q: %w", wf.Title, err)
		}
		fmt.Fprintf(w, "created workflow %d %q (%d nodes, %d edges)\n",
			report.Workflow.ID, report.Workflow.Title, report.NodesCreated, report.EdgesCreated)
	}
	return nil
}
