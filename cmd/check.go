package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cuefix/internal/formatter"
	"github.com/desertthunder/cuefix/internal/shared"
)

// Check evaluates an ad-hoc batch and prints the plan. Nothing is modified.
func (r *Runner) Check(ctx context.Context, cmd *cli.Command) error {
	inputs := cmd.Args().Slice()
	if len(inputs) == 0 {
		return fmt.Errorf("%w: at least one PATH is required", shared.ErrMissingArgument)
	}

	format := cmd.String("format")
	if _, err := formatter.Render(&formatter.PlanExport{}, format); err != nil {
		return err
	}

	engine, err := r.detector()
	if err != nil {
		return err
	}

	handles, err := r.library.Expand(ctx, inputs)
	if err != nil {
		return err
	}
	r.logger.Debug("checking batch", "inputs", len(inputs), "items", len(handles))

	plan, err := engine.Run(ctx, cmd.String("name"), handles, nil)
	if err != nil {
		return err
	}
	export := formatter.NewPlanExport(plan, handles)

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(export, format, path)
		if err != nil {
			return err
		}
		return r.writePlain("%s Wrote %d planned removal(s) to %s\n", formatter.OK("✓"), export.Count, written)
	}

	data, err := formatter.Render(export, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
