package main

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/scott-cotton/cli"

	"github.com/reoring/obdict/jsonschema"
)

func describe(cfg *DescribeConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Describe.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return fmt.Errorf("%w: describe takes no arguments, got %v", cli.ErrUsage, args)
	}
	if cfg.Type == "" {
		return fmt.Errorf("%w: describe requires -type", cli.ErrUsage)
	}
	r := cfg.registry()
	t, err := r.ParseType(cfg.Type)
	if err != nil {
		return err
	}
	s, err := jsonschema.FromType(r, t)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("internal error: %w", err)
	}
	fmt.Fprintf(cc.Out, "%s (%s)\n%s\n", t, t.Kind(), b)
	return nil
}
