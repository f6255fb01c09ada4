package main

import (
	"fmt"
	"io"
	"os"

	"github.com/scott-cotton/cli"

	"github.com/reoring/obdict"
	"github.com/reoring/obdict/codec"
)

func convert(cfg *ConvertConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Convert.Parse(cc, args)
	if err != nil {
		return err
	}
	if cfg.Type == "" {
		return fmt.Errorf("%w: convert requires -type", cli.ErrUsage)
	}
	r := cfg.registry()
	t, err := r.ParseType(cfg.Type)
	if err != nil {
		return err
	}
	out := codec.FormatJSON
	if cfg.Out != "" {
		if out, err = codec.ParseFormat(cfg.Out); err != nil {
			return fmt.Errorf("%w: %w", cli.ErrUsage, err)
		}
	}
	var in *codec.Format
	if cfg.In != "" {
		f, err := codec.ParseFormat(cfg.In)
		if err != nil {
			return fmt.Errorf("%w: %w", cli.ErrUsage, err)
		}
		in = &f
	}
	if len(args) == 0 {
		args = []string{"-"}
	}
	for i, file := range args {
		inFmt := codec.FormatOf(file)
		if in != nil {
			inFmt = *in
		}
		if err := convertFile(cfg, cc.Out, file, t, inFmt, out); err != nil {
			return err
		}
		if out == codec.FormatYAML && i < len(args)-1 {
			if _, err := io.WriteString(cc.Out, "---\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

func convertFile(cfg *ConvertConfig, w io.Writer, file string, t *obdict.Type, in, out codec.Format) error {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return fmt.Errorf("could not read %q: %w", file, err)
	}
	opts := []codec.Option{codec.WithRegistry(cfg.registry()), codec.WithRejectDuplicateKeys(cfg.Strict)}
	if cfg.Indent {
		opts = append(opts, codec.WithIndent("", "  "))
	}
	v, err := codec.Decode(in, t, data, opts...)
	if err != nil {
		return fmt.Errorf("error processing %s: %w", file, err)
	}
	b, err := codec.Encode(out, v, opts...)
	if err != nil {
		return fmt.Errorf("error encoding %s: %w", file, err)
	}
	if out == codec.FormatJSON {
		b = append(b, '\n')
	}
	_, err = w.Write(b)
	return err
}
