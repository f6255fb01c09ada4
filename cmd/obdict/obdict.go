package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"

	"github.com/reoring/obdict"
)

func obdictMain(cfg *MainConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Main.Parse(cc, args)
	if err != nil {
		return err
	}
	if err := cfg.setLanguage(); err != nil {
		return err
	}
	if len(args) == 0 {
		return cli.ErrNoCommandProvided
	}
	sub := cfg.Main.FindSub(cc, args[0])
	if sub == nil {
		return fmt.Errorf("%w: %q not found", cli.ErrNoSuchCommand, args[0])
	}
	err = sub.Run(cc, args[1:])
	if errors.Is(err, cli.ErrUsage) {
		sub.Usage(cc, err)
		os.Exit(sub.Exit(cc, err))
	}
	if err != nil {
		reportError(os.Stderr, err)
		return cli.ExitCodeErr(1)
	}
	return nil
}

// reportError writes err with its code and path highlighted when w is a
// terminal.
func reportError(w io.Writer, err error) {
	colored := false
	if f, ok := w.(*os.File); ok {
		colored = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	paint := func(c *color.Color, s string) string {
		if !colored {
			return s
		}
		c.EnableColor()
		return c.Sprint(s)
	}
	fmt.Fprint(w, paint(color.New(color.FgRed, color.Bold), "error"))
	if code := obdict.CodeOf(err); code != "" {
		fmt.Fprint(w, " "+paint(color.New(color.FgMagenta), "["+code+"]"))
	}
	if path := obdict.PathOf(err); path != "" {
		fmt.Fprint(w, " "+paint(color.New(color.FgYellow), path))
	}
	fmt.Fprintf(w, ": %v\n", err)
}
