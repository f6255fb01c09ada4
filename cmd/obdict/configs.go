package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
	"github.com/scott-cotton/cli"

	"github.com/reoring/obdict"
	"github.com/reoring/obdict/codec"
	"github.com/reoring/obdict/i18n"
)

type MainConfig struct {
	Verbose bool   `cli:"name=v aliases=verbose desc='log registry activity to stderr'"`
	Lang    string `cli:"name=lang desc='language of error messages: en, ja'"`

	Main *cli.Command

	reg *obdict.Registry
}

// registry builds the process registry once the main options are parsed.
func (cfg *MainConfig) registry() *obdict.Registry {
	if cfg.reg != nil {
		return cfg.reg
	}
	cfg.reg = obdict.NewRegistry(obdict.WithLogger(cfg.logger()))
	codec.RegisterTime(cfg.reg)
	return cfg.reg
}

func (cfg *MainConfig) logger() logr.Logger {
	if !cfg.Verbose {
		return logr.Discard()
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02T15:04:05.000Z07:00"}
	zlog := zerolog.New(output).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	return zerologr.New(&zlog).WithName("obdict")
}

func (cfg *MainConfig) setLanguage() error {
	switch cfg.Lang {
	case "":
	case "en", "ja":
		i18n.SetLanguage(cfg.Lang)
	default:
		return fmt.Errorf("%w: unknown language %q", cli.ErrUsage, cfg.Lang)
	}
	return nil
}

type ConvertConfig struct {
	*MainConfig
	Convert *cli.Command

	Type   string `cli:"name=type aliases=t desc='descriptor of the documents, e.g. map[string,seq[int]]'"`
	In     string `cli:"name=i aliases=ifmt desc='input format: json/j, yaml/y (default by file extension)'"`
	Out    string `cli:"name=o aliases=ofmt desc='output format: json/j, yaml/y (default json)'"`
	Indent bool   `cli:"name=indent desc='indent json output'"`
	Strict bool   `cli:"name=strict desc='reject repeated json object keys'"`
}

type DescribeConfig struct {
	*MainConfig
	Describe *cli.Command

	Type string `cli:"name=type aliases=t desc='descriptor to describe'"`
}
