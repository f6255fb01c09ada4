package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/reoring/obdict"
)

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	_, err := obdict.NewRegistry().Load(obdict.Int, "four")
	reportError(&buf, err)
	assert.Contains(t, buf.String(), "error ["+obdict.CodeConversion+"]")
	assert.Contains(t, buf.String(), err.Error()+"\n")

	buf.Reset()
	reportError(&buf, errors.New("boom"))
	assert.Equal(t, "error: boom\n", buf.String())
}

func TestMainConfig_Registry(t *testing.T) {
	cfg := &MainConfig{}
	r := cfg.registry()
	assert.True(t, r == cfg.registry())

	ty, err := r.ParseType("map[string,seq[time.Duration]]")
	assert.NoError(t, err)
	v, err := r.Load(ty, map[string]any{"a": []any{"1s"}})
	assert.NoError(t, err)
	assert.NotZero(t, v)

	cfg.Lang = "fr"
	assert.Error(t, cfg.setLanguage())
}
