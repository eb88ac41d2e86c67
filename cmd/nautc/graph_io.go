package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nebulastream/nebulastream-sub003/internal/nir"
)

type emitFormat string

const (
	emitDump    emitFormat = "dump"
	emitYAML    emitFormat = "yaml"
	emitMsgpack emitFormat = "msgpack"
)

func readEmitFormat(value string) (emitFormat, error) {
	switch f := emitFormat(strings.ToLower(strings.TrimSpace(value))); f {
	case emitDump, emitYAML, emitMsgpack:
		return f, nil
	}
	return "", fmt.Errorf("invalid --emit value %q (expected dump|yaml|msgpack)", value)
}

func (f emitFormat) ext() string {
	switch f {
	case emitYAML:
		return ".yaml"
	case emitMsgpack:
		return ".mp"
	}
	return ".nir"
}

// readGraph loads a graph by extension: .mp and .msgpack are binary, anything
// else is a YAML fixture. "-" reads YAML from stdin.
func readGraph(path string, stdin io.Reader) (*nir.Graph, error) {
	if path == "-" {
		return nir.LoadYAML(bufio.NewReader(stdin))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp", ".msgpack":
		return nir.Decode(bufio.NewReader(f))
	}
	return nir.LoadYAML(bufio.NewReader(f))
}

func writeGraph(w io.Writer, g *nir.Graph, format emitFormat) error {
	switch format {
	case emitYAML:
		return nir.WriteYAML(w, g)
	case emitMsgpack:
		return nir.Encode(w, g)
	}
	return nir.Dump(w, g)
}

// writeGraphFile writes atomically through a temp file in the target directory.
func writeGraphFile(path string, g *nir.Graph, format emitFormat) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".nautc-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()
	bw := bufio.NewWriter(f)
	if err = writeGraph(bw, g, format); err != nil {
		_ = f.Close()
		return err
	}
	if err = bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// outputPath picks the file for one result. With several inputs -o names a
// directory and each graph is written as <name><ext>.
func outputPath(out string, multi bool, name string, format emitFormat) string {
	if !multi {
		return out
	}
	return filepath.Join(out, sanitizeName(name)+format.ext())
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, name)
}
