package nir

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when the encoded Graph layout changes
const codecSchemaVersion uint16 = 1

type envelope struct {
	Schema uint16
	Graph  *Graph
}

// Encode writes g in the binary msgpack form.
func Encode(w io.Writer, g *Graph) error {
	enc := msgpack.NewEncoder(w)
	return enc.Encode(envelope{Schema: codecSchemaVersion, Graph: g})
}

// Decode reads a graph written by Encode and validates it.
func Decode(r io.Reader) (*Graph, error) {
	var env envelope
	if err := msgpack.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}
	if env.Schema != codecSchemaVersion {
		return nil, fmt.Errorf("graph schema %d, want %d", env.Schema, codecSchemaVersion)
	}
	if env.Graph == nil {
		return nil, fmt.Errorf("decode graph: empty payload")
	}
	if err := Validate(env.Graph); err != nil {
		return nil, err
	}
	return env.Graph, nil
}

// Marshal returns the encoded bytes of g.
func Marshal(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Digest is the SHA-256 of the encoded graph.
func Digest(g *Graph) ([sha256.Size]byte, error) {
	data, err := Marshal(g)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(data), nil
}
