// Package snapshot stores analysis results in a compact, reproducible form.
//
// A snapshot is a four byte magic, a big-endian schema version and an LZ4
// frame holding the msgpack encoding of the result. The analysis id is not
// part of a snapshot, so two analyses of the same inputs produce identical
// bytes.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Sumatoshi-tech/liveedit/pkg/engine"
)

// Schema is the payload layout version. Increment when DocumentResult changes shape.
const Schema uint16 = 1

var magic = [4]byte{'L', 'E', 'S', 'N'}

// Sentinel errors for snapshot decoding.
var (
	ErrNotSnapshot = errors.New("not a liveedit snapshot")
	ErrSchema      = errors.New("unsupported snapshot schema")
)

type payload struct {
	Schema    uint16                  `msgpack:"schema"`
	Documents []engine.DocumentResult `msgpack:"documents"`
}

// Encode writes a compressed snapshot of result.
func Encode(writer io.Writer, result *engine.Result) error {
	header := make([]byte, 0, len(magic)+2)
	header = append(header, magic[:]...)
	header = binary.BigEndian.AppendUint16(header, Schema)

	_, err := writer.Write(header)
	if err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}

	body, err := Marshal(result)
	if err != nil {
		return err
	}

	compressor := lz4.NewWriter(writer)

	_, err = compressor.Write(body)
	if err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}

	err = compressor.Close()
	if err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}

	return nil
}

// Decode reads a snapshot written by Encode. The returned result has no id.
func Decode(reader io.Reader) (*engine.Result, error) {
	header := make([]byte, len(magic)+2)

	_, err := io.ReadFull(reader, header)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotSnapshot, err)
	}

	if !bytes.Equal(header[:len(magic)], magic[:]) {
		return nil, ErrNotSnapshot
	}

	if version := binary.BigEndian.Uint16(header[len(magic):]); version != Schema {
		return nil, fmt.Errorf("%w: %d", ErrSchema, version)
	}

	var body payload

	err = msgpack.NewDecoder(lz4.NewReader(reader)).Decode(&body)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	if body.Schema != Schema {
		return nil, fmt.Errorf("%w: %d", ErrSchema, body.Schema)
	}

	return &engine.Result{Documents: body.Documents}, nil
}

// Marshal returns the uncompressed msgpack payload of result.
func Marshal(result *engine.Result) ([]byte, error) {
	var buf bytes.Buffer

	encoder := msgpack.NewEncoder(&buf)
	encoder.SetSortMapKeys(true)
	encoder.UseCompactInts(true)

	err := encoder.Encode(payload{Schema: Schema, Documents: result.Documents})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	return buf.Bytes(), nil
}

// Digest is a stable hash of the snapshot payload. Equal digests mean equal
// analysis outcomes.
func Digest(result *engine.Result) (string, error) {
	body, err := Marshal(result)
	if err != nil {
		return "", err
	}

	return strconv.FormatUint(xxhash.Sum64(body), 16), nil
}

// WriteJSON writes the documents of result as indented JSON without the id.
func WriteJSON(writer io.Writer, result *engine.Result) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(struct {
		Schema    uint16                  `json:"schema"`
		Documents []engine.DocumentResult `json:"documents"`
	}{Schema: Schema, Documents: result.Documents})
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}

	return nil
}
