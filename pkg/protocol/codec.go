package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Decoder reads one JSON value per line.
type Decoder struct {
	scanner  *bufio.Scanner
	maxFrame int
}

// NewDecoder returns a Decoder reading from r. Lines longer than maxFrame
// bytes are a protocol error; maxFrame <= 0 means DefaultMaxFrameBytes.
func NewDecoder(r io.Reader, maxFrame int) *Decoder {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameBytes
	}

	// the scanner's limit is the larger of maxFrame and the initial capacity
	initial := 64 * 1024
	if maxFrame < initial {
		initial = maxFrame
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), maxFrame)

	return &Decoder{scanner: scanner, maxFrame: maxFrame}
}

// Decode reads the next non-blank line into v. It returns io.EOF on a clean
// end of stream, a CodeProtocol error for oversized or malformed frames, and
// a CodeTransport error when the underlying read fails.
func (d *Decoder) Decode(v interface{}) error {
	for d.scanner.Scan() {
		line := bytes.TrimSpace(d.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if err := json.Unmarshal(line, v); err != nil {
			return ProtocolErrorf("malformed frame: %v", err)
		}
		return nil
	}

	err := d.scanner.Err()
	switch {
	case err == nil:
		return io.EOF
	case errors.Is(err, bufio.ErrTooLong):
		return ProtocolErrorf("frame exceeds %d bytes", d.maxFrame)
	default:
		return TransportError(err, "read")
	}
}

// Encoder writes one JSON value per line.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes v followed by a newline in a single Write call.
func (e *Encoder) Encode(v interface{}) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode")
	}
	buf = append(buf, '\n')

	if _, err := e.w.Write(buf); err != nil {
		return TransportError(err, "write")
	}
	return nil
}
