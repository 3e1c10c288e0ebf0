package proof

import (
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// MaxProofSize is the largest payload accepted inside a frame.
const MaxProofSize = 1024

// ErrProofTooLarge is returned when a frame declares, or a caller attempts to
// write, a payload larger than MaxProofSize.
var ErrProofTooLarge = errors.New("proof exceeds maximum size")

// EncodeFrame prepends the uvarint length of payload to payload.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxProofSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrProofTooLarge, len(payload))
	}

	frame := make([]byte, varint.UvarintSize(uint64(len(payload)))+len(payload))
	n := varint.PutUvarint(frame, uint64(len(payload)))
	copy(frame[n:], payload)

	return frame, nil
}

// WriteFrame writes a single frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadFrame reads a single frame from r and returns its payload. The declared
// length is checked against MaxProofSize before any payload byte is read.
// Truncated frames return io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReader{r: r}
	}

	size, err := varint.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("reading frame length: %w", err)
	}

	if size > MaxProofSize {
		return nil, fmt.Errorf("%w: declared %d bytes", ErrProofTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}

	return payload, nil
}

// byteReader reads one byte at a time so that nothing past the length prefix
// is consumed from the underlying stream.
type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}
