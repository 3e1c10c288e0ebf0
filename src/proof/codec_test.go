package proof

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/multiformats/go-varint"
)

func TestFrameRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 127, 128, 300, MaxProofSize} {
		payload := bytes.Repeat([]byte{0xAB}, size)

		var buf bytes.Buffer
		if err := WriteFrame(&buf, payload); err != nil {
			t.Fatalf("size %d: %v", size, err)
		}

		if buf.Len() != varint.UvarintSize(uint64(size))+size {
			t.Fatalf("size %d: frame is %d bytes", size, buf.Len())
		}

		out, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("size %d: %v", size, err)
		}

		if !bytes.Equal(out, payload) {
			t.Fatalf("size %d: payload mismatch", size)
		}
	}
}

func TestEncodeFrameTooLarge(t *testing.T) {
	_, err := EncodeFrame(make([]byte, MaxProofSize+1))
	if !errors.Is(err, ErrProofTooLarge) {
		t.Fatalf("expected ErrProofTooLarge, got %v", err)
	}
}

// countingReader records how many bytes were consumed.
type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestReadFrameRejectsBeforePayload(t *testing.T) {
	prefix := varint.ToUvarint(MaxProofSize + 1)

	// The payload is garbage that would fail any decoding; only the prefix
	// should ever be read.
	stream := append(append([]byte{}, prefix...), bytes.Repeat([]byte{0xFF}, MaxProofSize+1)...)
	cr := &countingReader{r: bytes.NewReader(stream)}

	_, err := ReadFrame(cr)
	if !errors.Is(err, ErrProofTooLarge) {
		t.Fatalf("expected ErrProofTooLarge, got %v", err)
	}

	if cr.n != len(prefix) {
		t.Fatalf("read %d bytes, expected only the %d prefix bytes", cr.n, len(prefix))
	}
}

func TestReadFrameErrors(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty stream", nil, io.EOF},
		{"truncated prefix", []byte{0x80}, io.ErrUnexpectedEOF},
		{"truncated payload", append(varint.ToUvarint(10), 1, 2, 3), io.ErrUnexpectedEOF},
		{"non minimal prefix", []byte{0x81, 0x00}, varint.ErrNotMinimal},
	}

	for _, tc := range testCases {
		_, err := ReadFrame(&countingReader{r: bytes.NewReader(tc.data)})
		if !errors.Is(err, tc.err) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.err, err)
		}
	}
}
