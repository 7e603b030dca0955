package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Frame limits.
const (
	// MaxFrameSize bounds a single frame body (4 MiB). A larger length
	// prefix means the stream is unusable.
	MaxFrameSize = 4 << 20

	// lengthSize is the size of the length prefix.
	lengthSize = 4

	// minBodySize is crc (4) + kind (1) + round (8).
	minBodySize = 4 + 1 + 8
)

// Errors for frame decoding. ErrFrameTooLarge is fatal for the stream;
// the others leave the stream aligned on the next frame.
var (
	ErrFrameTooLarge     = errors.New("protocol: frame too large")
	ErrMalformedFrame    = errors.New("protocol: malformed frame")
	ErrChecksumMismatch  = errors.New("protocol: checksum mismatch")
	ErrUnknownKind       = errors.New("protocol: unknown message kind")
	ErrMalformedPayload  = errors.New("protocol: malformed payload")
	ErrDigestMismatch    = errors.New("protocol: event list digest mismatch")
	ErrVersionMismatch   = errors.New("protocol: version mismatch")
	ErrUnexpectedPayload = errors.New("protocol: unexpected payload")
)

// IsFatal reports whether a read error leaves the stream unusable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrMalformedFrame),
		errors.Is(err, ErrChecksumMismatch),
		errors.Is(err, ErrUnknownKind),
		errors.Is(err, ErrMalformedPayload),
		errors.Is(err, ErrDigestMismatch),
		errors.Is(err, ErrUnexpectedPayload):
		return false
	default:
		return true
	}
}

// Encode encodes a message into a complete frame including its length prefix.
func Encode(m Message) ([]byte, error) {
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(m.Kind))
	}

	payload, err := encodePayload(m)
	if err != nil {
		return nil, err
	}

	bodyLen := minBodySize + len(payload)
	if bodyLen > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, bodyLen)
	}

	out := make([]byte, lengthSize+bodyLen)
	binary.BigEndian.PutUint32(out[0:4], uint32(bodyLen))
	out[8] = byte(m.Kind)
	binary.BigEndian.PutUint64(out[9:17], m.Round)
	copy(out[17:], payload)

	crc := crc32.ChecksumIEEE(out[8:])
	binary.BigEndian.PutUint32(out[4:8], crc)
	return out, nil
}

// Decode decodes a frame body (everything after the length prefix).
func Decode(body []byte) (Message, error) {
	if len(body) < minBodySize {
		return Message{}, ErrMalformedFrame
	}

	wantCRC := binary.BigEndian.Uint32(body[0:4])
	if got := crc32.ChecksumIEEE(body[4:]); got != wantCRC {
		return Message{}, ErrChecksumMismatch
	}

	kind := Kind(body[4])
	if !kind.Valid() {
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
	}

	m := Message{
		Kind:  kind,
		Round: binary.BigEndian.Uint64(body[5:13]),
	}
	if err := decodePayload(&m, body[13:]); err != nil {
		return Message{}, err
	}
	return m, nil
}

// WriteMessage encodes m and writes the frame to w.
func WriteMessage(w io.Writer, m Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadMessage reads one frame from r and decodes it.
//
// A non-fatal error (see IsFatal) means the frame was consumed and
// discarded; the caller may keep reading.
func ReadMessage(r io.Reader) (Message, error) {
	var header [lengthSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, err
	}

	n := binary.BigEndian.Uint32(header[:])
	if n > MaxFrameSize {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			return Message{}, io.ErrUnexpectedEOF
		}
		return Message{}, err
	}

	return Decode(body)
}
