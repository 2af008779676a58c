// The wire package defines the binary protocol spoken between the server and
// game clients. Every frame is a 4 byte little-endian header (total size and
// message tag) followed by a tag-specific payload. Tags are partitioned into
// fixed per-handler ranges so that a single connection can be multiplexed
// across all of the server's handlers.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the length of the frame header in bytes.
const HeaderSize = 4

// MaxFrameSize is the largest frame the uint16 size header can describe.
const MaxFrameSize = 0xffff

// Header precedes every message in both directions.
type Header struct {
	// Size is the total length of the frame, header included.
	Size uint16
	// Tag identifies the message type within a handler's tag range.
	Tag uint16
}

// Tag ranges. Each handler owns TagRangeSize consecutive tags; the range a
// tag falls into determines which handler a frame is dispatched to.
const (
	TagRangeSize = 100

	SessionTagBase uint16 = 0
	RoomTagBase    uint16 = 100
	ChatTagBase    uint16 = 200
	FriendTagBase  uint16 = 300
)

// Message is implemented by anything that can be sent to a client.
type Message interface {
	// Tag returns the wire tag identifying the message type.
	Tag() uint16
	// MarshalPayload appends the message payload to w.
	MarshalPayload(w *Writer)
}

// ErrTruncated is returned when a payload ends before the field being decoded.
var ErrTruncated = errors.New("wire: truncated payload")

// ErrFrameTooLarge is returned when a message encodes past MaxFrameSize, where
// the size header would wrap and desynchronize the receiver's stream.
var ErrFrameTooLarge = errors.New("wire: message exceeds the maximum frame size")

// Frame serializes msg into a complete frame ready to be written to a connection.
func Frame(msg Message) ([]byte, error) {
	var w Writer
	msg.MarshalPayload(&w)
	payload := w.Bytes()

	if HeaderSize+len(payload) > MaxFrameSize {
		return nil, fmt.Errorf("%w: tag %d encodes to %d bytes", ErrFrameTooLarge, msg.Tag(), HeaderSize+len(payload))
	}

	frame := make([]byte, HeaderSize, HeaderSize+len(payload))
	binary.LittleEndian.PutUint16(frame[0:2], uint16(HeaderSize+len(payload)))
	binary.LittleEndian.PutUint16(frame[2:4], msg.Tag())
	return append(frame, payload...), nil
}

// Fits reports whether msg can be framed within MaxFrameSize. Handlers that
// rebroadcast client-supplied text check this before fanning a message out.
func Fits(msg Message) bool {
	var w Writer
	msg.MarshalPayload(&w)
	return HeaderSize+len(w.Bytes()) <= MaxFrameSize
}

// ParseHeader decodes the frame header from the first HeaderSize bytes of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, ErrTruncated
	}
	return Header{
		Size: binary.LittleEndian.Uint16(data[0:2]),
		Tag:  binary.LittleEndian.Uint16(data[2:4]),
	}, nil
}

// Writer accumulates a message payload. The zero value is ready to use.
type Writer struct {
	buf bytes.Buffer
}

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) WriteUint8(b byte) {
	w.buf.WriteByte(b)
}

func (w *Writer) WriteBool(b bool) {
	if b {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

// WriteString writes a uint16 length prefix followed by the UTF-8 bytes of s.
func (w *Writer) WriteString(s string) {
	w.WriteUint16(uint16(len(s)))
	w.buf.WriteString(s)
}

// WriteBytes writes a uint16 length prefix followed by b.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUint16(uint16(len(b)))
	w.buf.Write(b)
}

// WriteStrings writes a uint16 element count followed by each string.
func (w *Writer) WriteStrings(values []string) {
	w.WriteUint16(uint16(len(values)))
	for _, v := range values {
		w.WriteString(v)
	}
}

// Reader decodes a message payload. Decoding errors are sticky: once a read
// fails, all subsequent reads return zero values and Err reports the failure.
// This lets message decoders read every field unconditionally and check for
// errors once at the end.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Err() error { return r.err }

func (r *Reader) remaining() int { return len(r.data) - r.off }

func (r *Reader) fail() {
	if r.err == nil {
		r.err = fmt.Errorf("%w at offset %d", ErrTruncated, r.off)
	}
}

func (r *Reader) Uint8() byte {
	if r.err != nil || r.remaining() < 1 {
		r.fail()
		return 0
	}
	b := r.data[r.off]
	r.off++
	return b
}

func (r *Reader) Bool() bool {
	return r.Uint8() != 0
}

func (r *Reader) Uint16() uint16 {
	if r.err != nil || r.remaining() < 2 {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

func (r *Reader) String() string {
	n := int(r.Uint16())
	if r.err != nil || r.remaining() < n {
		r.fail()
		return ""
	}
	s := string(r.data[r.off : r.off+n])
	r.off += n
	return s
}

func (r *Reader) Bytes() []byte {
	n := int(r.Uint16())
	if r.err != nil || r.remaining() < n {
		r.fail()
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

func (r *Reader) Strings() []string {
	n := int(r.Uint16())
	if r.err != nil {
		return nil
	}
	values := make([]string, 0, n)
	for i := 0; i < n; i++ {
		values = append(values, r.String())
	}
	if r.err != nil {
		return nil
	}
	return values
}
