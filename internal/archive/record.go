package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Record encoding: varint headerLen | header | payload | crc32c(header|payload)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Codec identifies how a record payload is encoded.
type Codec byte

const (
	CodecNone Codec = 0
	CodecZstd Codec = 1
)

// ParseCodec maps none|zstd to a Codec.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CodecNone, nil
	case "zstd":
		return CodecZstd, nil
	default:
		return CodecNone, fmt.Errorf("unknown compression %q; use none|zstd", s)
	}
}

func (c Codec) String() string {
	if c == CodecZstd {
		return "zstd"
	}
	return "none"
}

const headerLen = 1 + 8

func EncodeRecord(header, payload []byte) []byte {
	out := make([]byte, 0, 10+len(header)+len(payload)+4)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(header)))
	out = append(out, tmp[:n]...)
	out = append(out, header...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	out = append(out, crcb[:]...)
	return out
}

type Decoded struct {
	Header  []byte
	Payload []byte
}

// DecodeRecord splits a stored value and verifies its checksum.
func DecodeRecord(b []byte) (Decoded, bool) {
	if len(b) < 1+4 {
		return Decoded{}, false
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 {
		return Decoded{}, false
	}
	if int(n)+int(hlen)+4 > len(b) {
		return Decoded{}, false
	}
	header := b[n : n+int(hlen)]
	payload := b[n+int(hlen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != expect {
		return Decoded{}, false
	}
	return Decoded{Header: append([]byte(nil), header...), Payload: append([]byte(nil), payload...)}, true
}

func encodeHeader(codec Codec, tsMs int64) []byte {
	h := make([]byte, headerLen)
	h[0] = byte(codec)
	binary.BigEndian.PutUint64(h[1:], uint64(tsMs))
	return h
}

func decodeHeader(h []byte) (Codec, int64, bool) {
	if len(h) < headerLen {
		return CodecNone, 0, false
	}
	return Codec(h[0]), int64(binary.BigEndian.Uint64(h[1:headerLen])), true
}

// payloadCodec compresses and decompresses record payloads. The zero value
// handles CodecNone only.
type payloadCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newPayloadCodec() (*payloadCodec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &payloadCodec{enc: enc, dec: dec}, nil
}

func (c *payloadCodec) encode(codec Codec, raw []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return raw, nil
	case CodecZstd:
		return c.enc.EncodeAll(raw, make([]byte, 0, len(raw))), nil
	}
	return nil, fmt.Errorf("unknown codec %d", codec)
}

func (c *payloadCodec) decode(codec Codec, b []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return b, nil
	case CodecZstd:
		return c.dec.DecodeAll(b, nil)
	}
	return nil, errors.New("unknown codec")
}

func (c *payloadCodec) close() {
	c.enc.Close()
	c.dec.Close()
}
