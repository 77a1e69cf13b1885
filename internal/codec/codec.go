// Package codec serializes cache and session payloads.
//
// Every encoded value starts with a one-byte header telling whether the body
// is compressed. Bodies at or above the compression threshold are zstd
// compressed; smaller ones are stored raw.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Encoding names a body format.
type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingCBOR Encoding = "cbor"
)

const (
	headerRaw  byte = 0x00
	headerZstd byte = 0x01
)

var (
	// ErrUnknownEncoding is returned by New for an unsupported Encoding.
	ErrUnknownEncoding = errors.New("codec: unknown encoding")
	// ErrCorrupt is returned by Unmarshal for input without a valid header.
	ErrCorrupt = errors.New("codec: corrupt payload")
)

// Codec marshals values with one Encoding and optional compression. It is
// safe for concurrent use.
type Codec struct {
	encoding  Encoding
	threshold int

	cborDec cbor.DecMode
	zenc    *zstd.Encoder
	zdec    *zstd.Decoder
}

// New returns a Codec. compressThreshold <= 0 disables compression on
// write; compressed input is always readable.
func New(encoding Encoding, compressThreshold int) (*Codec, error) {
	encoding = Encoding(strings.ToLower(string(encoding)))
	if encoding == "" {
		encoding = EncodingJSON
	}
	if encoding != EncodingJSON && encoding != EncodingCBOR {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, encoding)
	}

	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, err
	}

	zenc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	zdec, err := zstd.NewReader(nil)
	if err != nil {
		_ = zenc.Close()
		return nil, err
	}

	return &Codec{
		encoding:  encoding,
		threshold: compressThreshold,
		cborDec:   dec,
		zenc:      zenc,
		zdec:      zdec,
	}, nil
}

// Encoding reports the body format.
func (c *Codec) Encoding() Encoding { return c.encoding }

// Marshal encodes v and compresses the body when it reaches the threshold.
func (c *Codec) Marshal(v any) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	switch c.encoding {
	case EncodingCBOR:
		body, err = cbor.Marshal(v)
	default:
		body, err = json.Marshal(v)
	}
	if err != nil {
		return nil, err
	}

	if c.threshold > 0 && len(body) >= c.threshold {
		out := make([]byte, 1, 1+len(body)/2)
		out[0] = headerZstd
		return c.zenc.EncodeAll(body, out), nil
	}

	out := make([]byte, 1+len(body))
	out[0] = headerRaw
	copy(out[1:], body)
	return out, nil
}

// Unmarshal decodes data produced by Marshal into v.
func (c *Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return ErrCorrupt
	}

	body := data[1:]
	switch data[0] {
	case headerRaw:
	case headerZstd:
		var err error
		body, err = c.zdec.DecodeAll(body, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	default:
		return ErrCorrupt
	}

	if c.encoding == EncodingCBOR {
		return c.cborDec.Unmarshal(body, v)
	}
	return json.Unmarshal(body, v)
}

// Close releases the compression workers.
func (c *Codec) Close() error {
	c.zdec.Close()
	return c.zenc.Close()
}
