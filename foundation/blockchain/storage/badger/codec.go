package badger

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// codec encodes values with canonical CBOR and compresses the result
// with zstd.
type codec struct {
	encoder      cbor.EncMode
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

// newCodec constructs a codec.
func newCodec() (*codec, error) {
	encoder, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("could not create encoder: %w", err)
	}

	compressor, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("could not create compressor: %w", err)
	}

	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("could not create decompressor: %w", err)
	}

	c := codec{
		encoder:      encoder,
		compressor:   compressor,
		decompressor: decompressor,
	}

	return &c, nil
}

// Marshal encodes and compresses the value.
func (c *codec) Marshal(value any) ([]byte, error) {
	data, err := c.encoder.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("could not encode value: %w", err)
	}

	return c.compressor.EncodeAll(data, nil), nil
}

// Unmarshal decompresses and decodes the data into the value.
func (c *codec) Unmarshal(compressed []byte, value any) error {
	data, err := c.decompressor.DecodeAll(compressed, nil)
	if err != nil {
		return fmt.Errorf("could not decompress data: %w", err)
	}

	if err := cbor.Unmarshal(data, value); err != nil {
		return fmt.Errorf("could not decode value: %w", err)
	}

	return nil
}

// close releases the resources held by the compressor and decompressor.
func (c *codec) close() error {
	c.decompressor.Close()
	return c.compressor.Close()
}
