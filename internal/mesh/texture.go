package mesh

import (
	"fmt"

	"meshvault/internal/codec"
)

// Texture is an opaque texture byte stream.
type Texture struct {
	Data []byte `json:"data" yaml:"data"`
}

func (t *Texture) DeclaredSize() uint64 { return 8 + uint64(len(t.Data)) }

func (t *Texture) EncodeBlob(enc *codec.Encoder) error {
	enc.PutBytes(t.Data)
	return nil
}

func (t *Texture) DecodeBlob(dec *codec.Decoder) error {
	t.Data = dec.Bytes()
	if err := dec.Err(); err != nil {
		return fmt.Errorf("decode texture: %w", err)
	}
	return nil
}
