package assets

import "meshvault/internal/codec"

// Payload is a record that can be stored as a blob.
type Payload interface {
	// DeclaredSize estimates the encoded size. It only steers placement; the
	// bookkeeping always uses the real encoded length.
	DeclaredSize() uint64
	EncodeBlob(enc *codec.Encoder) error
}

// Decodable is a record that can be rebuilt from stored blob bytes.
type Decodable interface {
	DecodeBlob(dec *codec.Decoder) error
}
