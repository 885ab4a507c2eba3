package mesh

import (
	"fmt"
	"sort"

	"meshvault/internal/codec"
)

type Vec2 [2]float32
type Vec3 [3]float32
type Vec4 [4]float32

// Vertex is one vertex of a mesh. Every attribute is optional.
type Vertex struct {
	Position    *Vec3      `json:"position,omitempty" yaml:"position,omitempty"`
	Normal      *Vec3      `json:"normal,omitempty" yaml:"normal,omitempty"`
	Tangent     *Vec4      `json:"tangent,omitempty" yaml:"tangent,omitempty"`
	UV          *Vec2      `json:"uv,omitempty" yaml:"uv,omitempty"`
	Color       *Vec4      `json:"color,omitempty" yaml:"color,omitempty"`
	BoneIndices *[4]uint16 `json:"bone_indices,omitempty" yaml:"bone_indices,omitempty"`
	BoneWeights *Vec4      `json:"bone_weights,omitempty" yaml:"bone_weights,omitempty"`

	// Extra holds named attributes the fixed fields do not cover.
	Extra map[string][]float32 `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// VertexSize is the encoded size of a vertex with every fixed attribute set
// and no extras.
const VertexSize = (1+12)*2 + (1+16)*3 + (1+8)*2 + 1

func (v *Vertex) encode(enc *codec.Encoder) {
	putVec3(enc, v.Position)
	putVec3(enc, v.Normal)
	putVec4(enc, v.Tangent)
	putVec2(enc, v.UV)
	putVec4(enc, v.Color)
	enc.PutOption(v.BoneIndices != nil)
	if v.BoneIndices != nil {
		for _, idx := range v.BoneIndices {
			enc.PutUint16(idx)
		}
	}
	putVec4(enc, v.BoneWeights)

	enc.PutOption(v.Extra != nil)
	if v.Extra == nil {
		return
	}
	// Map order is random; sorted keys keep the bytes stable.
	keys := make([]string, 0, len(v.Extra))
	for k := range v.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	enc.PutUint64(uint64(len(keys)))
	for _, k := range keys {
		enc.PutString(k)
		values := v.Extra[k]
		enc.PutUint64(uint64(len(values)))
		for _, f := range values {
			enc.PutFloat32(f)
		}
	}
}

func (v *Vertex) decode(dec *codec.Decoder) {
	v.Position = vec3(dec)
	v.Normal = vec3(dec)
	v.Tangent = vec4(dec)
	v.UV = vec2(dec)
	v.Color = vec4(dec)
	if dec.Option() {
		var idx [4]uint16
		for i := range idx {
			idx[i] = dec.Uint16()
		}
		v.BoneIndices = &idx
	} else {
		v.BoneIndices = nil
	}
	v.BoneWeights = vec4(dec)

	v.Extra = nil
	if !dec.Option() {
		return
	}
	// Each entry needs at least its two length prefixes.
	n := dec.Len(16)
	v.Extra = make(map[string][]float32, n)
	for i := 0; i < n && dec.Err() == nil; i++ {
		key := dec.String()
		values := make([]float32, dec.Len(4))
		for j := range values {
			values[j] = dec.Float32()
		}
		v.Extra[key] = values
	}
}

// VertexData is a vertex buffer with its index buffer.
type VertexData struct {
	Vertices []Vertex `json:"vertices" yaml:"vertices"`
	Indices  []uint32 `json:"indices" yaml:"indices"`
}

// DeclaredSize estimates the encoded size from the buffer lengths, counting
// every vertex as fully populated.
func (d *VertexData) DeclaredSize() uint64 {
	return 16 + uint64(len(d.Vertices))*VertexSize + 4*uint64(len(d.Indices))
}

func (d *VertexData) EncodeBlob(enc *codec.Encoder) error {
	enc.PutUint64(uint64(len(d.Vertices)))
	for i := range d.Vertices {
		d.Vertices[i].encode(enc)
	}
	enc.PutUint64(uint64(len(d.Indices)))
	for _, idx := range d.Indices {
		enc.PutUint32(idx)
	}
	return nil
}

func (d *VertexData) DecodeBlob(dec *codec.Decoder) error {
	// The smallest vertex is eight absent tags.
	d.Vertices = make([]Vertex, dec.Len(8))
	for i := range d.Vertices {
		if dec.Err() != nil {
			break
		}
		d.Vertices[i].decode(dec)
	}
	d.Indices = make([]uint32, dec.Len(4))
	for i := range d.Indices {
		d.Indices[i] = dec.Uint32()
	}
	if err := dec.Err(); err != nil {
		return fmt.Errorf("decode vertex data: %w", err)
	}
	return nil
}

// Validate checks that every index points at a vertex.
func (d *VertexData) Validate() error {
	for i, idx := range d.Indices {
		if int(idx) >= len(d.Vertices) {
			return fmt.Errorf("index %d refers to vertex %d of %d", i, idx, len(d.Vertices))
		}
	}
	return nil
}

func putVec2(enc *codec.Encoder, v *Vec2) {
	enc.PutOption(v != nil)
	if v != nil {
		for _, f := range v {
			enc.PutFloat32(f)
		}
	}
}

func putVec3(enc *codec.Encoder, v *Vec3) {
	enc.PutOption(v != nil)
	if v != nil {
		for _, f := range v {
			enc.PutFloat32(f)
		}
	}
}

func putVec4(enc *codec.Encoder, v *Vec4) {
	enc.PutOption(v != nil)
	if v != nil {
		for _, f := range v {
			enc.PutFloat32(f)
		}
	}
}

func vec2(dec *codec.Decoder) *Vec2 {
	if !dec.Option() {
		return nil
	}
	return &Vec2{dec.Float32(), dec.Float32()}
}

func vec3(dec *codec.Decoder) *Vec3 {
	if !dec.Option() {
		return nil
	}
	return &Vec3{dec.Float32(), dec.Float32(), dec.Float32()}
}

func vec4(dec *codec.Decoder) *Vec4 {
	if !dec.Option() {
		return nil
	}
	return &Vec4{dec.Float32(), dec.Float32(), dec.Float32(), dec.Float32()}
}
