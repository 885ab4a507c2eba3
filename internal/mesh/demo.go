package mesh

// DemoVertexData builds n fully populated vertices with one index each, the
// load the bench command stores.
func DemoVertexData(n int) *VertexData {
	if n < 0 {
		n = 0
	}
	d := &VertexData{
		Vertices: make([]Vertex, n),
		Indices:  make([]uint32, n),
	}
	for i := range d.Vertices {
		f := float32(i)
		d.Vertices[i] = Vertex{
			Position:    &Vec3{f, 23, 43},
			Normal:      &Vec3{0, 1, 0},
			Tangent:     &Vec4{1, 0, 0, 1},
			UV:          &Vec2{f / float32(n), 0.5},
			Color:       &Vec4{1, 1, 1, 1},
			BoneIndices: &[4]uint16{54, 34, 34, 123},
			BoneWeights: &Vec4{0.25, 0.25, 0.25, 0.25},
		}
		d.Indices[i] = uint32(i)
	}
	return d
}
