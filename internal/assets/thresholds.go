package assets

import (
	"sync/atomic"

	"meshvault/internal/models"
)

// Thresholds holds the per-class soft size caps. Safe for concurrent use.
type Thresholds struct {
	vertex  atomic.Uint64
	texture atomic.Uint64
}

// NewThresholds returns caps initialised to the class defaults.
func NewThresholds() *Thresholds {
	t := &Thresholds{}
	t.vertex.Store(models.DefaultVertexThreshold)
	t.texture.Store(models.DefaultTextureThreshold)
	return t
}

func (t *Thresholds) Get(class models.Class) uint64 {
	if class == models.ClassTexture {
		return t.texture.Load()
	}
	return t.vertex.Load()
}

func (t *Thresholds) Set(class models.Class, size uint64) {
	if class == models.ClassTexture {
		t.texture.Store(size)
		return
	}
	t.vertex.Store(size)
}
