package models

import (
	"fmt"
	"strings"
)

// Class selects the storage table and size threshold governing placement.
type Class uint8

const (
	ClassVertex  Class = 0
	ClassTexture Class = 1
)

const (
	DefaultVertexThreshold  uint64 = 20 * 1024 * 1024
	DefaultTextureThreshold uint64 = 1024 * 1024 * 1024
)

// Table names inside the index.
const (
	TableVertexStorage  = "vertex_storage"
	TableTextureStorage = "texture_storage"
	TableLocation       = "location"
)

// Classes lists every class in table order.
var Classes = []Class{ClassVertex, ClassTexture}

var classNames = map[Class]string{
	ClassVertex:  "vertex",
	ClassTexture: "texture",
}

func (c Class) Valid() bool {
	_, ok := classNames[c]
	return ok
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// StorageTable returns the name of the storage table for the class.
func (c Class) StorageTable() string {
	if c == ClassTexture {
		return TableTextureStorage
	}
	return TableVertexStorage
}

// DefaultThreshold returns the built-in soft size cap for the class.
func (c Class) DefaultThreshold() uint64 {
	if c == ClassTexture {
		return DefaultTextureThreshold
	}
	return DefaultVertexThreshold
}

func (c Class) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid class: %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Class) UnmarshalText(text []byte) error {
	parsed, err := ParseClass(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func ParseClass(raw string) (Class, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return 0, fmt.Errorf("class is required")
	}
	for class, name := range classNames {
		if name == value {
			return class, nil
		}
	}
	return 0, fmt.Errorf("invalid class: %s", value)
}

// StorageTables returns the storage table names of every class.
func StorageTables() []string {
	out := make([]string, 0, len(Classes))
	for _, class := range Classes {
		out = append(out, class.StorageTable())
	}
	return out
}
