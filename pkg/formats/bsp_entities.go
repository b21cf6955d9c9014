package formats

import (
	"strconv"
	"strings"

	"github.com/Faultbox/csbsp/pkg/encoding"
	"github.com/Faultbox/csbsp/pkg/math"
)

// BSPEntityField is one "key" "value" pair of an entity.
type BSPEntityField struct {
	Key   string
	Value string
}

// BSPEntity is one { ... } block of the entity lump, fields in file order.
type BSPEntity struct {
	Fields []BSPEntityField
}

// Get returns the first value stored under key.
func (e *BSPEntity) Get(key string) (string, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// ClassName returns the entity's classname, or "".
func (e *BSPEntity) ClassName() string {
	v, _ := e.Get("classname")
	return v
}

// Origin parses the "origin" field ("x y z").
func (e *BSPEntity) Origin() (math.Vec3, bool) {
	v, ok := e.Get("origin")
	if !ok {
		return math.Vec3{}, false
	}
	parts := strings.Fields(v)
	if len(parts) != 3 {
		return math.Vec3{}, false
	}
	var xyz [3]float32
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return math.Vec3{}, false
		}
		xyz[i] = float32(f)
	}
	return math.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, true
}

// ParseBSPEntities splits entity lump text into entities.
// The text looks like:
//
//	{
//	"classname" "worldspawn"
//	"message" "Dust II"
//	}
//
// Braces inside quoted values are ignored. Malformed trailing text is dropped.
func ParseBSPEntities(data []byte) []BSPEntity {
	text := encoding.ToUTF8(trimNull(data))

	var entities []BSPEntity
	var current *BSPEntity
	var quoted []string

	inQuote := false
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inQuote {
			if c == '"' {
				quoted = append(quoted, text[start:i])
				inQuote = false
				if current != nil && len(quoted) == 2 {
					current.Fields = append(current.Fields, BSPEntityField{Key: quoted[0], Value: quoted[1]})
					quoted = quoted[:0]
				}
			}
			continue
		}

		switch c {
		case '"':
			inQuote = true
			start = i + 1
		case '{':
			current = &BSPEntity{}
			quoted = quoted[:0]
		case '}':
			if current != nil {
				entities = append(entities, *current)
				current = nil
			}
			quoted = quoted[:0]
		}
	}

	return entities
}

func trimNull(data []byte) []byte {
	for len(data) > 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}
	return data
}

// EntitiesByClass returns all entities with the given classname.
func (b *BSP) EntitiesByClass(class string) []*BSPEntity {
	var result []*BSPEntity
	for i := range b.Entities {
		if b.Entities[i].ClassName() == class {
			result = append(result, &b.Entities[i])
		}
	}
	return result
}
