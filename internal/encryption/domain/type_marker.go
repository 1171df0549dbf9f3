package domain

// TypeMarker tags every encrypted leaf with the JSON type it was serialized from.
type TypeMarker byte

// Type markers persisted as the first byte of an encrypted leaf.
const (
	TypeMarkerNull    TypeMarker = 1
	TypeMarkerBoolean TypeMarker = 2
	TypeMarkerDouble  TypeMarker = 3
	TypeMarkerLong    TypeMarker = 4
	TypeMarkerString  TypeMarker = 5
	TypeMarkerArray   TypeMarker = 6
	TypeMarkerObject  TypeMarker = 7
)

// IsLeaf reports whether values of this type are encrypted as a single leaf.
func (m TypeMarker) IsLeaf() bool {
	switch m {
	case TypeMarkerBoolean, TypeMarkerDouble, TypeMarkerLong, TypeMarkerString:
		return true
	default:
		return false
	}
}

func (m TypeMarker) String() string {
	switch m {
	case TypeMarkerNull:
		return "null"
	case TypeMarkerBoolean:
		return "boolean"
	case TypeMarkerDouble:
		return "double"
	case TypeMarkerLong:
		return "long"
	case TypeMarkerString:
		return "string"
	case TypeMarkerArray:
		return "array"
	case TypeMarkerObject:
		return "object"
	default:
		return "unknown"
	}
}
