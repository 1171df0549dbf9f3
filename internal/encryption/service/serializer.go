package service

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	encryptionDomain "github.com/allisson/docencrypt/internal/encryption/domain"
	apperrors "github.com/allisson/docencrypt/internal/errors"
)

// SerializeValue encodes a scalar into its type marker and binary form.
//
// Longs and doubles are 8 bytes little endian, booleans one byte and strings UTF-8. Values
// without an encoding (byte slices, UUIDs, timestamps, URLs) and non-finite floats fail
// with ErrUnsupportedType.
func SerializeValue(v any) (encryptionDomain.TypeMarker, []byte, error) {
	switch val := v.(type) {
	case bool:
		if val {
			return encryptionDomain.TypeMarkerBoolean, []byte{1}, nil
		}
		return encryptionDomain.TypeMarkerBoolean, []byte{0}, nil
	case int:
		return serializeLong(int64(val))
	case int32:
		return serializeLong(int64(val))
	case int64:
		return serializeLong(val)
	case float32:
		return serializeDouble(float64(val))
	case float64:
		return serializeDouble(val)
	case json.Number:
		n, err := numberValue(val)
		if err != nil {
			return 0, nil, err
		}
		return SerializeValue(n)
	case string:
		return encryptionDomain.TypeMarkerString, []byte(val), nil
	case []byte, uuid.UUID, time.Time, *url.URL:
		return 0, nil, apperrors.Wrapf(encryptionDomain.ErrUnsupportedType, "%T has no binary encoding", v)
	default:
		return 0, nil, apperrors.Wrapf(encryptionDomain.ErrUnsupportedType, "%T", v)
	}
}

func serializeLong(v int64) (encryptionDomain.TypeMarker, []byte, error) {
	return encryptionDomain.TypeMarkerLong, binary.LittleEndian.AppendUint64(nil, uint64(v)), nil
}

func serializeDouble(v float64) (encryptionDomain.TypeMarker, []byte, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, nil, encryptionDomain.ErrNonFiniteNumber
	}
	return encryptionDomain.TypeMarkerDouble, binary.LittleEndian.AppendUint64(nil, math.Float64bits(v)), nil
}

// DeserializeValue reverses SerializeValue.
func DeserializeValue(marker encryptionDomain.TypeMarker, data []byte) (any, error) {
	switch marker {
	case encryptionDomain.TypeMarkerBoolean:
		if len(data) != 1 {
			return nil, apperrors.Wrap(encryptionDomain.ErrInvalidCiphertext, "boolean must be one byte")
		}
		return data[0] != 0, nil
	case encryptionDomain.TypeMarkerLong:
		if len(data) != 8 {
			return nil, apperrors.Wrap(encryptionDomain.ErrInvalidCiphertext, "long must be eight bytes")
		}
		return int64(binary.LittleEndian.Uint64(data)), nil
	case encryptionDomain.TypeMarkerDouble:
		if len(data) != 8 {
			return nil, apperrors.Wrap(encryptionDomain.ErrInvalidCiphertext, "double must be eight bytes")
		}
		f := math.Float64frombits(binary.LittleEndian.Uint64(data))
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, encryptionDomain.ErrNonFiniteNumber
		}
		return f, nil
	case encryptionDomain.TypeMarkerString:
		if !utf8.Valid(data) {
			return nil, apperrors.Wrap(encryptionDomain.ErrInvalidCiphertext, "string is not valid UTF-8")
		}
		return string(data), nil
	default:
		return nil, apperrors.Wrapf(encryptionDomain.ErrInvalidCiphertext, "unknown type marker %d", marker)
	}
}

// EscapeID encodes bytes for use as a document id. The result uses the URL-safe base64
// alphabet without padding, so it never contains '+', '/', '?', '#', '\' or whitespace.
func EscapeID(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// UnescapeID reverses EscapeID.
func UnescapeID(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, apperrors.Wrap(encryptionDomain.ErrInvalidCiphertext, "invalid escaped id")
	}
	return b, nil
}

// encodeLeaf renders marker || ciphertext as a JSON string value.
func encodeLeaf(marker encryptionDomain.TypeMarker, ciphertext []byte, escape bool) string {
	payload := make([]byte, 0, len(ciphertext)+1)
	payload = append(payload, byte(marker))
	payload = append(payload, ciphertext...)
	if escape {
		return EscapeID(payload)
	}
	return base64.StdEncoding.EncodeToString(payload)
}

// decodeLeaf splits an encrypted JSON string value into marker and ciphertext.
func decodeLeaf(s string, escaped bool) (encryptionDomain.TypeMarker, []byte, error) {
	var (
		payload []byte
		err     error
	)
	if escaped {
		payload, err = UnescapeID(s)
	} else {
		payload, err = base64.StdEncoding.DecodeString(s)
	}
	if err != nil {
		return 0, nil, apperrors.Wrap(encryptionDomain.ErrInvalidCiphertext, "invalid base64 payload")
	}
	if len(payload) < 2 {
		return 0, nil, apperrors.Wrap(encryptionDomain.ErrInvalidCiphertext, "payload too short")
	}
	return encryptionDomain.TypeMarker(payload[0]), payload[1:], nil
}
