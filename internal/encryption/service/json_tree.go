package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	encryptionDomain "github.com/allisson/docencrypt/internal/encryption/domain"
	apperrors "github.com/allisson/docencrypt/internal/errors"
)

type nodeKind int

const (
	kindNull nodeKind = iota
	kindBool
	kindNumber
	kindString
	kindArray
	kindObject
)

// member is one object property. Objects keep their members in document order.
type member struct {
	name  string
	value *node
}

// node is a parsed JSON value. Numbers keep their literal text until serialized.
type node struct {
	kind    nodeKind
	boolean bool
	number  json.Number
	str     string
	elems   []*node
	members []member
}

func nullNode() *node {
	return &node{kind: kindNull}
}

// lookup returns the member named name. Parsed objects never hold duplicate names.
func (n *node) lookup(name string) (int, *node) {
	for i, m := range n.members {
		if m.name == name {
			return i, m.value
		}
	}
	return -1, nil
}

// shallowCopy copies an object node's member list so members can be replaced without
// touching the source tree.
func (n *node) shallowCopy() *node {
	c := *n
	c.members = append([]member(nil), n.members...)
	c.elems = append([]*node(nil), n.elems...)
	return &c
}

// parseJSON reads exactly one JSON value from data.
func parseJSON(data []byte) (*node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	root, err := parseValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, apperrors.Wrap(encryptionDomain.ErrInvalidDocument, "unexpected data after JSON value")
	}
	return root, nil
}

func parseValue(dec *json.Decoder) (*node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, apperrors.Wrap(encryptionDomain.ErrInvalidDocument, err.Error())
	}

	switch v := tok.(type) {
	case nil:
		return nullNode(), nil
	case bool:
		return &node{kind: kindBool, boolean: v}, nil
	case json.Number:
		return &node{kind: kindNumber, number: v}, nil
	case string:
		return &node{kind: kindString, str: v}, nil
	case json.Delim:
		switch v {
		case '{':
			n := &node{kind: kindObject}
			seen := make(map[string]struct{})
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, apperrors.Wrap(encryptionDomain.ErrInvalidDocument, err.Error())
				}
				name, _ := keyTok.(string)
				// Readers disagree on which duplicate wins.
				if _, dup := seen[name]; dup {
					return nil, apperrors.Wrapf(encryptionDomain.ErrInvalidDocument, "duplicate property %q", name)
				}
				seen[name] = struct{}{}
				value, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				n.members = append(n.members, member{name: name, value: value})
			}
			if _, err := dec.Token(); err != nil {
				return nil, apperrors.Wrap(encryptionDomain.ErrInvalidDocument, err.Error())
			}
			return n, nil
		case '[':
			n := &node{kind: kindArray}
			for dec.More() {
				value, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				n.elems = append(n.elems, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, apperrors.Wrap(encryptionDomain.ErrInvalidDocument, err.Error())
			}
			return n, nil
		}
	}
	return nil, apperrors.Wrap(encryptionDomain.ErrInvalidDocument, "unexpected token")
}

// writeJSON encodes n compactly, without HTML escaping.
func writeJSON(buf *bytes.Buffer, n *node) error {
	switch n.kind {
	case kindNull:
		buf.WriteString("null")
	case kindBool:
		buf.WriteString(strconv.FormatBool(n.boolean))
	case kindNumber:
		buf.WriteString(n.number.String())
	case kindString:
		return writeString(buf, n.str)
	case kindArray:
		buf.WriteByte('[')
		for i, e := range n.elems {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case kindObject:
		buf.WriteByte('{')
		for i, m := range n.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, m.name); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeJSON(buf, m.value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// numberValue converts a JSON number literal into an int64 when it is integral and in
// range, and into a float64 otherwise.
func numberValue(n json.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, apperrors.Wrap(encryptionDomain.ErrInvalidDocument, err.Error())
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, apperrors.Wrapf(encryptionDomain.ErrNonFiniteNumber, "number %s", s)
	}
	return f, nil
}

// floatLiteral formats f so it parses back as a floating point number.
func floatLiteral(f float64) json.Number {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s)
}

// leafValue returns the Go value of a scalar node.
func leafValue(n *node) (any, error) {
	switch n.kind {
	case kindBool:
		return n.boolean, nil
	case kindNumber:
		return numberValue(n.number)
	case kindString:
		return n.str, nil
	default:
		return nil, apperrors.Wrap(encryptionDomain.ErrUnsupportedType, "not a scalar value")
	}
}

// leafNode builds a scalar node from a deserialized value.
func leafNode(v any) (*node, error) {
	switch val := v.(type) {
	case bool:
		return &node{kind: kindBool, boolean: val}, nil
	case int64:
		return &node{kind: kindNumber, number: json.Number(strconv.FormatInt(val, 10))}, nil
	case float64:
		return &node{kind: kindNumber, number: floatLiteral(val)}, nil
	case string:
		return &node{kind: kindString, str: val}, nil
	default:
		return nil, apperrors.Wrapf(encryptionDomain.ErrUnsupportedType, "%T", v)
	}
}
