// Package service implements the type-preserving document encryption engine.
//
// The Processor walks a JSON document against EncryptionSettings and encrypts or decrypts
// every leaf of each configured top-level property. Each encrypted leaf is stored as a JSON
// string holding base64(type marker || ciphertext), so decryption restores the exact JSON
// type. Objects and arrays are traversed leaf by leaf; nested nulls stay null. The id
// property is escaped with the URL-safe base64 alphabet.
package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	encryptionDomain "github.com/allisson/docencrypt/internal/encryption/domain"
	apperrors "github.com/allisson/docencrypt/internal/errors"
)

// feedDocumentsProperty holds the documents of a paged query result.
const feedDocumentsProperty = "Documents"

// AlgorithmProvider resolves the algorithm of a property setting that is not pre-bound.
type AlgorithmProvider interface {
	GetAlgorithm(
		ctx context.Context,
		setting *encryptionDomain.EncryptionSettingForProperty,
	) (encryptionDomain.EncryptionAlgorithm, error)
}

// Processor encrypts and decrypts documents. It performs no network I/O itself; ctx only
// reaches the AlgorithmProvider.
type Processor struct {
	algorithms AlgorithmProvider
	logger     *slog.Logger
	now        func() time.Time
}

// NewProcessor creates a Processor. algorithms may be nil when every setting is pre-bound.
func NewProcessor(algorithms AlgorithmProvider, logger *slog.Logger) *Processor {
	return &Processor{
		algorithms: algorithms,
		logger:     logger,
		now:        time.Now,
	}
}

type direction int

const (
	encrypting direction = iota
	decrypting
)

// Encrypt returns a new stream holding the document with every configured property
// encrypted. input is always closed.
func (p *Processor) Encrypt(
	ctx context.Context,
	input io.ReadCloser,
	settings *encryptionDomain.EncryptionSettings,
	diag encryptionDomain.DiagnosticsSink,
) (io.ReadCloser, error) {
	defer func() {
		_ = input.Close()
	}()

	start := p.now()
	setTimestamp(diag, encryptionDomain.DiagnosticEncryptStart, start)

	data, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}
	root, err := parseDocument(data)
	if err != nil {
		return nil, err
	}

	out, count, err := p.transformDocument(ctx, root, settings, encrypting)
	if err != nil {
		return nil, err
	}

	result, err := render(out)
	if err != nil {
		return nil, err
	}

	setCounter(diag, encryptionDomain.DiagnosticPropertiesEncrypted, count)
	setDuration(diag, encryptionDomain.DiagnosticEncryptDuration, p.now().Sub(start))
	p.logger.Debug("document encrypted",
		slog.String("container_rid", settings.ContainerRID()),
		slog.Int("properties", count),
	)
	return result, nil
}

// Decrypt returns a new stream holding the decrypted document and the number of mapped
// properties visited. input is consumed completely; it is closed on success and left open
// on error.
func (p *Processor) Decrypt(
	ctx context.Context,
	input io.ReadCloser,
	settings *encryptionDomain.EncryptionSettings,
	diag encryptionDomain.DiagnosticsSink,
) (io.ReadCloser, int, error) {
	start := p.now()
	setTimestamp(diag, encryptionDomain.DiagnosticDecryptStart, start)

	data, err := io.ReadAll(input)
	if err != nil {
		return nil, 0, err
	}
	root, err := parseDocument(data)
	if err != nil {
		return nil, 0, err
	}

	out, count, err := p.transformDocument(ctx, root, settings, decrypting)
	if err != nil {
		return nil, 0, err
	}

	result, err := render(out)
	if err != nil {
		return nil, 0, err
	}
	_ = input.Close()

	setCounter(diag, encryptionDomain.DiagnosticPropertiesDecrypted, count)
	setDuration(diag, encryptionDomain.DiagnosticDecryptDuration, p.now().Sub(start))
	return result, count, nil
}

// DecryptFeedResponse decrypts every object in the Documents array of a paged result.
// Elements that are not objects are copied unchanged. One count for the whole page is
// recorded in diag. Stream ownership follows Decrypt.
func (p *Processor) DecryptFeedResponse(
	ctx context.Context,
	input io.ReadCloser,
	settings *encryptionDomain.EncryptionSettings,
	diag encryptionDomain.DiagnosticsSink,
) (io.ReadCloser, error) {
	start := p.now()
	setTimestamp(diag, encryptionDomain.DiagnosticDecryptStart, start)

	data, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}
	root, err := parseJSON(data)
	if err != nil {
		return nil, err
	}
	if root.kind != kindObject {
		return nil, apperrors.Wrap(encryptionDomain.ErrInvalidFeedResponse, "response is not an object")
	}

	idx, documents := root.lookup(feedDocumentsProperty)
	if documents == nil || documents.kind != kindArray {
		return nil, apperrors.Wrap(encryptionDomain.ErrInvalidFeedResponse, "missing Documents array")
	}

	decrypted := documents.shallowCopy()
	total := 0
	for i, doc := range documents.elems {
		if doc.kind != kindObject {
			continue
		}
		out, count, err := p.transformDocument(ctx, doc, settings, decrypting)
		if err != nil {
			return nil, err
		}
		decrypted.elems[i] = out
		total += count
	}

	page := root.shallowCopy()
	page.members[idx] = member{name: feedDocumentsProperty, value: decrypted}

	result, err := render(page)
	if err != nil {
		return nil, err
	}
	_ = input.Close()

	setCounter(diag, encryptionDomain.DiagnosticPropertiesDecrypted, total)
	setDuration(diag, encryptionDomain.DiagnosticDecryptDuration, p.now().Sub(start))
	return result, nil
}

// transformDocument returns a copy of doc with every configured, present property
// transformed, and the number of properties visited.
func (p *Processor) transformDocument(
	ctx context.Context,
	doc *node,
	settings *encryptionDomain.EncryptionSettings,
	dir direction,
) (*node, int, error) {
	type target struct {
		name    string
		idx     int
		value   *node
		setting *encryptionDomain.EncryptionSettingForProperty
	}

	// Every present property must have a setting before anything is transformed.
	var targets []target
	for _, name := range settings.PropertiesToEncrypt() {
		idx, value := doc.lookup(name)
		if value == nil {
			continue
		}
		setting, err := settings.Get(name)
		if err != nil {
			return nil, 0, err
		}
		targets = append(targets, target{name: name, idx: idx, value: value, setting: setting})
	}

	out := doc.shallowCopy()
	count := 0
	for _, tg := range targets {
		name, idx, value := tg.name, tg.idx, tg.value
		count++
		if value.kind == kindNull {
			continue
		}

		alg, err := p.algorithm(ctx, tg.setting)
		if err != nil {
			return nil, 0, err
		}

		escape := name == encryptionDomain.IDPropertyName
		var transformed *node
		if dir == encrypting {
			transformed, err = encryptNode(alg, value, escape)
		} else {
			transformed, err = decryptNode(alg, value, escape)
		}
		if err != nil {
			return nil, 0, apperrors.Wrapf(err, "property %q", name)
		}
		out.members[idx] = member{name: name, value: transformed}
	}
	return out, count, nil
}

func (p *Processor) algorithm(
	ctx context.Context,
	setting *encryptionDomain.EncryptionSettingForProperty,
) (encryptionDomain.EncryptionAlgorithm, error) {
	if alg := setting.Algorithm(); alg != nil {
		return alg, nil
	}
	if p.algorithms == nil {
		return nil, apperrors.Wrap(encryptionDomain.ErrInvalidEncryptionSetting, "no algorithm bound to setting")
	}
	return p.algorithms.GetAlgorithm(ctx, setting)
}

// encryptNode returns an encrypted copy of n.
func encryptNode(alg encryptionDomain.EncryptionAlgorithm, n *node, escape bool) (*node, error) {
	switch n.kind {
	case kindNull:
		return n, nil
	case kindArray:
		if escape {
			return nil, encryptionDomain.ErrEscapeTypeMismatch
		}
		out := &node{kind: kindArray, elems: make([]*node, len(n.elems))}
		for i, e := range n.elems {
			enc, err := encryptNode(alg, e, false)
			if err != nil {
				return nil, err
			}
			out.elems[i] = enc
		}
		return out, nil
	case kindObject:
		if escape {
			return nil, encryptionDomain.ErrEscapeTypeMismatch
		}
		out := &node{kind: kindObject, members: make([]member, len(n.members))}
		for i, m := range n.members {
			enc, err := encryptNode(alg, m.value, false)
			if err != nil {
				return nil, err
			}
			out.members[i] = member{name: m.name, value: enc}
		}
		return out, nil
	}

	if escape && n.kind != kindString {
		return nil, encryptionDomain.ErrEscapeTypeMismatch
	}

	v, err := leafValue(n)
	if err != nil {
		return nil, err
	}
	marker, plaintext, err := SerializeValue(v)
	if err != nil {
		return nil, err
	}
	ciphertext, err := alg.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}
	return &node{kind: kindString, str: encodeLeaf(marker, ciphertext, escape)}, nil
}

// decryptNode returns a decrypted copy of n.
func decryptNode(alg encryptionDomain.EncryptionAlgorithm, n *node, escaped bool) (*node, error) {
	switch n.kind {
	case kindNull:
		return n, nil
	case kindArray:
		out := &node{kind: kindArray, elems: make([]*node, len(n.elems))}
		for i, e := range n.elems {
			dec, err := decryptNode(alg, e, false)
			if err != nil {
				return nil, err
			}
			out.elems[i] = dec
		}
		return out, nil
	case kindObject:
		out := &node{kind: kindObject, members: make([]member, len(n.members))}
		for i, m := range n.members {
			dec, err := decryptNode(alg, m.value, false)
			if err != nil {
				return nil, err
			}
			out.members[i] = member{name: m.name, value: dec}
		}
		return out, nil
	case kindString:
	default:
		return nil, apperrors.Wrap(encryptionDomain.ErrInvalidCiphertext, "encrypted value must be a string")
	}

	marker, ciphertext, err := decodeLeaf(n.str, escaped)
	if err != nil {
		return nil, err
	}
	if !marker.IsLeaf() {
		return nil, apperrors.Wrapf(encryptionDomain.ErrInvalidCiphertext, "unexpected type marker %s", marker)
	}
	plaintext, err := alg.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	v, err := DeserializeValue(marker, plaintext)
	if err != nil {
		return nil, err
	}
	return leafNode(v)
}

func parseDocument(data []byte) (*node, error) {
	root, err := parseJSON(data)
	if err != nil {
		return nil, err
	}
	if root.kind != kindObject {
		return nil, apperrors.Wrap(encryptionDomain.ErrInvalidDocument, "document must be a JSON object")
	}
	return root, nil
}

func render(n *node) (io.ReadCloser, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, n); err != nil {
		return nil, err
	}
	return io.NopCloser(&buf), nil
}

func setCounter(diag encryptionDomain.DiagnosticsSink, name string, v int) {
	if diag != nil {
		diag.SetCounter(name, v)
	}
}

func setTimestamp(diag encryptionDomain.DiagnosticsSink, name string, at time.Time) {
	if diag != nil {
		diag.SetTimestamp(name, at)
	}
}

func setDuration(diag encryptionDomain.DiagnosticsSink, name string, d time.Duration) {
	if diag != nil {
		diag.SetDuration(name, d)
	}
}
