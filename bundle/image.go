package bundle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/fxamacker/cbor/v2"
)

// imageMagic prefixes every module image, the per-module blob of a bundle
// and the legacy single module form.
var imageMagic = []byte("MDMI\x01")

var (
	// ErrNotModule the blob does not start with the module image header.
	ErrNotModule = errors.New("not a module image")
	// ErrChecksum the decompressed module body does not match its digest.
	ErrChecksum = errors.New("module image checksum mismatch")
)

// image is the compiled form of one module.
type image struct {
	Name   string `cbor:"1,keyasint"`
	Source []byte `cbor:"2,keyasint"`
	Sum    []byte `cbor:"3,keyasint"`
}

// IsModule reports whether blob carries the module image header.
func IsModule(blob []byte) bool {
	return bytes.HasPrefix(blob, imageMagic)
}

// EncodeModule packs a module that already compiled successfully into a module image.
func EncodeModule(name, source string) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := io.WriteString(w, source); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(source))
	data, err := encMode.Marshal(image{Name: name, Source: buf.Bytes(), Sum: sum[:]})
	if err != nil {
		return nil, err
	}
	return append(bytes.Clone(imageMagic), data...), nil
}

// DecodeModule unpacks a module image into the module name and its body.
// The blob is only read.
func DecodeModule(blob []byte) (name, source string, err error) {
	if !IsModule(blob) {
		return "", "", ErrNotModule
	}
	var img image
	if err = cbor.Unmarshal(blob[len(imageMagic):], &img); err != nil {
		return "", "", fmt.Errorf("module image: %w", err)
	}
	data, err := io.ReadAll(brotli.NewReader(bytes.NewReader(img.Source)))
	if err != nil {
		return "", "", fmt.Errorf("module image %q: %w", img.Name, err)
	}
	sum := sha256.Sum256(data)
	if !bytes.Equal(sum[:], img.Sum) {
		return "", "", fmt.Errorf("module image %q: %w", img.Name, ErrChecksum)
	}
	return img.Name, string(data), nil
}
