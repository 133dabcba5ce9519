// Package standalone embeds a bundle into a copy of the host executable and
// finds it again at start-up.
//
// The bundle is appended as a trailing region:
//
//	executable | bundle | u64 little-endian bundle length | "md3n04cl1"
//
// A section named md3n04cl1 in an ELF, PE or Mach-O image, as written by
// external tooling, is recognized too.
package standalone

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Marker ends the trailing region and names the executable section.
const Marker = "md3n04cl1"

const trailerSize = 8 + len(Marker)

// ErrNotFound the executable carries no embedded bundle.
var ErrNotFound = errors.New("standalone: no embedded bundle")

// Embed writes the executable followed by the trailing bundle region.
func Embed(w io.Writer, exe io.Reader, payload []byte) error {
	if _, err := io.Copy(w, exe); err != nil {
		return err
	}
	trailer := make([]byte, 0, len(payload)+trailerSize)
	trailer = append(trailer, payload...)
	trailer = binary.LittleEndian.AppendUint64(trailer, uint64(len(payload)))
	trailer = append(trailer, Marker...)
	_, err := w.Write(trailer)
	return err
}

// EmbedFile writes to dst a copy of the executable exe with payload embedded.
// A bundle already embedded in exe is replaced.
func EmbedFile(dst, exe string, payload []byte) (err error) {
	src, err := os.Open(exe)
	if err != nil {
		return err
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if start, _, ok := locate(src, size); ok {
		size = start
	}

	if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	return Embed(out, io.NewSectionReader(src, 0, size), payload)
}

// Self returns the bundle embedded in the running executable.
func Self() ([]byte, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return Probe(exe)
}

// Probe returns the bundle embedded in the executable at path.
func Probe(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return ProbeReader(f, info.Size())
}

// ProbeReader looks for the trailing region first, then for an executable section.
func ProbeReader(r io.ReaderAt, size int64) ([]byte, error) {
	if start, n, ok := locate(r, size); ok {
		payload := make([]byte, n)
		if _, err := r.ReadAt(payload, start); err != nil {
			return nil, fmt.Errorf("standalone: read bundle: %w", err)
		}
		return payload, nil
	}
	if data, ok := section(r); ok {
		return data, nil
	}
	return nil, ErrNotFound
}

// locate returns the offset and length of the trailing bundle region.
func locate(r io.ReaderAt, size int64) (start, n int64, ok bool) {
	if size < int64(trailerSize) {
		return 0, 0, false
	}
	trailer := make([]byte, trailerSize)
	if _, err := r.ReadAt(trailer, size-int64(trailerSize)); err != nil {
		return 0, 0, false
	}
	if !bytes.Equal(trailer[8:], []byte(Marker)) {
		return 0, 0, false
	}
	length := binary.LittleEndian.Uint64(trailer[:8])
	if length > uint64(size-int64(trailerSize)) {
		return 0, 0, false
	}
	n = int64(length)
	return size - int64(trailerSize) - n, n, true
}

// section reads the md3n04cl1 section of an ELF, PE or Mach-O image.
func section(r io.ReaderAt) ([]byte, bool) {
	if f, err := elf.NewFile(r); err == nil {
		defer f.Close()
		if s := f.Section(Marker); s != nil {
			if data, err := s.Data(); err == nil {
				return data, true
			}
		}
		return nil, false
	}
	if f, err := pe.NewFile(r); err == nil {
		defer f.Close()
		if s := f.Section(Marker); s != nil {
			if data, err := s.Data(); err == nil {
				return trimPE(data, s.VirtualSize), true
			}
		}
		return nil, false
	}
	if f, err := macho.NewFile(r); err == nil {
		defer f.Close()
		if s := f.Section(Marker); s != nil {
			if data, err := s.Data(); err == nil {
				return data, true
			}
		}
	}
	return nil, false
}

// trimPE drops the file alignment padding of a PE section.
func trimPE(data []byte, virtualSize uint32) []byte {
	if virtualSize > 0 && int(virtualSize) < len(data) {
		return data[:virtualSize]
	}
	return data
}
