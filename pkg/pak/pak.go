// Package pak reads Quake PACK archives and zip-based .pk3 archives.
package pak

import (
	"archive/zip"
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/Faultbox/csbsp/pkg/encoding"
)

// Archive errors.
var (
	ErrUnknownFormat = errors.New("unknown archive format")
	ErrNotFound      = errors.New("file not found in archive")
	ErrCorrupt       = errors.New("corrupt archive")
)

const (
	packMagic     = "PACK"
	zipMagic      = "PK\x03\x04"
	packEntrySize = 64
)

type packHeader struct {
	ID     [4]byte
	Offset int32
	Size   int32
}

type packEntry struct {
	Name   [56]byte
	Offset int32
	Size   int32
}

// Entry describes one file stored in an archive.
type Entry struct {
	Name   string // normalized path
	Offset int64  // PACK only
	Size   int64

	zf *zip.File
}

// Archive is an opened PACK or pk3 archive.
type Archive struct {
	name  string
	file  *os.File
	zip   *zip.Reader
	files map[string]*Entry
}

// Open opens an archive, detecting the format from its magic bytes.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening archive")
	}

	a := &Archive{name: path, file: f, files: make(map[string]*Entry)}
	if err := a.init(); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return a, nil
}

func (a *Archive) init() error {
	var magic [4]byte
	if _, err := io.ReadFull(a.file, magic[:]); err != nil {
		return errors.Wrap(ErrUnknownFormat, err.Error())
	}

	switch string(magic[:]) {
	case packMagic:
		return a.readPack()
	case zipMagic:
		return a.readZip()
	default:
		return errors.Wrapf(ErrUnknownFormat, "magic %q", magic[:])
	}
}

func (a *Archive) readPack() error {
	if _, err := a.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var h packHeader
	if err := binary.Read(a.file, binary.LittleEndian, &h); err != nil {
		return errors.Wrap(err, "reading header")
	}

	st, err := a.file.Stat()
	if err != nil {
		return err
	}
	size := st.Size()
	if h.Offset < 0 || h.Size < 0 || h.Size%packEntrySize != 0 || int64(h.Offset)+int64(h.Size) > size {
		return errors.Wrapf(ErrCorrupt, "directory %d+%d in %d bytes", h.Offset, h.Size, size)
	}

	if _, err := a.file.Seek(int64(h.Offset), io.SeekStart); err != nil {
		return err
	}
	entries := make([]packEntry, h.Size/packEntrySize)
	if err := binary.Read(a.file, binary.LittleEndian, entries); err != nil {
		return errors.Wrap(err, "reading directory")
	}

	for i := range entries {
		e := &entries[i]
		name := encoding.FixedStringToUTF8(e.Name[:])
		if e.Offset < 0 || e.Size < 0 || int64(e.Offset)+int64(e.Size) > size {
			return errors.Wrapf(ErrCorrupt, "entry %q spans %d+%d", name, e.Offset, e.Size)
		}
		name = encoding.NormalizePath(name)
		if _, ok := a.files[name]; ok {
			return errors.Wrapf(ErrCorrupt, "duplicate entry %q", name)
		}
		a.files[name] = &Entry{Name: name, Offset: int64(e.Offset), Size: int64(e.Size)}
	}
	return nil
}

func (a *Archive) readZip() error {
	st, err := a.file.Stat()
	if err != nil {
		return err
	}
	zr, err := zip.NewReader(a.file, st.Size())
	if err != nil {
		return errors.Wrap(err, "reading zip directory")
	}
	a.zip = zr

	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		name := encoding.NormalizePath(zf.Name)
		a.files[name] = &Entry{Name: name, Size: int64(zf.UncompressedSize64), zf: zf}
	}
	return nil
}

// Name returns the path the archive was opened from.
func (a *Archive) Name() string {
	return a.name
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// List returns all file paths in the archive, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.files))
	for path := range a.files {
		result = append(result, path)
	}
	sort.Strings(result)
	return result
}

// Contains checks if a file exists.
func (a *Archive) Contains(path string) bool {
	_, ok := a.files[encoding.NormalizePath(path)]
	return ok
}

// Stat returns the entry for path.
func (a *Archive) Stat(path string) (*Entry, bool) {
	e, ok := a.files[encoding.NormalizePath(path)]
	return e, ok
}

// Read reads a whole file from the archive.
func (a *Archive) Read(path string) ([]byte, error) {
	e, ok := a.files[encoding.NormalizePath(path)]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, path)
	}

	if e.zf != nil {
		rc, err := e.zf.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", path)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
		return data, nil
	}

	data := make([]byte, e.Size)
	if _, err := a.file.ReadAt(data, e.Offset); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return data, nil
}
