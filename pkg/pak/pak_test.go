package pak

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// createTestPack builds a PACK archive with the given files in order.
func createTestPack(t *testing.T, names []string, contents [][]byte) string {
	t.Helper()

	body := new(bytes.Buffer)
	var dir []packEntry
	offset := int32(12)
	for i, name := range names {
		var e packEntry
		copy(e.Name[:], name)
		e.Offset = offset + int32(body.Len())
		e.Size = int32(len(contents[i]))
		dir = append(dir, e)
		body.Write(contents[i])
	}

	buf := new(bytes.Buffer)
	buf.WriteString("PACK")
	binary.Write(buf, binary.LittleEndian, offset+int32(body.Len()))
	binary.Write(buf, binary.LittleEndian, int32(len(dir)*packEntrySize))
	buf.Write(body.Bytes())
	binary.Write(buf, binary.LittleEndian, dir)

	path := filepath.Join(t.TempDir(), "pak0.pak")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing pack: %v", err)
	}
	return path
}

func createTestPK3(t *testing.T, files map[string][]byte) string {
	t.Helper()

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		w.Write(data)
	}
	if _, err := zw.Create("maps/"); err != nil {
		t.Fatalf("zip create dir: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	path := filepath.Join(t.TempDir(), "pak0.pk3")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing pk3: %v", err)
	}
	return path
}

func TestPack(t *testing.T) {
	path := createTestPack(t,
		[]string{"maps\\de_dust.bsp", "readme.txt"},
		[][]byte{[]byte("BSPDATA"), []byte("hello")})

	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	if got := a.List(); !reflect.DeepEqual(got, []string{"maps/de_dust.bsp", "readme.txt"}) {
		t.Errorf("List() = %v", got)
	}
	if !a.Contains("MAPS/DE_DUST.BSP") {
		t.Error("expected case-insensitive lookup")
	}

	data, err := a.Read("maps/de_dust.bsp")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "BSPDATA" {
		t.Errorf("Read = %q", data)
	}

	if e, ok := a.Stat("readme.txt"); !ok || e.Size != 5 {
		t.Errorf("Stat(readme.txt) = %+v, %v", e, ok)
	}
	if a.Name() != path {
		t.Errorf("Name() = %q", a.Name())
	}
}

func TestPK3(t *testing.T) {
	path := createTestPK3(t, map[string][]byte{
		"maps/q3dm1.bsp":      []byte("IBSP"),
		"scripts/base.shader": []byte("{}"),
	})

	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	if got := a.List(); !reflect.DeepEqual(got, []string{"maps/q3dm1.bsp", "scripts/base.shader"}) {
		t.Errorf("List() = %v", got)
	}
	data, err := a.Read("./Maps/Q3DM1.bsp")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "IBSP" {
		t.Errorf("Read = %q", data)
	}
}

func TestRead_NotFound(t *testing.T) {
	a, err := Open(createTestPack(t, []string{"a.txt"}, [][]byte{[]byte("a")}))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	if _, err := a.Read("b.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpen_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"unknown magic", []byte("WAD2xxxxxxxx"), ErrUnknownFormat},
		{"too short", []byte("PA"), ErrUnknownFormat},
		{"directory past end", append([]byte("PACK"), 12, 0, 0, 0, 64, 0, 0, 0), ErrCorrupt},
		{"directory not a multiple", append([]byte("PACK"), 12, 0, 0, 0, 3, 0, 0, 0, 1, 2, 3), ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatalf("writing file: %v", err)
			}
			if _, err := Open(path); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := Open(filepath.Join(dir, "missing.pak")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOpen_DuplicateEntry(t *testing.T) {
	path := createTestPack(t, []string{"a.txt", "A.TXT"}, [][]byte{[]byte("1"), []byte("2")})
	if _, err := Open(path); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt for duplicate names, got %v", err)
	}
}

func TestPack_EntryNames(t *testing.T) {
	path := createTestPack(t,
		[]string{"MAPS\\Caf\xe9.BSP", "./Sound/Door.wav"},
		[][]byte{[]byte("latin1"), []byte("snd")})

	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	want := []string{"maps/café.bsp", "sound/door.wav"}
	if got := a.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %q, want %q", got, want)
	}
	data, err := a.Read("maps/CAFÉ.bsp")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "latin1" {
		t.Errorf("Read() = %q", data)
	}
}
