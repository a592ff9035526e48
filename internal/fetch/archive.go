package fetch

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// EmbeddedFile is the database file pulled out of the archive. Name is the
// entry name and is used for diagnostics and to pick the source driver.
type EmbeddedFile struct {
	Name string
	Data []byte
}

// Unpack selects the first non-directory entry whose name ends with suffix
// (case-sensitive) and returns its bytes unchanged.
//
// entries receives every entry name in archive order; it may be nil.
func Unpack(payload []byte, suffix string, entries func(name string, isDir bool, size uint64)) (EmbeddedFile, error) {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return EmbeddedFile{}, &ArchiveError{Err: err}
	}

	var (
		names  []string
		chosen *zip.File
		name   string
	)
	for _, f := range zr.File {
		n := entryName(f)
		isDir := f.FileInfo().IsDir()
		names = append(names, n)
		if entries != nil {
			entries(n, isDir, f.UncompressedSize64)
		}
		if chosen == nil && !isDir && strings.HasSuffix(n, suffix) {
			chosen, name = f, n
		}
	}
	if chosen == nil {
		return EmbeddedFile{}, &NotFoundError{Suffix: suffix, Entries: names}
	}

	rc, err := chosen.Open()
	if err != nil {
		return EmbeddedFile{}, &ArchiveError{Entry: name, Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return EmbeddedFile{}, &ArchiveError{Entry: name, Err: err}
	}
	return EmbeddedFile{Name: name, Data: data}, nil
}

// entryName decodes legacy entry names. Zip writers that do not set the
// UTF-8 flag store names in code page 437, unless the bytes already form
// valid UTF-8.
func entryName(f *zip.File) string {
	if !f.NonUTF8 || utf8.ValidString(f.Name) {
		return f.Name
	}
	dec, err := charmap.CodePage437.NewDecoder().String(f.Name)
	if err != nil {
		return f.Name
	}
	return dec
}
