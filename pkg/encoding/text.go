// Package encoding provides text encoding utilities for map and archive data.
package encoding

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Windows1252ToUTF8 converts Windows-1252 encoded bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func Windows1252ToUTF8(data []byte) string {
	decoder := charmap.Windows1252.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// ToUTF8 returns data as a string, decoding it as Windows-1252 when it is not
// already valid UTF-8. Maps built with Windows tools carry Latin-1 text in
// entity values.
func ToUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return Windows1252ToUTF8(data)
}

// NormalizePath normalizes an archive path for case-insensitive lookup.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimPrefix(path, "./")
	return strings.ToLower(path)
}

// FixedStringToUTF8 converts a fixed-size NUL-padded field to a UTF-8 string.
func FixedStringToUTF8(data []byte) string {
	if nullIdx := bytes.IndexByte(data, 0); nullIdx >= 0 {
		data = data[:nullIdx]
	}
	return ToUTF8(data)
}
