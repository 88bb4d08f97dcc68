package ingest

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decode converts the raw bytes of an uploaded file into text.
//
// A byte-order mark, when present, is authoritative: UTF-8, UTF-16LE and
// UTF-16BE BOMs select their encoding directly and the BOM itself is
// dropped. Without a BOM the bytes are read as UTF-8 first; if the result
// contains the Unicode replacement character the whole buffer is re-decoded
// as Windows-1252 instead. Spreadsheet exports from Spanish-locale Windows
// machines routinely arrive 1252-encoded with no BOM, and mojibake in
// address fields ("Per�") breaks geocoding downstream.
//
// Decode never fails: undecodable UTF-16 falls back to a raw byte read, and
// Windows-1252 maps every byte to some character.
func Decode(data []byte) string {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return string(data[len(bomUTF8):])
	case bytes.HasPrefix(data, bomUTF16LE):
		return decodeUTF16(data, unicode.LittleEndian)
	case bytes.HasPrefix(data, bomUTF16BE):
		return decodeUTF16(data, unicode.BigEndian)
	}

	text := string(data)
	// ContainsRune(utf8.RuneError) is true both for invalid UTF-8 byte
	// sequences and for a literal U+FFFD already in the data; either way
	// the file was not produced as clean UTF-8.
	if strings.ContainsRune(text, utf8.RuneError) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err == nil {
			return string(decoded)
		}
	}
	return text
}

func decodeUTF16(data []byte, endianness unicode.Endianness) string {
	decoded, err := unicode.UTF16(endianness, unicode.ExpectBOM).NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}
