package lexer

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names the text encoding Decode detected.
type Encoding string

const (
	EncodingUTF8    Encoding = "utf-8"
	EncodingUTF8BOM Encoding = "utf-8-bom"
	EncodingCP1252  Encoding = "windows-1252"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode returns layout source as UTF-8. A leading byte order mark is
// dropped. Input that is not valid UTF-8 is read as CP-1252, which also
// covers Latin-1 for every printable character.
func Decode(src []byte) ([]byte, Encoding, error) {
	if utf8.Valid(src) {
		if len(src) >= 3 && src[0] == utf8BOM[0] && src[1] == utf8BOM[1] && src[2] == utf8BOM[2] {
			out, err := unicode.UTF8BOM.NewDecoder().Bytes(src)
			return out, EncodingUTF8BOM, err
		}
		return src, EncodingUTF8, nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(src)
	if err != nil {
		return nil, "", err
	}
	return out, EncodingCP1252, nil
}
