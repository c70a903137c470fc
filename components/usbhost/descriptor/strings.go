package descriptor

import (
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
)

// MaxStringChars is the number of UTF-16 code units a 255 byte string descriptor can hold.
const MaxStringChars = 126

// ErrStringTruncated is returned alongside the decoded prefix of a string that was too long.
var ErrStringTruncated = errors.New("string descriptor truncated")

// DecodeString decodes a string descriptor, header included, from UTF-16LE. At most maxChars
// code units are decoded; maxChars <= 0 means MaxStringChars. A longer string is cut and
// returned with ErrStringTruncated.
func DecodeString(buf []byte, maxChars int) (string, error) {
	if err := checkSize(buf, 2, "string"); err != nil {
		return "", err
	}
	if buf[1] != TypeString {
		return "", errors.Errorf("descriptor type 0x%02x is not a string descriptor", buf[1])
	}
	if maxChars <= 0 {
		maxChars = MaxStringChars
	}
	end := int(buf[0])
	if end > len(buf) {
		end = len(buf)
	}
	if end < 2 {
		end = 2
	}
	payload := buf[2:end]
	payload = payload[:len(payload)&^1]

	var truncated bool
	if len(payload) > 2*maxChars {
		payload = payload[:2*maxChars]
		truncated = true
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(payload)
	if err != nil {
		return "", errors.Wrap(err, "cannot decode string descriptor")
	}
	if truncated {
		return string(decoded), ErrStringTruncated
	}
	return string(decoded), nil
}

// LanguageID returns the first language id listed by string descriptor zero.
func LanguageID(buf []byte) (uint16, error) {
	if err := checkSize(buf, 4, "language table"); err != nil {
		return 0, err
	}
	if int(buf[0]) < 4 {
		return 0, errors.New("language table lists no language")
	}
	return uint16(buf[2]) | uint16(buf[3])<<8, nil
}
