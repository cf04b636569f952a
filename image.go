package tutor

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
)

// ErrInvalidImage is returned for payloads that are not base64 images.
var ErrInvalidImage = errors.New("invalid image")

func invalidImage(err error, msg string) error {
	return errors.Mark(errors.Mark(errors.Wrap(err, msg), ErrInvalidImage), chat.ErrInvalidInput)
}

// DecodeImage decodes a base64 PNG, JPEG or GIF, optionally given as a
// data: URL, and re-encodes it as PNG.
func DecodeImage(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if i := strings.LastIndexByte(encoded, ','); i >= 0 {
		encoded = encoded[i+1:]
	}
	if encoded == "" {
		return nil, errors.Mark(errors.Mark(errors.New("empty image"), ErrInvalidImage), chat.ErrInvalidInput)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// some clients strip the padding
		var rawErr error
		if data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "=")); rawErr != nil {
			return nil, invalidImage(err, "decode base64")
		}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, invalidImage(err, "decode image")
	}
	if format == "png" {
		return data, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	return buf.Bytes(), nil
}
