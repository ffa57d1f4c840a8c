package scanning

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// EncodeImage reads an image and returns it as standard base64 without line breaks
func EncodeImage(r io.Reader) (string, error) {
	var sb strings.Builder
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	if _, err := io.Copy(enc, r); err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	// Flush the final partial block
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding image: %w", err)
	}
	return sb.String(), nil
}

// DecodeImage reverses EncodeImage
func DecodeImage(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return data, nil
}
