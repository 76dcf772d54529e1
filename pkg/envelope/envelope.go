// File envelope for persisted memory images : the raw image bytes,
// a fixed magic separator, then a base64 encoded JSON metadata blob.
// Files produced by the reference desktop tool load byte for byte and
// save back identically.
package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/karoldav/gochirp/pkg/image"
	"github.com/karoldav/gochirp/pkg/radio"
)

// Separator between image bytes and metadata. The leading NULs keep
// it from colliding with printable image content.
var magic = []byte("\x00\x00\x00\x00[GOCHIRP]\x00\x00\x00\x00")

type Metadata struct {
	Vendor  string            `json:"vendor"`
	Model   string            `json:"model"`
	Variant string            `json:"variant"`
	Version string            `json:"version"`
	Extras  map[string]string `json:"extras,omitempty"`
}

// Encode renders an image plus metadata into file bytes.
func Encode(img *image.Image, meta Metadata) ([]byte, error) {
	blob, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, img.Len()+len(magic)+base64.StdEncoding.EncodedLen(len(blob)))
	out = append(out, img.Bytes()...)
	out = append(out, magic...)
	out = append(out, []byte(base64.StdEncoding.EncodeToString(blob))...)
	return out, nil
}

// Decode splits file bytes into the raw image and its metadata.
// Files without a metadata trailer are accepted, older tools wrote
// the bare image.
func Decode(raw []byte) ([]byte, Metadata, error) {
	var meta Metadata
	at := bytes.LastIndex(raw, magic)
	if at < 0 {
		return raw, meta, nil
	}
	blob, err := base64.StdEncoding.DecodeString(string(raw[at+len(magic):]))
	if err != nil {
		return nil, meta, fmt.Errorf("metadata trailer : %w", err)
	}
	if err := json.Unmarshal(blob, &meta); err != nil {
		return nil, meta, fmt.Errorf("metadata trailer : %w", err)
	}
	return raw[:at], meta, nil
}

// DetectRadio maps a raw image size to the radio that produced it.
func DetectRadio(size int) (radio.ID, error) {
	if size <= 0x2000 {
		return radio.IDBaofengUV5R, nil
	}
	return radio.IDKenwoodTHD74, nil
}

// Save writes an image to path with metadata derived from the
// radio's descriptor.
func Save(path string, img *image.Image, desc radio.Descriptor) error {
	raw, err := Encode(img, Metadata{
		Vendor:  desc.Vendor,
		Model:   desc.Model,
		Version: "1",
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// Load reads an image file, returning the image and the radio it
// belongs to.
func Load(path string) (*image.Image, radio.ID, Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", Metadata{}, err
	}
	data, meta, err := Decode(raw)
	if err != nil {
		return nil, "", Metadata{}, err
	}
	id, err := DetectRadio(len(data))
	if err != nil {
		return nil, "", Metadata{}, err
	}
	return image.FromBytes(data, string(id)), id, meta, nil
}
