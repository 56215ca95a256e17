// Package sticker injects pack and author metadata into WEBP stickers. The
// receiving client reads the EXIF chunk to label the sticker pack; a sticker
// without metadata still renders, so every failure here degrades to
// returning the input unchanged.
package sticker

import (
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Metadata is what the receiving client's sticker UI displays.
type Metadata struct {
	PackID    string   `json:"sticker-pack-id"`
	PackName  string   `json:"sticker-pack-name"`
	Publisher string   `json:"sticker-pack-publisher"`
	Emojis    []string `json:"emojis,omitempty"`
}

// MetadataWriter is the optional capability of embedding Metadata into a
// WEBP container. Availability is resolved once at construction of the
// Packer, not probed per call.
type MetadataWriter interface {
	Available() bool
	Write(webp []byte, meta Metadata) ([]byte, error)
}

const maxPackNameLength = 30

// PackName derives a sticker pack name from a user's display name: first
// token, lowercased, truncated.
func PackName(displayName string) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return "stickers"
	}
	name = strings.Fields(name)[0]
	name = strings.ToLower(name)
	if runes := []rune(name); len(runes) > maxPackNameLength {
		name = string(runes[:maxPackNameLength])
	}
	return name
}

type Packer struct {
	writer MetadataWriter
	author string
	log    *slog.Logger
}

func NewPacker(writer MetadataWriter, author string, log *slog.Logger) *Packer {
	if writer == nil {
		writer = NewExifWriter()
	}
	if author == "" {
		author = "mediakit"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Packer{writer: writer, author: author, log: log}
}

// Pack embeds pack/author metadata derived from the requesting user's
// display name. Delivery beats metadata: if the writer is unavailable or
// rejects the container, the original bytes come back untouched.
func (p *Packer) Pack(webp []byte, displayName string) []byte {
	if !p.writer.Available() {
		return webp
	}

	meta := Metadata{
		PackID:    uuid.NewString(),
		PackName:  PackName(displayName),
		Publisher: p.author,
	}

	out, err := p.writer.Write(webp, meta)
	if err != nil {
		p.log.Warn("sticker metadata injection failed, sending without metadata", "error", err)
		return webp
	}
	return out
}

// ExifWriter embeds Metadata as a WhatsApp-style EXIF chunk.
type ExifWriter struct{}

var _ MetadataWriter = (*ExifWriter)(nil)

func NewExifWriter() *ExifWriter {
	return &ExifWriter{}
}

func (w *ExifWriter) Available() bool {
	return true
}

// exifPrefix is the fixed TIFF header the client expects before the JSON
// metadata blob.
var exifPrefix = []byte{
	0x49, 0x49, 0x2a, 0x00, 0x08, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x41, 0x57, 0x07, 0x00,
}

func (w *ExifWriter) Write(webp []byte, meta Metadata) ([]byte, error) {
	blob, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 0, len(exifPrefix)+8+len(blob))
	payload = append(payload, exifPrefix...)
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(blob)))
	payload = append(payload, length[:]...)
	payload = append(payload, 0x16, 0x00, 0x00, 0x00)
	payload = append(payload, blob...)

	return injectExif(webp, payload)
}
