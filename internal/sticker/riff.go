package sticker

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrNotWebP = errors.New("sticker: not a WEBP container")

const (
	vp8xFlagExif  = 0x08
	vp8xFlagAlpha = 0x10
)

type chunk struct {
	fourCC  string
	payload []byte
}

// parseWebP splits a WEBP file into its RIFF chunks.
func parseWebP(data []byte) ([]chunk, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WEBP")) {
		return nil, ErrNotWebP
	}

	var chunks []chunk
	offset := 12
	for offset+8 <= len(data) {
		fourCC := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		start := offset + 8
		if start+size > len(data) {
			return nil, fmt.Errorf("%w: chunk %q overruns file", ErrNotWebP, fourCC)
		}
		chunks = append(chunks, chunk{fourCC: fourCC, payload: data[start : start+size]})
		offset = start + size
		if size%2 == 1 {
			offset++ // RIFF pads odd-sized chunks
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks", ErrNotWebP)
	}
	return chunks, nil
}

// assembleWebP serializes chunks back into a RIFF file with recomputed sizes.
func assembleWebP(chunks []chunk) []byte {
	var body bytes.Buffer
	body.WriteString("WEBP")
	for _, c := range chunks {
		body.WriteString(c.fourCC)
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(len(c.payload)))
		body.Write(size[:])
		body.Write(c.payload)
		if len(c.payload)%2 == 1 {
			body.WriteByte(0)
		}
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	var total [4]byte
	binary.LittleEndian.PutUint32(total[:], uint32(body.Len()))
	out.Write(total[:])
	out.Write(body.Bytes())
	return out.Bytes()
}

// canvasSize reads the pixel dimensions out of the first image chunk. Only
// enough of the VP8/VP8L bitstream headers is parsed to recover the size.
func canvasSize(chunks []chunk) (width, height int, err error) {
	for _, c := range chunks {
		switch c.fourCC {
		case "VP8X":
			if len(c.payload) < 10 {
				return 0, 0, fmt.Errorf("%w: short VP8X chunk", ErrNotWebP)
			}
			w := int(c.payload[4]) | int(c.payload[5])<<8 | int(c.payload[6])<<16
			h := int(c.payload[7]) | int(c.payload[8])<<8 | int(c.payload[9])<<16
			return w + 1, h + 1, nil
		case "VP8 ":
			if len(c.payload) < 10 || c.payload[3] != 0x9d || c.payload[4] != 0x01 || c.payload[5] != 0x2a {
				return 0, 0, fmt.Errorf("%w: malformed VP8 bitstream", ErrNotWebP)
			}
			w := int(binary.LittleEndian.Uint16(c.payload[6:8])) & 0x3fff
			h := int(binary.LittleEndian.Uint16(c.payload[8:10])) & 0x3fff
			return w, h, nil
		case "VP8L":
			if len(c.payload) < 5 || c.payload[0] != 0x2f {
				return 0, 0, fmt.Errorf("%w: malformed VP8L bitstream", ErrNotWebP)
			}
			bits := binary.LittleEndian.Uint32(c.payload[1:5])
			w := int(bits&0x3fff) + 1
			h := int((bits>>14)&0x3fff) + 1
			return w, h, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: no image chunk", ErrNotWebP)
}

// injectExif rebuilds the container as an extended-format WEBP whose VP8X
// header advertises the given EXIF payload. Any pre-existing EXIF chunk is
// replaced.
func injectExif(data, exifPayload []byte) ([]byte, error) {
	chunks, err := parseWebP(data)
	if err != nil {
		return nil, err
	}

	width, height, err := canvasSize(chunks)
	if err != nil {
		return nil, err
	}

	var vp8x chunk
	rest := make([]chunk, 0, len(chunks)+1)
	for _, c := range chunks {
		switch c.fourCC {
		case "VP8X":
			vp8x = c
		case "EXIF":
			// dropped, replaced below
		default:
			rest = append(rest, c)
		}
	}

	if vp8x.fourCC == "" {
		payload := make([]byte, 10)
		payload[0] = vp8xFlagAlpha
		payload[4] = byte((width - 1))
		payload[5] = byte((width - 1) >> 8)
		payload[6] = byte((width - 1) >> 16)
		payload[7] = byte((height - 1))
		payload[8] = byte((height - 1) >> 8)
		payload[9] = byte((height - 1) >> 16)
		vp8x = chunk{fourCC: "VP8X", payload: payload}
	} else {
		vp8x.payload = append([]byte(nil), vp8x.payload...)
	}
	vp8x.payload[0] |= vp8xFlagExif

	out := make([]chunk, 0, len(rest)+2)
	out = append(out, vp8x)
	out = append(out, rest...)
	out = append(out, chunk{fourCC: "EXIF", payload: exifPayload})
	return assembleWebP(out), nil
}
