package exifgps

import (
	"bytes"
	"encoding/binary"
)

var exifIdent = []byte("Exif\x00\x00")

// FindEXIF walks the JPEG marker stream in b and returns the TIFF block of
// the first EXIF APP1 segment, with the "Exif\0\0" identifier removed so that
// offsets inside it are relative to the byte-order mark.
func FindEXIF(b []byte) ([]byte, error) {
	if len(b) < 2 || binary.BigEndian.Uint16(b) != markerSOI {
		return nil, ErrNotJPEG
	}

	i := 2
	for i+4 <= len(b) {
		if b[i] != markerPrefix {
			return nil, ErrScanTerminated
		}
		// fill byte
		if b[i+1] == markerPrefix {
			i++
			continue
		}

		marker := binary.BigEndian.Uint16(b[i:])
		if marker == markerSOS || marker == markerEOI {
			return nil, ErrNoEXIF
		}

		length := int(binary.BigEndian.Uint16(b[i+2:]))
		if length < 2 {
			return nil, ErrScanTerminated
		}
		end := i + 2 + length

		if marker == markerAPP1 {
			// A large APP1 may be cut short by the bounded prefix.
			if end > len(b) {
				end = len(b)
			}
			if tiff, ok := tiffBlock(b[i+4 : end]); ok {
				return tiff, nil
			}
		}

		if end > len(b) {
			return nil, ErrScanTerminated
		}
		i = end
	}

	return nil, ErrScanTerminated
}

// tiffBlock returns the TIFF header portion of an APP1 payload, or false if
// the payload is some other APP1 application (XMP, for instance).
func tiffBlock(payload []byte) ([]byte, bool) {
	if bytes.HasPrefix(payload, exifIdent) {
		return payload[len(exifIdent):], true
	}
	if len(payload) >= 2 && payload[0] == payload[1] && (payload[0] == 'M' || payload[0] == 'I') {
		return payload, true
	}
	return nil, false
}
