package exifgps

import (
	"encoding/binary"
	"fmt"
)

// Entry is a single 12-byte image file directory entry.
type Entry struct {
	Tag   uint16
	Type  uint16
	Count uint32
	// Value is the last four bytes interpreted in the block's byte order:
	// an offset for out-of-line values, or the packed value itself.
	Value uint32
	// Inline holds the same four bytes as they appear in the file.
	Inline [4]byte
}

// ref returns the first character of an inline ASCII value, or 0.
func (e Entry) ref() byte {
	if e.Type != typeASCII || e.Count == 0 {
		return 0
	}
	return e.Inline[0]
}

func byteOrder(exif []byte, o Options) (binary.ByteOrder, error) {
	if len(exif) < 2 {
		return nil, ErrUnsupportedByteOrder
	}
	switch string(exif[:2]) {
	case "MM":
		return binary.BigEndian, nil
	case "II":
		if o.LittleEndian {
			return binary.LittleEndian, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedByteOrder, exif[:2])
}

// readDirectory returns the entries of the IFD at off. A directory whose
// declared count runs past the block yields the entries that fit.
func readDirectory(exif []byte, off uint32, order binary.ByteOrder) ([]Entry, error) {
	if uint64(off)+2 > uint64(len(exif)) {
		return nil, fmt.Errorf("%w: directory at %d, block is %d bytes", ErrOutOfRange, off, len(exif))
	}

	start := int(off)
	n := int(order.Uint16(exif[start:]))
	es := make([]Entry, 0, n)
	p := start + 2
	for i := 0; i < n && p+entrySize <= len(exif); i++ {
		e := Entry{
			Tag:   order.Uint16(exif[p:]),
			Type:  order.Uint16(exif[p+2:]),
			Count: order.Uint32(exif[p+4:]),
			Value: order.Uint32(exif[p+8:]),
		}
		copy(e.Inline[:], exif[p+8:p+12])
		es = append(es, e)
		p += entrySize
	}
	return es, nil
}

// GPSOffset reads the primary tag directory of an EXIF TIFF block and
// returns the offset of the GPS sub-directory along with the block's byte order.
func GPSOffset(exif []byte, o Options) (uint32, binary.ByteOrder, error) {
	order, err := byteOrder(exif, o)
	if err != nil {
		return 0, nil, err
	}
	if len(exif) < 8 {
		return 0, nil, fmt.Errorf("%w: tiff header is %d bytes", ErrOutOfRange, len(exif))
	}

	es, err := readDirectory(exif, order.Uint32(exif[4:8]), order)
	if err != nil {
		return 0, nil, fmt.Errorf("ifd0: %w", err)
	}
	for _, e := range es {
		if e.Tag == tagGPSInfo {
			return e.Value, order, nil
		}
	}
	return 0, nil, fmt.Errorf("%w: gps info", ErrTagNotFound)
}
