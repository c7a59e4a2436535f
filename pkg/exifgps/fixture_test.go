package exifgps

import (
	"bytes"
	"encoding/binary"
)

// fixture describes a synthetic JPEG with a GPS sub-directory.
type fixture struct {
	order binary.ByteOrder

	lat, lon       []Rational
	latRef, lonRef string
	latType        uint16

	// noGPSPointer replaces the GPS-Info entry in IFD0 with an unrelated tag.
	noGPSPointer bool
	// bareTIFF omits the "Exif\0\0" identifier from the APP1 payload.
	bareTIFF bool
	// app0 inserts a JFIF segment ahead of APP1.
	app0 bool
}

type fixtureEntry struct {
	tag, typ uint16
	count    uint32
	inline   []byte
	data     []byte
}

func rationals(order binary.ByteOrder, rs []Rational) []byte {
	var b bytes.Buffer
	for _, r := range rs {
		_ = binary.Write(&b, order, r.Num)
		_ = binary.Write(&b, order, r.Den)
	}
	return b.Bytes()
}

func dms(d, m, s uint32) []Rational {
	return []Rational{{d, 1}, {m, 1}, {s, 1}}
}

func (f fixture) tiff() []byte {
	order := f.order
	if order == nil {
		order = binary.BigEndian
	}

	var gps []fixtureEntry
	if f.latRef != "" {
		gps = append(gps, fixtureEntry{tag: tagGPSLatitudeRef, typ: typeASCII, count: 2, inline: []byte{f.latRef[0], 0, 0, 0}})
	}
	if f.lat != nil {
		typ := f.latType
		if typ == 0 {
			typ = typeRational
		}
		gps = append(gps, fixtureEntry{tag: tagGPSLatitude, typ: typ, count: uint32(len(f.lat)), data: rationals(order, f.lat)})
	}
	if f.lonRef != "" {
		gps = append(gps, fixtureEntry{tag: tagGPSLongitudeRef, typ: typeASCII, count: 2, inline: []byte{f.lonRef[0], 0, 0, 0}})
	}
	if f.lon != nil {
		gps = append(gps, fixtureEntry{tag: tagGPSLongitude, typ: typeRational, count: uint32(len(f.lon)), data: rationals(order, f.lon)})
	}

	const ifd0Off = 8
	gpsOff := ifd0Off + 2 + entrySize + 4
	dataOff := gpsOff + 2 + len(gps)*entrySize + 4

	var b bytes.Buffer
	if order == binary.BigEndian {
		b.WriteString("MM")
	} else {
		b.WriteString("II")
	}
	_ = binary.Write(&b, order, uint16(0x2A))
	_ = binary.Write(&b, order, uint32(ifd0Off))

	ptrTag := uint16(tagGPSInfo)
	if f.noGPSPointer {
		ptrTag = 0x0110
	}
	_ = binary.Write(&b, order, uint16(1))
	_ = binary.Write(&b, order, ptrTag)
	_ = binary.Write(&b, order, uint16(4))
	_ = binary.Write(&b, order, uint32(1))
	_ = binary.Write(&b, order, uint32(gpsOff))
	_ = binary.Write(&b, order, uint32(0))

	var data bytes.Buffer
	_ = binary.Write(&b, order, uint16(len(gps)))
	for _, e := range gps {
		_ = binary.Write(&b, order, e.tag)
		_ = binary.Write(&b, order, e.typ)
		_ = binary.Write(&b, order, e.count)
		if e.data != nil {
			_ = binary.Write(&b, order, uint32(dataOff+data.Len()))
			data.Write(e.data)
			continue
		}
		b.Write(e.inline)
	}
	_ = binary.Write(&b, order, uint32(0))
	b.Write(data.Bytes())
	return b.Bytes()
}

func segment(marker uint16, payload []byte) []byte {
	var b bytes.Buffer
	_ = binary.Write(&b, binary.BigEndian, marker)
	_ = binary.Write(&b, binary.BigEndian, uint16(len(payload)+2))
	b.Write(payload)
	return b.Bytes()
}

func (f fixture) jpeg() []byte {
	payload := f.tiff()
	if !f.bareTIFF {
		payload = append(append([]byte{}, exifIdent...), payload...)
	}

	var b bytes.Buffer
	b.Write([]byte{0xFF, 0xD8})
	if f.app0 {
		b.Write(segment(0xFFE0, []byte("JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")))
	}
	b.Write(segment(markerAPP1, payload))
	b.Write([]byte{0xFF, 0xD9})
	return b.Bytes()
}

// kathmandu is the coordinate pair used throughout the tests: 27°42'0" N, 85°18'0" E.
func kathmandu() fixture {
	return fixture{lat: dms(27, 42, 0), lon: dms(85, 18, 0)}
}
