package chitra

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"testing"
	"time"

	"github.com/tstromberg/chitra/pkg/exifgps"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newSite returns a site in a temporary directory whose clock advances one
// minute per reading.
func newSite(t *testing.T) *Site {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	clock := epoch
	st.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	c := &Config{
		DataDir:       st.Dir(),
		OutDir:        filepath.Join(dir, "out"),
		Title:         "Chitra",
		Lang:          English,
		AdminUser:     "admin",
		AdminPassword: "admin123",
		Thumbnails: map[string]ThumbOpts{
			"Album":  {Y: 16, Quality: 80},
			"Stream": {X: 16, Quality: 80},
		},
		GPS: exifgps.Options{LittleEndian: true, HemisphereSign: true},
	}
	return New(c, st)
}

func registration(name, email string) Registration {
	return Registration{
		FullName: name,
		Email:    email,
		Phone:    "9841234567",
		Province: "Bagmati",
		District: "Kathmandu",
		Village:  "Kirtipur",
		Type:     "photographer",
		Password: "Secret#123",
		Confirm:  "Secret#123",
	}
}

// activeMember registers and approves a member.
func activeMember(t *testing.T, s *Site, email string) Member {
	t.Helper()
	m, err := s.Register(registration("Sita Sharma", email))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.ApproveMember(m.ID); err != nil {
		t.Fatalf("ApproveMember: %v", err)
	}
	m, err = s.Store().Member(m.ID)
	if err != nil {
		t.Fatalf("Member: %v", err)
	}
	return m
}

// gpsTIFF returns a big-endian TIFF block whose GPS directory holds whole
// degree, minute and second values.
func gpsTIFF(lat, lon [3]uint32, latRef, lonRef byte) []byte {
	var b bytes.Buffer
	w := func(v any) { _ = binary.Write(&b, binary.BigEndian, v) }

	b.WriteString("MM")
	w(uint16(42))
	w(uint32(8))

	// IFD0 at 8: GPS-Info pointer to 26.
	w(uint16(1))
	w(uint16(0x8825))
	w(uint16(4))
	w(uint32(1))
	w(uint32(26))
	w(uint32(0))

	// GPS IFD at 26, value data from 80.
	w(uint16(4))
	w(uint16(0x0001))
	w(uint16(2))
	w(uint32(2))
	b.Write([]byte{latRef, 0, 0, 0})
	w(uint16(0x0002))
	w(uint16(5))
	w(uint32(3))
	w(uint32(80))
	w(uint16(0x0003))
	w(uint16(2))
	w(uint32(2))
	b.Write([]byte{lonRef, 0, 0, 0})
	w(uint16(0x0004))
	w(uint16(5))
	w(uint32(3))
	w(uint32(104))
	w(uint32(0))

	for _, v := range lat {
		w(v)
		w(uint32(1))
	}
	for _, v := range lon {
		w(v)
		w(uint32(1))
	}
	return b.Bytes()
}

// photoJPEG encodes a small decodable JPEG. A non-nil tiff is embedded as
// an EXIF APP1 segment directly after SOI.
func photoJPEG(t *testing.T, tiff []byte) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		for y := 0; y < 24; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 10), B: 128, A: 255})
		}
	}

	var enc bytes.Buffer
	if err := jpeg.Encode(&enc, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if tiff == nil {
		return enc.Bytes()
	}

	payload := append([]byte("Exif\x00\x00"), tiff...)
	var out bytes.Buffer
	out.Write(enc.Bytes()[:2])
	out.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(enc.Bytes()[2:])
	return out.Bytes()
}

func kathmanduJPEG(t *testing.T) []byte {
	t.Helper()
	return photoJPEG(t, gpsTIFF([3]uint32{27, 42, 0}, [3]uint32{85, 18, 0}, 'N', 'E'))
}
