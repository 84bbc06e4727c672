package output

import "fmt"

// AmsdosFileType is the file-type byte at header offset 0x12.
type AmsdosFileType byte

const (
	AmsdosBasic     AmsdosFileType = 0
	AmsdosProtected AmsdosFileType = 1
	AmsdosBinary    AmsdosFileType = 2
	AmsdosAscii     AmsdosFileType = 16
)

// AmsdosHeaderSize is the fixed 128-byte AMSDOS header length.
const AmsdosHeaderSize = 128

// AmsdosHeader describes the fields needed to build an AMSDOS header per
// §6's byte-exact layout; User defaults to 0, Filename/Extension are
// space-padded and upper-cased to 8/3 characters.
type AmsdosHeader struct {
	User       byte
	Filename   string
	Extension  string
	Type       AmsdosFileType
	DataLength uint16 // data length without header
	LoadAddr   uint16
	ExecAddr   uint16
}

func padUpper(s string, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	up := []byte(upperASCII(s))
	if len(up) > n {
		up = up[:n]
	}
	copy(out, up)
	return out
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// BuildAmsdosHeader renders h into the 128-byte header §6 specifies,
// including the checksum at 0x44 (sum of bytes 0x00..0x42 modulo 0x10000,
// little-endian).
func BuildAmsdosHeader(h AmsdosHeader) [AmsdosHeaderSize]byte {
	var buf [AmsdosHeaderSize]byte

	buf[0x00] = h.User
	copy(buf[0x01:0x09], padUpper(h.Filename, 8))
	copy(buf[0x09:0x0C], padUpper(h.Extension, 3))
	// 0x0C-0x0F, 0x10-0x11 reserved, left zero.
	buf[0x12] = byte(h.Type)
	putLE16(buf[0x13:0x15], h.DataLength)
	putLE16(buf[0x15:0x17], h.LoadAddr)
	buf[0x17] = 0xFF
	putLE16(buf[0x18:0x1A], h.DataLength)
	putLE16(buf[0x1A:0x1C], h.ExecAddr)
	// 0x1C-0x3F (36 bytes) reserved, left zero.
	put24LE(buf[0x40:0x43], uint32(h.DataLength))
	// 0x43 reserved.

	var sum uint32
	for _, b := range buf[0x00:0x43] {
		sum += uint32(b)
	}
	putLE16(buf[0x44:0x46], uint16(sum%0x10000))
	// 0x46-0x7F (58 bytes) reserved, left zero.

	return buf
}

func putLE16(dst []byte, v uint16) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
}

func put24LE(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
}

// WrapAmsdos prepends a header built from h to data, setting DataLength
// from len(data) regardless of what the caller passed in h.
func WrapAmsdos(data []byte, h AmsdosHeader) ([]byte, error) {
	if len(data) > 0xFFFF {
		return nil, fmt.Errorf("amsdos payload too large: %d bytes exceeds 64KiB", len(data))
	}
	h.DataLength = uint16(len(data))
	hdr := BuildAmsdosHeader(h)
	out := make([]byte, 0, AmsdosHeaderSize+len(data))
	out = append(out, hdr[:]...)
	out = append(out, data...)
	return out, nil
}
