// Package output materialises a converged assembly's bytes into the
// formats §6 defines: a flat raw-binary dump, an AMSDOS-headered file, a
// CPC snapshot (SNA) image plus its RIFF-style chunks, and a symbol dump.
// Disc-image embedding, tape writers, and compression codecs stay outside
// this package as the narrow external collaborator interfaces the spec
// names (§1 "out of scope"): DiscImage, TapeWriter, and Compressor below.
package output

import "github.com/retrocpc/basm/memmodel"

// RawBinary concatenates every page's bytes in ascending address order,
// pages serialised 0,1,2,…, gaps filled with the model's fill byte, per
// §6 "Output — raw binary". Trailing unwritten pages are omitted so an
// unexpanded 64 KiB program yields exactly one page's worth of bytes.
func RawBinary(mem *memmodel.Model) []byte {
	last := -1
	for i := 0; i < memmodel.NumPages; i++ {
		if mem.PageWritten(i) {
			last = i
		}
	}
	if last < 0 {
		return nil
	}
	out := make([]byte, 0, (last+1)*memmodel.PageSize)
	for i := 0; i <= last; i++ {
		out = append(out, mem.PageBytes(i)...)
	}
	return out
}
