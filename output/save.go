package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/retrocpc/basm/driver"
)

// DiscImage is the narrow external collaborator §1 names for disc-image
// output: "provide sector_read, sector_write, add_file(AmsdosFile,…),
// save(path)". This package never reads or writes a DSK/EDSK/HFE image
// itself; it only hands one a fully-resolved file to add.
type DiscImage interface {
	AddFile(innerPath string, header *AmsdosHeader, data []byte) error
}

// TapeWriter is the narrow collaborator for CDT/tape output; the spec
// groups tape alongside disc and host as SaveCommand's Support targets but
// does not specify a tape container format, so this interface only carries
// the resolved bytes through to whatever writer the caller supplies.
type TapeWriter interface {
	AddBlock(name string, data []byte) error
}

// Compressor is the narrow external collaborator §1 names for the
// compression libraries (LZ48/49/LZSA/ZX0/Exomizer/Apultra/Shrinkler/Upkr/
// LZ4): "provide compress(&[u8]) -> CompressionResult{stream, delta?}".
type Compressor interface {
	Compress(data []byte) (stream []byte, delta []byte, err error)
}

// Writers bundles the external collaborators ResolveSaves dispatches to;
// any entry may be nil if the caller doesn't support that Support target,
// in which case a save requiring it fails with a descriptive error rather
// than silently dropping the file.
type Writers struct {
	Disc DiscImage
	Tape TapeWriter
}

// BuildSave renders one ResolvedSave's final file bytes (header-wrapped or
// raw) without touching any collaborator, so a caller that only wants the
// bytes (e.g. to inspect them in a test) doesn't need a Writers value.
func BuildSave(s driver.ResolvedSave) ([]byte, *AmsdosHeader, error) {
	base := filepath.Base(s.Path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	ext := strings.TrimPrefix(filepath.Ext(base), ".")

	if s.Type == "NoHeader" || s.Type == "Ascii" {
		return s.Data, nil, nil
	}

	fileType := resolveAmsdosType(s.Type, ext)
	hdr := AmsdosHeader{
		Filename: name, Extension: ext, Type: fileType,
		LoadAddr: s.From, ExecAddr: s.From,
	}
	out, err := WrapAmsdos(s.Data, hdr)
	if err != nil {
		return nil, nil, err
	}
	return out, &hdr, nil
}

// resolveAmsdosType maps a SaveCommand's Type string to an AmsdosFileType,
// "Auto" inferring Basic vs Binary from the file extension the way AMSDOS
// itself does (".bas" => Basic, anything else => Binary).
func resolveAmsdosType(saveType, ext string) AmsdosFileType {
	switch saveType {
	case "AmsdosBas":
		return AmsdosBasic
	case "AmsdosBin":
		return AmsdosBinary
	case "Auto":
		if strings.EqualFold(ext, "bas") {
			return AmsdosBasic
		}
		return AmsdosBinary
	default:
		return AmsdosBinary
	}
}

// ResolveSaves writes every entry of saves to its Support target: "Host"
// writes the built file directly to the filesystem (in parallel-safe
// isolation per §5's ordering guarantee, since distinct host paths never
// collide), while "Disc"/"Tape" serialise through the supplied collaborator
// in enqueue order, matching §5's "any disc-image save serialises on the
// image path".
func ResolveSaves(saves []driver.ResolvedSave, w Writers) error {
	for _, s := range saves {
		data, hdr, err := BuildSave(s)
		if err != nil {
			return fmt.Errorf("save %q: %w", s.Path, err)
		}
		switch strings.ToLower(s.Support) {
		case "", "host":
			if err := os.WriteFile(s.Path, data, 0644); err != nil {
				return fmt.Errorf("save %q: %w", s.Path, err)
			}
		case "disc":
			if w.Disc == nil {
				return fmt.Errorf("save %q: disc support requested but no DiscImage collaborator was supplied", s.Path)
			}
			if err := w.Disc.AddFile(s.Path, hdr, data); err != nil {
				return fmt.Errorf("save %q: %w", s.Path, err)
			}
		case "tape":
			if w.Tape == nil {
				return fmt.Errorf("save %q: tape support requested but no TapeWriter collaborator was supplied", s.Path)
			}
			if err := w.Tape.AddBlock(s.Path, data); err != nil {
				return fmt.Errorf("save %q: %w", s.Path, err)
			}
		default:
			return fmt.Errorf("save %q: unknown support target %q", s.Path, s.Support)
		}
	}
	return nil
}
