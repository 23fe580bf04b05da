package fsa

import (
	"bytes"
	"fmt"
	"io"

	"github.com/anchore/go-lzo"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz/lzma"
)

// CompAlgo identifies the compression algorithm used for one block
// (§3, §4.6). Stored in both the main archive header (selected preset)
// and mirrored into every block header so a decoder can dispatch per
// block.
type CompAlgo uint8

const (
	CompNone CompAlgo = iota
	CompLZO
	CompGZIP
	CompBZIP2
	CompLZMA
	CompZSTD // extended, build tag "zstd"
	CompLZ4  // extended, build tag "lz4"
)

func (a CompAlgo) String() string {
	switch a {
	case CompNone:
		return "NONE"
	case CompLZO:
		return "LZO"
	case CompGZIP:
		return "GZIP"
	case CompBZIP2:
		return "BZIP2"
	case CompLZMA:
		return "LZMA"
	case CompZSTD:
		return "ZSTD"
	case CompLZ4:
		return "LZ4"
	}
	return fmt.Sprintf("CompAlgo(%d)", uint8(a))
}

// EncryptAlgo identifies the symmetric cipher, if any, layered over
// the compressed bytes (§4.6).
type EncryptAlgo uint8

const (
	EncryptNone EncryptAlgo = iota
	EncryptBlowfish
)

func (a EncryptAlgo) String() string {
	switch a {
	case EncryptNone:
		return "NONE"
	case EncryptBlowfish:
		return "BLOWFISH"
	}
	return fmt.Sprintf("EncryptAlgo(%d)", uint8(a))
}

// compHandler is a pluggable codec, grounded on the teacher's
// CompHandler/RegisterCompHandler pattern in comp.go: a pair of
// compress/decompress functions registered per algorithm, generalized
// from SquashFS's one-compressor-per-image model to one entry per
// CompAlgo usable on any single block.
type compHandler struct {
	compress   func(level int, data []byte) ([]byte, error)
	decompress func(data []byte) ([]byte, error)
}

var compHandlers = map[CompAlgo]compHandler{}

// RegisterCompHandler installs (or replaces) the handler for algo. The
// build-tag-gated comp_zstd.go/comp_lz4.go files call this from init().
func RegisterCompHandler(algo CompAlgo, h compHandler) {
	compHandlers[algo] = h
}

func init() {
	RegisterCompHandler(CompGZIP, compHandler{
		compress: func(level int, data []byte) ([]byte, error) {
			var out bytes.Buffer
			w, err := gzip.NewWriterLevel(&out, gzipLevel(level))
			if err != nil {
				return nil, err
			}
			if _, err := w.Write(data); err != nil {
				w.Close()
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			return out.Bytes(), nil
		},
		decompress: func(data []byte) ([]byte, error) {
			r, err := gzip.NewReader(bytes.NewReader(data))
			if err != nil {
				return nil, err
			}
			defer r.Close()
			return io.ReadAll(r)
		},
	})

	RegisterCompHandler(CompLZMA, compHandler{
		compress: func(level int, data []byte) ([]byte, error) {
			var out bytes.Buffer
			w, err := lzma.NewWriter(&out)
			if err != nil {
				return nil, err
			}
			if _, err := w.Write(data); err != nil {
				w.Close()
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			return out.Bytes(), nil
		},
		decompress: func(data []byte) ([]byte, error) {
			r, err := lzma.NewReader(bytes.NewReader(data))
			if err != nil {
				return nil, err
			}
			return io.ReadAll(r)
		},
	})

	RegisterCompHandler(CompBZIP2, compHandler{
		compress: func(level int, data []byte) ([]byte, error) {
			var out bytes.Buffer
			w, err := bzip2.NewWriterLevel(&out, bzip2Level(level))
			if err != nil {
				return nil, err
			}
			if _, err := w.Write(data); err != nil {
				w.Close()
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			return out.Bytes(), nil
		},
		decompress: func(data []byte) ([]byte, error) {
			r, err := bzip2.NewReader(bytes.NewReader(data), nil)
			if err != nil {
				return nil, err
			}
			defer r.Close()
			return io.ReadAll(r)
		},
	})

	RegisterCompHandler(CompLZO, compHandler{
		compress: func(level int, data []byte) ([]byte, error) {
			var out bytes.Buffer
			if err := lzo.Compress1X(&out, data); err != nil {
				return nil, err
			}
			return out.Bytes(), nil
		},
		decompress: func(data []byte) ([]byte, error) {
			var out bytes.Buffer
			if err := lzo.Decompress1X(&out, data, 0); err != nil {
				return nil, err
			}
			return out.Bytes(), nil
		},
	})
}

// gzipLevel maps the fsa 1..9 preset onto compress/gzip's native
// 1..9 level scale (§4.6).
func gzipLevel(level int) int {
	if level < 1 {
		return gzip.DefaultCompression
	}
	if level > 9 {
		return 9
	}
	return level
}

// bzip2Level performs the same clamp for dsnet/compress/bzip2.
func bzip2Level(level int) int {
	if level < 1 {
		return 6
	}
	if level > 9 {
		return 9
	}
	return level
}

// levelPreset maps a user-facing "fsa level" (1..9) to an algorithm and
// preferred block size (§4.6). Levels 1-3 favor speed (LZO/GZIP low),
// 4-6 are balanced (GZIP/LZMA mid), 7-9 favor ratio (LZMA high).
func levelPreset(level int) (algo CompAlgo, algoLevel int, blockSize int) {
	switch {
	case level <= 2:
		return CompLZO, level, 128 * 1024
	case level <= 5:
		return CompGZIP, level, 256 * 1024
	default:
		return CompLZMA, level, 512 * 1024
	}
}

// CompressBlock runs the codec rules of §4.6: compute compressed bytes;
// if not smaller than the raw size, store uncompressed with
// CompNone; otherwise optionally encrypt the compressed bytes. Sets
// ArchiveSize and ArchiveChecksum. On an allocation failure during
// compression, retries uncompressed (§4.6).
func CompressBlock(b *Block, algo CompAlgo, level int, password string) error {
	raw := b.Data
	archiveBytes := raw
	usedAlgo := CompNone

	if algo != CompNone {
		h, ok := compHandlers[algo]
		if !ok {
			return fmt.Errorf("fsa: unknown compression algorithm %s", algo)
		}
		compressed, err := compressWithFallback(h, level, raw)
		if err == nil && len(compressed) < len(raw) {
			archiveBytes = compressed
			usedAlgo = algo
			b.CompressedSize = uint32(len(compressed))
		}
	}

	encAlgo := EncryptNone
	if password != "" {
		enc, err := blowfishEncrypt(password, archiveBytes)
		if err != nil {
			return err
		}
		archiveBytes = enc
		encAlgo = EncryptBlowfish
	}

	b.CompAlgo = usedAlgo
	b.EncryptAlgo = encAlgo
	b.ArchiveSize = uint32(len(archiveBytes))
	b.ArchiveChecksum = Fletcher32(archiveBytes)
	b.Data = archiveBytes
	return nil
}

// compressWithFallback isolates the "retry uncompressed on
// OUT_OF_MEMORY" rule of §4.6 in one place.
func compressWithFallback(h compHandler, level int, raw []byte) ([]byte, error) {
	out, err := h.compress(level, raw)
	if err != nil {
		// treat any compressor failure the way §4.6 treats
		// OUT_OF_MEMORY: fall back to storing the block raw.
		return raw, err
	}
	return out, nil
}

// DecompressBlock reverses CompressBlock: verifies ArchiveChecksum,
// decrypts, decompresses, and marks b.Corrupt on checksum mismatch
// (§4.6). A corrupt block has its payload zeroed so the consumer does
// not act on garbage bytes.
func DecompressBlock(b *Block, password string) error {
	if Fletcher32(b.Data) != b.ArchiveChecksum {
		b.Corrupt = true
		b.Data = make([]byte, b.RealSize)
		return ErrCorrupt
	}

	data := b.Data
	if b.EncryptAlgo == EncryptBlowfish {
		dec, err := blowfishDecrypt(password, data)
		if err != nil {
			b.Corrupt = true
			b.Data = make([]byte, b.RealSize)
			return err
		}
		data = dec
	}

	if b.CompAlgo != CompNone {
		h, ok := compHandlers[b.CompAlgo]
		if !ok {
			return fmt.Errorf("fsa: unknown compression algorithm %s", b.CompAlgo)
		}
		dec, err := h.decompress(data)
		if err != nil {
			b.Corrupt = true
			b.Data = make([]byte, b.RealSize)
			return err
		}
		data = dec
	}

	b.Data = data
	return nil
}
