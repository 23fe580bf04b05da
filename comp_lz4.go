//go:build lz4

package fsa

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

// LZ4 is an extended algorithm (§4.6), compiled in only with the "lz4"
// build tag. Grounded on other_examples/manifests/R2DXT-goimagetool's
// use of github.com/pierrec/lz4/v4 alongside the other archiver
// codecs in that pack entry.
func init() {
	RegisterCompHandler(CompLZ4, compHandler{
		compress: func(level int, data []byte) ([]byte, error) {
			var out bytes.Buffer
			w := lz4.NewWriter(&out)
			if level >= 7 {
				_ = w.Apply(lz4.CompressionLevelOption(lz4.Level9))
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
			r := lz4.NewReader(bytes.NewReader(data))
			return io.ReadAll(r)
		},
	})
}
