//go:build zstd

package fsa

import (
	"github.com/klauspost/compress/zstd"
)

// ZSTD is an extended algorithm (§4.6), compiled in only with the
// "zstd" build tag, mirroring the teacher's comp_zstd.go.
func init() {
	RegisterCompHandler(CompZSTD, compHandler{
		compress: func(level int, data []byte) ([]byte, error) {
			enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevel(level)))
			if err != nil {
				return nil, err
			}
			defer enc.Close()
			return enc.EncodeAll(data, nil), nil
		},
		decompress: func(data []byte) ([]byte, error) {
			dec, err := zstd.NewReader(nil)
			if err != nil {
				return nil, err
			}
			defer dec.Close()
			return dec.DecodeAll(data, nil)
		},
	})
}

func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 2:
		return zstd.SpeedFastest
	case level <= 5:
		return zstd.SpeedDefault
	case level <= 7:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}
