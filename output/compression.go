package output

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// ZSTDFileExtension is appended to the name of zstd compressed files.
const ZSTDFileExtension = ".zst"

// NewZSTDCompressor compresses everything written to the returned writer
// into out. Closing it does not close out.
func NewZSTDCompressor(out io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
}
