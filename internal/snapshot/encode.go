package snapshot

import (
	"fmt"
	"image/png"
	"io"
)

// WritePNG renders s and writes it to w as PNG.
func WritePNG(w io.Writer, s Scene, opts Options) error {
	img, err := Render(s, opts)
	if err != nil {
		return err
	}
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}
