package main

import (
	"fmt"
	"io"

	"github.com/mdp/qrterminal/v3"

	"bilifav/internal/bili"
)

// qrRenderer returns a login renderer that draws the confirmation QR code in
// the terminal, with the raw URL underneath for terminals that cannot show
// the blocks.
func qrRenderer(out io.Writer) bili.RenderFunc {
	return func(url string) {
		fmt.Fprintln(out, "Scan with the Bilibili app to log in:")
		qrterminal.GenerateWithConfig(url, qrterminal.Config{
			Level:      qrterminal.L,
			Writer:     out,
			HalfBlocks: true,
			QuietZone:  1,
		})
		fmt.Fprintln(out, url)
		fmt.Fprintln(out, "Waiting for confirmation...")
	}
}
