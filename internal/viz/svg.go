package viz

import (
	"bufio"
	"fmt"
	"io"
)

// WriteSVG renders the set pixels of c as dots, scale units per pixel.
func WriteSVG(w io.Writer, c *Canvas, scale float64, fill string) error {
	width := float64(c.Width) * scale * 2
	height := float64(c.Height) * scale * 4

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="%s">
`, width, height, width, height, fill)

	r := scale * 0.4
	for y := 0; y < c.Height*4; y++ {
		for x := 0; x < c.Width*2; x++ {
			if !c.IsSet(x, y) {
				continue
			}
			fmt.Fprintf(bw, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
				float64(x)*scale+scale/2, float64(y)*scale+scale/2, r)
		}
	}

	bw.WriteString("</g>\n</svg>\n")
	return bw.Flush()
}
