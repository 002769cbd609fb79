//go:build debug

package erosion

import "fmt"

func sanitizeNaN(h float32) float32 {
	panic(fmt.Sprintf("erosion: NaN в высоте (%v)", h))
}
