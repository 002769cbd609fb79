//go:build !debug

package erosion

// sanitizeNaN в обычной сборке насыщает NaN до нуля
func sanitizeNaN(float32) float32 {
	return 0
}
