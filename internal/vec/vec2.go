package vec

// Vec2 представляет целочисленные координаты ячейки растра
type Vec2 struct {
	X, Y int
}

// Index возвращает индекс ячейки в построчном (row-major) буфере ширины width
func (v Vec2) Index(width int) int {
	return v.Y*width + v.X
}

// InBounds проверяет, что ячейка лежит внутри растра width×height
func (v Vec2) InBounds(width, height int) bool {
	return v.X >= 0 && v.Y >= 0 && v.X < width && v.Y < height
}
