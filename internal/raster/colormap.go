package raster

// ColorStop - опорная точка цветовой шкалы высот
type ColorStop struct {
	Color    [3]uint8
	Altitude float64
}

// AltitudeColormap - пятиточечная шкала высот превью
var AltitudeColormap = []ColorStop{
	{Color: [3]uint8{70, 150, 200}, Altitude: 0.0},
	{Color: [3]uint8{240, 240, 210}, Altitude: 0.5},
	{Color: [3]uint8{190, 200, 120}, Altitude: 1.0},
	{Color: [3]uint8{25, 100, 25}, Altitude: 18.0},
	{Color: [3]uint8{15, 60, 15}, Altitude: 30.0},
}

// ColorAt линейно интерполирует цвет между соседними опорными точками;
// вне диапазона возвращается крайний цвет.
func ColorAt(stops []ColorStop, altitude float64) [3]uint8 {
	idx := 0
	for idx < len(stops) && altitude >= stops[idx].Altitude {
		idx++
	}

	if idx == 0 {
		return stops[0].Color
	}
	if idx == len(stops) {
		return stops[len(stops)-1].Color
	}

	a, b := stops[idx-1], stops[idx]
	prop := (altitude - a.Altitude) / (b.Altitude - a.Altitude)

	var out [3]uint8
	for c := 0; c < 3; c++ {
		ca, cb := float64(a.Color[c]), float64(b.Color[c])
		out[c] = uint8(ca + (cb-ca)*prop)
	}
	return out
}

// ColorizeHeights раскрашивает растр высот в RGBA по шкале; maxAltitude -
// высота, соответствующая значению FixedPointScale.
func ColorizeHeights(hm *HeightMap, maxAltitude float64) ([]uint8, error) {
	if err := hm.Validate(); err != nil {
		return nil, err
	}

	out := make([]uint8, len(hm.Pix)*4)
	err := parallelRows(hm.Height, func(y0, y1 int) error {
		for i := y0 * hm.Width; i < y1*hm.Width; i++ {
			c := ColorAt(AltitudeColormap, hm.Normalized(i)*maxAltitude)
			out[4*i] = c[0]
			out[4*i+1] = c[1]
			out[4*i+2] = c[2]
			out[4*i+3] = 255
		}
		return nil
	})
	return out, err
}
