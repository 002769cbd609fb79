package vec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec2_IndexAndBounds(t *testing.T) {
	v := Vec2{X: 3, Y: 2}
	assert.Equal(t, 2*8+3, v.Index(8))
	assert.True(t, v.InBounds(8, 3))
	assert.False(t, v.InBounds(3, 8), "X == width лежит вне растра")
	assert.False(t, Vec2{X: -1, Y: 0}.InBounds(8, 8))
	assert.False(t, Vec2{X: 0, Y: 8}.InBounds(8, 8))
}

func TestVec2Float_ToVec2Floors(t *testing.T) {
	assert.Equal(t, Vec2{X: 1, Y: 2}, Vec2Float{X: 1.9, Y: 2.1}.ToVec2())
	assert.Equal(t, Vec2{X: -1, Y: -2}, Vec2Float{X: -0.5, Y: -1.5}.ToVec2(), "округление вниз, а не к нулю")
}

func TestVec2Float_Arithmetic(t *testing.T) {
	a := Vec2Float{X: 3, Y: 4}
	b := Vec2Float{X: 1, Y: -2}

	assert.Equal(t, Vec2Float{X: 4, Y: 2}, a.Add(b))
	assert.Equal(t, Vec2Float{X: 2, Y: 6}, a.Sub(b))
	assert.Equal(t, Vec2Float{X: 6, Y: 8}, a.Mul(2))
	assert.Equal(t, -5.0, a.Dot(b))
	assert.Equal(t, -10.0, a.Cross(b))
	assert.Equal(t, 5.0, a.Length())
	assert.Equal(t, 5.0, Vec2Float{}.DistanceTo(a))
}

func TestVec2Float_Normalized(t *testing.T) {
	n := Vec2Float{X: 3, Y: 4}.Normalized()
	assert.InDelta(t, 1.0, n.Length(), 1e-12)
	assert.Equal(t, Vec2Float{}, Vec2Float{}.Normalized(), "нулевой вектор остается нулевым")
}

func TestVec2Float_IsFinite(t *testing.T) {
	assert.True(t, Vec2Float{X: 1, Y: 2}.IsFinite())
	assert.False(t, Vec2Float{X: math.NaN(), Y: 0}.IsFinite())
	assert.False(t, Vec2Float{X: 0, Y: math.Inf(-1)}.IsFinite())
}
