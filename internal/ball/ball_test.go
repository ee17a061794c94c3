package ball

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetCircleKeepsPositionCoherent(t *testing.T) {
	var b Ball
	b.SetCircle(Circle{X: 100, Y: 50, Radius: 20})

	assert.Equal(t, 100.0, b.X)
	assert.Equal(t, 50.0, b.Y)
	assert.Equal(t, 20.0, b.MeasuredRadius)
	assert.Equal(t, Circle{X: 100, Y: 50, Radius: 20}, b.Circle)
}

func TestContains(t *testing.T) {
	var b Ball
	b.SetCircle(Circle{X: 100, Y: 50, Radius: 20})

	assert.True(t, b.Contains(100, 50))
	assert.True(t, b.Contains(110, 55))
	assert.True(t, b.Contains(120, 50))
	assert.False(t, b.Contains(121, 50))
	assert.False(t, b.Contains(100, 75))
}

func TestRGBIsZero(t *testing.T) {
	assert.True(t, RGB{}.IsZero())
	assert.False(t, RGB{0, 0, 1}.IsZero())
	assert.False(t, RGB{255, 255, 255}.IsZero())
}
