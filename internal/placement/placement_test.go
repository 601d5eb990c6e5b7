package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate_TrayTopRight(t *testing.T) {
	// 1200x800，托盘在右上：x=1100 > 600 → x = 1200-400-50 = 750；y=10 < 400 → y = 50
	got := Calculate(Rect{Width: 1200, Height: 800}, Point{X: 1100, Y: 10}, DefaultOptions())
	assert.Equal(t, Bounds{Width: 400, Height: 666, X: 750, Y: 50}, got)
}

func TestCalculate_Quadrants(t *testing.T) {
	area := Rect{Width: 1200, Height: 800}
	opts := DefaultOptions()

	tests := []struct {
		name string
		tray Point
		want Bounds
	}{
		{"左上", Point{X: 10, Y: 10}, Bounds{X: 50, Y: 50, Width: 400, Height: 666}},
		{"右下", Point{X: 1150, Y: 790}, Bounds{X: 750, Y: 84, Width: 400, Height: 666}},
		{"左下", Point{X: 20, Y: 700}, Bounds{X: 50, Y: 84, Width: 400, Height: 666}},
		// 恰好在中线上不算“超过一半”
		{"中线", Point{X: 600, Y: 400}, Bounds{X: 50, Y: 50, Width: 400, Height: 666}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Calculate(area, tt.tray, opts))
		})
	}
}

func TestCalculate_FloorsOddSizes(t *testing.T) {
	// 1366/3 = 455.33 → 455；768/1.2 = 640
	got := Calculate(Rect{Width: 1366, Height: 768}, Point{X: 1300, Y: 760}, DefaultOptions())
	assert.Equal(t, 455, got.Width)
	assert.Equal(t, 640, got.Height)
	assert.Equal(t, 1366-455-50, got.X)
	assert.Equal(t, 768-640-50, got.Y)
}

func TestCalculate_WorkAreaOffset(t *testing.T) {
	// macOS 菜单栏占 25px：工作区原点 y=25
	area := Rect{X: 0, Y: 25, Width: 1200, Height: 800}
	got := Calculate(area, Point{X: 1100, Y: 5}, DefaultOptions())
	assert.Equal(t, 750, got.X)
	assert.Equal(t, 75, got.Y)
}

func TestCalculate_InvalidOptionsFallBack(t *testing.T) {
	got := Calculate(Rect{Width: 1200, Height: 800}, Point{X: 0, Y: 0}, Options{Margin: -1})
	assert.Equal(t, Bounds{X: 50, Y: 50, Width: 400, Height: 666}, got)
}
