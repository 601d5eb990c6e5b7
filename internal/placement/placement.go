// Package placement 计算站点弹窗的位置与尺寸
package placement

import "math"

// Rect 表示屏幕上的一块区域（工作区或托盘图标区域）
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Point 托盘图标在屏幕上的坐标
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Bounds 窗口目标位置
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Options 放置参数
type Options struct {
	// Margin 窗口与工作区边缘的距离
	Margin int
	// WidthDivisor 窗口宽度 = 工作区宽度 / WidthDivisor
	WidthDivisor float64
	// HeightDivisor 窗口高度 = 工作区高度 / HeightDivisor
	HeightDivisor float64
}

// DefaultOptions 默认放置参数：宽 1/3，高 1/1.2，边距 50
func DefaultOptions() Options {
	return Options{
		Margin:        50,
		WidthDivisor:  3,
		HeightDivisor: 1.2,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.Margin < 0 {
		o.Margin = def.Margin
	}
	if o.WidthDivisor <= 0 {
		o.WidthDivisor = def.WidthDivisor
	}
	if o.HeightDivisor <= 0 {
		o.HeightDivisor = def.HeightDivisor
	}
	return o
}

// Calculate 根据主显示器工作区与托盘图标位置计算窗口位置。
// 窗口贴近托盘图标所在的象限：托盘在右半屏则靠右，在下半屏则靠下。
// 每次显示窗口都要重新计算（屏幕与托盘位置可能已变化）。
func Calculate(workArea Rect, tray Point, opts Options) Bounds {
	opts = opts.normalized()

	b := Bounds{
		Width:  int(math.Floor(float64(workArea.Width) / opts.WidthDivisor)),
		Height: int(math.Floor(float64(workArea.Height) / opts.HeightDivisor)),
	}

	// 托盘坐标是绝对坐标，换算为相对工作区的坐标后再比较
	relX := tray.X - workArea.X
	relY := tray.Y - workArea.Y

	if float64(relX) > float64(workArea.Width)/2 {
		b.X = workArea.Width - b.Width - opts.Margin
	} else {
		b.X = opts.Margin
	}
	if float64(relY) > float64(workArea.Height)/2 {
		b.Y = workArea.Height - b.Height - opts.Margin
	} else {
		b.Y = opts.Margin
	}

	b.X += workArea.X
	b.Y += workArea.Y
	return b
}
