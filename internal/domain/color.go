package domain

import "fmt"

// Color 表示玩家/棋子的颜色，是一个封闭的四色枚举。
// 颜色按加入顺序从 Palette 中分配，不接受枚举之外的值。
type Color string

const (
	Red    Color = "red"
	Blue   Color = "blue"
	Green  Color = "green"
	Yellow Color = "yellow"
)

// Palette 是固定的颜色分配顺序 (加入顺序 -> 颜色)。
var Palette = [4]Color{Red, Blue, Green, Yellow}

// ParseColor 将字符串解析为 Color。
// 未知颜色在边界处直接拒绝，避免动态 map 中混入非法键。
func ParseColor(s string) (Color, error) {
	switch Color(s) {
	case Red, Blue, Green, Yellow:
		return Color(s), nil
	}
	return "", fmt.Errorf("unknown color %q", s)
}
