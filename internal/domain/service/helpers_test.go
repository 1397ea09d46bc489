package service

import "math"

// almostEqual 浮点近似比较
func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-12
}
