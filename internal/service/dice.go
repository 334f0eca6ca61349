package service

import "math/rand"

// RollDice 返回 [1,6] 上均匀分布的随机点数。
func RollDice() int {
	return rand.Intn(6) + 1
}
