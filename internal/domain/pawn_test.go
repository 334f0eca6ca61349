package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ludo-server/internal/domain"
)

func basePawn(color domain.Color, basePos int) domain.Pawn {
	return domain.Pawn{ID: "p", Color: color, BasePos: basePos, Position: basePos}
}

// --- 基地出动规则 ---

func TestPawn_LeaveBaseOnlyOnOneOrSix(t *testing.T) {
	// Arrange
	pawn := basePawn(domain.Red, 0)

	// Act & Assert: 2..5 不能出基地
	for _, rolled := range []int{2, 3, 4, 5} {
		assert.Equal(t, 0, pawn.GetPositionAfterMove(rolled), "掷 %d 不应离开基地", rolled)
		assert.False(t, pawn.CanMove(rolled))
	}

	// 1 和 6 都进入本颜色的入口格 16
	assert.Equal(t, 16, pawn.GetPositionAfterMove(1))
	assert.Equal(t, 16, pawn.GetPositionAfterMove(6))
	assert.True(t, pawn.CanMove(1))
	assert.True(t, pawn.CanMove(6))
}

func TestPawn_EntrySquaresPerColor(t *testing.T) {
	cases := []struct {
		color   domain.Color
		basePos int
		entry   int
	}{
		{domain.Red, 0, 16},
		{domain.Blue, 4, 29},
		{domain.Green, 8, 42},
		{domain.Yellow, 12, 55},
	}
	for _, tc := range cases {
		pawn := basePawn(tc.color, tc.basePos)
		assert.Equal(t, tc.entry, pawn.GetPositionAfterMove(6), "color %s", tc.color)
	}
}

// --- 主赛道与终点直道 ---

func TestPawn_TrackMovementWrapsAroundSharedRing(t *testing.T) {
	// Arrange: 黄色入口在 55，主赛道尾部在 67，之后回绕到 16
	pawn := basePawn(domain.Yellow, 12)
	pawn.Position = 66

	// Act & Assert
	assert.Equal(t, 67, pawn.GetPositionAfterMove(1))
	assert.Equal(t, 16, pawn.GetPositionAfterMove(2), "过 67 后应回绕到 16")
	assert.Equal(t, 19, pawn.GetPositionAfterMove(5))
}

func TestPawn_EntersOwnHomeStretchAfterFullLap(t *testing.T) {
	// Arrange: 红色入口 16，跑满 52 步后进入 68 起始的终点直道
	pawn := basePawn(domain.Red, 0)
	pawn.Position = 67 // 从入口已走 51 步

	// Act & Assert
	assert.Equal(t, 68, pawn.GetPositionAfterMove(1), "第 52 步进入终点直道")
	assert.Equal(t, 72, pawn.GetPositionAfterMove(5))
	assert.Equal(t, 73, pawn.GetPositionAfterMove(6), "恰好到达终点格")
}

func TestPawn_OvershootIsIllegal(t *testing.T) {
	// Arrange: 红色棋子在终点直道 71，到终点 73 还差 2 步
	pawn := basePawn(domain.Red, 0)
	pawn.Position = 71

	// Act & Assert: 恰好或更少可以走，超过不回绕、不截断
	assert.Equal(t, 72, pawn.GetPositionAfterMove(1))
	assert.Equal(t, 73, pawn.GetPositionAfterMove(2))
	for _, rolled := range []int{3, 4, 5, 6} {
		assert.Equal(t, 71, pawn.GetPositionAfterMove(rolled), "掷 %d 会越过终点，应原地不动", rolled)
		assert.False(t, pawn.CanMove(rolled))
	}
}

func TestPawn_AtFinalCannotMove(t *testing.T) {
	pawn := basePawn(domain.Blue, 4)
	pawn.Position = domain.FinalSquare[domain.Blue]

	require.True(t, pawn.AtFinal())
	for rolled := 1; rolled <= 6; rolled++ {
		assert.False(t, pawn.CanMove(rolled), "终点格的棋子不应再移动")
	}
}

func TestPawn_FinalSquareTable(t *testing.T) {
	assert.Equal(t, 73, domain.FinalSquare[domain.Red])
	assert.Equal(t, 79, domain.FinalSquare[domain.Blue])
	assert.Equal(t, 85, domain.FinalSquare[domain.Green])
	assert.Equal(t, 91, domain.FinalSquare[domain.Yellow])
}

// --- 颜色枚举 ---

func TestParseColor(t *testing.T) {
	c, err := domain.ParseColor("green")
	require.NoError(t, err)
	assert.Equal(t, domain.Green, c)

	_, err = domain.ParseColor("purple")
	assert.Error(t, err, "未知颜色应被拒绝")
}
