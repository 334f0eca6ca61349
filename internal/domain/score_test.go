package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ludo-server/internal/domain"
)

func TestCalculatePlayerScore_SumsOnlyOwnColor(t *testing.T) {
	pawns := []domain.Pawn{
		{Color: domain.Red, Score: 3},
		{Color: domain.Red, Score: 8},
		{Color: domain.Blue, Score: 5},
	}

	assert.Equal(t, 11, domain.CalculatePlayerScore(pawns, domain.Red))
	assert.Equal(t, 5, domain.CalculatePlayerScore(pawns, domain.Blue))
	assert.Equal(t, 0, domain.CalculatePlayerScore(pawns, domain.Green))
}

func TestCalculateAllPlayerScores_OnlyJoinedPlayers(t *testing.T) {
	pawns := []domain.Pawn{
		{Color: domain.Red, Score: 2},
		{Color: domain.Blue, Score: 4},
		{Color: domain.Green, Score: 9},
	}
	players := []domain.Player{
		{ID: "a", Color: domain.Red},
		{ID: "b", Color: domain.Blue},
	}

	scores := domain.CalculateAllPlayerScores(pawns, players)

	assert.Equal(t, map[domain.Color]int{
		domain.Red:  2,
		domain.Blue: 4,
	}, scores, "未加入的颜色不应出现在结果里")
}
