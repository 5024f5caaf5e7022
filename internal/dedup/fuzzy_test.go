package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessText(t *testing.T) {
	assert.Equal(t, "clark s  1 000th", processText("  Clark's #1,000th!"))
}

func TestTokenSortRatio(t *testing.T) {
	assert.Equal(t, 100.0, TokenSortRatio("record assist rookie", "Rookie assist record"))
	assert.Equal(t, 0.0, TokenSortRatio("", "anything"))
	assert.Less(t, TokenSortRatio("first triple-double", "career high in steals"), 60.0)
}

func TestTokenSetRatio(t *testing.T) {
	assert.Equal(t, 100.0, TokenSetRatio("rookie record", "Clark sets rookie record tonight"))
	assert.Equal(t, 0.0, TokenSetRatio("   ", "x"))
	assert.Less(t, TokenSetRatio("alpha beta", "gamma delta"), 50.0)
}
