package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidCategory(t *testing.T) {
	valid := []EventCategory{
		CategoryPageView,
		CategoryUserAction,
		CategorySystem,
		CategoryError,
		CategoryPerf,
		CategoryConversion,
		CategoryEngagement,
		CategoryCustom,
	}
	for _, c := range valid {
		assert.True(t, ValidCategory(c), string(c))
	}

	assert.False(t, ValidCategory(""))
	assert.False(t, ValidCategory("clicks"))
	assert.False(t, ValidCategory("PAGE_VIEW"))
}
