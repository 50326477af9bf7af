package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyntheticLevelsUp(t *testing.T) {
	assert.InDeltaSlice(t, []float64{5.05, 5.06, 5.07, 5.08, 5.09, 5.1}, SyntheticLevels(5.05, true, 6, 0.01), 1e-9)
}

func TestSyntheticLevelsDownStopAtZero(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0.02, 0.01}, SyntheticLevels(0.02, false, 5, 0.01), 1e-9)
}

func TestSyntheticLevelsDefaultTick(t *testing.T) {
	assert.InDeltaSlice(t, []float64{10, 9.99, 9.98}, SyntheticLevels(10, false, 3, 0), 1e-9)
}

func TestSyntheticLevelsEmpty(t *testing.T) {
	assert.Nil(t, SyntheticLevels(0, true, 3, 0.01))
	assert.Nil(t, SyntheticLevels(5, true, 0, 0.01))
}
