package gsmtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/openbts-go/btscore/internal/gsmtime"
)

func TestFrameNumberArithmeticAcrossHyperframeRollover(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.IntRange(0, gsmtime.Hyperframe-1).Draw(t, "a")
		d := rapid.IntRange(1, gsmtime.Hyperframe/2-1).Draw(t, "d")

		ta := gsmtime.New(a, 0)
		assert.Equal(t, d, ta.Add(d).Sub(ta), "(Time(a)+d)-Time(a) == d")
		assert.Equal(t, -d, ta.Add(-d).Sub(ta), "(Time(a)-d)-Time(a) == -d")
	})
}

func TestRolloverWrapsCorrectly(t *testing.T) {
	near := gsmtime.New(gsmtime.Hyperframe-1, 0)
	next := near.Add(1)
	assert.Equal(t, 0, next.FN)
	assert.Equal(t, 1, next.Sub(near))
}

func TestModFN51(t *testing.T) {
	assert.Equal(t, 0, gsmtime.New(0, 0).ModFN51())
	assert.Equal(t, 50, gsmtime.New(50, 0).ModFN51())
	assert.Equal(t, 0, gsmtime.New(51, 0).ModFN51())
}
