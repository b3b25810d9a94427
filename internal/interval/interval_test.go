package interval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmetic(t *testing.T) {
	x, y := New(-1, 2), New(2, 3)

	tests := []struct {
		name string
		got  Interval
		want Interval
	}{
		{"add", Add(x, y), New(1, 5)},
		{"sub", Sub(x, y), New(-4, 0)},
		{"mul", Mul(x, y), New(-3, 6)},
		{"mul point", Mul(x, Point(3)), New(-3, 6)},
		{"union", Union(x, y), New(-1, 3)},
		{"pow even", Pow(x, Point(2)), New(0, 4)},
		{"pow odd", Pow(x, Point(3)), New(-1, 8)},
		{"pow even negative base", Pow(New(-3, -1), Point(2)), New(1, 9)},
		{"pow even wide negative side", Pow(New(-3, 2), Point(2)), New(0, 9)},
		{"pow zero", Pow(x, Point(0)), Point(1)},
		{"pow fractional", Pow(New(4, 9), Point(0.5)), New(2, 3)},
		{"pow fractional negative base", Pow(x, Point(0.5)), Top()},
		{"min", Min(x, y), New(-1, 2)},
		{"max", Max(x, y), New(2, 3)},
		{"abs straddling", Abs(New(-3, 2)), New(0, 3)},
		{"abs negative", Abs(New(-3, -2)), New(2, 3)},
		{"neg", Neg(x), New(-2, 1)},
		{"sqrt clamps", Sqrt(New(-4, 9)), New(0, 3)},
		{"log of zero", Log(New(0, 1)), Interval{Low: math.Inf(-1), High: 0}},
		{"exp", Exp(Point(0)), Point(1)},
		{"mod positive divisor", Mod(New(-5, 5), New(2, 3)), New(0, 3)},
		{"mod small dividend", Mod(New(0, 1), New(2, 3)), New(0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestDiv(t *testing.T) {
	x := New(-1, 2)

	got, err := Div(x, New(2, 3))
	require.NoError(t, err)
	assert.Equal(t, New(-0.5, 1), got)

	got, err = Div(Point(1), New(0, 2))
	require.NoError(t, err)
	assert.Equal(t, Interval{Low: 0.5, High: math.Inf(1)}, got)

	got, err = Div(Point(1), New(-2, 0))
	require.NoError(t, err)
	assert.Equal(t, Interval{Low: math.Inf(-1), High: -0.5}, got)

	got, err = Div(Point(1), New(-1, 1))
	require.NoError(t, err)
	assert.True(t, got.IsTop())

	_, err = Div(x, Point(0))
	assert.ErrorIs(t, err, ErrZeroDivision)
}

func TestMulIgnoresNaNCorners(t *testing.T) {
	got := Mul(Point(0), Interval{Low: 1, High: math.Inf(1)})
	assert.Equal(t, Point(0), got)
}

func TestUnionLaws(t *testing.T) {
	pairs := [][2]Interval{
		{New(-1, 2), New(2, 3)},
		{New(5, 6), New(-10, -9)},
		{Top(), Point(0)},
	}
	for _, p := range pairs {
		u := Union(p[0], p[1])
		assert.Equal(t, u, Union(p[1], p[0]))
		assert.True(t, p[0].IsSubset(u))
		assert.True(t, p[1].IsSubset(u))
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "[-1, 2.5]", New(-1, 2.5).String())
	assert.Equal(t, "[-inf, inf]", Top().String())
	assert.True(t, New(0, 1).Contains(1))
	assert.False(t, New(0, 1).Contains(1.5))
}

func TestValuation(t *testing.T) {
	a := Valuation{"x": New(0, 1), "y": Point(2)}
	b := Valuation{"x": New(2, 3), "z": Point(0)}

	joined := Join(a, b)
	assert.Equal(t, Valuation{"x": New(0, 3)}, joined)
	assert.True(t, Join(nil, a).Equal(a))

	c := a.Clone()
	c.Set("y", Top())
	assert.False(t, c.Equal(a))
	got, ok := c.Get("y")
	assert.True(t, ok)
	assert.True(t, got.IsTop())

	_, ok = a.Get("w")
	assert.False(t, ok)
}
