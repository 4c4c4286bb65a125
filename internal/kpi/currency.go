package kpi

import (
	"fmt"
	"math"
	"strconv"
)

const (
	wanUnit = 1e4 // 萬
	yiUnit  = 1e8 // 億
)

// LossSplit is a loss figure split into 億 and 萬 components.
type LossSplit struct {
	Yi  int64
	Wan int64
}

// SplitLoss converts a figure in ten-thousand units to whole currency and
// splits it. The 億 part is floored and the 萬 remainder is rounded on its
// own; a remainder that rounds up to 10000 is not carried into 億.
func SplitLoss(wan float64) LossSplit {
	yuan := wan * wanUnit
	return LossSplit{
		Yi:  int64(math.Floor(yuan / yiUnit)),
		Wan: int64(math.Round(math.Mod(yuan, yiUnit) / wanUnit)),
	}
}

func (s LossSplit) String() string {
	return fmt.Sprintf("%d億 %d萬", s.Yi, s.Wan)
}

// FormatLoss renders a ten-thousand unit figure for display.
func FormatLoss(wan float64) string {
	return SplitLoss(wan).String()
}

// FormatCount renders a case count without trailing zeros.
func FormatCount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
