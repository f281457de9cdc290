package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RatioTolerance is the maximum |width/height - target| treated as a match.
const RatioTolerance = 1e-3

// Ratio is an output aspect ratio in the "W:H" form accepted by the remote service.
type Ratio struct {
	Width  int
	Height int
}

// AllowedRatios lists every output ratio the remote service accepts.
var AllowedRatios = []Ratio{
	{1280, 720},
	{720, 1280},
	{1104, 832},
	{832, 1104},
	{960, 960},
	{1584, 672},
}

// ParseRatio parses "W:H" and rejects values outside AllowedRatios.
func ParseRatio(s string) (Ratio, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Ratio{}, &ValidationError{Field: "ratio", Reason: fmt.Sprintf("%q is not in W:H form", s)}
	}
	width, errW := strconv.Atoi(strings.TrimSpace(w))
	height, errH := strconv.Atoi(strings.TrimSpace(h))
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return Ratio{}, &ValidationError{Field: "ratio", Reason: fmt.Sprintf("%q must use positive integers", s)}
	}
	r := Ratio{Width: width, Height: height}
	if !r.Allowed() {
		return Ratio{}, &ValidationError{Field: "ratio", Reason: fmt.Sprintf("%s is not one of %s", r, allowedRatioList())}
	}
	return r, nil
}

func (r Ratio) String() string {
	return fmt.Sprintf("%d:%d", r.Width, r.Height)
}

// Float returns width divided by height.
func (r Ratio) Float() float64 {
	if r.Height == 0 {
		return 0
	}
	return float64(r.Width) / float64(r.Height)
}

// Allowed reports whether r is exactly one of AllowedRatios.
func (r Ratio) Allowed() bool {
	for _, a := range AllowedRatios {
		if a == r {
			return true
		}
	}
	return false
}

// MatchesRatio reports whether a width x height frame is within RatioTolerance of target.
func MatchesRatio(width, height int, target float64) bool {
	if height <= 0 {
		return false
	}
	return math.Abs(float64(width)/float64(height)-target) <= RatioTolerance
}

func allowedRatioList() string {
	parts := make([]string, 0, len(AllowedRatios))
	for _, r := range AllowedRatios {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ", ")
}
