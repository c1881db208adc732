package colors

import (
	"fmt"
	"math/rand"
	"regexp"

	"github.com/harrisonrobin/tickmirror/pkg/model"
)

// Random is the color argument that asks for a generated color.
const Random = "random"

var hexPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

// Lowest and highest generated colors (#111111 .. #FFFFFF).
const (
	minColor = 0x111111
	maxColor = 0xFFFFFF
)

// Valid reports whether s is a #RGB or #RRGGBB hex color.
func Valid(s string) bool {
	return hexPattern.MatchString(s)
}

// Generate returns a random #RRGGBB color.
func Generate() string {
	return fmt.Sprintf("#%06X", minColor+rand.Intn(maxColor-minColor+1))
}

// Resolve turns a color argument into a hex value. An empty argument stays empty.
func Resolve(color string) (string, error) {
	switch {
	case color == "":
		return "", nil
	case color == Random:
		return Generate(), nil
	case Valid(color):
		return color, nil
	}
	return "", fmt.Errorf("color %q is not a hex color: %w", color, model.ErrInvalidArgument)
}
