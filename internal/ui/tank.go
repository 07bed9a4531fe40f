package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"calmaquarium/internal/fish"
	"calmaquarium/internal/water"
)

const (
	minTankWidth  = 12
	minTankHeight = 4
)

// fishGlyph returns the fish emoji for its current movement pattern
func fishGlyph(s fish.State) string {
	switch {
	case s.IsDead:
		return "💀"
	case s.IsDying:
		return "🐡"
	case s.IsDistressed:
		return "🐠"
	default:
		return "🐟"
	}
}

// waterTexture is the fill character for a water level
func waterTexture(level water.Level) string {
	switch level {
	case water.LevelModerate:
		return "·"
	case water.LevelDirty:
		return "░"
	case water.LevelVeryDirty:
		return "▒"
	default:
		return " "
	}
}

var levelColors = map[water.Level]lipgloss.Color{
	water.LevelClean:     lipgloss.Color("#5FD7FF"),
	water.LevelModerate:  lipgloss.Color("#87AF87"),
	water.LevelDirty:     lipgloss.Color("#AF8700"),
	water.LevelVeryDirty: lipgloss.Color("#875F00"),
}

// fishCell maps the normalized fish position onto the grid. The glyph takes
// two columns so the last column is never a valid start.
func fishCell(pos fish.Position, width, height int) (col, row int) {
	col = int(pos.X * float64(width-2))
	row = int(pos.Y * float64(height-1))
	return clampInt(col, 0, width-2), clampInt(row, 0, height-1)
}

// tankGrid builds the tank contents one cell per column. The cell after the
// fish is left empty because the emoji already covers it.
func tankGrid(s fish.State, level water.Level, width, height int) [][]string {
	width = max(width, minTankWidth)
	height = max(height, minTankHeight)

	texture := waterTexture(level)
	grid := make([][]string, height)
	for y := range grid {
		grid[y] = make([]string, width)
		for x := range grid[y] {
			grid[y][x] = texture
		}
	}

	col, row := fishCell(s.Position, width, height)
	if s.IsDead {
		// Belly up at the surface
		row = 0
	}
	grid[row][col] = fishGlyph(s)
	grid[row][col+1] = ""

	// A healthy fish leaves a bubble trail above it
	if s.MovementPattern == fish.PatternNormal && row > 0 {
		grid[row-1][col] = "°"
	}
	return grid
}

// RenderTank draws the tank bordered in the color of its water level
func RenderTank(s fish.State, level water.Level, width, height int) string {
	grid := tankGrid(s, level, width, height)

	var b strings.Builder
	for y, cells := range grid {
		if y > 0 {
			b.WriteRune('\n')
		}
		b.WriteString(strings.Join(cells, ""))
	}

	color, ok := levelColors[level]
	if !ok {
		color = levelColors[water.LevelClean]
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Render(b.String())
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
