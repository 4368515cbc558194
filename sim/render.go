package sim

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"hexcell/display"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// RenderLED renders one LED as a colored dot
func RenderLED(c display.Led) string {
	if c.IsOff() {
		return mutedStyle.Render("·")
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c.String())).Render("●")
}

// RenderCell draws the nine LEDs of a cell as a 3x3 block under a
// header with its position and network state
func RenderCell(s CellState) string {
	var rows []string
	for r := 0; r < 3; r++ {
		var line strings.Builder
		for col := 0; col < 3; col++ {
			if col > 0 {
				line.WriteString(" ")
			}
			line.WriteString(RenderLED(parseLED(s.LEDs[r*3+col])))
		}
		rows = append(rows, line.String())
	}
	header := titleStyle.Render(fmt.Sprintf("%08x", s.UID))
	info := mutedStyle.Render(fmt.Sprintf("%v %s (%d,%d)", s.Coord, s.State, s.NetX, s.NetY))
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, info, strings.Join(rows, "\n")))
}

// RenderMesh lays the cells of a snapshot out side by side, wrapping
// every perRow cells
func RenderMesh(states []CellState, perRow int) string {
	if perRow < 1 {
		perRow = 1
	}
	var lines []string
	for i := 0; i < len(states); i += perRow {
		end := i + perRow
		if end > len(states) {
			end = len(states)
		}
		blocks := make([]string, 0, end-i)
		for _, s := range states[i:end] {
			blocks = append(blocks, RenderCell(s))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, blocks...))
	}
	return strings.Join(lines, "\n")
}

func parseLED(s string) display.Led {
	var v uint32
	if _, err := fmt.Sscanf(s, "#%06x", &v); err != nil {
		return display.Off
	}
	return display.Hex(v)
}
