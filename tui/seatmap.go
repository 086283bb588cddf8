package tui

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"citizen-card-cli/model"
)

type seatPos struct {
	line   int
	column int
}

// seatPicker is the cursor over a showing's seat map plus the seats picked so
// far, in pick order.
type seatPicker struct {
	seatMap     model.SeatMap
	seats       map[seatPos]model.Seat
	cursor      seatPos
	picked      []string
	showNumbers bool
}

func newSeatPicker(seatMap model.SeatMap) seatPicker {
	p := seatPicker{seatMap: seatMap, seats: map[seatPos]model.Seat{}}
	var first, firstFree *seatPos
	for _, line := range seatMap.Lines {
		for _, seat := range line.Seats {
			pos := seatPos{line: seat.Line, column: seat.Column}
			p.seats[pos] = seat
			if first == nil {
				first = &pos
			}
			if firstFree == nil && seat.Available() {
				firstFree = &pos
			}
		}
	}
	switch {
	case firstFree != nil:
		p.cursor = *firstFree
	case first != nil:
		p.cursor = *first
	}
	return p
}

// move walks from the cursor in the given direction to the next position
// holding a seat. The cursor stays put at the edge of the map.
func (p *seatPicker) move(dLine, dCol int) {
	pos := p.cursor
	for {
		pos.line += dLine
		pos.column += dCol
		if pos.line < 1 || pos.column < 1 || pos.line > p.seatMap.Bounds.Lines || pos.column > p.seatMap.Bounds.Columns {
			return
		}
		if _, ok := p.seats[pos]; ok {
			p.cursor = pos
			return
		}
	}
}

func (p seatPicker) current() (model.Seat, bool) {
	seat, ok := p.seats[p.cursor]
	return seat, ok
}

// toggle picks or releases the seat under the cursor. Taken seats cannot be
// picked.
func (p *seatPicker) toggle() bool {
	seat, ok := p.current()
	if !ok || !seat.Available() {
		return false
	}
	if i := slices.Index(p.picked, seat.Label); i >= 0 {
		p.picked = slices.Delete(p.picked, i, i+1)
		return true
	}
	p.picked = append(p.picked, seat.Label)
	return true
}

func (p seatPicker) isPicked(label string) bool {
	return slices.Contains(p.picked, label)
}

func (p seatPicker) selected() []string {
	return slices.Clone(p.picked)
}

func (p seatPicker) render() string {
	if p.seatMap.Bounds.Lines == 0 || p.seatMap.Bounds.Columns == 0 || len(p.seats) == 0 {
		return "No seat map data."
	}
	rows := p.seatMap.Bounds.Lines
	cols := p.seatMap.Bounds.Columns

	rowLabel := make(map[int]string)
	frontRows := frontLineSet(p.seatMap, 2)
	available, occupied, blocked, nonIdealAvailable := 0, 0, 0, 0
	for _, seat := range p.seats {
		if _, ok := rowLabel[seat.Line]; !ok {
			rowLabel[seat.Line] = seatRowLabel(seat)
		}
		switch seat.Status {
		case model.SeatAvailable:
			available++
			if frontRows[seat.Line] {
				nonIdealAvailable++
			}
		case model.SeatOccupied:
			occupied++
		default:
			blocked++
		}
	}

	rowWidth := 1
	for _, label := range rowLabel {
		rowWidth = max(rowWidth, len(label))
	}
	cellWidth := 2
	if p.showNumbers {
		for _, seat := range p.seats {
			cellWidth = max(cellWidth, len(seatNumberLabel(seat)))
		}
	}

	seatStyleAvailable := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	seatStyleOccupied := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	seatStyleBlocked := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	seatStyleAccessible := lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	seatStyleFront := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	seatStylePicked := lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	cursorStyle := lipgloss.NewStyle().Reverse(true)

	gridWidth := cols*(cellWidth+1) - 1
	screenStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("214"))
	screenBorderStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Background(lipgloss.Color("236"))
	screenBar := screenBarBlock(gridWidth, "SCREEN")
	indent := strings.Repeat(" ", rowWidth+1)

	var b strings.Builder
	b.WriteString(indent + screenBorderStyle.Render(screenBar.top) + "\n")
	b.WriteString(indent + screenStyle.Render(screenBar.mid) + "\n")
	b.WriteString(indent + screenBorderStyle.Render(screenBar.bot) + "\n\n")

	for r := 1; r <= rows; r++ {
		label := rowLabel[r]
		if label == "" {
			label = fmt.Sprintf("%d", r)
		}
		b.WriteString(fmt.Sprintf("%*s ", rowWidth, label))
		for c := 1; c <= cols; c++ {
			pos := seatPos{line: r, column: c}
			seat, ok := p.seats[pos]
			if !ok {
				b.WriteString(padCell("", cellWidth))
			} else {
				token := seatToken(seat)
				picked := p.isPicked(seat.Label)
				if picked {
					token = "**"
				}
				text := token
				if p.showNumbers {
					text = seatNumberLabel(seat)
				}
				rendered := padCell(text, cellWidth)
				switch {
				case picked:
					rendered = seatStylePicked.Render(rendered)
				case token == "[]" && frontRows[r]:
					rendered = seatStyleFront.Render(rendered)
				case token == "[]":
					rendered = seatStyleAvailable.Render(rendered)
				case token == "DD":
					rendered = seatStyleAccessible.Render(rendered)
				case token == "XX":
					rendered = seatStyleOccupied.Render(rendered)
				default:
					rendered = seatStyleBlocked.Render(rendered)
				}
				if pos == p.cursor {
					rendered = cursorStyle.Render(rendered)
				}
				b.WriteString(rendered)
			}
			if c < cols {
				b.WriteString(" ")
			}
		}
		b.WriteString(fmt.Sprintf(" %*s\n", rowWidth, label))
	}

	b.WriteString("\n")
	if seat, ok := p.current(); ok {
		b.WriteString(fmt.Sprintf("Seat %s • %s", seat.Label, strings.ToLower(seat.Status)))
		if seat.Type == model.SeatTypeAccessible {
			b.WriteString(" • accessible")
		}
		b.WriteString("\n")
	}
	if len(p.picked) > 0 {
		b.WriteString("Picked: " + strings.Join(p.picked, ", ") + "\n")
	}

	legend := "Legend: [] available • ** picked • XX occupied • DD accessible • ## blocked • front rows (close to the screen)"
	if p.showNumbers {
		legend = "Legend: color shows status • numbers are seat labels • front rows in yellow"
	}
	total := len(p.seats)
	percent := float64(available) / float64(max(1, total)) * 100
	counts := fmt.Sprintf("Available: %d • Ideal: %d • Pairs: %d • Occupied: %d • Blocked: %d • Total: %d • %.0f%% available",
		available, available-nonIdealAvailable, countAdjacentPairs(p.seatMap), occupied, blocked, total, percent)
	return b.String() + "\n" + hint(legend) + "\n" + hint(counts)
}

func seatToken(seat model.Seat) string {
	switch seat.Status {
	case model.SeatAvailable:
		if seat.Type == model.SeatTypeAccessible {
			return "DD"
		}
		return "[]"
	case model.SeatOccupied:
		return "XX"
	default:
		return "##"
	}
}

// seatRowLabel is the letter prefix of a label like "C7".
func seatRowLabel(seat model.Seat) string {
	label := strings.TrimSpace(seat.Label)
	end := strings.IndexFunc(label, func(r rune) bool { return r >= '0' && r <= '9' })
	if end > 0 {
		return label[:end]
	}
	if seat.Line > 0 {
		return fmt.Sprintf("%d", seat.Line)
	}
	return ""
}

func seatNumberLabel(seat model.Seat) string {
	label := strings.TrimSpace(seat.Label)
	if start := strings.IndexFunc(label, func(r rune) bool { return r >= '0' && r <= '9' }); start >= 0 {
		return label[start:]
	}
	if seat.Column > 0 {
		return fmt.Sprintf("%d", seat.Column)
	}
	return label
}

// frontLineSet returns the count lines closest to the screen.
func frontLineSet(seatMap model.SeatMap, count int) map[int]bool {
	var keys []int
	for _, line := range seatMap.Lines {
		if line.Line > 0 && len(line.Seats) > 0 {
			keys = append(keys, line.Line)
		}
	}
	sort.Ints(keys)
	count = min(count, len(keys))
	front := make(map[int]bool, count)
	for _, k := range keys[:count] {
		front[k] = true
	}
	return front
}

func countAdjacentPairs(seatMap model.SeatMap) int {
	cols := map[int][]int{}
	for _, line := range seatMap.Lines {
		for _, seat := range line.Seats {
			if !seat.Available() || seat.Column <= 0 {
				continue
			}
			cols[seat.Line] = append(cols[seat.Line], seat.Column)
		}
	}
	count := 0
	for _, list := range cols {
		sort.Ints(list)
		for i := 0; i < len(list)-1; {
			if list[i]+1 == list[i+1] {
				count++
				i += 2
				continue
			}
			i++
		}
	}
	return count
}

func padCell(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if len(text) >= width {
		return text[:width]
	}
	padding := width - len(text)
	left := padding / 2
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", padding-left)
}

type screenBlock struct {
	top string
	mid string
	bot string
}

func screenBarBlock(width int, label string) screenBlock {
	width = max(width, len(label)+4, 10)
	labelText := " " + label + " "
	padding := width - len(labelText) - 2
	left := padding / 2
	return screenBlock{
		top: "╭" + strings.Repeat("─", width-2) + "╮",
		mid: "│" + strings.Repeat(" ", left) + labelText + strings.Repeat(" ", padding-left) + "│",
		bot: "╰" + strings.Repeat("─", width-2) + "╯",
	}
}
