package model

import "sort"

const (
	SeatAvailable = "AVAILABLE"
	SeatOccupied  = "OCCUPIED"
	SeatBlocked   = "BLOCKED"

	SeatTypeStandard   = "STANDARD"
	SeatTypeAccessible = "ACCESSIBLE"
)

type RawSeat struct {
	SeatID string `json:"SeatID"`
	Row    int    `json:"Row"`
	Column int    `json:"Column"`
	Status string `json:"Status"`
	Type   string `json:"Type,omitempty"`
}

type RawSeatMap struct {
	ShowingID ID        `json:"ShowingID"`
	Rows      int       `json:"Rows"`
	Columns   int       `json:"Columns"`
	Seats     []RawSeat `json:"Seats"`
}

type SeatMap struct {
	ShowingID ID         `json:"showingId"`
	Bounds    SeatBounds `json:"bounds"`
	Lines     []SeatLine `json:"lines"`
}

type SeatBounds struct {
	Lines   int `json:"lines"`
	Columns int `json:"columns"`
}

type SeatLine struct {
	Line  int    `json:"line"`
	Seats []Seat `json:"seats"`
}

type Seat struct {
	Label  string `json:"label"`
	Status string `json:"status"`
	Type   string `json:"type"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (s Seat) Available() bool {
	return s.Status == SeatAvailable
}

// FormatSeatMap groups the flat seat list into lines ordered by row and column.
func FormatSeatMap(raw RawSeatMap) SeatMap {
	byLine := map[int][]Seat{}
	maxLine, maxCol := raw.Rows, raw.Columns
	for _, s := range raw.Seats {
		seat := Seat{
			Label:  s.SeatID,
			Status: s.Status,
			Type:   s.Type,
			Line:   s.Row,
			Column: s.Column,
		}
		if seat.Type == "" {
			seat.Type = SeatTypeStandard
		}
		byLine[s.Row] = append(byLine[s.Row], seat)
		if s.Row > maxLine {
			maxLine = s.Row
		}
		if s.Column > maxCol {
			maxCol = s.Column
		}
	}

	lines := make([]int, 0, len(byLine))
	for line := range byLine {
		lines = append(lines, line)
	}
	sort.Ints(lines)

	out := SeatMap{
		ShowingID: raw.ShowingID,
		Bounds:    SeatBounds{Lines: maxLine, Columns: maxCol},
	}
	for _, line := range lines {
		seats := byLine[line]
		sort.Slice(seats, func(i, j int) bool { return seats[i].Column < seats[j].Column })
		out.Lines = append(out.Lines, SeatLine{Line: line, Seats: seats})
	}
	return out
}

// Seat looks up a seat by its label.
func (m SeatMap) Seat(label string) (Seat, bool) {
	for _, line := range m.Lines {
		for _, seat := range line.Seats {
			if seat.Label == label {
				return seat, true
			}
		}
	}
	return Seat{}, false
}

func (m SeatMap) AvailableCount() int {
	count := 0
	for _, line := range m.Lines {
		for _, seat := range line.Seats {
			if seat.Available() {
				count++
			}
		}
	}
	return count
}
