package stickers

// Picker is the presentational sticker grid. It holds no selection state:
// a click is turned straight into a call of the caller's callback.
type Picker struct {
	Stickers []Sticker
}

// Grid lays the stickers out in rows of cols cells; the last row may be short.
func (p Picker) Grid(cols int) [][]Sticker {
	if cols <= 0 {
		cols = 1
	}
	rows := make([][]Sticker, 0, (len(p.Stickers)+cols-1)/cols)
	for i := 0; i < len(p.Stickers); i += cols {
		end := min(i+cols, len(p.Stickers))
		rows = append(rows, p.Stickers[i:end])
	}
	return rows
}

// Select invokes onSelect with the URL of the sticker with the given ID.
// It reports false, without calling onSelect, for unknown IDs.
func (p Picker) Select(id string, onSelect func(url string)) bool {
	for _, s := range p.Stickers {
		if s.ID == id {
			onSelect(s.URL)
			return true
		}
	}
	return false
}
