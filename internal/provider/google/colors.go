package google

import "strings"

// defaultColorID is used for colors outside the palette.
const defaultColorID = "1"

var colorIDs = map[string]string{
	"#2196f3": "1",
	"#4caf50": "2",
	"#ff9800": "3",
	"#9c27b0": "4",
	"#f44336": "5",
	"#795548": "6",
	"#607d8b": "7",
}

// ColorID maps a #rrggbb color to a Google Calendar color id.
func ColorID(color string) string {
	if id, ok := colorIDs[strings.ToLower(strings.TrimSpace(color))]; ok {
		return id
	}
	return defaultColorID
}
