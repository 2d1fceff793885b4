package graph

import "hash/fnv"

// palette holds the display colors assigned to models. Assignment is a
// pure function of the model name, so unrelated graph sessions always
// agree on a model's color without shared mutable state.
var palette = []string{
	"#4F46E5", "#0891B2", "#059669", "#D97706", "#DC2626",
	"#7C3AED", "#DB2777", "#2563EB", "#65A30D", "#EA580C",
	"#6D28D9", "#0D9488", "#CA8A04", "#E11D48", "#1D4ED8",
}

// ModelColor returns the palette color for a model name
func ModelColor(model string) string {
	return palette[PaletteIndex(model)]
}

// PaletteIndex hashes a model name onto a palette slot
func PaletteIndex(model string) int {
	h := fnv.New32a()
	h.Write([]byte(model))
	return int(h.Sum32() % uint32(len(palette)))
}
