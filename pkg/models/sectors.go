package models

// Sectors is the fixed set of market sectors tracked by the analytics
// engine. The daily breakdown always enumerates all of them.
var Sectors = []string{
	"IT",
	"Banking",
	"Pharma",
	"Auto",
	"FMCG",
	"Energy",
	"Metals",
	"Real Estate",
	"Telecom",
	"Power",
}

var sectorSet = buildSectorSet()

func buildSectorSet() map[string]struct{} {
	set := make(map[string]struct{}, len(Sectors))
	for _, s := range Sectors {
		set[s] = struct{}{}
	}
	return set
}

// KnownSector reports whether the tag belongs to the fixed sector set.
func KnownSector(tag string) bool {
	_, ok := sectorSet[tag]
	return ok
}

// EmptySectorBreakdown returns a breakdown with every sector at 0.0.
func EmptySectorBreakdown() map[string]float64 {
	breakdown := make(map[string]float64, len(Sectors))
	for _, s := range Sectors {
		breakdown[s] = 0.0
	}
	return breakdown
}
