package types

// Sector is a fixed category of service with its own queue and
// attendant pool. Sector codes double as the menu selectors contacts
// type to choose them.
type Sector string

const (
	SectorAdministrative Sector = "1"
	SectorSales          Sector = "2"
	SectorSupport        Sector = "3"
	SectorOther          Sector = "4"
)

// SectorNames maps each sector to its display name
var SectorNames = map[Sector]string{
	SectorAdministrative: "Administrative",
	SectorSales:          "Sales",
	SectorSupport:        "Technical Support",
	SectorOther:          "Other Topics",
}

// AllSectors lists every sector in menu order
var AllSectors = []Sector{
	SectorAdministrative,
	SectorSales,
	SectorSupport,
	SectorOther,
}

// ValidSector resolves a menu selector to its sector, reporting
// whether the code names a configured one
func ValidSector(code string) (Sector, bool) {
	s := Sector(code)
	_, ok := SectorNames[s]
	return s, ok
}

// KnownSector reports whether the sector is part of the configured set
func KnownSector(s Sector) bool {
	_, ok := SectorNames[s]
	return ok
}

// Name returns the sector's display name, or the raw code if unknown
func (s Sector) Name() string {
	if name, ok := SectorNames[s]; ok {
		return name
	}
	return string(s)
}
