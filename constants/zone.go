package constants

// ZoneType classifies a spatial region of the invoice image.
type ZoneType string

// Stable values (the layout capability is prompted to return exactly these).
const (
	ZoneHeader       ZoneType = "header"
	ZoneFooter       ZoneType = "footer"
	ZonePrimaryTable ZoneType = "primary_table"
)

// KnownZoneType reports whether t is one of the zone types the surveyor
// is allowed to propose.
func KnownZoneType(t string) bool {
	switch ZoneType(t) {
	case ZoneHeader, ZoneFooter, ZonePrimaryTable:
		return true
	}
	return false
}
