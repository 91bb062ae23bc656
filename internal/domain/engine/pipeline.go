package engine

// EntryPoint names a hook at which a set of rules is evaluated.
type EntryPoint string

const (
	CartCalculateVAT EntryPoint = "cart_calculate_vat"
	ItemCalculateVAT EntryPoint = "item_calculate_vat"
)

var knownEntryPoints = map[EntryPoint]bool{
	CartCalculateVAT: true,
	ItemCalculateVAT: true,
}

func IsKnownEntryPoint(ep string) bool { return knownEntryPoints[EntryPoint(ep)] }
