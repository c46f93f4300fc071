package catalog

import (
	"strings"
	"unicode"
)

// Normalize converts a payload key into the snake_case token used in
// persistent identifiers. Both key conventions the gateway firmware has
// shipped map to the same token:
//
//	PowerDelivered_l1      -> power_delivered_l1
//	power_delivered_l1     -> power_delivered_l1
//	EnergyDeliveredTariff1 -> energy_delivered_tariff_1
//	energy_delivered_tariff1 -> energy_delivered_tariff_1
//
// Tokens end up in stored entity ids. Changing this function renames every
// entity of every deployed meter.
func Normalize(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)

	prev := rune(0)
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 && prev != '_' {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
		prev = r
	}

	return splitTariffIndex(b.String())
}

// splitTariffIndex turns "tariff1" into "tariff_1". Phase suffixes such as
// "_l1" keep their digit attached.
func splitTariffIndex(s string) string {
	const word = "tariff"

	var b strings.Builder
	for {
		i := strings.Index(s, word)
		if i < 0 {
			b.WriteString(s)
			break
		}
		end := i + len(word)
		b.WriteString(s[:end])
		if end < len(s) && s[end] >= '0' && s[end] <= '9' {
			b.WriteByte('_')
		}
		s = s[end:]
	}

	return b.String()
}
