package mailer

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Peso formats an amount as "PHP 1,234.00".
func Peso(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "PHP " + b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
