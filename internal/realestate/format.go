package realestate

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// FormatPrice renders a BRL amount with pt-BR grouping, e.g. "R$ 1.850.000".
// Fractional amounts keep up to two decimals.
func FormatPrice(price float64) string {
	if price == math.Trunc(price) {
		return ptBR.Sprintf("R$ %d", int64(price))
	}
	return ptBR.Sprintf("R$ %.2f", price)
}

// FormatPriceShort renders thousands, e.g. "R$ 1850k".
func FormatPriceShort(price int64) string {
	return fmt.Sprintf("R$ %dk", int64(math.Round(float64(price)/1000)))
}

// FormatDetails renders "3 quartos • 3 banheiros • 145m²".
func FormatDetails(p Property) string {
	return fmt.Sprintf("%d quartos • %d banheiros • %dm²", p.Bedrooms, p.Bathrooms, p.Area)
}

func typeMessage(filter string, n int) string {
	if filter == "" || filter == FilterAll {
		return fmt.Sprintf("Found %d properties", n)
	}
	return fmt.Sprintf("Found %d %s(s)", n, filter)
}

func priceMessage(r PriceRange, n int) string {
	switch {
	case r.Min != nil && r.Max != nil:
		return fmt.Sprintf("Found %d properties between %s and %s", n, FormatPrice(*r.Min), FormatPrice(*r.Max))
	case r.Max != nil:
		return fmt.Sprintf("Found %d properties under %s", n, FormatPrice(*r.Max))
	case r.Min != nil:
		return fmt.Sprintf("Found %d properties over %s", n, FormatPrice(*r.Min))
	default:
		return fmt.Sprintf("Found %d properties", n)
	}
}
