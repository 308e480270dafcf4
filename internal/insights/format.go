package insights

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DayLayout renders a day as "dd MMM yyyy" (e.g. "07 Mar 2024").
const DayLayout = "02 Jan 2006"

// DayFormatter turns a timestamp into a day-granularity bucket key.
type DayFormatter interface {
	FormatDay(t time.Time) string
}

// LayoutFormatter formats days with a fixed layout in a fixed location,
// so the same instant always lands in the same bucket.
type LayoutFormatter struct {
	Layout   string
	Location *time.Location
}

// NewDayFormatter returns a DayLayout formatter for loc (UTC when nil).
func NewDayFormatter(loc *time.Location) LayoutFormatter {
	if loc == nil {
		loc = time.UTC
	}
	return LayoutFormatter{Layout: DayLayout, Location: loc}
}

// FormatDay implements DayFormatter.
func (f LayoutFormatter) FormatDay(t time.Time) string {
	layout := f.Layout
	if layout == "" {
		layout = DayLayout
	}
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(layout)
}

// key identifies the formatter for memoization.
func (f LayoutFormatter) key() string {
	loc := "UTC"
	if f.Location != nil {
		loc = f.Location.String()
	}
	layout := f.Layout
	if layout == "" {
		layout = DayLayout
	}
	return layout + "@" + loc
}

// CurrencyFormatter renders amounts for display. Only the view uses it.
type CurrencyFormatter interface {
	FormatCurrency(amount decimal.Decimal) string
}

// TextCurrencyFormatter formats amounts with golang.org/x/text, using the
// currency of the language's region.
type TextCurrencyFormatter struct {
	printer *message.Printer
	unit    currency.Unit
}

// NewCurrencyFormatter builds a formatter for a BCP 47 language tag such as
// "pt-BR" or "en-US". Unknown tags fall back to English and USD.
func NewCurrencyFormatter(lang string) *TextCurrencyFormatter {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.AmericanEnglish
	}
	unit, conf := currency.FromTag(tag)
	if conf == language.No {
		unit = currency.USD
	}
	return &TextCurrencyFormatter{
		printer: message.NewPrinter(tag),
		unit:    unit,
	}
}

// FormatCurrency implements CurrencyFormatter.
func (f *TextCurrencyFormatter) FormatCurrency(amount decimal.Decimal) string {
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(amount.InexactFloat64())))
}
