package flows

import (
	"fmt"
	"time"
)

var spanishDays = [...]string{
	"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado",
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// NextDeliveryDate returns the next delivery day: deliveries run only on
// weekends, so a weekend order is delivered the same day and a weekday
// order on the coming Saturday.
func NextDeliveryDate(now time.Time) time.Time {
	switch wd := now.Weekday(); wd {
	case time.Saturday, time.Sunday:
		return now
	default:
		return now.AddDate(0, 0, int(time.Saturday-wd))
	}
}

// FormatSpanishDate renders a date the way the confirmation messages show
// it, e.g. "sábado, 30 de agosto de 2026".
func FormatSpanishDate(t time.Time) string {
	return fmt.Sprintf("%s, %d de %s de %d",
		spanishDays[int(t.Weekday())], t.Day(), spanishMonths[int(t.Month())-1], t.Year())
}
