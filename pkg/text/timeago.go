package text

import (
	"fmt"
	"time"
)

// TimeAgo renders the distance between t and now as a pt-BR relative phrase,
// e.g. "há 2 horas". Timestamps in the future render as "agora".
func TimeAgo(t, now time.Time) string {
	seconds := int64(now.Sub(t) / time.Second)
	if seconds < 60 {
		return "agora"
	}
	minutes := seconds / 60
	if minutes < 60 {
		return ago(minutes, "minuto", "minutos")
	}
	hours := minutes / 60
	if hours < 24 {
		return ago(hours, "hora", "horas")
	}
	days := hours / 24
	if days < 7 {
		return ago(days, "dia", "dias")
	}
	weeks := days / 7
	if weeks < 4 {
		return ago(weeks, "semana", "semanas")
	}
	months := days / 30
	if months < 1 {
		months = 1
	}
	if months < 12 {
		return ago(months, "mês", "meses")
	}
	return ago(months/12, "ano", "anos")
}

func ago(n int64, singular, plural string) string {
	unit := plural
	if n == 1 {
		unit = singular
	}
	return fmt.Sprintf("há %d %s", n, unit)
}
