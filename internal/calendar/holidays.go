// Package calendar provides Colombian business-day arithmetic and the portal search windows built on it.
package calendar

import (
	"sort"
	"sync"
	"time"
)

// Holiday is a public holiday observed on Date.
type Holiday struct {
	Date time.Time
	Name string
}

// Colombian holidays follow Ley 51 de 1983: a fixed set observed on their date,
// a set moved to the following Monday, and Easter-relative dates.
var (
	fixedHolidays = []struct {
		month time.Month
		day   int
		name  string
	}{
		{time.January, 1, "Año Nuevo"},
		{time.May, 1, "Día del Trabajo"},
		{time.July, 20, "Día de la Independencia"},
		{time.August, 7, "Batalla de Boyacá"},
		{time.December, 8, "Inmaculada Concepción"},
		{time.December, 25, "Navidad"},
	}

	mondayHolidays = []struct {
		month time.Month
		day   int
		name  string
	}{
		{time.January, 6, "Reyes Magos"},
		{time.March, 19, "San José"},
		{time.June, 29, "San Pedro y San Pablo"},
		{time.August, 15, "Asunción de la Virgen"},
		{time.October, 12, "Día de la Raza"},
		{time.November, 1, "Todos los Santos"},
		{time.November, 11, "Independencia de Cartagena"},
	}

	// offsets from Easter Sunday, already moved to Monday where the law requires it
	easterHolidays = []struct {
		offset int
		name   string
	}{
		{-3, "Jueves Santo"},
		{-2, "Viernes Santo"},
		{43, "Ascensión del Señor"},
		{64, "Corpus Christi"},
		{71, "Sagrado Corazón"},
	}
)

var cache = struct {
	sync.Mutex
	years map[int]map[time.Time]string
}{years: make(map[int]map[time.Time]string)}

// Holidays returns the Colombian public holidays of year, sorted by date.
func Holidays(year int) []Holiday {
	set := holidaySet(year)
	out := make([]Holiday, 0, len(set))
	for d, name := range set {
		out = append(out, Holiday{Date: d, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// IsHoliday reports whether d is a Colombian public holiday.
func IsHoliday(d time.Time) bool {
	d = Date(d)
	_, ok := holidaySet(d.Year())[d]
	return ok
}

func holidaySet(year int) map[time.Time]string {
	cache.Lock()
	defer cache.Unlock()

	if set, ok := cache.years[year]; ok {
		return set
	}

	set := make(map[time.Time]string, len(fixedHolidays)+len(mondayHolidays)+len(easterHolidays))
	for _, h := range fixedHolidays {
		set[time.Date(year, h.month, h.day, 0, 0, 0, 0, time.UTC)] = h.name
	}
	for _, h := range mondayHolidays {
		set[nextMonday(time.Date(year, h.month, h.day, 0, 0, 0, 0, time.UTC))] = h.name
	}
	easter := EasterSunday(year)
	for _, h := range easterHolidays {
		set[easter.AddDate(0, 0, h.offset)] = h.name
	}

	cache.years[year] = set
	return set
}

// nextMonday returns d if it is a Monday, otherwise the following Monday.
func nextMonday(d time.Time) time.Time {
	shift := (int(time.Monday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, shift)
}

// EasterSunday computes the Gregorian Easter date (anonymous Gregorian algorithm).
func EasterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
