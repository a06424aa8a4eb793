package database

import (
	"os"
	"path/filepath"
	"time"
)

// Season names the quarter a hot database belongs to.
type Season string

const (
	Winter Season = "winter"
	Spring Season = "spring"
	Summer Season = "summer"
	Autumn Season = "autumn"
)

// SeasonOf maps a month to its season: winter is January through March,
// then spring, summer, and autumn in three-month blocks.
func SeasonOf(month time.Month) Season {
	switch {
	case month <= time.March:
		return Winter
	case month <= time.June:
		return Spring
	case month <= time.September:
		return Summer
	default:
		return Autumn
	}
}

// HotPath returns the seasonal database file for the given moment, e.g.
// <dir>/db/2026/summer/summer.db. The season is taken in UTC.
func HotPath(dir string, now time.Time) string {
	now = now.UTC()
	season := string(SeasonOf(now.Month()))
	return filepath.Join(seasonDir(dir, now), season+".db")
}

// StorePath returns the shared object store database file.
func StorePath(dir string) string {
	return filepath.Join(dir, "db", "store.db")
}

func seasonDir(dir string, now time.Time) string {
	now = now.UTC()
	return filepath.Join(dir, "db", now.Format("2006"), string(SeasonOf(now.Month())))
}

// previousSeasonPath finds the most recently modified seasonal database
// other than the hot one. It returns "" when no previous season exists.
func previousSeasonPath(dir, hotPath string) string {
	matches, err := filepath.Glob(filepath.Join(dir, "db", "*", "*", "*.db"))
	if err != nil {
		return ""
	}

	var (
		newest    string
		newestMod time.Time
	)
	for _, m := range matches {
		if m == hotPath {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = m
			newestMod = info.ModTime()
		}
	}
	return newest
}
