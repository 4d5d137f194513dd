// ABOUTME: Sunrise and sunset for the displayed region
// ABOUTME: Computes sun events with astral and caches them per place and day
package location

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sj14/astral/pkg/astral"
)

// SunTimes holds the sun events of one day in local time
type SunTimes struct {
	CivilDawn time.Time
	Sunrise   time.Time
	Sunset    time.Time
	CivilDusk time.Time
}

// SunCalc computes sun events. Results are cached per rounded coordinate
// and date, since the map center moves a little with every fix.
type SunCalc struct {
	cache *cache.Cache
}

// NewSunCalc creates a calculator with a cache that expires after a day.
// Expired entries are swept on misses rather than by a janitor goroutine.
func NewSunCalc() *SunCalc {
	return &SunCalc{cache: cache.New(24*time.Hour, 0)}
}

func sunKey(lat, lon float64, date time.Time) string {
	return fmt.Sprintf("%.2f,%.2f,%s", lat, lon, date.Format("2006-01-02"))
}

// Times returns the sun events at lat/lon on date's day
func (sc *SunCalc) Times(lat, lon float64, date time.Time) (SunTimes, error) {
	key := sunKey(lat, lon, date)
	if v, ok := sc.cache.Get(key); ok {
		return v.(SunTimes), nil
	}

	times, err := calculateSunTimes(astral.Observer{Latitude: lat, Longitude: lon}, date)
	if err != nil {
		return SunTimes{}, err
	}

	sc.cache.DeleteExpired()
	sc.cache.SetDefault(key, times)
	return times, nil
}

// ForRegion returns the sun events at the region center
func (sc *SunCalc) ForRegion(r MapRegion, date time.Time) (SunTimes, error) {
	return sc.Times(r.Latitude, r.Longitude, date)
}

func calculateSunTimes(observer astral.Observer, date time.Time) (SunTimes, error) {
	civilDawn, err := astral.Dawn(observer, date, astral.DepressionCivil)
	if err != nil {
		return SunTimes{}, fmt.Errorf("failed to calculate civil dawn: %w", err)
	}

	sunrise, err := astral.Sunrise(observer, date)
	if err != nil {
		return SunTimes{}, fmt.Errorf("failed to calculate sunrise: %w", err)
	}

	sunset, err := astral.Sunset(observer, date)
	if err != nil {
		return SunTimes{}, fmt.Errorf("failed to calculate sunset: %w", err)
	}

	civilDusk, err := astral.Dusk(observer, date, astral.DepressionCivil)
	if err != nil {
		return SunTimes{}, fmt.Errorf("failed to calculate civil dusk: %w", err)
	}

	loc := date.Location()
	return SunTimes{
		CivilDawn: civilDawn.In(loc),
		Sunrise:   sunrise.In(loc),
		Sunset:    sunset.In(loc),
		CivilDusk: civilDusk.In(loc),
	}, nil
}
