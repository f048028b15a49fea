package leaderboard

import (
	"fmt"

	"github.com/patrickmn/go-cache"

	"github.com/switchbacklabs/towers-tt/internal/conf"
)

type boardKind string

const (
	boardOverall    boardKind = "overall"
	boardClimbing   boardKind = "climbing"
	boardDescending boardKind = "descending"
	boardLegacy     boardKind = "legacy"
)

// boardCache is a read-through cache of computed boards, keyed by board
// kind and race year. A nil inner cache means caching is disabled and
// every lookup misses.
type boardCache struct {
	c *cache.Cache
}

func newBoardCache(settings *conf.LeaderboardSettings) *boardCache {
	if !settings.CacheEnabled {
		return &boardCache{}
	}
	return &boardCache{c: cache.New(settings.CacheTTL, settings.CacheTTL*2)}
}

func cacheKey(kind boardKind, year int) string {
	return fmt.Sprintf("%s:%d", kind, year)
}

func (bc *boardCache) invalidateYear(year int) {
	if bc.c == nil {
		return
	}
	for _, kind := range []boardKind{boardOverall, boardClimbing, boardDescending, boardLegacy} {
		bc.c.Delete(cacheKey(kind, year))
	}
}

func (bc *boardCache) getOverall(year int) ([]OverallRow, bool) {
	if bc.c == nil {
		return nil, false
	}
	if v, ok := bc.c.Get(cacheKey(boardOverall, year)); ok {
		if rows, ok := v.([]OverallRow); ok {
			return rows, true
		}
	}
	return nil, false
}

func (bc *boardCache) setOverall(year int, rows []OverallRow) {
	if bc.c != nil {
		bc.c.Set(cacheKey(boardOverall, year), rows, cache.DefaultExpiration)
	}
}

func (bc *boardCache) getBonus(kind boardKind, year int) ([]BonusRow, bool) {
	if bc.c == nil {
		return nil, false
	}
	if v, ok := bc.c.Get(cacheKey(kind, year)); ok {
		if rows, ok := v.([]BonusRow); ok {
			return rows, true
		}
	}
	return nil, false
}

func (bc *boardCache) setBonus(kind boardKind, year int, rows []BonusRow) {
	if bc.c != nil {
		bc.c.Set(cacheKey(kind, year), rows, cache.DefaultExpiration)
	}
}

func (bc *boardCache) getLegacy(year int) ([]LegacyRow, bool) {
	if bc.c == nil {
		return nil, false
	}
	if v, ok := bc.c.Get(cacheKey(boardLegacy, year)); ok {
		if rows, ok := v.([]LegacyRow); ok {
			return rows, true
		}
	}
	return nil, false
}

func (bc *boardCache) setLegacy(year int, rows []LegacyRow) {
	if bc.c != nil {
		bc.c.Set(cacheKey(boardLegacy, year), rows, cache.DefaultExpiration)
	}
}
