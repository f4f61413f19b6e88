package cache

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Dosada05/smk-league/models"
)

// Standings is an injected TTL cache over ranked qualification listings,
// keyed by tournament id. Reads within the TTL may be briefly stale; every
// recompute invalidates the tournament's entry.
type Standings struct {
	store *gocache.Cache
}

func NewStandings(ttl time.Duration) *Standings {
	return &Standings{
		store: gocache.New(ttl, 2*ttl),
	}
}

func (c *Standings) Get(tournamentID int) ([]*models.QualificationRecord, bool) {
	value, found := c.store.Get(strconv.Itoa(tournamentID))
	if !found {
		return nil, false
	}
	records, ok := value.([]*models.QualificationRecord)
	return records, ok
}

func (c *Standings) Set(tournamentID int, records []*models.QualificationRecord) {
	c.store.SetDefault(strconv.Itoa(tournamentID), records)
}

func (c *Standings) Invalidate(tournamentID int) {
	c.store.Delete(strconv.Itoa(tournamentID))
}
