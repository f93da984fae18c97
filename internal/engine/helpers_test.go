package engine

import (
	"time"

	"pax-advisor/internal/market"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(hours int) time.Time { return t0.Add(time.Duration(hours) * time.Hour) }

func lst(item string, unit float64, zone, id string) market.Listing {
	return market.NewListing(item, unit, 1, zone, id)
}

func stack(item string, total float64, qty int64, zone, id string) market.Listing {
	return market.NewListing(item, total, qty, zone, id)
}

func bare(item string, price float64, zone, id string) market.Listing {
	return market.NewListing(item, price, 0, zone, id)
}

func seller(l market.Listing, hash string) market.Listing {
	l.SellerHash = hash
	return l
}

func snapAt(hours int, listings ...market.Listing) market.Snapshot {
	s, _ := market.NewSnapshot(at(hours), "", listings)
	return s
}
