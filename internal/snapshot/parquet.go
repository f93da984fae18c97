package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"pax-advisor/internal/market"
)

// ErrMalformedSnapshot marks a snapshot file that cannot be used: unreadable,
// not parquet, or missing a required column.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// requiredColumns must exist in every snapshot file. Price may be replaced by UnitPrice.
var requiredColumns = []string{"Item", "Zone", "ListingID"}

// parquetRow mirrors the columns written by the market ETL. Every column is
// optional in the file; required ones are checked against the schema.
type parquetRow struct {
	Item          *string  `parquet:"Item,optional"`
	Price         *float64 `parquet:"Price,optional"`
	Amount        *int64   `parquet:"Amount,optional"`
	UnitPrice     *float64 `parquet:"UnitPrice,optional"`
	Zone          *string  `parquet:"Zone,optional"`
	ListingID     *string  `parquet:"ListingID,optional"`
	SellerHash    *string  `parquet:"SellerHash,optional"`
	Durability    *float64 `parquet:"Durability,optional"`
	Quality       *float64 `parquet:"Quality,optional"`
	TimeRemaining *float64 `parquet:"TimeRemaining,optional"`
	CreationDate  *int64   `parquet:"CreationDate,optional"`
	LastSeen      *int64   `parquet:"LastSeen,optional"`
}

// ReadParquet decodes one snapshot file. capturedAt is stamped on the result.
// Duplicate listing ids are dropped (first wins) and counted in dupes.
func ReadParquet(path string, capturedAt time.Time) (snap market.Snapshot, dupes int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return market.Snapshot{}, 0, fmt.Errorf("%w: open %s: %v", ErrMalformedSnapshot, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return market.Snapshot{}, 0, fmt.Errorf("%w: stat %s: %v", ErrMalformedSnapshot, path, err)
	}

	rows, hasAmount, err := decodeRows(f, info.Size())
	if err != nil {
		return market.Snapshot{}, 0, fmt.Errorf("%w: %s: %v", ErrMalformedSnapshot, path, err)
	}

	listings := make([]market.Listing, 0, len(rows))
	for _, r := range rows {
		l, ok := r.toListing(hasAmount)
		if !ok {
			continue
		}
		listings = append(listings, l)
	}
	snap, dupes = market.NewSnapshot(capturedAt, path, listings)
	return snap, dupes, nil
}

func decodeRows(r io.ReaderAt, size int64) (rows []parquetRow, hasAmount bool, err error) {
	// Schema conversion inside the generic reader panics on incompatible column types.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("decode: %v", p)
		}
	}()

	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, false, err
	}
	schema := pf.Schema()
	for _, col := range requiredColumns {
		if _, ok := schema.Lookup(col); !ok {
			return nil, false, fmt.Errorf("missing column %q", col)
		}
	}
	_, hasPrice := schema.Lookup("Price")
	_, hasUnit := schema.Lookup("UnitPrice")
	if !hasPrice && !hasUnit {
		return nil, false, errors.New(`missing column "Price"`)
	}
	_, hasAmount = schema.Lookup("Amount")

	reader := parquet.NewGenericReader[parquetRow](pf)
	defer reader.Close()

	rows = make([]parquetRow, pf.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, false, err
	}
	return rows[:n], hasAmount, nil
}

// toListing converts a row; rows without item, zone or any price are dropped.
func (r parquetRow) toListing(hasAmount bool) (market.Listing, bool) {
	if r.Item == nil || *r.Item == "" || r.Zone == nil {
		return market.Listing{}, false
	}
	var qty int64 = 1
	hasQty := false
	if hasAmount && r.Amount != nil && *r.Amount >= 1 {
		qty = *r.Amount
		hasQty = true
	}

	var total, unit float64
	switch {
	case r.Price != nil:
		total = *r.Price
		unit = total / float64(qty)
		if r.UnitPrice != nil {
			unit = *r.UnitPrice
		}
	case r.UnitPrice != nil:
		unit = *r.UnitPrice
		total = unit * float64(qty)
	default:
		return market.Listing{}, false
	}

	l := market.Listing{
		ItemName:     *r.Item,
		TotalPrice:   total,
		UnitPrice:    unit,
		Quantity:     qty,
		HasQuantity:  hasQty,
		Zone:         *r.Zone,
		Durability:   r.Durability,
		Quality:      r.Quality,
		LifetimeDays: r.TimeRemaining,
	}
	if r.ListingID != nil {
		l.ListingID = *r.ListingID
	}
	if r.SellerHash != nil {
		l.SellerHash = *r.SellerHash
	}
	if r.CreationDate != nil {
		l.CreatedAt = epochToTime(*r.CreationDate)
	}
	if r.LastSeen != nil {
		l.LastSeen = epochToTime(*r.LastSeen)
	}
	return l, true
}

// epochToTime accepts seconds, milliseconds, microseconds or nanoseconds since
// the epoch; the unit is inferred from magnitude (pandas writers differ).
func epochToTime(v int64) time.Time {
	switch {
	case v > 1e17:
		return time.Unix(0, v).UTC()
	case v > 1e14:
		return time.UnixMicro(v).UTC()
	case v > 1e11:
		return time.UnixMilli(v).UTC()
	default:
		return time.Unix(v, 0).UTC()
	}
}
