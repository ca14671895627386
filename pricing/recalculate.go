// Package pricing recomputes an appointment price from a reported home size.
//
// Everything here is pure: the same claim always yields the same quote and no
// storage is touched, so callers evaluate it exactly once per dispute and
// persist the result.
package pricing

import "errors"

// ErrNegativeRate is returned by Policy.Validate when a rate would make the
// price decrease as rooms are added.
var ErrNegativeRate = errors.New("pricing: rates must not be negative")

// Policy holds the per-room adjustments applied on top of the price of record.
type Policy struct {
	PerBedroom  Cents
	PerBathroom Cents
	// Minimum is the floor applied to every recalculated price.
	Minimum Cents
}

// DefaultPolicy is used when no overrides are configured.
var DefaultPolicy = Policy{
	PerBedroom:  Dollars(25),
	PerBathroom: Dollars(15),
	Minimum:     0,
}

// Claim is the size information a quote is computed from.
type Claim struct {
	OriginalBeds  int
	OriginalBaths int
	OriginalPrice Cents
	ReportedBeds  int
	ReportedBaths int
}

// Quote is the outcome of a recalculation. Delta is NewPrice minus the
// original price.
type Quote struct {
	NewPrice Cents
	Delta    Cents
}

func (p Policy) Validate() error {
	if p.PerBedroom < 0 || p.PerBathroom < 0 {
		return ErrNegativeRate
	}
	if p.Minimum < 0 {
		return errors.New("pricing: minimum must not be negative")
	}
	return nil
}

// Recalculate prices the reported size relative to the original one. With
// non-negative rates the result never decreases when either reported
// dimension grows.
func (p Policy) Recalculate(c Claim) Quote {
	price := c.OriginalPrice +
		Cents(c.ReportedBeds-c.OriginalBeds)*p.PerBedroom +
		Cents(c.ReportedBaths-c.OriginalBaths)*p.PerBathroom
	if price < p.Minimum {
		price = p.Minimum
	}
	return Quote{NewPrice: price, Delta: price - c.OriginalPrice}
}

// Recalculate applies DefaultPolicy.
func Recalculate(c Claim) Quote {
	return DefaultPolicy.Recalculate(c)
}
