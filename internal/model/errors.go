package model

import "errors"

// ErrUpstream marks a hard repository failure. Sparse data is never an
// error: callers get a SourceNone estimate instead. A wrapped ErrUpstream
// means "temporarily unavailable", never "price is zero".
var ErrUpstream = errors.New("listing query failed")

// ErrConfiguration marks a broken pricing configuration, e.g. the
// base-price source missing entirely. Partial gaps (an unknown rarity or
// treatment) degrade to neutral multipliers instead.
var ErrConfiguration = errors.New("pricing configuration invalid")
