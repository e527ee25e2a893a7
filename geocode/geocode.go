// Package geocode enriches entity tables that carry coordinates with a
// geohash column, which makes spatial joins and bucketing cheap downstream.
package geocode

import (
	"context"

	"github.com/mmcloughlin/geohash"
	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// DefaultPrecision is the geohash length in characters. 12 characters is
// sub-meter, more than enough to distinguish any two plants.
const DefaultPrecision = 12

// Transformer adds a geohash column to each of the named tables computed
// from their latitude and longitude columns. Rows without coordinates get a
// nil geohash.
type Transformer struct {
	Precision uint
	Tables    []string

	LatColumn  string
	LonColumn  string
	HashColumn string
}

var _ pudl.Transformer = (*Transformer)(nil)

// NewTransformer geocodes the EIA plants entity table at default precision.
func NewTransformer() *Transformer {
	return &Transformer{
		Precision:  DefaultPrecision,
		Tables:     []string{"plants_entity_eia"},
		LatColumn:  "latitude",
		LonColumn:  "longitude",
		HashColumn: "geohash",
	}
}

func (tr *Transformer) Transform(ctx context.Context, tables map[string]*pudl.Table) (map[string]*pudl.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, name := range tr.Tables {
		t, ok := tables[name]
		if !ok {
			continue
		}
		if err := tr.geocodeTable(t); err != nil {
			return nil, errors.Wrap(err, name)
		}
	}
	return tables, nil
}

func (tr *Transformer) geocodeTable(t *pudl.Table) error {
	lats, err := t.Column(tr.LatColumn)
	if err != nil {
		return err
	}
	lons, err := t.Column(tr.LonColumn)
	if err != nil {
		return err
	}
	if err := t.AddField(pudl.StringField{NameVal: tr.HashColumn}); err != nil {
		return err
	}
	hashes, err := t.Column(tr.HashColumn)
	if err != nil {
		return err
	}
	for i := range lats {
		lat, ok := lats[i].(float64)
		if !ok {
			continue
		}
		lon, ok := lons[i].(float64)
		if !ok {
			continue
		}
		hashes[i] = geohash.EncodeWithPrecision(lat, lon, tr.Precision)
	}
	return nil
}
