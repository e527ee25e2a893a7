// Package ferc1 cleans the raw FERC Form 1 tables pulled out of the annual
// FoxPro databases. Everything arrives as strings, so the work here is mostly
// whitespace, case and type repair.
package ferc1

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// RespondentTable is the canonical name of the FERC 1 respondent table.
const RespondentTable = "respondents_ferc1"

// Transformer cleans the raw FERC Form 1 tables it knows about.
type Transformer struct{}

var _ pudl.Transformer = Transformer{}

func (Transformer) Transform(ctx context.Context, tables map[string]*pudl.Table) (map[string]*pudl.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t, ok := tables[RespondentTable]; ok {
		out, err := transformRespondents(t)
		if err != nil {
			return nil, errors.Wrap(err, RespondentTable)
		}
		tables[RespondentTable] = out
	}
	return tables, nil
}

// transformRespondents tidies the respondent roster: names get whitespace
// squashed, codes get uppercased, and rows without a respondent ID are
// dropped since they can never join to anything.
func transformRespondents(t *pudl.Table) (*pudl.Table, error) {
	if t.HasColumn("respondent_name_ferc1") {
		col, err := t.Column("respondent_name_ferc1")
		if err != nil {
			return nil, err
		}
		for i, v := range col {
			if s, ok := v.(string); ok {
				col[i] = squashWhitespace(s)
			}
		}
	}
	if t.HasColumn("respondent_code_ferc1") {
		col, err := t.Column("respondent_code_ferc1")
		if err != nil {
			return nil, err
		}
		for i, v := range col {
			if s, ok := v.(string); ok {
				col[i] = strings.ToUpper(strings.TrimSpace(s))
			}
		}
	}

	ids, err := t.Column("respondent_id_ferc1")
	if err != nil {
		return nil, err
	}
	out := t.Filter(func(row int) bool { return ids[row] != nil })
	return out, nil
}

func squashWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
