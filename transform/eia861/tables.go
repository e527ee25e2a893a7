package eia861

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// baIDFix corrects a balancing authority ID hand-verified against FERC and
// EIA records. Keyed by report year and the reporting utility.
type baIDFix struct {
	reportYear int64
	utilityID  int64
	baName     string
	baID       int64 // 0 means null out the reported ID
}

var baIDFixes = []baIDFix{
	{2001, 40577, "Multiple Control Areas", 99999},
	{2002, 40577, "Multiple Control Areas", 99999},
	{2002, 2759, "Xcel Energy", 13781},
	{2002, 1004, "Heartland Consumer Power Dist.", 40604},
	{2002, 5659, "Wisconsin Electric Power", 20847},
	{2002, 5588, "Interstate Power & Light", 9417},
	{2002, 6138, "Xcel Energy", 13781},
	{2002, 6276, "Vectren Energy Delivery", 0},
	{2002, 6579, "Dairyland Power Coop", 4716},
	{2002, 7140, "Southern Co Services Inc", 18195},
	{2002, 7257, "Westar Energy", 22500},
	{2002, 7444, "Minnkota Power Cooperative", 14232},
	{2002, 8632, "NorthWestern Energy", 12825},
	{2002, 8796, "ISO New England", 13434},
	{2002, 10171, "Midwest Indep System Operator", 56669},
	{2002, 11148, "California ISO", 2775},
	{2002, 11522, "Maritimes-Canada", 1},
	{2002, 15672, "Associated Electric Coop Inc", 924},
	{2002, 19545, "Western Area Power Admin", 28503},
}

// transformBalancingAuthority applies the manual ID fixes, backfills missing
// BA codes, and repairs two known code/ID typos.
func transformBalancingAuthority(t *pudl.Table) error {
	years, err := t.Column("report_year")
	if err != nil {
		return err
	}
	utils, err := t.Column("utility_id_eia")
	if err != nil {
		return err
	}
	names, err := t.Column("balancing_authority_name_eia")
	if err != nil {
		return err
	}
	ids, err := t.Column("balancing_authority_id_eia")
	if err != nil {
		return err
	}
	codes, err := t.Column("balancing_authority_code_eia")
	if err != nil {
		return err
	}

	for row := range ids {
		// IDs outside EIA's assigned range are data entry noise
		ids[row] = pudl.OOBToNil(ids[row], 1, 99999)
		year, _ := years[row].(int64)
		util, _ := utils[row].(int64)
		name, _ := names[row].(string)
		for _, fix := range baIDFixes {
			if fix.reportYear != year || fix.utilityID != util {
				continue
			}
			if !strings.EqualFold(fix.baName, name) {
				continue
			}
			if fix.baID == 0 {
				ids[row] = nil
			} else {
				ids[row] = fix.baID
			}
			break
		}
	}

	if err := BACodeBackfill(t); err != nil {
		return err
	}

	// Typo: NEVP's BA ID is 13407, entered as 13047 in 2014-2015.
	// Typo: Turlock Irrigation District is TIDC, not TID.
	for row := range ids {
		code, _ := codes[row].(string)
		id, _ := ids[row].(int64)
		if code == "NEVP" && id == 13047 {
			ids[row] = int64(13407)
		}
		if code == "TID" && id == 19281 {
			codes[row] = "TIDC"
		}
	}
	return nil
}

// transformSales tidies the wide sales table by customer class and rescales
// the value columns:
//
//   - utilities 88888 and 99999 are aggregate placeholders and get dropped
//   - sales_revenue arrives in thousands of dollars
//   - data_observed arrives as O (observed) / I (imputed)
//   - business_model forms A-C are retail, D is energy services
func transformSales(t *pudl.Table) (*pudl.Table, error) {
	t = t.Filter(func(row int) bool {
		v, err := t.Value(row, "utility_id_eia")
		if err != nil {
			return false
		}
		id, _ := v.(int64)
		return id != 88888 && id != 99999
	})

	idxCols := []string{
		"utility_id_eia",
		"state",
		"report_year",
		"balancing_authority_code_eia",
	}
	tidy, err := TidyClasses(t, idxCols, CustomerClasses, "customer_class", false)
	if err != nil {
		return nil, err
	}
	tidy, err = DropDupes(tidy, append(idxCols, "customer_class"))
	if err != nil {
		return nil, err
	}

	if tidy.HasColumn("sales_revenue") {
		col, _ := tidy.Column("sales_revenue")
		for i, v := range col {
			nv, err := pudl.ThousandToOne(v)
			if err != nil {
				return nil, errors.Wrap(err, "sales_revenue")
			}
			col[i] = nv
		}
	}
	if tidy.HasColumn("data_observed") {
		col, _ := tidy.Column("data_observed")
		for i, v := range col {
			switch v {
			case "O":
				col[i] = true
			case "I":
				col[i] = false
			}
		}
	}
	if tidy.HasColumn("business_model") {
		col, _ := tidy.Column("business_model")
		for i, v := range col {
			switch v {
			case "A", "B", "C":
				col[i] = "retail"
			case "D":
				col[i] = "energy_services"
			}
		}
	}
	if tidy.HasColumn("service_type") {
		col, _ := tidy.Column("service_type")
		for i, v := range col {
			if s, ok := v.(string); ok {
				col[i] = strings.ToLower(s)
			}
		}
	}
	return tidy, nil
}

// transformServiceTerritory zero-pads the FIPS codes that spreadsheet
// round-trips strip leading zeros from.
func transformServiceTerritory(t *pudl.Table) error {
	pads := []struct {
		col   string
		width int
	}{
		{"state_id_fips", 2},
		{"county_id_fips", 5},
	}
	for _, p := range pads {
		if !t.HasColumn(p.col) {
			continue
		}
		col, err := t.Column(p.col)
		if err != nil {
			return err
		}
		for i, v := range col {
			nv, err := pudl.ZeroPadFIPS(v, p.width)
			if err != nil {
				return errors.Wrapf(err, "row %d column %s", i, p.col)
			}
			col[i] = nv
		}
	}
	return nil
}
