package glue

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// Registry categories.
const (
	PlantCategory   = "plant"
	UtilityCategory = "utility"
)

// Glue is the finisher that assigns plant_id_pudl and utility_id_pudl.
//
// EIA entities get a PUDL ID keyed strictly on their agency ID. FERC Form 1
// has no plant IDs at all, so FERC plants and respondents first try to match
// an EIA entity by normalized name (within the same state when the FERC table
// reports one) and otherwise get their own PUDL ID keyed on respondent ID and
// name. Because the keys are stable and the Registry is persistent, the same
// entity keeps its PUDL ID across runs.
type Glue struct {
	Registry Registry

	// FERCPlantTables are the cleaned FERC 1 tables to harvest plants from.
	// Each must have utility_id_ferc1 and plant_name_ferc1 columns.
	FERCPlantTables []string
}

var _ pudl.Transformer = (*Glue)(nil)

// NewGlue returns a Glue harvesting FERC plants from the steam table.
func NewGlue(reg Registry) *Glue {
	return &Glue{
		Registry:        reg,
		FERCPlantTables: []string{"plants_steam_ferc1"},
	}
}

type entityRef struct {
	pudlID uint64
	name   string
}

func (g *Glue) Transform(ctx context.Context, tables map[string]*pudl.Table) (map[string]*pudl.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := g.gluePlants(tables); err != nil {
		return nil, errors.Wrap(err, "gluing plants")
	}
	if err := g.glueUtilities(tables); err != nil {
		return nil, errors.Wrap(err, "gluing utilities")
	}
	return tables, nil
}

func (g *Glue) gluePlants(tables map[string]*pudl.Table) error {
	// byName maps normalized name (optionally scoped by state) to the EIA
	// plant's assigned PUDL ID for the FERC name matching below.
	byName := map[string]entityRef{}
	named := map[uint64]string{}

	plantsEIA := pudl.NewTable("plants_eia",
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.IntField{NameVal: "plant_id_pudl"},
	)
	if entity, ok := tables["plants_entity_eia"]; ok {
		ids, err := entity.Column("plant_id_eia")
		if err != nil {
			return err
		}
		for row := range ids {
			id, ok := ids[row].(int64)
			if !ok {
				continue
			}
			pudlID, err := g.Registry.ID(PlantCategory, fmt.Sprintf("eia/%d", id))
			if err != nil {
				return err
			}
			if err := plantsEIA.Append(id, int64(pudlID)); err != nil {
				return err
			}
			name, _ := valueString(entity, row, "plant_name_eia")
			state, _ := valueString(entity, row, "state")
			if name != "" {
				norm := pudl.NormalizeName(name)
				byName[norm] = entityRef{pudlID, name}
				if state != "" {
					byName[norm+"|"+state] = entityRef{pudlID, name}
				}
				named[pudlID] = name
			}
		}
	}

	plantsFERC := pudl.NewTable("plants_ferc1",
		pudl.IntField{NameVal: "utility_id_ferc1"},
		pudl.StringField{NameVal: "plant_name_ferc1"},
		pudl.IntField{NameVal: "plant_id_pudl"},
	)
	seenFERC := map[string]bool{}
	matched := 0
	for _, tname := range g.FERCPlantTables {
		t, ok := tables[tname]
		if !ok {
			continue
		}
		utils, err := t.Column("utility_id_ferc1")
		if err != nil {
			return errors.Wrap(err, tname)
		}
		names, err := t.Column("plant_name_ferc1")
		if err != nil {
			return errors.Wrap(err, tname)
		}
		for row := range utils {
			util, ok := utils[row].(int64)
			if !ok {
				continue
			}
			name, ok := names[row].(string)
			if !ok || name == "" {
				continue
			}
			norm := pudl.NormalizeName(name)
			fercKey := fmt.Sprintf("%d/%s", util, norm)
			if seenFERC[fercKey] {
				continue
			}
			seenFERC[fercKey] = true

			var pudlID uint64
			lookup := norm
			if state, _ := valueString(t, row, "state"); state != "" {
				lookup = norm + "|" + state
			}
			if ref, ok := byName[lookup]; ok {
				pudlID = ref.pudlID
				matched++
			} else if ref, ok := byName[norm]; ok {
				pudlID = ref.pudlID
				matched++
			} else {
				pudlID, err = g.Registry.ID(PlantCategory, "ferc1/"+fercKey)
				if err != nil {
					return err
				}
				named[pudlID] = name
			}
			if err := plantsFERC.Append(util, name, int64(pudlID)); err != nil {
				return err
			}
		}
	}
	log.Printf("glue: %d ferc plants, %d matched to eia by name", plantsFERC.Len(), matched)

	plantsPUDL := pudl.NewTable("plants_pudl",
		pudl.IntField{NameVal: "plant_id_pudl"},
		pudl.StringField{NameVal: "plant_name_pudl"},
	)
	if err := appendIDTable(plantsPUDL, "plant_id_pudl", "plant_name_pudl", named); err != nil {
		return err
	}

	tables["plants_eia"] = plantsEIA
	tables["plants_ferc1"] = plantsFERC
	tables["plants_pudl"] = plantsPUDL
	return nil
}

func (g *Glue) glueUtilities(tables map[string]*pudl.Table) error {
	byName := map[string]entityRef{}
	named := map[uint64]string{}

	utilsEIA := pudl.NewTable("utilities_eia",
		pudl.IntField{NameVal: "utility_id_eia"},
		pudl.IntField{NameVal: "utility_id_pudl"},
	)
	if entity, ok := tables["utilities_entity_eia"]; ok {
		ids, err := entity.Column("utility_id_eia")
		if err != nil {
			return err
		}
		for row := range ids {
			id, ok := ids[row].(int64)
			if !ok {
				continue
			}
			pudlID, err := g.Registry.ID(UtilityCategory, fmt.Sprintf("eia/%d", id))
			if err != nil {
				return err
			}
			if err := utilsEIA.Append(id, int64(pudlID)); err != nil {
				return err
			}
			if name, _ := valueString(entity, row, "utility_name_eia"); name != "" {
				byName[pudl.NormalizeName(name)] = entityRef{pudlID, name}
				named[pudlID] = name
			}
		}
	}

	utilsFERC := pudl.NewTable("utilities_ferc1",
		pudl.IntField{NameVal: "utility_id_ferc1"},
		pudl.IntField{NameVal: "utility_id_pudl"},
	)
	matched := 0
	if resp, ok := tables["respondents_ferc1"]; ok {
		ids, err := resp.Column("respondent_id_ferc1")
		if err != nil {
			return err
		}
		seen := map[int64]bool{}
		for row := range ids {
			id, ok := ids[row].(int64)
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			name, _ := valueString(resp, row, "respondent_name_ferc1")

			var pudlID uint64
			if ref, ok := byName[pudl.NormalizeName(name)]; name != "" && ok {
				pudlID = ref.pudlID
				matched++
			} else {
				pudlID, err = g.Registry.ID(UtilityCategory, fmt.Sprintf("ferc1/%d", id))
				if err != nil {
					return err
				}
				if name != "" {
					named[pudlID] = name
				}
			}
			if err := utilsFERC.Append(id, int64(pudlID)); err != nil {
				return err
			}
		}
	}
	log.Printf("glue: %d ferc respondents, %d matched to eia by name", utilsFERC.Len(), matched)

	utilsPUDL := pudl.NewTable("utilities_pudl",
		pudl.IntField{NameVal: "utility_id_pudl"},
		pudl.StringField{NameVal: "utility_name_pudl"},
	)
	if err := appendIDTable(utilsPUDL, "utility_id_pudl", "utility_name_pudl", named); err != nil {
		return err
	}

	tables["utilities_eia"] = utilsEIA
	tables["utilities_ferc1"] = utilsFERC
	tables["utilities_pudl"] = utilsPUDL
	return nil
}

func appendIDTable(t *pudl.Table, idCol, nameCol string, named map[uint64]string) error {
	ids := make([]uint64, 0, len(named))
	for id := range named {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	for _, id := range ids {
		if err := t.AppendMap(map[string]interface{}{
			idCol:   int64(id),
			nameCol: named[id],
		}); err != nil {
			return err
		}
	}
	return nil
}

func valueString(t *pudl.Table, row int, col string) (string, bool) {
	if !t.HasColumn(col) {
		return "", false
	}
	v, err := t.Value(row, col)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
