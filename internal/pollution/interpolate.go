package pollution

import "strconv"

// interpolationSteps is the number of segments between two neighbouring
// points; steps-1 synthetic points are inserted.
const interpolationSteps = 10

// Interpolate densifies records for heatmap rendering. Records are grouped by
// unit and pollutant (groups keep first-seen order) and, between every pair of
// consecutive records in a group, nine points are inserted at even fractions
// of latitude, longitude and value.
func Interpolate(records []Record) []Record {
	var keys []string
	groups := make(map[string][]Record)
	for _, r := range records {
		k := r.Unit + "-" + r.Pollutant
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}

	out := make([]Record, 0, len(records)*interpolationSteps)
	for _, k := range keys {
		g := groups[k]
		for i := 0; i < len(g)-1; i++ {
			cur, next := g[i], g[i+1]
			out = append(out, cur)
			for j := 1; j < interpolationSteps; j++ {
				f := float64(j) / interpolationSteps
				out = append(out, Record{
					ID:        cur.ID,
					Name:      cur.Name + "-interpolated-" + strconv.Itoa(j),
					Lat:       cur.Lat + f*(next.Lat-cur.Lat),
					Lon:       cur.Lon + f*(next.Lon-cur.Lon),
					Pollutant: cur.Pollutant,
					Value:     cur.Value + f*(next.Value-cur.Value),
					Unit:      cur.Unit,
				})
			}
		}
		out = append(out, g[len(g)-1])
	}
	return out
}
