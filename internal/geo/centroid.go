package geo

// Centroid returns the arithmetic mean of every exterior-ring vertex across
// all parts. This is not the area centroid: vertex-dense coastlines pull the
// result toward them. An empty geometry yields (0, 0).
func Centroid(mp MultiPolygon) Position {
	var sumLon, sumLat float64
	n := 0
	for _, poly := range mp {
		if len(poly) == 0 {
			continue
		}
		for _, p := range poly[0] {
			sumLon += p.Lon()
			sumLat += p.Lat()
			n++
		}
	}
	if n == 0 {
		return Position{0, 0}
	}
	return Position{sumLon / float64(n), sumLat / float64(n)}
}
