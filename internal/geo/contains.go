package geo

// Contains reports whether p lies inside any part of mp: inside a part's
// exterior ring and outside all of its holes. Points exactly on an edge may
// fall either way.
func (mp MultiPolygon) Contains(p Position) bool {
	for _, poly := range mp {
		if len(poly) == 0 || !poly[0].contains(p) {
			continue
		}
		inHole := false
		for _, hole := range poly[1:] {
			if hole.contains(p) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// contains is the even-odd ray casting test.
func (r Ring) contains(p Position) bool {
	inside := false
	for i, j := 0, len(r)-1; i < len(r); j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a.Lat() > p.Lat()) != (b.Lat() > p.Lat()) &&
			p.Lon() < (b.Lon()-a.Lon())*(p.Lat()-a.Lat())/(b.Lat()-a.Lat())+a.Lon() {
			inside = !inside
		}
	}
	return inside
}
