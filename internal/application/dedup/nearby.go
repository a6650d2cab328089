package dedup

import (
	"math"
	"sort"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/pkg/textmatch"
)

const (
	earthRadiusMeters = 6371000.0
	metersPerDegree   = earthRadiusMeters * math.Pi / 180

	// cellMargin widens grid cells slightly so a great-circle distance of
	// exactly the radius never spans more than one cell boundary
	cellMargin = 1.05

	// sameNameThreshold is the bigram similarity above which two names are
	// reported as the same place
	sameNameThreshold = 0.8
)

// NearbyPair is two facilities within the search radius of each other
type NearbyPair struct {
	A              *entities.Facility
	B              *entities.Facility
	DistanceMeters float64
	SameName       bool
}

type cell struct {
	x, y int
}

// FindNearby reports every pair of facilities closer than radiusMeters. Rows
// are bucketed into a grid whose cells are at least radiusMeters wide, so only
// the 3x3 block of cells around a row needs comparing. Pairs come back closest
// first.
func FindNearby(facilities []*entities.Facility, radiusMeters float64) []NearbyPair {
	if radiusMeters <= 0 {
		return nil
	}

	type point struct {
		f        *entities.Facility
		lat, lng float64
	}

	var points []point
	minLat := 90.0
	maxLat := -90.0
	for _, f := range facilities {
		if f == nil {
			continue
		}
		lat, lng, ok := f.Coordinates()
		if !ok {
			continue
		}
		points = append(points, point{f: f, lat: lat, lng: lng})
		minLat = math.Min(minLat, lat)
		maxLat = math.Max(maxLat, lat)
	}
	if len(points) < 2 {
		return nil
	}

	// Longitude degrees shrink toward the poles; size cells for the
	// highest-latitude row so no cell is narrower than the radius.
	latCell := cellMargin * radiusMeters / metersPerDegree
	widest := math.Max(math.Abs(minLat), math.Abs(maxLat))
	cosLat := math.Cos(widest * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lngCell := cellMargin * radiusMeters / (metersPerDegree * cosLat)

	grid := make(map[cell][]int)
	cellOf := func(p point) cell {
		return cell{x: int(math.Floor(p.lng / lngCell)), y: int(math.Floor(p.lat / latCell))}
	}
	for i, p := range points {
		c := cellOf(p)
		grid[c] = append(grid[c], i)
	}

	var pairs []NearbyPair
	for i, p := range points {
		c := cellOf(p)
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for _, j := range grid[cell{x: c.x + dx, y: c.y + dy}] {
					if j <= i {
						continue
					}
					q := points[j]
					d := Haversine(p.lat, p.lng, q.lat, q.lng)
					if d > radiusMeters {
						continue
					}
					pairs = append(pairs, NearbyPair{
						A:              p.f,
						B:              q.f,
						DistanceMeters: d,
						SameName:       textmatch.Similarity(p.f.Name, q.f.Name) >= sameNameThreshold,
					})
				}
			}
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].DistanceMeters < pairs[j].DistanceMeters
	})
	return pairs
}

// Haversine returns the great-circle distance in meters
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLng := (lng2 - lng1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
