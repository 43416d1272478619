package application

import (
	"math"

	"clinic-gateway/location/domain"
)

const earthRadiusM = 6371000

type Geofence struct {
	Site      string  `json:"site"`
	DistanceM float64 `json:"distance_m"`
	Inside    bool    `json:"inside"`
}

// Check procura a unidade mais próxima. A imprecisão da posição entra como
// folga, limitada a slackM. Sem unidades, ok=false.
func Check(fix domain.Fix, sites []domain.Site, slackM float64) (Geofence, bool) {
	if len(sites) == 0 {
		return Geofence{}, false
	}

	best := Geofence{DistanceM: math.Inf(1)}
	var site domain.Site
	for _, s := range sites {
		d := Distance(fix.Lat, fix.Lon, s.Lat, s.Lon)
		if d < best.DistanceM {
			best = Geofence{Site: s.Name, DistanceM: d}
			site = s
		}
	}

	slack := math.Min(math.Max(fix.AccuracyM, 0), slackM)
	best.Inside = best.DistanceM <= site.RadiusM+slack
	return best, true
}

// Distance é a distância de haversine em metros.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := lat1 * math.Pi / 180
	p2 := lat2 * math.Pi / 180
	dp := (lat2 - lat1) * math.Pi / 180
	dl := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dp/2)*math.Sin(dp/2) + math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
