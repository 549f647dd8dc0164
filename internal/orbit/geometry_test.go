package orbit

import (
	"errors"
	"math"
	"testing"
)

// angularDistanceDeg — дуга большого круга между точками, градусы (haversine).
func angularDistanceDeg(a, b GeodeticPoint) float64 {
	lat1 := a.LatDeg * Deg2Rad
	lat2 := b.LatDeg * Deg2Rad
	dLat := (b.LatDeg - a.LatDeg) * Deg2Rad
	dLon := (b.LonDeg - a.LonDeg) * Deg2Rad

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * math.Asin(math.Min(1, math.Sqrt(h))) * Rad2Deg
}

func TestFootprintRadiusDeg(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		altKm   float64
		elevDeg float64
		want    float64
		tol     float64
		wantErr bool
	}{
		{"surface at zero elevation sees the sky cap", 0, 0, 90, 1e-12, false},
		{"surface at 30 deg", 0, 30, 60, 1e-12, false},
		{"negative altitude clamps to surface", -5, 10, 80, 1e-12, false},
		{"zenith-only is a point", 550, 90, 0, 1e-9, false},
		{"GEO horizon", 35786, 0, 81.3, 0.2, false},
		{"ISS horizon", 420, 0, 20.2, 0.3, false},
		{"ISS at 10 deg elevation", 420, 10, 12.5, 0.5, false},
		{"negative elevation rejected", 420, -1, 0, 0, true},
		{"elevation above zenith rejected", 420, 91, 0, 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := FootprintRadiusDeg(tt.altKm, tt.elevDeg)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidElevation) {
					t.Errorf("error = %v, want ErrInvalidElevation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FootprintRadiusDeg: %v", err)
			}
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("radius = %v, want %v ± %v", got, tt.want, tt.tol)
			}
		})
	}
}

func TestFootprintRadiusDeg_Monotonic(t *testing.T) {
	t.Parallel()

	// Радиус растёт с высотой и убывает с углом места.
	r1, _ := FootprintRadiusDeg(400, 5)
	r2, _ := FootprintRadiusDeg(800, 5)
	if r2 <= r1 {
		t.Errorf("radius must grow with altitude: %v -> %v", r1, r2)
	}

	r3, _ := FootprintRadiusDeg(400, 25)
	if r3 >= r1 {
		t.Errorf("radius must shrink with elevation: %v -> %v", r1, r3)
	}

	// То же для GEO: подъём минимального угла места строго сужает зону.
	g0, _ := FootprintRadiusDeg(35786, 0)
	g5, _ := FootprintRadiusDeg(35786, 5)
	if g5 >= g0 {
		t.Errorf("GEO radius at 5° = %v, must be below the 0° value %v", g5, g0)
	}
}

func TestGeodesicCircle(t *testing.T) {
	t.Parallel()

	center := GeodeticPoint{LatDeg: 40, LonDeg: -75}
	ring := GeodesicCircle(center, 10, 36)

	// Кольцо замкнуто: 36 точек плюс повтор первой.
	if len(ring) != 37 {
		t.Fatalf("ring length = %d, want 37", len(ring))
	}
	if ring[0] != ring[len(ring)-1] {
		t.Error("ring must close on its first point")
	}

	for i, pt := range ring {
		if d := angularDistanceDeg(center, pt); math.Abs(d-10) > 1e-6 {
			t.Errorf("point %d: distance from center = %v, want 10", i, d)
		}
		if pt.LonDeg <= -180 || pt.LonDeg > 180 {
			t.Errorf("point %d: lon = %v, want (-180, 180]", i, pt.LonDeg)
		}
	}
}

func TestGeodesicCircle_DefaultPointCount(t *testing.T) {
	t.Parallel()

	ring := GeodesicCircle(GeodeticPoint{}, 5, 0)
	if len(ring) != DefaultGeodesicPoints+1 {
		t.Errorf("ring length = %d, want %d", len(ring), DefaultGeodesicPoints+1)
	}
}

func TestGeodesicCircle_AroundPole(t *testing.T) {
	t.Parallel()

	// Кольцо вокруг полюса: все точки на одной широте.
	ring := GeodesicCircle(GeodeticPoint{LatDeg: 90}, 10, 24)
	for i, pt := range ring {
		if math.Abs(pt.LatDeg-80) > 1e-6 {
			t.Errorf("point %d: lat = %v, want 80", i, pt.LatDeg)
		}
	}
}

func TestSplitOnAntimeridian(t *testing.T) {
	t.Parallel()

	// Кольцо у антимеридиана: долготы скачут между +179 и -179,
	// разбиение обязано дать минимум два сегмента без больших скачков внутри.
	ring := GeodesicCircle(GeodeticPoint{LatDeg: 0, LonDeg: 179}, 5, 72)
	segments := SplitOnAntimeridian(ring, DefaultGapThresholdDeg)

	if len(segments) < 2 {
		t.Fatalf("got %d segments, want >= 2 for a ring crossing ±180°", len(segments))
	}

	total := 0
	for si, seg := range segments {
		total += len(seg)
		for i := 1; i < len(seg); i++ {
			if jump := math.Abs(seg[i].LonDeg - seg[i-1].LonDeg); jump > DefaultGapThresholdDeg {
				t.Errorf("segment %d: longitude jump %v inside a segment", si, jump)
			}
		}
	}
	if total != len(ring) {
		t.Errorf("split lost points: %d -> %d", len(ring), total)
	}
}

func TestSplitOnAntimeridian_NoCrossing(t *testing.T) {
	t.Parallel()

	ring := GeodesicCircle(GeodeticPoint{LatDeg: 45, LonDeg: 10}, 15, 48)
	segments := SplitOnAntimeridian(ring, DefaultGapThresholdDeg)

	if len(segments) != 1 {
		t.Errorf("got %d segments, want 1 for a ring away from ±180°", len(segments))
	}
}

func TestSplitOnAntimeridian_Edge(t *testing.T) {
	t.Parallel()

	if got := SplitOnAntimeridian(nil, 120); got != nil {
		t.Errorf("empty input: got %v, want nil", got)
	}

	// Неположительный порог заменяется значением по умолчанию.
	pts := []GeodeticPoint{{LonDeg: 179}, {LonDeg: -179}}
	if got := SplitOnAntimeridian(pts, 0); len(got) != 2 {
		t.Errorf("zero threshold: got %d segments, want 2", len(got))
	}
}

func TestFootprint(t *testing.T) {
	t.Parallel()

	center := GeodeticPoint{LatDeg: 51.5, LonDeg: 30.2}
	fp, err := Footprint(center, 420, 0, 120, DefaultGapThresholdDeg)
	if err != nil {
		t.Fatalf("Footprint: %v", err)
	}

	if fp.Center != center {
		t.Errorf("Center = %v, want %v", fp.Center, center)
	}
	if fp.RadiusDeg < 19 || fp.RadiusDeg > 21 {
		t.Errorf("RadiusDeg = %v, want ~20 for ISS altitude", fp.RadiusDeg)
	}
	if len(fp.Segments) == 0 {
		t.Fatal("footprint must have boundary segments")
	}

	if _, err := Footprint(center, 420, 95, 120, DefaultGapThresholdDeg); !errors.Is(err, ErrInvalidElevation) {
		t.Errorf("invalid elevation error = %v, want ErrInvalidElevation", err)
	}
}

func TestFootprintForState(t *testing.T) {
	t.Parallel()

	rec := parseTestRecord(t, threeLine(issName, issLine1, issLine2))
	sv, err := NewAdapter().StateAt(rec, issEpoch)
	if err != nil {
		t.Fatalf("StateAt: %v", err)
	}

	fp, err := FootprintForState(sv, 0, 120, DefaultGapThresholdDeg)
	if err != nil {
		t.Fatalf("FootprintForState: %v", err)
	}

	// Центр — подспутниковая точка.
	if sub := SubpointAt(sv); fp.Center != sub {
		t.Errorf("Center = %v, want subpoint %v", fp.Center, sub)
	}

	if _, err := FootprintForState(nil, 0, 120, DefaultGapThresholdDeg); !errors.Is(err, ErrNilState) {
		t.Errorf("nil state error = %v, want ErrNilState", err)
	}
}
