package orbit

import (
	"math"
	"time"
)

// Константы WGS84 эллипсоида и сферической модели Земли.
const (
	// WGS84A — экваториальный радиус Земли (большая полуось), км.
	WGS84A = 6378.137

	// WGS84F — сплюснутость эллипсоида.
	WGS84F = 1.0 / 298.257223563

	// WGS84B — полярный радиус Земли (малая полуось), км.
	WGS84B = WGS84A * (1.0 - WGS84F)

	// WGS84E2 — квадрат первого эксцентриситета.
	WGS84E2 = 2*WGS84F - WGS84F*WGS84F

	// WGS84EP2 — квадрат второго эксцентриситета.
	WGS84EP2 = WGS84E2 / (1.0 - WGS84E2)

	// EarthRadiusMean — средний радиус Земли (сферическая модель), км.
	EarthRadiusMean = 6371.0

	// OmegaEarth — угловая скорость вращения Земли, рад/с.
	OmegaEarth = 7.292115e-5

	// Deg2Rad — коэффициент перевода градусов в радианы.
	Deg2Rad = math.Pi / 180.0

	// Rad2Deg — коэффициент перевода радианов в градусы.
	Rad2Deg = 180.0 / math.Pi
)

// Vec3 представляет трёхмерный вектор в произвольной системе координат.
type Vec3 struct {
	X, Y, Z float64
}

// Norm возвращает длину вектора.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalized возвращает единичный вектор того же направления.
func (v Vec3) Normalized() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	return Vec3{X: v.X / n, Y: v.Y / n, Z: v.Z / n}
}

// Add возвращает сумму векторов.
func (v Vec3) Add(u Vec3) Vec3 {
	return Vec3{X: v.X + u.X, Y: v.Y + u.Y, Z: v.Z + u.Z}
}

// Sub возвращает разность векторов.
func (v Vec3) Sub(u Vec3) Vec3 {
	return Vec3{X: v.X - u.X, Y: v.Y - u.Y, Z: v.Z - u.Z}
}

// Scale возвращает вектор, умноженный на скаляр.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot возвращает скалярное произведение.
func (v Vec3) Dot(u Vec3) float64 {
	return v.X*u.X + v.Y*u.Y + v.Z*u.Z
}

// Cross возвращает векторное произведение.
func (v Vec3) Cross(u Vec3) Vec3 {
	return Vec3{
		X: v.Y*u.Z - v.Z*u.Y,
		Y: v.Z*u.X - v.X*u.Z,
		Z: v.X*u.Y - v.Y*u.X,
	}
}

// GeodeticPoint представляет географические координаты.
// На границах компонентов все углы в градусах: широта [-90, 90],
// долгота нормализована в (-180, 180], высота над эллипсоидом в км.
type GeodeticPoint struct {
	LatDeg float64 // Широта, градусы.
	LonDeg float64 // Долгота, градусы.
	AltKm  float64 // Высота, км.
}

// EarthRotation — предвычисленный поворот Земли на момент времени.
// Угол поворота — чистая функция времени (GMST), без входа от спутника,
// поэтому при обработке многих объектов на один момент времени поворот
// вычисляется один раз и переиспользуется.
type EarthRotation struct {
	Time    time.Time
	GMSTRad float64

	sinGMST float64
	cosGMST float64
}

// NewEarthRotation вычисляет поворот Земли (GMST) на момент t.
func NewEarthRotation(t time.Time) *EarthRotation {
	gmst := GMST(t)
	return &EarthRotation{
		Time:    t,
		GMSTRad: gmst,
		sinGMST: math.Sin(gmst),
		cosGMST: math.Cos(gmst),
	}
}

// Apply поворачивает вектор из ECI (TEME) в ECEF (поворот вокруг оси Z).
func (r *EarthRotation) Apply(v Vec3) Vec3 {
	return Vec3{
		X: v.X*r.cosGMST + v.Y*r.sinGMST,
		Y: -v.X*r.sinGMST + v.Y*r.cosGMST,
		Z: v.Z,
	}
}

// ApplyInverse поворачивает вектор из ECEF обратно в ECI (TEME).
func (r *EarthRotation) ApplyInverse(v Vec3) Vec3 {
	return Vec3{
		X: v.X*r.cosGMST - v.Y*r.sinGMST,
		Y: v.X*r.sinGMST + v.Y*r.cosGMST,
		Z: v.Z,
	}
}

// Transform переводит StateVector из ECI в ECEF.
// Скорость получает член переноса -ω×r: ECEF вращается вместе с Землёй.
func (r *EarthRotation) Transform(sv *StateVector) *StateVector {
	if sv == nil {
		return nil
	}

	pos := r.Apply(sv.Position)
	vel := r.Apply(sv.Velocity)

	// ω×r для ω = (0, 0, OmegaEarth): (-ω·ry, ω·rx, 0).
	vel.X += OmegaEarth * pos.Y
	vel.Y -= OmegaEarth * pos.X

	return &StateVector{
		ID:       sv.ID,
		Position: pos,
		Velocity: vel,
		Time:     sv.Time,
		Stale:    sv.Stale,
	}
}

// InertialToEarthFixed переводит состояние из ECI в ECEF на момент sv.Time.
// Для пачки объектов на один момент времени создайте EarthRotation один раз
// и вызывайте Transform напрямую.
func InertialToEarthFixed(sv *StateVector) *StateVector {
	if sv == nil {
		return nil
	}
	return NewEarthRotation(sv.Time).Transform(sv)
}

// EarthFixedToGeodetic преобразует ECEF-позицию (км) в геодезические координаты.
// Используется замкнутая форма Bowring (один шаг, без итераций).
// На полюсах широта ±90°, долгота по соглашению 0.
func EarthFixedToGeodetic(pos Vec3) GeodeticPoint {
	p := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y)

	// Полюс: долгота не определена, фиксируем 0.
	if p < 1e-9 {
		lat := 90.0
		if pos.Z < 0 {
			lat = -90.0
		}
		return GeodeticPoint{
			LatDeg: lat,
			LonDeg: 0,
			AltKm:  math.Abs(pos.Z) - WGS84B,
		}
	}

	lon := math.Atan2(pos.Y, pos.X)

	// Замкнутая форма Bowring: параметрическая широта, затем геодезическая.
	beta := math.Atan2(WGS84A*pos.Z, WGS84B*p)
	sinBeta := math.Sin(beta)
	cosBeta := math.Cos(beta)

	lat := math.Atan2(
		pos.Z+WGS84EP2*WGS84B*sinBeta*sinBeta*sinBeta,
		p-WGS84E2*WGS84A*cosBeta*cosBeta*cosBeta,
	)

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	radiusN := WGS84A / math.Sqrt(1.0-WGS84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - radiusN
	} else {
		alt = math.Abs(pos.Z)/math.Abs(sinLat) - radiusN*(1.0-WGS84E2)
	}

	return GeodeticPoint{
		LatDeg: lat * Rad2Deg,
		LonDeg: wrap180(lon * Rad2Deg),
		AltKm:  alt,
	}
}

// GeodeticToEarthFixed преобразует геодезические координаты в ECEF (км).
func GeodeticToEarthFixed(pt GeodeticPoint) Vec3 {
	lat := pt.LatDeg * Deg2Rad
	lon := pt.LonDeg * Deg2Rad

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// radiusN — радиус кривизны в первом вертикале.
	radiusN := WGS84A / math.Sqrt(1.0-WGS84E2*sinLat*sinLat)

	return Vec3{
		X: (radiusN + pt.AltKm) * cosLat * math.Cos(lon),
		Y: (radiusN + pt.AltKm) * cosLat * math.Sin(lon),
		Z: (radiusN*(1.0-WGS84E2) + pt.AltKm) * sinLat,
	}
}

// SubpointAt возвращает геодезическую подспутниковую точку для состояния sv.
func SubpointAt(sv *StateVector) GeodeticPoint {
	ecef := InertialToEarthFixed(sv)
	return EarthFixedToGeodetic(ecef.Position)
}

// wrap180 нормализует долготу в диапазон (-180, 180].
func wrap180(deg float64) float64 {
	lon := math.Mod(deg+180.0, 360.0)
	if lon <= 0 {
		lon += 360.0
	}
	return lon - 180.0
}
