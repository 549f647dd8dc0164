package orbit

import (
	"math"
	"time"
)

// Солнечная геометрия не зависит от спутников: единственный вход — момент
// времени. Положение Солнца берётся из аналитического приближения низкого
// порядка (ряды Astronomical Almanac), точность лучше градуса на интервале
// в десятки лет — достаточно для подсолнечной точки и терминатора.

// SunEquatorial вычисляет видимые экваториальные координаты Солнца
// (прямое восхождение и склонение, градусы) на момент t.
func SunEquatorial(t time.Time) (raDeg, decDeg float64) {
	jd := JulianDay(t)

	// Юлианские столетия от J2000.0.
	T := (jd - 2451545.0) / 36525.0

	// Средняя долгота Солнца (градусы).
	L0 := 280.46646 + 36000.76983*T + 0.0003032*T*T
	L0 = normalize360(L0)

	// Средняя аномалия Солнца (градусы).
	M := 357.52911 + 35999.05029*T - 0.0001537*T*T
	M = normalize360(M)
	Mrad := M * Deg2Rad

	// Уравнение центра (градусы).
	C := (1.914602 - 0.004817*T - 0.000014*T*T) * math.Sin(Mrad)
	C += (0.019993 - 0.000101*T) * math.Sin(2*Mrad)
	C += 0.000289 * math.Sin(3*Mrad)

	// Истинная долгота Солнца.
	sunLon := L0 + C

	// Видимая долгота с поправкой на аберрацию и нутацию.
	omega := 125.04 - 1934.136*T
	sunLonApp := sunLon - 0.00569 - 0.00478*math.Sin(omega*Deg2Rad)

	// Средний наклон эклиптики с поправкой.
	eps0 := 23.439291 - 0.0130042*T - 0.00000016*T*T + 0.000000504*T*T*T
	eps := eps0 + 0.00256*math.Cos(omega*Deg2Rad)

	sunLonRad := sunLonApp * Deg2Rad
	epsRad := eps * Deg2Rad

	// Прямое восхождение.
	ra := math.Atan2(math.Cos(epsRad)*math.Sin(sunLonRad), math.Cos(sunLonRad))
	raDeg = ra * Rad2Deg
	if raDeg < 0 {
		raDeg += 360
	}

	// Склонение.
	dec := math.Asin(math.Sin(epsRad) * math.Sin(sunLonRad))
	decDeg = dec * Rad2Deg

	return raDeg, decDeg
}

// SubsolarPoint вычисляет точку на поверхности Земли, над которой Солнце
// находится в зените на момент t. Широта равна склонению Солнца, долгота —
// прямому восхождению за вычетом угла поворота Земли (GMST).
func SubsolarPoint(t time.Time) GeodeticPoint {
	raDeg, decDeg := SunEquatorial(t)
	gmstDeg := GMST(t) * Rad2Deg

	return GeodeticPoint{
		LatDeg: decDeg,
		LonDeg: wrap180(raDeg - gmstDeg),
	}
}

// TerminatorGeometry — граница дня и ночи: подсолнечная точка и кольцо
// терминатора, разбитое на полилинии по антимеридиану (тот же инвариант,
// что у FootprintGeometry).
type TerminatorGeometry struct {
	Subsolar GeodeticPoint
	Segments [][]GeodeticPoint
}

// Terminator строит границу дня и ночи на момент t. Геометрически терминатор —
// геодезическая окружность углового радиуса 90°, центрированная в антисолнечной
// точке (в 180° от подсолнечной).
func Terminator(t time.Time, pointCount int, gapThresholdDeg float64) *TerminatorGeometry {
	subsolar := SubsolarPoint(t)

	antisolar := GeodeticPoint{
		LatDeg: -subsolar.LatDeg,
		LonDeg: wrap180(subsolar.LonDeg + 180.0),
	}

	ring := GeodesicCircle(antisolar, 90.0, pointCount)

	return &TerminatorGeometry{
		Subsolar: subsolar,
		Segments: SplitOnAntimeridian(ring, gapThresholdDeg),
	}
}

// normalize360 приводит угол к диапазону [0, 360).
func normalize360(deg float64) float64 {
	deg = math.Mod(deg, 360.0)
	if deg < 0 {
		deg += 360.0
	}
	return deg
}
