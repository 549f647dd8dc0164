package orbit

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidElevation возвращается при минимальном угле места вне [0, 90].
var ErrInvalidElevation = errors.New("minimum elevation must be in [0, 90] degrees")

const (
	// DefaultGeodesicPoints количество точек в геодезических окружностях
	// (границы зон покрытия, терминатор).
	DefaultGeodesicPoints = 240

	// DefaultGapThresholdDeg порог скачка долготы для эвристики разрыва
	// полилиний на антимеридиане, градусы.
	DefaultGapThresholdDeg = 120.0
)

// FootprintGeometry — зона видимости/покрытия спутника: центр (подспутниковая
// точка), угловой радиус в градусах дуги и граница, разбитая на полилинии
// по антимеридиану. Каждая полилиния — упорядоченная последовательность,
// не замкнутая.
type FootprintGeometry struct {
	Center    GeodeticPoint
	RadiusDeg float64
	Segments  [][]GeodeticPoint
}

// FootprintRadiusDeg вычисляет угловой радиус зоны видимости (центральный
// угол Земли) для спутника на высоте altitudeKm при минимальном угле места
// minElevationDeg. Используется сферическое соотношение видимости (теорема
// синусов в треугольнике центр Земли — спутник — точка горизонта):
//
//	λ = 90° − el − asin( R/(R+h) · cos(el) )
//
// Отрицательная высота прижимается к нулю (не ошибка). На нулевой высоте
// соотношение вырождается (треугольник схлопывается); по принятому здесь
// соглашению «спутник на поверхности» видит небесную полусферу до горизонта,
// то есть λ = 90° − el.
func FootprintRadiusDeg(altitudeKm, minElevationDeg float64) (float64, error) {
	if minElevationDeg < 0 || minElevationDeg > 90 {
		return 0, fmt.Errorf("%w: got %.3f", ErrInvalidElevation, minElevationDeg)
	}

	if altitudeKm < 0 {
		altitudeKm = 0
	}

	if altitudeKm == 0 {
		return 90.0 - minElevationDeg, nil
	}

	ratio := EarthRadiusMean / (EarthRadiusMean + altitudeKm)
	elRad := minElevationDeg * Deg2Rad

	lambda := 90.0 - minElevationDeg - Rad2Deg*math.Asin(ratio*math.Cos(elRad))
	if lambda < 0 {
		lambda = 0
	}

	return lambda, nil
}

// GeodesicCircle строит замкнутое кольцо из pointCount точек на сфере:
// азимуты равномерно по 360°, каждая точка отложена на radiusDeg градусов
// дуги большого круга от центра (прямая геодезическая задача).
// Первая точка повторяется последней — кольцо замкнуто до разбиения.
// При pointCount < 3 используется DefaultGeodesicPoints.
func GeodesicCircle(center GeodeticPoint, radiusDeg float64, pointCount int) []GeodeticPoint {
	if pointCount < 3 {
		pointCount = DefaultGeodesicPoints
	}

	lat1 := center.LatDeg * Deg2Rad
	lon1 := center.LonDeg * Deg2Rad
	delta := radiusDeg * Deg2Rad

	sinLat1 := math.Sin(lat1)
	cosLat1 := math.Cos(lat1)
	sinDelta := math.Sin(delta)
	cosDelta := math.Cos(delta)

	ring := make([]GeodeticPoint, 0, pointCount+1)

	for i := 0; i < pointCount; i++ {
		bearing := 2 * math.Pi * float64(i) / float64(pointCount)

		sinLat2 := sinLat1*cosDelta + cosLat1*sinDelta*math.Cos(bearing)
		// Страховка от выхода за [-1, 1] из-за ошибок округления.
		sinLat2 = math.Max(-1, math.Min(1, sinLat2))
		lat2 := math.Asin(sinLat2)

		lon2 := lon1 + math.Atan2(
			math.Sin(bearing)*sinDelta*cosLat1,
			cosDelta-sinLat1*sinLat2,
		)

		ring = append(ring, GeodeticPoint{
			LatDeg: lat2 * Rad2Deg,
			LonDeg: wrap180(lon2 * Rad2Deg),
		})
	}

	// Замыкаем кольцо.
	ring = append(ring, ring[0])

	return ring
}

// SplitOnAntimeridian разбивает последовательность точек на отдельные
// полилинии там, где модуль скачка долготы между соседними точками превышает
// gapThresholdDeg. Это эвристика, а не точный тест пересечения ±180°:
// легитимная геометрия вблизи антимеридиана при типичной плотности точек
// не делает шагов такой величины. Точная реализация детектировала бы
// настоящие пересечения по смене знака долготы вместе с проверкой модуля.
// При gapThresholdDeg <= 0 используется DefaultGapThresholdDeg.
func SplitOnAntimeridian(points []GeodeticPoint, gapThresholdDeg float64) [][]GeodeticPoint {
	if len(points) == 0 {
		return nil
	}

	if gapThresholdDeg <= 0 {
		gapThresholdDeg = DefaultGapThresholdDeg
	}

	var segments [][]GeodeticPoint
	current := []GeodeticPoint{points[0]}

	for i := 1; i < len(points); i++ {
		if math.Abs(points[i].LonDeg-points[i-1].LonDeg) > gapThresholdDeg {
			segments = append(segments, current)
			current = []GeodeticPoint{points[i]}
			continue
		}
		current = append(current, points[i])
	}

	if len(current) > 0 {
		segments = append(segments, current)
	}

	return segments
}

// Footprint строит полную геометрию зоны покрытия: радиус по высоте и
// минимальному углу места, геодезическое кольцо границы и разбиение
// по антимеридиану.
func Footprint(center GeodeticPoint, altitudeKm, minElevationDeg float64, pointCount int, gapThresholdDeg float64) (*FootprintGeometry, error) {
	radius, err := FootprintRadiusDeg(altitudeKm, minElevationDeg)
	if err != nil {
		return nil, err
	}

	ring := GeodesicCircle(center, radius, pointCount)

	return &FootprintGeometry{
		Center:    center,
		RadiusDeg: radius,
		Segments:  SplitOnAntimeridian(ring, gapThresholdDeg),
	}, nil
}

// FootprintForState строит зону покрытия по инерциальному состоянию объекта:
// центр — подспутниковая точка, высота — из модуля радиус-вектора.
func FootprintForState(sv *StateVector, minElevationDeg float64, pointCount int, gapThresholdDeg float64) (*FootprintGeometry, error) {
	if sv == nil {
		return nil, ErrNilState
	}

	center := SubpointAt(sv)

	return Footprint(center, sv.Altitude(), minElevationDeg, pointCount, gapThresholdDeg)
}
