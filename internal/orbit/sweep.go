package orbit

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"
)

// Пакетные операции ядра. Все вычисления чистые и независимые по парам
// (объект, момент времени), поэтому распараллеливаются пулом воркеров без
// какой-либо координации кроме сбора результатов. Выходы всегда сохраняют
// порядок входа, даже если отдельные сэмплы посчитаны вне очереди.
// Отказ одного сэмпла не прерывает пакет: возвращаются частичные результаты
// плюс список отказавших единиц работы.

// Порог скачка долготы для разрыва трасс на антимеридиане (градусы).
// Обычный шаг LEO-трассы при 30 сек — 2-4° долготы, так что 270° — явный
// переход через ±180°.
const trackGapThresholdDeg = 270.0

// SampleFailure описывает отказ одной единицы работы в пакете.
type SampleFailure struct {
	Index int       // Позиция во входном наборе.
	Time  time.Time // Момент времени сэмпла.
	Err   error     // Причина отказа.
}

// normalizeWorkers приводит количество воркеров к разумному значению.
func normalizeWorkers(workers int) int {
	if workers <= 0 {
		return runtime.NumCPU()
	}
	return workers
}

// SweepStates семплирует инерциальные состояния одного объекта по набору
// моментов времени. Результат выровнен по индексам с times: при отказе
// сэмпла в соответствующей позиции nil, а отказ попадает в список.
func SweepStates(ctx context.Context, adapter *Adapter, rec *ElementRecord, times []time.Time, workers int) ([]*StateVector, []SampleFailure) {
	if len(times) == 0 {
		return nil, nil
	}

	states := make([]*StateVector, len(times))
	failures := runIndexed(ctx, len(times), workers, func(i int) error {
		sv, err := adapter.StateAt(rec, times[i])
		if err != nil {
			return err
		}
		states[i] = sv
		return nil
	}, func(i int) time.Time { return times[i] })

	return states, failures
}

// StatesAtInstant рассчитывает состояния многих объектов на один момент
// времени. Порядок результата совпадает с порядком records.
func StatesAtInstant(ctx context.Context, adapter *Adapter, records []*ElementRecord, t time.Time, workers int) ([]*StateVector, []SampleFailure) {
	if len(records) == 0 {
		return nil, nil
	}

	states := make([]*StateVector, len(records))
	failures := runIndexed(ctx, len(records), workers, func(i int) error {
		sv, err := adapter.StateAt(records[i], t)
		if err != nil {
			return err
		}
		states[i] = sv
		return nil
	}, func(int) time.Time { return t })

	return states, failures
}

// FootprintsAtInstant строит зоны покрытия многих объектов на один момент
// времени. Поворот Земли — чистая функция времени, поэтому вычисляется
// один раз и переиспользуется для всех объектов.
func FootprintsAtInstant(ctx context.Context, adapter *Adapter, records []*ElementRecord, t time.Time, minElevationDeg float64, pointCount int, gapThresholdDeg float64, workers int) ([]*FootprintGeometry, []SampleFailure) {
	if len(records) == 0 {
		return nil, nil
	}

	rotation := NewEarthRotation(t)

	footprints := make([]*FootprintGeometry, len(records))
	failures := runIndexed(ctx, len(records), workers, func(i int) error {
		sv, err := adapter.StateAt(records[i], t)
		if err != nil {
			return err
		}

		ecef := rotation.Transform(sv)
		center := EarthFixedToGeodetic(ecef.Position)

		fp, err := Footprint(center, sv.Altitude(), minElevationDeg, pointCount, gapThresholdDeg)
		if err != nil {
			return err
		}
		footprints[i] = fp
		return nil
	}, func(int) time.Time { return t })

	return footprints, failures
}

// runIndexed раздаёт индексы [0, n) пулу воркеров и собирает отказы.
// Каждый воркер пишет результат в свою позицию выходного среза, поэтому
// общий порядок сохраняется без дополнительной координации.
func runIndexed(ctx context.Context, n, workers int, work func(i int) error, timeAt func(i int) time.Time) []SampleFailure {
	workers = normalizeWorkers(workers)
	if workers > n {
		workers = n
	}

	jobs := make(chan int, workers*2)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []SampleFailure
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := work(i); err != nil {
					mu.Lock()
					failures = append(failures, SampleFailure{Index: i, Time: timeAt(i), Err: err})
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			// Прекращаем раздачу; начатые задачи довершаются.
			break feed
		}
	}
	close(jobs)

	wg.Wait()

	// Отказы в порядке входа, а не в порядке завершения воркеров.
	sortFailures(failures)

	return failures
}

// sortFailures упорядочивает отказы по индексу (сортировка вставками:
// список отказов почти всегда короткий).
func sortFailures(failures []SampleFailure) {
	for i := 1; i < len(failures); i++ {
		for j := i; j > 0 && failures[j].Index < failures[j-1].Index; j-- {
			failures[j], failures[j-1] = failures[j-1], failures[j]
		}
	}
}

// TrackPoint — точка наземной трассы (градусы, готово для JSON/фронтенда).
type TrackPoint struct {
	Lon float64 `json:"lon"` // Долгота, градусы (-180..+180].
	Lat float64 `json:"lat"` // Широта, градусы (-90..+90).
	TS  int64   `json:"ts"`  // Unix timestamp, миллисекунды.
}

// GroundTrack — наземная трасса, разбитая на сегменты по антимеридиану и
// на пройденный/предстоящий участки относительно опорного момента времени.
type GroundTrack struct {
	Past   [][]TrackPoint `json:"past"`   // Пройденный участок трассы.
	Future [][]TrackPoint `json:"future"` // Предстоящий участок трассы.
	Object string         `json:"object"` // Каталожный идентификатор.
}

// Points возвращает все точки плоским срезом (пройденные + предстоящие).
func (gt *GroundTrack) Points() []TrackPoint {
	if gt == nil {
		return nil
	}

	var out []TrackPoint
	for _, seg := range gt.Past {
		out = append(out, seg...)
	}
	for _, seg := range gt.Future {
		out = append(out, seg...)
	}
	return out
}

// GenerateGroundTrack семплирует наземную трассу объекта на интервале
// [start, end] с шагом step, разбивает её по антимеридиану и разделяет
// на прошлое/будущее по моменту now. Отказы отдельных сэмплов не прерывают
// построение: трасса собирается из успешных точек.
func GenerateGroundTrack(ctx context.Context, adapter *Adapter, rec *ElementRecord, start, end, now time.Time, step time.Duration, workers int, logger *slog.Logger) (*GroundTrack, []SampleFailure, error) {
	if rec == nil {
		return nil, nil, ErrNilRecord
	}
	if step <= 0 {
		step = 30 * time.Second
	}
	if end.Before(start) {
		start, end = end, start
	}

	times := make([]time.Time, 0, int(end.Sub(start)/step)+1)
	for t := start; !t.After(end); t = t.Add(step) {
		times = append(times, t)
	}

	states, failures := SweepStates(ctx, adapter, rec, times, workers)

	if logger != nil && len(failures) > 0 {
		logger.Warn("ground track sweep had failed samples",
			"object", rec.ID,
			"failed", len(failures),
			"total", len(times),
		)
	}

	points := make([]TrackPoint, 0, len(states))
	for _, sv := range states {
		if sv == nil {
			continue
		}
		pt := SubpointAt(sv)
		points = append(points, TrackPoint{
			Lon: pt.LonDeg,
			Lat: pt.LatDeg,
			TS:  sv.Time.UnixMilli(),
		})
	}

	track := &GroundTrack{Object: rec.ID}
	if len(points) == 0 {
		return track, failures, nil
	}

	segments := splitTrackAtAntimeridian(points)
	track.Past, track.Future = splitPastFuture(segments, now.UnixMilli())

	return track, failures, nil
}

// splitTrackAtAntimeridian разбивает трассу на сегменты при пересечении
// антимеридиана, добавляя интерполированные точки на границе ±180°,
// чтобы сегменты дотягивались до края карты.
func splitTrackAtAntimeridian(points []TrackPoint) [][]TrackPoint {
	if len(points) == 0 {
		return nil
	}

	var segments [][]TrackPoint
	current := []TrackPoint{points[0]}

	for i := 1; i < len(points); i++ {
		if math.Abs(points[i].Lon-points[i-1].Lon) > trackGapThresholdDeg {
			boundaryPrev, boundaryNext := interpolateAntimeridian(points[i-1], points[i])

			current = append(current, boundaryPrev)
			segments = append(segments, current)

			current = []TrackPoint{boundaryNext, points[i]}
			continue
		}
		current = append(current, points[i])
	}

	if len(current) > 0 {
		segments = append(segments, current)
	}

	return segments
}

// interpolateAntimeridian вычисляет пару точек на границе ±180° при
// пересечении антимеридиана: одну на стороне p1, вторую на стороне p2.
func interpolateAntimeridian(p1, p2 TrackPoint) (TrackPoint, TrackPoint) {
	var boundaryLon1, boundaryLon2, p2LonUnwrapped float64

	if p1.Lon > 0 {
		// Переход +lon -> -lon через +180°.
		boundaryLon1, boundaryLon2 = 180.0, -180.0
		p2LonUnwrapped = p2.Lon + 360.0
	} else {
		// Переход -lon -> +lon через -180°.
		boundaryLon1, boundaryLon2 = -180.0, 180.0
		p2LonUnwrapped = p2.Lon - 360.0
	}

	// Доля пути от p1 до границы (линейная интерполяция по «развёрнутой» долготе).
	dLon := p2LonUnwrapped - p1.Lon
	t := 0.5
	if math.Abs(dLon) > 1e-10 {
		t = (boundaryLon1 - p1.Lon) / dLon
	}
	t = math.Max(0.0, math.Min(1.0, t))

	interpLat := p1.Lat + (p2.Lat-p1.Lat)*t
	interpTS := p1.TS + int64(float64(p2.TS-p1.TS)*t)

	return TrackPoint{Lon: boundaryLon1, Lat: interpLat, TS: interpTS},
		TrackPoint{Lon: boundaryLon2, Lat: interpLat, TS: interpTS}
}

// splitPastFuture разделяет сегменты на пройденный (ts < nowMs) и
// предстоящий (ts >= nowMs) участки. Сегмент, содержащий now, разделяется.
func splitPastFuture(segments [][]TrackPoint, nowMs int64) ([][]TrackPoint, [][]TrackPoint) {
	var past, future [][]TrackPoint

	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}

		if seg[len(seg)-1].TS < nowMs {
			past = append(past, seg)
			continue
		}

		if seg[0].TS >= nowMs {
			future = append(future, seg)
			continue
		}

		splitIdx := -1
		for i, p := range seg {
			if p.TS >= nowMs {
				splitIdx = i
				break
			}
		}

		if splitIdx <= 0 {
			future = append(future, seg)
			continue
		}

		past = append(past, seg[:splitIdx])
		future = append(future, seg[splitIdx:])
	}

	return past, future
}
