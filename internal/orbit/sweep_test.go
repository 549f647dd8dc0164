package orbit

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestSweepStates_OrderPreserved(t *testing.T) {
	t.Parallel()

	rec := parseTestRecord(t, threeLine(issName, issLine1, issLine2))
	adapter := NewAdapter()

	times := make([]time.Time, 10)
	for i := range times {
		times[i] = issEpoch.Add(time.Duration(i) * time.Minute)
	}

	states, failures := SweepStates(context.Background(), adapter, rec, times, 4)

	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(states) != len(times) {
		t.Fatalf("got %d states, want %d", len(states), len(times))
	}

	// Выравнивание по индексам: i-е состояние соответствует i-му моменту.
	for i, sv := range states {
		if sv == nil {
			t.Fatalf("state %d is nil", i)
		}
		if !sv.Time.Equal(times[i]) {
			t.Errorf("state %d time = %v, want %v", i, sv.Time, times[i])
		}
	}
}

func TestSweepStates_Empty(t *testing.T) {
	t.Parallel()

	rec := parseTestRecord(t, threeLine(issName, issLine1, issLine2))

	states, failures := SweepStates(context.Background(), NewAdapter(), rec, nil, 4)
	if states != nil || failures != nil {
		t.Errorf("empty sweep: states=%v failures=%v, want nil/nil", states, failures)
	}
}

func TestSweepStates_AllFail(t *testing.T) {
	t.Parallel()

	// Запись без строк TLE: каждый сэмпл отказывает, пакет не прерывается.
	broken := &ElementRecord{ID: "00001"}
	times := []time.Time{issEpoch, issEpoch.Add(time.Minute), issEpoch.Add(2 * time.Minute)}

	states, failures := SweepStates(context.Background(), NewAdapter(), broken, times, 2)

	if len(states) != 3 {
		t.Fatalf("got %d states, want 3", len(states))
	}
	for i, sv := range states {
		if sv != nil {
			t.Errorf("state %d = %v, want nil", i, sv)
		}
	}

	if len(failures) != 3 {
		t.Fatalf("got %d failures, want 3", len(failures))
	}
	// Отказы отсортированы по индексу входа.
	for i, f := range failures {
		if f.Index != i {
			t.Errorf("failure %d has Index %d", i, f.Index)
		}
		if !f.Time.Equal(times[i]) {
			t.Errorf("failure %d time = %v, want %v", i, f.Time, times[i])
		}
		if !errors.Is(f.Err, ErrRecordMissingLines) {
			t.Errorf("failure %d err = %v, want ErrRecordMissingLines", i, f.Err)
		}
	}
}

func TestStatesAtInstant_PartialFailure(t *testing.T) {
	t.Parallel()

	iss := parseTestRecord(t, threeLine(issName, issLine1, issLine2))
	geo := parseTestRecord(t, threeLine(geoName, geoLine1, geoLine2))
	broken := &ElementRecord{ID: "00001"}

	records := []*ElementRecord{iss, broken, geo}
	states, failures := StatesAtInstant(context.Background(), NewAdapter(), records, issEpoch, 3)

	if len(states) != 3 {
		t.Fatalf("got %d states, want 3", len(states))
	}
	if states[0] == nil || states[2] == nil {
		t.Error("healthy records must produce states")
	}
	if states[1] != nil {
		t.Error("broken record must leave a nil slot")
	}

	if len(failures) != 1 || failures[0].Index != 1 {
		t.Fatalf("failures = %v, want a single failure at index 1", failures)
	}
}

func TestFootprintsAtInstant(t *testing.T) {
	t.Parallel()

	iss := parseTestRecord(t, threeLine(issName, issLine1, issLine2))
	geo := parseTestRecord(t, threeLine(geoName, geoLine1, geoLine2))

	footprints, failures := FootprintsAtInstant(
		context.Background(), NewAdapter(),
		[]*ElementRecord{iss, geo}, issEpoch,
		0, 120, DefaultGapThresholdDeg, 2,
	)

	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(footprints) != 2 {
		t.Fatalf("got %d footprints, want 2", len(footprints))
	}

	// LEO видит ~20° дуги, GEO — ~81°.
	if r := footprints[0].RadiusDeg; r < 18 || r > 23 {
		t.Errorf("ISS footprint radius = %v, want ~20", r)
	}
	if r := footprints[1].RadiusDeg; math.Abs(r-81.3) > 0.5 {
		t.Errorf("GEO footprint radius = %v, want ~81.3", r)
	}
}

func TestRunIndexed_CancelledContext(t *testing.T) {
	t.Parallel()

	rec := parseTestRecord(t, threeLine(issName, issLine1, issLine2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	times := make([]time.Time, 100)
	for i := range times {
		times[i] = issEpoch.Add(time.Duration(i) * time.Minute)
	}

	// Отменённый контекст: раздача прекращается, вызов возвращается,
	// срез результатов сохраняет длину входа.
	states, _ := SweepStates(ctx, NewAdapter(), rec, times, 4)
	if len(states) != len(times) {
		t.Fatalf("got %d states, want %d", len(states), len(times))
	}
}

func TestSortFailures(t *testing.T) {
	t.Parallel()

	failures := []SampleFailure{{Index: 4}, {Index: 0}, {Index: 2}, {Index: 1}}
	sortFailures(failures)

	for i := 1; i < len(failures); i++ {
		if failures[i].Index < failures[i-1].Index {
			t.Fatalf("failures not sorted: %v", failures)
		}
	}
}

func TestSplitTrackAtAntimeridian(t *testing.T) {
	t.Parallel()

	points := []TrackPoint{
		{Lon: 170, Lat: 10, TS: 0},
		{Lon: 178, Lat: 11, TS: 1000},
		{Lon: -178, Lat: 12, TS: 2000}, // Переход через +180°.
		{Lon: -170, Lat: 13, TS: 3000},
	}

	segments := splitTrackAtAntimeridian(points)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}

	first := segments[0]
	second := segments[1]

	// Сегменты дотягиваются до края карты интерполированными точками.
	if last := first[len(first)-1]; last.Lon != 180 {
		t.Errorf("first segment must end at +180, got %v", last.Lon)
	}
	if second[0].Lon != -180 {
		t.Errorf("second segment must start at -180, got %v", second[0].Lon)
	}

	// Интерполяция: граница посередине между 178 и -178 (развёрнутая 182).
	boundary := first[len(first)-1]
	if math.Abs(boundary.Lat-11.5) > 1e-9 {
		t.Errorf("boundary lat = %v, want 11.5", boundary.Lat)
	}
	if boundary.TS != 1500 {
		t.Errorf("boundary ts = %v, want 1500", boundary.TS)
	}
}

func TestSplitPastFuture(t *testing.T) {
	t.Parallel()

	segments := [][]TrackPoint{
		{{TS: 0}, {TS: 1000}},           // Полностью в прошлом.
		{{TS: 2000}, {TS: 3000}, {TS: 4000}}, // Содержит now.
		{{TS: 5000}, {TS: 6000}},        // Полностью в будущем.
	}

	past, future := splitPastFuture(segments, 3000)

	if len(past) != 2 {
		t.Fatalf("got %d past segments, want 2", len(past))
	}
	if len(future) != 2 {
		t.Fatalf("got %d future segments, want 2", len(future))
	}

	// Сегмент с now режется по границе: [2000] уходит в прошлое, [3000, 4000] — в будущее.
	if len(past[1]) != 1 || past[1][0].TS != 2000 {
		t.Errorf("split past part = %v", past[1])
	}
	if len(future[0]) != 2 || future[0][0].TS != 3000 {
		t.Errorf("split future part = %v", future[0])
	}
}

func TestGenerateGroundTrack(t *testing.T) {
	t.Parallel()

	rec := parseTestRecord(t, threeLine(issName, issLine1, issLine2))
	adapter := NewAdapter()

	// Полтора периода с шагом в минуту вокруг эпохи.
	start := issEpoch.Add(-45 * time.Minute)
	end := issEpoch.Add(90 * time.Minute)

	track, failures, err := GenerateGroundTrack(
		context.Background(), adapter, rec,
		start, end, issEpoch,
		time.Minute, 4, nil,
	)
	if err != nil {
		t.Fatalf("GenerateGroundTrack: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}

	points := track.Points()
	if len(points) < 130 {
		t.Fatalf("got %d points, want the full 136-sample sweep", len(points))
	}
	if track.Object != "25544" {
		t.Errorf("Object = %q, want 25544", track.Object)
	}

	if len(track.Past) == 0 || len(track.Future) == 0 {
		t.Error("track spanning now must have both past and future parts")
	}

	for _, seg := range append(append([][]TrackPoint{}, track.Past...), track.Future...) {
		for i, pt := range seg {
			if pt.Lon < -180 || pt.Lon > 180 {
				t.Errorf("point lon = %v, want [-180, 180]", pt.Lon)
			}
			if math.Abs(pt.Lat) > 52.5 {
				t.Errorf("point lat = %v exceeds the ISS inclination band", pt.Lat)
			}
			if i > 0 && math.Abs(pt.Lon-seg[i-1].Lon) > trackGapThresholdDeg {
				t.Errorf("intra-segment longitude jump %v", math.Abs(pt.Lon-seg[i-1].Lon))
			}
		}
	}

	// Время внутри сегментов монотонно растёт.
	for _, seg := range track.Future {
		for i := 1; i < len(seg); i++ {
			if seg[i].TS < seg[i-1].TS {
				t.Fatal("timestamps must be non-decreasing inside a segment")
			}
		}
	}
}

func TestGenerateGroundTrack_NilRecord(t *testing.T) {
	t.Parallel()

	_, _, err := GenerateGroundTrack(
		context.Background(), NewAdapter(), nil,
		issEpoch, issEpoch.Add(time.Hour), issEpoch,
		time.Minute, 1, nil,
	)
	if !errors.Is(err, ErrNilRecord) {
		t.Errorf("error = %v, want ErrNilRecord", err)
	}
}

func TestNormalizeWorkers(t *testing.T) {
	t.Parallel()

	if got := normalizeWorkers(4); got != 4 {
		t.Errorf("normalizeWorkers(4) = %d", got)
	}
	if got := normalizeWorkers(0); got < 1 {
		t.Errorf("normalizeWorkers(0) = %d, want >= 1", got)
	}
	if got := normalizeWorkers(-3); got < 1 {
		t.Errorf("normalizeWorkers(-3) = %d, want >= 1", got)
	}
}
