package orbit

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Ошибки построения относительной системы координат.
var (
	ErrNilState          = errors.New("state vector is nil")
	ErrTimestampMismatch = errors.New("master and target states have different timestamps")
	ErrDegenerateBasis   = errors.New("degenerate relative basis: position and velocity are parallel")
)

// degenerateBasisEps — порог вырожденности базиса: синус угла между
// векторами положения и скорости мастера.
const degenerateBasisEps = 1e-9

// RelativeState — положение целевого объекта относительно опорного («мастера»)
// в сопутствующей системе координат radial/in-track/cross-track.
// Компоненты в километрах. Знаковое соглашение: положительный Radial означает,
// что цель дальше от Земли, чем мастер, вдоль вектора положения мастера.
type RelativeState struct {
	Radial     float64   // Вдоль вектора положения мастера, км.
	InTrack    float64   // Вдоль направления движения (дополнение правой тройки), км.
	CrossTrack float64   // Вдоль нормали к плоскости орбиты (r×v), км.
	Time       time.Time // Момент времени обоих состояний.
	MasterID   string    // Идентификатор опорного объекта.
	TargetID   string    // Идентификатор целевого объекта.
}

// Range возвращает расстояние между объектами в километрах.
func (rs *RelativeState) Range() float64 {
	return math.Sqrt(rs.Radial*rs.Radial + rs.InTrack*rs.InTrack + rs.CrossTrack*rs.CrossTrack)
}

// String возвращает строковое представление RelativeState.
func (rs *RelativeState) String() string {
	return fmt.Sprintf("RIC[%.3f, %.3f, %.3f km] %s->%s @ %s",
		rs.Radial, rs.InTrack, rs.CrossTrack,
		rs.MasterID, rs.TargetID,
		rs.Time.UTC().Format(time.RFC3339),
	)
}

// ToRelativeFrame проецирует смещение цели относительно мастера на
// ортонормированный базис, построенный из состояния мастера:
//
//	radial      = единичный вектор положения мастера;
//	cross-track = единичный вектор r×v (нормаль к плоскости орбиты);
//	in-track    = cross-track × radial (замыкает правую тройку).
//
// Оба состояния обязаны относиться к одному моменту времени, иначе
// ErrTimestampMismatch. Если положение и скорость мастера параллельны
// (базис не определён), возвращается ErrDegenerateBasis.
func ToRelativeFrame(master, target *StateVector) (*RelativeState, error) {
	if master == nil || target == nil {
		return nil, ErrNilState
	}

	if !master.Time.Equal(target.Time) {
		return nil, fmt.Errorf("%w: master %s, target %s",
			ErrTimestampMismatch,
			master.Time.UTC().Format(time.RFC3339Nano),
			target.Time.UTC().Format(time.RFC3339Nano),
		)
	}

	rNorm := master.Position.Norm()
	vNorm := master.Velocity.Norm()
	if rNorm == 0 || vNorm == 0 {
		return nil, fmt.Errorf("%w: zero position or velocity", ErrDegenerateBasis)
	}

	h := master.Position.Cross(master.Velocity)

	// |r×v| = |r||v|·sin(угла): сравниваем синус с порогом.
	if h.Norm() < degenerateBasisEps*rNorm*vNorm {
		return nil, ErrDegenerateBasis
	}

	radial := master.Position.Normalized()
	crossTrack := h.Normalized()
	inTrack := crossTrack.Cross(radial)

	delta := target.Position.Sub(master.Position)

	return &RelativeState{
		Radial:     delta.Dot(radial),
		InTrack:    delta.Dot(inTrack),
		CrossTrack: delta.Dot(crossTrack),
		Time:       master.Time,
		MasterID:   master.ID,
		TargetID:   target.ID,
	}, nil
}
