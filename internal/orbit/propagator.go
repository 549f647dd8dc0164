package orbit

import (
	"errors"
	"fmt"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// Ошибки пропагации.
var (
	ErrNilRecord          = errors.New("element record is nil")
	ErrRecordMissingLines = errors.New("element record has no raw lines for propagation")
	ErrDivergent          = errors.New("propagation diverged")
)

// GravityModel определяет модель гравитации для SGP4.
type GravityModel int

const (
	// GravityWGS72 — модель WGS-72 (стандарт для TLE).
	GravityWGS72 GravityModel = iota
	// GravityWGS84 — модель WGS-84 (более точная).
	GravityWGS84
)

// DefaultStaleAfterDays порог возраста элементов, после которого результат
// пропагации помечается как устаревший (мягкое предупреждение).
const DefaultStaleAfterDays = 7.0

// StateVector представляет положение и скорость объекта в инерциальной
// системе координат (TEME). Позиция в километрах, скорость в км/с.
// Создаётся на каждый вызов пропагации и не кешируется ядром.
type StateVector struct {
	ID       string    // Каталожный идентификатор объекта.
	Position Vec3      // Позиция в ECI, км.
	Velocity Vec3      // Скорость в ECI, км/с.
	Time     time.Time // Момент времени, которому соответствует состояние.
	Stale    bool      // Эпоха элементов дальше порога от Time (предупреждение, не ошибка).
}

// String возвращает строковое представление StateVector.
func (sv *StateVector) String() string {
	return fmt.Sprintf("ECI[%.3f, %.3f, %.3f km] V[%.6f, %.6f, %.6f km/s] @ %s",
		sv.Position.X, sv.Position.Y, sv.Position.Z,
		sv.Velocity.X, sv.Velocity.Y, sv.Velocity.Z,
		sv.Time.UTC().Format(time.RFC3339),
	)
}

// Radius возвращает расстояние от центра Земли в километрах.
func (sv *StateVector) Radius() float64 {
	return sv.Position.Norm()
}

// Altitude возвращает приблизительную высоту над поверхностью Земли
// в километрах (сферическая модель, средний радиус).
func (sv *StateVector) Altitude() float64 {
	return sv.Radius() - EarthRadiusMean
}

// Speed возвращает скорость объекта в км/с.
func (sv *StateVector) Speed() float64 {
	return sv.Velocity.Norm()
}

// Adapter изолирует все вызывающие стороны от API внешнего SGP4-пропагатора
// (библиотека go-satellite). Это единственная точка контакта с пропагатором.
// Адаптер не хранит состояния между вызовами и не кеширует результаты:
// семплирование временных рядов — ответственность вызывающего (см. sweep.go).
type Adapter struct {
	gravity        GravityModel
	staleAfterDays float64
}

// AdapterOption функция настройки Adapter.
type AdapterOption func(*Adapter)

// WithGravityModel устанавливает модель гравитации SGP4.
func WithGravityModel(g GravityModel) AdapterOption {
	return func(a *Adapter) {
		a.gravity = g
	}
}

// WithStaleAfterDays устанавливает порог устаревания элементов в днях.
func WithStaleAfterDays(days float64) AdapterOption {
	return func(a *Adapter) {
		if days > 0 {
			a.staleAfterDays = days
		}
	}
}

// NewAdapter создаёт адаптер пропагации.
// По умолчанию: модель WGS84, порог устаревания 7 дней.
func NewAdapter(opts ...AdapterOption) *Adapter {
	a := &Adapter{
		gravity:        GravityWGS84,
		staleAfterDays: DefaultStaleAfterDays,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// StateAt рассчитывает инерциальное состояние объекта на момент t.
// Числовой распад пропагатора (NaN в результате — сошедшие с орбиты или
// некорректные элементы) возвращается как ErrDivergent. Устаревшая эпоха —
// не отказ: пропагация выполняется, результат помечается флагом Stale.
func (a *Adapter) StateAt(rec *ElementRecord, t time.Time) (*StateVector, error) {
	if rec == nil {
		return nil, ErrNilRecord
	}

	if rec.Line1 == "" || rec.Line2 == "" {
		return nil, fmt.Errorf("%w: object %s", ErrRecordMissingLines, rec.ID)
	}

	var gravConst satellite.Gravity
	switch a.gravity {
	case GravityWGS72:
		gravConst = satellite.GravityWGS72
	default:
		gravConst = satellite.GravityWGS84
	}

	sat := satellite.TLEToSat(rec.Line1, rec.Line2, gravConst)

	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	position, velocity := satellite.Propagate(
		sat,
		year, int(month), day,
		hour, minute, sec,
	)

	// NaN в позиции — признак числового распада SGP4.
	if isNaN(position.X) || isNaN(position.Y) || isNaN(position.Z) {
		return nil, fmt.Errorf(
			"%w: object %s at %s (possible orbital decay or invalid elements)",
			ErrDivergent, rec.ID, t.UTC().Format(time.RFC3339),
		)
	}

	return &StateVector{
		ID:       rec.ID,
		Position: Vec3{X: position.X, Y: position.Y, Z: position.Z},
		Velocity: Vec3{X: velocity.X, Y: velocity.Y, Z: velocity.Z},
		Time:     t,
		Stale:    rec.IsStaleAt(t, a.staleAfterDays),
	}, nil
}

// StaleAfterDays возвращает действующий порог устаревания.
func (a *Adapter) StaleAfterDays() float64 {
	return a.staleAfterDays
}

// GMST рассчитывает Greenwich Mean Sidereal Time (радианы) для момента t.
// Используется для преобразования ECI -> ECEF.
func GMST(t time.Time) float64 {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	return satellite.GSTimeFromDate(year, int(month), day, hour, minute, sec)
}

// JulianDay рассчитывает юлианскую дату для момента t.
func JulianDay(t time.Time) float64 {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	return satellite.JDay(year, int(month), day, hour, minute, sec)
}

// isNaN проверяет значение на NaN без math.IsNaN (NaN != NaN по IEEE 754).
func isNaN(f float64) bool {
	return f != f
}
