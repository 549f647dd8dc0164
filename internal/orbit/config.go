package orbit

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Константы по умолчанию для конфигурации ядра.
const (
	// DefaultMinElevationDeg минимальный угол места для зон покрытия.
	DefaultMinElevationDeg = 0.0

	// DefaultTrackStep шаг семплирования наземной трассы.
	DefaultTrackStep = 30 * time.Second

	// DefaultWorkers количество воркеров пакетных операций
	// (0 — по числу CPU).
	DefaultWorkers = 0
)

// Config содержит настройки числового ядра визуализации.
type Config struct {
	// GeodesicPoints количество точек в геодезических окружностях
	// (границы зон покрытия, терминатор). По умолчанию: 240.
	GeodesicPoints int `yaml:"geodesic_points"`

	// GapThresholdDeg порог скачка долготы для разбиения колец
	// на антимеридиане, градусы. По умолчанию: 120.
	GapThresholdDeg float64 `yaml:"gap_threshold_deg"`

	// MinElevationDeg минимальный угол места для зон покрытия, градусы [0, 90].
	// По умолчанию: 0.
	MinElevationDeg float64 `yaml:"min_elevation_deg"`

	// StaleAfterDays порог возраста элементов в днях, после которого
	// результат пропагации помечается устаревшим. По умолчанию: 7.
	StaleAfterDays float64 `yaml:"stale_after_days"`

	// TrackStep шаг семплирования наземных трасс. В YAML задаётся строкой
	// Go-длительности ("30s", "1m"). По умолчанию: 30s.
	TrackStep time.Duration `yaml:"track_step"`

	// Workers количество воркеров пакетных операций.
	// 0 — по числу CPU.
	Workers int `yaml:"workers"`
}

// DefaultConfig возвращает конфигурацию со значениями по умолчанию.
func DefaultConfig() *Config {
	return &Config{
		GeodesicPoints:  DefaultGeodesicPoints,
		GapThresholdDeg: DefaultGapThresholdDeg,
		MinElevationDeg: DefaultMinElevationDeg,
		StaleAfterDays:  DefaultStaleAfterDays,
		TrackStep:       DefaultTrackStep,
		Workers:         DefaultWorkers,
	}
}

// UnmarshalYAML декодирует конфигурацию, разбирая track_step из строки
// длительности. Отсутствующие ключи не трогают уже установленные значения,
// поэтому LoadConfig может декодировать поверх DefaultConfig.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		GeodesicPoints  *int     `yaml:"geodesic_points"`
		GapThresholdDeg *float64 `yaml:"gap_threshold_deg"`
		MinElevationDeg *float64 `yaml:"min_elevation_deg"`
		StaleAfterDays  *float64 `yaml:"stale_after_days"`
		TrackStep       *string  `yaml:"track_step"`
		Workers         *int     `yaml:"workers"`
	}

	if err := node.Decode(&raw); err != nil {
		return err
	}

	if raw.GeodesicPoints != nil {
		c.GeodesicPoints = *raw.GeodesicPoints
	}
	if raw.GapThresholdDeg != nil {
		c.GapThresholdDeg = *raw.GapThresholdDeg
	}
	if raw.MinElevationDeg != nil {
		c.MinElevationDeg = *raw.MinElevationDeg
	}
	if raw.StaleAfterDays != nil {
		c.StaleAfterDays = *raw.StaleAfterDays
	}
	if raw.TrackStep != nil {
		d, err := time.ParseDuration(*raw.TrackStep)
		if err != nil {
			return fmt.Errorf("parsing track_step: %w", err)
		}
		c.TrackStep = d
	}
	if raw.Workers != nil {
		c.Workers = *raw.Workers
	}

	return nil
}

// Validate проверяет и корректирует конфигурацию.
// Невалидные значения заменяются значениями по умолчанию; минимальный
// угол места вне [0, 90] — ошибка конфигурации, а не тихая правка.
func (c *Config) Validate() error {
	if c.GeodesicPoints < 3 {
		c.GeodesicPoints = DefaultGeodesicPoints
	}
	if c.GapThresholdDeg <= 0 {
		c.GapThresholdDeg = DefaultGapThresholdDeg
	}
	if c.StaleAfterDays <= 0 {
		c.StaleAfterDays = DefaultStaleAfterDays
	}
	if c.TrackStep <= 0 {
		c.TrackStep = DefaultTrackStep
	}
	if c.Workers < 0 {
		c.Workers = DefaultWorkers
	}

	if c.MinElevationDeg < 0 || c.MinElevationDeg > 90 {
		return fmt.Errorf("%w: min_elevation_deg=%.3f", ErrInvalidElevation, c.MinElevationDeg)
	}

	return nil
}

// LoadConfig читает конфигурацию из YAML файла и валидирует её.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
