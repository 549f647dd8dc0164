// Package orbit реализует числовое ядро визуализации космической обстановки:
// парсинг наборов орбитальных элементов, пропагацию через внешнюю SGP4-библиотеку,
// преобразования систем координат, геометрию зон покрытия и солнечную геометрию.
package orbit

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Ошибки парсинга наборов орбитальных элементов.
var (
	ErrInvalidElementFormat = errors.New("invalid element set format")
	ErrChecksumMismatch     = errors.New("element line checksum mismatch")
	ErrLineTooShort         = errors.New("element line too short")
	ErrIDMismatch           = errors.New("catalog ID mismatch between lines")
	ErrInvalidAlpha5        = errors.New("invalid Alpha-5 catalog ID format")
)

// alpha5Map маппинг букв Alpha-5 формата на числовые префиксы.
// Alpha-5 используется для каталожных номеров > 99999 (например, Starlink).
// Буквы I и O не используются (путаются с 1 и 0).
var alpha5Map = map[byte]int{
	'A': 10, 'B': 11, 'C': 12, 'D': 13, 'E': 14, 'F': 15, 'G': 16, 'H': 17,
	'J': 18, 'K': 19, 'L': 20, 'M': 21, 'N': 22,
	'P': 23, 'Q': 24, 'R': 25, 'S': 26, 'T': 27, 'U': 28, 'V': 29, 'W': 30,
	'X': 31, 'Y': 32, 'Z': 33,
}

// ElementLineLength длина строки данных TLE (включая контрольную сумму).
const ElementLineLength = 69

// ElementRecord представляет один набор орбитальных элементов (TLE) на одну эпоху.
// Формат описан: https://celestrak.org/NORAD/documentation/tle-fmt.php
// Запись неизменяема после парсинга; хранилище владеет записями,
// преобразования только читают их.
type ElementRecord struct {
	ID             string    // Каталожный идентификатор как в TLE (5 символов, возможен Alpha-5).
	NoradID        int       // Декодированный числовой NORAD ID.
	Name           string    // Имя объекта (из строки 0, если есть).
	Classification string    // Классификация: U=Unclassified, C=Classified, S=Secret.
	IntlDesignator string    // Международное обозначение (COSPAR ID).
	Epoch          time.Time // Эпоха элементов (UTC, с точностью до долей суток).
	MeanMotionDot  float64   // Первая производная mean motion (оборотов/день²).
	MeanMotionDot2 float64   // Вторая производная mean motion (оборотов/день³).
	Bstar          float64   // Баллистический коэффициент B* (1/земных радиусов).
	EphemerisType  int       // Тип эфемерид (обычно 0).
	ElementSetNo   int       // Номер набора элементов.
	Inclination    float64   // Наклонение орбиты (градусы).
	RAAN           float64   // Долгота восходящего узла (градусы).
	Eccentricity   float64   // Эксцентриситет (безразмерный, 0-1).
	ArgOfPerigee   float64   // Аргумент перигея (градусы).
	MeanAnomaly    float64   // Средняя аномалия (градусы).
	MeanMotion     float64   // Среднее движение (оборотов/день).
	RevNumber      int       // Номер витка на эпоху.
	Line1          string    // Оригинальная строка 1 (нужна пропагатору).
	Line2          string    // Оригинальная строка 2 (нужна пропагатору).
}

// ParseWarning описывает пропущенную или подозрительную группу строк.
// Исторические файлы часто правятся вручную, поэтому парсинг никогда
// не прерывается целиком: проблемные группы пропускаются с предупреждением.
type ParseWarning struct {
	Line   int    // Номер строки во входном тексте (с 1).
	Object string // Каталожный идентификатор, если его удалось извлечь.
	Err    error  // Причина предупреждения.
}

func (w ParseWarning) String() string {
	if w.Object != "" {
		return fmt.Sprintf("line %d (object %s): %v", w.Line, w.Object, w.Err)
	}
	return fmt.Sprintf("line %d: %v", w.Line, w.Err)
}

// ParseElements парсит текст с одним или несколькими наборами элементов.
// Поддерживаются 2-line и 3-line (имя + две строки данных) группы.
// Возвращает успешно разобранные записи и список предупреждений.
// Несовпадение контрольной суммы — предупреждение, запись сохраняется.
// Несовпадение идентификаторов между строками — предупреждение, группа пропускается.
func ParseElements(text string) ([]*ElementRecord, []ParseWarning) {
	lines := strings.Split(text, "\n")

	var (
		records  []*ElementRecord
		warnings []ParseWarning
		name     string
	)

	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			// Пустая строка — разделитель групп.
			name = ""
			continue
		}

		switch trimmed[0] {
		case '1':
			var line2 string
			if i+1 < len(lines) {
				line2 = strings.TrimSpace(lines[i+1])
			}

			if line2 == "" || line2[0] != '2' {
				warnings = append(warnings, ParseWarning{
					Line: i + 1,
					Err:  fmt.Errorf("%w: line 1 without matching line 2", ErrInvalidElementFormat),
				})
				name = ""
				continue
			}

			// Пара потреблена независимо от исхода парсинга.
			i++

			rec, warns := parseRecordPair(name, trimmed, line2, i)
			warnings = append(warnings, warns...)

			if rec != nil {
				records = append(records, rec)
			}
			name = ""

		case '2':
			warnings = append(warnings, ParseWarning{
				Line: i + 1,
				Err:  fmt.Errorf("%w: line 2 without preceding line 1", ErrInvalidElementFormat),
			})
			name = ""

		default:
			// Строка имени для следующей группы.
			name = trimmed
		}
	}

	return records, warnings
}

// parseRecordPair разбирает пару строк данных.
// Структурные проблемы (длина, нечитаемые поля, несовпадение ID) приводят
// к nil-записи и предупреждению; ошибка контрольной суммы — только предупреждение.
func parseRecordPair(name, line1, line2 string, lineNo int) (*ElementRecord, []ParseWarning) {
	var warnings []ParseWarning

	if len(line1) < ElementLineLength || len(line2) < ElementLineLength {
		warnings = append(warnings, ParseWarning{
			Line: lineNo,
			Err:  fmt.Errorf("%w: need %d chars", ErrLineTooShort, ElementLineLength),
		})
		return nil, warnings
	}

	rec := &ElementRecord{
		Name:  name,
		Line1: line1,
		Line2: line2,
	}

	if err := parseLine1(rec, line1); err != nil {
		warnings = append(warnings, ParseWarning{Line: lineNo, Object: rec.ID, Err: err})
		return nil, warnings
	}

	if err := parseLine2(rec, line2); err != nil {
		warnings = append(warnings, ParseWarning{Line: lineNo, Object: rec.ID, Err: err})
		return nil, warnings
	}

	// Идентификаторы в обеих строках обязаны совпадать.
	id2 := strings.TrimSpace(line2[2:7])
	if rec.ID != id2 {
		warnings = append(warnings, ParseWarning{
			Line:   lineNo,
			Object: rec.ID,
			Err:    fmt.Errorf("%w: line1=%q, line2=%q", ErrIDMismatch, rec.ID, id2),
		})
		return nil, warnings
	}

	// Контрольные суммы проверяются, но их несовпадение не фатально:
	// вручную отредактированные файлы — обычное дело.
	if !validateChecksum(line1) {
		warnings = append(warnings, ParseWarning{
			Line:   lineNo,
			Object: rec.ID,
			Err:    fmt.Errorf("%w: line 1", ErrChecksumMismatch),
		})
	}
	if !validateChecksum(line2) {
		warnings = append(warnings, ParseWarning{
			Line:   lineNo,
			Object: rec.ID,
			Err:    fmt.Errorf("%w: line 2", ErrChecksumMismatch),
		})
	}

	return rec, warnings
}

// parseLine1 извлекает данные из строки 1.
// Формат:
//
//	Col  1      Line Number (1)
//	Col  3-7    Satellite Number (поддерживает Alpha-5)
//	Col  8      Classification (U/C/S)
//	Col 10-17   International Designator
//	Col 19-32   Epoch (YY + DDD.DDDDDDDD)
//	Col 34-43   First Derivative of Mean Motion
//	Col 45-52   Second Derivative of Mean Motion
//	Col 54-61   BSTAR drag term
//	Col 63      Ephemeris Type
//	Col 65-68   Element Set Number
//	Col 69      Checksum
func parseLine1(rec *ElementRecord, line string) error {
	var err error

	rec.ID = strings.TrimSpace(line[2:7])
	rec.NoradID, err = parseCatalogID(rec.ID)
	if err != nil {
		return fmt.Errorf("catalog ID: %w", err)
	}

	rec.Classification = string(line[7])
	rec.IntlDesignator = strings.TrimSpace(line[9:17])

	epochStr := strings.TrimSpace(line[18:32])
	rec.Epoch, err = parseEpoch(epochStr)
	if err != nil {
		return fmt.Errorf("epoch: %w", err)
	}

	meanMotionDotStr := strings.TrimSpace(line[33:43])
	rec.MeanMotionDot, err = strconv.ParseFloat(meanMotionDotStr, 64)
	if err != nil {
		return fmt.Errorf("mean motion dot: %w", err)
	}

	rec.MeanMotionDot2 = parseExponent(strings.TrimSpace(line[44:52]))
	rec.Bstar = parseExponent(strings.TrimSpace(line[53:61]))

	ephTypeStr := strings.TrimSpace(line[62:63])
	if ephTypeStr != "" {
		rec.EphemerisType, _ = strconv.Atoi(ephTypeStr)
	}

	elemSetStr := strings.TrimSpace(line[64:68])
	if elemSetStr != "" {
		rec.ElementSetNo, _ = strconv.Atoi(elemSetStr)
	}

	return nil
}

// parseLine2 извлекает данные из строки 2.
// Формат:
//
//	Col  1      Line Number (2)
//	Col  3-7    Satellite Number
//	Col  9-16   Inclination (degrees)
//	Col 18-25   RAAN (degrees)
//	Col 27-33   Eccentricity (decimal point assumed)
//	Col 35-42   Argument of Perigee (degrees)
//	Col 44-51   Mean Anomaly (degrees)
//	Col 53-63   Mean Motion (revs/day)
//	Col 64-68   Revolution Number at Epoch
//	Col 69      Checksum
func parseLine2(rec *ElementRecord, line string) error {
	var err error

	inclStr := strings.TrimSpace(line[8:16])
	rec.Inclination, err = strconv.ParseFloat(inclStr, 64)
	if err != nil {
		return fmt.Errorf("inclination: %w", err)
	}

	raanStr := strings.TrimSpace(line[17:25])
	rec.RAAN, err = strconv.ParseFloat(raanStr, 64)
	if err != nil {
		return fmt.Errorf("RAAN: %w", err)
	}

	// Эксцентриситет записан без десятичной точки, подразумевается "0.".
	eccStr := strings.TrimSpace(line[26:33])
	rec.Eccentricity, err = strconv.ParseFloat("0."+eccStr, 64)
	if err != nil {
		return fmt.Errorf("eccentricity: %w", err)
	}

	argPeriStr := strings.TrimSpace(line[34:42])
	rec.ArgOfPerigee, err = strconv.ParseFloat(argPeriStr, 64)
	if err != nil {
		return fmt.Errorf("argument of perigee: %w", err)
	}

	meanAnomStr := strings.TrimSpace(line[43:51])
	rec.MeanAnomaly, err = strconv.ParseFloat(meanAnomStr, 64)
	if err != nil {
		return fmt.Errorf("mean anomaly: %w", err)
	}

	meanMotionStr := strings.TrimSpace(line[52:63])
	rec.MeanMotion, err = strconv.ParseFloat(meanMotionStr, 64)
	if err != nil {
		return fmt.Errorf("mean motion: %w", err)
	}

	revNumStr := strings.TrimSpace(line[63:68])
	if revNumStr != "" {
		rec.RevNumber, _ = strconv.Atoi(revNumStr)
	}

	return nil
}

// validateChecksum проверяет контрольную сумму строки по алгоритму Modulo-10.
func validateChecksum(line string) bool {
	if len(line) < ElementLineLength {
		return false
	}

	checksumIdx := ElementLineLength - 1
	calculated := calculateChecksum(line[:checksumIdx])
	expected := int(line[checksumIdx] - '0')

	return calculated == expected
}

// calculateChecksum вычисляет контрольную сумму по алгоритму Modulo-10:
// сумма всех цифр + 1 за каждый минус, mod 10.
func calculateChecksum(line string) int {
	sum := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
			// Буквы, пробелы, точки и прочие символы не учитываются.
		}
	}
	return sum % 10
}

// parseCatalogID декодирует каталожный номер с поддержкой Alpha-5 формата.
// Стандартный формат: 5 цифр (00001-99999).
// Alpha-5: буква + 4 цифры (A0000-Z9999 = 100000-339999).
func parseCatalogID(s string) (int, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidAlpha5)
	}

	firstChar := s[0]

	if firstChar >= 'A' && firstChar <= 'Z' {
		prefix, ok := alpha5Map[firstChar]
		if !ok {
			return 0, fmt.Errorf("%w: invalid letter %c (I and O not allowed)", ErrInvalidAlpha5, firstChar)
		}

		if len(s) < 5 {
			return 0, fmt.Errorf("%w: too short", ErrInvalidAlpha5)
		}

		rest, err := strconv.Atoi(s[1:5])
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidAlpha5, err)
		}

		return prefix*10000 + rest, nil
	}

	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid catalog ID: %w", err)
	}

	return id, nil
}

// parseExponent парсит научную нотацию TLE вида "12345-6" или "-12345-6".
// Формат: [знак]NNNNN[+-]E, означает ±0.NNNNN × 10^(±E).
func parseExponent(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "00000-0" || s == "00000+0" {
		return 0.0
	}

	sign := 1.0
	switch s[0] {
	case '-':
		sign = -1.0
		s = s[1:]
	case '+':
		s = s[1:]
	}

	// Позиция экспоненты — последний + или -.
	expPos := -1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '+' || s[i] == '-' {
			expPos = i
			break
		}
	}

	if expPos == -1 {
		val, _ := strconv.ParseFloat("0."+s, 64)
		return sign * val
	}

	mantissa, _ := strconv.ParseFloat("0."+s[:expPos], 64)
	exp, _ := strconv.Atoi(s[expPos:])

	return sign * mantissa * math.Pow(10, float64(exp))
}

// parseEpoch парсит эпоху из формата YYDDD.DDDDDDDD.
// YY: год (00-56 = 2000-2056, 57-99 = 1957-1999).
// DDD.DDDDDDDD: день года с дробной частью.
func parseEpoch(epochStr string) (time.Time, error) {
	if len(epochStr) < 7 {
		return time.Time{}, fmt.Errorf("epoch string too short: %s", epochStr)
	}

	year, err := strconv.Atoi(epochStr[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing year: %w", err)
	}

	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(epochStr[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing day of year: %w", err)
	}

	// dayOfYear=1.0 — начало 1 января, 1.5 — полдень 1 января.
	baseTime := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	duration := time.Duration((dayOfYear - 1) * 24 * float64(time.Hour))

	return baseTime.Add(duration), nil
}

// OrbitalPeriod возвращает орбитальный период в минутах.
func (rec *ElementRecord) OrbitalPeriod() float64 {
	if rec.MeanMotion == 0 {
		return 0
	}
	return 1440.0 / rec.MeanMotion // 1440 минут в сутках.
}

// SemiMajorAxis возвращает большую полуось орбиты в километрах:
// a = (μ / n²)^(1/3), μ = 398600.4418 км³/с².
func (rec *ElementRecord) SemiMajorAxis() float64 {
	const mu = 398600.4418 // км³/с²

	// Mean motion из оборотов/день в рад/с.
	n := rec.MeanMotion * 2 * math.Pi / 86400.0
	if n == 0 {
		return 0
	}

	return math.Pow(mu/(n*n), 1.0/3.0)
}

// Apogee возвращает высоту апогея в километрах над поверхностью Земли.
func (rec *ElementRecord) Apogee() float64 {
	a := rec.SemiMajorAxis()
	return a*(1+rec.Eccentricity) - WGS84A
}

// Perigee возвращает высоту перигея в километрах над поверхностью Земли.
func (rec *ElementRecord) Perigee() float64 {
	a := rec.SemiMajorAxis()
	return a*(1-rec.Eccentricity) - WGS84A
}

// EpochAge возвращает абсолютный возраст элементов относительно момента t.
func (rec *ElementRecord) EpochAge(t time.Time) time.Duration {
	d := t.Sub(rec.Epoch)
	if d < 0 {
		d = -d
	}
	return d
}

// IsStaleAt возвращает true, если эпоха элементов отстоит от t
// более чем на maxAgeDays суток (в любую сторону).
func (rec *ElementRecord) IsStaleAt(t time.Time, maxAgeDays float64) bool {
	return rec.EpochAge(t).Hours()/24 > maxAgeDays
}

// IsGeostationary определяет, является ли объект геостационарным.
// GEO объекты имеют MeanMotion ≈ 1.0 оборот/сутки (±0.1).
func (rec *ElementRecord) IsGeostationary() bool {
	const geoMeanMotionThreshold = 0.1
	return math.Abs(rec.MeanMotion-1.0) < geoMeanMotionThreshold
}

// String возвращает набор элементов в 3-line формате.
func (rec *ElementRecord) String() string {
	if rec.Name != "" {
		return fmt.Sprintf("%s\n%s\n%s", rec.Name, rec.Line1, rec.Line2)
	}
	return fmt.Sprintf("%s\n%s", rec.Line1, rec.Line2)
}
