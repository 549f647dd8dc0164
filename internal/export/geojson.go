// Package export переводит числовые результаты ядра в GeoJSON.
// Ядро отдаёт только числа; любое представление (включая этот пакет)
// живёт за его границей и не влияет на геометрическую корректность.
package export

import (
	"encoding/json"

	"github.com/art-injener/orbitviz-go/internal/orbit"
)

// FeatureCollection — стандартная GeoJSON коллекция объектов.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature — один географический объект с геометрией и свойствами.
type Feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   Geometry       `json:"geometry"`
}

// Geometry — геометрия объекта (Point, LineString, MultiLineString).
// Coordinates: [lon, lat] для Point, [][2]float64 для LineString,
// [][][2]float64 для MultiLineString — порядок GeoJSON: долгота, широта.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// NewFeatureCollection создаёт пустую коллекцию.
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{
		Type:     "FeatureCollection",
		Features: []Feature{},
	}
}

// Marshal сериализует коллекцию в GeoJSON с отступами.
func (fc *FeatureCollection) Marshal() ([]byte, error) {
	return json.MarshalIndent(fc, "", "  ")
}

// AddPoint добавляет точечный объект.
func (fc *FeatureCollection) AddPoint(pt orbit.GeodeticPoint, props map[string]any) {
	fc.Features = append(fc.Features, Feature{
		Type:       "Feature",
		Properties: props,
		Geometry: Geometry{
			Type:        "Point",
			Coordinates: []float64{pt.LonDeg, pt.LatDeg},
		},
	})
}

// AddSegments добавляет набор полилиний одним MultiLineString.
func (fc *FeatureCollection) AddSegments(segments [][]orbit.GeodeticPoint, props map[string]any) {
	lines := make([][][]float64, 0, len(segments))
	for _, seg := range segments {
		line := make([][]float64, 0, len(seg))
		for _, pt := range seg {
			line = append(line, []float64{pt.LonDeg, pt.LatDeg})
		}
		lines = append(lines, line)
	}

	fc.Features = append(fc.Features, Feature{
		Type:       "Feature",
		Properties: props,
		Geometry: Geometry{
			Type:        "MultiLineString",
			Coordinates: lines,
		},
	})
}

// AddFootprint добавляет зону покрытия: границу и центр.
func (fc *FeatureCollection) AddFootprint(fp *orbit.FootprintGeometry, props map[string]any) {
	if fp == nil {
		return
	}

	merged := map[string]any{"kind": "footprint", "radius_deg": fp.RadiusDeg}
	for k, v := range props {
		merged[k] = v
	}

	fc.AddSegments(fp.Segments, merged)
	fc.AddPoint(fp.Center, map[string]any{"kind": "subpoint"})
}

// AddTerminator добавляет границу дня и ночи и подсолнечную точку.
func (fc *FeatureCollection) AddTerminator(term *orbit.TerminatorGeometry) {
	if term == nil {
		return
	}

	fc.AddSegments(term.Segments, map[string]any{"kind": "terminator"})
	fc.AddPoint(term.Subsolar, map[string]any{"kind": "subsolar"})
}

// AddGroundTrack добавляет наземную трассу: пройденный и предстоящий
// участки отдельными MultiLineString с признаком phase.
func (fc *FeatureCollection) AddGroundTrack(gt *orbit.GroundTrack) {
	if gt == nil {
		return
	}

	fc.addTrackSegments(gt.Past, gt.Object, "past")
	fc.addTrackSegments(gt.Future, gt.Object, "future")
}

func (fc *FeatureCollection) addTrackSegments(segments [][]orbit.TrackPoint, object, phase string) {
	if len(segments) == 0 {
		return
	}

	lines := make([][][]float64, 0, len(segments))
	for _, seg := range segments {
		line := make([][]float64, 0, len(seg))
		for _, pt := range seg {
			line = append(line, []float64{pt.Lon, pt.Lat})
		}
		lines = append(lines, line)
	}

	fc.Features = append(fc.Features, Feature{
		Type: "Feature",
		Properties: map[string]any{
			"kind":   "ground_track",
			"object": object,
			"phase":  phase,
		},
		Geometry: Geometry{
			Type:        "MultiLineString",
			Coordinates: lines,
		},
	})
}
