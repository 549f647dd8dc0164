// Command orbitviz загружает наборы орбитальных элементов, считает геометрию
// космической обстановки на заданный момент времени и выводит GeoJSON сцену:
// наземные трассы, зоны покрытия, терминатор, относительное положение.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/art-injener/orbitviz-go/internal/export"
	"github.com/art-injener/orbitviz-go/internal/orbit"
)

// Стили терминального вывода.
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	staleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func main() {
	if err := run(); err != nil {
		slog.Error("orbitviz failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		tlePath    = flag.String("tle", "", "path to a (multi-epoch) TLE file")
		fetchGroup = flag.String("fetch", "", "fetch a Celestrak group instead of reading a file")
		configPath = flag.String("config", "", "path to YAML config")
		atStr      = flag.String("at", "", "scene timestamp, RFC3339 (default: now UTC)")
		objectID   = flag.String("object", "", "catalog ID for ground track generation")
		masterID   = flag.String("master", "", "catalog ID of the reference object for relative state")
		targetID   = flag.String("target", "", "catalog ID of the target object for relative state")
		outPath    = flag.String("out", "-", "GeoJSON output path (- for stdout)")
		verbose    = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := orbit.DefaultConfig()
	if *configPath != "" {
		loaded, err := orbit.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	at := time.Now().UTC()
	if *atStr != "" {
		parsed, err := time.Parse(time.RFC3339, *atStr)
		if err != nil {
			return errors.Wrapf(err, "parsing -at %q", *atStr)
		}
		at = parsed.UTC()
	}

	ctx := context.Background()

	store, err := loadStore(ctx, logger, *tlePath, *fetchGroup)
	if err != nil {
		return err
	}

	adapter := orbit.NewAdapter(orbit.WithStaleAfterDays(cfg.StaleAfterDays))

	scene := export.NewFeatureCollection()

	// Терминатор не зависит от спутников — считается всегда.
	term := orbit.Terminator(at, cfg.GeodesicPoints, cfg.GapThresholdDeg)
	scene.AddTerminator(term)

	summary := &strings.Builder{}
	fmt.Fprintln(summary, titleStyle.Render("orbitviz — "+at.Format(time.RFC3339)))
	writeRow(summary, "objects", fmt.Sprintf("%d (%d records)", store.ObjectCount(), store.RecordCount()))
	writeRow(summary, "subsolar", fmt.Sprintf("%.2f°, %.2f°", term.Subsolar.LatDeg, term.Subsolar.LonDeg))

	if warnings := store.Warnings(); len(warnings) > 0 {
		writeRow(summary, "parse warnings", warnStyle.Render(fmt.Sprintf("%d", len(warnings))))
		for _, w := range warnings {
			logger.Debug("parse warning", "detail", w.String())
		}
	}

	// Зоны покрытия всех объектов на выбранный момент: поворот Земли
	// считается один раз внутри FootprintsAtInstant.
	records := latestRecords(store)
	footprints, failures := orbit.FootprintsAtInstant(
		ctx, adapter, records, at,
		cfg.MinElevationDeg, cfg.GeodesicPoints, cfg.GapThresholdDeg, cfg.Workers,
	)
	for i, fp := range footprints {
		if fp == nil {
			continue
		}
		scene.AddFootprint(fp, map[string]any{
			"object": records[i].ID,
			"name":   records[i].Name,
		})
	}
	writeRow(summary, "footprints", fmt.Sprintf("%d ok, %d failed", len(records)-len(failures), len(failures)))
	for _, f := range failures {
		logger.Warn("footprint failed", "object", records[f.Index].ID, "error", f.Err)
	}

	if *objectID != "" {
		if err := addGroundTrack(ctx, logger, scene, summary, store, adapter, cfg, *objectID, at); err != nil {
			return err
		}
	}

	if *masterID != "" && *targetID != "" {
		if err := addRelativeState(summary, store, adapter, *masterID, *targetID, at); err != nil {
			return err
		}
	}

	data, err := scene.Marshal()
	if err != nil {
		return errors.Wrap(err, "marshaling GeoJSON scene")
	}

	if *outPath == "-" {
		if _, err := os.Stdout.Write(append(data, '\n')); err != nil {
			return errors.Wrap(err, "writing scene to stdout")
		}
	} else {
		if err := os.WriteFile(*outPath, data, 0600); err != nil {
			return errors.Wrapf(err, "writing scene to %s", *outPath)
		}
		writeRow(summary, "scene", *outPath)
	}

	fmt.Fprint(os.Stderr, summary.String())

	return nil
}

// loadStore наполняет хранилище из файла или из каталога Celestrak.
func loadStore(ctx context.Context, logger *slog.Logger, tlePath, fetchGroup string) (*orbit.ElementStore, error) {
	store := orbit.NewElementStore(orbit.WithStoreLogger(logger))

	switch {
	case tlePath != "":
		if _, _, err := store.LoadFile(tlePath); err != nil {
			return nil, err
		}
	case fetchGroup != "":
		if !orbit.IsValidGroup(fetchGroup) {
			return nil, fmt.Errorf("unknown catalog group %q", fetchGroup)
		}
		client := orbit.NewCatalogClient()
		records, warnings, err := client.FetchGroup(ctx, orbit.CatalogGroup(fetchGroup))
		if err != nil {
			return nil, err
		}
		store.AddAll(records, warnings)
		logger.Info("fetched catalog group", "group", fetchGroup, "records", len(records))
	default:
		return nil, fmt.Errorf("either -tle or -fetch is required")
	}

	return store, nil
}

// latestRecords возвращает последние записи всех объектов хранилища.
func latestRecords(store *orbit.ElementStore) []*orbit.ElementRecord {
	ids := store.Objects()
	records := make([]*orbit.ElementRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := store.Latest(id); ok {
			records = append(records, rec)
		}
	}
	return records
}

// addGroundTrack строит трассу объекта: один орбитальный период назад,
// три вперёд (автодиапазон).
func addGroundTrack(ctx context.Context, logger *slog.Logger, scene *export.FeatureCollection, summary *strings.Builder, store *orbit.ElementStore, adapter *orbit.Adapter, cfg *orbit.Config, objectID string, at time.Time) error {
	rec, ok := store.RecordAt(objectID, at)
	if !ok {
		return fmt.Errorf("object %s not found in store", objectID)
	}

	period := time.Duration(rec.OrbitalPeriod() * float64(time.Minute))
	if period <= 0 {
		return fmt.Errorf("object %s has non-positive orbital period", objectID)
	}

	track, failures, err := orbit.GenerateGroundTrack(
		ctx, adapter, rec,
		at.Add(-period), at.Add(3*period), at,
		cfg.TrackStep, cfg.Workers, logger,
	)
	if err != nil {
		return err
	}

	scene.AddGroundTrack(track)
	writeRow(summary, "track "+objectID, fmt.Sprintf("%d points, %d failed samples", len(track.Points()), len(failures)))

	return nil
}

// addRelativeState считает положение цели относительно мастера на момент at.
func addRelativeState(summary *strings.Builder, store *orbit.ElementStore, adapter *orbit.Adapter, masterID, targetID string, at time.Time) error {
	masterRec, ok := store.RecordAt(masterID, at)
	if !ok {
		return fmt.Errorf("master object %s not found in store", masterID)
	}
	targetRec, ok := store.RecordAt(targetID, at)
	if !ok {
		return fmt.Errorf("target object %s not found in store", targetID)
	}

	masterState, err := adapter.StateAt(masterRec, at)
	if err != nil {
		return err
	}
	targetState, err := adapter.StateAt(targetRec, at)
	if err != nil {
		return err
	}

	rel, err := orbit.ToRelativeFrame(masterState, targetState)
	if err != nil {
		return err
	}

	value := fmt.Sprintf("R %.2f / I %.2f / C %.2f km (range %.2f km)",
		rel.Radial, rel.InTrack, rel.CrossTrack, rel.Range())
	if masterState.Stale || targetState.Stale {
		value += " " + staleStyle.Render("[stale elements]")
	}
	writeRow(summary, masterID+" -> "+targetID, value)

	return nil
}

// writeRow выводит строку сводки в стиле ключ-значение.
func writeRow(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "%s %s\n", keyStyle.Render(key), value)
}
