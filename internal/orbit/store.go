package orbit

import (
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ElementStore реализует in-memory хранилище наборов орбитальных элементов
// с поддержкой многоэпочных историй. Хранилище владеет записями: наружу
// отдаются указатели только для чтения, записи неизменяемы после парсинга.
//
// Один объект может иметь много записей (историю эпох); история всегда
// отсортирована по эпохе по возрастанию, дубликаты эпох сохраняются
// в порядке добавления (стабильная сортировка) — дедупликация, если нужна,
// остаётся на вызывающей стороне.
type ElementStore struct {
	mu sync.RWMutex

	// История по объектам: каталожный ID -> записи, эпохи по возрастанию.
	histories map[string][]*ElementRecord

	// Индекс по именам (lowercase): name -> []catalog ID.
	byName map[string][]string

	// Накопленные предупреждения парсинга.
	warnings []ParseWarning

	logger *slog.Logger
}

// ElementStoreOption функция настройки ElementStore.
type ElementStoreOption func(*ElementStore)

// WithStoreLogger устанавливает логгер хранилища.
func WithStoreLogger(logger *slog.Logger) ElementStoreOption {
	return func(s *ElementStore) {
		s.logger = logger
	}
}

// NewElementStore создаёт пустое хранилище.
func NewElementStore(opts ...ElementStoreOption) *ElementStore {
	s := &ElementStore{
		histories: make(map[string][]*ElementRecord),
		byName:    make(map[string][]string),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// GroupByObject группирует записи по каталожному идентификатору.
// История каждого объекта отсортирована по эпохе по возрастанию;
// при равных эпохах сохраняется исходный порядок (стабильная сортировка).
// Объект с единственной эпохой — нормальный случай, не ошибка.
func GroupByObject(records []*ElementRecord) map[string][]*ElementRecord {
	groups := make(map[string][]*ElementRecord)

	for _, rec := range records {
		if rec == nil {
			continue
		}
		groups[rec.ID] = append(groups[rec.ID], rec)
	}

	for id := range groups {
		sortByEpoch(groups[id])
	}

	return groups
}

// sortByEpoch сортирует записи по эпохе по возрастанию, стабильно.
func sortByEpoch(records []*ElementRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Epoch.Before(records[j].Epoch)
	})
}

// Add добавляет запись в хранилище, поддерживая порядок эпох в истории объекта.
func (s *ElementStore) Add(rec *ElementRecord) {
	if rec == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.addInternal(rec)
}

// AddAll добавляет пачку записей и запоминает предупреждения парсинга.
func (s *ElementStore) AddAll(records []*ElementRecord, warnings []ParseWarning) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if rec != nil {
			s.addInternal(rec)
		}
	}
	s.warnings = append(s.warnings, warnings...)
}

// addInternal добавляет запись без блокировки.
func (s *ElementStore) addInternal(rec *ElementRecord) {
	history := append(s.histories[rec.ID], rec)
	sortByEpoch(history)
	s.histories[rec.ID] = history

	if rec.Name != "" {
		lowerName := strings.ToLower(rec.Name)
		ids := s.byName[lowerName]
		found := false
		for _, id := range ids {
			if id == rec.ID {
				found = true
				break
			}
		}
		if !found {
			s.byName[lowerName] = append(ids, rec.ID)
		}
	}
}

// LoadText парсит текст с наборами элементов и добавляет записи в хранилище.
// Возвращает количество добавленных записей и предупреждения этой загрузки.
func (s *ElementStore) LoadText(text string) (int, []ParseWarning) {
	records, warnings := ParseElements(text)
	s.AddAll(records, warnings)

	if len(warnings) > 0 {
		s.logger.Warn("element parsing produced warnings",
			"records", len(records),
			"warnings", len(warnings),
		)
	}

	return len(records), warnings
}

// LoadFile читает многоэпочный файл наборов элементов с диска.
func (s *ElementStore) LoadFile(path string) (int, []ParseWarning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "reading element file %s", path)
	}

	count, warnings := s.LoadText(string(data))

	s.logger.Info("loaded element file",
		"path", path,
		"records", count,
		"warnings", len(warnings),
		"objects", s.ObjectCount(),
	)

	return count, warnings, nil
}

// History возвращает историю эпох объекта (эпохи по возрастанию).
// Возвращается копия среза; сами записи общие и неизменяемы.
func (s *ElementStore) History(id string) []*ElementRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.histories[id]
	if !ok {
		return nil
	}

	out := make([]*ElementRecord, len(history))
	copy(out, history)
	return out
}

// Latest возвращает запись с самой поздней эпохой для объекта.
func (s *ElementStore) Latest(id string) (*ElementRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.histories[id]
	if !ok || len(history) == 0 {
		return nil, false
	}

	return history[len(history)-1], true
}

// RecordAt выбирает запись, эпоха которой ближе всего к t снизу
// (последняя эпоха ≤ t). Если все эпохи позже t, возвращается самая ранняя:
// пропагация назад от ближайшей эпохи точнее, чем отказ.
func (s *ElementStore) RecordAt(id string, t time.Time) (*ElementRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.histories[id]
	if !ok || len(history) == 0 {
		return nil, false
	}

	// История отсортирована: ищем первую эпоху строго позже t.
	idx := sort.Search(len(history), func(i int) bool {
		return history[i].Epoch.After(t)
	})

	if idx == 0 {
		return history[0], true
	}
	return history[idx-1], true
}

// FindByName возвращает последние записи объектов, чьё имя содержит name
// (case-insensitive; сначала точное совпадение по индексу).
func (s *ElementStore) FindByName(name string) []*ElementRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lowerName := strings.ToLower(name)
	var out []*ElementRecord

	if ids, ok := s.byName[lowerName]; ok {
		for _, id := range ids {
			if history := s.histories[id]; len(history) > 0 {
				out = append(out, history[len(history)-1])
			}
		}
		return out
	}

	for _, history := range s.histories {
		if len(history) == 0 {
			continue
		}
		latest := history[len(history)-1]
		if strings.Contains(strings.ToLower(latest.Name), lowerName) {
			out = append(out, latest)
		}
	}
	return out
}

// Objects возвращает отсортированный список каталожных идентификаторов.
func (s *ElementStore) Objects() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.histories))
	for id := range s.histories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ObjectCount возвращает количество объектов в хранилище.
func (s *ElementStore) ObjectCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.histories)
}

// RecordCount возвращает общее количество записей (по всем эпохам).
func (s *ElementStore) RecordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, history := range s.histories {
		count += len(history)
	}
	return count
}

// Warnings возвращает накопленные предупреждения парсинга.
func (s *ElementStore) Warnings() []ParseWarning {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ParseWarning, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// StaleCount возвращает количество объектов, последняя эпоха которых
// отстоит от t более чем на maxAgeDays.
func (s *ElementStore) StaleCount(t time.Time, maxAgeDays float64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, history := range s.histories {
		if len(history) == 0 {
			continue
		}
		if history[len(history)-1].IsStaleAt(t, maxAgeDays) {
			count++
		}
	}
	return count
}
