package orbit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Константы Celestrak GP API.
const (
	// CelestrakBaseURL базовый URL Celestrak API.
	CelestrakBaseURL = "https://celestrak.org/NORAD/elements/gp.php"

	// DefaultRateLimit минимальный интервал между запросами (рекомендация Celestrak).
	DefaultRateLimit = 2 * time.Second

	// DefaultFetchTimeout таймаут HTTP запроса.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxRetries количество повторных попыток.
	DefaultMaxRetries = 3
)

// Ошибки клиента каталога.
var (
	ErrCatalogNotFound    = fmt.Errorf("object not found in catalog")
	ErrCatalogRateLimit   = fmt.Errorf("catalog rate limited (429)")
	ErrCatalogServerError = fmt.Errorf("catalog server error")
)

// CatalogGroup — предустановленная группа объектов каталога Celestrak.
type CatalogGroup string

// Группы, достаточные для задач визуализации космической обстановки.
const (
	GroupStations      CatalogGroup = "stations"  // МКС и связанные.
	GroupWeather       CatalogGroup = "weather"   // Метеорологические.
	GroupStarlink      CatalogGroup = "starlink"  // Starlink.
	GroupGeostationary CatalogGroup = "geo"       // Геостационарные.
	GroupActive        CatalogGroup = "active"    // Все активные объекты.
	GroupLastLaunch    CatalogGroup = "tle-new"   // Последние запуски.
	GroupScience       CatalogGroup = "science"   // Научные.
	GroupMilitary      CatalogGroup = "military"  // Военные.
	GroupGNSS          CatalogGroup = "gnss"      // Навигационные.
)

// CatalogClient — HTTP клиент для загрузки наборов элементов из каталога
// Celestrak. Сетевые источники — внешний коллаборатор ядра: клиент только
// доставляет текст, парсинг и политика предупреждений — у ParseElements.
type CatalogClient struct {
	httpClient  *http.Client
	baseURL     string
	rateLimit   time.Duration
	maxRetries  int
	lastRequest time.Time
	mu          sync.Mutex
}

// CatalogOption функция настройки клиента.
type CatalogOption func(*CatalogClient)

// WithHTTPClient устанавливает кастомный HTTP клиент.
func WithHTTPClient(client *http.Client) CatalogOption {
	return func(c *CatalogClient) {
		c.httpClient = client
	}
}

// WithRateLimit устанавливает интервал между запросами.
func WithRateLimit(d time.Duration) CatalogOption {
	return func(c *CatalogClient) {
		c.rateLimit = d
	}
}

// WithMaxRetries устанавливает количество повторных попыток.
func WithMaxRetries(n int) CatalogOption {
	return func(c *CatalogClient) {
		c.maxRetries = n
	}
}

// WithBaseURL устанавливает базовый URL (для тестирования).
func WithBaseURL(url string) CatalogOption {
	return func(c *CatalogClient) {
		c.baseURL = url
	}
}

// NewCatalogClient создаёт новый клиент каталога.
func NewCatalogClient(opts ...CatalogOption) *CatalogClient {
	c := &CatalogClient{
		httpClient: &http.Client{
			Timeout: DefaultFetchTimeout,
		},
		baseURL:    CelestrakBaseURL,
		rateLimit:  DefaultRateLimit,
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchGroup загружает наборы элементов для группы объектов.
// Некорректные записи в ответе не прерывают загрузку — возвращаются
// предупреждения парсинга.
func (c *CatalogClient) FetchGroup(ctx context.Context, group CatalogGroup) ([]*ElementRecord, []ParseWarning, error) {
	url := fmt.Sprintf("%s?GROUP=%s&FORMAT=TLE", c.baseURL, group)

	data, err := c.fetch(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching group %s: %w", group, err)
	}

	records, warnings := ParseElements(data)
	return records, warnings, nil
}

// FetchObject загружает историю наборов элементов по каталожному номеру.
func (c *CatalogClient) FetchObject(ctx context.Context, catalogID string) ([]*ElementRecord, []ParseWarning, error) {
	url := fmt.Sprintf("%s?CATNR=%s&FORMAT=TLE", c.baseURL, catalogID)

	data, err := c.fetch(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching object %s: %w", catalogID, err)
	}

	records, warnings := ParseElements(data)
	if len(records) == 0 && len(warnings) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, catalogID)
	}

	return records, warnings, nil
}

// fetch выполняет HTTP запрос с rate limiting и retry.
func (c *CatalogClient) fetch(ctx context.Context, url string) (string, error) {
	c.waitForRateLimit()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff.
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		data, err := c.doRequest(ctx, url)
		if err == nil {
			return data, nil
		}

		lastErr = err

		// Не повторяем при 404.
		if err == ErrCatalogNotFound {
			return "", err
		}
	}

	return "", fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

// waitForRateLimit ждёт соблюдения rate limit.
func (c *CatalogClient) waitForRateLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < c.rateLimit {
		time.Sleep(c.rateLimit - elapsed)
	}
	c.lastRequest = time.Now()
}

// doRequest выполняет один HTTP запрос.
func (c *CatalogClient) doRequest(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", "OrbitViz/1.0 (https://github.com/art-injener/orbitviz-go)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// OK
	case http.StatusNotFound:
		return "", ErrCatalogNotFound
	case http.StatusTooManyRequests:
		return "", ErrCatalogRateLimit
	default:
		if resp.StatusCode >= 500 {
			return "", fmt.Errorf("%w: %d", ErrCatalogServerError, resp.StatusCode)
		}
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	// Celestrak возвращает "No GP data found" при отсутствии данных.
	if string(body) == "No GP data found" {
		return "", ErrCatalogNotFound
	}

	return string(body), nil
}

// AvailableGroups возвращает список предустановленных групп.
func AvailableGroups() []CatalogGroup {
	return []CatalogGroup{
		GroupStations, GroupWeather, GroupStarlink, GroupGeostationary,
		GroupActive, GroupLastLaunch, GroupScience, GroupMilitary, GroupGNSS,
	}
}

// IsValidGroup проверяет, входит ли имя в список предустановленных групп.
func IsValidGroup(name string) bool {
	for _, g := range AvailableGroups() {
		if string(g) == name {
			return true
		}
	}
	return false
}
