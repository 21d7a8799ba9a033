package settings

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"librarydesk/internal/apperr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is the process-wide settings cache. It is built once at startup, loaded with
// Reload, and updated in place by Set and Delete. Other processes' writes are only
// seen after the next Reload.
type Store struct {
	repo Repository
	log  *slog.Logger

	mu     sync.RWMutex
	values map[string]any
}

func NewStore(repo Repository, log *slog.Logger) *Store {
	return &Store{repo: repo, log: log, values: map[string]any{}}
}

// Reload replaces the cache with the persisted settings.
func (s *Store) Reload(ctx context.Context) error {
	rows, err := s.repo.All(ctx)
	if err != nil {
		return apperr.Persistence(fmt.Errorf("load settings: %w", err))
	}
	values := make(map[string]any, len(rows))
	for _, row := range rows {
		var v any
		if err := json.Unmarshal(row.Value, &v); err != nil {
			s.log.Warn("skipping undecodable setting", "key", row.Key, "error", err)
			continue
		}
		values[row.Key] = v
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// Get returns the stored value for key, falling back to its default.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()
	if ok {
		return v, true
	}
	v, ok = Defaults[key]
	return v, ok
}

// Has reports whether key has a stored value or a default.
func (s *Store) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

func (s *Store) String(key string) string {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

func (s *Store) Float(key string) float64 {
	v, _ := s.Get(key)
	f, _ := toFloat(v)
	return f
}

func (s *Store) Int(key string) int {
	return int(math.Round(s.Float(key)))
}

func (s *Store) Bool(key string) bool {
	v, _ := s.Get(key)
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(b)
		return parsed
	case float64:
		return b != 0
	}
	return false
}

// Set validates, persists and then caches value under key.
func (s *Store) Set(ctx context.Context, key string, value any, description string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrInvalidKey
	}
	normalized, err := normalize(key, value)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return ErrInvalidValue.WithMessage("setting %s cannot be encoded", key)
	}
	var cached any
	if err := json.Unmarshal(raw, &cached); err != nil {
		return ErrInvalidValue.WithMessage("setting %s cannot be encoded", key)
	}

	if err := s.repo.Upsert(ctx, Setting{Key: key, Value: raw, Description: description}); err != nil {
		return apperr.Persistence(fmt.Errorf("save setting %s: %w", key, err))
	}

	s.mu.Lock()
	s.values[key] = cached
	s.mu.Unlock()
	return nil
}

// Delete removes a stored value; the key falls back to its default afterwards.
func (s *Store) Delete(ctx context.Context, key string) error {
	found, err := s.repo.Delete(ctx, key)
	if err != nil {
		return apperr.Persistence(fmt.Errorf("delete setting %s: %w", key, err))
	}
	if !found {
		return ErrNotFound.WithMessage("setting %s not found", key)
	}
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}

// All returns defaults overlaid with stored values.
func (s *Store) All() map[string]any {
	out := make(map[string]any, len(Defaults))
	for k, v := range Defaults {
		out[k] = v
	}
	s.mu.RLock()
	for k, v := range s.values {
		out[k] = v
	}
	s.mu.RUnlock()
	return out
}

func (s *Store) ByPrefix(prefix string) map[string]any {
	out := map[string]any{}
	for k, v := range s.All() {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out
}

// Keys returns every known key in sorted order.
func (s *Store) Keys() []string {
	all := s.All()
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FinePerDay is the late fee in minor currency units.
func (s *Store) FinePerDay() int64 {
	f := s.Float(KeyFinePerDay)
	if f < 0 {
		return 0
	}
	return int64(math.Round(f * 100))
}

func (s *Store) MaxBorrowDays() int {
	if d := s.Int(KeyMaxBorrowDays); d > 0 {
		return d
	}
	return Defaults[KeyMaxBorrowDays].(int)
}

func (s *Store) MaxRenewals() int {
	if n := s.Int(KeyMaxRenewals); n >= 0 {
		return n
	}
	return 0
}

func (s *Store) Currency() string { return s.String(KeyCurrency) }

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// normalize enforces types for keys the library itself reads.
func normalize(key string, value any) (any, error) {
	switch key {
	case KeyFinePerDay:
		f, ok := toFloat(value)
		if !ok || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, ErrInvalidValue.WithMessage("%s must be a non-negative number", key)
		}
		return math.Round(f*100) / 100, nil
	case KeyMaxBorrowDays, KeyItemsPerPage:
		f, ok := toFloat(value)
		if !ok || f < 1 || f != math.Trunc(f) {
			return nil, ErrInvalidValue.WithMessage("%s must be a positive whole number", key)
		}
		return int(f), nil
	case KeyMaxRenewals, KeySMTPPort:
		f, ok := toFloat(value)
		if !ok || f < 0 || f != math.Trunc(f) {
			return nil, ErrInvalidValue.WithMessage("%s must be a whole number", key)
		}
		return int(f), nil
	}
	return value, nil
}
