package filters

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"cosmetic-picker/internal/entity"
	"cosmetic-picker/pkg/apperr"
	"cosmetic-picker/pkg/logg"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
)

const (
	FileName      = "cosmetic-filters.json"
	configVersion = 1
)

var ErrDuplicate = errors.New("identical filter already exists")

// Store is the on-disk list of cosmetic filters, grouped by host. Changes
// stay in memory until Save.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
	data   entity.FilterFile
	now    func() time.Time
}

// Open loads dir/cosmetic-filters.json. A missing file is an empty store; a
// file that does not parse is logged and also treated as empty.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		path:   filepath.Join(dir, FileName),
		logger: logger.With(zap.String(logg.Layer, "filter_store")),
		now:    time.Now,
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() error {
	s.data = entity.FilterFile{Version: configVersion, Filters: map[string][]entity.FilterRule{}}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return apperr.Wrap("filters.Open", apperr.CodeInternal, err, map[string]any{
			apperr.MetaStage: apperr.StageStore,
			apperr.MetaPath:  s.path,
		})
	}

	var file entity.FilterFile
	if err := json.Unmarshal(raw, &file); err != nil {
		s.logger.Warn("Failed to parse filters file, starting empty",
			zap.String(logg.Path, s.path),
			zap.Error(err))
		return nil
	}

	if file.Version != 0 {
		s.data.Version = file.Version
	}
	for host, rules := range file.Filters {
		if len(rules) > 0 {
			s.data.Filters[host] = rules
		}
	}

	return nil
}

// ValidSelector reports whether selector parses as a CSS selector list.
func ValidSelector(selector string) bool {
	if strings.TrimSpace(selector) == "" {
		return false
	}
	_, err := cascadia.ParseGroup(selector)

	return err == nil
}

// Hosts returns every host with at least one rule, sorted.
func (s *Store) Hosts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	hosts := make([]string, 0, len(s.data.Filters))
	for host, rules := range s.data.Filters {
		if len(rules) > 0 {
			hosts = append(hosts, host)
		}
	}
	sort.Strings(hosts)

	return hosts
}

func (s *Store) Rules(host string) []entity.FilterRule {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]entity.FilterRule(nil), s.data.Filters[host]...)
}

// Append adds rule to host and returns its 1-based index. A rule with the same
// selector and text predicate is refused with ErrDuplicate.
func (s *Store) Append(host string, rule entity.FilterRule) (int, error) {
	const op = "filters.Append"

	rule = rule.Normalize()
	if host == "" {
		return 0, apperr.InvalidReqError(op, "host", errors.New("host is empty"))
	}
	if rule.Selector == "" {
		return 0, apperr.InvalidReqError(op, "selector", errors.New("selector is empty"))
	}
	if !ValidSelector(rule.Selector) {
		return 0, apperr.InvalidReqError(op, "selector", fmt.Errorf("%q is not a valid CSS selector", rule.Selector))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rules := s.data.Filters[host]
	for _, existing := range rules {
		if existing.SameAs(rule) {
			return 0, apperr.Wrap(op, apperr.CodeDuplicateRule, ErrDuplicate, map[string]any{
				apperr.MetaHost:     host,
				apperr.MetaSelector: rule.Selector,
			})
		}
	}

	if rule.CreatedAt == "" {
		rule.CreatedAt = strconv.FormatInt(s.now().Unix(), 10)
	}
	s.data.Filters[host] = append(rules, rule)

	s.logger.Debug("Appended rule",
		zap.String(logg.Host, host),
		zap.String(logg.Selector, rule.Selector),
		zap.Int("index", len(rules)+1))

	return len(rules) + 1, nil
}

// Remove deletes the rule at the 1-based index and returns it with the number
// of rules left for host. Removing the last rule drops the host.
func (s *Store) Remove(host string, index int) (entity.FilterRule, int, error) {
	const op = "filters.Remove"

	s.mu.Lock()
	defer s.mu.Unlock()

	rules := s.data.Filters[host]
	if len(rules) == 0 {
		return entity.FilterRule{}, 0, apperr.NotFoundError(op, fmt.Errorf("no rules stored for %s", host))
	}
	if index < 1 || index > len(rules) {
		return entity.FilterRule{}, len(rules), apperr.Wrap(op, apperr.CodeInvalidArgument,
			fmt.Errorf("index %d is out of range for %s", index, host),
			map[string]any{
				apperr.MetaHost:  host,
				apperr.MetaIndex: index,
			})
	}

	removed := rules[index-1]
	rest := append(append([]entity.FilterRule(nil), rules[:index-1]...), rules[index:]...)
	if len(rest) == 0 {
		delete(s.data.Filters, host)
	} else {
		s.data.Filters[host] = rest
	}

	return removed, len(rest), nil
}

// Save writes the store through a temporary file renamed over the target.
func (s *Store) Save() error {
	const op = "filters.Save"

	s.mu.Lock()
	file := entity.FilterFile{Version: configVersion, Filters: s.data.Filters}
	raw, err := json.MarshalIndent(file, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{apperr.MetaStage: apperr.StageStore})
	}
	raw = append(raw, '\n')

	if err := writeAtomic(s.path, raw); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaStage: apperr.StageStore,
			apperr.MetaPath:  s.path,
		})
	}

	s.logger.Debug("Saved filters", zap.String(logg.Path, s.path))

	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}

	return nil
}
