package usecase

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	domrepo "WeatherCast/internal/domain/repository"
)

var ErrSourceUnavailable = errors.New("series source unavailable")

// Sources maps each configured source type to its backend. Requests that
// name no source use the default one.
type Sources struct {
	def      domrepo.SourceType
	backends map[domrepo.SourceType]domrepo.SeriesSource
}

// NewSources returns an empty registry; an invalid def falls back to csv.
func NewSources(def domrepo.SourceType) *Sources {
	if !domrepo.IsValidSource(def) {
		def = domrepo.DefaultSource()
	}
	return &Sources{def: def, backends: make(map[domrepo.SourceType]domrepo.SeriesSource)}
}

// Register adds or replaces the backend for st.
func (s *Sources) Register(st domrepo.SourceType, src domrepo.SeriesSource) *Sources {
	s.backends[st] = src
	return s
}

// Names lists the registered source types in sorted order.
func (s *Sources) Names() []string {
	names := make([]string, 0, len(s.backends))
	for k := range s.backends {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

// Resolve returns the backend for name; an empty name selects the default source.
func (s *Sources) Resolve(name string) (domrepo.SeriesSource, domrepo.SourceType, error) {
	st := s.def
	if name != "" {
		st = domrepo.SourceType(strings.ToLower(strings.TrimSpace(name)))
	}
	if !domrepo.IsValidSource(st) {
		return nil, st, fmt.Errorf("%w: unknown source %q", ErrSourceUnavailable, name)
	}
	src, ok := s.backends[st]
	if !ok || src == nil {
		return nil, st, fmt.Errorf("%w: %s is not configured", ErrSourceUnavailable, st)
	}
	return src, st, nil
}
