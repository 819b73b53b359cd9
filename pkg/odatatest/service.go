package odatatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/pboyd04/goodata/pkg/csdl"
)

// Service is an in-memory OData service speaking verbose JSON. Entity sets
// come from its metadata; their contents from AddEntities.
type Service struct {
	User     string
	Password string

	metadata []byte
	model    *csdl.Model

	mu       sync.Mutex
	entities map[string][]map[string]any
	headers  []http.Header
}

// NewService parses metadata so sets and keys can be resolved.
func NewService(metadata []byte) (*Service, error) {
	doc, err := csdl.Unmarshal(metadata)
	if err != nil {
		return nil, err
	}
	return &Service{
		metadata: metadata,
		model:    csdl.NewModel(doc),
		entities: map[string][]map[string]any{},
	}, nil
}

func (s *Service) AddEntities(set string, entities ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[set] = append(s.entities[set], entities...)
}

// Headers returns the headers of every request served so far.
func (s *Service) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.headers...)
}

func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	if s.User != "" {
		r.Use(s.requireAuth)
	}
	r.Get("/$metadata", s.handleMetadata)
	r.Get("/{set}/$count", s.handleCount)
	r.Get("/{set}", s.handleSet)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Resource not found for the segment '"+r.URL.Path+"'.")
	})
	return r
}

func (s *Service) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.headers = append(s.headers, r.Header.Clone())
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Service) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok || user != s.User || password != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="odata"`)
			writeError(w, http.StatusUnauthorized, "Authentication required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    strconv.Itoa(status),
			"message": map[string]string{"lang": "en-US", "value": message},
		},
	})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.Header().Set("DataServiceVersion", "2.0;")
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Service) handleMetadata(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(s.metadata)
}

func (s *Service) handleCount(w http.ResponseWriter, r *http.Request) {
	set := chi.URLParam(r, "set")
	if _, _, ok := s.model.EntitySet(set); !ok {
		writeError(w, http.StatusNotFound, "Resource not found for the segment '"+set+"'.")
		return
	}
	s.mu.Lock()
	count := len(s.entities[set])
	s.mu.Unlock()
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(strconv.Itoa(count)))
}

// handleSet serves both "Products" and "Products(1)".
func (s *Service) handleSet(w http.ResponseWriter, r *http.Request) {
	segment := chi.URLParam(r, "set")
	set, key, hasKey := strings.Cut(segment, "(")
	es, _, ok := s.model.EntitySet(set)
	if !ok {
		writeError(w, http.StatusNotFound, "Resource not found for the segment '"+set+"'.")
		return
	}
	base := "http://" + r.Host
	s.mu.Lock()
	entities := s.entities[set]
	s.mu.Unlock()
	if !hasKey {
		results := make([]any, 0, len(entities))
		for _, e := range entities {
			results = append(results, s.withMetadata(base, set, es, e))
		}
		writeJSON(w, map[string]any{"d": map[string]any{
			"results": results,
			"__count": strconv.Itoa(len(results)),
		}})
		return
	}
	key = strings.Trim(strings.TrimSuffix(key, ")"), "'")
	keyName := s.keyProperty(es.EntityType)
	for _, e := range entities {
		if fmt.Sprint(e[keyName]) == key {
			writeJSON(w, map[string]any{"d": s.withMetadata(base, set, es, e)})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Resource not found for the segment '"+segment+"'.")
}

func (s *Service) keyProperty(typeName string) string {
	et, ok := s.model.EntityType(typeName)
	if !ok {
		return ""
	}
	for _, t := range append([]*csdl.EntityType{et}, s.model.BaseTypes(et)...) {
		if t.Key != nil && len(t.Key.PropertyRef) > 0 {
			return t.Key.PropertyRef[0].Name
		}
	}
	return ""
}

func (s *Service) withMetadata(base, set string, es *csdl.EntitySet, e map[string]any) map[string]any {
	out := make(map[string]any, len(e)+1)
	for k, v := range e {
		out[k] = v
	}
	if _, ok := out["__metadata"]; !ok {
		key := fmt.Sprint(e[s.keyProperty(es.EntityType)])
		out["__metadata"] = map[string]any{
			"uri":  base + "/" + set + "(" + key + ")",
			"type": s.model.Canonical(es.EntityType),
		}
	}
	return out
}
