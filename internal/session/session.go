// Package session implements one registry "tab": an independently running
// view of the shared record set, kept convergent with its peers through the
// broadcast bus and the persistent store. The in-memory list is a disposable
// cache of the latest snapshot; the store alone is the source of truth.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/medisync/registry/internal/model"
	"github.com/medisync/registry/internal/protocol"
	"github.com/medisync/registry/internal/repository"
	"github.com/medisync/registry/internal/service/registration"
	"github.com/medisync/registry/pkg/logger"
	"github.com/medisync/registry/pkg/messaging"
	"github.com/medisync/registry/pkg/metrics"
)

// Origin tags a search-text update with where it came from. The decision to
// republish is a pure function of this tag: local updates publish, remote
// updates never do. Republishing a remote update would hand it to every peer
// again and start a forwarding storm, since the bus only excludes the
// original sender, not its recipients' re-broadcasts.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

// ListState distinguishes an empty registry from an empty filter result.
// The two render differently and must never be conflated.
type ListState string

const (
	ListStateOK        ListState = "ok"
	ListStateNoMatch   ListState = "no_match"
	ListStateNoRecords ListState = "no_records"
)

// View is a point-in-time copy of the session's visible state.
type View struct {
	SearchText string          `json:"searchText"`
	Patients   []model.Patient `json:"patients"`
	Total      int             `json:"total"`
	State      ListState       `json:"state"`
}

// Session owns the two long-lived channel handles, the view state, and the
// registration workflow for one execution context.
type Session struct {
	id        uuid.UUID
	repo      repository.PatientRepository
	registrar *registration.Service
	data      *protocol.DataLink
	filter    *protocol.FilterLink
	logger    *logger.Logger
	metrics   *metrics.Metrics

	mu           sync.Mutex
	searchText   string
	fullList     []model.Patient
	filteredList []model.Patient
	onChange     func()

	closeOnce sync.Once
}

// New opens both channel handles, subscribes, and loads the initial list. A
// failing initial load is reported but not fatal: the session starts on its
// last-known (empty) list and converges on the next snapshot or refresh.
func New(repo repository.PatientRepository, bus messaging.Bus, limiter *rate.Limiter, log *logger.Logger, m *metrics.Metrics) (*Session, error) {
	id := uuid.New()
	log = log.WithFields(map[string]interface{}{"session": id.String()})

	data, err := protocol.NewDataLink(bus, log, m)
	if err != nil {
		return nil, err
	}
	filter, err := protocol.NewFilterLink(bus, limiter, log, m)
	if err != nil {
		data.Close()
		return nil, err
	}

	s := &Session{
		id:        id,
		repo:      repo,
		registrar: registration.NewService(repo, data, log, m),
		data:      data,
		filter:    filter,
		logger:    log,
		metrics:   m,
		fullList:  []model.Patient{},
	}

	if err := data.Subscribe(s.ApplySnapshot); err != nil {
		s.Close()
		return nil, err
	}
	if err := filter.Subscribe(func(search string) {
		s.applySearch(context.Background(), search, OriginRemote)
	}); err != nil {
		s.Close()
		return nil, err
	}

	if err := s.Refresh(context.Background()); err != nil {
		log.Error(err, "initial load failed, starting with empty list")
	}

	return s, nil
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// SetOnChange registers a callback fired after every visible state change.
func (s *Session) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Register runs the registration workflow and, on success, applies the fresh
// snapshot locally — peers got it over the bus, the publisher never does.
func (s *Session) Register(ctx context.Context, req *model.RegisterPatientRequest) ([]model.Patient, error) {
	patients, err := s.registrar.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	s.ApplySnapshot(patients)
	return patients, nil
}

// SetSearch applies a genuine local edit of the search text.
func (s *Session) SetSearch(ctx context.Context, text string) {
	s.applySearch(ctx, text, OriginLocal)
}

func (s *Session) applySearch(ctx context.Context, text string, origin Origin) {
	s.mu.Lock()
	s.searchText = text
	s.refilterLocked()
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}

	if origin == OriginRemote {
		if s.metrics != nil {
			s.metrics.FilterEchoesSuppressed.Inc()
		}
		return
	}
	if err := s.filter.Broadcast(ctx, text); err != nil {
		s.logger.Error(err, "failed to broadcast filter change")
	}
}

// ApplySnapshot replaces the full list verbatim with a broadcast or read-back
// snapshot and recomputes the filtered view.
func (s *Session) ApplySnapshot(patients []model.Patient) {
	if patients == nil {
		patients = []model.Patient{}
	}

	s.mu.Lock()
	s.fullList = patients
	s.refilterLocked()
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Refresh reloads the list from the store. On failure the last-known list
// stays in place.
func (s *Session) Refresh(ctx context.Context) error {
	patients, err := s.repo.ListAll(ctx)
	if err != nil {
		return err
	}
	s.ApplySnapshot(patients)
	return nil
}

// View returns a copy of the current visible state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := ListStateOK
	switch {
	case len(s.fullList) == 0:
		state = ListStateNoRecords
	case len(s.filteredList) == 0:
		state = ListStateNoMatch
	}

	patients := make([]model.Patient, len(s.filteredList))
	copy(patients, s.filteredList)

	return View{
		SearchText: s.searchText,
		Patients:   patients,
		Total:      len(s.fullList),
		State:      state,
	}
}

// refilterLocked recomputes filteredList from searchText and fullList. A
// record matches when any of full name, email, or contact number contains the
// search text; name and email match case-insensitively.
func (s *Session) refilterLocked() {
	q := strings.ToLower(s.searchText)

	filtered := make([]model.Patient, 0, len(s.fullList))
	for _, p := range s.fullList {
		name := strings.ToLower(p.FirstName + " " + p.LastName)
		if strings.Contains(name, q) ||
			strings.Contains(strings.ToLower(p.Email), q) ||
			strings.Contains(p.ContactNumber, q) {
			filtered = append(filtered, p)
		}
	}
	s.filteredList = filtered
}

// Close releases both channel handles. Idempotent; delivery stops once it
// returns.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := s.filter.Close(); err != nil {
			s.logger.Error(err, "failed to close filter channel")
		}
		if err := s.data.Close(); err != nil {
			s.logger.Error(err, "failed to close data channel")
		}
	})
	return nil
}
