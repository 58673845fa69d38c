package intake

import (
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/common"
)

var (
	errNotFound = common.ErrNotFound
	errInvalid  = common.ErrInvalidInput
)

// Store keeps sessions in memory. Every method returns copies, so callers
// can read a Session without holding the lock.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	busy     map[string]struct{}
	now      func() time.Time
	logger   *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		busy:     make(map[string]struct{}),
		now:      time.Now,
		logger:   logger,
	}
}

// NewSession starts an intake with one blank officer row.
func (s *Store) NewSession() Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Entity:    newRecord(),
		Officers:  []*Officer{{ID: uuid.NewString(), Record: newRecord()}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.logger.Info("intake.session.created", "session_id", sess.ID)
	return sess.clone()
}

func (s *Store) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("session %q: %w", id, errNotFound)
	}
	return sess.clone(), nil
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// update runs fn on the live session under the lock and returns a copy.
func (s *Store) update(id string, fn func(*Session) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("session %q: %w", id, errNotFound)
	}
	if err := fn(sess); err != nil {
		return Session{}, err
	}
	sess.UpdatedAt = s.now()
	return sess.clone(), nil
}

// edit is update for user-facing changes, which a submitted session refuses.
func (s *Store) edit(id string, fn func(*Session) error) (Session, error) {
	return s.update(id, func(sess *Session) error {
		if sess.Submitted {
			return fmt.Errorf("session %q: %w", id, common.ErrSubmitted)
		}
		return fn(sess)
	})
}

func checkField(kind constants.RecordKind, field string) error {
	if !constants.IsKnownField(kind, field) {
		return fmt.Errorf("unknown %s field %q: %w", kind, field, errInvalid)
	}
	return nil
}

// SetField records a manual edit. An empty value clears the field.
func (s *Store) SetField(id string, t Target, field, value string) (Session, error) {
	if err := checkField(t.Kind, field); err != nil {
		return Session{}, err
	}
	return s.edit(id, func(sess *Session) error {
		rec, err := sess.record(t)
		if err != nil {
			return err
		}
		value = strings.TrimSpace(value)
		if value == "" {
			delete(rec.Fields, field)
		} else {
			rec.Fields[field] = value
		}
		return nil
	})
}

func (s *Store) SetEntityField(id, field, value string) (Session, error) {
	return s.SetField(id, EntityTarget(), field, value)
}

func (s *Store) SetOfficerField(id, officerID, field, value string) (Session, error) {
	return s.SetField(id, OfficerTarget(officerID), field, value)
}

// AddOfficer appends a blank officer row with no role.
func (s *Store) AddOfficer(id string) (Officer, error) {
	var added Officer
	_, err := s.edit(id, func(sess *Session) error {
		o := &Officer{ID: uuid.NewString(), Record: newRecord()}
		sess.Officers = append(sess.Officers, o)
		added = Officer{ID: o.ID, Record: o.Record.clone()}
		return nil
	})
	return added, err
}

// RemoveOfficer drops the row and its ledger.
func (s *Store) RemoveOfficer(id, officerID string) (Session, error) {
	return s.edit(id, func(sess *Session) error {
		for i, o := range sess.Officers {
			if o.ID == officerID {
				sess.Officers = append(sess.Officers[:i], sess.Officers[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("officer %q: %w", officerID, errNotFound)
	})
}

// Fields returns a copy of the target's current fields.
func (s *Store) Fields(id string, t Target) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, errNotFound)
	}
	rec, err := sess.record(t)
	if err != nil {
		return nil, err
	}
	return maps.Clone(rec.Fields), nil
}

// ApplyPatch writes merged fields into the target. Blank values are ignored,
// so a patch can never clear a field.
func (s *Store) ApplyPatch(id string, t Target, fields map[string]string) (Session, error) {
	return s.edit(id, func(sess *Session) error {
		rec, err := sess.record(t)
		if err != nil {
			return err
		}
		for k, v := range fields {
			if strings.TrimSpace(v) == "" || !constants.IsKnownField(t.Kind, k) {
				continue
			}
			rec.Fields[k] = v
		}
		return nil
	})
}

func (s *Store) ApplyEntityPatch(id string, fields map[string]string) (Session, error) {
	return s.ApplyPatch(id, EntityTarget(), fields)
}

func (s *Store) ApplyOfficerPatch(id, officerID string, fields map[string]string) (Session, error) {
	return s.ApplyPatch(id, OfficerTarget(officerID), fields)
}

// AttachFile appends to the target's ledger.
func (s *Store) AttachFile(id string, t Target, ref FileRef) (Session, error) {
	if ref.UploadedAt.IsZero() {
		ref.UploadedAt = s.now()
	}
	return s.edit(id, func(sess *Session) error {
		rec, err := sess.record(t)
		if err != nil {
			return err
		}
		rec.Files = append(rec.Files, ref)
		return nil
	})
}

// SetArchiveKey records where a ledger entry was archived.
func (s *Store) SetArchiveKey(id string, t Target, fileName, key string) error {
	_, err := s.update(id, func(sess *Session) error {
		rec, err := sess.record(t)
		if err != nil {
			return err
		}
		for i := len(rec.Files) - 1; i >= 0; i-- {
			if rec.Files[i].FileName == fileName && rec.Files[i].ArchiveKey == "" {
				rec.Files[i].ArchiveKey = key
				return nil
			}
		}
		return fmt.Errorf("file %q: %w", fileName, errNotFound)
	})
	return err
}

func (s *Store) SetMerchant(id, merchantID, folderID string) (Session, error) {
	return s.update(id, func(sess *Session) error {
		sess.MerchantID = merchantID
		if folderID != "" {
			sess.FolderID = folderID
		}
		return nil
	})
}

func (s *Store) SetOfficerBackendID(id, officerID, backendID string) error {
	_, err := s.update(id, func(sess *Session) error {
		o := sess.Officer(officerID)
		if o == nil {
			return fmt.Errorf("officer %q: %w", officerID, errNotFound)
		}
		o.BackendID = backendID
		return nil
	})
	return err
}

func (s *Store) MarkSubmitted(id string) (Session, error) {
	return s.update(id, func(sess *Session) error {
		sess.Submitted = true
		return nil
	})
}

func busyKey(id string, t Target) string { return id + "/" + t.String() }

func submitKey(id string) string { return id + "#submit" }

// BeginAnalysis marks the target as analyzing. A second call before
// EndAnalysis fails with ErrBusy, so two merges never race on one record.
// Submitted sessions and sessions being submitted take no new analyses.
func (s *Store) BeginAnalysis(id string, t Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %q: %w", id, errNotFound)
	}
	if sess.Submitted {
		return fmt.Errorf("session %q: %w", id, common.ErrSubmitted)
	}
	if _, err := sess.record(t); err != nil {
		return err
	}
	if _, submitting := s.busy[submitKey(id)]; submitting {
		return fmt.Errorf("session %q submitting: %w", id, common.ErrBusy)
	}
	key := busyKey(id, t)
	if _, busy := s.busy[key]; busy {
		return fmt.Errorf("%s: %w", t, common.ErrBusy)
	}
	s.busy[key] = struct{}{}
	return nil
}

func (s *Store) EndAnalysis(id string, t Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, busyKey(id, t))
}

// Analyzing reports whether the target has an analysis in flight.
func (s *Store) Analyzing(id string, t Target) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.busy[busyKey(id, t)]
	return busy
}

// BeginSubmit claims the session for one submission. It fails with ErrBusy
// while another submit or any analysis of the session is in flight.
func (s *Store) BeginSubmit(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %q: %w", id, errNotFound)
	}
	if sess.Submitted {
		return fmt.Errorf("session %q: %w", id, common.ErrSubmitted)
	}
	key := submitKey(id)
	if _, busy := s.busy[key]; busy {
		return fmt.Errorf("session %q submitting: %w", id, common.ErrBusy)
	}
	prefix := id + "/"
	for k := range s.busy {
		if strings.HasPrefix(k, prefix) {
			return fmt.Errorf("session %q analyzing: %w", id, common.ErrBusy)
		}
	}
	s.busy[key] = struct{}{}
	return nil
}

func (s *Store) EndSubmit(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, submitKey(id))
}
