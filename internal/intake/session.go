// Package intake owns the multi-step intake record: entity fields, officer
// rows and the file ledger of each. The merger and planner never touch it
// directly; they receive copies and return patches.
package intake

import (
	"fmt"
	"maps"
	"time"

	"github.com/joseph-ayodele/merchant-intake/constants"
)

// FileRef is one uploaded document attached to a record.
type FileRef struct {
	FileID     string                     `json:"file_id,omitempty"`
	FileURL    string                     `json:"file_url,omitempty"`
	FileName   string                     `json:"file_name"`
	Category   constants.DocumentCategory `json:"category"`
	ArchiveKey string                     `json:"archive_key,omitempty"`
	UploadedAt time.Time                  `json:"uploaded_at"`
}

type Record struct {
	Fields map[string]string `json:"fields"`
	Files  []FileRef         `json:"files"`
}

func newRecord() Record {
	return Record{Fields: map[string]string{}, Files: []FileRef{}}
}

func (r Record) clone() Record {
	return Record{Fields: maps.Clone(r.Fields), Files: append([]FileRef{}, r.Files...)}
}

type Officer struct {
	ID string `json:"id"`
	// BackendID is the officer_id assigned by SAVE_OFFICER.
	BackendID string `json:"backend_id,omitempty"`
	Record
}

// Session is one merchant's intake in progress.
type Session struct {
	ID         string     `json:"id"`
	MerchantID string     `json:"merchant_id,omitempty"`
	FolderID   string     `json:"folder_id,omitempty"`
	Entity     Record     `json:"entity"`
	Officers   []*Officer `json:"officers"`
	Submitted  bool       `json:"submitted"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (s *Session) clone() Session {
	out := *s
	out.Entity = s.Entity.clone()
	out.Officers = make([]*Officer, len(s.Officers))
	for i, o := range s.Officers {
		out.Officers[i] = &Officer{ID: o.ID, BackendID: o.BackendID, Record: o.Record.clone()}
	}
	return out
}

// Officer returns the officer row with id, or nil.
func (s *Session) Officer(id string) *Officer {
	for _, o := range s.Officers {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// Target names the record an upload or edit writes into.
type Target struct {
	Kind      constants.RecordKind `json:"kind"`
	OfficerID string               `json:"officer_id,omitempty"`
}

func EntityTarget() Target { return Target{Kind: constants.KindEntity} }

func OfficerTarget(id string) Target { return Target{Kind: constants.KindOfficer, OfficerID: id} }

func (t Target) String() string {
	if t.Kind == constants.KindOfficer {
		return "officer:" + t.OfficerID
	}
	return string(t.Kind)
}

// Accepts reports whether a document of category may be written into t.
func (t Target) Accepts(category constants.DocumentCategory) bool {
	return category.Valid() && category.Kind() == t.Kind
}

func (s *Session) record(t Target) (*Record, error) {
	switch t.Kind {
	case constants.KindEntity:
		return &s.Entity, nil
	case constants.KindOfficer:
		o := s.Officer(t.OfficerID)
		if o == nil {
			return nil, fmt.Errorf("officer %q: %w", t.OfficerID, errNotFound)
		}
		return &o.Record, nil
	default:
		return nil, fmt.Errorf("target kind %q: %w", t.Kind, errInvalid)
	}
}
