package pipeline

import (
	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/intake"
	"github.com/joseph-ayodele/merchant-intake/internal/planner"
)

type OfficerSuggestion struct {
	OfficerID     string                       `json:"officer_id"`
	UploadEnabled bool                         `json:"upload_enabled"`
	Categories    []constants.DocumentCategory `json:"categories"`
}

// Suggestions is the planner view of a whole session.
type Suggestions struct {
	Entity   []constants.DocumentCategory `json:"entity"`
	Officers []OfficerSuggestion          `json:"officers"`
	Complete bool                         `json:"complete"`
}

// Suggest recomputes the planner for every record of the session.
func Suggest(s intake.Session) Suggestions {
	out := Suggestions{
		Entity:   planner.SuggestedCategories(s.Entity.Fields, constants.KindEntity),
		Officers: make([]OfficerSuggestion, 0, len(s.Officers)),
	}
	complete := planner.Complete(s.Entity.Fields, constants.KindEntity)
	for _, o := range s.Officers {
		out.Officers = append(out.Officers, OfficerSuggestion{
			OfficerID:     o.ID,
			UploadEnabled: planner.UploadEnabled(o.Fields),
			Categories:    planner.OfficerCategories(o.Fields),
		})
		complete = complete && planner.Complete(o.Fields, constants.KindOfficer)
	}
	out.Complete = complete
	return out
}

// Suggest loads the session and plans it.
func (p *Processor) Suggest(sessionID string) (Suggestions, error) {
	s, err := p.store.Get(sessionID)
	if err != nil {
		return Suggestions{}, err
	}
	return Suggest(s), nil
}
