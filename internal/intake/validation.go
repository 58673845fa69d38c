package intake

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/common"
)

const (
	StepEntity   = "entity"
	StepOfficers = "officers"
)

// StepValidationError lists what blocks advancing past a step.
type StepValidationError struct {
	Step    string
	Missing []string
}

func (e *StepValidationError) Error() string {
	return fmt.Sprintf("%s step incomplete: missing %s", e.Step, strings.Join(e.Missing, ", "))
}

func (e *StepValidationError) Unwrap() error { return common.ErrValidation }

// ValidateEntityStep requires a company name.
func ValidateEntityStep(s Session) error {
	v := common.NewValidator().
		Field(constants.FieldCompanyName, s.Entity.Fields[constants.FieldCompanyName], common.Required)
	if missing := v.MissingFields(); len(missing) > 0 {
		return &StepValidationError{Step: StepEntity, Missing: missing}
	}
	return nil
}

// ValidateOfficersStep requires at least one officer, each with a name and a
// role. Missing entries are reported as officers[i].field.
func ValidateOfficersStep(s Session) error {
	if len(s.Officers) == 0 {
		return &StepValidationError{Step: StepOfficers, Missing: []string{"officers"}}
	}
	v := common.NewValidator()
	for i, o := range s.Officers {
		prefix := fmt.Sprintf("officers[%d].", i)
		v.Field(prefix+constants.FieldFullName, o.Fields[constants.FieldFullName], common.Required).
			Field(prefix+constants.FieldRole, o.Fields[constants.FieldRole], common.Required)
	}
	if missing := v.MissingFields(); len(missing) > 0 {
		return &StepValidationError{Step: StepOfficers, Missing: missing}
	}
	return nil
}
