package batch

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// MessageValidator validates built messages against a pre-loaded JSON schema
// before they are handed to the delivery channel, so malformed templates fail
// the run at build time instead of as a convergence timeout.
type MessageValidator struct {
	once   sync.Once
	schema *gojsonschema.Schema
	err    error
	path   string
}

func NewMessageValidator(schemaPath string) *MessageValidator {
	return &MessageValidator{path: schemaPath}
}

func (v *MessageValidator) load() {
	abs, err := filepath.Abs(v.path)
	if err != nil {
		v.err = fmt.Errorf("resolve schema path: %w", err)
		return
	}
	loader := gojsonschema.NewReferenceLoader("file://" + filepath.ToSlash(abs))
	v.schema, v.err = gojsonschema.NewSchema(loader)
	if v.err != nil {
		v.err = fmt.Errorf("compile schema: %w", v.err)
	}
}

func (v *MessageValidator) Validate(doc any) error {
	v.once.Do(v.load)
	if v.err != nil {
		return v.err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	res, err := v.schema.Validate(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return err
	}
	if !res.Valid() {
		return fmt.Errorf("message invalid: %v", res.Errors())
	}
	return nil
}

// ValidatePlan checks every message in the plan, reporting the first invalid
// item by its traceable id.
func (v *MessageValidator) ValidatePlan(plan *Plan) error {
	for _, item := range plan.Items {
		if err := v.Validate(item.Payload); err != nil {
			return fmt.Errorf("message %s: %w", item.TransactionID, err)
		}
	}
	return nil
}
