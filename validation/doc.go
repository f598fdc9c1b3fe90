// Package validation validates job descriptors and configuration sections.
//
// Struct tag validation uses go-playground/validator:
//
//	type JobDescriptor struct {
//	    JobID   string   `json:"job_id" validate:"required"`
//	    Sources []string `json:"sources" validate:"required,min=1,dive,required"`
//	}
//	err := validation.Validate(desc)
//
// Programmatic validation collects errors for rules tags cannot express:
//
//	v := validation.New()
//	v.Range("speaker.gap", cfg.Gap, 0, 1)
//	err := v.Err()
package validation
