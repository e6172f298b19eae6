package tracking

import "errors"

// Field-level sentinel errors wrapped by ValidationError.
var (
	ErrMissingName            = errors.New("name is required")
	ErrMissingURI             = errors.New("uri is required")
	ErrMissingEndpoint        = errors.New("endpoint is required")
	ErrMissingParent          = errors.New("parent reference is required")
	ErrMissingNucleicAcidType = errors.New("nucleic_acid_type is required")
	ErrInvalidEnumValue       = errors.New("value outside the declared set")
)

// Validator performs semantic validation of tracking entities before they are
// handed to the store: required fields present, enumeration values inside
// their closed sets, parent references set. Constraint enforcement proper
// (uniqueness, foreign keys) stays with the store.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

func fieldError(table, field string, err error) error {
	return &ValidationError{Table: table, Field: field, Err: err}
}

// ValidateProject checks required fields on a project.
func (v *Validator) ValidateProject(p *Project) error {
	if p == nil {
		return ErrNilEntity
	}

	if p.Name == "" {
		return fieldError(TableProject, "name", ErrMissingName)
	}

	return nil
}

// ValidateSpecimen checks required fields and the project reference.
func (v *Validator) ValidateSpecimen(s *Specimen) error {
	if s == nil {
		return ErrNilEntity
	}

	if s.Name == "" {
		return fieldError(TableSpecimen, "name", ErrMissingName)
	}

	if s.ProjectID == 0 {
		return fieldError(TableSpecimen, "project_id", ErrMissingParent)
	}

	return nil
}

// ValidateSample checks required fields and the specimen reference.
func (v *Validator) ValidateSample(s *Sample) error {
	if s == nil {
		return ErrNilEntity
	}

	if s.Name == "" {
		return fieldError(TableSample, "name", ErrMissingName)
	}

	if s.SpecimenID == 0 {
		return fieldError(TableSample, "specimen_id", ErrMissingParent)
	}

	return nil
}

// ValidateExperiment checks the required nucleic acid type.
func (v *Validator) ValidateExperiment(e *Experiment) error {
	if e == nil {
		return ErrNilEntity
	}

	if e.NucleicAcidType == "" {
		return fieldError(TableExperiment, "nucleic_acid_type", ErrMissingNucleicAcidType)
	}

	if !e.NucleicAcidType.IsValid() {
		return fieldError(TableExperiment, "nucleic_acid_type", ErrInvalidEnumValue)
	}

	return nil
}

// ValidateReadset checks required fields, the three parent references, and
// the closed sets of lane, sequencing type and state.
func (v *Validator) ValidateReadset(r *Readset) error {
	if r == nil {
		return ErrNilEntity
	}

	if r.Name == "" {
		return fieldError(TableReadset, "name", ErrMissingName)
	}

	if r.SampleID == 0 {
		return fieldError(TableReadset, "sample_id", ErrMissingParent)
	}

	if r.ExperimentID == 0 {
		return fieldError(TableReadset, "experiment_id", ErrMissingParent)
	}

	if r.RunID == 0 {
		return fieldError(TableReadset, "run_id", ErrMissingParent)
	}

	if r.Lane != nil && !r.Lane.IsValid() {
		return fieldError(TableReadset, "lane", ErrInvalidEnumValue)
	}

	if r.SequencingType != nil && !r.SequencingType.IsValid() {
		return fieldError(TableReadset, "sequencing_type", ErrInvalidEnumValue)
	}

	if r.State != "" && !r.State.IsValid() {
		return fieldError(TableReadset, "state", ErrInvalidEnumValue)
	}

	return nil
}

// ValidateOperation checks the project reference and the status set.
func (v *Validator) ValidateOperation(o *Operation) error {
	if o == nil {
		return ErrNilEntity
	}

	if o.ProjectID == 0 {
		return fieldError(TableOperation, "project_id", ErrMissingParent)
	}

	if o.Status != "" && !o.Status.IsValid() {
		return fieldError(TableOperation, "status", ErrInvalidEnumValue)
	}

	return nil
}

// ValidateJob checks the operation reference and the status set.
func (v *Validator) ValidateJob(j *Job) error {
	if j == nil {
		return ErrNilEntity
	}

	if j.OperationID == 0 {
		return fieldError(TableJob, "operation_id", ErrMissingParent)
	}

	if j.Status != nil && !j.Status.IsValid() {
		return fieldError(TableJob, "status", ErrInvalidEnumValue)
	}

	return nil
}

// ValidateMetric checks the required name, the job reference, and the flag
// and aggregate sets.
func (v *Validator) ValidateMetric(m *Metric) error {
	if m == nil {
		return ErrNilEntity
	}

	if m.Name == "" {
		return fieldError(TableMetric, "name", ErrMissingName)
	}

	if m.JobID == 0 {
		return fieldError(TableMetric, "job_id", ErrMissingParent)
	}

	if m.Flag != nil && !m.Flag.IsValid() {
		return fieldError(TableMetric, "flag", ErrInvalidEnumValue)
	}

	if m.Aggregate != nil && !m.Aggregate.IsValid() {
		return fieldError(TableMetric, "aggregate", ErrInvalidEnumValue)
	}

	return nil
}

// ValidateFile checks the required name.
func (v *Validator) ValidateFile(f *File) error {
	if f == nil {
		return ErrNilEntity
	}

	if f.Name == "" {
		return fieldError(TableFile, "name", ErrMissingName)
	}

	return nil
}

// ValidateLocation checks the required uri and endpoint and the file
// reference.
func (v *Validator) ValidateLocation(l *Location) error {
	if l == nil {
		return ErrNilEntity
	}

	if l.URI == "" {
		return fieldError(TableLocation, "uri", ErrMissingURI)
	}

	if l.Endpoint == "" {
		return fieldError(TableLocation, "endpoint", ErrMissingEndpoint)
	}

	if l.FileID == 0 {
		return fieldError(TableLocation, "file_id", ErrMissingParent)
	}

	return nil
}
