// Package tracking provides the domain model for the sequencing-pipeline
// tracking database: projects, specimens, samples, readsets, and the
// operations, jobs, metrics and files produced while processing them.
//
// These are pure domain types without persistence tags. The storage layer
// (internal/storage) maps them to the relational schema defined in
// migrations/; relationship edges are carried as id slices populated by the
// store's loaders, except File locations which are nested in full because
// consumers need the uri/endpoint detail, not just a reference.
package tracking

import "time"

// Table names, used as the discriminator in flat records and as the table
// argument of flag updates.
const (
	TableProject         = "project"
	TableSpecimen        = "specimen"
	TableSample          = "sample"
	TableExperiment      = "experiment"
	TableRun             = "run"
	TableReadset         = "readset"
	TableOperation       = "operation"
	TableReference       = "reference"
	TableOperationConfig = "operation_config"
	TableJob             = "job"
	TableMetric          = "metric"
	TableFile            = "file"
	TableLocation        = "location"
)

type (
	// Metadata is the open-ended extension map carried by every entity
	// (extra_metadata) and by the alias columns. Stored as a single JSON
	// document; updates replace the whole value.
	Metadata map[string]any

	// Envelope holds the fields every entity shares. The id is assigned by
	// the store on insert and immutable afterwards; creation and
	// modification timestamps are store-managed (modification is nil until
	// the first update). ExtID/ExtSrc optionally link the record to an
	// outside system of record, e.g. a freezer-management system.
	Envelope struct {
		ID            int64
		Deprecated    bool
		Deleted       bool
		Creation      time.Time
		Modification  *time.Time
		ExtraMetadata Metadata
		ExtID         *int64
		ExtSrc        *string
	}

	// Project is the top-level grouping. Name is globally unique. Deleting a
	// project cascades to its specimens and operations.
	Project struct {
		Envelope

		Name  string
		Alias Metadata

		SpecimenIDs  []int64
		OperationIDs []int64
	}

	// Specimen is biological material received from an institution, owned by
	// a project. Name is globally unique.
	Specimen struct {
		Envelope

		ProjectID   int64
		Name        string
		Alias       Metadata
		Cohort      *string
		Institution *string

		SampleIDs []int64
	}

	// Sample is a preparation derived from a specimen. Name is globally
	// unique.
	Sample struct {
		Envelope

		SpecimenID int64
		Name       string
		Alias      Metadata
		Tumour     bool

		ReadsetIDs []int64
	}

	// Experiment describes the sequencing protocol a readset was produced
	// under. It has no unique name; identity is the full attribute tuple.
	Experiment struct {
		Envelope

		SequencingTechnology *string
		Type                 *string
		NucleicAcidType      NucleicAcidType
		LibraryKit           *string
		KitExpirationDate    *time.Time

		ReadsetIDs []int64
	}

	// Run is one instrument run. Identity for resolution is the attribute
	// tuple including the external linkage.
	Run struct {
		Envelope

		Name       *string
		Instrument *string
		Date       *time.Time

		ReadsetIDs []int64
	}

	// Readset is one unit of sequencing output, tied to a sample, an
	// experiment and a run. Name is globally unique.
	Readset struct {
		Envelope

		SampleID       int64
		ExperimentID   int64
		RunID          int64
		Name           string
		Alias          Metadata
		Lane           *Lane
		Adapter1       *string
		Adapter2       *string
		SequencingType *SequencingType
		State          State

		FileIDs      []int64
		OperationIDs []int64
		JobIDs       []int64
		MetricIDs    []int64
	}

	// Operation is one execution of a pipeline, owned by a project and
	// optionally tied to a configuration and a reference genome.
	Operation struct {
		Envelope

		ProjectID         int64
		OperationConfigID *int64
		ReferenceID       *int64
		Platform          *string
		CmdLine           *string
		Name              *string
		Status            Status

		JobIDs     []int64
		ReadsetIDs []int64
	}

	// Reference is a reference genome/assembly an operation ran against.
	Reference struct {
		Envelope

		Name     *string
		Alias    *string
		Assembly *string
		Version  *string
		TaxonID  *string
		Source   *string

		OperationIDs []int64
	}

	// OperationConfig is a versioned, content-addressed pipeline
	// configuration payload. MD5Sum is unique.
	OperationConfig struct {
		Envelope

		Name    *string
		Version *string
		MD5Sum  *string
		Data    []byte

		OperationIDs []int64
	}

	// Job is one step of an operation.
	Job struct {
		Envelope

		OperationID int64
		Name        *string
		Start       *time.Time
		Stop        *time.Time
		Status      *Status
		Type        *string

		MetricIDs  []int64
		FileIDs    []int64
		ReadsetIDs []int64
	}

	// Metric is a named measurement emitted by a job.
	Metric struct {
		Envelope

		JobID       int64
		Name        string
		Value       *string
		Flag        *Flag
		Deliverable bool
		Aggregate   *Aggregate

		ReadsetIDs []int64
	}

	// File is a produced artifact, possibly stored at several locations.
	File struct {
		Envelope

		Name        string
		Type        *string
		MD5Sum      *string
		Deliverable bool

		Locations  []*Location
		ReadsetIDs []int64
		JobIDs     []int64
	}

	// Location is a physical storage pointer for a file. URI is globally
	// unique; the endpoint names the storage system the uri lives on.
	Location struct {
		Envelope

		FileID      int64
		URI         string
		Endpoint    string
		Deliverable bool
	}

	// ReadsetAttributes carries a readset's own fields for resolution. Name
	// is the natural key; the rest is stored on first creation only, since
	// resolution returns an existing readset unchanged.
	ReadsetAttributes struct {
		Name           string
		Alias          Metadata
		Lane           *Lane
		Adapter1       *string
		Adapter2       *string
		SequencingType *SequencingType
	}

	// ExperimentAttributes is the natural key of an experiment. Nil fields
	// match stored NULLs.
	ExperimentAttributes struct {
		SequencingTechnology *string
		Type                 *string
		NucleicAcidType      NucleicAcidType
		LibraryKit           *string
		KitExpirationDate    *time.Time
	}

	// RunAttributes is the natural key of a run. Nil fields match stored
	// NULLs.
	RunAttributes struct {
		ExtID      *int64
		ExtSrc     *string
		Name       *string
		Instrument *string
		Date       *time.Time
	}

	// OperationConfigAttributes is the natural key of an operation config,
	// including the content hash.
	OperationConfigAttributes struct {
		Name    *string
		Version *string
		MD5Sum  *string
		Data    []byte
	}
)

// TableName implementations give every entity its flat-record discriminator.

func (p *Project) TableName() string          { return TableProject }
func (s *Specimen) TableName() string         { return TableSpecimen }
func (s *Sample) TableName() string           { return TableSample }
func (e *Experiment) TableName() string       { return TableExperiment }
func (r *Run) TableName() string              { return TableRun }
func (r *Readset) TableName() string          { return TableReadset }
func (o *Operation) TableName() string        { return TableOperation }
func (r *Reference) TableName() string        { return TableReference }
func (c *OperationConfig) TableName() string  { return TableOperationConfig }
func (j *Job) TableName() string              { return TableJob }
func (m *Metric) TableName() string           { return TableMetric }
func (f *File) TableName() string             { return TableFile }
func (l *Location) TableName() string         { return TableLocation }

// Merge returns a copy of m with the keys of other layered on top (shallow
// merge, last writer wins). Neither receiver nor argument is modified; the
// store writes the merged value back as one document.
func (m Metadata) Merge(other Metadata) Metadata {
	if m == nil && other == nil {
		return nil
	}

	merged := make(Metadata, len(m)+len(other))

	for k, v := range m {
		merged[k] = v
	}

	for k, v := range other {
		merged[k] = v
	}

	return merged
}

// Ptr returns a pointer to v. Convenience for the pointer-typed nullable
// fields on the models.
func Ptr[T any](v T) *T { return &v }
