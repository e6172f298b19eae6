// Package ingest turns pipeline submission documents into tracking records.
//
// Two document kinds are accepted. A run-processing submission describes
// everything one sequencing run produced for one project: the run, the
// experiment protocol, and the specimen > sample > readset tree with the
// files written for each readset. An operation submission records a pipeline
// execution after the fact: the operation, its configuration and reference,
// its jobs with their metrics and output files, attached to readsets that
// already exist.
//
// Ingestion is idempotent end to end. Every entity resolves through the
// store's get-or-create scopes, so resubmitting a document creates no new
// rows; ownership conflicts detected along the way are reported on the
// result rather than aborting the batch.
package ingest

import "time"

type (
	// RunProcessingSubmission is the wire document for one run's output.
	// These are pure transport models; the ingester maps them onto the
	// tracking domain types.
	RunProcessingSubmission struct {
		ProjectName  string         `json:"project_name"`
		ProjectAlias map[string]any `json:"project_alias,omitempty"`

		Run        RunSubmission        `json:"run"`
		Experiment ExperimentSubmission `json:"experiment"`

		Specimens []SpecimenSubmission `json:"specimens"`
	}

	// RunSubmission carries the run attribute tuple. ExtID/ExtSrc link the
	// run to the upstream system of record when one exists.
	RunSubmission struct {
		ExtID      *int64     `json:"ext_id,omitempty"`
		ExtSrc     *string    `json:"ext_src,omitempty"`
		Name       *string    `json:"name,omitempty"`
		Instrument *string    `json:"instrument,omitempty"`
		Date       *time.Time `json:"date,omitempty"`
	}

	// ExperimentSubmission carries the experiment attribute tuple.
	ExperimentSubmission struct {
		SequencingTechnology *string    `json:"sequencing_technology,omitempty"`
		Type                 *string    `json:"type,omitempty"`
		NucleicAcidType      string     `json:"nucleic_acid_type"`
		LibraryKit           *string    `json:"library_kit,omitempty"`
		KitExpirationDate    *time.Time `json:"kit_expiration_date,omitempty"`
	}

	// SpecimenSubmission is one specimen and the samples derived from it.
	SpecimenSubmission struct {
		Name        string  `json:"name"`
		Cohort      *string `json:"cohort,omitempty"`
		Institution *string `json:"institution,omitempty"`

		Samples []SampleSubmission `json:"samples"`
	}

	// SampleSubmission is one sample and the readsets sequenced from it.
	SampleSubmission struct {
		Name   string `json:"name"`
		Tumour bool   `json:"tumour,omitempty"`

		Readsets []ReadsetSubmission `json:"readsets"`
	}

	// ReadsetSubmission is one unit of sequencing output and its files.
	ReadsetSubmission struct {
		Name           string         `json:"name"`
		Alias          map[string]any `json:"alias,omitempty"`
		Lane           *string        `json:"lane,omitempty"`
		Adapter1       *string        `json:"adapter1,omitempty"`
		Adapter2       *string        `json:"adapter2,omitempty"`
		SequencingType *string        `json:"sequencing_type,omitempty"`

		Files []FileSubmission `json:"files,omitempty"`
	}

	// FileSubmission is one produced artifact and where it lives.
	FileSubmission struct {
		Name        string  `json:"name"`
		Type        *string `json:"type,omitempty"`
		MD5Sum      *string `json:"md5sum,omitempty"`
		Deliverable bool    `json:"deliverable,omitempty"`

		Locations []LocationSubmission `json:"locations,omitempty"`
	}

	// LocationSubmission points at one copy of a file. Endpoint is optional;
	// when empty it is derived from the uri scheme.
	LocationSubmission struct {
		URI      string `json:"uri"`
		Endpoint string `json:"endpoint,omitempty"`
	}

	// OperationSubmission records a pipeline execution against existing
	// readsets.
	OperationSubmission struct {
		ProjectName string  `json:"project_name"`
		Name        *string `json:"name,omitempty"`
		Platform    *string `json:"platform,omitempty"`
		CmdLine     *string `json:"cmd_line,omitempty"`
		Status      *string `json:"status,omitempty"`

		Config    *OperationConfigSubmission `json:"config,omitempty"`
		Reference *ReferenceSubmission       `json:"reference,omitempty"`

		ReadsetNames []string        `json:"readset_names"`
		Jobs         []JobSubmission `json:"jobs,omitempty"`
	}

	// OperationConfigSubmission is the pipeline configuration payload. When
	// MD5Sum is empty the ingester computes it from Data, so identical
	// payloads converge on one config row.
	OperationConfigSubmission struct {
		Name    *string `json:"name,omitempty"`
		Version *string `json:"version,omitempty"`
		MD5Sum  *string `json:"md5sum,omitempty"`
		Data    []byte  `json:"data,omitempty"`
	}

	// ReferenceSubmission names the reference genome the operation ran
	// against.
	ReferenceSubmission struct {
		Name     *string `json:"name,omitempty"`
		Alias    *string `json:"alias,omitempty"`
		Assembly *string `json:"assembly,omitempty"`
		Version  *string `json:"version,omitempty"`
		TaxonID  *string `json:"taxon_id,omitempty"`
		Source   *string `json:"source,omitempty"`
	}

	// JobSubmission is one pipeline step with its measurements and outputs.
	JobSubmission struct {
		Name   *string    `json:"name,omitempty"`
		Start  *time.Time `json:"start,omitempty"`
		Stop   *time.Time `json:"stop,omitempty"`
		Status *string    `json:"status,omitempty"`
		Type   *string    `json:"type,omitempty"`

		Metrics []MetricSubmission `json:"metrics,omitempty"`
		Files   []FileSubmission   `json:"files,omitempty"`
	}

	// MetricSubmission is one named measurement emitted by a job.
	MetricSubmission struct {
		Name        string  `json:"name"`
		Value       *string `json:"value,omitempty"`
		Flag        *string `json:"flag,omitempty"`
		Deliverable bool    `json:"deliverable,omitempty"`
		Aggregate   *string `json:"aggregate,omitempty"`
	}
)
