package ingest

import (
	"errors"
	"fmt"

	"github.com/seqtrack-io/seqtrack/internal/tracking"
)

// Sentinel errors for submission validation.
var (
	ErrNilSubmission        = errors.New("submission cannot be nil")
	ErrMissingProjectName   = errors.New("project_name is required")
	ErrMissingNucleicAcid   = errors.New("experiment.nucleic_acid_type is required")
	ErrNoSpecimens          = errors.New("submission carries no specimens")
	ErrMissingSpecimenName  = errors.New("specimen name is required")
	ErrMissingSampleName    = errors.New("sample name is required")
	ErrMissingReadsetName   = errors.New("readset name is required")
	ErrMissingFileName      = errors.New("file name is required")
	ErrMissingLocationURI   = errors.New("location uri is required")
	ErrMissingMetricName    = errors.New("metric name is required")
	ErrNoReadsets           = errors.New("operation names no readsets")
	ErrEmptyConfigPayload   = errors.New("operation config carries neither md5sum nor data")
	ErrInvalidEnumValue     = errors.New("value outside the declared set")
)

// Validator checks submission documents before any scope is opened, so a
// malformed document is rejected without touching the store.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateRunProcessing checks a run-processing submission: identifying
// fields present, enum values inside their closed sets, and at least one
// specimen to attach.
func (v *Validator) ValidateRunProcessing(sub *RunProcessingSubmission) error {
	if sub == nil {
		return ErrNilSubmission
	}

	if sub.ProjectName == "" {
		return ErrMissingProjectName
	}

	if sub.Experiment.NucleicAcidType == "" {
		return ErrMissingNucleicAcid
	}

	if !tracking.NucleicAcidType(sub.Experiment.NucleicAcidType).IsValid() {
		return fmt.Errorf("%w: nucleic_acid_type %q", ErrInvalidEnumValue, sub.Experiment.NucleicAcidType)
	}

	if len(sub.Specimens) == 0 {
		return ErrNoSpecimens
	}

	for _, specimen := range sub.Specimens {
		if err := v.validateSpecimen(specimen); err != nil {
			return err
		}
	}

	return nil
}

func (v *Validator) validateSpecimen(specimen SpecimenSubmission) error {
	if specimen.Name == "" {
		return ErrMissingSpecimenName
	}

	for _, sample := range specimen.Samples {
		if sample.Name == "" {
			return fmt.Errorf("%w (specimen %s)", ErrMissingSampleName, specimen.Name)
		}

		for _, readset := range sample.Readsets {
			if err := v.validateReadset(readset, sample.Name); err != nil {
				return err
			}
		}
	}

	return nil
}

func (v *Validator) validateReadset(readset ReadsetSubmission, sample string) error {
	if readset.Name == "" {
		return fmt.Errorf("%w (sample %s)", ErrMissingReadsetName, sample)
	}

	if readset.Lane != nil && !tracking.Lane(*readset.Lane).IsValid() {
		return fmt.Errorf("%w: lane %q (readset %s)", ErrInvalidEnumValue, *readset.Lane, readset.Name)
	}

	if readset.SequencingType != nil && !tracking.SequencingType(*readset.SequencingType).IsValid() {
		return fmt.Errorf("%w: sequencing_type %q (readset %s)", ErrInvalidEnumValue, *readset.SequencingType, readset.Name)
	}

	for _, file := range readset.Files {
		if err := v.validateFile(file); err != nil {
			return err
		}
	}

	return nil
}

func (v *Validator) validateFile(file FileSubmission) error {
	if file.Name == "" {
		return ErrMissingFileName
	}

	for _, location := range file.Locations {
		if location.URI == "" {
			return fmt.Errorf("%w (file %s)", ErrMissingLocationURI, file.Name)
		}
	}

	return nil
}

// ValidateOperation checks an operation submission before ingestion.
func (v *Validator) ValidateOperation(sub *OperationSubmission) error {
	if sub == nil {
		return ErrNilSubmission
	}

	if sub.ProjectName == "" {
		return ErrMissingProjectName
	}

	if len(sub.ReadsetNames) == 0 {
		return ErrNoReadsets
	}

	if sub.Status != nil && !tracking.Status(*sub.Status).IsValid() {
		return fmt.Errorf("%w: status %q", ErrInvalidEnumValue, *sub.Status)
	}

	if sub.Config != nil && len(sub.Config.Data) == 0 && (sub.Config.MD5Sum == nil || *sub.Config.MD5Sum == "") {
		return ErrEmptyConfigPayload
	}

	for _, job := range sub.Jobs {
		if job.Status != nil && !tracking.Status(*job.Status).IsValid() {
			return fmt.Errorf("%w: job status %q", ErrInvalidEnumValue, *job.Status)
		}

		for _, metric := range job.Metrics {
			if metric.Name == "" {
				return ErrMissingMetricName
			}

			if metric.Flag != nil && !tracking.Flag(*metric.Flag).IsValid() {
				return fmt.Errorf("%w: metric flag %q (metric %s)", ErrInvalidEnumValue, *metric.Flag, metric.Name)
			}

			if metric.Aggregate != nil && !tracking.Aggregate(*metric.Aggregate).IsValid() {
				return fmt.Errorf("%w: metric aggregate %q (metric %s)", ErrInvalidEnumValue, *metric.Aggregate, metric.Name)
			}
		}

		for _, file := range job.Files {
			if err := v.validateFile(file); err != nil {
				return err
			}
		}
	}

	return nil
}
