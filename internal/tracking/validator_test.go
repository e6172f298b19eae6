package tracking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProject(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.ValidateProject(&Project{Name: "AS21"}))

	err := v.ValidateProject(&Project{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrMissingName)

	assert.ErrorIs(t, v.ValidateProject(nil), ErrNilEntity)
}

func TestValidateSpecimen(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.ValidateSpecimen(&Specimen{Name: "SP1", ProjectID: 1}))

	err := v.ValidateSpecimen(&Specimen{Name: "SP1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingParent)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, TableSpecimen, ve.Table)
	assert.Equal(t, "project_id", ve.Field)
}

func TestValidateSample(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.ValidateSample(&Sample{Name: "SM1", SpecimenID: 1}))
	assert.ErrorIs(t, v.ValidateSample(&Sample{SpecimenID: 1}), ErrMissingName)
	assert.ErrorIs(t, v.ValidateSample(&Sample{Name: "SM1"}), ErrMissingParent)
}

func TestValidateExperiment(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.ValidateExperiment(&Experiment{NucleicAcidType: NucleicAcidDNA}))

	assert.ErrorIs(t, v.ValidateExperiment(&Experiment{}), ErrMissingNucleicAcidType)
	assert.ErrorIs(t, v.ValidateExperiment(&Experiment{NucleicAcidType: "PROTEIN"}), ErrInvalidEnumValue)
}

func TestValidateReadset(t *testing.T) {
	v := NewValidator()

	valid := &Readset{
		Name:         "RS1",
		SampleID:     1,
		ExperimentID: 2,
		RunID:        3,
		State:        StateValid,
	}
	require.NoError(t, v.ValidateReadset(valid))

	tests := []struct {
		name    string
		readset *Readset
		want    error
	}{
		{
			name:    "missing name",
			readset: &Readset{SampleID: 1, ExperimentID: 2, RunID: 3},
			want:    ErrMissingName,
		},
		{
			name:    "missing sample",
			readset: &Readset{Name: "RS1", ExperimentID: 2, RunID: 3},
			want:    ErrMissingParent,
		},
		{
			name:    "missing experiment",
			readset: &Readset{Name: "RS1", SampleID: 1, RunID: 3},
			want:    ErrMissingParent,
		},
		{
			name:    "missing run",
			readset: &Readset{Name: "RS1", SampleID: 1, ExperimentID: 2},
			want:    ErrMissingParent,
		},
		{
			name: "lane outside set",
			readset: &Readset{
				Name: "RS1", SampleID: 1, ExperimentID: 2, RunID: 3,
				Lane: Ptr(Lane("9")),
			},
			want: ErrInvalidEnumValue,
		},
		{
			name: "sequencing type outside set",
			readset: &Readset{
				Name: "RS1", SampleID: 1, ExperimentID: 2, RunID: 3,
				SequencingType: Ptr(SequencingType("MATE_PAIR")),
			},
			want: ErrInvalidEnumValue,
		},
		{
			name: "state outside set",
			readset: &Readset{
				Name: "RS1", SampleID: 1, ExperimentID: 2, RunID: 3,
				State: State("UNKNOWN"),
			},
			want: ErrInvalidEnumValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateReadset(tt.readset)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestValidateOperation(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.ValidateOperation(&Operation{ProjectID: 1, Status: StatusRunning}))
	require.NoError(t, v.ValidateOperation(&Operation{ProjectID: 1}))

	assert.ErrorIs(t, v.ValidateOperation(&Operation{}), ErrMissingParent)
	assert.ErrorIs(t, v.ValidateOperation(&Operation{ProjectID: 1, Status: "DONE"}), ErrInvalidEnumValue)
}

func TestValidateJob(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.ValidateJob(&Job{OperationID: 1}))
	require.NoError(t, v.ValidateJob(&Job{OperationID: 1, Status: Ptr(StatusCompleted)}))

	assert.ErrorIs(t, v.ValidateJob(&Job{}), ErrMissingParent)
	assert.ErrorIs(t, v.ValidateJob(&Job{OperationID: 1, Status: Ptr(Status("OK"))}), ErrInvalidEnumValue)
}

func TestValidateMetric(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.ValidateMetric(&Metric{Name: "reads", JobID: 1}))

	assert.ErrorIs(t, v.ValidateMetric(&Metric{JobID: 1}), ErrMissingName)
	assert.ErrorIs(t, v.ValidateMetric(&Metric{Name: "reads"}), ErrMissingParent)
	assert.ErrorIs(t, v.ValidateMetric(&Metric{Name: "reads", JobID: 1, Flag: Ptr(Flag("OK"))}), ErrInvalidEnumValue)
	assert.ErrorIs(t, v.ValidateMetric(&Metric{Name: "reads", JobID: 1, Aggregate: Ptr(Aggregate("MAX"))}), ErrInvalidEnumValue)
}

func TestValidateFile(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.ValidateFile(&File{Name: "run1.bam"}))
	assert.ErrorIs(t, v.ValidateFile(&File{}), ErrMissingName)
}

func TestValidateLocation(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.ValidateLocation(&Location{URI: "s3://bucket/run1.bam", Endpoint: "s3", FileID: 1}))

	assert.ErrorIs(t, v.ValidateLocation(&Location{Endpoint: "s3", FileID: 1}), ErrMissingURI)
	assert.ErrorIs(t, v.ValidateLocation(&Location{URI: "s3://bucket/x", FileID: 1}), ErrMissingEndpoint)
	assert.ErrorIs(t, v.ValidateLocation(&Location{URI: "s3://bucket/x", Endpoint: "s3"}), ErrMissingParent)
}

func TestErrorTaxonomy(t *testing.T) {
	constraint := &ConstraintViolation{Table: TableProject, Constraint: "project_name_key", Err: errors.New("duplicate")}
	assert.ErrorIs(t, constraint, ErrConstraintViolation)
	assert.NotErrorIs(t, constraint, ErrValidation)
	assert.Contains(t, constraint.Error(), "project_name_key")

	validation := &ValidationError{Table: TableSample, Field: "name", Err: ErrMissingName}
	assert.ErrorIs(t, validation, ErrValidation)
	assert.ErrorIs(t, validation, ErrMissingName)
	assert.NotErrorIs(t, validation, ErrConstraintViolation)

	conflict := &OwnershipConflict{
		Table:             TableSpecimen,
		Name:              "SP1",
		ParentTable:       TableProject,
		ExistingParentID:  1,
		RequestedParentID: 2,
	}
	assert.Contains(t, conflict.Error(), `specimen "SP1"`)
	assert.Contains(t, conflict.Error(), "project 1")
}
