package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqtrack-io/seqtrack/internal/storage"
	"github.com/seqtrack-io/seqtrack/internal/tracking"
)

func newTestIngester(t *testing.T) (*Ingester, *storage.MemoryTrackingStore) {
	t.Helper()

	store := storage.NewMemoryTrackingStore()
	t.Cleanup(func() { _ = store.Close() })

	return NewIngester(store), store
}

func runProcessingFixture() *RunProcessingSubmission {
	return &RunProcessingSubmission{
		ProjectName: "AS21",
		Run: RunSubmission{
			ExtID:      tracking.Ptr(int64(4217)),
			ExtSrc:     tracking.Ptr("freezeman"),
			Name:       tracking.Ptr("run_2025_03"),
			Instrument: tracking.Ptr("novaseq6000"),
		},
		Experiment: ExperimentSubmission{
			SequencingTechnology: tracking.Ptr("illumina"),
			NucleicAcidType:      "DNA",
			LibraryKit:           tracking.Ptr("TruSeq"),
		},
		Specimens: []SpecimenSubmission{
			{
				Name:        "SP1",
				Institution: tracking.Ptr("MUHC"),
				Samples: []SampleSubmission{
					{
						Name:   "SM1",
						Tumour: true,
						Readsets: []ReadsetSubmission{
							{
								Name:           "RS1",
								Lane:           tracking.Ptr("1"),
								Adapter1:       tracking.Ptr("AGATCGGAAGAGC"),
								Adapter2:       tracking.Ptr("CTGTCTCTTATAC"),
								SequencingType: tracking.Ptr("PAIRED_END"),
								Files: []FileSubmission{
									{
										Name: "RS1.bam",
										Type: tracking.Ptr("bam"),
										Locations: []LocationSubmission{
											{URI: "abacus:///lb/robot/RS1.bam"},
										},
									},
								},
							},
							{
								Name: "RS2",
								Lane: tracking.Ptr("2"),
							},
						},
					},
				},
			},
		},
	}
}

func TestIngestRunProcessing(t *testing.T) {
	ingester, store := newTestIngester(t)
	ctx := context.Background()

	result, err := ingester.IngestRunProcessing(ctx, runProcessingFixture())
	require.NoError(t, err)

	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", result.BatchID.String())
	assert.Equal(t, 2, result.Readsets)
	assert.Equal(t, 1, result.Files)
	assert.Empty(t, result.Conflicts)
	require.Len(t, result.ReadsetIDs, 2)

	// Everything is committed and navigable afterwards.
	scope, err := store.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = scope.Rollback() }()

	project, err := scope.GetProjectByName(ctx, "AS21")
	require.NoError(t, err)
	assert.Equal(t, result.ProjectID, project.ID)
	require.Len(t, project.SpecimenIDs, 1)

	readset, err := scope.GetReadsetByName(ctx, "RS1")
	require.NoError(t, err)
	assert.Equal(t, tracking.StateValid, readset.State)

	// The submission's readset attributes land on the stored record.
	require.NotNil(t, readset.Lane)
	assert.Equal(t, tracking.LaneOne, *readset.Lane)
	require.NotNil(t, readset.SequencingType)
	assert.Equal(t, tracking.SequencingPairedEnd, *readset.SequencingType)
	assert.Equal(t, tracking.Ptr("AGATCGGAAGAGC"), readset.Adapter1)
	assert.Equal(t, tracking.Ptr("CTGTCTCTTATAC"), readset.Adapter2)

	require.Len(t, readset.FileIDs, 1)

	file, err := scope.GetFile(ctx, readset.FileIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "RS1.bam", file.Name)
	require.Len(t, file.Locations, 1)
	assert.Equal(t, "abacus", file.Locations[0].Endpoint, "endpoint derived from uri scheme")
}

func TestIngestRunProcessing_Idempotent(t *testing.T) {
	ingester, store := newTestIngester(t)
	ctx := context.Background()

	first, err := ingester.IngestRunProcessing(ctx, runProcessingFixture())
	require.NoError(t, err)

	second, err := ingester.IngestRunProcessing(ctx, runProcessingFixture())
	require.NoError(t, err)

	assert.Equal(t, first.ProjectID, second.ProjectID)
	assert.Equal(t, first.ReadsetIDs, second.ReadsetIDs)
	assert.NotEqual(t, first.BatchID, second.BatchID)

	scope, err := store.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = scope.Rollback() }()

	sample, err := scope.GetReadsetByName(ctx, "RS1")
	require.NoError(t, err)
	assert.Len(t, sample.FileIDs, 1, "resubmission attaches no duplicate files")

	run, err := scope.GetRun(ctx, sample.RunID)
	require.NoError(t, err)
	assert.Len(t, run.ReadsetIDs, 2, "one run row, two readsets, after two submissions")
}

func TestIngestRunProcessing_ReportsConflicts(t *testing.T) {
	ingester, _ := newTestIngester(t)
	ctx := context.Background()

	_, err := ingester.IngestRunProcessing(ctx, runProcessingFixture())
	require.NoError(t, err)

	// The same specimen resubmitted under a different project.
	moved := runProcessingFixture()
	moved.ProjectName = "BQC19"

	result, err := ingester.IngestRunProcessing(ctx, moved)
	require.NoError(t, err, "ownership conflicts are tolerated, not fatal")
	require.NotEmpty(t, result.Conflicts)
	assert.Equal(t, tracking.TableSpecimen, result.Conflicts[0].Table)
	assert.Equal(t, "SP1", result.Conflicts[0].Name)
}

func TestIngestRunProcessing_InvalidSubmission(t *testing.T) {
	ingester, store := newTestIngester(t)
	ctx := context.Background()

	sub := runProcessingFixture()
	sub.Experiment.NucleicAcidType = "PROTEIN"

	_, err := ingester.IngestRunProcessing(ctx, sub)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidEnumValue)

	// Nothing was written.
	scope, err := store.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = scope.Rollback() }()

	_, err = scope.GetProjectByName(ctx, "AS21")
	assert.ErrorIs(t, err, tracking.ErrNotFound)
}

func operationFixture() *OperationSubmission {
	return &OperationSubmission{
		ProjectName:  "AS21",
		Name:         tracking.Ptr("dnaseq"),
		Platform:     tracking.Ptr("abacus"),
		CmdLine:      tracking.Ptr("genpipes dnaseq -c dnaseq.ini"),
		Status:       tracking.Ptr("COMPLETED"),
		ReadsetNames: []string{"RS1", "RS2"},
		Config: &OperationConfigSubmission{
			Name:    tracking.Ptr("genpipes_dnaseq"),
			Version: tracking.Ptr("4.4.1"),
			Data:    []byte("[core]\ncluster_server=abacus"),
		},
		Reference: &ReferenceSubmission{
			Name:     tracking.Ptr("GRCh38"),
			Assembly: tracking.Ptr("GRCh38"),
			TaxonID:  tracking.Ptr("9606"),
		},
		Jobs: []JobSubmission{
			{
				Name:   tracking.Ptr("bwa_mem"),
				Status: tracking.Ptr("COMPLETED"),
				Metrics: []MetricSubmission{
					{Name: "aligned_reads", Value: tracking.Ptr("123456789"), Flag: tracking.Ptr("PASS")},
				},
				Files: []FileSubmission{
					{
						Name: "RS1.sorted.bam",
						Locations: []LocationSubmission{
							{URI: "abacus:///lb/processed/RS1.sorted.bam"},
						},
					},
				},
			},
		},
	}
}

func TestIngestOperation(t *testing.T) {
	ingester, store := newTestIngester(t)
	ctx := context.Background()

	_, err := ingester.IngestRunProcessing(ctx, runProcessingFixture())
	require.NoError(t, err)

	result, err := ingester.IngestOperation(ctx, operationFixture())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Jobs)
	assert.Equal(t, 1, result.Metrics)
	assert.Equal(t, 1, result.Files)
	require.Len(t, result.ReadsetIDs, 2)

	scope, err := store.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = scope.Rollback() }()

	readset, err := scope.GetReadsetByName(ctx, "RS1")
	require.NoError(t, err)
	require.Len(t, readset.OperationIDs, 1)
	require.Len(t, readset.JobIDs, 1)
	require.Len(t, readset.MetricIDs, 1)
	assert.Len(t, readset.FileIDs, 2, "run file plus operation output")

	operation, err := scope.GetOperation(ctx, readset.OperationIDs[0])
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusCompleted, operation.Status)
	require.NotNil(t, operation.OperationConfigID)
	require.NotNil(t, operation.ReferenceID)

	cfg, err := scope.GetOperationConfig(ctx, *operation.OperationConfigID)
	require.NoError(t, err)
	require.NotNil(t, cfg.MD5Sum)
	assert.Len(t, *cfg.MD5Sum, 32, "md5 computed from the payload")

	job, err := scope.GetJob(ctx, readset.JobIDs[0])
	require.NoError(t, err)
	require.Len(t, job.FileIDs, 1)
	assert.Equal(t, []int64{readset.ID, readset.ID + 1}, job.ReadsetIDs)
}

func TestIngestOperation_SharedConfig(t *testing.T) {
	ingester, _ := newTestIngester(t)
	ctx := context.Background()

	_, err := ingester.IngestRunProcessing(ctx, runProcessingFixture())
	require.NoError(t, err)

	first, err := ingester.IngestOperation(ctx, operationFixture())
	require.NoError(t, err)

	second, err := ingester.IngestOperation(ctx, operationFixture())
	require.NoError(t, err)

	// Two executions, one content-addressed config.
	store := ingester.store
	scope, err := store.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = scope.Rollback() }()

	readset, err := scope.GetReadsetByName(ctx, "RS1")
	require.NoError(t, err)
	require.Len(t, readset.OperationIDs, 2)

	op1, err := scope.GetOperation(ctx, readset.OperationIDs[0])
	require.NoError(t, err)

	op2, err := scope.GetOperation(ctx, readset.OperationIDs[1])
	require.NoError(t, err)

	assert.Equal(t, *op1.OperationConfigID, *op2.OperationConfigID)
	assert.NotEqual(t, first.BatchID, second.BatchID)
}

func TestIngestOperation_UnknownReadset(t *testing.T) {
	ingester, _ := newTestIngester(t)
	ctx := context.Background()

	sub := operationFixture()

	_, err := ingester.IngestOperation(ctx, sub)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownReadset)
}
