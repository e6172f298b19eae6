package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqtrack-io/seqtrack/internal/endpoints"
	"github.com/seqtrack-io/seqtrack/internal/tracking"
)

func newTestScope(t *testing.T, opts ...MemoryTrackingStoreOption) (*MemoryTrackingStore, tracking.Scope) {
	t.Helper()

	store := NewMemoryTrackingStore(opts...)
	t.Cleanup(func() { _ = store.Close() })

	scope, err := store.Begin(context.Background())
	require.NoError(t, err)

	return store, scope
}

// seedReadset resolves the full ownership chain project > specimen > sample >
// readset plus the experiment and run parents.
func seedReadset(t *testing.T, scope tracking.Scope, project, specimen, sample, readset string) *tracking.Readset {
	t.Helper()
	ctx := context.Background()

	p, err := scope.GetOrCreateProject(ctx, project, nil)
	require.NoError(t, err)

	sp, err := scope.GetOrCreateSpecimen(ctx, specimen, p, nil, nil)
	require.NoError(t, err)

	sm, err := scope.GetOrCreateSample(ctx, sample, sp, false)
	require.NoError(t, err)

	exp, err := scope.GetOrCreateExperiment(ctx, tracking.ExperimentAttributes{
		NucleicAcidType: tracking.NucleicAcidDNA,
	})
	require.NoError(t, err)

	run, err := scope.GetOrCreateRun(ctx, tracking.RunAttributes{
		Name:       tracking.Ptr("run_2025_03"),
		Instrument: tracking.Ptr("novaseq6000"),
	})
	require.NoError(t, err)

	rs, err := scope.GetOrCreateReadset(ctx, tracking.ReadsetAttributes{Name: readset}, sm, exp, run)
	require.NoError(t, err)

	return rs
}

func TestGetOrCreateProject_Idempotent(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	first, err := scope.GetOrCreateProject(ctx, "AS21", tracking.Metadata{"lims": "AS-21"})
	require.NoError(t, err)
	require.NotZero(t, first.ID)
	assert.False(t, first.Creation.IsZero())

	second, err := scope.GetOrCreateProject(ctx, "AS21", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := scope.GetOrCreateProject(ctx, "BQC19", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestGetOrCreateProject_MissingName(t *testing.T) {
	_, scope := newTestScope(t)

	_, err := scope.GetOrCreateProject(context.Background(), "", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, tracking.ErrValidation)
}

func TestGetOrCreateSpecimen_OwnershipConflict(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	p1, err := scope.GetOrCreateProject(ctx, "AS21", nil)
	require.NoError(t, err)

	p2, err := scope.GetOrCreateProject(ctx, "BQC19", nil)
	require.NoError(t, err)

	sp, err := scope.GetOrCreateSpecimen(ctx, "SP1", p1, nil, nil)
	require.NoError(t, err)

	// Same name under a different project: the existing specimen wins and a
	// conflict is recorded, not an error.
	again, err := scope.GetOrCreateSpecimen(ctx, "SP1", p2, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, sp.ID, again.ID)
	assert.Equal(t, p1.ID, again.ProjectID)

	conflicts := scope.Conflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, tracking.TableSpecimen, conflicts[0].Table)
	assert.Equal(t, "SP1", conflicts[0].Name)
	assert.Equal(t, p1.ID, conflicts[0].ExistingParentID)
	assert.Equal(t, p2.ID, conflicts[0].RequestedParentID)

	// A consistent re-resolution records nothing further.
	_, err = scope.GetOrCreateSpecimen(ctx, "SP1", p1, nil, nil)
	require.NoError(t, err)
	assert.Len(t, scope.Conflicts(), 1)
}

func TestGetOrCreateSample_OwnershipConflict(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	p, err := scope.GetOrCreateProject(ctx, "AS21", nil)
	require.NoError(t, err)

	sp1, err := scope.GetOrCreateSpecimen(ctx, "SP1", p, nil, nil)
	require.NoError(t, err)

	sp2, err := scope.GetOrCreateSpecimen(ctx, "SP2", p, nil, nil)
	require.NoError(t, err)

	sm, err := scope.GetOrCreateSample(ctx, "SM1", sp1, true)
	require.NoError(t, err)

	again, err := scope.GetOrCreateSample(ctx, "SM1", sp2, false)
	require.NoError(t, err)
	assert.Equal(t, sm.ID, again.ID)
	assert.Equal(t, sp1.ID, again.SpecimenID)
	assert.True(t, again.Tumour, "existing sample attributes stay untouched")

	require.Len(t, scope.Conflicts(), 1)
	assert.Equal(t, tracking.TableSample, scope.Conflicts()[0].Table)
}

func TestGetOrCreateReadset_RequiresParents(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	rs := seedReadset(t, scope, "AS21", "SP1", "SM1", "RS1")

	sample, err := scope.GetSample(ctx, rs.SampleID)
	require.NoError(t, err)

	_, err = scope.GetOrCreateReadset(ctx, tracking.ReadsetAttributes{Name: "RS2"}, sample, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, tracking.ErrMissingParent)

	_, err = scope.GetOrCreateReadset(ctx, tracking.ReadsetAttributes{Name: "RS2"}, nil, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, tracking.ErrMissingParent)
}

func TestGetOrCreateReadset_DefaultsToValidState(t *testing.T) {
	_, scope := newTestScope(t)

	rs := seedReadset(t, scope, "AS21", "SP1", "SM1", "RS1")

	assert.Equal(t, tracking.StateValid, rs.State)
}

func TestGetOrCreateReadset_StoresSubmittedAttributes(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	seeded := seedReadset(t, scope, "AS21", "SP1", "SM1", "RS1")

	sample, err := scope.GetSample(ctx, seeded.SampleID)
	require.NoError(t, err)
	experiment, err := scope.GetExperiment(ctx, seeded.ExperimentID)
	require.NoError(t, err)
	run, err := scope.GetRun(ctx, seeded.RunID)
	require.NoError(t, err)

	rs, err := scope.GetOrCreateReadset(ctx, tracking.ReadsetAttributes{
		Name:           "RS2",
		Lane:           tracking.Ptr(tracking.LaneThree),
		Adapter1:       tracking.Ptr("AGATCGGAAGAGC"),
		Adapter2:       tracking.Ptr("CTGTCTCTTATAC"),
		SequencingType: tracking.Ptr(tracking.SequencingPairedEnd),
	}, sample, experiment, run)
	require.NoError(t, err)

	loaded, err := scope.GetReadsetByName(ctx, "RS2")
	require.NoError(t, err)
	assert.Equal(t, rs.ID, loaded.ID)
	require.NotNil(t, loaded.Lane)
	assert.Equal(t, tracking.LaneThree, *loaded.Lane)
	require.NotNil(t, loaded.SequencingType)
	assert.Equal(t, tracking.SequencingPairedEnd, *loaded.SequencingType)
	assert.Equal(t, tracking.Ptr("AGATCGGAAGAGC"), loaded.Adapter1)
	assert.Equal(t, tracking.Ptr("CTGTCTCTTATAC"), loaded.Adapter2)

	// An invalid enum value is rejected before anything is stored.
	_, err = scope.GetOrCreateReadset(ctx, tracking.ReadsetAttributes{
		Name: "RS3",
		Lane: tracking.Ptr(tracking.Lane("9")),
	}, sample, experiment, run)
	assert.ErrorIs(t, err, tracking.ErrValidation)
}

func TestGetOrCreateExperiment_TupleIdentity(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	attrs := tracking.ExperimentAttributes{
		SequencingTechnology: tracking.Ptr("illumina"),
		NucleicAcidType:      tracking.NucleicAcidDNA,
		LibraryKit:           tracking.Ptr("TruSeq"),
	}

	first, err := scope.GetOrCreateExperiment(ctx, attrs)
	require.NoError(t, err)

	second, err := scope.GetOrCreateExperiment(ctx, attrs)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Any attribute difference, including nil vs set, is a different tuple.
	attrs.LibraryKit = nil
	third, err := scope.GetOrCreateExperiment(ctx, attrs)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	fourth, err := scope.GetOrCreateExperiment(ctx, tracking.ExperimentAttributes{
		SequencingTechnology: tracking.Ptr("illumina"),
		NucleicAcidType:      tracking.NucleicAcidRNA,
		LibraryKit:           tracking.Ptr("TruSeq"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, fourth.ID)
}

func TestGetOrCreateExperiment_RequiresNucleicAcidType(t *testing.T) {
	_, scope := newTestScope(t)

	_, err := scope.GetOrCreateExperiment(context.Background(), tracking.ExperimentAttributes{})

	require.Error(t, err)
	assert.ErrorIs(t, err, tracking.ErrMissingNucleicAcidType)
}

func TestGetOrCreateRun_NilAttributesMatchStoredNils(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	attrs := tracking.RunAttributes{
		ExtID:  tracking.Ptr(int64(4217)),
		ExtSrc: tracking.Ptr("freezeman"),
		Name:   tracking.Ptr("run_2025_03"),
	}

	first, err := scope.GetOrCreateRun(ctx, attrs)
	require.NoError(t, err)

	second, err := scope.GetOrCreateRun(ctx, attrs)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// A fully nil tuple is still one identity, not a fresh row per call.
	blank1, err := scope.GetOrCreateRun(ctx, tracking.RunAttributes{})
	require.NoError(t, err)

	blank2, err := scope.GetOrCreateRun(ctx, tracking.RunAttributes{})
	require.NoError(t, err)
	assert.Equal(t, blank1.ID, blank2.ID)
	assert.NotEqual(t, first.ID, blank1.ID)
}

func TestGetOrCreateOperationConfig_ContentHashIdentity(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	attrs := tracking.OperationConfigAttributes{
		Name:    tracking.Ptr("genpipes_dnaseq"),
		Version: tracking.Ptr("4.4.1"),
		MD5Sum:  tracking.Ptr("9e107d9d372bb6826bd81d3542a419d6"),
		Data:    []byte("[core]\ncluster_server=abacus"),
	}

	first, err := scope.GetOrCreateOperationConfig(ctx, attrs)
	require.NoError(t, err)

	second, err := scope.GetOrCreateOperationConfig(ctx, attrs)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	attrs.MD5Sum = tracking.Ptr("e4d909c290d0fb1ca068ffaddf22cbd0")
	third, err := scope.GetOrCreateOperationConfig(ctx, attrs)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestGetOrCreateLocation_DerivesEndpoint(t *testing.T) {
	_, scope := newTestScope(t, WithMemoryEndpointAliases(&endpoints.Config{
		EndpointAliases: map[string]string{"abacus": "abacus.genome.mcgill.ca"},
	}))
	ctx := context.Background()

	file := &tracking.File{Name: "run1.bam"}
	require.NoError(t, scope.CreateFile(ctx, file))

	loc, err := scope.GetOrCreateLocation(ctx, "abacus:///lb/robot/run1.bam", file, "")
	require.NoError(t, err)
	assert.Equal(t, "abacus.genome.mcgill.ca", loc.Endpoint)

	// Resolution by uri: the same uri returns the same location regardless of
	// the endpoint argument.
	again, err := scope.GetOrCreateLocation(ctx, "abacus:///lb/robot/run1.bam", file, "elsewhere")
	require.NoError(t, err)
	assert.Equal(t, loc.ID, again.ID)
	assert.Equal(t, "abacus.genome.mcgill.ca", again.Endpoint)

	// An explicit endpoint bypasses derivation.
	explicit, err := scope.GetOrCreateLocation(ctx, "s3://archive/run1.bam", file, "ceph")
	require.NoError(t, err)
	assert.Equal(t, "ceph", explicit.Endpoint)

	// No scheme, no explicit endpoint: validation error.
	_, err = scope.GetOrCreateLocation(ctx, "/lb/robot/run1.bam", file, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, tracking.ErrValidation)
	assert.ErrorIs(t, err, endpoints.ErrNoScheme)
}

func TestCreateOperation_DefaultsToPending(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	p, err := scope.GetOrCreateProject(ctx, "AS21", nil)
	require.NoError(t, err)

	op := &tracking.Operation{ProjectID: p.ID, Name: tracking.Ptr("dnaseq")}
	require.NoError(t, scope.CreateOperation(ctx, op))

	assert.Equal(t, tracking.StatusPending, op.Status)
	require.NotZero(t, op.ID)
}

func TestCreateOperation_UnknownProject(t *testing.T) {
	_, scope := newTestScope(t)

	err := scope.CreateOperation(context.Background(), &tracking.Operation{ProjectID: 404})

	require.Error(t, err)
	assert.ErrorIs(t, err, tracking.ErrConstraintViolation)
}

func TestLinks_IdempotentAndLoaded(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	rs := seedReadset(t, scope, "AS21", "SP1", "SM1", "RS1")

	file := &tracking.File{Name: "run1.bam"}
	require.NoError(t, scope.CreateFile(ctx, file))

	file2 := &tracking.File{Name: "run1.bai"}
	require.NoError(t, scope.CreateFile(ctx, file2))

	require.NoError(t, scope.LinkReadsetFile(ctx, rs.ID, file.ID))
	require.NoError(t, scope.LinkReadsetFile(ctx, rs.ID, file.ID))
	require.NoError(t, scope.LinkReadsetFile(ctx, rs.ID, file2.ID))

	loaded, err := scope.GetReadset(ctx, rs.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{file.ID, file2.ID}, loaded.FileIDs)

	loadedFile, err := scope.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{rs.ID}, loadedFile.ReadsetIDs)
}

func TestLinks_UnknownEndpointFails(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	rs := seedReadset(t, scope, "AS21", "SP1", "SM1", "RS1")

	err := scope.LinkReadsetFile(ctx, rs.ID, 404)

	require.Error(t, err)
	assert.ErrorIs(t, err, tracking.ErrConstraintViolation)
}

func TestLoaders_PopulateRelationIDs(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	rs1 := seedReadset(t, scope, "AS21", "SP1", "SM1", "RS1")
	rs2 := seedReadset(t, scope, "AS21", "SP1", "SM1", "RS2")

	project, err := scope.GetProjectByName(ctx, "AS21")
	require.NoError(t, err)

	specimen, err := scope.GetSpecimen(ctx, project.SpecimenIDs[0])
	require.NoError(t, err)

	sample, err := scope.GetSample(ctx, specimen.SampleIDs[0])
	require.NoError(t, err)
	assert.Equal(t, []int64{rs1.ID, rs2.ID}, sample.ReadsetIDs)

	run, err := scope.GetRun(ctx, rs1.RunID)
	require.NoError(t, err)
	assert.Equal(t, []int64{rs1.ID, rs2.ID}, run.ReadsetIDs)

	experiment, err := scope.GetExperiment(ctx, rs1.ExperimentID)
	require.NoError(t, err)
	assert.Equal(t, []int64{rs1.ID, rs2.ID}, experiment.ReadsetIDs)
}

func TestGetFile_NestsLocations(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	file := &tracking.File{Name: "run1.bam"}
	require.NoError(t, scope.CreateFile(ctx, file))

	_, err := scope.GetOrCreateLocation(ctx, "abacus:///lb/run1.bam", file, "abacus")
	require.NoError(t, err)

	_, err = scope.GetOrCreateLocation(ctx, "s3://archive/run1.bam", file, "ceph")
	require.NoError(t, err)

	loaded, err := scope.GetFile(ctx, file.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Locations, 2)
	assert.Equal(t, "abacus:///lb/run1.bam", loaded.Locations[0].URI)
	assert.Equal(t, "s3://archive/run1.bam", loaded.Locations[1].URI)
	assert.Equal(t, file.ID, loaded.Locations[0].FileID)
}

func TestMarkDeleted_HidesFromLoaders(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	rs := seedReadset(t, scope, "AS21", "SP1", "SM1", "RS1")

	require.NoError(t, scope.MarkDeleted(ctx, tracking.TableReadset, rs.ID, true))

	_, err := scope.GetReadset(ctx, rs.ID)
	assert.ErrorIs(t, err, tracking.ErrNotFound)

	sample, err := scope.GetSample(ctx, rs.SampleID)
	require.NoError(t, err)
	assert.Empty(t, sample.ReadsetIDs, "soft-deleted readsets drop out of relation ids")

	// Flipping the flag back restores visibility; nothing was cascaded.
	require.NoError(t, scope.MarkDeleted(ctx, tracking.TableReadset, rs.ID, false))

	restored, err := scope.GetReadset(ctx, rs.ID)
	require.NoError(t, err)
	assert.NotNil(t, restored.Modification, "flag updates refresh the modification timestamp")
}

func TestMarkDeprecated(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	p, err := scope.GetOrCreateProject(ctx, "AS21", nil)
	require.NoError(t, err)

	require.NoError(t, scope.MarkDeprecated(ctx, tracking.TableProject, p.ID, true))

	// Deprecated records stay visible.
	loaded, err := scope.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Deprecated)
}

func TestMarkDeleted_UnknownTable(t *testing.T) {
	_, scope := newTestScope(t)

	err := scope.MarkDeleted(context.Background(), "widgets", 1, true)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestDeleteProject_CascadesOwnershipOnly(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	rs := seedReadset(t, scope, "AS21", "SP1", "SM1", "RS1")

	file := &tracking.File{Name: "run1.bam"}
	require.NoError(t, scope.CreateFile(ctx, file))
	require.NoError(t, scope.LinkReadsetFile(ctx, rs.ID, file.ID))

	project, err := scope.GetProjectByName(ctx, "AS21")
	require.NoError(t, err)

	op := &tracking.Operation{ProjectID: project.ID}
	require.NoError(t, scope.CreateOperation(ctx, op))

	job := &tracking.Job{OperationID: op.ID}
	require.NoError(t, scope.CreateJob(ctx, job))

	metric := &tracking.Metric{JobID: job.ID, Name: "aligned_reads"}
	require.NoError(t, scope.CreateMetric(ctx, metric))

	require.NoError(t, scope.DeleteProject(ctx, project.ID))

	// The whole ownership subtree is gone.
	_, err = scope.GetSample(ctx, rs.SampleID)
	assert.ErrorIs(t, err, tracking.ErrNotFound)
	_, err = scope.GetReadset(ctx, rs.ID)
	assert.ErrorIs(t, err, tracking.ErrNotFound)
	_, err = scope.GetOperation(ctx, op.ID)
	assert.ErrorIs(t, err, tracking.ErrNotFound)
	_, err = scope.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, tracking.ErrNotFound)
	_, err = scope.GetMetric(ctx, metric.ID)
	assert.ErrorIs(t, err, tracking.ErrNotFound)

	// The linked file survives: join edges are not ownership.
	survivor, err := scope.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, survivor.ReadsetIDs)

	// Experiment and run survive too; readsets reference, not own, them.
	_, err = scope.GetExperiment(ctx, rs.ExperimentID)
	require.NoError(t, err)
	_, err = scope.GetRun(ctx, rs.RunID)
	require.NoError(t, err)
}

func TestDeleteFile_CascadesLocations(t *testing.T) {
	_, scope := newTestScope(t)
	ctx := context.Background()

	rs := seedReadset(t, scope, "AS21", "SP1", "SM1", "RS1")

	file := &tracking.File{Name: "run1.bam"}
	require.NoError(t, scope.CreateFile(ctx, file))
	require.NoError(t, scope.LinkReadsetFile(ctx, rs.ID, file.ID))

	loc, err := scope.GetOrCreateLocation(ctx, "abacus:///lb/run1.bam", file, "abacus")
	require.NoError(t, err)

	require.NoError(t, scope.DeleteFile(ctx, file.ID))

	_, err = scope.GetLocation(ctx, loc.ID)
	assert.ErrorIs(t, err, tracking.ErrNotFound)

	// The readset survives the file deletion.
	loaded, err := scope.GetReadset(ctx, rs.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.FileIDs)
}

func TestDelete_NotFound(t *testing.T) {
	_, scope := newTestScope(t)

	err := scope.DeleteProject(context.Background(), 404)

	assert.ErrorIs(t, err, tracking.ErrNotFound)
}

func TestScope_CommitPublishes(t *testing.T) {
	store := NewMemoryTrackingStore()
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	scope, err := store.Begin(ctx)
	require.NoError(t, err)

	p, err := scope.GetOrCreateProject(ctx, "AS21", nil)
	require.NoError(t, err)
	require.NoError(t, scope.Commit())

	// A fresh scope sees the committed project.
	next, err := store.Begin(ctx)
	require.NoError(t, err)

	loaded, err := next.GetProjectByName(ctx, "AS21")
	require.NoError(t, err)
	assert.Equal(t, p.ID, loaded.ID)
	require.NoError(t, next.Rollback())
}

func TestScope_CommitRejectsDuplicateNaturalKey(t *testing.T) {
	store := NewMemoryTrackingStore()
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	// Two scopes opened from the same empty snapshot each resolve the same
	// project name; neither sees the other's insert.
	first, err := store.Begin(ctx)
	require.NoError(t, err)

	second, err := store.Begin(ctx)
	require.NoError(t, err)

	p1, err := first.GetOrCreateProject(ctx, "AS21", nil)
	require.NoError(t, err)

	p2, err := second.GetOrCreateProject(ctx, "AS21", nil)
	require.NoError(t, err)
	assert.NotEqual(t, p1.ID, p2.ID, "ids come from a store-global sequence")

	require.NoError(t, first.Commit())

	// The loser fails its commit with a constraint violation, the way the
	// schema's unique index would reject the second insert.
	err = second.Commit()
	require.Error(t, err)
	assert.ErrorIs(t, err, tracking.ErrConstraintViolation)

	var violation *tracking.ConstraintViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, tracking.TableProject, violation.Table)

	// A failed commit behaves like a rollback: the scope is done and the
	// published state still holds the winner's row.
	assert.ErrorIs(t, second.Commit(), ErrScopeDone)

	next, err := store.Begin(ctx)
	require.NoError(t, err)

	loaded, err := next.GetProjectByName(ctx, "AS21")
	require.NoError(t, err)
	assert.Equal(t, p1.ID, loaded.ID)
	require.NoError(t, next.Rollback())
}

func TestScope_RollbackDiscards(t *testing.T) {
	store := NewMemoryTrackingStore()
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	scope, err := store.Begin(ctx)
	require.NoError(t, err)

	_, err = scope.GetOrCreateProject(ctx, "AS21", nil)
	require.NoError(t, err)
	require.NoError(t, scope.Rollback())

	next, err := store.Begin(ctx)
	require.NoError(t, err)

	_, err = next.GetProjectByName(ctx, "AS21")
	assert.ErrorIs(t, err, tracking.ErrNotFound)
	require.NoError(t, next.Rollback())
}

func TestScope_DoneScopeRejectsUse(t *testing.T) {
	store := NewMemoryTrackingStore()
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	scope, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, scope.Commit())

	assert.ErrorIs(t, scope.Commit(), ErrScopeDone)
	assert.ErrorIs(t, scope.Rollback(), ErrScopeDone)

	_, err = scope.GetOrCreateProject(ctx, "AS21", nil)
	assert.ErrorIs(t, err, ErrScopeDone)
}

func TestStore_WithScope(t *testing.T) {
	store := NewMemoryTrackingStore()
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	err := store.WithScope(ctx, func(scope tracking.Scope) error {
		_, err := scope.GetOrCreateProject(ctx, "AS21", nil)
		return err
	})
	require.NoError(t, err)

	// Committed by WithScope.
	scope, err := store.Begin(ctx)
	require.NoError(t, err)

	_, err = scope.GetProjectByName(ctx, "AS21")
	require.NoError(t, err)
	require.NoError(t, scope.Rollback())

	// An error from fn rolls the scope back.
	wantErr := assert.AnError
	err = store.WithScope(ctx, func(scope tracking.Scope) error {
		if _, err := scope.GetOrCreateProject(ctx, "BQC19", nil); err != nil {
			return err
		}
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	scope, err = store.Begin(ctx)
	require.NoError(t, err)

	_, err = scope.GetProjectByName(ctx, "BQC19")
	assert.ErrorIs(t, err, tracking.ErrNotFound)
	require.NoError(t, scope.Rollback())
}

func TestStore_DefaultScope(t *testing.T) {
	store := NewMemoryTrackingStore()
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	first, err := store.DefaultScope(ctx)
	require.NoError(t, err)

	second, err := store.DefaultScope(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, first.Commit())

	// After the default scope finishes a fresh one is handed out.
	third, err := store.DefaultScope(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestStore_CloseRejectsNewScopes(t *testing.T) {
	store := NewMemoryTrackingStore()
	require.NoError(t, store.Close())

	_, err := store.Begin(context.Background())
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, err = store.DefaultScope(context.Background())
	assert.ErrorIs(t, err, ErrStoreClosed)
}
