package ingest

import (
	"context"
	"crypto/md5" //nolint:gosec // md5 is the pipeline's checksum format, not a security boundary
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/seqtrack-io/seqtrack/internal/config"
	"github.com/seqtrack-io/seqtrack/internal/tracking"
)

// ErrUnknownReadset is returned when an operation submission names a readset
// that does not exist.
var ErrUnknownReadset = errors.New("readset not found")

type (
	// Ingester resolves submission documents into the tracking store. Each
	// document is processed in one scope, so a batch lands atomically:
	// either the whole entity graph commits or none of it does.
	Ingester struct {
		store     tracking.Store
		validator *Validator
		logger    *slog.Logger
	}

	// IngesterOption configures optional Ingester behavior.
	IngesterOption func(*Ingester)

	// Result summarizes one ingested submission. Conflicts carries the
	// ownership conflicts tolerated during resolution; the batch still
	// commits when conflicts are present.
	Result struct {
		BatchID uuid.UUID

		ProjectID  int64
		ReadsetIDs []int64

		Readsets int
		Files    int
		Jobs     int
		Metrics  int

		Conflicts []*tracking.OwnershipConflict
	}
)

// WithLogger overrides the default JSON logger.
func WithLogger(logger *slog.Logger) IngesterOption {
	return func(i *Ingester) {
		i.logger = logger
	}
}

// NewIngester creates an ingester on the given store.
func NewIngester(store tracking.Store, opts ...IngesterOption) *Ingester {
	ingester := &Ingester{
		store: store,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
		validator: NewValidator(),
	}

	for _, opt := range opts {
		opt(ingester)
	}

	return ingester
}

// IngestRunProcessing resolves a run-processing submission: the project, the
// run, the experiment, and the specimen > sample > readset tree with each
// readset's files and locations. Resolution is idempotent, so resubmitting
// the same document creates no new rows.
func (i *Ingester) IngestRunProcessing(ctx context.Context, sub *RunProcessingSubmission) (*Result, error) {
	if err := i.validator.ValidateRunProcessing(sub); err != nil {
		return nil, err
	}

	result := &Result{BatchID: uuid.New()}

	err := i.store.WithScope(ctx, func(scope tracking.Scope) error {
		project, err := scope.GetOrCreateProject(ctx, sub.ProjectName, tracking.Metadata(sub.ProjectAlias))
		if err != nil {
			return err
		}

		result.ProjectID = project.ID

		experiment, err := scope.GetOrCreateExperiment(ctx, tracking.ExperimentAttributes{
			SequencingTechnology: sub.Experiment.SequencingTechnology,
			Type:                 sub.Experiment.Type,
			NucleicAcidType:      tracking.NucleicAcidType(sub.Experiment.NucleicAcidType),
			LibraryKit:           sub.Experiment.LibraryKit,
			KitExpirationDate:    sub.Experiment.KitExpirationDate,
		})
		if err != nil {
			return err
		}

		run, err := scope.GetOrCreateRun(ctx, tracking.RunAttributes{
			ExtID:      sub.Run.ExtID,
			ExtSrc:     sub.Run.ExtSrc,
			Name:       sub.Run.Name,
			Instrument: sub.Run.Instrument,
			Date:       sub.Run.Date,
		})
		if err != nil {
			return err
		}

		for _, specimenSub := range sub.Specimens {
			specimen, err := scope.GetOrCreateSpecimen(ctx, specimenSub.Name, project, specimenSub.Cohort, specimenSub.Institution)
			if err != nil {
				return err
			}

			for _, sampleSub := range specimenSub.Samples {
				sample, err := scope.GetOrCreateSample(ctx, sampleSub.Name, specimen, sampleSub.Tumour)
				if err != nil {
					return err
				}

				for _, readsetSub := range sampleSub.Readsets {
					if err := i.ingestReadset(ctx, scope, readsetSub, sample, experiment, run, result); err != nil {
						return err
					}
				}
			}
		}

		result.Conflicts = scope.Conflicts()

		return nil
	})
	if err != nil {
		return nil, err
	}

	i.logger.Info("run processing ingested",
		"batch_id", result.BatchID.String(),
		"project_id", result.ProjectID,
		"readsets", result.Readsets,
		"files", result.Files,
		"conflicts", len(result.Conflicts),
	)

	return result, nil
}

func (i *Ingester) ingestReadset(
	ctx context.Context,
	scope tracking.Scope,
	sub ReadsetSubmission,
	sample *tracking.Sample,
	experiment *tracking.Experiment,
	run *tracking.Run,
	result *Result,
) error {
	attrs := tracking.ReadsetAttributes{
		Name:     sub.Name,
		Alias:    tracking.Metadata(sub.Alias),
		Adapter1: sub.Adapter1,
		Adapter2: sub.Adapter2,
	}

	if sub.Lane != nil {
		lane := tracking.Lane(*sub.Lane)
		attrs.Lane = &lane
	}

	if sub.SequencingType != nil {
		sequencingType := tracking.SequencingType(*sub.SequencingType)
		attrs.SequencingType = &sequencingType
	}

	readset, err := scope.GetOrCreateReadset(ctx, attrs, sample, experiment, run)
	if err != nil {
		return err
	}

	result.Readsets++
	result.ReadsetIDs = append(result.ReadsetIDs, readset.ID)

	for _, fileSub := range sub.Files {
		file, err := i.resolveFile(ctx, scope, fileSub)
		if err != nil {
			return err
		}

		if err := scope.LinkReadsetFile(ctx, readset.ID, file.ID); err != nil {
			return err
		}

		result.Files++
	}

	return nil
}

// resolveFile finds or creates the file a submission describes. Files have no
// natural key of their own, so identity flows through their location uris: a
// submission whose uri already exists reuses that location's file. A file
// without any location cannot be re-identified and is created anew on every
// submission.
func (i *Ingester) resolveFile(ctx context.Context, scope tracking.Scope, sub FileSubmission) (*tracking.File, error) {
	for _, locationSub := range sub.Locations {
		existing, err := scope.GetLocationByURI(ctx, locationSub.URI)
		if errors.Is(err, tracking.ErrNotFound) {
			continue
		}

		if err != nil {
			return nil, err
		}

		file, err := scope.GetFile(ctx, existing.FileID)
		if err != nil {
			return nil, err
		}

		// Remaining locations may still be new copies of the file.
		if err := i.attachLocations(ctx, scope, file, sub.Locations); err != nil {
			return nil, err
		}

		return file, nil
	}

	file := &tracking.File{
		Name:        sub.Name,
		Type:        sub.Type,
		MD5Sum:      sub.MD5Sum,
		Deliverable: sub.Deliverable,
	}

	if err := scope.CreateFile(ctx, file); err != nil {
		return nil, err
	}

	if err := i.attachLocations(ctx, scope, file, sub.Locations); err != nil {
		return nil, err
	}

	return file, nil
}

func (i *Ingester) attachLocations(ctx context.Context, scope tracking.Scope, file *tracking.File, locations []LocationSubmission) error {
	for _, locationSub := range locations {
		if _, err := scope.GetOrCreateLocation(ctx, locationSub.URI, file, locationSub.Endpoint); err != nil {
			return err
		}
	}

	return nil
}

// IngestOperation records a pipeline execution: the operation with its
// configuration and reference, its jobs with metrics and output files, all
// linked to the named readsets. Operations are executions, not resolvable
// identities, so every submission records a new operation.
func (i *Ingester) IngestOperation(ctx context.Context, sub *OperationSubmission) (*Result, error) {
	if err := i.validator.ValidateOperation(sub); err != nil {
		return nil, err
	}

	result := &Result{BatchID: uuid.New()}

	err := i.store.WithScope(ctx, func(scope tracking.Scope) error {
		project, err := scope.GetOrCreateProject(ctx, sub.ProjectName, nil)
		if err != nil {
			return err
		}

		result.ProjectID = project.ID

		readsets := make([]*tracking.Readset, 0, len(sub.ReadsetNames))

		for _, name := range sub.ReadsetNames {
			readset, err := scope.GetReadsetByName(ctx, name)
			if errors.Is(err, tracking.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownReadset, name)
			}

			if err != nil {
				return err
			}

			readsets = append(readsets, readset)
			result.ReadsetIDs = append(result.ReadsetIDs, readset.ID)
		}

		operation := &tracking.Operation{
			ProjectID: project.ID,
			Platform:  sub.Platform,
			CmdLine:   sub.CmdLine,
			Name:      sub.Name,
		}

		if sub.Status != nil {
			operation.Status = tracking.Status(*sub.Status)
		}

		if sub.Config != nil {
			cfg, err := i.resolveConfig(ctx, scope, sub.Config)
			if err != nil {
				return err
			}

			operation.OperationConfigID = &cfg.ID
		}

		if sub.Reference != nil {
			reference := &tracking.Reference{
				Name:     sub.Reference.Name,
				Alias:    sub.Reference.Alias,
				Assembly: sub.Reference.Assembly,
				Version:  sub.Reference.Version,
				TaxonID:  sub.Reference.TaxonID,
				Source:   sub.Reference.Source,
			}

			if err := scope.CreateReference(ctx, reference); err != nil {
				return err
			}

			operation.ReferenceID = &reference.ID
		}

		if err := scope.CreateOperation(ctx, operation); err != nil {
			return err
		}

		for _, readset := range readsets {
			if err := scope.LinkReadsetOperation(ctx, readset.ID, operation.ID); err != nil {
				return err
			}
		}

		for _, jobSub := range sub.Jobs {
			if err := i.ingestJob(ctx, scope, jobSub, operation, readsets, result); err != nil {
				return err
			}
		}

		result.Conflicts = scope.Conflicts()

		return nil
	})
	if err != nil {
		return nil, err
	}

	i.logger.Info("operation ingested",
		"batch_id", result.BatchID.String(),
		"project_id", result.ProjectID,
		"readsets", len(result.ReadsetIDs),
		"jobs", result.Jobs,
		"metrics", result.Metrics,
	)

	return result, nil
}

// resolveConfig resolves the configuration payload through its content hash,
// computing the md5 when the submitter did not supply one.
func (i *Ingester) resolveConfig(ctx context.Context, scope tracking.Scope, sub *OperationConfigSubmission) (*tracking.OperationConfig, error) {
	md5sum := sub.MD5Sum
	if md5sum == nil || *md5sum == "" {
		sum := md5.Sum(sub.Data) //nolint:gosec // content address, not a security boundary
		hexSum := hex.EncodeToString(sum[:])
		md5sum = &hexSum
	}

	return scope.GetOrCreateOperationConfig(ctx, tracking.OperationConfigAttributes{
		Name:    sub.Name,
		Version: sub.Version,
		MD5Sum:  md5sum,
		Data:    sub.Data,
	})
}

func (i *Ingester) ingestJob(
	ctx context.Context,
	scope tracking.Scope,
	sub JobSubmission,
	operation *tracking.Operation,
	readsets []*tracking.Readset,
	result *Result,
) error {
	job := &tracking.Job{
		OperationID: operation.ID,
		Name:        sub.Name,
		Start:       sub.Start,
		Stop:        sub.Stop,
		Type:        sub.Type,
	}

	if sub.Status != nil {
		status := tracking.Status(*sub.Status)
		job.Status = &status
	}

	if err := scope.CreateJob(ctx, job); err != nil {
		return err
	}

	result.Jobs++

	for _, readset := range readsets {
		if err := scope.LinkReadsetJob(ctx, readset.ID, job.ID); err != nil {
			return err
		}
	}

	for _, metricSub := range sub.Metrics {
		metric := &tracking.Metric{
			JobID:       job.ID,
			Name:        metricSub.Name,
			Value:       metricSub.Value,
			Deliverable: metricSub.Deliverable,
		}

		if metricSub.Flag != nil {
			flag := tracking.Flag(*metricSub.Flag)
			metric.Flag = &flag
		}

		if metricSub.Aggregate != nil {
			aggregate := tracking.Aggregate(*metricSub.Aggregate)
			metric.Aggregate = &aggregate
		}

		if err := scope.CreateMetric(ctx, metric); err != nil {
			return err
		}

		result.Metrics++

		for _, readset := range readsets {
			if err := scope.LinkReadsetMetric(ctx, readset.ID, metric.ID); err != nil {
				return err
			}
		}
	}

	for _, fileSub := range sub.Files {
		file, err := i.resolveFile(ctx, scope, fileSub)
		if err != nil {
			return err
		}

		if err := scope.LinkJobFile(ctx, job.ID, file.ID); err != nil {
			return err
		}

		for _, readset := range readsets {
			if err := scope.LinkReadsetFile(ctx, readset.ID, file.ID); err != nil {
				return err
			}
		}

		result.Files++
	}

	return nil
}
