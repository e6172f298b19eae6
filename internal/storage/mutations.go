package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/seqtrack-io/seqtrack/internal/tracking"
)

// ErrUnknownTable is returned when a flag update names a table outside the
// schema.
var ErrUnknownTable = errors.New("unknown table")

var flagTables = map[string]struct{}{
	tracking.TableProject:         {},
	tracking.TableSpecimen:        {},
	tracking.TableSample:          {},
	tracking.TableExperiment:      {},
	tracking.TableRun:             {},
	tracking.TableReadset:         {},
	tracking.TableOperation:       {},
	tracking.TableReference:       {},
	tracking.TableOperationConfig: {},
	tracking.TableJob:             {},
	tracking.TableMetric:          {},
	tracking.TableFile:            {},
	tracking.TableLocation:        {},
}

// CreateReference inserts a reference, filling the envelope. Every field is
// optional, so no validation applies.
func (s *Scope) CreateReference(ctx context.Context, reference *tracking.Reference) error {
	if reference == nil {
		return tracking.ErrNilEntity
	}

	metaParam, err := metadataParam(reference.ExtraMetadata)
	if err != nil {
		return err
	}

	const q = `INSERT INTO reference (name, alias, assembly, version, taxon_id, source, extra_metadata, ext_id, ext_src)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, creation`

	err = s.tx.QueryRowContext(ctx, q,
		nullStr(reference.Name),
		nullStr(reference.Alias),
		nullStr(reference.Assembly),
		nullStr(reference.Version),
		nullStr(reference.TaxonID),
		nullStr(reference.Source),
		metaParam,
		nullInt(reference.ExtID),
		nullStr(reference.ExtSrc),
	).Scan(&reference.ID, &reference.Creation)
	if err != nil {
		return constraintErr(tracking.TableReference, err)
	}

	return nil
}

// CreateOperation validates and inserts an operation, filling the envelope.
// Status defaults to PENDING when unset.
func (s *Scope) CreateOperation(ctx context.Context, operation *tracking.Operation) error {
	if operation == nil {
		return tracking.ErrNilEntity
	}

	if operation.Status == "" {
		operation.Status = tracking.StatusPending
	}

	if err := s.validator.ValidateOperation(operation); err != nil {
		return err
	}

	metaParam, err := metadataParam(operation.ExtraMetadata)
	if err != nil {
		return err
	}

	const q = `INSERT INTO operation (project_id, operation_config_id, reference_id, platform, cmd_line, name, status, extra_metadata, ext_id, ext_src)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id, creation`

	err = s.tx.QueryRowContext(ctx, q,
		operation.ProjectID,
		nullInt(operation.OperationConfigID),
		nullInt(operation.ReferenceID),
		nullStr(operation.Platform),
		nullStr(operation.CmdLine),
		nullStr(operation.Name),
		operation.Status.String(),
		metaParam,
		nullInt(operation.ExtID),
		nullStr(operation.ExtSrc),
	).Scan(&operation.ID, &operation.Creation)
	if err != nil {
		return constraintErr(tracking.TableOperation, err)
	}

	return nil
}

// CreateJob validates and inserts a job, filling the envelope.
func (s *Scope) CreateJob(ctx context.Context, job *tracking.Job) error {
	if job == nil {
		return tracking.ErrNilEntity
	}

	if err := s.validator.ValidateJob(job); err != nil {
		return err
	}

	metaParam, err := metadataParam(job.ExtraMetadata)
	if err != nil {
		return err
	}

	var status any
	if job.Status != nil {
		status = job.Status.String()
	}

	const q = `INSERT INTO job (operation_id, name, start, stop, status, type, extra_metadata, ext_id, ext_src)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, creation`

	err = s.tx.QueryRowContext(ctx, q,
		job.OperationID,
		nullStr(job.Name),
		nullTime(job.Start),
		nullTime(job.Stop),
		status,
		nullStr(job.Type),
		metaParam,
		nullInt(job.ExtID),
		nullStr(job.ExtSrc),
	).Scan(&job.ID, &job.Creation)
	if err != nil {
		return constraintErr(tracking.TableJob, err)
	}

	return nil
}

// CreateMetric validates and inserts a metric, filling the envelope.
func (s *Scope) CreateMetric(ctx context.Context, metric *tracking.Metric) error {
	if metric == nil {
		return tracking.ErrNilEntity
	}

	if err := s.validator.ValidateMetric(metric); err != nil {
		return err
	}

	metaParam, err := metadataParam(metric.ExtraMetadata)
	if err != nil {
		return err
	}

	var flag any
	if metric.Flag != nil {
		flag = metric.Flag.String()
	}

	var aggregate any
	if metric.Aggregate != nil {
		aggregate = metric.Aggregate.String()
	}

	const q = `INSERT INTO metric (job_id, name, value, flag, deliverable, aggregate, extra_metadata, ext_id, ext_src)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, creation`

	err = s.tx.QueryRowContext(ctx, q,
		metric.JobID,
		metric.Name,
		nullStr(metric.Value),
		flag,
		metric.Deliverable,
		aggregate,
		metaParam,
		nullInt(metric.ExtID),
		nullStr(metric.ExtSrc),
	).Scan(&metric.ID, &metric.Creation)
	if err != nil {
		return constraintErr(tracking.TableMetric, err)
	}

	return nil
}

// CreateFile validates and inserts a file, filling the envelope.
func (s *Scope) CreateFile(ctx context.Context, file *tracking.File) error {
	if file == nil {
		return tracking.ErrNilEntity
	}

	if err := s.validator.ValidateFile(file); err != nil {
		return err
	}

	metaParam, err := metadataParam(file.ExtraMetadata)
	if err != nil {
		return err
	}

	const q = `INSERT INTO file (name, type, md5sum, deliverable, extra_metadata, ext_id, ext_src)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, creation`

	err = s.tx.QueryRowContext(ctx, q,
		file.Name,
		nullStr(file.Type),
		nullStr(file.MD5Sum),
		file.Deliverable,
		metaParam,
		nullInt(file.ExtID),
		nullStr(file.ExtSrc),
	).Scan(&file.ID, &file.Creation)
	if err != nil {
		return constraintErr(tracking.TableFile, err)
	}

	return nil
}

// Join-table links. ON CONFLICT DO NOTHING keeps them idempotent; a
// dangling id surfaces as ConstraintViolation via the foreign key.

func (s *Scope) link(ctx context.Context, table, query string, firstID, secondID int64) error {
	if _, err := s.tx.ExecContext(ctx, query, firstID, secondID); err != nil {
		return constraintErr(table, err)
	}

	return nil
}

// LinkReadsetFile associates a readset with a file.
func (s *Scope) LinkReadsetFile(ctx context.Context, readsetID, fileID int64) error {
	return s.link(ctx, "readset_file",
		`INSERT INTO readset_file (readset_id, file_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		readsetID, fileID)
}

// LinkReadsetJob associates a readset with a job.
func (s *Scope) LinkReadsetJob(ctx context.Context, readsetID, jobID int64) error {
	return s.link(ctx, "readset_job",
		`INSERT INTO readset_job (readset_id, job_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		readsetID, jobID)
}

// LinkReadsetMetric associates a readset with a metric.
func (s *Scope) LinkReadsetMetric(ctx context.Context, readsetID, metricID int64) error {
	return s.link(ctx, "readset_metric",
		`INSERT INTO readset_metric (readset_id, metric_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		readsetID, metricID)
}

// LinkReadsetOperation associates a readset with an operation.
func (s *Scope) LinkReadsetOperation(ctx context.Context, readsetID, operationID int64) error {
	return s.link(ctx, "readset_operation",
		`INSERT INTO readset_operation (readset_id, operation_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		readsetID, operationID)
}

// LinkJobFile associates a job with a file.
func (s *Scope) LinkJobFile(ctx context.Context, jobID, fileID int64) error {
	return s.link(ctx, "job_file",
		`INSERT INTO job_file (job_id, file_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		jobID, fileID)
}

// Hard deletes. The schema's ON DELETE CASCADE handles the transitive
// ownership edges; join rows drop with their endpoints but never pull the
// other side down.

func (s *Scope) deleteRow(ctx context.Context, table, query string, id int64) error {
	result, err := s.tx.ExecContext(ctx, query, id)
	if err != nil {
		return constraintErr(table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete result inspection failed: %w", err)
	}

	if affected == 0 {
		return tracking.ErrNotFound
	}

	return nil
}

// DeleteProject removes a project and cascades to its specimens, samples,
// readsets and operations.
func (s *Scope) DeleteProject(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, tracking.TableProject, `DELETE FROM project WHERE id = $1`, id)
}

// DeleteSpecimen removes a specimen and cascades to its samples and readsets.
func (s *Scope) DeleteSpecimen(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, tracking.TableSpecimen, `DELETE FROM specimen WHERE id = $1`, id)
}

// DeleteSample removes a sample and cascades to its readsets.
func (s *Scope) DeleteSample(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, tracking.TableSample, `DELETE FROM sample WHERE id = $1`, id)
}

// DeleteExperiment removes an experiment and cascades to its readsets.
func (s *Scope) DeleteExperiment(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, tracking.TableExperiment, `DELETE FROM experiment WHERE id = $1`, id)
}

// DeleteRun removes a run and cascades to its readsets.
func (s *Scope) DeleteRun(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, tracking.TableRun, `DELETE FROM run WHERE id = $1`, id)
}

// DeleteReadset removes a readset; linked files, jobs, metrics and
// operations are unlinked, not deleted.
func (s *Scope) DeleteReadset(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, tracking.TableReadset, `DELETE FROM readset WHERE id = $1`, id)
}

// DeleteOperation removes an operation and cascades to its jobs and their
// metrics.
func (s *Scope) DeleteOperation(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, tracking.TableOperation, `DELETE FROM operation WHERE id = $1`, id)
}

// DeleteReference removes a reference and cascades to its operations.
func (s *Scope) DeleteReference(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, tracking.TableReference, `DELETE FROM reference WHERE id = $1`, id)
}

// DeleteOperationConfig removes an operation config and cascades to its
// operations.
func (s *Scope) DeleteOperationConfig(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, tracking.TableOperationConfig, `DELETE FROM operation_config WHERE id = $1`, id)
}

// DeleteJob removes a job and cascades to its metrics.
func (s *Scope) DeleteJob(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, tracking.TableJob, `DELETE FROM job WHERE id = $1`, id)
}

// DeleteFile removes a file and cascades to its locations.
func (s *Scope) DeleteFile(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, tracking.TableFile, `DELETE FROM file WHERE id = $1`, id)
}

// MarkDeleted flips the soft-delete flag. No cascading side effects; the
// modification timestamp refreshes via the schema trigger.
func (s *Scope) MarkDeleted(ctx context.Context, table string, id int64, deleted bool) error {
	return s.setFlag(ctx, table, "deleted", id, deleted)
}

// MarkDeprecated flips the deprecation flag.
func (s *Scope) MarkDeprecated(ctx context.Context, table string, id int64, deprecated bool) error {
	return s.setFlag(ctx, table, "deprecated", id, deprecated)
}

func (s *Scope) setFlag(ctx context.Context, table, column string, id int64, value bool) error {
	if _, ok := flagTables[table]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	// table and column are validated against fixed sets above.
	query := fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE id = $2`, table, column) //nolint:gosec

	result, err := s.tx.ExecContext(ctx, query, value, id)
	if err != nil {
		return constraintErr(table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("flag update inspection failed: %w", err)
	}

	if affected == 0 {
		return tracking.ErrNotFound
	}

	return nil
}
