package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/seqtrack-io/seqtrack/internal/tracking"
)

// Loaders return entities with their relationship id slices populated, ready
// for flat projection. Soft-deleted rows are excluded everywhere, both as
// the loaded row and as members of relation id slices. Loading never mutates
// the store.

type rowScanner interface {
	Scan(dest ...any) error
}

// GetProject loads a project with sorted specimen and operation ids.
func (s *Scope) GetProject(ctx context.Context, id int64) (*tracking.Project, error) {
	const q = `SELECT ` + envelopeCols + `, name, alias FROM project WHERE id = $1 AND deleted = FALSE`

	project, err := scanProject(s.tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}

	if project == nil {
		return nil, tracking.ErrNotFound
	}

	return project, s.loadProjectRelations(ctx, project)
}

// GetProjectByName loads a project by its unique name.
func (s *Scope) GetProjectByName(ctx context.Context, name string) (*tracking.Project, error) {
	project, err := s.findProjectByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if project == nil {
		return nil, tracking.ErrNotFound
	}

	return project, s.loadProjectRelations(ctx, project)
}

func (s *Scope) findProjectByName(ctx context.Context, name string) (*tracking.Project, error) {
	const q = `SELECT ` + envelopeCols + `, name, alias FROM project WHERE name = $1 AND deleted = FALSE`

	return scanProject(s.tx.QueryRowContext(ctx, q, name))
}

func (s *Scope) loadProjectRelations(ctx context.Context, project *tracking.Project) error {
	var err error

	project.SpecimenIDs, err = s.queryIDs(ctx,
		`SELECT id FROM specimen WHERE project_id = $1 AND deleted = FALSE ORDER BY id`, project.ID)
	if err != nil {
		return err
	}

	project.OperationIDs, err = s.queryIDs(ctx,
		`SELECT id FROM operation WHERE project_id = $1 AND deleted = FALSE ORDER BY id`, project.ID)

	return err
}

func scanProject(row rowScanner) (*tracking.Project, error) {
	project := &tracking.Project{}

	var (
		env   envelopeRow
		alias []byte
	)

	args := append(envScanArgs(&project.Envelope, &env), &project.Name, &alias)

	err := row.Scan(args...)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil //nolint:nilnil // absence is not an error for finders
	case err != nil:
		return nil, fmt.Errorf("project scan failed: %w", err)
	}

	if err := env.apply(&project.Envelope); err != nil {
		return nil, err
	}

	if project.Alias, err = scanMetadata(alias); err != nil {
		return nil, err
	}

	return project, nil
}

// GetSpecimen loads a specimen with sorted sample ids.
func (s *Scope) GetSpecimen(ctx context.Context, id int64) (*tracking.Specimen, error) {
	const q = `SELECT ` + envelopeCols + `, project_id, name, alias, cohort, institution
		FROM specimen WHERE id = $1 AND deleted = FALSE`

	specimen, err := scanSpecimen(s.tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}

	if specimen == nil {
		return nil, tracking.ErrNotFound
	}

	specimen.SampleIDs, err = s.queryIDs(ctx,
		`SELECT id FROM sample WHERE specimen_id = $1 AND deleted = FALSE ORDER BY id`, specimen.ID)

	return specimen, err
}

func (s *Scope) findSpecimenByName(ctx context.Context, name string) (*tracking.Specimen, error) {
	const q = `SELECT ` + envelopeCols + `, project_id, name, alias, cohort, institution
		FROM specimen WHERE name = $1 AND deleted = FALSE`

	return scanSpecimen(s.tx.QueryRowContext(ctx, q, name))
}

func scanSpecimen(row rowScanner) (*tracking.Specimen, error) {
	specimen := &tracking.Specimen{}

	var (
		env                 envelopeRow
		alias               []byte
		cohort, institution sql.NullString
	)

	args := append(envScanArgs(&specimen.Envelope, &env),
		&specimen.ProjectID, &specimen.Name, &alias, &cohort, &institution)

	err := row.Scan(args...)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil //nolint:nilnil // absence is not an error for finders
	case err != nil:
		return nil, fmt.Errorf("specimen scan failed: %w", err)
	}

	if err := env.apply(&specimen.Envelope); err != nil {
		return nil, err
	}

	if specimen.Alias, err = scanMetadata(alias); err != nil {
		return nil, err
	}

	specimen.Cohort = strPtr(cohort)
	specimen.Institution = strPtr(institution)

	return specimen, nil
}

// GetSample loads a sample with sorted readset ids.
func (s *Scope) GetSample(ctx context.Context, id int64) (*tracking.Sample, error) {
	const q = `SELECT ` + envelopeCols + `, specimen_id, name, alias, tumour
		FROM sample WHERE id = $1 AND deleted = FALSE`

	sample, err := scanSample(s.tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}

	if sample == nil {
		return nil, tracking.ErrNotFound
	}

	sample.ReadsetIDs, err = s.queryIDs(ctx,
		`SELECT id FROM readset WHERE sample_id = $1 AND deleted = FALSE ORDER BY id`, sample.ID)

	return sample, err
}

func (s *Scope) findSampleByName(ctx context.Context, name string) (*tracking.Sample, error) {
	const q = `SELECT ` + envelopeCols + `, specimen_id, name, alias, tumour
		FROM sample WHERE name = $1 AND deleted = FALSE`

	return scanSample(s.tx.QueryRowContext(ctx, q, name))
}

func scanSample(row rowScanner) (*tracking.Sample, error) {
	sample := &tracking.Sample{}

	var (
		env   envelopeRow
		alias []byte
	)

	args := append(envScanArgs(&sample.Envelope, &env),
		&sample.SpecimenID, &sample.Name, &alias, &sample.Tumour)

	err := row.Scan(args...)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil //nolint:nilnil // absence is not an error for finders
	case err != nil:
		return nil, fmt.Errorf("sample scan failed: %w", err)
	}

	if err := env.apply(&sample.Envelope); err != nil {
		return nil, err
	}

	if sample.Alias, err = scanMetadata(alias); err != nil {
		return nil, err
	}

	return sample, nil
}

// GetExperiment loads an experiment with sorted readset ids.
func (s *Scope) GetExperiment(ctx context.Context, id int64) (*tracking.Experiment, error) {
	const q = `SELECT ` + envelopeCols + `, sequencing_technology, type, nucleic_acid_type, library_kit, kit_expiration_date
		FROM experiment WHERE id = $1 AND deleted = FALSE`

	experiment := &tracking.Experiment{}

	var (
		env               envelopeRow
		seqTech, typ, kit sql.NullString
		nucleicAcidType   string
		kitExpiration     sql.NullTime
	)

	args := append(envScanArgs(&experiment.Envelope, &env),
		&seqTech, &typ, &nucleicAcidType, &kit, &kitExpiration)

	err := s.tx.QueryRowContext(ctx, q, id).Scan(args...)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, tracking.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("experiment scan failed: %w", err)
	}

	if err := env.apply(&experiment.Envelope); err != nil {
		return nil, err
	}

	experiment.SequencingTechnology = strPtr(seqTech)
	experiment.Type = strPtr(typ)
	experiment.NucleicAcidType = tracking.NucleicAcidType(nucleicAcidType)
	experiment.LibraryKit = strPtr(kit)
	experiment.KitExpirationDate = timePtr(kitExpiration)

	experiment.ReadsetIDs, err = s.queryIDs(ctx,
		`SELECT id FROM readset WHERE experiment_id = $1 AND deleted = FALSE ORDER BY id`, experiment.ID)

	return experiment, err
}

// GetRun loads a run with sorted readset ids.
func (s *Scope) GetRun(ctx context.Context, id int64) (*tracking.Run, error) {
	const q = `SELECT ` + envelopeCols + `, name, instrument, date
		FROM run WHERE id = $1 AND deleted = FALSE`

	run := &tracking.Run{}

	var (
		env              envelopeRow
		name, instrument sql.NullString
		date             sql.NullTime
	)

	args := append(envScanArgs(&run.Envelope, &env), &name, &instrument, &date)

	err := s.tx.QueryRowContext(ctx, q, id).Scan(args...)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, tracking.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("run scan failed: %w", err)
	}

	if err := env.apply(&run.Envelope); err != nil {
		return nil, err
	}

	run.Name = strPtr(name)
	run.Instrument = strPtr(instrument)
	run.Date = timePtr(date)

	run.ReadsetIDs, err = s.queryIDs(ctx,
		`SELECT id FROM readset WHERE run_id = $1 AND deleted = FALSE ORDER BY id`, run.ID)

	return run, err
}

// GetReadset loads a readset with its three parent ids and sorted join ids.
func (s *Scope) GetReadset(ctx context.Context, id int64) (*tracking.Readset, error) {
	const q = `SELECT ` + envelopeCols + `, sample_id, experiment_id, run_id, name, alias, lane, adapter1, adapter2, sequencing_type, state
		FROM readset WHERE id = $1 AND deleted = FALSE`

	readset, err := scanReadset(s.tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}

	if readset == nil {
		return nil, tracking.ErrNotFound
	}

	return readset, s.loadReadsetRelations(ctx, readset)
}

// GetReadsetByName loads a readset by its unique name.
func (s *Scope) GetReadsetByName(ctx context.Context, name string) (*tracking.Readset, error) {
	readset, err := s.findReadsetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if readset == nil {
		return nil, tracking.ErrNotFound
	}

	return readset, s.loadReadsetRelations(ctx, readset)
}

func (s *Scope) findReadsetByName(ctx context.Context, name string) (*tracking.Readset, error) {
	const q = `SELECT ` + envelopeCols + `, sample_id, experiment_id, run_id, name, alias, lane, adapter1, adapter2, sequencing_type, state
		FROM readset WHERE name = $1 AND deleted = FALSE`

	return scanReadset(s.tx.QueryRowContext(ctx, q, name))
}

func (s *Scope) loadReadsetRelations(ctx context.Context, readset *tracking.Readset) error {
	var err error

	readset.FileIDs, err = s.queryIDs(ctx,
		`SELECT rf.file_id FROM readset_file rf
		 JOIN file f ON f.id = rf.file_id AND f.deleted = FALSE
		 WHERE rf.readset_id = $1 ORDER BY rf.file_id`, readset.ID)
	if err != nil {
		return err
	}

	readset.OperationIDs, err = s.queryIDs(ctx,
		`SELECT ro.operation_id FROM readset_operation ro
		 JOIN operation o ON o.id = ro.operation_id AND o.deleted = FALSE
		 WHERE ro.readset_id = $1 ORDER BY ro.operation_id`, readset.ID)
	if err != nil {
		return err
	}

	readset.JobIDs, err = s.queryIDs(ctx,
		`SELECT rj.job_id FROM readset_job rj
		 JOIN job j ON j.id = rj.job_id AND j.deleted = FALSE
		 WHERE rj.readset_id = $1 ORDER BY rj.job_id`, readset.ID)
	if err != nil {
		return err
	}

	readset.MetricIDs, err = s.queryIDs(ctx,
		`SELECT rm.metric_id FROM readset_metric rm
		 JOIN metric m ON m.id = rm.metric_id AND m.deleted = FALSE
		 WHERE rm.readset_id = $1 ORDER BY rm.metric_id`, readset.ID)

	return err
}

func scanReadset(row rowScanner) (*tracking.Readset, error) {
	readset := &tracking.Readset{}

	var (
		env                      envelopeRow
		alias                    []byte
		lane, adapter1, adapter2 sql.NullString
		sequencingType, state    sql.NullString
	)

	args := append(envScanArgs(&readset.Envelope, &env),
		&readset.SampleID, &readset.ExperimentID, &readset.RunID, &readset.Name,
		&alias, &lane, &adapter1, &adapter2, &sequencingType, &state)

	err := row.Scan(args...)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil //nolint:nilnil // absence is not an error for finders
	case err != nil:
		return nil, fmt.Errorf("readset scan failed: %w", err)
	}

	if err := env.apply(&readset.Envelope); err != nil {
		return nil, err
	}

	if readset.Alias, err = scanMetadata(alias); err != nil {
		return nil, err
	}

	if lane.Valid {
		l := tracking.Lane(lane.String)
		readset.Lane = &l
	}

	readset.Adapter1 = strPtr(adapter1)
	readset.Adapter2 = strPtr(adapter2)

	if sequencingType.Valid {
		st := tracking.SequencingType(sequencingType.String)
		readset.SequencingType = &st
	}

	if state.Valid {
		readset.State = tracking.State(state.String)
	}

	return readset, nil
}

// GetOperation loads an operation with sorted job and readset ids.
func (s *Scope) GetOperation(ctx context.Context, id int64) (*tracking.Operation, error) {
	const q = `SELECT ` + envelopeCols + `, project_id, operation_config_id, reference_id, platform, cmd_line, name, status
		FROM operation WHERE id = $1 AND deleted = FALSE`

	operation := &tracking.Operation{}

	var (
		env                     envelopeRow
		configID, referenceID   sql.NullInt64
		platform, cmdLine, name sql.NullString
		status                  string
	)

	args := append(envScanArgs(&operation.Envelope, &env),
		&operation.ProjectID, &configID, &referenceID, &platform, &cmdLine, &name, &status)

	err := s.tx.QueryRowContext(ctx, q, id).Scan(args...)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, tracking.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("operation scan failed: %w", err)
	}

	if err := env.apply(&operation.Envelope); err != nil {
		return nil, err
	}

	operation.OperationConfigID = intPtr(configID)
	operation.ReferenceID = intPtr(referenceID)
	operation.Platform = strPtr(platform)
	operation.CmdLine = strPtr(cmdLine)
	operation.Name = strPtr(name)
	operation.Status = tracking.Status(status)

	operation.JobIDs, err = s.queryIDs(ctx,
		`SELECT id FROM job WHERE operation_id = $1 AND deleted = FALSE ORDER BY id`, operation.ID)
	if err != nil {
		return nil, err
	}

	operation.ReadsetIDs, err = s.queryIDs(ctx,
		`SELECT ro.readset_id FROM readset_operation ro
		 JOIN readset r ON r.id = ro.readset_id AND r.deleted = FALSE
		 WHERE ro.operation_id = $1 ORDER BY ro.readset_id`, operation.ID)

	return operation, err
}

// GetReference loads a reference with sorted operation ids.
func (s *Scope) GetReference(ctx context.Context, id int64) (*tracking.Reference, error) {
	const q = `SELECT ` + envelopeCols + `, name, alias, assembly, version, taxon_id, source
		FROM reference WHERE id = $1 AND deleted = FALSE`

	reference := &tracking.Reference{}

	var (
		env                            envelopeRow
		name, alias, assembly, version sql.NullString
		taxonID, source                sql.NullString
	)

	args := append(envScanArgs(&reference.Envelope, &env),
		&name, &alias, &assembly, &version, &taxonID, &source)

	err := s.tx.QueryRowContext(ctx, q, id).Scan(args...)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, tracking.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("reference scan failed: %w", err)
	}

	if err := env.apply(&reference.Envelope); err != nil {
		return nil, err
	}

	reference.Name = strPtr(name)
	reference.Alias = strPtr(alias)
	reference.Assembly = strPtr(assembly)
	reference.Version = strPtr(version)
	reference.TaxonID = strPtr(taxonID)
	reference.Source = strPtr(source)

	reference.OperationIDs, err = s.queryIDs(ctx,
		`SELECT id FROM operation WHERE reference_id = $1 AND deleted = FALSE ORDER BY id`, reference.ID)

	return reference, err
}

// GetOperationConfig loads an operation config with sorted operation ids.
func (s *Scope) GetOperationConfig(ctx context.Context, id int64) (*tracking.OperationConfig, error) {
	const q = `SELECT ` + envelopeCols + `, name, version, md5sum, data
		FROM operation_config WHERE id = $1 AND deleted = FALSE`

	cfg := &tracking.OperationConfig{}

	var (
		env                envelopeRow
		name, version, md5 sql.NullString
		data               []byte
	)

	args := append(envScanArgs(&cfg.Envelope, &env), &name, &version, &md5, &data)

	err := s.tx.QueryRowContext(ctx, q, id).Scan(args...)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, tracking.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("operation config scan failed: %w", err)
	}

	if err := env.apply(&cfg.Envelope); err != nil {
		return nil, err
	}

	cfg.Name = strPtr(name)
	cfg.Version = strPtr(version)
	cfg.MD5Sum = strPtr(md5)
	cfg.Data = data

	cfg.OperationIDs, err = s.queryIDs(ctx,
		`SELECT id FROM operation WHERE operation_config_id = $1 AND deleted = FALSE ORDER BY id`, cfg.ID)

	return cfg, err
}

// GetJob loads a job with sorted metric, file and readset ids.
func (s *Scope) GetJob(ctx context.Context, id int64) (*tracking.Job, error) {
	const q = `SELECT ` + envelopeCols + `, operation_id, name, start, stop, status, type
		FROM job WHERE id = $1 AND deleted = FALSE`

	job := &tracking.Job{}

	var (
		env               envelopeRow
		name, status, typ sql.NullString
		start, stop       sql.NullTime
	)

	args := append(envScanArgs(&job.Envelope, &env),
		&job.OperationID, &name, &start, &stop, &status, &typ)

	err := s.tx.QueryRowContext(ctx, q, id).Scan(args...)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, tracking.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("job scan failed: %w", err)
	}

	if err := env.apply(&job.Envelope); err != nil {
		return nil, err
	}

	job.Name = strPtr(name)
	job.Start = timePtr(start)
	job.Stop = timePtr(stop)
	job.Type = strPtr(typ)

	if status.Valid {
		st := tracking.Status(status.String)
		job.Status = &st
	}

	job.MetricIDs, err = s.queryIDs(ctx,
		`SELECT id FROM metric WHERE job_id = $1 AND deleted = FALSE ORDER BY id`, job.ID)
	if err != nil {
		return nil, err
	}

	job.FileIDs, err = s.queryIDs(ctx,
		`SELECT jf.file_id FROM job_file jf
		 JOIN file f ON f.id = jf.file_id AND f.deleted = FALSE
		 WHERE jf.job_id = $1 ORDER BY jf.file_id`, job.ID)
	if err != nil {
		return nil, err
	}

	job.ReadsetIDs, err = s.queryIDs(ctx,
		`SELECT rj.readset_id FROM readset_job rj
		 JOIN readset r ON r.id = rj.readset_id AND r.deleted = FALSE
		 WHERE rj.job_id = $1 ORDER BY rj.readset_id`, job.ID)

	return job, err
}

// GetMetric loads a metric with sorted readset ids.
func (s *Scope) GetMetric(ctx context.Context, id int64) (*tracking.Metric, error) {
	const q = `SELECT ` + envelopeCols + `, job_id, name, value, flag, deliverable, aggregate
		FROM metric WHERE id = $1 AND deleted = FALSE`

	metric := &tracking.Metric{}

	var (
		env                    envelopeRow
		value, flag, aggregate sql.NullString
	)

	args := append(envScanArgs(&metric.Envelope, &env),
		&metric.JobID, &metric.Name, &value, &flag, &metric.Deliverable, &aggregate)

	err := s.tx.QueryRowContext(ctx, q, id).Scan(args...)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, tracking.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("metric scan failed: %w", err)
	}

	if err := env.apply(&metric.Envelope); err != nil {
		return nil, err
	}

	metric.Value = strPtr(value)

	if flag.Valid {
		f := tracking.Flag(flag.String)
		metric.Flag = &f
	}

	if aggregate.Valid {
		a := tracking.Aggregate(aggregate.String)
		metric.Aggregate = &a
	}

	metric.ReadsetIDs, err = s.queryIDs(ctx,
		`SELECT rm.readset_id FROM readset_metric rm
		 JOIN readset r ON r.id = rm.readset_id AND r.deleted = FALSE
		 WHERE rm.metric_id = $1 ORDER BY rm.readset_id`, metric.ID)

	return metric, err
}

// GetFile loads a file with its locations nested in full and sorted readset
// and job ids.
func (s *Scope) GetFile(ctx context.Context, id int64) (*tracking.File, error) {
	const q = `SELECT ` + envelopeCols + `, name, type, md5sum, deliverable
		FROM file WHERE id = $1 AND deleted = FALSE`

	file := &tracking.File{}

	var (
		env      envelopeRow
		typ, md5 sql.NullString
	)

	args := append(envScanArgs(&file.Envelope, &env), &file.Name, &typ, &md5, &file.Deliverable)

	err := s.tx.QueryRowContext(ctx, q, id).Scan(args...)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, tracking.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("file scan failed: %w", err)
	}

	if err := env.apply(&file.Envelope); err != nil {
		return nil, err
	}

	file.Type = strPtr(typ)
	file.MD5Sum = strPtr(md5)

	if file.Locations, err = s.loadFileLocations(ctx, file.ID); err != nil {
		return nil, err
	}

	file.ReadsetIDs, err = s.queryIDs(ctx,
		`SELECT rf.readset_id FROM readset_file rf
		 JOIN readset r ON r.id = rf.readset_id AND r.deleted = FALSE
		 WHERE rf.file_id = $1 ORDER BY rf.readset_id`, file.ID)
	if err != nil {
		return nil, err
	}

	file.JobIDs, err = s.queryIDs(ctx,
		`SELECT jf.job_id FROM job_file jf
		 JOIN job j ON j.id = jf.job_id AND j.deleted = FALSE
		 WHERE jf.file_id = $1 ORDER BY jf.job_id`, file.ID)

	return file, err
}

func (s *Scope) loadFileLocations(ctx context.Context, fileID int64) ([]*tracking.Location, error) {
	const q = `SELECT ` + envelopeCols + `, file_id, uri, endpoint, deliverable
		FROM location WHERE file_id = $1 AND deleted = FALSE ORDER BY id`

	rows, err := s.tx.QueryContext(ctx, q, fileID)
	if err != nil {
		return nil, fmt.Errorf("location query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var locations []*tracking.Location

	for rows.Next() {
		location, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}

		locations = append(locations, location)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("location iteration failed: %w", err)
	}

	return locations, nil
}

// GetLocation loads a single location.
func (s *Scope) GetLocation(ctx context.Context, id int64) (*tracking.Location, error) {
	const q = `SELECT ` + envelopeCols + `, file_id, uri, endpoint, deliverable
		FROM location WHERE id = $1 AND deleted = FALSE`

	location, err := scanLocation(s.tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}

	if location == nil {
		return nil, tracking.ErrNotFound
	}

	return location, nil
}

// GetLocationByURI loads a single location by its unique uri.
func (s *Scope) GetLocationByURI(ctx context.Context, uri string) (*tracking.Location, error) {
	location, err := s.findLocationByURI(ctx, uri)
	if err != nil {
		return nil, err
	}

	if location == nil {
		return nil, tracking.ErrNotFound
	}

	return location, nil
}

func (s *Scope) findLocationByURI(ctx context.Context, uri string) (*tracking.Location, error) {
	const q = `SELECT ` + envelopeCols + `, file_id, uri, endpoint, deliverable
		FROM location WHERE uri = $1 AND deleted = FALSE`

	return scanLocation(s.tx.QueryRowContext(ctx, q, uri))
}

func scanLocation(row rowScanner) (*tracking.Location, error) {
	location := &tracking.Location{}

	var env envelopeRow

	args := append(envScanArgs(&location.Envelope, &env),
		&location.FileID, &location.URI, &location.Endpoint, &location.Deliverable)

	err := row.Scan(args...)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil //nolint:nilnil // absence is not an error for finders
	case err != nil:
		return nil, fmt.Errorf("location scan failed: %w", err)
	}

	if err := env.apply(&location.Envelope); err != nil {
		return nil, err
	}

	return location, nil
}
