package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/seqtrack-io/seqtrack/internal/endpoints"
	"github.com/seqtrack-io/seqtrack/internal/tracking"
)

// Idempotent get-or-create resolution. Each resolver looks up the natural
// key inside the scope's transaction, returns the existing record when found
// (recording an ownership conflict on a parent mismatch), and otherwise
// inserts a new record bound to the supplied parent. Commit is the caller's
// responsibility, so one ingestion batch resolves its whole entity graph in
// a single transaction.

// GetOrCreateProject resolves a project by its unique name.
func (s *Scope) GetOrCreateProject(ctx context.Context, name string, alias tracking.Metadata) (*tracking.Project, error) {
	existing, err := s.findProjectByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return existing, nil
	}

	project := &tracking.Project{Name: name, Alias: alias}
	if err := s.validator.ValidateProject(project); err != nil {
		return nil, err
	}

	aliasParam, err := metadataParam(alias)
	if err != nil {
		return nil, err
	}

	const q = `INSERT INTO project (name, alias) VALUES ($1, $2) RETURNING id, creation`

	if err := s.tx.QueryRowContext(ctx, q, name, aliasParam).Scan(&project.ID, &project.Creation); err != nil {
		return nil, constraintErr(tracking.TableProject, err)
	}

	return project, nil
}

// GetOrCreateSpecimen resolves a specimen by its unique name. A name match
// under a different project is recorded as an ownership conflict and the
// existing specimen is returned unchanged.
func (s *Scope) GetOrCreateSpecimen(
	ctx context.Context,
	name string,
	project *tracking.Project,
	cohort, institution *string,
) (*tracking.Specimen, error) {
	if project == nil {
		return nil, &tracking.ValidationError{Table: tracking.TableSpecimen, Field: "project_id", Err: tracking.ErrMissingParent}
	}

	existing, err := s.findSpecimenByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.ProjectID != project.ID {
			s.recordConflict(&tracking.OwnershipConflict{
				Table:             tracking.TableSpecimen,
				Name:              name,
				ParentTable:       tracking.TableProject,
				ExistingParentID:  existing.ProjectID,
				RequestedParentID: project.ID,
			})
		}

		return existing, nil
	}

	specimen := &tracking.Specimen{
		ProjectID:   project.ID,
		Name:        name,
		Cohort:      cohort,
		Institution: institution,
	}

	if err := s.validator.ValidateSpecimen(specimen); err != nil {
		return nil, err
	}

	const q = `INSERT INTO specimen (project_id, name, cohort, institution)
		VALUES ($1, $2, $3, $4) RETURNING id, creation`

	err = s.tx.QueryRowContext(ctx, q, project.ID, name, nullStr(cohort), nullStr(institution)).
		Scan(&specimen.ID, &specimen.Creation)
	if err != nil {
		return nil, constraintErr(tracking.TableSpecimen, err)
	}

	return specimen, nil
}

// GetOrCreateSample resolves a sample by its unique name. A name match under
// a different specimen is recorded as an ownership conflict.
func (s *Scope) GetOrCreateSample(
	ctx context.Context,
	name string,
	specimen *tracking.Specimen,
	tumour bool,
) (*tracking.Sample, error) {
	if specimen == nil {
		return nil, &tracking.ValidationError{Table: tracking.TableSample, Field: "specimen_id", Err: tracking.ErrMissingParent}
	}

	existing, err := s.findSampleByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.SpecimenID != specimen.ID {
			s.recordConflict(&tracking.OwnershipConflict{
				Table:             tracking.TableSample,
				Name:              name,
				ParentTable:       tracking.TableSpecimen,
				ExistingParentID:  existing.SpecimenID,
				RequestedParentID: specimen.ID,
			})
		}

		return existing, nil
	}

	sample := &tracking.Sample{SpecimenID: specimen.ID, Name: name, Tumour: tumour}
	if err := s.validator.ValidateSample(sample); err != nil {
		return nil, err
	}

	const q = `INSERT INTO sample (specimen_id, name, tumour)
		VALUES ($1, $2, $3) RETURNING id, creation`

	err = s.tx.QueryRowContext(ctx, q, specimen.ID, name, tumour).Scan(&sample.ID, &sample.Creation)
	if err != nil {
		return nil, constraintErr(tracking.TableSample, err)
	}

	return sample, nil
}

// GetOrCreateReadset resolves a readset by its unique name. A name match
// under a different sample is recorded as an ownership conflict; experiment
// and run are required parents for newly created readsets.
func (s *Scope) GetOrCreateReadset(
	ctx context.Context,
	attrs tracking.ReadsetAttributes,
	sample *tracking.Sample,
	experiment *tracking.Experiment,
	run *tracking.Run,
) (*tracking.Readset, error) {
	if sample == nil {
		return nil, &tracking.ValidationError{Table: tracking.TableReadset, Field: "sample_id", Err: tracking.ErrMissingParent}
	}

	if experiment == nil {
		return nil, &tracking.ValidationError{Table: tracking.TableReadset, Field: "experiment_id", Err: tracking.ErrMissingParent}
	}

	if run == nil {
		return nil, &tracking.ValidationError{Table: tracking.TableReadset, Field: "run_id", Err: tracking.ErrMissingParent}
	}

	existing, err := s.findReadsetByName(ctx, attrs.Name)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.SampleID != sample.ID {
			s.recordConflict(&tracking.OwnershipConflict{
				Table:             tracking.TableReadset,
				Name:              attrs.Name,
				ParentTable:       tracking.TableSample,
				ExistingParentID:  existing.SampleID,
				RequestedParentID: sample.ID,
			})
		}

		return existing, nil
	}

	readset := &tracking.Readset{
		SampleID:       sample.ID,
		ExperimentID:   experiment.ID,
		RunID:          run.ID,
		Name:           attrs.Name,
		Alias:          attrs.Alias,
		Lane:           attrs.Lane,
		Adapter1:       attrs.Adapter1,
		Adapter2:       attrs.Adapter2,
		SequencingType: attrs.SequencingType,
		State:          tracking.StateValid,
	}

	if err := s.validator.ValidateReadset(readset); err != nil {
		return nil, err
	}

	aliasParam, err := metadataParam(attrs.Alias)
	if err != nil {
		return nil, err
	}

	var lane any
	if attrs.Lane != nil {
		lane = attrs.Lane.String()
	}

	var sequencingType any
	if attrs.SequencingType != nil {
		sequencingType = attrs.SequencingType.String()
	}

	const q = `INSERT INTO readset (sample_id, experiment_id, run_id, name, alias, lane, adapter1, adapter2, sequencing_type, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id, creation`

	err = s.tx.QueryRowContext(ctx, q,
		sample.ID, experiment.ID, run.ID, attrs.Name, aliasParam,
		lane, nullStr(attrs.Adapter1), nullStr(attrs.Adapter2), sequencingType, readset.State.String(),
	).Scan(&readset.ID, &readset.Creation)
	if err != nil {
		return nil, constraintErr(tracking.TableReadset, err)
	}

	return readset, nil
}

// GetOrCreateExperiment resolves an experiment by its full attribute tuple.
// Nil attributes match stored NULLs, so the same tuple always resolves to
// the same row.
func (s *Scope) GetOrCreateExperiment(ctx context.Context, attrs tracking.ExperimentAttributes) (*tracking.Experiment, error) {
	experiment := &tracking.Experiment{
		SequencingTechnology: attrs.SequencingTechnology,
		Type:                 attrs.Type,
		NucleicAcidType:      attrs.NucleicAcidType,
		LibraryKit:           attrs.LibraryKit,
		KitExpirationDate:    attrs.KitExpirationDate,
	}

	if err := s.validator.ValidateExperiment(experiment); err != nil {
		return nil, err
	}

	const lookup = `SELECT ` + envelopeCols + `, sequencing_technology, type, nucleic_acid_type, library_kit, kit_expiration_date
		FROM experiment
		WHERE sequencing_technology IS NOT DISTINCT FROM $1
		  AND type IS NOT DISTINCT FROM $2
		  AND nucleic_acid_type = $3
		  AND library_kit IS NOT DISTINCT FROM $4
		  AND kit_expiration_date IS NOT DISTINCT FROM $5
		  AND deleted = FALSE
		ORDER BY id
		LIMIT 1`

	existing := &tracking.Experiment{}

	var (
		env               envelopeRow
		seqTech, typ, kit sql.NullString
		nucleicAcidType   string
		kitExpiration     sql.NullTime
	)

	args := append(envScanArgs(&existing.Envelope, &env), &seqTech, &typ, &nucleicAcidType, &kit, &kitExpiration)

	err := s.tx.QueryRowContext(ctx, lookup,
		nullStr(attrs.SequencingTechnology),
		nullStr(attrs.Type),
		attrs.NucleicAcidType.String(),
		nullStr(attrs.LibraryKit),
		nullTime(attrs.KitExpirationDate),
	).Scan(args...)

	switch {
	case err == nil:
		if err := env.apply(&existing.Envelope); err != nil {
			return nil, err
		}

		existing.SequencingTechnology = strPtr(seqTech)
		existing.Type = strPtr(typ)
		existing.NucleicAcidType = tracking.NucleicAcidType(nucleicAcidType)
		existing.LibraryKit = strPtr(kit)
		existing.KitExpirationDate = timePtr(kitExpiration)

		return existing, nil
	case errors.Is(err, sql.ErrNoRows):
		// Fall through to insert.
	default:
		return nil, fmt.Errorf("experiment lookup failed: %w", err)
	}

	const q = `INSERT INTO experiment (sequencing_technology, type, nucleic_acid_type, library_kit, kit_expiration_date)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, creation`

	err = s.tx.QueryRowContext(ctx, q,
		nullStr(attrs.SequencingTechnology),
		nullStr(attrs.Type),
		attrs.NucleicAcidType.String(),
		nullStr(attrs.LibraryKit),
		nullTime(attrs.KitExpirationDate),
	).Scan(&experiment.ID, &experiment.Creation)
	if err != nil {
		return nil, constraintErr(tracking.TableExperiment, err)
	}

	return experiment, nil
}

// GetOrCreateRun resolves a run by its full attribute tuple including the
// external linkage. Nil attributes match stored NULLs.
func (s *Scope) GetOrCreateRun(ctx context.Context, attrs tracking.RunAttributes) (*tracking.Run, error) {
	const lookup = `SELECT ` + envelopeCols + `, name, instrument, date
		FROM run
		WHERE ext_id IS NOT DISTINCT FROM $1
		  AND ext_src IS NOT DISTINCT FROM $2
		  AND name IS NOT DISTINCT FROM $3
		  AND instrument IS NOT DISTINCT FROM $4
		  AND date IS NOT DISTINCT FROM $5
		  AND deleted = FALSE
		ORDER BY id
		LIMIT 1`

	existing := &tracking.Run{}

	var (
		env              envelopeRow
		name, instrument sql.NullString
		date             sql.NullTime
	)

	args := append(envScanArgs(&existing.Envelope, &env), &name, &instrument, &date)

	err := s.tx.QueryRowContext(ctx, lookup,
		nullInt(attrs.ExtID),
		nullStr(attrs.ExtSrc),
		nullStr(attrs.Name),
		nullStr(attrs.Instrument),
		nullTime(attrs.Date),
	).Scan(args...)

	switch {
	case err == nil:
		if err := env.apply(&existing.Envelope); err != nil {
			return nil, err
		}

		existing.Name = strPtr(name)
		existing.Instrument = strPtr(instrument)
		existing.Date = timePtr(date)

		return existing, nil
	case errors.Is(err, sql.ErrNoRows):
		// Fall through to insert.
	default:
		return nil, fmt.Errorf("run lookup failed: %w", err)
	}

	run := &tracking.Run{
		Name:       attrs.Name,
		Instrument: attrs.Instrument,
		Date:       attrs.Date,
	}
	run.ExtID = attrs.ExtID
	run.ExtSrc = attrs.ExtSrc

	const q = `INSERT INTO run (ext_id, ext_src, name, instrument, date)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, creation`

	err = s.tx.QueryRowContext(ctx, q,
		nullInt(attrs.ExtID),
		nullStr(attrs.ExtSrc),
		nullStr(attrs.Name),
		nullStr(attrs.Instrument),
		nullTime(attrs.Date),
	).Scan(&run.ID, &run.Creation)
	if err != nil {
		return nil, constraintErr(tracking.TableRun, err)
	}

	return run, nil
}

// GetOrCreateOperationConfig resolves an operation config by its attribute
// tuple including the content hash.
func (s *Scope) GetOrCreateOperationConfig(
	ctx context.Context,
	attrs tracking.OperationConfigAttributes,
) (*tracking.OperationConfig, error) {
	const lookup = `SELECT ` + envelopeCols + `, name, version, md5sum, data
		FROM operation_config
		WHERE name IS NOT DISTINCT FROM $1
		  AND version IS NOT DISTINCT FROM $2
		  AND md5sum IS NOT DISTINCT FROM $3
		  AND data IS NOT DISTINCT FROM $4
		  AND deleted = FALSE
		ORDER BY id
		LIMIT 1`

	existing := &tracking.OperationConfig{}

	var (
		env                envelopeRow
		name, version, md5 sql.NullString
		data               []byte
	)

	args := append(envScanArgs(&existing.Envelope, &env), &name, &version, &md5, &data)

	err := s.tx.QueryRowContext(ctx, lookup,
		nullStr(attrs.Name),
		nullStr(attrs.Version),
		nullStr(attrs.MD5Sum),
		attrs.Data,
	).Scan(args...)

	switch {
	case err == nil:
		if err := env.apply(&existing.Envelope); err != nil {
			return nil, err
		}

		existing.Name = strPtr(name)
		existing.Version = strPtr(version)
		existing.MD5Sum = strPtr(md5)
		existing.Data = data

		return existing, nil
	case errors.Is(err, sql.ErrNoRows):
		// Fall through to insert.
	default:
		return nil, fmt.Errorf("operation config lookup failed: %w", err)
	}

	cfg := &tracking.OperationConfig{
		Name:    attrs.Name,
		Version: attrs.Version,
		MD5Sum:  attrs.MD5Sum,
		Data:    attrs.Data,
	}

	const q = `INSERT INTO operation_config (name, version, md5sum, data)
		VALUES ($1, $2, $3, $4) RETURNING id, creation`

	err = s.tx.QueryRowContext(ctx, q,
		nullStr(attrs.Name),
		nullStr(attrs.Version),
		nullStr(attrs.MD5Sum),
		attrs.Data,
	).Scan(&cfg.ID, &cfg.Creation)
	if err != nil {
		return nil, constraintErr(tracking.TableOperationConfig, err)
	}

	return cfg, nil
}

// GetOrCreateLocation resolves a location by its unique uri. When no
// endpoint is supplied it is derived from the uri scheme and resolved
// through the endpoint alias map.
func (s *Scope) GetOrCreateLocation(
	ctx context.Context,
	uri string,
	file *tracking.File,
	endpoint string,
) (*tracking.Location, error) {
	existing, err := s.findLocationByURI(ctx, uri)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return existing, nil
	}

	if file == nil {
		return nil, &tracking.ValidationError{Table: tracking.TableLocation, Field: "file_id", Err: tracking.ErrMissingParent}
	}

	if endpoint == "" {
		derived, err := endpoints.Derive(uri)
		if err != nil {
			return nil, &tracking.ValidationError{Table: tracking.TableLocation, Field: "endpoint", Err: err}
		}

		endpoint = s.endpoints.Resolve(derived)
	}

	location := &tracking.Location{
		FileID:   file.ID,
		URI:      uri,
		Endpoint: endpoint,
	}

	if err := s.validator.ValidateLocation(location); err != nil {
		return nil, err
	}

	const q = `INSERT INTO location (file_id, uri, endpoint)
		VALUES ($1, $2, $3) RETURNING id, creation`

	err = s.tx.QueryRowContext(ctx, q, file.ID, uri, endpoint).Scan(&location.ID, &location.Creation)
	if err != nil {
		return nil, constraintErr(tracking.TableLocation, err)
	}

	return location, nil
}
