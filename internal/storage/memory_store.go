package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/seqtrack-io/seqtrack/internal/config"
	"github.com/seqtrack-io/seqtrack/internal/endpoints"
	"github.com/seqtrack-io/seqtrack/internal/tracking"
)

// MemoryTrackingStore implements tracking.Store.
var _ tracking.Store = (*MemoryTrackingStore)(nil)

// MemoryScope implements tracking.Scope.
var _ tracking.Scope = (*MemoryScope)(nil)

type (
	// MemoryTrackingStore is an in-memory implementation of tracking.Store
	// for tests and local development. Each scope works on a snapshot of the
	// store state; Commit swaps the snapshot in, Rollback discards it.
	// Commit rejects a snapshot whose natural keys collide with rows another
	// scope published first, mirroring the SQL unique constraints; changes
	// to unrelated rows are last-writer-wins.
	MemoryTrackingStore struct {
		logger    *slog.Logger
		validator *tracking.Validator
		endpoints *endpoints.Config

		mu           sync.Mutex
		state        *memoryState
		seq          map[string]int64
		defaultScope *MemoryScope
		closed       bool
	}

	// MemoryTrackingStoreOption configures optional MemoryTrackingStore
	// behavior.
	MemoryTrackingStoreOption func(*MemoryTrackingStore)

	// MemoryScope is one snapshot transaction against the in-memory store.
	MemoryScope struct {
		store     *MemoryTrackingStore
		state     *memoryState
		conflicts []*tracking.OwnershipConflict
		done      bool
	}

	idPair struct {
		first  int64
		second int64
	}

	memoryState struct {
		projects    map[int64]*tracking.Project
		specimens   map[int64]*tracking.Specimen
		samples     map[int64]*tracking.Sample
		experiments map[int64]*tracking.Experiment
		runs        map[int64]*tracking.Run
		readsets    map[int64]*tracking.Readset
		operations  map[int64]*tracking.Operation
		references  map[int64]*tracking.Reference
		configs     map[int64]*tracking.OperationConfig
		jobs        map[int64]*tracking.Job
		metrics     map[int64]*tracking.Metric
		files       map[int64]*tracking.File
		locations   map[int64]*tracking.Location

		readsetFiles      map[idPair]struct{}
		readsetJobs       map[idPair]struct{}
		readsetMetrics    map[idPair]struct{}
		readsetOperations map[idPair]struct{}
		jobFiles          map[idPair]struct{}
	}
)

// WithMemoryEndpointAliases sets the endpoint alias map applied when deriving
// location endpoints from uri schemes.
func WithMemoryEndpointAliases(cfg *endpoints.Config) MemoryTrackingStoreOption {
	return func(s *MemoryTrackingStore) {
		s.endpoints = cfg
	}
}

// WithMemoryLogger overrides the default JSON logger.
func WithMemoryLogger(logger *slog.Logger) MemoryTrackingStoreOption {
	return func(s *MemoryTrackingStore) {
		s.logger = logger
	}
}

// NewMemoryTrackingStore creates an empty in-memory tracking store.
func NewMemoryTrackingStore(opts ...MemoryTrackingStoreOption) *MemoryTrackingStore {
	store := &MemoryTrackingStore{
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
		validator: tracking.NewValidator(),
		state:     newMemoryState(),
		seq:       make(map[string]int64),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func newMemoryState() *memoryState {
	return &memoryState{
		projects:    make(map[int64]*tracking.Project),
		specimens:   make(map[int64]*tracking.Specimen),
		samples:     make(map[int64]*tracking.Sample),
		experiments: make(map[int64]*tracking.Experiment),
		runs:        make(map[int64]*tracking.Run),
		readsets:    make(map[int64]*tracking.Readset),
		operations:  make(map[int64]*tracking.Operation),
		references:  make(map[int64]*tracking.Reference),
		configs:     make(map[int64]*tracking.OperationConfig),
		jobs:        make(map[int64]*tracking.Job),
		metrics:     make(map[int64]*tracking.Metric),
		files:       make(map[int64]*tracking.File),
		locations:   make(map[int64]*tracking.Location),

		readsetFiles:      make(map[idPair]struct{}),
		readsetJobs:       make(map[idPair]struct{}),
		readsetMetrics:    make(map[idPair]struct{}),
		readsetOperations: make(map[idPair]struct{}),
		jobFiles:          make(map[idPair]struct{}),
	}
}

func (st *memoryState) clone() *memoryState {
	cloned := newMemoryState()

	for id, p := range st.projects {
		cloned.projects[id] = cloneProject(p)
	}
	for id, s := range st.specimens {
		cloned.specimens[id] = cloneSpecimen(s)
	}
	for id, s := range st.samples {
		cloned.samples[id] = cloneSample(s)
	}
	for id, e := range st.experiments {
		cloned.experiments[id] = cloneExperiment(e)
	}
	for id, r := range st.runs {
		cloned.runs[id] = cloneRun(r)
	}
	for id, r := range st.readsets {
		cloned.readsets[id] = cloneReadset(r)
	}
	for id, o := range st.operations {
		cloned.operations[id] = cloneOperation(o)
	}
	for id, r := range st.references {
		cloned.references[id] = cloneReference(r)
	}
	for id, c := range st.configs {
		cloned.configs[id] = cloneOperationConfig(c)
	}
	for id, j := range st.jobs {
		cloned.jobs[id] = cloneJob(j)
	}
	for id, m := range st.metrics {
		cloned.metrics[id] = cloneMetric(m)
	}
	for id, f := range st.files {
		cloned.files[id] = cloneFile(f)
	}
	for id, l := range st.locations {
		cloned.locations[id] = cloneLocation(l)
	}

	for pair := range st.readsetFiles {
		cloned.readsetFiles[pair] = struct{}{}
	}
	for pair := range st.readsetJobs {
		cloned.readsetJobs[pair] = struct{}{}
	}
	for pair := range st.readsetMetrics {
		cloned.readsetMetrics[pair] = struct{}{}
	}
	for pair := range st.readsetOperations {
		cloned.readsetOperations[pair] = struct{}{}
	}
	for pair := range st.jobFiles {
		cloned.jobFiles[pair] = struct{}{}
	}

	return cloned
}

// Entity clones are shallow struct copies with the metadata maps duplicated.
// Pointer-typed scalar fields are never mutated through, so sharing them is
// safe; relation id slices are loader-computed and always rebuilt fresh.

func cloneProject(p *tracking.Project) *tracking.Project {
	c := *p
	c.Alias = p.Alias.Merge(nil)
	c.ExtraMetadata = p.ExtraMetadata.Merge(nil)
	c.SpecimenIDs = nil
	c.OperationIDs = nil
	return &c
}

func cloneSpecimen(s *tracking.Specimen) *tracking.Specimen {
	c := *s
	c.Alias = s.Alias.Merge(nil)
	c.ExtraMetadata = s.ExtraMetadata.Merge(nil)
	c.SampleIDs = nil
	return &c
}

func cloneSample(s *tracking.Sample) *tracking.Sample {
	c := *s
	c.Alias = s.Alias.Merge(nil)
	c.ExtraMetadata = s.ExtraMetadata.Merge(nil)
	c.ReadsetIDs = nil
	return &c
}

func cloneExperiment(e *tracking.Experiment) *tracking.Experiment {
	c := *e
	c.ExtraMetadata = e.ExtraMetadata.Merge(nil)
	c.ReadsetIDs = nil
	return &c
}

func cloneRun(r *tracking.Run) *tracking.Run {
	c := *r
	c.ExtraMetadata = r.ExtraMetadata.Merge(nil)
	c.ReadsetIDs = nil
	return &c
}

func cloneReadset(r *tracking.Readset) *tracking.Readset {
	c := *r
	c.Alias = r.Alias.Merge(nil)
	c.ExtraMetadata = r.ExtraMetadata.Merge(nil)
	c.FileIDs = nil
	c.OperationIDs = nil
	c.JobIDs = nil
	c.MetricIDs = nil
	return &c
}

func cloneOperation(o *tracking.Operation) *tracking.Operation {
	c := *o
	c.ExtraMetadata = o.ExtraMetadata.Merge(nil)
	c.JobIDs = nil
	c.ReadsetIDs = nil
	return &c
}

func cloneReference(r *tracking.Reference) *tracking.Reference {
	c := *r
	c.ExtraMetadata = r.ExtraMetadata.Merge(nil)
	c.OperationIDs = nil
	return &c
}

func cloneOperationConfig(cfg *tracking.OperationConfig) *tracking.OperationConfig {
	c := *cfg
	c.ExtraMetadata = cfg.ExtraMetadata.Merge(nil)
	c.Data = append([]byte(nil), cfg.Data...)
	c.OperationIDs = nil
	return &c
}

func cloneJob(j *tracking.Job) *tracking.Job {
	c := *j
	c.ExtraMetadata = j.ExtraMetadata.Merge(nil)
	c.MetricIDs = nil
	c.FileIDs = nil
	c.ReadsetIDs = nil
	return &c
}

func cloneMetric(m *tracking.Metric) *tracking.Metric {
	c := *m
	c.ExtraMetadata = m.ExtraMetadata.Merge(nil)
	c.ReadsetIDs = nil
	return &c
}

func cloneFile(f *tracking.File) *tracking.File {
	c := *f
	c.ExtraMetadata = f.ExtraMetadata.Merge(nil)
	c.Locations = nil
	c.ReadsetIDs = nil
	c.JobIDs = nil
	return &c
}

func cloneLocation(l *tracking.Location) *tracking.Location {
	c := *l
	c.ExtraMetadata = l.ExtraMetadata.Merge(nil)
	return &c
}

// Begin opens a scope on a snapshot of the current state.
func (s *MemoryTrackingStore) Begin(_ context.Context) (tracking.Scope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	return &MemoryScope{store: s, state: s.state.clone()}, nil
}

// WithScope opens a scope, runs fn, commits on nil error and rolls back
// otherwise (including on panic).
func (s *MemoryTrackingStore) WithScope(ctx context.Context, fn func(tracking.Scope) error) error {
	scope, err := s.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = scope.Rollback()
			panic(r)
		}
	}()

	if err := fn(scope); err != nil {
		if rbErr := scope.Rollback(); rbErr != nil && !errors.Is(rbErr, ErrScopeDone) {
			s.logger.Error("scope rollback failed", "error", rbErr)
		}

		return err
	}

	return scope.Commit()
}

// DefaultScope returns the lazily created process-default scope.
func (s *MemoryTrackingStore) DefaultScope(_ context.Context) (tracking.Scope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if s.defaultScope == nil || s.defaultScope.done {
		s.defaultScope = &MemoryScope{store: s, state: s.state.clone()}
	}

	return s.defaultScope, nil
}

// Close rolls back a still-open default scope and marks the store closed.
func (s *MemoryTrackingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	if s.defaultScope != nil && !s.defaultScope.done {
		s.defaultScope.done = true
		s.defaultScope = nil
	}

	return nil
}

// nextID allocates the next id for a table. Ids are store-global like a
// database sequence: a rolled-back scope does not hand its ids back.
func (s *MemoryTrackingStore) nextID(table string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq[table]++

	return s.seq[table]
}

// Commit publishes the scope's snapshot as the store state. Natural keys
// are checked against the currently published state first, so two scopes
// that each created the same name fail the way the SQL unique constraints
// would; a failed commit leaves the scope done, like a rolled-back
// transaction.
func (s *MemoryScope) Commit() error {
	if s.done {
		return ErrScopeDone
	}

	s.done = true

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if err := s.state.checkUniqueAgainst(s.store.state); err != nil {
		return err
	}

	s.store.state = s.state

	return nil
}

// Rollback discards the scope's snapshot.
func (s *MemoryScope) Rollback() error {
	if s.done {
		return ErrScopeDone
	}

	s.done = true

	return nil
}

// Conflicts returns a copy of the ownership conflicts recorded so far.
func (s *MemoryScope) Conflicts() []*tracking.OwnershipConflict {
	out := make([]*tracking.OwnershipConflict, len(s.conflicts))
	copy(out, s.conflicts)

	return out
}

func (s *MemoryScope) recordConflict(conflict *tracking.OwnershipConflict) {
	s.conflicts = append(s.conflicts, conflict)
	s.store.logger.Error("ownership conflict",
		"table", conflict.Table,
		"name", conflict.Name,
		"parent_table", conflict.ParentTable,
		"existing_parent_id", conflict.ExistingParentID,
		"requested_parent_id", conflict.RequestedParentID,
	)
}

func (s *MemoryScope) guard() error {
	if s.done {
		return ErrScopeDone
	}

	return nil
}

// checkUniqueAgainst compares this snapshot's natural keys with the published
// state. A key held there by a different id means another scope created it
// after this snapshot was taken, which the SQL schema would reject at insert.
func (st *memoryState) checkUniqueAgainst(published *memoryState) error {
	switch {
	case duplicateKey(st.projects, published.projects,
		func(p *tracking.Project) (string, bool) { return p.Name, true }):
		return uniqueViolation(tracking.TableProject, "project_name_key")
	case duplicateKey(st.specimens, published.specimens,
		func(sp *tracking.Specimen) (string, bool) { return sp.Name, true }):
		return uniqueViolation(tracking.TableSpecimen, "specimen_name_key")
	case duplicateKey(st.samples, published.samples,
		func(sm *tracking.Sample) (string, bool) { return sm.Name, true }):
		return uniqueViolation(tracking.TableSample, "sample_name_key")
	case duplicateKey(st.readsets, published.readsets,
		func(r *tracking.Readset) (string, bool) { return r.Name, true }):
		return uniqueViolation(tracking.TableReadset, "readset_name_key")
	case duplicateKey(st.configs, published.configs,
		func(c *tracking.OperationConfig) (string, bool) {
			if c.MD5Sum == nil {
				return "", false
			}

			return *c.MD5Sum, true
		}):
		return uniqueViolation(tracking.TableOperationConfig, "operation_config_md5sum_key")
	case duplicateKey(st.locations, published.locations,
		func(l *tracking.Location) (string, bool) { return l.URI, true }):
		return uniqueViolation(tracking.TableLocation, "location_uri_key")
	}

	return nil
}

// duplicateKey reports whether a key in mine is held by a different id in
// published. Rows whose key function reports no key are skipped.
func duplicateKey[T any](mine, published map[int64]*T, key func(*T) (string, bool)) bool {
	keys := make(map[string]int64, len(published))

	for id, row := range published {
		if k, ok := key(row); ok {
			keys[k] = id
		}
	}

	for id, row := range mine {
		k, ok := key(row)
		if !ok {
			continue
		}

		if otherID, exists := keys[k]; exists && otherID != id {
			return true
		}
	}

	return false
}

func uniqueViolation(table, constraint string) error {
	return &tracking.ConstraintViolation{
		Table:      table,
		Constraint: constraint,
		Err:        fmt.Errorf("duplicate value: %w", tracking.ErrConstraintViolation),
	}
}

func foreignKeyViolation(table, constraint string) error {
	return &tracking.ConstraintViolation{
		Table:      table,
		Constraint: constraint,
		Err:        fmt.Errorf("referenced row missing: %w", tracking.ErrConstraintViolation),
	}
}

// Resolution.

// GetOrCreateProject resolves a project by its unique name.
func (s *MemoryScope) GetOrCreateProject(_ context.Context, name string, alias tracking.Metadata) (*tracking.Project, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	for _, p := range s.state.projects {
		if p.Name == name && !p.Deleted {
			return cloneProject(p), nil
		}
	}

	project := &tracking.Project{Name: name, Alias: alias}
	if err := s.store.validator.ValidateProject(project); err != nil {
		return nil, err
	}

	project.ID = s.store.nextID(tracking.TableProject)
	project.Creation = time.Now().UTC()
	s.state.projects[project.ID] = cloneProject(project)

	return project, nil
}

// GetOrCreateSpecimen resolves a specimen by its unique name, recording an
// ownership conflict on a project mismatch.
func (s *MemoryScope) GetOrCreateSpecimen(
	_ context.Context,
	name string,
	project *tracking.Project,
	cohort, institution *string,
) (*tracking.Specimen, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	if project == nil {
		return nil, &tracking.ValidationError{Table: tracking.TableSpecimen, Field: "project_id", Err: tracking.ErrMissingParent}
	}

	for _, sp := range s.state.specimens {
		if sp.Name != name || sp.Deleted {
			continue
		}

		if sp.ProjectID != project.ID {
			s.recordConflict(&tracking.OwnershipConflict{
				Table:             tracking.TableSpecimen,
				Name:              name,
				ParentTable:       tracking.TableProject,
				ExistingParentID:  sp.ProjectID,
				RequestedParentID: project.ID,
			})
		}

		return cloneSpecimen(sp), nil
	}

	if _, ok := s.state.projects[project.ID]; !ok {
		return nil, foreignKeyViolation(tracking.TableSpecimen, "specimen_project_id_fkey")
	}

	specimen := &tracking.Specimen{
		ProjectID:   project.ID,
		Name:        name,
		Cohort:      cohort,
		Institution: institution,
	}

	if err := s.store.validator.ValidateSpecimen(specimen); err != nil {
		return nil, err
	}

	specimen.ID = s.store.nextID(tracking.TableSpecimen)
	specimen.Creation = time.Now().UTC()
	s.state.specimens[specimen.ID] = cloneSpecimen(specimen)

	return specimen, nil
}

// GetOrCreateSample resolves a sample by its unique name, recording an
// ownership conflict on a specimen mismatch.
func (s *MemoryScope) GetOrCreateSample(
	_ context.Context,
	name string,
	specimen *tracking.Specimen,
	tumour bool,
) (*tracking.Sample, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	if specimen == nil {
		return nil, &tracking.ValidationError{Table: tracking.TableSample, Field: "specimen_id", Err: tracking.ErrMissingParent}
	}

	for _, sm := range s.state.samples {
		if sm.Name != name || sm.Deleted {
			continue
		}

		if sm.SpecimenID != specimen.ID {
			s.recordConflict(&tracking.OwnershipConflict{
				Table:             tracking.TableSample,
				Name:              name,
				ParentTable:       tracking.TableSpecimen,
				ExistingParentID:  sm.SpecimenID,
				RequestedParentID: specimen.ID,
			})
		}

		return cloneSample(sm), nil
	}

	if _, ok := s.state.specimens[specimen.ID]; !ok {
		return nil, foreignKeyViolation(tracking.TableSample, "sample_specimen_id_fkey")
	}

	sample := &tracking.Sample{SpecimenID: specimen.ID, Name: name, Tumour: tumour}
	if err := s.store.validator.ValidateSample(sample); err != nil {
		return nil, err
	}

	sample.ID = s.store.nextID(tracking.TableSample)
	sample.Creation = time.Now().UTC()
	s.state.samples[sample.ID] = cloneSample(sample)

	return sample, nil
}

// GetOrCreateReadset resolves a readset by its unique name, recording an
// ownership conflict on a sample mismatch.
func (s *MemoryScope) GetOrCreateReadset(
	_ context.Context,
	attrs tracking.ReadsetAttributes,
	sample *tracking.Sample,
	experiment *tracking.Experiment,
	run *tracking.Run,
) (*tracking.Readset, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	if sample == nil {
		return nil, &tracking.ValidationError{Table: tracking.TableReadset, Field: "sample_id", Err: tracking.ErrMissingParent}
	}

	if experiment == nil {
		return nil, &tracking.ValidationError{Table: tracking.TableReadset, Field: "experiment_id", Err: tracking.ErrMissingParent}
	}

	if run == nil {
		return nil, &tracking.ValidationError{Table: tracking.TableReadset, Field: "run_id", Err: tracking.ErrMissingParent}
	}

	for _, rs := range s.state.readsets {
		if rs.Name != attrs.Name || rs.Deleted {
			continue
		}

		if rs.SampleID != sample.ID {
			s.recordConflict(&tracking.OwnershipConflict{
				Table:             tracking.TableReadset,
				Name:              attrs.Name,
				ParentTable:       tracking.TableSample,
				ExistingParentID:  rs.SampleID,
				RequestedParentID: sample.ID,
			})
		}

		return cloneReadset(rs), nil
	}

	if _, ok := s.state.samples[sample.ID]; !ok {
		return nil, foreignKeyViolation(tracking.TableReadset, "readset_sample_id_fkey")
	}

	if _, ok := s.state.experiments[experiment.ID]; !ok {
		return nil, foreignKeyViolation(tracking.TableReadset, "readset_experiment_id_fkey")
	}

	if _, ok := s.state.runs[run.ID]; !ok {
		return nil, foreignKeyViolation(tracking.TableReadset, "readset_run_id_fkey")
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

	if err := s.store.validator.ValidateReadset(readset); err != nil {
		return nil, err
	}

	readset.ID = s.store.nextID(tracking.TableReadset)
	readset.Creation = time.Now().UTC()
	s.state.readsets[readset.ID] = cloneReadset(readset)

	return readset, nil
}

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

func equalIntPtr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}

	return a.Equal(*b)
}

// GetOrCreateExperiment resolves an experiment by its full attribute tuple;
// nil attributes match stored nils.
func (s *MemoryScope) GetOrCreateExperiment(_ context.Context, attrs tracking.ExperimentAttributes) (*tracking.Experiment, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	experiment := &tracking.Experiment{
		SequencingTechnology: attrs.SequencingTechnology,
		Type:                 attrs.Type,
		NucleicAcidType:      attrs.NucleicAcidType,
		LibraryKit:           attrs.LibraryKit,
		KitExpirationDate:    attrs.KitExpirationDate,
	}

	if err := s.store.validator.ValidateExperiment(experiment); err != nil {
		return nil, err
	}

	var match *tracking.Experiment

	for _, e := range s.state.experiments {
		if e.Deleted ||
			!equalStrPtr(e.SequencingTechnology, attrs.SequencingTechnology) ||
			!equalStrPtr(e.Type, attrs.Type) ||
			e.NucleicAcidType != attrs.NucleicAcidType ||
			!equalStrPtr(e.LibraryKit, attrs.LibraryKit) ||
			!equalTimePtr(e.KitExpirationDate, attrs.KitExpirationDate) {
			continue
		}

		if match == nil || e.ID < match.ID {
			match = e
		}
	}

	if match != nil {
		return cloneExperiment(match), nil
	}

	experiment.ID = s.store.nextID(tracking.TableExperiment)
	experiment.Creation = time.Now().UTC()
	s.state.experiments[experiment.ID] = cloneExperiment(experiment)

	return experiment, nil
}

// GetOrCreateRun resolves a run by its full attribute tuple including the
// external linkage.
func (s *MemoryScope) GetOrCreateRun(_ context.Context, attrs tracking.RunAttributes) (*tracking.Run, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	var match *tracking.Run

	for _, r := range s.state.runs {
		if r.Deleted ||
			!equalIntPtr(r.ExtID, attrs.ExtID) ||
			!equalStrPtr(r.ExtSrc, attrs.ExtSrc) ||
			!equalStrPtr(r.Name, attrs.Name) ||
			!equalStrPtr(r.Instrument, attrs.Instrument) ||
			!equalTimePtr(r.Date, attrs.Date) {
			continue
		}

		if match == nil || r.ID < match.ID {
			match = r
		}
	}

	if match != nil {
		return cloneRun(match), nil
	}

	run := &tracking.Run{
		Name:       attrs.Name,
		Instrument: attrs.Instrument,
		Date:       attrs.Date,
	}
	run.ExtID = attrs.ExtID
	run.ExtSrc = attrs.ExtSrc

	run.ID = s.store.nextID(tracking.TableRun)
	run.Creation = time.Now().UTC()
	s.state.runs[run.ID] = cloneRun(run)

	return run, nil
}

// GetOrCreateOperationConfig resolves an operation config by its attribute
// tuple including the content hash.
func (s *MemoryScope) GetOrCreateOperationConfig(
	_ context.Context,
	attrs tracking.OperationConfigAttributes,
) (*tracking.OperationConfig, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	var match *tracking.OperationConfig

	for _, c := range s.state.configs {
		if c.Deleted ||
			!equalStrPtr(c.Name, attrs.Name) ||
			!equalStrPtr(c.Version, attrs.Version) ||
			!equalStrPtr(c.MD5Sum, attrs.MD5Sum) ||
			string(c.Data) != string(attrs.Data) {
			continue
		}

		if match == nil || c.ID < match.ID {
			match = c
		}
	}

	if match != nil {
		return cloneOperationConfig(match), nil
	}

	cfg := &tracking.OperationConfig{
		Name:    attrs.Name,
		Version: attrs.Version,
		MD5Sum:  attrs.MD5Sum,
		Data:    attrs.Data,
	}

	cfg.ID = s.store.nextID(tracking.TableOperationConfig)
	cfg.Creation = time.Now().UTC()
	s.state.configs[cfg.ID] = cloneOperationConfig(cfg)

	return cfg, nil
}

// GetOrCreateLocation resolves a location by its unique uri, deriving the
// endpoint from the uri scheme when none is supplied.
func (s *MemoryScope) GetOrCreateLocation(
	_ context.Context,
	uri string,
	file *tracking.File,
	endpoint string,
) (*tracking.Location, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	for _, l := range s.state.locations {
		if l.URI == uri && !l.Deleted {
			return cloneLocation(l), nil
		}
	}

	if file == nil {
		return nil, &tracking.ValidationError{Table: tracking.TableLocation, Field: "file_id", Err: tracking.ErrMissingParent}
	}

	if _, ok := s.state.files[file.ID]; !ok {
		return nil, foreignKeyViolation(tracking.TableLocation, "location_file_id_fkey")
	}

	if endpoint == "" {
		derived, err := endpoints.Derive(uri)
		if err != nil {
			return nil, &tracking.ValidationError{Table: tracking.TableLocation, Field: "endpoint", Err: err}
		}

		endpoint = s.store.endpoints.Resolve(derived)
	}

	location := &tracking.Location{
		FileID:   file.ID,
		URI:      uri,
		Endpoint: endpoint,
	}

	if err := s.store.validator.ValidateLocation(location); err != nil {
		return nil, err
	}

	location.ID = s.store.nextID(tracking.TableLocation)
	location.Creation = time.Now().UTC()
	s.state.locations[location.ID] = cloneLocation(location)

	return location, nil
}

// Creation.

// CreateReference inserts a reference, filling the envelope.
func (s *MemoryScope) CreateReference(_ context.Context, reference *tracking.Reference) error {
	if err := s.guard(); err != nil {
		return err
	}

	if reference == nil {
		return tracking.ErrNilEntity
	}

	reference.ID = s.store.nextID(tracking.TableReference)
	reference.Creation = time.Now().UTC()
	s.state.references[reference.ID] = cloneReference(reference)

	return nil
}

// CreateOperation validates and inserts an operation. Status defaults to
// PENDING when unset.
func (s *MemoryScope) CreateOperation(_ context.Context, operation *tracking.Operation) error {
	if err := s.guard(); err != nil {
		return err
	}

	if operation == nil {
		return tracking.ErrNilEntity
	}

	if operation.Status == "" {
		operation.Status = tracking.StatusPending
	}

	if err := s.store.validator.ValidateOperation(operation); err != nil {
		return err
	}

	if _, ok := s.state.projects[operation.ProjectID]; !ok {
		return foreignKeyViolation(tracking.TableOperation, "operation_project_id_fkey")
	}

	if operation.OperationConfigID != nil {
		if _, ok := s.state.configs[*operation.OperationConfigID]; !ok {
			return foreignKeyViolation(tracking.TableOperation, "operation_operation_config_id_fkey")
		}
	}

	if operation.ReferenceID != nil {
		if _, ok := s.state.references[*operation.ReferenceID]; !ok {
			return foreignKeyViolation(tracking.TableOperation, "operation_reference_id_fkey")
		}
	}

	operation.ID = s.store.nextID(tracking.TableOperation)
	operation.Creation = time.Now().UTC()
	s.state.operations[operation.ID] = cloneOperation(operation)

	return nil
}

// CreateJob validates and inserts a job.
func (s *MemoryScope) CreateJob(_ context.Context, job *tracking.Job) error {
	if err := s.guard(); err != nil {
		return err
	}

	if job == nil {
		return tracking.ErrNilEntity
	}

	if err := s.store.validator.ValidateJob(job); err != nil {
		return err
	}

	if _, ok := s.state.operations[job.OperationID]; !ok {
		return foreignKeyViolation(tracking.TableJob, "job_operation_id_fkey")
	}

	job.ID = s.store.nextID(tracking.TableJob)
	job.Creation = time.Now().UTC()
	s.state.jobs[job.ID] = cloneJob(job)

	return nil
}

// CreateMetric validates and inserts a metric.
func (s *MemoryScope) CreateMetric(_ context.Context, metric *tracking.Metric) error {
	if err := s.guard(); err != nil {
		return err
	}

	if metric == nil {
		return tracking.ErrNilEntity
	}

	if err := s.store.validator.ValidateMetric(metric); err != nil {
		return err
	}

	if _, ok := s.state.jobs[metric.JobID]; !ok {
		return foreignKeyViolation(tracking.TableMetric, "metric_job_id_fkey")
	}

	metric.ID = s.store.nextID(tracking.TableMetric)
	metric.Creation = time.Now().UTC()
	s.state.metrics[metric.ID] = cloneMetric(metric)

	return nil
}

// CreateFile validates and inserts a file.
func (s *MemoryScope) CreateFile(_ context.Context, file *tracking.File) error {
	if err := s.guard(); err != nil {
		return err
	}

	if file == nil {
		return tracking.ErrNilEntity
	}

	if err := s.store.validator.ValidateFile(file); err != nil {
		return err
	}

	file.ID = s.store.nextID(tracking.TableFile)
	file.Creation = time.Now().UTC()
	s.state.files[file.ID] = cloneFile(file)

	return nil
}

// Links.

func (s *MemoryScope) linkPair(set map[idPair]struct{}, table string, first, second int64, firstOK, secondOK bool) error {
	if err := s.guard(); err != nil {
		return err
	}

	if !firstOK || !secondOK {
		return foreignKeyViolation(table, table+"_fkey")
	}

	set[idPair{first, second}] = struct{}{}

	return nil
}

// LinkReadsetFile associates a readset with a file. Idempotent.
func (s *MemoryScope) LinkReadsetFile(_ context.Context, readsetID, fileID int64) error {
	_, rsOK := s.state.readsets[readsetID]
	_, fOK := s.state.files[fileID]

	return s.linkPair(s.state.readsetFiles, "readset_file", readsetID, fileID, rsOK, fOK)
}

// LinkReadsetJob associates a readset with a job. Idempotent.
func (s *MemoryScope) LinkReadsetJob(_ context.Context, readsetID, jobID int64) error {
	_, rsOK := s.state.readsets[readsetID]
	_, jOK := s.state.jobs[jobID]

	return s.linkPair(s.state.readsetJobs, "readset_job", readsetID, jobID, rsOK, jOK)
}

// LinkReadsetMetric associates a readset with a metric. Idempotent.
func (s *MemoryScope) LinkReadsetMetric(_ context.Context, readsetID, metricID int64) error {
	_, rsOK := s.state.readsets[readsetID]
	_, mOK := s.state.metrics[metricID]

	return s.linkPair(s.state.readsetMetrics, "readset_metric", readsetID, metricID, rsOK, mOK)
}

// LinkReadsetOperation associates a readset with an operation. Idempotent.
func (s *MemoryScope) LinkReadsetOperation(_ context.Context, readsetID, operationID int64) error {
	_, rsOK := s.state.readsets[readsetID]
	_, oOK := s.state.operations[operationID]

	return s.linkPair(s.state.readsetOperations, "readset_operation", readsetID, operationID, rsOK, oOK)
}

// LinkJobFile associates a job with a file. Idempotent.
func (s *MemoryScope) LinkJobFile(_ context.Context, jobID, fileID int64) error {
	_, jOK := s.state.jobs[jobID]
	_, fOK := s.state.files[fileID]

	return s.linkPair(s.state.jobFiles, "job_file", jobID, fileID, jOK, fOK)
}

// Loaders.

func sortedIDs(ids []int64) []int64 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// GetProject returns a live project with its relation ids populated.
func (s *MemoryScope) GetProject(_ context.Context, id int64) (*tracking.Project, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	p, ok := s.state.projects[id]
	if !ok || p.Deleted {
		return nil, tracking.ErrNotFound
	}

	return s.projectWithRelations(p), nil
}

// GetProjectByName returns a live project by its unique name.
func (s *MemoryScope) GetProjectByName(_ context.Context, name string) (*tracking.Project, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	for _, p := range s.state.projects {
		if p.Name == name && !p.Deleted {
			return s.projectWithRelations(p), nil
		}
	}

	return nil, tracking.ErrNotFound
}

func (s *MemoryScope) projectWithRelations(p *tracking.Project) *tracking.Project {
	out := cloneProject(p)

	for _, sp := range s.state.specimens {
		if sp.ProjectID == p.ID && !sp.Deleted {
			out.SpecimenIDs = append(out.SpecimenIDs, sp.ID)
		}
	}

	for _, o := range s.state.operations {
		if o.ProjectID == p.ID && !o.Deleted {
			out.OperationIDs = append(out.OperationIDs, o.ID)
		}
	}

	out.SpecimenIDs = sortedIDs(out.SpecimenIDs)
	out.OperationIDs = sortedIDs(out.OperationIDs)

	return out
}

// GetSpecimen returns a live specimen with its sample ids populated.
func (s *MemoryScope) GetSpecimen(_ context.Context, id int64) (*tracking.Specimen, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	sp, ok := s.state.specimens[id]
	if !ok || sp.Deleted {
		return nil, tracking.ErrNotFound
	}

	out := cloneSpecimen(sp)

	for _, sm := range s.state.samples {
		if sm.SpecimenID == id && !sm.Deleted {
			out.SampleIDs = append(out.SampleIDs, sm.ID)
		}
	}

	out.SampleIDs = sortedIDs(out.SampleIDs)

	return out, nil
}

// GetSample returns a live sample with its readset ids populated.
func (s *MemoryScope) GetSample(_ context.Context, id int64) (*tracking.Sample, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	sm, ok := s.state.samples[id]
	if !ok || sm.Deleted {
		return nil, tracking.ErrNotFound
	}

	out := cloneSample(sm)

	for _, rs := range s.state.readsets {
		if rs.SampleID == id && !rs.Deleted {
			out.ReadsetIDs = append(out.ReadsetIDs, rs.ID)
		}
	}

	out.ReadsetIDs = sortedIDs(out.ReadsetIDs)

	return out, nil
}

// GetExperiment returns a live experiment with its readset ids populated.
func (s *MemoryScope) GetExperiment(_ context.Context, id int64) (*tracking.Experiment, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	e, ok := s.state.experiments[id]
	if !ok || e.Deleted {
		return nil, tracking.ErrNotFound
	}

	out := cloneExperiment(e)

	for _, rs := range s.state.readsets {
		if rs.ExperimentID == id && !rs.Deleted {
			out.ReadsetIDs = append(out.ReadsetIDs, rs.ID)
		}
	}

	out.ReadsetIDs = sortedIDs(out.ReadsetIDs)

	return out, nil
}

// GetRun returns a live run with its readset ids populated.
func (s *MemoryScope) GetRun(_ context.Context, id int64) (*tracking.Run, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	r, ok := s.state.runs[id]
	if !ok || r.Deleted {
		return nil, tracking.ErrNotFound
	}

	out := cloneRun(r)

	for _, rs := range s.state.readsets {
		if rs.RunID == id && !rs.Deleted {
			out.ReadsetIDs = append(out.ReadsetIDs, rs.ID)
		}
	}

	out.ReadsetIDs = sortedIDs(out.ReadsetIDs)

	return out, nil
}

// GetReadset returns a live readset with its relation ids populated.
func (s *MemoryScope) GetReadset(_ context.Context, id int64) (*tracking.Readset, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	rs, ok := s.state.readsets[id]
	if !ok || rs.Deleted {
		return nil, tracking.ErrNotFound
	}

	return s.readsetWithRelations(rs), nil
}

// GetReadsetByName returns a live readset by its unique name.
func (s *MemoryScope) GetReadsetByName(_ context.Context, name string) (*tracking.Readset, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	for _, rs := range s.state.readsets {
		if rs.Name == name && !rs.Deleted {
			return s.readsetWithRelations(rs), nil
		}
	}

	return nil, tracking.ErrNotFound
}

func (s *MemoryScope) readsetWithRelations(rs *tracking.Readset) *tracking.Readset {
	out := cloneReadset(rs)

	for pair := range s.state.readsetFiles {
		if pair.first == rs.ID && s.liveFile(pair.second) {
			out.FileIDs = append(out.FileIDs, pair.second)
		}
	}

	for pair := range s.state.readsetOperations {
		if pair.first == rs.ID && s.liveOperation(pair.second) {
			out.OperationIDs = append(out.OperationIDs, pair.second)
		}
	}

	for pair := range s.state.readsetJobs {
		if pair.first == rs.ID && s.liveJob(pair.second) {
			out.JobIDs = append(out.JobIDs, pair.second)
		}
	}

	for pair := range s.state.readsetMetrics {
		if pair.first == rs.ID && s.liveMetric(pair.second) {
			out.MetricIDs = append(out.MetricIDs, pair.second)
		}
	}

	out.FileIDs = sortedIDs(out.FileIDs)
	out.OperationIDs = sortedIDs(out.OperationIDs)
	out.JobIDs = sortedIDs(out.JobIDs)
	out.MetricIDs = sortedIDs(out.MetricIDs)

	return out
}

func (s *MemoryScope) liveFile(id int64) bool {
	f, ok := s.state.files[id]
	return ok && !f.Deleted
}

func (s *MemoryScope) liveJob(id int64) bool {
	j, ok := s.state.jobs[id]
	return ok && !j.Deleted
}

func (s *MemoryScope) liveMetric(id int64) bool {
	m, ok := s.state.metrics[id]
	return ok && !m.Deleted
}

func (s *MemoryScope) liveOperation(id int64) bool {
	o, ok := s.state.operations[id]
	return ok && !o.Deleted
}

func (s *MemoryScope) liveReadset(id int64) bool {
	rs, ok := s.state.readsets[id]
	return ok && !rs.Deleted
}

// GetOperation returns a live operation with its relation ids populated.
func (s *MemoryScope) GetOperation(_ context.Context, id int64) (*tracking.Operation, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	o, ok := s.state.operations[id]
	if !ok || o.Deleted {
		return nil, tracking.ErrNotFound
	}

	out := cloneOperation(o)

	for _, j := range s.state.jobs {
		if j.OperationID == id && !j.Deleted {
			out.JobIDs = append(out.JobIDs, j.ID)
		}
	}

	for pair := range s.state.readsetOperations {
		if pair.second == id && s.liveReadset(pair.first) {
			out.ReadsetIDs = append(out.ReadsetIDs, pair.first)
		}
	}

	out.JobIDs = sortedIDs(out.JobIDs)
	out.ReadsetIDs = sortedIDs(out.ReadsetIDs)

	return out, nil
}

// GetReference returns a live reference with its operation ids populated.
func (s *MemoryScope) GetReference(_ context.Context, id int64) (*tracking.Reference, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	r, ok := s.state.references[id]
	if !ok || r.Deleted {
		return nil, tracking.ErrNotFound
	}

	out := cloneReference(r)

	for _, o := range s.state.operations {
		if o.ReferenceID != nil && *o.ReferenceID == id && !o.Deleted {
			out.OperationIDs = append(out.OperationIDs, o.ID)
		}
	}

	out.OperationIDs = sortedIDs(out.OperationIDs)

	return out, nil
}

// GetOperationConfig returns a live operation config with its operation ids
// populated.
func (s *MemoryScope) GetOperationConfig(_ context.Context, id int64) (*tracking.OperationConfig, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	c, ok := s.state.configs[id]
	if !ok || c.Deleted {
		return nil, tracking.ErrNotFound
	}

	out := cloneOperationConfig(c)

	for _, o := range s.state.operations {
		if o.OperationConfigID != nil && *o.OperationConfigID == id && !o.Deleted {
			out.OperationIDs = append(out.OperationIDs, o.ID)
		}
	}

	out.OperationIDs = sortedIDs(out.OperationIDs)

	return out, nil
}

// GetJob returns a live job with its relation ids populated.
func (s *MemoryScope) GetJob(_ context.Context, id int64) (*tracking.Job, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	j, ok := s.state.jobs[id]
	if !ok || j.Deleted {
		return nil, tracking.ErrNotFound
	}

	out := cloneJob(j)

	for _, m := range s.state.metrics {
		if m.JobID == id && !m.Deleted {
			out.MetricIDs = append(out.MetricIDs, m.ID)
		}
	}

	for pair := range s.state.jobFiles {
		if pair.first == id && s.liveFile(pair.second) {
			out.FileIDs = append(out.FileIDs, pair.second)
		}
	}

	for pair := range s.state.readsetJobs {
		if pair.second == id && s.liveReadset(pair.first) {
			out.ReadsetIDs = append(out.ReadsetIDs, pair.first)
		}
	}

	out.MetricIDs = sortedIDs(out.MetricIDs)
	out.FileIDs = sortedIDs(out.FileIDs)
	out.ReadsetIDs = sortedIDs(out.ReadsetIDs)

	return out, nil
}

// GetMetric returns a live metric with its readset ids populated.
func (s *MemoryScope) GetMetric(_ context.Context, id int64) (*tracking.Metric, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	m, ok := s.state.metrics[id]
	if !ok || m.Deleted {
		return nil, tracking.ErrNotFound
	}

	out := cloneMetric(m)

	for pair := range s.state.readsetMetrics {
		if pair.second == id && s.liveReadset(pair.first) {
			out.ReadsetIDs = append(out.ReadsetIDs, pair.first)
		}
	}

	out.ReadsetIDs = sortedIDs(out.ReadsetIDs)

	return out, nil
}

// GetFile returns a live file with its locations nested and relation ids
// populated.
func (s *MemoryScope) GetFile(_ context.Context, id int64) (*tracking.File, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	f, ok := s.state.files[id]
	if !ok || f.Deleted {
		return nil, tracking.ErrNotFound
	}

	out := cloneFile(f)

	for _, l := range s.state.locations {
		if l.FileID == id && !l.Deleted {
			out.Locations = append(out.Locations, cloneLocation(l))
		}
	}

	sort.Slice(out.Locations, func(i, j int) bool { return out.Locations[i].ID < out.Locations[j].ID })

	for pair := range s.state.readsetFiles {
		if pair.second == id && s.liveReadset(pair.first) {
			out.ReadsetIDs = append(out.ReadsetIDs, pair.first)
		}
	}

	for pair := range s.state.jobFiles {
		if pair.second == id && s.liveJob(pair.first) {
			out.JobIDs = append(out.JobIDs, pair.first)
		}
	}

	out.ReadsetIDs = sortedIDs(out.ReadsetIDs)
	out.JobIDs = sortedIDs(out.JobIDs)

	return out, nil
}

// GetLocation returns a live location.
func (s *MemoryScope) GetLocation(_ context.Context, id int64) (*tracking.Location, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	l, ok := s.state.locations[id]
	if !ok || l.Deleted {
		return nil, tracking.ErrNotFound
	}

	return cloneLocation(l), nil
}

// GetLocationByURI returns a live location by its unique uri.
func (s *MemoryScope) GetLocationByURI(_ context.Context, uri string) (*tracking.Location, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	for _, l := range s.state.locations {
		if l.URI == uri && !l.Deleted {
			return cloneLocation(l), nil
		}
	}

	return nil, tracking.ErrNotFound
}

// Deletes. Each cascades along ownership edges only; join rows referencing a
// deleted endpoint are dropped without touching the other side.

// DeleteProject removes a project and everything it owns.
func (s *MemoryScope) DeleteProject(_ context.Context, id int64) error {
	if err := s.guard(); err != nil {
		return err
	}

	if _, ok := s.state.projects[id]; !ok {
		return tracking.ErrNotFound
	}

	for spID, sp := range s.state.specimens {
		if sp.ProjectID == id {
			s.cascadeSpecimen(spID)
		}
	}

	for oID, o := range s.state.operations {
		if o.ProjectID == id {
			s.cascadeOperation(oID)
		}
	}

	delete(s.state.projects, id)

	return nil
}

// DeleteSpecimen removes a specimen and everything it owns.
func (s *MemoryScope) DeleteSpecimen(_ context.Context, id int64) error {
	if err := s.guard(); err != nil {
		return err
	}

	if _, ok := s.state.specimens[id]; !ok {
		return tracking.ErrNotFound
	}

	s.cascadeSpecimen(id)

	return nil
}

// DeleteSample removes a sample and its readsets.
func (s *MemoryScope) DeleteSample(_ context.Context, id int64) error {
	if err := s.guard(); err != nil {
		return err
	}

	if _, ok := s.state.samples[id]; !ok {
		return tracking.ErrNotFound
	}

	s.cascadeSample(id)

	return nil
}

// DeleteExperiment removes an experiment and its readsets.
func (s *MemoryScope) DeleteExperiment(_ context.Context, id int64) error {
	if err := s.guard(); err != nil {
		return err
	}

	if _, ok := s.state.experiments[id]; !ok {
		return tracking.ErrNotFound
	}

	for rsID, rs := range s.state.readsets {
		if rs.ExperimentID == id {
			s.cascadeReadset(rsID)
		}
	}

	delete(s.state.experiments, id)

	return nil
}

// DeleteRun removes a run and its readsets.
func (s *MemoryScope) DeleteRun(_ context.Context, id int64) error {
	if err := s.guard(); err != nil {
		return err
	}

	if _, ok := s.state.runs[id]; !ok {
		return tracking.ErrNotFound
	}

	for rsID, rs := range s.state.readsets {
		if rs.RunID == id {
			s.cascadeReadset(rsID)
		}
	}

	delete(s.state.runs, id)

	return nil
}

// DeleteReadset removes a readset; linked files, jobs, metrics and operations
// are unlinked, not deleted.
func (s *MemoryScope) DeleteReadset(_ context.Context, id int64) error {
	if err := s.guard(); err != nil {
		return err
	}

	if _, ok := s.state.readsets[id]; !ok {
		return tracking.ErrNotFound
	}

	s.cascadeReadset(id)

	return nil
}

// DeleteOperation removes an operation and its jobs.
func (s *MemoryScope) DeleteOperation(_ context.Context, id int64) error {
	if err := s.guard(); err != nil {
		return err
	}

	if _, ok := s.state.operations[id]; !ok {
		return tracking.ErrNotFound
	}

	s.cascadeOperation(id)

	return nil
}

// DeleteReference removes a reference and the operations that ran against it.
func (s *MemoryScope) DeleteReference(_ context.Context, id int64) error {
	if err := s.guard(); err != nil {
		return err
	}

	if _, ok := s.state.references[id]; !ok {
		return tracking.ErrNotFound
	}

	for oID, o := range s.state.operations {
		if o.ReferenceID != nil && *o.ReferenceID == id {
			s.cascadeOperation(oID)
		}
	}

	delete(s.state.references, id)

	return nil
}

// DeleteOperationConfig removes a config and the operations that used it.
func (s *MemoryScope) DeleteOperationConfig(_ context.Context, id int64) error {
	if err := s.guard(); err != nil {
		return err
	}

	if _, ok := s.state.configs[id]; !ok {
		return tracking.ErrNotFound
	}

	for oID, o := range s.state.operations {
		if o.OperationConfigID != nil && *o.OperationConfigID == id {
			s.cascadeOperation(oID)
		}
	}

	delete(s.state.configs, id)

	return nil
}

// DeleteJob removes a job and its metrics.
func (s *MemoryScope) DeleteJob(_ context.Context, id int64) error {
	if err := s.guard(); err != nil {
		return err
	}

	if _, ok := s.state.jobs[id]; !ok {
		return tracking.ErrNotFound
	}

	s.cascadeJob(id)

	return nil
}

// DeleteFile removes a file and its locations.
func (s *MemoryScope) DeleteFile(_ context.Context, id int64) error {
	if err := s.guard(); err != nil {
		return err
	}

	if _, ok := s.state.files[id]; !ok {
		return tracking.ErrNotFound
	}

	s.cascadeFile(id)

	return nil
}

func (s *MemoryScope) cascadeSpecimen(id int64) {
	for smID, sm := range s.state.samples {
		if sm.SpecimenID == id {
			s.cascadeSample(smID)
		}
	}

	delete(s.state.specimens, id)
}

func (s *MemoryScope) cascadeSample(id int64) {
	for rsID, rs := range s.state.readsets {
		if rs.SampleID == id {
			s.cascadeReadset(rsID)
		}
	}

	delete(s.state.samples, id)
}

func (s *MemoryScope) cascadeReadset(id int64) {
	for pair := range s.state.readsetFiles {
		if pair.first == id {
			delete(s.state.readsetFiles, pair)
		}
	}

	for pair := range s.state.readsetJobs {
		if pair.first == id {
			delete(s.state.readsetJobs, pair)
		}
	}

	for pair := range s.state.readsetMetrics {
		if pair.first == id {
			delete(s.state.readsetMetrics, pair)
		}
	}

	for pair := range s.state.readsetOperations {
		if pair.first == id {
			delete(s.state.readsetOperations, pair)
		}
	}

	delete(s.state.readsets, id)
}

func (s *MemoryScope) cascadeOperation(id int64) {
	for jID, j := range s.state.jobs {
		if j.OperationID == id {
			s.cascadeJob(jID)
		}
	}

	for pair := range s.state.readsetOperations {
		if pair.second == id {
			delete(s.state.readsetOperations, pair)
		}
	}

	delete(s.state.operations, id)
}

func (s *MemoryScope) cascadeJob(id int64) {
	for mID, m := range s.state.metrics {
		if m.JobID == id {
			s.cascadeMetric(mID)
		}
	}

	for pair := range s.state.readsetJobs {
		if pair.second == id {
			delete(s.state.readsetJobs, pair)
		}
	}

	for pair := range s.state.jobFiles {
		if pair.first == id {
			delete(s.state.jobFiles, pair)
		}
	}

	delete(s.state.jobs, id)
}

func (s *MemoryScope) cascadeMetric(id int64) {
	for pair := range s.state.readsetMetrics {
		if pair.second == id {
			delete(s.state.readsetMetrics, pair)
		}
	}

	delete(s.state.metrics, id)
}

func (s *MemoryScope) cascadeFile(id int64) {
	for lID, l := range s.state.locations {
		if l.FileID == id {
			delete(s.state.locations, lID)
		}
	}

	for pair := range s.state.readsetFiles {
		if pair.second == id {
			delete(s.state.readsetFiles, pair)
		}
	}

	for pair := range s.state.jobFiles {
		if pair.second == id {
			delete(s.state.jobFiles, pair)
		}
	}

	delete(s.state.files, id)
}

// MarkDeleted flips the soft-delete flag without cascading.
func (s *MemoryScope) MarkDeleted(ctx context.Context, table string, id int64, deleted bool) error {
	return s.setFlag(ctx, table, id, func(env *tracking.Envelope) {
		env.Deleted = deleted
	})
}

// MarkDeprecated flips the deprecation flag without cascading.
func (s *MemoryScope) MarkDeprecated(ctx context.Context, table string, id int64, deprecated bool) error {
	return s.setFlag(ctx, table, id, func(env *tracking.Envelope) {
		env.Deprecated = deprecated
	})
}

func (s *MemoryScope) setFlag(_ context.Context, table string, id int64, apply func(*tracking.Envelope)) error {
	if err := s.guard(); err != nil {
		return err
	}

	env := s.envelopeFor(table, id)
	if env == nil {
		if _, ok := flagTables[table]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTable, table)
		}

		return tracking.ErrNotFound
	}

	apply(env)

	now := time.Now().UTC()
	env.Modification = &now

	return nil
}

func (s *MemoryScope) envelopeFor(table string, id int64) *tracking.Envelope {
	switch table {
	case tracking.TableProject:
		if p, ok := s.state.projects[id]; ok {
			return &p.Envelope
		}
	case tracking.TableSpecimen:
		if sp, ok := s.state.specimens[id]; ok {
			return &sp.Envelope
		}
	case tracking.TableSample:
		if sm, ok := s.state.samples[id]; ok {
			return &sm.Envelope
		}
	case tracking.TableExperiment:
		if e, ok := s.state.experiments[id]; ok {
			return &e.Envelope
		}
	case tracking.TableRun:
		if r, ok := s.state.runs[id]; ok {
			return &r.Envelope
		}
	case tracking.TableReadset:
		if rs, ok := s.state.readsets[id]; ok {
			return &rs.Envelope
		}
	case tracking.TableOperation:
		if o, ok := s.state.operations[id]; ok {
			return &o.Envelope
		}
	case tracking.TableReference:
		if r, ok := s.state.references[id]; ok {
			return &r.Envelope
		}
	case tracking.TableOperationConfig:
		if c, ok := s.state.configs[id]; ok {
			return &c.Envelope
		}
	case tracking.TableJob:
		if j, ok := s.state.jobs[id]; ok {
			return &j.Envelope
		}
	case tracking.TableMetric:
		if m, ok := s.state.metrics[id]; ok {
			return &m.Envelope
		}
	case tracking.TableFile:
		if f, ok := s.state.files[id]; ok {
			return &f.Envelope
		}
	case tracking.TableLocation:
		if l, ok := s.state.locations[id]; ok {
			return &l.Envelope
		}
	}

	return nil
}
