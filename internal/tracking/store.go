package tracking

import "context"

type (
	// Scope is one logical transaction against the tracking store. All
	// resolution (get-or-create) calls run inside a scope; records they
	// create are visible within the scope but only durable once Commit is
	// called, so a whole ingestion batch can resolve many entities and land
	// them in one transaction.
	//
	// Calling a resolver twice with the same natural key inside one scope
	// returns the same identity; no duplicate row is created. Under true
	// concurrency across scopes, the storage backend's unique constraints
	// are the final arbiter and surface as ConstraintViolation on commit or
	// insert.
	//
	// Ownership conflicts (natural key found, different parent) are logged,
	// recorded on the scope, and tolerated: the existing record is returned
	// unchanged. Conflicts() exposes what accumulated so batch callers can
	// surface them.
	Scope interface {
		// GetOrCreateProject resolves a project by its unique name.
		GetOrCreateProject(ctx context.Context, name string, alias Metadata) (*Project, error)

		// GetOrCreateSpecimen resolves a specimen by its unique name. A name
		// match under a different project records an OwnershipConflict.
		GetOrCreateSpecimen(ctx context.Context, name string, project *Project, cohort, institution *string) (*Specimen, error)

		// GetOrCreateSample resolves a sample by its unique name. A name
		// match under a different specimen records an OwnershipConflict.
		GetOrCreateSample(ctx context.Context, name string, specimen *Specimen, tumour bool) (*Sample, error)

		// GetOrCreateReadset resolves a readset by its unique name. A name
		// match under a different sample records an OwnershipConflict. The
		// remaining attributes (alias, lane, adapters, sequencing type) are
		// stored when the readset is first created.
		GetOrCreateReadset(ctx context.Context, attrs ReadsetAttributes, sample *Sample, experiment *Experiment, run *Run) (*Readset, error)

		// GetOrCreateExperiment resolves an experiment by its full attribute
		// tuple; nil attributes match stored NULLs.
		GetOrCreateExperiment(ctx context.Context, attrs ExperimentAttributes) (*Experiment, error)

		// GetOrCreateRun resolves a run by its full attribute tuple
		// including the external linkage; nil attributes match stored NULLs.
		GetOrCreateRun(ctx context.Context, attrs RunAttributes) (*Run, error)

		// GetOrCreateOperationConfig resolves an operation config by its
		// attribute tuple including the content hash.
		GetOrCreateOperationConfig(ctx context.Context, attrs OperationConfigAttributes) (*OperationConfig, error)

		// GetOrCreateLocation resolves a location by its unique uri. An
		// empty endpoint is derived from the uri scheme.
		GetOrCreateLocation(ctx context.Context, uri string, file *File, endpoint string) (*Location, error)

		// Creation entry points for entities without a get-or-create natural
		// key. Each validates, inserts, and fills the envelope.
		CreateReference(ctx context.Context, reference *Reference) error
		CreateOperation(ctx context.Context, operation *Operation) error
		CreateJob(ctx context.Context, job *Job) error
		CreateMetric(ctx context.Context, metric *Metric) error
		CreateFile(ctx context.Context, file *File) error

		// Join-table links. Idempotent: linking an existing pair is a no-op.
		LinkReadsetFile(ctx context.Context, readsetID, fileID int64) error
		LinkReadsetJob(ctx context.Context, readsetID, jobID int64) error
		LinkReadsetMetric(ctx context.Context, readsetID, metricID int64) error
		LinkReadsetOperation(ctx context.Context, readsetID, operationID int64) error
		LinkJobFile(ctx context.Context, jobID, fileID int64) error

		// Loaders return the entity with relationship id slices populated
		// (files additionally nest their locations). Soft-deleted rows are
		// excluded. ErrNotFound when no live row matches.
		GetProject(ctx context.Context, id int64) (*Project, error)
		GetProjectByName(ctx context.Context, name string) (*Project, error)
		GetSpecimen(ctx context.Context, id int64) (*Specimen, error)
		GetSample(ctx context.Context, id int64) (*Sample, error)
		GetExperiment(ctx context.Context, id int64) (*Experiment, error)
		GetRun(ctx context.Context, id int64) (*Run, error)
		GetReadset(ctx context.Context, id int64) (*Readset, error)
		GetReadsetByName(ctx context.Context, name string) (*Readset, error)
		GetOperation(ctx context.Context, id int64) (*Operation, error)
		GetReference(ctx context.Context, id int64) (*Reference, error)
		GetOperationConfig(ctx context.Context, id int64) (*OperationConfig, error)
		GetJob(ctx context.Context, id int64) (*Job, error)
		GetMetric(ctx context.Context, id int64) (*Metric, error)
		GetFile(ctx context.Context, id int64) (*File, error)
		GetLocation(ctx context.Context, id int64) (*Location, error)
		GetLocationByURI(ctx context.Context, uri string) (*Location, error)

		// Hard deletes, cascading along ownership edges only; join rows are
		// unlinked, never cascaded.
		DeleteProject(ctx context.Context, id int64) error
		DeleteSpecimen(ctx context.Context, id int64) error
		DeleteSample(ctx context.Context, id int64) error
		DeleteExperiment(ctx context.Context, id int64) error
		DeleteRun(ctx context.Context, id int64) error
		DeleteReadset(ctx context.Context, id int64) error
		DeleteOperation(ctx context.Context, id int64) error
		DeleteReference(ctx context.Context, id int64) error
		DeleteOperationConfig(ctx context.Context, id int64) error
		DeleteJob(ctx context.Context, id int64) error
		DeleteFile(ctx context.Context, id int64) error

		// Soft-state flags. Neither triggers cascading side effects.
		MarkDeleted(ctx context.Context, table string, id int64, deleted bool) error
		MarkDeprecated(ctx context.Context, table string, id int64, deprecated bool) error

		// Conflicts returns the ownership conflicts recorded so far, in
		// occurrence order.
		Conflicts() []*OwnershipConflict

		Commit() error
		Rollback() error
	}

	// Store hands out scopes. Implementations: the Postgres-backed store and
	// the in-memory store in internal/storage.
	Store interface {
		// Begin opens a new scope. The caller owns Commit/Rollback.
		Begin(ctx context.Context) (Scope, error)

		// WithScope opens a scope, runs fn, commits on nil error and rolls
		// back otherwise (including on panic).
		WithScope(ctx context.Context, fn func(Scope) error) error

		// DefaultScope returns the lazily created process-default scope for
		// callers that do not manage their own. It stays open until Close.
		DefaultScope(ctx context.Context) (Scope, error)

		// Close commits nothing: it rolls back a still-open default scope
		// and releases resources.
		Close() error
	}
)
