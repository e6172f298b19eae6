package tracking

import (
	"sort"
	"time"
)

// FlatRecord is the serialization-ready representation of an entity consumed
// by the presentation layer. Scalar fields pass through, timestamps render as
// ISO-8601 text, enum values as their declared strings, and relationship
// fields as ascending id sequences. The one exception is a file's locations,
// which nest full location records because consumers need the uri/endpoint
// detail. Every record carries a "tablename" discriminator.
//
// Unset fields (nil pointers, false flags, empty maps and sequences) are
// omitted rather than rendered as nulls, matching what the presentation layer
// expects from the upstream system of record.
type FlatRecord map[string]any

// Flattener is implemented by every entity.
type Flattener interface {
	TableName() string
	Flatten() FlatRecord
}

// Compile-time checks that every entity stays flattenable.
var (
	_ Flattener = (*Project)(nil)
	_ Flattener = (*Specimen)(nil)
	_ Flattener = (*Sample)(nil)
	_ Flattener = (*Experiment)(nil)
	_ Flattener = (*Run)(nil)
	_ Flattener = (*Readset)(nil)
	_ Flattener = (*Operation)(nil)
	_ Flattener = (*Reference)(nil)
	_ Flattener = (*OperationConfig)(nil)
	_ Flattener = (*Job)(nil)
	_ Flattener = (*Metric)(nil)
	_ Flattener = (*File)(nil)
	_ Flattener = (*Location)(nil)
)

func (e *Envelope) flatten(tablename string) FlatRecord {
	rec := FlatRecord{
		"tablename": tablename,
		"id":        e.ID,
	}

	putBool(rec, "deprecated", e.Deprecated)
	putBool(rec, "deleted", e.Deleted)

	if !e.Creation.IsZero() {
		rec["creation"] = e.Creation.Format(time.RFC3339)
	}

	putTime(rec, "modification", e.Modification)
	putMeta(rec, "extra_metadata", e.ExtraMetadata)

	if e.ExtID != nil {
		rec["ext_id"] = *e.ExtID
	}

	putStr(rec, "ext_src", e.ExtSrc)

	return rec
}

// Flatten renders the project with sorted specimen and operation ids.
func (p *Project) Flatten() FlatRecord {
	rec := p.flatten(TableProject)
	rec["name"] = p.Name
	putMeta(rec, "alias", p.Alias)
	putIDs(rec, "specimens", p.SpecimenIDs)
	putIDs(rec, "operations", p.OperationIDs)

	return rec
}

// Flatten renders the specimen with its parent project id and sorted sample ids.
func (s *Specimen) Flatten() FlatRecord {
	rec := s.flatten(TableSpecimen)
	rec["name"] = s.Name
	putID(rec, "project", s.ProjectID)
	putMeta(rec, "alias", s.Alias)
	putStr(rec, "cohort", s.Cohort)
	putStr(rec, "institution", s.Institution)
	putIDs(rec, "samples", s.SampleIDs)

	return rec
}

// Flatten renders the sample with its parent specimen id and sorted readset ids.
func (s *Sample) Flatten() FlatRecord {
	rec := s.flatten(TableSample)
	rec["name"] = s.Name
	putID(rec, "specimen", s.SpecimenID)
	putMeta(rec, "alias", s.Alias)
	putBool(rec, "tumour", s.Tumour)
	putIDs(rec, "readsets", s.ReadsetIDs)

	return rec
}

// Flatten renders the experiment attribute tuple and sorted readset ids.
func (e *Experiment) Flatten() FlatRecord {
	rec := e.flatten(TableExperiment)
	putStr(rec, "sequencing_technology", e.SequencingTechnology)
	putStr(rec, "type", e.Type)

	if e.NucleicAcidType != "" {
		rec["nucleic_acid_type"] = e.NucleicAcidType.String()
	}

	putStr(rec, "library_kit", e.LibraryKit)
	putTime(rec, "kit_expiration_date", e.KitExpirationDate)
	putIDs(rec, "readsets", e.ReadsetIDs)

	return rec
}

// Flatten renders the run and sorted readset ids.
func (r *Run) Flatten() FlatRecord {
	rec := r.flatten(TableRun)
	putStr(rec, "name", r.Name)
	putStr(rec, "instrument", r.Instrument)
	putTime(rec, "date", r.Date)
	putIDs(rec, "readsets", r.ReadsetIDs)

	return rec
}

// Flatten renders the readset with its three parent ids and sorted join ids.
func (r *Readset) Flatten() FlatRecord {
	rec := r.flatten(TableReadset)
	rec["name"] = r.Name
	putID(rec, "sample", r.SampleID)
	putID(rec, "experiment", r.ExperimentID)
	putID(rec, "run", r.RunID)
	putMeta(rec, "alias", r.Alias)

	if r.Lane != nil {
		rec["lane"] = r.Lane.String()
	}

	putStr(rec, "adapter1", r.Adapter1)
	putStr(rec, "adapter2", r.Adapter2)

	if r.SequencingType != nil {
		rec["sequencing_type"] = r.SequencingType.String()
	}

	if r.State != "" {
		rec["state"] = r.State.String()
	}

	putIDs(rec, "files", r.FileIDs)
	putIDs(rec, "operations", r.OperationIDs)
	putIDs(rec, "jobs", r.JobIDs)
	putIDs(rec, "metrics", r.MetricIDs)

	return rec
}

// Flatten renders the operation with its parent ids and sorted join ids.
func (o *Operation) Flatten() FlatRecord {
	rec := o.flatten(TableOperation)
	putID(rec, "project", o.ProjectID)

	if o.OperationConfigID != nil {
		rec["operation_config"] = *o.OperationConfigID
	}

	if o.ReferenceID != nil {
		rec["reference"] = *o.ReferenceID
	}

	putStr(rec, "platform", o.Platform)
	putStr(rec, "cmd_line", o.CmdLine)
	putStr(rec, "name", o.Name)

	if o.Status != "" {
		rec["status"] = o.Status.String()
	}

	putIDs(rec, "jobs", o.JobIDs)
	putIDs(rec, "readsets", o.ReadsetIDs)

	return rec
}

// Flatten renders the reference and sorted operation ids.
func (r *Reference) Flatten() FlatRecord {
	rec := r.flatten(TableReference)
	putStr(rec, "name", r.Name)
	putStr(rec, "alias", r.Alias)
	putStr(rec, "assembly", r.Assembly)
	putStr(rec, "version", r.Version)
	putStr(rec, "taxon_id", r.TaxonID)
	putStr(rec, "source", r.Source)
	putIDs(rec, "operations", r.OperationIDs)

	return rec
}

// Flatten renders the operation config and sorted operation ids. The binary
// payload is not part of the flat view.
func (c *OperationConfig) Flatten() FlatRecord {
	rec := c.flatten(TableOperationConfig)
	putStr(rec, "name", c.Name)
	putStr(rec, "version", c.Version)
	putStr(rec, "md5sum", c.MD5Sum)
	putIDs(rec, "operations", c.OperationIDs)

	return rec
}

// Flatten renders the job with its parent operation id and sorted join ids.
func (j *Job) Flatten() FlatRecord {
	rec := j.flatten(TableJob)
	putID(rec, "operation", j.OperationID)
	putStr(rec, "name", j.Name)
	putTime(rec, "start", j.Start)
	putTime(rec, "stop", j.Stop)

	if j.Status != nil {
		rec["status"] = j.Status.String()
	}

	putStr(rec, "type", j.Type)
	putIDs(rec, "metrics", j.MetricIDs)
	putIDs(rec, "files", j.FileIDs)
	putIDs(rec, "readsets", j.ReadsetIDs)

	return rec
}

// Flatten renders the metric with its parent job id and sorted readset ids.
func (m *Metric) Flatten() FlatRecord {
	rec := m.flatten(TableMetric)
	rec["name"] = m.Name
	putID(rec, "job", m.JobID)
	putStr(rec, "value", m.Value)

	if m.Flag != nil {
		rec["flag"] = m.Flag.String()
	}

	putBool(rec, "deliverable", m.Deliverable)

	if m.Aggregate != nil {
		rec["aggregate"] = m.Aggregate.String()
	}

	putIDs(rec, "readsets", m.ReadsetIDs)

	return rec
}

// Flatten renders the file. Locations nest as full flat records; readset and
// job relations stay sorted id sequences.
func (f *File) Flatten() FlatRecord {
	rec := f.flatten(TableFile)
	rec["name"] = f.Name
	putStr(rec, "type", f.Type)
	putStr(rec, "md5sum", f.MD5Sum)
	putBool(rec, "deliverable", f.Deliverable)

	if len(f.Locations) > 0 {
		locations := make([]FlatRecord, 0, len(f.Locations))
		for _, loc := range f.Locations {
			locations = append(locations, loc.Flatten())
		}

		rec["locations"] = locations
	}

	putIDs(rec, "readsets", f.ReadsetIDs)
	putIDs(rec, "jobs", f.JobIDs)

	return rec
}

// Flatten renders the location with its parent file id.
func (l *Location) Flatten() FlatRecord {
	rec := l.flatten(TableLocation)
	rec["uri"] = l.URI
	rec["endpoint"] = l.Endpoint
	putID(rec, "file", l.FileID)
	putBool(rec, "deliverable", l.Deliverable)

	return rec
}

func putStr(rec FlatRecord, key string, val *string) {
	if val != nil && *val != "" {
		rec[key] = *val
	}
}

func putBool(rec FlatRecord, key string, val bool) {
	if val {
		rec[key] = val
	}
}

func putTime(rec FlatRecord, key string, val *time.Time) {
	if val != nil && !val.IsZero() {
		rec[key] = val.Format(time.RFC3339)
	}
}

func putID(rec FlatRecord, key string, id int64) {
	if id != 0 {
		rec[key] = id
	}
}

func putMeta(rec FlatRecord, key string, m Metadata) {
	if len(m) > 0 {
		rec[key] = m
	}
}

// putIDs stores a sorted copy so flattening never reorders the entity's own
// slice.
func putIDs(rec FlatRecord, key string, ids []int64) {
	if len(ids) == 0 {
		return
	}

	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rec[key] = sorted
}
