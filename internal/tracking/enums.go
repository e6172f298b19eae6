package tracking

// Closed vocabularies used across the schema. Persisting a value outside the
// declared set is a schema violation, surfaced by the validator before any row
// is written. The string values are the wire/database representation.

type (
	// NucleicAcidType is the nucleic acid extracted for an experiment.
	NucleicAcidType string

	// Lane is the flowcell lane a readset was sequenced on.
	Lane string

	// SequencingType is the read layout of a readset.
	SequencingType string

	// State is the processing state of a readset.
	State string

	// Status is the execution status of an operation or job.
	Status string

	// Flag is the quality-control verdict attached to a metric.
	Flag string

	// Aggregate is the sample-level aggregation mode of a metric.
	Aggregate string
)

// NucleicAcidType values.
const (
	NucleicAcidDNA NucleicAcidType = "DNA"
	NucleicAcidRNA NucleicAcidType = "RNA"
)

// Lane values.
const (
	LaneOne   Lane = "1"
	LaneTwo   Lane = "2"
	LaneThree Lane = "3"
	LaneFour  Lane = "4"
	LaneFive  Lane = "5"
	LaneSix   Lane = "6"
	LaneSeven Lane = "7"
	LaneEight Lane = "8"
)

// SequencingType values.
const (
	SequencingSingleEnd SequencingType = "SINGLE_END"
	SequencingPairedEnd SequencingType = "PAIRED_END"
)

// State values. New readsets default to StateValid.
const (
	StateValid   State = "VALID"
	StateOnHold  State = "ON_HOLD"
	StateInvalid State = "INVALID"
)

// Status values. New operations default to StatusPending.
const (
	StatusPending     Status = "PENDING"
	StatusRunning     Status = "RUNNING"
	StatusCompleted   Status = "COMPLETED"
	StatusFailed      Status = "FAILED"
	StatusOutOfMemory Status = "OUT_OF_MEMORY"
	StatusCancelled   Status = "CANCELLED"
)

// Flag values.
const (
	FlagPass          Flag = "PASS"
	FlagWarning       Flag = "WARNING"
	FlagFailed        Flag = "FAILED"
	FlagMissing       Flag = "MISSING"
	FlagNotApplicable Flag = "NOT_APPLICABLE"
)

// Aggregate values. AggregateNone marks a metric that must not be aggregated
// at the sample level.
const (
	AggregateSum     Aggregate = "SUM"
	AggregateAverage Aggregate = "AVERAGE"
	AggregateNone    Aggregate = "N"
)

// IsValid reports whether the value is a member of the closed set.
func (n NucleicAcidType) IsValid() bool {
	switch n {
	case NucleicAcidDNA, NucleicAcidRNA:
		return true
	}

	return false
}

// IsValid reports whether the value is a member of the closed set.
func (l Lane) IsValid() bool {
	switch l {
	case LaneOne, LaneTwo, LaneThree, LaneFour, LaneFive, LaneSix, LaneSeven, LaneEight:
		return true
	}

	return false
}

// IsValid reports whether the value is a member of the closed set.
func (s SequencingType) IsValid() bool {
	switch s {
	case SequencingSingleEnd, SequencingPairedEnd:
		return true
	}

	return false
}

// IsValid reports whether the value is a member of the closed set.
func (s State) IsValid() bool {
	switch s {
	case StateValid, StateOnHold, StateInvalid:
		return true
	}

	return false
}

// IsValid reports whether the value is a member of the closed set.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusOutOfMemory, StatusCancelled:
		return true
	}

	return false
}

// IsValid reports whether the value is a member of the closed set.
func (f Flag) IsValid() bool {
	switch f {
	case FlagPass, FlagWarning, FlagFailed, FlagMissing, FlagNotApplicable:
		return true
	}

	return false
}

// IsValid reports whether the value is a member of the closed set.
func (a Aggregate) IsValid() bool {
	switch a {
	case AggregateSum, AggregateAverage, AggregateNone:
		return true
	}

	return false
}

func (n NucleicAcidType) String() string { return string(n) }
func (l Lane) String() string            { return string(l) }
func (s SequencingType) String() string  { return string(s) }
func (s State) String() string           { return string(s) }
func (s Status) String() string          { return string(s) }
func (f Flag) String() string            { return string(f) }
func (a Aggregate) String() string       { return string(a) }
