package domain

const (
	// Unserializable replaces values that cannot be represented as JSON.
	Unserializable = "unserializable"
	// Undefined replaces values that could not be read when an assign hook fired.
	Undefined = "undefined"
	// DefaultTrackedArray is used when neither the request nor the source names an array.
	DefaultTrackedArray = "arr"
	// InitialStateTag marks the array snapshot taken right after the tracked array is declared.
	InitialStateTag = "initial"
	// DefaultMaxEvents caps the number of hook calls of one run.
	DefaultMaxEvents = 100000
)
