package simplefile

// CreateRequest contains parameters for ingesting a file
type CreateRequest struct {
	// Source is an http(s) URL or a local file path
	Source string

	// Name defaults to the last URL path segment or the local base name
	Name string

	// Description defaults to a note naming the source
	Description string

	// ProposedPath is a hint for where the driver should place the file
	ProposedPath string

	// Options are passed to the driver verbatim
	Options map[string]any
}
