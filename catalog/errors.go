package catalog

import "fmt"

// DatasetNotFoundError is returned when a dataset or version is not published.
// Version is zero when any version was requested.
type DatasetNotFoundError struct {
	Name    string
	Version uint64
}

func (e DatasetNotFoundError) Error() string {
	if e.Version == 0 {
		return fmt.Sprintf("dataset %s not found", e.Name)
	}
	return fmt.Sprintf("dataset %s version %d not found", e.Name, e.Version)
}

func (e DatasetNotFoundError) Is(target error) bool {
	_, ok := target.(DatasetNotFoundError)
	return ok
}

// InvalidNameError is returned for names that cannot identify a dataset.
type InvalidNameError struct {
	Name string
}

func (e InvalidNameError) Error() string {
	return fmt.Sprintf("invalid dataset name %q", e.Name)
}

func (e InvalidNameError) Detail() string {
	return "dataset names must start with a letter or underscore and may contain only letters, digits, underscores and hyphens"
}

func (e InvalidNameError) Is(target error) bool {
	_, ok := target.(InvalidNameError)
	return ok
}
