package source

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wkalt/dapd/dataset"
)

/*
Package source populates datasets from stored representations. A source knows
how to turn its bytes into a dataset with values: a DODS source decodes a
binary payload against its DDS, a JSON source assigns values from a document,
and a NetCDF source reads a classic-format netCDF file.
*/

////////////////////////////////////////////////////////////////////////////////

// Source loads a populated dataset.
type Source interface {
	Load(ctx context.Context) (*dataset.Dataset, error)
}

// DODS is a dataset stored as DDS and DAS text plus the binary value stream.
// Data may be empty for a dataset with no values.
type DODS struct {
	DDS  []byte
	DAS  []byte
	Data []byte
}

// Load parses the DDS and DAS and decodes the payload.
func (s DODS) Load(_ context.Context) (*dataset.Dataset, error) {
	ds, err := build(s.DDS, s.DAS)
	if err != nil {
		return nil, err
	}
	if len(s.Data) == 0 {
		return ds, nil
	}
	if err := ds.Decode(bytes.NewReader(s.Data)); err != nil {
		return nil, err
	}
	return ds, nil
}

func build(ddsText, dasText []byte) (*dataset.Dataset, error) {
	if len(ddsText) == 0 {
		return nil, fmt.Errorf("dataset has no DDS")
	}
	if len(dasText) == 0 {
		return dataset.Build(bytes.NewReader(ddsText), nil)
	}
	return dataset.Build(bytes.NewReader(ddsText), bytes.NewReader(dasText))
}
