package main

import (
	"bytes"
	"errors"
	"testing"

	"cluster-portal/pkg/models"
	"cluster-portal/pkg/portal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteImportResults(t *testing.T) {
	var out bytes.Buffer
	err := writeImportResults(&out, []portal.ImportResult{
		{Name: "lab", Cluster: models.Cluster{ID: "c1", Name: "lab", EndPoint: "https://lab:6443"}},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "name: lab")

	out.Reset()
	err = writeImportResults(&out, []portal.ImportResult{
		{Name: "prod", Code: models.CodeRepositoryAlreadyPresent, Err: errors.New("exists")},
	})
	assert.EqualError(t, err, "some contexts were not imported")
	assert.Contains(t, out.String(), "code: RepositoryAlreadyPresent")
}

func TestWriteImportResultsReportsWriteFailure(t *testing.T) {
	err := writeImportResults(failingWriter{}, []portal.ImportResult{{Name: "lab"}})
	assert.ErrorContains(t, err, "broken pipe")
}
