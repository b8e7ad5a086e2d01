package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/cbudget/internal/model"
)

func TestDocPath(t *testing.T) {
	assert.Equal(t, "artifacts/demo/public/data/projects/main", DocPath("demo"))
	assert.Equal(t, "artifacts/construction-budget-pro-v2/public/data/projects/main", DocPath(""))
}

func TestDocumentRoundTrip(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := NewDocument([]model.Project{{ID: "1", Name: "A"}}, at)
	assert.Equal(t, "2024-01-02T03:04:05Z", doc.UpdatedAt)

	got, err := DecodeDocument([]byte(`{"list":[{"id":17,"name":"A","area":1}],"updatedAt":"x"}`))
	require.NoError(t, err)
	require.Len(t, got.Projects(), 1)
	assert.Equal(t, model.ID("17"), got.List[0].ID)
}

func TestDocumentNilList(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"updatedAt":"x"}`))
	require.NoError(t, err)
	assert.NotNil(t, doc.Projects())
	assert.Empty(t, doc.Projects())

	assert.NotNil(t, NewDocument(nil, time.Now()).List)
}
