// Package remote defines the shared document store the budget list is
// synchronized with, and the document format every backend speaks.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/theirongolddev/cbudget/internal/model"
)

// DefaultAppID is the application identifier used when none is configured.
const DefaultAppID = "construction-budget-pro-v2"

// DocumentStore is a remote store holding one shared project list.
type DocumentStore interface {
	// Connect performs the handshake and acquires credentials.
	Connect(ctx context.Context) error
	// Write replaces the remote document.
	Write(ctx context.Context, projects []model.Project, updatedAt time.Time) error
	// Subscribe delivers the document each time it changes, and feed errors
	// as they happen, until the returned function is called.
	Subscribe(onData func([]model.Project), onError func(error)) (unsubscribe func())
}

// Document is the stored form of the shared project list.
type Document struct {
	List      []model.Project `json:"list"`
	UpdatedAt string          `json:"updatedAt"`
}

// NewDocument builds a document stamped with updatedAt.
func NewDocument(projects []model.Project, updatedAt time.Time) Document {
	list := projects
	if list == nil {
		list = []model.Project{}
	}
	return Document{List: list, UpdatedAt: updatedAt.UTC().Format(time.RFC3339Nano)}
}

// Projects returns the document's list, never nil.
func (d Document) Projects() []model.Project {
	if d.List == nil {
		return []model.Project{}
	}
	return d.List
}

// DecodeDocument parses a stored document.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}

// DocPath returns the document path for an application id.
func DocPath(appID string) string {
	if appID == "" {
		appID = DefaultAppID
	}
	return "artifacts/" + appID + "/public/data/projects/main"
}
