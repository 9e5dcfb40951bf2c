package assetstore

import (
	"time"

	"asset-sync/core/reconcile"
	"asset-sync/core/utils"
)

// Document types stored in the type column.
const (
	TypeProject       = "project"
	TypeAsset         = "asset"
	TypeArchivedAsset = "archived_asset"
)

// Reserved keys of the data column. Everything else is an attribute value.
const (
	dataCrossRef   = "crossRefId"
	dataParents    = "parents"
	dataHierarchy  = "hierarchy"
	dataTasks      = "tasks"
	dataEntityType = "entityType"
)

// Document is one row of the destination document table.
type Document struct {
	ID        string         `gorm:"column:id;primaryKey;size:64"`
	Project   string         `gorm:"column:project;size:255;not null;index:idx_asset_documents_project_type"`
	Type      string         `gorm:"column:type;size:32;not null;index:idx_asset_documents_project_type"`
	Name      string         `gorm:"column:name;size:255;not null"`
	Parent    string         `gorm:"column:parent;size:64;index"`
	Data      map[string]any `gorm:"column:data;serializer:json"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

// TableName overrides the table name.
func (Document) TableName() string {
	return "asset_documents"
}

// Dependent is downstream data published against a document, such as a
// product or version. A document with dependents can no longer be renamed,
// moved or archived.
type Dependent struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Project    string    `gorm:"column:project;size:255;not null;index:idx_asset_dependents_project_parent"`
	DocumentID string    `gorm:"column:document_id;size:64;not null;index:idx_asset_dependents_project_parent"`
	Kind       string    `gorm:"column:kind;size:32"`
	Name       string    `gorm:"column:name;size:255"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName overrides the table name.
func (Dependent) TableName() string {
	return "asset_dependents"
}

// requiredColumns lists the columns the store reads and writes.
var requiredColumns = map[string][]string{
	Document{}.TableName():  {"id", "project", "type", "name", "parent", "data"},
	Dependent{}.TableName(): {"id", "project", "document_id", "kind"},
}

// toRecord converts a row into the engine representation.
func (d Document) toRecord() reconcile.DestinationRecord {
	rec := reconcile.DestinationRecord{
		ID:        d.ID,
		Name:      d.Name,
		ParentRef: d.Parent,
		Kind:      reconcile.RecordAsset,
		Archived:  d.Type == TypeArchivedAsset,
	}
	if d.Type == TypeProject {
		rec.Kind = reconcile.RecordProject
	}
	for k, v := range d.Data {
		switch k {
		case dataCrossRef:
			rec.Data.CrossRefID = utils.ToString(v)
		case dataParents:
			rec.Data.Parents = utils.ToStringSlice(v)
		case dataHierarchy:
			rec.Data.Hierarchy = utils.ToString(v)
		case dataTasks:
			rec.Data.Tasks = utils.ToStringSlice(v)
		case dataEntityType:
			rec.Data.EntityType = utils.ToString(v)
		default:
			if rec.Data.Extra == nil {
				rec.Data.Extra = make(map[string]reconcile.Value)
			}
			rec.Data.Extra[k] = v
		}
	}
	return rec
}

// fromRecord converts an engine record into a row of the given project.
func fromRecord(project string, rec *reconcile.DestinationRecord) Document {
	doc := rec.Document()
	data, _ := doc["data"].(map[string]any)

	typ := TypeAsset
	switch {
	case rec.Kind == reconcile.RecordProject:
		typ = TypeProject
	case rec.Archived:
		typ = TypeArchivedAsset
	}
	return Document{
		ID:      rec.ID,
		Project: project,
		Type:    typ,
		Name:    rec.Name,
		Parent:  rec.ParentRef,
		Data:    data,
	}
}
