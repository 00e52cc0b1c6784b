package api

import (
	"context"

	"github.com/semtab/semtab-cli/internal/table"
)

// SemTabAPI captures the operations commands depend on, so tests can swap in
// a fake client.
type SemTabAPI interface {
	ListDatasets(ctx context.Context) ([]Dataset, error)
	AddDataset(ctx context.Context, name string, frame *table.Frame) (string, error)
	DeleteDataset(ctx context.Context, datasetID string) error

	ListTables(ctx context.Context, datasetID string) ([]TableInfo, error)
	GetTable(ctx context.Context, datasetID, tableID string) (*table.Table, error)
	AddTable(ctx context.Context, datasetID, name string, frame *table.Frame) (string, error)
	DeleteTable(ctx context.Context, datasetID, tableID string) error
	ExportTable(ctx context.Context, datasetID, tableID, format string) ([]byte, error)
	PushTable(ctx context.Context, datasetID, tableID string, payload *table.BackendPayload) error

	ListReconciliators(ctx context.Context) ([]Service, error)
	ReconciliatorParameters(ctx context.Context, serviceID string) (*ServiceParameters, error)
	Reconcile(ctx context.Context, t *table.Table, column, serviceID string, supportColumns []string) (*table.Table, *table.BackendPayload, error)

	ListExtenders(ctx context.Context) ([]Service, error)
	ExtenderParameters(ctx context.Context, serviceID string) (*ServiceParameters, error)
	ExtendColumn(ctx context.Context, t *table.Table, column, extenderID string, properties []string, opts ExtendOptions) (*table.Table, *table.BackendPayload, error)
}

var _ SemTabAPI = (*Client)(nil)
