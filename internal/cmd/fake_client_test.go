package cmd

import (
	"context"

	"github.com/semtab/semtab-cli/internal/api"
	"github.com/semtab/semtab-cli/internal/table"
)

type fakeClient struct {
	ListDatasetsFunc            func(context.Context) ([]api.Dataset, error)
	AddDatasetFunc              func(context.Context, string, *table.Frame) (string, error)
	DeleteDatasetFunc           func(context.Context, string) error
	ListTablesFunc              func(context.Context, string) ([]api.TableInfo, error)
	GetTableFunc                func(context.Context, string, string) (*table.Table, error)
	AddTableFunc                func(context.Context, string, string, *table.Frame) (string, error)
	DeleteTableFunc             func(context.Context, string, string) error
	ExportTableFunc             func(context.Context, string, string, string) ([]byte, error)
	PushTableFunc               func(context.Context, string, string, *table.BackendPayload) error
	ListReconciliatorsFunc      func(context.Context) ([]api.Service, error)
	ReconciliatorParametersFunc func(context.Context, string) (*api.ServiceParameters, error)
	ReconcileFunc               func(context.Context, *table.Table, string, string, []string) (*table.Table, *table.BackendPayload, error)
	ListExtendersFunc           func(context.Context) ([]api.Service, error)
	ExtenderParametersFunc      func(context.Context, string) (*api.ServiceParameters, error)
	ExtendColumnFunc            func(context.Context, *table.Table, string, string, []string, api.ExtendOptions) (*table.Table, *table.BackendPayload, error)
}

func (f *fakeClient) ListDatasets(ctx context.Context) ([]api.Dataset, error) {
	if f.ListDatasetsFunc != nil {
		return f.ListDatasetsFunc(ctx)
	}
	return nil, nil
}

func (f *fakeClient) AddDataset(ctx context.Context, name string, frame *table.Frame) (string, error) {
	if f.AddDatasetFunc != nil {
		return f.AddDatasetFunc(ctx, name, frame)
	}
	return "", nil
}

func (f *fakeClient) DeleteDataset(ctx context.Context, datasetID string) error {
	if f.DeleteDatasetFunc != nil {
		return f.DeleteDatasetFunc(ctx, datasetID)
	}
	return nil
}

func (f *fakeClient) ListTables(ctx context.Context, datasetID string) ([]api.TableInfo, error) {
	if f.ListTablesFunc != nil {
		return f.ListTablesFunc(ctx, datasetID)
	}
	return nil, nil
}

func (f *fakeClient) GetTable(ctx context.Context, datasetID, tableID string) (*table.Table, error) {
	if f.GetTableFunc != nil {
		return f.GetTableFunc(ctx, datasetID, tableID)
	}
	return nil, nil
}

func (f *fakeClient) AddTable(ctx context.Context, datasetID, name string, frame *table.Frame) (string, error) {
	if f.AddTableFunc != nil {
		return f.AddTableFunc(ctx, datasetID, name, frame)
	}
	return "", nil
}

func (f *fakeClient) DeleteTable(ctx context.Context, datasetID, tableID string) error {
	if f.DeleteTableFunc != nil {
		return f.DeleteTableFunc(ctx, datasetID, tableID)
	}
	return nil
}

func (f *fakeClient) ExportTable(ctx context.Context, datasetID, tableID, format string) ([]byte, error) {
	if f.ExportTableFunc != nil {
		return f.ExportTableFunc(ctx, datasetID, tableID, format)
	}
	return nil, nil
}

func (f *fakeClient) PushTable(ctx context.Context, datasetID, tableID string, payload *table.BackendPayload) error {
	if f.PushTableFunc != nil {
		return f.PushTableFunc(ctx, datasetID, tableID, payload)
	}
	return nil
}

func (f *fakeClient) ListReconciliators(ctx context.Context) ([]api.Service, error) {
	if f.ListReconciliatorsFunc != nil {
		return f.ListReconciliatorsFunc(ctx)
	}
	return nil, nil
}

func (f *fakeClient) ReconciliatorParameters(ctx context.Context, serviceID string) (*api.ServiceParameters, error) {
	if f.ReconciliatorParametersFunc != nil {
		return f.ReconciliatorParametersFunc(ctx, serviceID)
	}
	return nil, nil
}

func (f *fakeClient) Reconcile(ctx context.Context, t *table.Table, column, serviceID string, supportColumns []string) (*table.Table, *table.BackendPayload, error) {
	if f.ReconcileFunc != nil {
		return f.ReconcileFunc(ctx, t, column, serviceID, supportColumns)
	}
	return nil, nil, nil
}

func (f *fakeClient) ListExtenders(ctx context.Context) ([]api.Service, error) {
	if f.ListExtendersFunc != nil {
		return f.ListExtendersFunc(ctx)
	}
	return nil, nil
}

func (f *fakeClient) ExtenderParameters(ctx context.Context, serviceID string) (*api.ServiceParameters, error) {
	if f.ExtenderParametersFunc != nil {
		return f.ExtenderParametersFunc(ctx, serviceID)
	}
	return nil, nil
}

func (f *fakeClient) ExtendColumn(ctx context.Context, t *table.Table, column, extenderID string, properties []string, opts api.ExtendOptions) (*table.Table, *table.BackendPayload, error) {
	if f.ExtendColumnFunc != nil {
		return f.ExtendColumnFunc(ctx, t, column, extenderID, properties, opts)
	}
	return nil, nil, nil
}
