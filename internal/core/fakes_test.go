package core

import (
	"context"
	"errors"
	"sync"
)

// fakeBackend implements ReferenceLookup and RecordSubmitter in memory.
type fakeBackend struct {
	companies   []ReferenceEntity
	departments []ReferenceEntity
	positions   []ReferenceEntity

	lookupErr error // returned by Departments when set

	mu        sync.Mutex
	submitted [][]ResolvedPayload
	submitErr error
	results   func([]ResolvedPayload) []SubmissionResult
	block     chan struct{} // SubmitBatch waits on it when non-nil
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		companies:   []ReferenceEntity{{ID: 1, Name: "Acme"}, {ID: 2, Name: "Globex"}},
		departments: []ReferenceEntity{{ID: 10, Name: "Engineering"}, {ID: 11, Name: "Financeiro"}},
		positions:   []ReferenceEntity{{ID: 100, Name: "Developer"}, {ID: 101, Name: "Analista"}},
	}
}

func (f *fakeBackend) Companies(ctx context.Context) ([]ReferenceEntity, error) {
	return f.companies, nil
}

func (f *fakeBackend) Departments(ctx context.Context) ([]ReferenceEntity, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.departments, nil
}

func (f *fakeBackend) Positions(ctx context.Context) ([]ReferenceEntity, error) {
	return f.positions, nil
}

func (f *fakeBackend) SubmitBatch(ctx context.Context, records []ResolvedPayload) ([]SubmissionResult, error) {
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	f.submitted = append(f.submitted, records)
	f.mu.Unlock()

	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.results != nil {
		return f.results(records), nil
	}

	results := make([]SubmissionResult, len(records))
	for i, r := range records {
		results[i] = SubmissionResult{Name: r.Name, Status: ResultSuccess, EmailDeliveryStatus: "queued"}
	}
	return results, nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

var errBackendDown = errors.New("dial tcp 10.0.0.1:443: connection refused")

// testRefs returns the reference data used across tests.
func testRefs() References {
	b := newFakeBackend()
	return NewReferences(b.companies, b.departments, b.positions)
}

const validCSV = "Nome;Email;CPF;Empresa;Setor;Cargo\n" +
	"Ana Souza;ana@acme.com;123.456.789-09;Acme;Engineering;Developer\n" +
	"Bruno Lima;bruno@acme.com;98765432100;acme;engineering;developer\n"
