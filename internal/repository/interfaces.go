package repository

import (
	"context"

	"github.com/medisync/registry/internal/model"
)

// PatientRepository is the append-only record store. Insert returns the fully
// materialized row including the store-assigned identifier; ListAll returns
// every record newest first — an ordering the sync protocol relies on to keep
// all sessions' lists identical.
type PatientRepository interface {
	Insert(ctx context.Context, patient *model.Patient) (*model.Patient, error)
	ListAll(ctx context.Context) ([]model.Patient, error)
}
