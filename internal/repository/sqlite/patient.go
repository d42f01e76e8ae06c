package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/medisync/registry/internal/model"
	"github.com/medisync/registry/internal/repository"
	apperrors "github.com/medisync/registry/pkg/errors"
	"github.com/medisync/registry/pkg/metrics"
)

type patientRepository struct {
	store   *Store
	metrics *metrics.Metrics
}

func NewPatientRepository(store *Store, m *metrics.Metrics) repository.PatientRepository {
	return &patientRepository{store: store, metrics: m}
}

// Insert writes one record in a single statement and returns the stored row,
// identifier included. No partial write is observable: the statement either
// lands whole or not at all.
func (r *patientRepository) Insert(ctx context.Context, patient *model.Patient) (*model.Patient, error) {
	db, err := r.store.DB()
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO patients (
			firstname, lastname, age, gender, contactnumber, email, address,
			bloodgroup, medicalconditions, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, firstname, lastname, age, gender, contactnumber, email,
			address, bloodgroup, medicalconditions, createdat
	`

	start := time.Now()
	var stored model.Patient
	err = db.GetContext(ctx, &stored, query,
		patient.FirstName,
		patient.LastName,
		patient.Age,
		patient.Gender,
		patient.ContactNumber,
		patient.Email,
		patient.Address,
		patient.BloodGroup,
		patient.MedicalConditions,
		patient.CreatedAt,
	)
	r.observe("insert", start, err)
	if err != nil {
		return nil, apperrors.NewWriteFailed(fmt.Errorf("failed to insert patient: %w", err))
	}
	return &stored, nil
}

// ListAll returns every record newest first. Ties on createdat break on id so
// the order every session sees is total.
func (r *patientRepository) ListAll(ctx context.Context) ([]model.Patient, error) {
	db, err := r.store.DB()
	if err != nil {
		return nil, err
	}

	query := `SELECT * FROM patients ORDER BY createdat DESC, id DESC`

	start := time.Now()
	patients := []model.Patient{}
	err = db.SelectContext(ctx, &patients, query)
	r.observe("list_all", start, err)
	if err != nil {
		return nil, apperrors.NewReadFailed(fmt.Errorf("failed to list patients: %w", err))
	}
	return patients, nil
}

func (r *patientRepository) observe(operation string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.metrics.StoreOperations.WithLabelValues(operation, status).Inc()
	r.metrics.StoreLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
