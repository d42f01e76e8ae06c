package registration

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/medisync/registry/internal/model"
	"github.com/medisync/registry/internal/protocol"
	"github.com/medisync/registry/internal/repository"
	apperrors "github.com/medisync/registry/pkg/errors"
	"github.com/medisync/registry/pkg/logger"
	"github.com/medisync/registry/pkg/metrics"
)

// State names the phases of one registration pass.
type State string

const (
	StateIdle        State = "idle"
	StateValidating  State = "validating"
	StateWriting     State = "writing"
	StateReconciling State = "reconciling"
	StateFailed      State = "failed"
)

// fieldMessages maps a field and violated rule to its user-facing message.
var fieldMessages = map[string]map[string]string{
	"firstName": {"required": "First Name is required"},
	"lastName":  {"required": "Last Name is required"},
	"age": {
		"required": "Age is required",
		"min":      "Age is required",
	},
	"gender": {
		"required": "Gender is required",
		"oneof":    "Invalid gender selected",
	},
	"contactNumber": {
		"required": "Contact number is required",
		"len":    "Contact number must be 10 digits",
		"number": "Contact number must be 10 digits",
	},
	"bloodGroup": {"oneof": "Invalid blood group selected"},
}

// Service drives a registration from raw submitted fields to a committed,
// broadcast record. Side effect order is fixed: store write, then full
// read-back, then broadcast. Broadcasting before the read-back would risk
// propagating a stale list.
type Service struct {
	repo     repository.PatientRepository
	data     *protocol.DataLink
	validate *validator.Validate
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(repo repository.PatientRepository, data *protocol.DataLink, log *logger.Logger, m *metrics.Metrics) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})

	return &Service{
		repo:     repo,
		data:     data,
		validate: v,
		logger:   log,
		metrics:  m,
	}
}

// Register validates req, writes the record, reads the full list back in
// store order and broadcasts it on the data channel. On success it returns
// the fresh list, which the caller applies locally — the bus never echoes a
// broadcast back to its publisher.
func (s *Service) Register(ctx context.Context, req *model.RegisterPatientRequest) ([]model.Patient, error) {
	s.transition(StateIdle, StateValidating)

	normalize(req)
	if fields := s.validateRequest(req); len(fields) > 0 {
		s.fail(StateValidating, "validation_failed")
		return nil, apperrors.NewValidation(fields)
	}

	s.transition(StateValidating, StateWriting)

	patient := &model.Patient{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Age:               req.Age,
		Gender:            req.Gender,
		ContactNumber:     req.ContactNumber,
		Email:             req.Email,
		Address:           req.Address,
		BloodGroup:        req.BloodGroup,
		MedicalConditions: model.ParseConditions(req.MedicalConditions),
		CreatedAt:         model.NewCreatedAt(),
	}

	stored, err := s.repo.Insert(ctx, patient)
	if err != nil {
		s.fail(StateWriting, outcome(err))
		return nil, err
	}

	s.transition(StateWriting, StateReconciling)

	// Full read-back rather than a local append: if another session's write
	// interleaved, the list must still reflect true store order.
	patients, err := s.repo.ListAll(ctx)
	if err != nil {
		s.fail(StateReconciling, outcome(err))
		return nil, err
	}

	if err := s.data.Broadcast(ctx, patients); err != nil {
		// Bus failures are not part of the error model; the write is durable
		// and other sessions converge on the next broadcast.
		s.logger.Error(err, "failed to broadcast snapshot")
	}

	s.transition(StateReconciling, StateIdle)
	if s.metrics != nil {
		s.metrics.Registrations.WithLabelValues("success").Inc()
	}
	s.logger.Info("patient registered", "id", stored.ID, "records", len(patients))

	return patients, nil
}

// validateRequest runs every constraint in one pass; simultaneous violations
// are all reported, not just the first.
func (s *Service) validateRequest(req *model.RegisterPatientRequest) apperrors.FieldErrors {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	violations, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.FieldErrors{"request": err.Error()}
	}

	fields := make(apperrors.FieldErrors, len(violations))
	for _, v := range violations {
		msg := fieldMessages[v.Field()][v.Tag()]
		if msg == "" {
			msg = v.Error()
		}
		fields[v.Field()] = msg
	}
	return fields
}

func normalize(req *model.RegisterPatientRequest) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Gender = strings.TrimSpace(req.Gender)
	req.ContactNumber = strings.TrimSpace(req.ContactNumber)
	req.Email = strings.TrimSpace(req.Email)
	req.BloodGroup = strings.TrimSpace(req.BloodGroup)
}

func outcome(err error) string {
	switch apperrors.Code(err) {
	case apperrors.ErrStoreUnavailable:
		return "store_unavailable"
	case apperrors.ErrWriteFailed:
		return "write_failed"
	case apperrors.ErrReadFailed:
		return "read_failed"
	default:
		return "error"
	}
}

func (s *Service) transition(from, to State) {
	s.logger.Debug("registration transition", "from", string(from), "to", string(to))
}

func (s *Service) fail(from State, reason string) {
	s.transition(from, StateFailed)
	s.transition(StateFailed, StateIdle)
	if s.metrics != nil {
		s.metrics.Registrations.WithLabelValues(reason).Inc()
	}
}
