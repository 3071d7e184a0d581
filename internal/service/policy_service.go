package service

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/scolaris-app/biblio-api/internal/models"
	appErrors "github.com/scolaris-app/biblio-api/pkg/errors"
)

type settingsRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Setting, error)
	BulkUpsert(ctx context.Context, settings []models.Setting) error
}

// UpdatePolicyRequest carries the editable lending parameters.
type UpdatePolicyRequest struct {
	MaxActiveStudent      *int    `json:"max_active_student" validate:"omitempty,min=1"`
	MaxActiveStaff        *int    `json:"max_active_staff" validate:"omitempty,min=1"`
	DefaultDurationDays   *int    `json:"default_duration_days" validate:"omitempty,min=1,max=90"`
	PenaltyRatePerDay     *string `json:"penalty_rate_per_day"`
	ReservationWindowDays *int    `json:"reservation_window_days" validate:"omitempty,min=1"`
}

// PolicyService resolves the lending policy from persisted settings, falling
// back to the documented defaults key by key when rows are absent or
// unparseable. Defaults live in models.DefaultLoanPolicy and nowhere else.
type PolicyService struct {
	repo      settingsRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPolicyService constructs the policy service.
func NewPolicyService(repo settingsRepository, validate *validator.Validate, logger *zap.Logger) *PolicyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{repo: repo, validator: validate, logger: logger}
}

var policyKeys = []string{
	models.SettingMaxActiveStudent,
	models.SettingMaxActiveStaff,
	models.SettingDefaultDurationDays,
	models.SettingPenaltyRatePerDay,
	models.SettingReservationWindow,
}

// Current loads the effective lending policy. Storage failures degrade to the
// defaults rather than blocking the ledger.
func (s *PolicyService) Current(ctx context.Context) models.LoanPolicy {
	policy := models.DefaultLoanPolicy()
	settings, err := s.repo.ListByKeys(ctx, policyKeys)
	if err != nil {
		s.logger.Warn("failed to load policy settings, using defaults", zap.Error(err))
		return policy
	}
	for _, setting := range settings {
		switch setting.Key {
		case models.SettingMaxActiveStudent:
			if v, err := strconv.Atoi(setting.Value); err == nil && v > 0 {
				policy.MaxActiveStudent = v
			}
		case models.SettingMaxActiveStaff:
			if v, err := strconv.Atoi(setting.Value); err == nil && v > 0 {
				policy.MaxActiveStaff = v
			}
		case models.SettingDefaultDurationDays:
			if v, err := strconv.Atoi(setting.Value); err == nil && v >= models.MinLoanDurationDays && v <= models.MaxLoanDurationDays {
				policy.DefaultDurationDays = v
			}
		case models.SettingPenaltyRatePerDay:
			if v, err := decimal.NewFromString(setting.Value); err == nil && !v.IsNegative() {
				policy.PenaltyRatePerDay = v
			}
		case models.SettingReservationWindow:
			if v, err := strconv.Atoi(setting.Value); err == nil && v > 0 {
				policy.ReservationWindowDays = v
			}
		}
	}
	return policy
}

// Update persists the provided parameters and returns the resulting policy.
func (s *PolicyService) Update(ctx context.Context, req UpdatePolicyRequest, updatedBy string) (models.LoanPolicy, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.LoanPolicy{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid policy payload")
	}

	var settings []models.Setting
	add := func(key, value string) {
		by := updatedBy
		settings = append(settings, models.Setting{Key: key, Value: value, UpdatedBy: &by})
	}
	if req.MaxActiveStudent != nil {
		add(models.SettingMaxActiveStudent, strconv.Itoa(*req.MaxActiveStudent))
	}
	if req.MaxActiveStaff != nil {
		add(models.SettingMaxActiveStaff, strconv.Itoa(*req.MaxActiveStaff))
	}
	if req.DefaultDurationDays != nil {
		add(models.SettingDefaultDurationDays, strconv.Itoa(*req.DefaultDurationDays))
	}
	if req.PenaltyRatePerDay != nil {
		rate, err := decimal.NewFromString(*req.PenaltyRatePerDay)
		if err != nil || rate.IsNegative() {
			return models.LoanPolicy{}, appErrors.Clone(appErrors.ErrValidation, "penalty rate must be a non-negative number")
		}
		add(models.SettingPenaltyRatePerDay, rate.String())
	}
	if req.ReservationWindowDays != nil {
		add(models.SettingReservationWindow, strconv.Itoa(*req.ReservationWindowDays))
	}
	if len(settings) == 0 {
		return s.Current(ctx), nil
	}

	if err := s.repo.BulkUpsert(ctx, settings); err != nil {
		return models.LoanPolicy{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update policy")
	}
	return s.Current(ctx), nil
}
