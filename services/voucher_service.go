package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "storefront-service/common/errors"
	"storefront-service/models"
	"storefront-service/repository"
)

// VoucherService manages discount codes.
type VoucherService interface {
	Create(ctx context.Context, req *models.CreateVoucherRequest) (*models.Voucher, error)
	Deactivate(ctx context.Context, code string) error
	List(ctx context.Context, page, limit int) ([]models.Voucher, int64, error)
	FindValid(ctx context.Context, code string, now time.Time) (*models.Voucher, error)
}

type voucherServiceImpl struct {
	repo   repository.VoucherRepository
	logger *zap.Logger
}

func NewVoucherService(repo repository.VoucherRepository, logger *zap.Logger) VoucherService {
	return &voucherServiceImpl{repo: repo, logger: logger}
}

func (s *voucherServiceImpl) Create(ctx context.Context, req *models.CreateVoucherRequest) (*models.Voucher, error) {
	if !req.ValidTo.After(req.ValidFrom) {
		return nil, apperrors.ErrValidation.With("valid_to must be after valid_from")
	}
	if req.Discount < 0 || req.Discount > 100 {
		return nil, apperrors.ErrValidation.With("Discount must be between 0 and 100")
	}

	voucher := &models.Voucher{
		Code:      strings.ToUpper(strings.TrimSpace(req.Code)),
		ValidFrom: req.ValidFrom,
		ValidTo:   req.ValidTo,
		Discount:  req.Discount,
		Active:    true,
	}
	if err := s.repo.Create(ctx, voucher); err != nil {
		if isDuplicate(err) {
			return nil, apperrors.ErrConflict.With("Voucher code already exists")
		}
		s.logger.Error("Failed to create voucher", zap.Error(err))
		return nil, apperrors.ErrInternal.Wrap(err)
	}

	s.logger.Info("Voucher created", zap.String("code", voucher.Code), zap.Int("discount", voucher.Discount))
	return voucher, nil
}

func (s *voucherServiceImpl) Deactivate(ctx context.Context, code string) error {
	if err := s.repo.Deactivate(ctx, code); err != nil {
		return translate(err, apperrors.ErrNotFound.With("Voucher not found"))
	}
	s.logger.Info("Voucher deactivated", zap.String("code", strings.ToUpper(code)))
	return nil
}

func (s *voucherServiceImpl) List(ctx context.Context, page, limit int) ([]models.Voucher, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > MaxPerPage {
		limit = 20
	}
	vouchers, total, err := s.repo.FindAll(ctx, page, limit)
	if err != nil {
		return nil, 0, apperrors.ErrInternal.Wrap(err)
	}
	return vouchers, total, nil
}

// FindValid returns the voucher when it is active and now lies inside its
// validity window; any other case is ErrInvalidVoucher.
func (s *voucherServiceImpl) FindValid(ctx context.Context, code string, now time.Time) (*models.Voucher, error) {
	if strings.TrimSpace(code) == "" {
		return nil, apperrors.ErrInvalidVoucher
	}
	voucher, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, translate(err, apperrors.ErrInvalidVoucher)
	}
	if !voucher.ValidAt(now) {
		return nil, apperrors.ErrInvalidVoucher
	}
	return voucher, nil
}
