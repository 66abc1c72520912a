package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/flicky/flashmart-api/internal/dto"
	"github.com/flicky/flashmart-api/internal/model"
	"github.com/flicky/flashmart-api/internal/repository"
)

const (
	deliveryWindow        = "10-15 mins"
	serviceableMessage    = "Yay! We deliver to your area"
	notServiceableMessage = "Sorry, we don't deliver to this pincode yet"
)

type PincodeService struct {
	pincodeRepo repository.PincodeRepository
}

func NewPincodeService(pincodeRepo repository.PincodeRepository) *PincodeService {
	return &PincodeService{pincodeRepo: pincodeRepo}
}

// Check reports serviceability. Unknown pincodes are simply not serviceable.
func (s *PincodeService) Check(ctx context.Context, pincode string) (*dto.PincodeResponse, error) {
	pincode = strings.TrimSpace(pincode)
	p, err := s.pincodeRepo.Get(ctx, pincode)
	if err != nil {
		return nil, fmt.Errorf("get pincode: %w", err)
	}
	if p != nil && p.IsServiceable {
		return &dto.PincodeResponse{
			Pincode: pincode, IsServiceable: true, DeliveryTime: deliveryWindow, Message: serviceableMessage,
		}, nil
	}
	return &dto.PincodeResponse{Pincode: pincode, Message: notServiceableMessage}, nil
}

func (s *PincodeService) Upsert(ctx context.Context, pincode string, req dto.PincodeUpsertRequest) error {
	pincode = strings.TrimSpace(pincode)
	if pincode == "" {
		return fmt.Errorf("%w: pincode is required", ErrInvalidArgument)
	}
	p := &model.Pincode{Pincode: pincode, City: req.City, IsServiceable: req.IsServiceable}
	if err := s.pincodeRepo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert pincode: %w", err)
	}
	return nil
}
