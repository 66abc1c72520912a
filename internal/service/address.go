package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/flicky/flashmart-api/internal/dto"
	"github.com/flicky/flashmart-api/internal/model"
	"github.com/flicky/flashmart-api/internal/repository"
)

var ErrAddressNotFound = errors.New("address not found")

type AddressService struct {
	userRepo repository.UserRepository
}

func NewAddressService(userRepo repository.UserRepository) *AddressService {
	return &AddressService{userRepo: userRepo}
}

func (s *AddressService) List(ctx context.Context, userID string) ([]dto.AddressResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	items := make([]dto.AddressResponse, 0, len(user.Addresses))
	for _, a := range user.Addresses {
		items = append(items, toAddressResponse(a))
	}
	return items, nil
}

// Add stores a new address. The first address a user saves is always the default.
func (s *AddressService) Add(ctx context.Context, userID string, req dto.AddressRequest) (*dto.AddressResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUnauthorized
	}

	addr := &model.Address{
		FullName:     req.FullName,
		Phone:        req.Phone,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		State:        req.State,
		Pincode:      req.Pincode,
		IsDefault:    req.IsDefault || len(user.Addresses) == 0,
	}
	if err := s.userRepo.AddAddress(ctx, userID, addr); err != nil {
		return nil, fmt.Errorf("add address: %w", err)
	}
	resp := toAddressResponse(*addr)
	return &resp, nil
}

// Delete is idempotent and never promotes another address to default.
func (s *AddressService) Delete(ctx context.Context, userID, addressID string) error {
	if err := s.userRepo.DeleteAddress(ctx, userID, addressID); err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	return nil
}

func toAddressResponse(a model.Address) dto.AddressResponse {
	return dto.AddressResponse{
		ID:           a.ID,
		FullName:     a.FullName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		Pincode:      a.Pincode,
		IsDefault:    a.IsDefault,
	}
}
