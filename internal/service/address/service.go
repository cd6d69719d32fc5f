package address

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/validation"
)

const (
	MsgCreated = "Your form has been submitted successfully"
	MsgUpdated = "Your address has been updated successfully"
	MsgDeleted = "Your address has been delete successfully"
	MsgInvalid = "Please correct the errors in the address form"
)

// Input is an address form as submitted by the customer.
type Input struct {
	AddressType      string `json:"addressType" validate:"omitempty,oneof=Home Office Other"`
	StreetAddress    string `json:"streetAddress" validate:"required,max=255"`
	ApartmentAddress string `json:"apartmentAddress" validate:"max=255"`
	Country          string `json:"country" validate:"required,iso3166_1_alpha2"`
	Zipcode          string `json:"zipcode" validate:"required,max=10"`
	Default          bool   `json:"default"`
}

func (in Input) normalize() Input {
	in.AddressType = strings.TrimSpace(in.AddressType)
	in.StreetAddress = strings.TrimSpace(in.StreetAddress)
	in.ApartmentAddress = strings.TrimSpace(in.ApartmentAddress)
	in.Country = strings.ToUpper(strings.TrimSpace(in.Country))
	in.Zipcode = strings.TrimSpace(in.Zipcode)
	return in
}

// Validate normalizes and checks in, returning the domain address it describes.
func Validate(v *validator.Validate, userID string, in Input) (domain.Address, error) {
	in = in.normalize()
	if err := validation.Struct(v, in, MsgInvalid); err != nil {
		return domain.Address{}, err
	}
	return domain.Address{
		UserID:           userID,
		AddressType:      in.AddressType,
		StreetAddress:    in.StreetAddress,
		ApartmentAddress: in.ApartmentAddress,
		Country:          in.Country,
		Zipcode:          in.Zipcode,
		Default:          in.Default,
	}, nil
}

type Service struct {
	repo     repo
	validate *validator.Validate
}

type repo interface {
	Create(ctx context.Context, a domain.Address) (*domain.Address, error)
	List(ctx context.Context, userID string) ([]domain.Address, error)
	Get(ctx context.Context, userID, id string) (*domain.Address, error)
	Update(ctx context.Context, a domain.Address) (*domain.Address, error)
	Delete(ctx context.Context, userID, id string) error
}

func New(r repo, v *validator.Validate) *Service {
	if v == nil {
		v = validation.New()
	}
	return &Service{repo: r, validate: v}
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.WithMessage(domain.ErrNotFound, "This address does not exist.")
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.WithMessage(err, "This address does not exist.")
	}
	return err
}

func (s *Service) Create(ctx context.Context, userID string, in Input) (*domain.Address, error) {
	a, err := Validate(s.validate, userID, in)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, a)
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Address, error) {
	return s.repo.List(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Address, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	a, err := s.repo.Get(ctx, userID, id)
	return a, notFound(err)
}

func (s *Service) Update(ctx context.Context, userID, id string, in Input) (*domain.Address, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	a, err := Validate(s.validate, userID, in)
	if err != nil {
		return nil, err
	}
	a.ID = id
	updated, err := s.repo.Update(ctx, a)
	return updated, notFound(err)
}

// Delete removes the address. Orders that referenced it keep no billing address.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return notFound(s.repo.Delete(ctx, userID, id))
}
