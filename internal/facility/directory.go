package facility

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gdg-garage/facility-api/internal/listing"
	"github.com/gdg-garage/facility-api/internal/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("facility not found")
	ErrInvalid      = errors.New("invalid facility")
	ErrInUse        = errors.New("facility has reservations")
	ErrInvalidQuery = listing.ErrInvalidParams
)

var sortColumns = listing.Sort{
	Columns: map[string]string{
		"id":        "id",
		"name":      "name",
		"capacity":  "capacity",
		"createdAt": "created_at",
	},
	Default: "name",
}

// Directory is the admin-maintained catalogue of bookable facilities.
type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

type Fields struct {
	Name        string
	Description string
	Capacity    int
}

func (f Fields) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if f.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be greater than zero", ErrInvalid)
	}
	return nil
}

func (d *Directory) Get(ctx context.Context, id uint) (*models.Facility, error) {
	var f models.Facility
	err := d.db.WithContext(ctx).First(&f, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get facility %d: %w", id, err)
	}
	return &f, nil
}

func (d *Directory) List(ctx context.Context, params listing.Params) (listing.Page[models.Facility], error) {
	p, err := params.Normalize(sortColumns)
	if err != nil {
		return listing.Page[models.Facility]{}, err
	}

	base := d.db.WithContext(ctx).Model(&models.Facility{}).Scopes(listing.Search(p.Search, "name", "description"))

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return listing.Page[models.Facility]{}, fmt.Errorf("count facilities: %w", err)
	}

	var items []models.Facility
	if err := base.Session(&gorm.Session{}).Scopes(p.Paginate(sortColumns)).Find(&items).Error; err != nil {
		return listing.Page[models.Facility]{}, fmt.Errorf("list facilities: %w", err)
	}

	return listing.NewPage(items, p, total), nil
}

func (d *Directory) Create(ctx context.Context, fields Fields) (*models.Facility, error) {
	if err := fields.validate(); err != nil {
		return nil, err
	}
	f := models.Facility{
		Name:        strings.TrimSpace(fields.Name),
		Description: fields.Description,
		Capacity:    fields.Capacity,
	}
	if err := d.db.WithContext(ctx).Create(&f).Error; err != nil {
		return nil, fmt.Errorf("create facility: %w", err)
	}
	return &f, nil
}

// Update replaces a facility's fields. Lowering capacity does not evict
// reservations already admitted; it only limits new ones.
func (d *Directory) Update(ctx context.Context, id uint, fields Fields) (*models.Facility, error) {
	if err := fields.validate(); err != nil {
		return nil, err
	}
	var f models.Facility
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&f, id).Error; err != nil {
			return err
		}
		f.Name = strings.TrimSpace(fields.Name)
		f.Description = fields.Description
		f.Capacity = fields.Capacity
		return tx.Save(&f).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update facility %d: %w", id, err)
	}
	return &f, nil
}

// Delete removes a facility that no reservation references.
func (d *Directory) Delete(ctx context.Context, id uint) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var f models.Facility
		if err := tx.First(&f, id).Error; err != nil {
			return err
		}

		var n int64
		if err := tx.Model(&models.Reservation{}).Where("facility_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrInUse
		}

		return tx.Unscoped().Delete(&f).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, ErrInUse) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return ErrInUse
	}
	if err != nil {
		return fmt.Errorf("delete facility %d: %w", id, err)
	}
	return nil
}
