package firestore

import (
	"context"
	"errors"

	domain "github.com/maison-curio/api/internal/domain"
	pfirestore "github.com/maison-curio/api/internal/platform/firestore"
	"github.com/maison-curio/api/internal/repositories"
)

const (
	settingsCollection = "settings"
	settingsDocumentID = "site"
)

// SettingsRepository loads the single operator-managed settings document.
type SettingsRepository struct {
	base *pfirestore.BaseRepository[settingsDocument]
}

// NewSettingsRepository constructs a Firestore-backed settings repository.
func NewSettingsRepository(provider *pfirestore.Provider) (*SettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("settings repository requires firestore provider")
	}
	return &SettingsRepository{
		base: pfirestore.NewBaseRepository[settingsDocument](provider, settingsCollection, nil, nil),
	}, nil
}

// Get returns the storefront settings. Absence of the document surfaces as a
// not-found repository error so callers can fail fast.
func (r *SettingsRepository) Get(ctx context.Context) (domain.SiteSettings, error) {
	if r == nil || r.base == nil {
		return domain.SiteSettings{}, errors.New("settings repository not initialised")
	}
	doc, err := r.base.Get(ctx, settingsDocumentID)
	if err != nil {
		return domain.SiteSettings{}, err
	}
	return domain.SiteSettings{
		FreeShippingThreshold:     doc.Data.FreeShippingThreshold,
		DomesticShippingCost:      doc.Data.DomesticShippingCost,
		InternationalShippingCost: doc.Data.InternationalShippingCost,
		ShippingNotes:             doc.Data.ShippingNotes,
		AdminEmail:                doc.Data.AdminEmail,
	}, nil
}

type settingsDocument struct {
	FreeShippingThreshold     *int64            `firestore:"freeShippingThreshold"`
	DomesticShippingCost      *int64            `firestore:"domesticShippingCost"`
	InternationalShippingCost *int64            `firestore:"internationalShippingCost"`
	ShippingNotes             map[string]string `firestore:"shippingNotes,omitempty"`
	AdminEmail                string            `firestore:"adminEmail,omitempty"`
}

// Ensure interface compliance.
var _ repositories.SettingsRepository = (*SettingsRepository)(nil)
