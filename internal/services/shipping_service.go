package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"

	domain "github.com/maison-curio/api/internal/domain"
	"github.com/maison-curio/api/internal/repositories"
)

var (
	// ErrShippingInvalidInput indicates the caller supplied an unusable command.
	ErrShippingInvalidInput = errors.New("shipping: invalid input")
	// ErrShippingSettings indicates the storefront settings cannot support a
	// quote for the requested destination.
	ErrShippingSettings = errors.New("shipping: settings invalid")
	// ErrShippingUnavailable indicates a backing dependency failed.
	ErrShippingUnavailable = errors.New("shipping: temporarily unavailable")
)

// ShippingServiceDeps enumerates the dependencies for the shipping service.
type ShippingServiceDeps struct {
	Products repositories.ProductRepository
	Settings repositories.SettingsRepository
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type shippingService struct {
	products repositories.ProductRepository
	settings repositories.SettingsRepository
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewShippingService validates dependencies and returns a ShippingService.
func NewShippingService(deps ShippingServiceDeps) (ShippingService, error) {
	if deps.Products == nil {
		return nil, errors.New("shipping service requires product repository")
	}
	if deps.Settings == nil {
		return nil, errors.New("shipping service requires settings repository")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &shippingService{
		products: deps.Products,
		settings: deps.Settings,
		logger:   logger,
	}, nil
}

// Quote applies the shipping rules to already-resolved inputs. The threshold
// wins over every per-item override; below it the order pays the single most
// expensive effective item cost. Advisory outputs are produced either way.
func (s *shippingService) Quote(items []ShippingItem, subtotal int64, destination Destination, settings SiteSettings) (ShippingQuote, error) {
	if subtotal < 0 {
		return ShippingQuote{}, fmt.Errorf("%w: subtotal must not be negative", ErrShippingInvalidInput)
	}

	base, err := destinationBaseCost(destination, settings)
	if err != nil {
		return ShippingQuote{}, err
	}
	threshold := settings.FreeShippingThreshold
	if threshold == nil {
		return ShippingQuote{}, fmt.Errorf("%w: free shipping threshold is not configured", ErrShippingSettings)
	}
	if *threshold < 0 {
		return ShippingQuote{}, fmt.Errorf("%w: free shipping threshold must not be negative", ErrShippingSettings)
	}

	quote := ShippingQuote{}
	seenNotes := make(map[string]struct{})
	for _, item := range items {
		if item.RequiresSpecialShipping {
			quote.HasSpecialShippingItems = true
		}
		if note := strings.TrimSpace(item.Note); note != "" {
			if _, ok := seenNotes[note]; !ok {
				seenNotes[note] = struct{}{}
				quote.Notes = append(quote.Notes, note)
			}
		}
	}

	if len(items) == 0 {
		return quote, nil
	}

	if subtotal >= *threshold {
		quote.FreeShipping = true
		return quote, nil
	}

	for _, item := range items {
		cost := base
		if override := destinationOverride(item, destination); override != nil {
			cost = *override
		}
		if cost > quote.Cost {
			quote.Cost = cost
		}
	}
	return quote, nil
}

// QuoteCart resolves catalog products and storefront settings, then quotes.
// Unknown product ids are ignored; per-item notes are localised against the
// requested locale.
func (s *shippingService) QuoteCart(ctx context.Context, cmd CartShippingCommand) (ShippingQuote, error) {
	destination := cmd.Destination
	if destination == "" {
		destination = domain.DestinationDomestic
	}
	if destination != domain.DestinationDomestic && destination != domain.DestinationInternational {
		return ShippingQuote{}, fmt.Errorf("%w: unknown destination %q", ErrShippingInvalidInput, cmd.Destination)
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.logger(ctx, "shipping.settings.load_failed", map[string]any{"error": err.Error()})
		return ShippingQuote{}, fmt.Errorf("%w: load settings: %w", ErrShippingUnavailable, err)
	}

	products, err := s.products.FindByIDs(ctx, cmd.ProductIDs)
	if err != nil {
		return ShippingQuote{}, fmt.Errorf("%w: load products: %w", ErrShippingUnavailable, err)
	}

	items := make([]ShippingItem, 0, len(products))
	var subtotal int64
	for _, product := range products {
		subtotal += product.Price
		items = append(items, ShippingItem{
			ProductID:               product.ID,
			DomesticOverride:        product.ShippingCost,
			InternationalOverride:   product.ShippingCostIntl,
			RequiresSpecialShipping: product.RequiresSpecialShipping,
			Note:                    localizedProductNote(product, cmd.Locale),
		})
	}

	quote, err := s.Quote(items, subtotal, destination, settings)
	if err != nil {
		return ShippingQuote{}, err
	}
	if note := localizedNote(settings.ShippingNotes, "", cmd.Locale); note != "" {
		quote.Notes = append([]string{note}, quote.Notes...)
	}
	return quote, nil
}

func destinationBaseCost(destination Destination, settings SiteSettings) (int64, error) {
	var base *int64
	switch destination {
	case domain.DestinationDomestic:
		base = settings.DomesticShippingCost
	case domain.DestinationInternational:
		base = settings.InternationalShippingCost
	default:
		return 0, fmt.Errorf("%w: unknown destination %q", ErrShippingInvalidInput, destination)
	}
	if base == nil {
		return 0, fmt.Errorf("%w: no base cost configured for destination %q", ErrShippingSettings, destination)
	}
	if *base < 0 {
		return 0, fmt.Errorf("%w: base cost for destination %q must not be negative", ErrShippingSettings, destination)
	}
	return *base, nil
}

func destinationOverride(item ShippingItem, destination Destination) *int64 {
	if destination == domain.DestinationInternational {
		return item.InternationalOverride
	}
	return item.DomesticOverride
}

func localizedProductNote(product Product, locale string) string {
	return localizedNote(product.ShippingNoteLocalized, product.ShippingNote, locale)
}

// localizedNote picks the best translation for the requested locale, falling
// back to the untranslated note when the locale matches nothing.
func localizedNote(translations map[string]string, fallback string, locale string) string {
	if len(translations) == 0 {
		return fallback
	}
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return fallbackNote(translations, fallback)
	}
	desired, err := language.Parse(locale)
	if err != nil {
		return fallbackNote(translations, fallback)
	}

	keys := make([]string, 0, len(translations))
	for key := range translations {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	tags := make([]language.Tag, 0, len(keys))
	valid := keys[:0]
	for _, key := range keys {
		tag, err := language.Parse(key)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		valid = append(valid, key)
	}
	if len(tags) == 0 {
		return fallbackNote(translations, fallback)
	}

	matcher := language.NewMatcher(tags)
	if _, idx, conf := matcher.Match(desired); conf > language.No {
		return translations[valid[idx]]
	}
	return fallbackNote(translations, fallback)
}

func fallbackNote(translations map[string]string, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if note, ok := translations["en"]; ok {
		return note
	}
	keys := make([]string, 0, len(translations))
	for key := range translations {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		return translations[keys[0]]
	}
	return ""
}
