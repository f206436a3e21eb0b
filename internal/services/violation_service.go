package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rcabrera/citewatch/internal/config"
	"github.com/rcabrera/citewatch/internal/enrich"
	"github.com/rcabrera/citewatch/internal/logger"
	"github.com/rcabrera/citewatch/internal/models"
	"github.com/rcabrera/citewatch/internal/query"
	"github.com/rcabrera/citewatch/internal/store"
	"github.com/rcabrera/citewatch/internal/temporal"
)

// Service-level errors
var (
	ErrViolationNotFound = errors.New("violation not found")
	ErrInvalidStatus     = errors.New("invalid violation status")
)

// CreateViolationInput carries the fields accepted when a ticket is issued.
// CapturedAt is the raw device-reported timestamp; malformed values fall back
// to the server clock rather than rejecting the ticket.
type CreateViolationInput struct {
	EnforcerID  *string
	Name        string
	License     string
	Phone       string
	Address     string
	Plate       string
	Model       string
	Color       string
	Type        string
	Description string
	Location    string
	FineAmount  float64
	CapturedAt  string
}

// ListViolationsInput combines the equality filters pushed to the store with
// the in-memory predicates and page selection applied above it.
type ListViolationsInput struct {
	Status     string
	Type       string
	EnforcerID string
	Plate      string
	License    string

	Search         string
	DateFrom       *time.Time
	DateTo         *time.Time
	RepeatOffender *bool

	SortKey  string
	SortDesc *bool
	Page     int
	PageSize int
}

// ViolationPage is one page of enriched violations.
type ViolationPage struct {
	Items        []models.EnrichedViolation `json:"items"`
	CurrentPage  int                        `json:"currentPage"`
	TotalPages   int                        `json:"totalPages"`
	TotalRecords int                        `json:"totalRecords"`
}

// ViolationService defines the ticket lifecycle and listing operations.
type ViolationService interface {
	// Create issues a new ticket. The event time is resolved from the raw
	// device timestamp and the repeat-offender standing is snapshotted at
	// this moment.
	Create(ctx context.Context, input CreateViolationInput) (*models.EnrichedViolation, error)

	// Get returns one enriched violation. Returns ErrViolationNotFound when
	// the id does not exist.
	Get(ctx context.Context, id string) (*models.EnrichedViolation, error)

	// UpdateStatus moves a ticket to a new lifecycle state. Returns
	// ErrInvalidStatus for unknown states and ErrViolationNotFound for
	// missing ids. Paying a ticket stamps its payment time.
	UpdateStatus(ctx context.Context, id string, status models.Status) (*models.Violation, error)

	// Delete removes a ticket. Returns ErrViolationNotFound when the id does
	// not exist.
	Delete(ctx context.Context, id string) error

	// List returns a deterministic page of the violations matching input.
	List(ctx context.Context, input ListViolationsInput) (*ViolationPage, error)
}

type violationService struct {
	violations store.ViolationStore
	filter     *query.Filter
	joiner     *enrich.Joiner
	tz         *temporal.Normalizer
	engine     config.EngineConfig
	log        *logger.Logger
	now        func() time.Time
}

// NewViolationService creates a ViolationService.
func NewViolationService(
	violations store.ViolationStore,
	filter *query.Filter,
	joiner *enrich.Joiner,
	tz *temporal.Normalizer,
	engine config.EngineConfig,
	log *logger.Logger,
) ViolationService {
	return &violationService{
		violations: violations,
		filter:     filter,
		joiner:     joiner,
		tz:         tz,
		engine:     engine,
		log:        log,
		now:        time.Now,
	}
}

func (s *violationService) Create(ctx context.Context, input CreateViolationInput) (*models.EnrichedViolation, error) {
	now := s.now().UTC()

	occurred, err := s.tz.Normalize(input.CapturedAt)
	if err != nil {
		// A garbled device clock must not block ticket issuance.
		s.log.Warn("Unresolvable capture timestamp, falling back to server time", logger.Fields{
			"captured_at": input.CapturedAt,
			"reason":      err.Error(),
		})
		occurred = now.In(s.tz.Location())
	}

	dueDate := occurred.AddDate(0, 0, s.engine.ComplianceWindowDays)

	violation := &models.Violation{
		ViolationNumber: s.nextViolationNumber(occurred, now),
		EnforcerID:      input.EnforcerID,
		Name:            input.Name,
		License:         input.License,
		Phone:           input.Phone,
		Address:         input.Address,
		Plate:           input.Plate,
		Model:           input.Model,
		Color:           input.Color,
		Type:            input.Type,
		Description:     input.Description,
		Location:        input.Location,
		FineAmount:      input.FineAmount,
		Status:          models.StatusPending,
		CapturedAt:      input.CapturedAt,
		OccurredAt:      &occurred,
		DueDate:         &dueDate,
	}

	previous, err := s.countPrevious(ctx, violation)
	if err != nil {
		s.log.Error("Failed to count previous violations", err, logger.Fields{
			"identity_key": violation.IdentityKey(),
		})
		return nil, fmt.Errorf("failed to count previous violations: %w", err)
	}
	violation.PreviousViolationsCount = previous
	violation.IsRepeatOffender = previous+1 >= s.engine.RepeatMinViolations

	created, err := s.violations.Create(ctx, violation)
	if err != nil {
		s.log.Error("Failed to create violation", err, logger.Fields{
			"violation_number": violation.ViolationNumber,
		})
		return nil, fmt.Errorf("failed to create violation: %w", err)
	}

	s.log.Info("Violation created", logger.Fields{
		"violation_id":     created.ID,
		"violation_number": created.ViolationNumber,
		"repeat_offender":  created.IsRepeatOffender,
	})

	enriched := s.joiner.Attach(ctx, []models.Violation{*created})
	return &enriched[0], nil
}

func (s *violationService) Get(ctx context.Context, id string) (*models.EnrichedViolation, error) {
	violation, err := s.violations.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to fetch violation", err, logger.Fields{"violation_id": id})
		return nil, fmt.Errorf("failed to fetch violation: %w", err)
	}
	if violation == nil {
		return nil, ErrViolationNotFound
	}

	enriched := s.joiner.Attach(ctx, []models.Violation{*violation})
	return &enriched[0], nil
}

func (s *violationService) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.Violation, error) {
	if !models.ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	patch := store.Filters{"status": status}
	if status == models.StatusPaid {
		patch["paidAt"] = s.now().UTC()
	}

	updated, err := s.violations.Update(ctx, id, patch)
	if err != nil {
		s.log.Error("Failed to update violation status", err, logger.Fields{
			"violation_id": id,
			"status":       status,
		})
		return nil, fmt.Errorf("failed to update violation status: %w", err)
	}
	if updated == nil {
		return nil, ErrViolationNotFound
	}

	s.log.Info("Violation status updated", logger.Fields{
		"violation_id": id,
		"status":       status,
	})
	return updated, nil
}

func (s *violationService) Delete(ctx context.Context, id string) error {
	deleted, err := s.violations.Delete(ctx, id)
	if err != nil {
		s.log.Error("Failed to delete violation", err, logger.Fields{"violation_id": id})
		return fmt.Errorf("failed to delete violation: %w", err)
	}
	if !deleted {
		return ErrViolationNotFound
	}

	s.log.Info("Violation deleted", logger.Fields{"violation_id": id})
	return nil
}

func (s *violationService) List(ctx context.Context, input ListViolationsInput) (*ViolationPage, error) {
	filters := store.Filters{
		"status":     input.Status,
		"type":       input.Type,
		"enforcerId": input.EnforcerID,
		"plate":      input.Plate,
		"license":    input.License,
	}.Compact()

	candidates, err := s.violations.FindMany(ctx, filters, s.engine.MaxFetch)
	if err != nil {
		s.log.Error("Failed to fetch violations", err, logger.Fields{"filters": filters})
		return nil, fmt.Errorf("failed to fetch violations: %w", err)
	}

	matched := s.filter.Apply(candidates, query.Predicates{
		Search:         input.Search,
		DateFrom:       input.DateFrom,
		DateTo:         input.DateTo,
		RepeatOffender: input.RepeatOffender,
	})

	params := query.DefaultPageParams()
	if input.SortKey != "" {
		params.SortKey = input.SortKey
	}
	if input.SortDesc != nil {
		params.Descending = *input.SortDesc
	}
	if input.Page != 0 {
		params.Page = input.Page
	}
	if input.PageSize != 0 {
		params.PageSize = input.PageSize
	}

	page := query.Paginate(matched, params)

	return &ViolationPage{
		Items:        s.joiner.Attach(ctx, page.Items),
		CurrentPage:  page.CurrentPage,
		TotalPages:   page.TotalPages,
		TotalRecords: page.TotalRecords,
	}, nil
}

// nextViolationNumber derives a human-facing ticket number from the event day
// and the server clock. Numbers are not guaranteed unique across tickets
// issued within the same millisecond.
func (s *violationService) nextViolationNumber(occurred, now time.Time) string {
	return fmt.Sprintf("VIO-%s-%04d", occurred.Format("20060102"), now.UnixMilli()%10000)
}

// countPrevious counts the already-stored violations sharing the ticket's
// identity key. Keyless tickets have no standing to count.
func (s *violationService) countPrevious(ctx context.Context, v *models.Violation) (int, error) {
	switch {
	case v.License != "":
		return s.violations.Count(ctx, store.Filters{"license": v.License})
	case v.Plate != "":
		return s.violations.Count(ctx, store.Filters{"plate": v.Plate})
	case v.Name != "":
		return s.violations.Count(ctx, store.Filters{"name": v.Name})
	}
	return 0, nil
}
