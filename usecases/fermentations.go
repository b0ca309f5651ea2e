package usecases

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cacao-server/entities"
	"cacao-server/repositories"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// titleAttempts bounds how often Create regenerates a title after losing a
// race for the same YYYY-NNN value.
const titleAttempts = 3

// FermentationInput is the body of create and update. A missing status means
// active. A missing title is generated on create and kept on update.
type FermentationInput struct {
	DeviceID  string                      `json:"device_id" validate:"required"`
	StartTime time.Time                   `json:"start_time" validate:"required"`
	EndTime   *time.Time                  `json:"end_time"`
	Status    entities.Status             `json:"status"`
	Type      entities.FermentationType   `json:"type" validate:"required"`
	Title     string                      `json:"title" validate:"max=16"`
	Note      *string                     `json:"note"`
	Code      *string                     `json:"code" validate:"omitempty,max=64"`
	Genotypes []entities.GenotypeQuantity `json:"genotypes" validate:"unique=GenotypeID,dive"`
}

// StatusInput is the body of a status transition. A missing status means
// active.
type StatusInput struct {
	Status  entities.Status `json:"status"`
	EndTime *time.Time      `json:"end_time"`
}

// FermentationView is a fermentation with its device and weighted genotypes.
type FermentationView struct {
	entities.Fermentation
	Device        *entities.Device         `json:"device,omitempty"`
	Genotypes     []entities.GenotypeShare `json:"genotypes"`
	TotalQuantity float64                  `json:"total_quantity"`
}

type FermentationDetail struct {
	FermentationView
	Turns []entities.Turn `json:"turns"`
}

// FermentationSummary is the flattened row of the summary listing.
type FermentationSummary struct {
	ID            string                    `json:"id"`
	Title         string                    `json:"title"`
	Type          entities.FermentationType `json:"type"`
	Status        entities.Status           `json:"status"`
	StartTime     time.Time                 `json:"start_time"`
	EndTime       *time.Time                `json:"end_time"`
	Code          *string                   `json:"code"`
	DeviceID      string                    `json:"device_id"`
	DeviceSerial  string                    `json:"device_serial_number"`
	DeviceCode    string                    `json:"device_code"`
	Genotypes     []entities.GenotypeShare  `json:"genotypes"`
	TotalQuantity float64                   `json:"total_quantity"`
}

type FermentationUseCase struct {
	store repositories.Store
	log   *zap.Logger
	now   clock
}

func NewFermentationUseCase(store repositories.Store, log *zap.Logger) *FermentationUseCase {
	return &FermentationUseCase{store: store, log: log, now: systemClock}
}

// Create validates and inserts a fermentation together with its genotype
// set in one transaction.
func (uc *FermentationUseCase) Create(ctx context.Context, in FermentationInput) (*FermentationDetail, error) {
	f, err := uc.create(ctx, in)
	observe("create", err)
	if err != nil {
		return nil, err
	}
	return uc.Get(ctx, f.ID)
}

func (uc *FermentationUseCase) create(ctx context.Context, in FermentationInput) (*entities.Fermentation, error) {
	if err := checkFermentationInput(in); err != nil {
		return nil, err
	}
	status := in.Status.OrDefault()

	var created *entities.Fermentation
	for attempt := 1; ; attempt++ {
		err := uc.store.Transaction(ctx, func(tx repositories.Store) error {
			if _, err := tx.Devices().Lock(ctx, in.DeviceID); err != nil {
				return lookup(err, "device")
			}
			if status.IsActive() {
				if err := checkExclusive(ctx, tx, in.DeviceID, ""); err != nil {
					return err
				}
			}
			if !in.Type.GenotypeCountValid(len(in.Genotypes)) {
				return Conflict("%s", in.Type.CompositionRule())
			}
			if err := checkGenotypesExist(ctx, tx, in.Genotypes); err != nil {
				return err
			}
			code := normalizeCode(in.Code)
			if err := checkFermentationCode(ctx, tx, code, ""); err != nil {
				return err
			}
			title, err := uc.title(ctx, tx, in.Title)
			if err != nil {
				return err
			}

			f := &entities.Fermentation{
				DeviceID:  in.DeviceID,
				StartTime: in.StartTime.UTC(),
				EndTime:   resolveEndTime("", status, nil, in.EndTime, uc.now()),
				Status:    status,
				Title:     title,
				Type:      in.Type,
				Note:      in.Note,
				Code:      code,
			}
			if err := tx.Fermentations().Create(ctx, f); err != nil {
				return err
			}
			if err := tx.Compositions().Attach(ctx, f.ID, in.Genotypes); err != nil {
				return err
			}
			created = f
			return nil
		})
		if err == nil {
			return created, nil
		}
		if in.Title == "" && errors.Is(err, gorm.ErrDuplicatedKey) && attempt < titleAttempts {
			uc.log.Warn("generated title collided, retrying", zap.Int("attempt", attempt))
			continue
		}
		return nil, uc.fail("create", err)
	}
}

// Update re-validates the whole record and replaces its genotype set with
// exactly in.Genotypes.
func (uc *FermentationUseCase) Update(ctx context.Context, id string, in FermentationInput) (*FermentationDetail, error) {
	err := uc.update(ctx, id, in)
	observe("update", err)
	if err != nil {
		return nil, err
	}
	return uc.Get(ctx, id)
}

func (uc *FermentationUseCase) update(ctx context.Context, id string, in FermentationInput) error {
	if err := checkFermentationInput(in); err != nil {
		return err
	}
	status := in.Status.OrDefault()

	err := uc.store.Transaction(ctx, func(tx repositories.Store) error {
		f, err := tx.Fermentations().Lock(ctx, id)
		if err != nil {
			return lookup(err, "fermentation")
		}
		for _, deviceID := range lockOrder(f.DeviceID, in.DeviceID) {
			if _, err := tx.Devices().Lock(ctx, deviceID); err != nil {
				return lookup(err, "device")
			}
		}
		if status.IsActive() {
			if err := checkExclusive(ctx, tx, in.DeviceID, f.ID); err != nil {
				return err
			}
		}
		if !in.Type.GenotypeCountValid(len(in.Genotypes)) {
			return Conflict("%s", in.Type.CompositionRule())
		}
		if err := checkGenotypesExist(ctx, tx, in.Genotypes); err != nil {
			return err
		}
		code := normalizeCode(in.Code)
		if err := checkFermentationCode(ctx, tx, code, f.ID); err != nil {
			return err
		}
		if in.Title != "" && in.Title != f.Title {
			if err := checkTitleFree(ctx, tx, in.Title); err != nil {
				return err
			}
			f.Title = in.Title
		}

		f.EndTime = resolveEndTime(f.Status, status, f.EndTime, in.EndTime, uc.now())
		f.DeviceID = in.DeviceID
		f.StartTime = in.StartTime.UTC()
		f.Status = status
		f.Type = in.Type
		f.Note = in.Note
		f.Code = code
		if err := tx.Fermentations().Update(ctx, f); err != nil {
			return err
		}
		return tx.Compositions().Replace(ctx, f.ID, in.Genotypes)
	})
	if err != nil {
		return uc.fail("update", err)
	}
	return nil
}

// Transition changes only the status, stamping the end time each time the
// fermentation is closed. Reopening re-checks device exclusivity.
func (uc *FermentationUseCase) Transition(ctx context.Context, id string, in StatusInput) (*entities.Fermentation, error) {
	f, err := uc.transition(ctx, id, in)
	observe("transition", err)
	return f, err
}

func (uc *FermentationUseCase) transition(ctx context.Context, id string, in StatusInput) (*entities.Fermentation, error) {
	if err := checkStatus("status", in.Status); err != nil {
		return nil, err
	}
	status := in.Status.OrDefault()

	var out *entities.Fermentation
	err := uc.store.Transaction(ctx, func(tx repositories.Store) error {
		f, err := tx.Fermentations().Lock(ctx, id)
		if err != nil {
			return lookup(err, "fermentation")
		}
		if status.IsActive() {
			if _, err := tx.Devices().Lock(ctx, f.DeviceID); err != nil {
				return lookup(err, "device")
			}
			if err := checkExclusive(ctx, tx, f.DeviceID, f.ID); err != nil {
				return err
			}
		}
		f.EndTime = transitionEndTime(status, f.EndTime, in.EndTime, uc.now())
		f.Status = status
		if err := tx.Fermentations().Update(ctx, f); err != nil {
			return err
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, uc.fail("transition", err)
	}
	return out, nil
}

// Delete removes the fermentation with its genotype associations and turns.
func (uc *FermentationUseCase) Delete(ctx context.Context, id string) error {
	err := uc.store.Transaction(ctx, func(tx repositories.Store) error {
		if _, err := tx.Fermentations().Lock(ctx, id); err != nil {
			return lookup(err, "fermentation")
		}
		if err := tx.Compositions().DeleteByFermentationID(ctx, id); err != nil {
			return err
		}
		if err := tx.Turns().DeleteByFermentationID(ctx, id); err != nil {
			return err
		}
		return tx.Fermentations().Delete(ctx, id)
	})
	if err != nil {
		err = uc.fail("delete", err)
	}
	observe("delete", err)
	return err
}

func (uc *FermentationUseCase) Get(ctx context.Context, id string) (*FermentationDetail, error) {
	f, err := uc.store.Fermentations().GetByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "fermentation")
	}
	shares, err := uc.store.Compositions().ListShares(ctx, f.ID)
	if err != nil {
		return nil, wrap(err)
	}
	turns, err := uc.store.Turns().GetByFermentationID(ctx, f.ID)
	if err != nil {
		return nil, wrap(err)
	}
	device, err := uc.store.Devices().GetByID(ctx, f.DeviceID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, wrap(err)
	}
	return &FermentationDetail{
		FermentationView: newView(*f, device, shares),
		Turns:            nonNil(turns),
	}, nil
}

func (uc *FermentationUseCase) List(ctx context.Context) ([]FermentationView, error) {
	list, err := uc.store.Fermentations().GetAll(ctx)
	if err != nil {
		return nil, wrap(err)
	}
	return uc.views(ctx, list)
}

// Summary flattens List into one row per fermentation with its total
// genotype quantity.
func (uc *FermentationUseCase) Summary(ctx context.Context) ([]FermentationSummary, error) {
	views, err := uc.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FermentationSummary, 0, len(views))
	for _, v := range views {
		row := FermentationSummary{
			ID:            v.ID,
			Title:         v.Title,
			Type:          v.Type,
			Status:        v.Status,
			StartTime:     v.StartTime,
			EndTime:       v.EndTime,
			Code:          v.Code,
			DeviceID:      v.DeviceID,
			Genotypes:     v.Genotypes,
			TotalQuantity: v.TotalQuantity,
		}
		if v.Device != nil {
			row.DeviceSerial = v.Device.SerialNumber
			row.DeviceCode = v.Device.Code
		}
		out = append(out, row)
	}
	return out, nil
}

func (uc *FermentationUseCase) views(ctx context.Context, list []entities.Fermentation) ([]FermentationView, error) {
	ids := make([]string, len(list))
	for i, f := range list {
		ids[i] = f.ID
	}
	shares, err := uc.store.Compositions().ListSharesFor(ctx, ids)
	if err != nil {
		return nil, wrap(err)
	}
	devices, err := uc.store.Devices().GetAll(ctx)
	if err != nil {
		return nil, wrap(err)
	}
	byID := make(map[string]*entities.Device, len(devices))
	for i := range devices {
		byID[devices[i].ID] = &devices[i]
	}

	out := make([]FermentationView, 0, len(list))
	for _, f := range list {
		out = append(out, newView(f, byID[f.DeviceID], shares[f.ID]))
	}
	return out, nil
}

func (uc *FermentationUseCase) title(ctx context.Context, tx repositories.Store, requested string) (string, error) {
	if requested != "" {
		return requested, checkTitleFree(ctx, tx, requested)
	}
	year := uc.now().Year()
	existing, err := tx.Fermentations().TitlesWithPrefix(ctx, titlePrefix(year))
	if err != nil {
		return "", err
	}
	return NextTitle(year, existing), nil
}

func (uc *FermentationUseCase) fail(op string, err error) error {
	err = wrap(err)
	switch KindOf(err) {
	case KindInternal:
		uc.log.Error("fermentation operation failed", zap.String("operation", op), zap.Error(err))
	case KindConflict:
		uc.log.Info("fermentation operation rejected", zap.String("operation", op), zap.Error(err))
	}
	return err
}

func checkFermentationInput(in FermentationInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	if !in.Type.Valid() {
		return InvalidField("type", "type must be Special or Premium")
	}
	if err := checkStatus("status", in.Status); err != nil {
		return err
	}
	if in.EndTime != nil && in.EndTime.Before(in.StartTime) {
		return InvalidField("end_time", "end_time must not be before start_time")
	}
	return nil
}

func checkExclusive(ctx context.Context, tx repositories.Store, deviceID, excludeID string) error {
	active, err := tx.Fermentations().FindActiveByDevice(ctx, deviceID, excludeID)
	if err != nil {
		return err
	}
	if active != nil {
		return Conflict("device already has an active fermentation (%s)", active.Title)
	}
	return nil
}

func checkGenotypesExist(ctx context.Context, tx repositories.Store, items []entities.GenotypeQuantity) error {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.GenotypeID
	}
	missing, err := tx.Genotypes().MissingIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &Error{Kind: KindNotFound, Message: "genotype not found: " + strings.Join(missing, ", ")}
	}
	return nil
}

func checkFermentationCode(ctx context.Context, tx repositories.Store, code *string, excludeID string) error {
	if code == nil {
		return nil
	}
	taken, err := tx.Fermentations().CodeTaken(ctx, *code, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return InvalidField("code", "code is already in use")
	}
	return nil
}

func checkTitleFree(ctx context.Context, tx repositories.Store, title string) error {
	titles, err := tx.Fermentations().TitlesWithPrefix(ctx, title)
	if err != nil {
		return err
	}
	for _, t := range titles {
		if t == title {
			return InvalidField("title", "title is already in use")
		}
	}
	return nil
}

// normalizeCode treats a blank code as absent so the unique index only
// covers real codes.
func normalizeCode(code *string) *string {
	if code == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*code)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// lockOrder returns the distinct device ids in ascending order.
func lockOrder(ids ...string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func newView(f entities.Fermentation, device *entities.Device, shares []entities.GenotypeShare) FermentationView {
	shares = nonNil(shares)
	return FermentationView{
		Fermentation:  f,
		Device:        device,
		Genotypes:     shares,
		TotalQuantity: entities.TotalQuantity(shares),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
