package usecases

import (
	"context"
	"time"

	"cacao-server/entities"
	"cacao-server/repositories"
)

// TurnInput is the body of turn create and update. A missing status means
// active; closing a turn without an end time stamps now.
type TurnInput struct {
	FermentationID string          `json:"fermentation_id" validate:"required"`
	StartTime      time.Time       `json:"start_time" validate:"required"`
	EndTime        *time.Time      `json:"end_time"`
	Status         entities.Status `json:"status"`
}

type TurnUseCase struct {
	store repositories.Store
	now   clock
}

func NewTurnUseCase(store repositories.Store) *TurnUseCase {
	return &TurnUseCase{store: store, now: systemClock}
}

func (uc *TurnUseCase) Create(ctx context.Context, in TurnInput) (*entities.Turn, error) {
	if err := checkTurnInput(in); err != nil {
		return nil, err
	}
	if _, err := uc.store.Fermentations().GetByID(ctx, in.FermentationID); err != nil {
		return nil, lookup(err, "fermentation")
	}
	status := in.Status.OrDefault()
	turn := &entities.Turn{
		FermentationID: in.FermentationID,
		StartTime:      in.StartTime.UTC(),
		EndTime:        resolveEndTime("", status, nil, in.EndTime, uc.now()),
		Status:         status,
	}
	if err := uc.store.Turns().Create(ctx, turn); err != nil {
		return nil, wrap(err)
	}
	return turn, nil
}

func (uc *TurnUseCase) Get(ctx context.Context, id string) (*entities.Turn, error) {
	turn, err := uc.store.Turns().GetByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "turn")
	}
	return turn, nil
}

// List returns every turn, or only those of fermentationID when set.
func (uc *TurnUseCase) List(ctx context.Context, fermentationID string) ([]entities.Turn, error) {
	var (
		turns []entities.Turn
		err   error
	)
	if fermentationID != "" {
		turns, err = uc.store.Turns().GetByFermentationID(ctx, fermentationID)
	} else {
		turns, err = uc.store.Turns().GetAll(ctx)
	}
	return nonNil(turns), wrap(err)
}

func (uc *TurnUseCase) Update(ctx context.Context, id string, in TurnInput) (*entities.Turn, error) {
	if err := checkTurnInput(in); err != nil {
		return nil, err
	}
	turn, err := uc.store.Turns().GetByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "turn")
	}
	if _, err := uc.store.Fermentations().GetByID(ctx, in.FermentationID); err != nil {
		return nil, lookup(err, "fermentation")
	}
	status := in.Status.OrDefault()
	turn.EndTime = resolveEndTime(turn.Status, status, turn.EndTime, in.EndTime, uc.now())
	turn.FermentationID = in.FermentationID
	turn.StartTime = in.StartTime.UTC()
	turn.Status = status
	if err := uc.store.Turns().Update(ctx, turn); err != nil {
		return nil, wrap(err)
	}
	return turn, nil
}

func (uc *TurnUseCase) Delete(ctx context.Context, id string) error {
	if _, err := uc.store.Turns().GetByID(ctx, id); err != nil {
		return lookup(err, "turn")
	}
	return wrap(uc.store.Turns().Delete(ctx, id))
}

func checkTurnInput(in TurnInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	if err := checkStatus("status", in.Status); err != nil {
		return err
	}
	if in.EndTime != nil && in.EndTime.Before(in.StartTime) {
		return InvalidField("end_time", "end_time must not be before start_time")
	}
	return nil
}
