package expenses

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aquatrack/aquatrack/internal/shared"
)

type fakeRepo struct {
	expenses map[int64]Expense
	nextID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{expenses: make(map[int64]Expense)}
}

func (f *fakeRepo) Create(_ context.Context, expense *Expense) error {
	f.nextID++
	expense.ID = f.nextID
	f.expenses[expense.ID] = *expense
	return nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (Expense, error) {
	e, ok := f.expenses[id]
	if !ok {
		return Expense{}, fmt.Errorf("expenses: expense %d: %w", id, shared.ErrNotFound)
	}
	return e, nil
}

func (f *fakeRepo) Update(_ context.Context, expense Expense) error {
	if _, ok := f.expenses[expense.ID]; !ok {
		return fmt.Errorf("expenses: expense %d: %w", expense.ID, shared.ErrNotFound)
	}
	f.expenses[expense.ID] = expense
	return nil
}

func (f *fakeRepo) SetDeleted(_ context.Context, id int64, deleted bool) error {
	e, ok := f.expenses[id]
	if !ok {
		return fmt.Errorf("expenses: expense %d: %w", id, shared.ErrNotFound)
	}
	e.IsDeleted = deleted
	f.expenses[id] = e
	return nil
}

func (f *fakeRepo) List(_ context.Context, filter Filter) ([]Expense, error) {
	var out []Expense
	for _, e := range f.expenses {
		if e.IsDeleted && !filter.IncludeDeleted {
			continue
		}
		if !filter.DateFrom.IsZero() && e.Date.Before(filter.DateFrom) {
			continue
		}
		if !filter.DateTo.IsZero() && !e.Date.Before(filter.DateTo) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	loc, err := time.LoadLocation("Africa/Nairobi")
	require.NoError(t, err)
	clock := shared.NewClockAt(loc, time.Date(2025, 3, 10, 14, 30, 0, 0, loc))
	repo := newFakeRepo()
	return NewService(repo, clock), repo
}

func TestCreateDefaultsDateAndMethod(t *testing.T) {
	svc, _ := newTestService(t)

	expense, err := svc.Create(context.Background(), CreateInput{
		Amount:      350,
		Description: "Fuel for delivery truck",
	})
	require.NoError(t, err)
	require.Equal(t, "2025-03-10", expense.Date.Format("2006-01-02"))
	require.Equal(t, "Cash", expense.PaymentMethod)
	require.Nil(t, expense.Category)
}

func TestCreateStampsActor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := shared.ContextWithActor(context.Background(), &shared.Actor{ID: 7, Name: "Amina"})

	expense, err := svc.Create(ctx, CreateInput{Amount: 90, Description: "Airtime"})
	require.NoError(t, err)
	require.NotNil(t, expense.AddedBy)
	require.Equal(t, int64(7), *expense.AddedBy)
}

func TestCreateRejectsNegativeAmount(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{Amount: -5, Description: "bad"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsBlankDescription(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{Amount: 100, Description: "   "})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsUnknownMethod(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{
		Amount:        100,
		Description:   "Rent",
		PaymentMethod: "Cheque",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordCOGSLocksCategory(t *testing.T) {
	svc, _ := newTestService(t)

	other := "transport"
	expense, err := svc.RecordCOGS(context.Background(), CreateInput{
		Amount:   4400,
		Category: &other,
	})
	require.NoError(t, err)
	require.NotNil(t, expense.Category)
	require.Equal(t, CategoryCOGS, *expense.Category)
	require.Equal(t, "COGS purchase", expense.Description)
}

func TestUpdatePartial(t *testing.T) {
	svc, _ := newTestService(t)

	expense, err := svc.Create(context.Background(), CreateInput{Amount: 200, Description: "Water treatment chemicals"})
	require.NoError(t, err)

	amount := 250.0
	method := "M-Pesa"
	updated, err := svc.Update(context.Background(), expense.ID, UpdateInput{
		Amount:        &amount,
		PaymentMethod: &method,
	})
	require.NoError(t, err)
	require.Equal(t, 250.0, updated.Amount)
	require.Equal(t, "M-Pesa", updated.PaymentMethod)
	require.Equal(t, "Water treatment chemicals", updated.Description)
}

func TestUpdateClearsCategory(t *testing.T) {
	svc, _ := newTestService(t)

	category := "transport"
	expense, err := svc.Create(context.Background(), CreateInput{
		Amount:      120,
		Description: "Matatu fare",
		Category:    &category,
	})
	require.NoError(t, err)

	blank := ""
	updated, err := svc.Update(context.Background(), expense.ID, UpdateInput{Category: &blank})
	require.NoError(t, err)
	require.Nil(t, updated.Category)
}

func TestUpdateRejectsInvalidChanges(t *testing.T) {
	svc, _ := newTestService(t)

	expense, err := svc.Create(context.Background(), CreateInput{Amount: 200, Description: "Rent"})
	require.NoError(t, err)

	negative := -1.0
	_, err = svc.Update(context.Background(), expense.ID, UpdateInput{Amount: &negative})
	require.ErrorIs(t, err, shared.ErrValidation)

	blank := " "
	_, err = svc.Update(context.Background(), expense.ID, UpdateInput{Description: &blank})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteAndRestore(t *testing.T) {
	svc, repo := newTestService(t)

	expense, err := svc.Create(context.Background(), CreateInput{Amount: 60, Description: "Printer paper"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), expense.ID))
	require.True(t, repo.expenses[expense.ID].IsDeleted)

	require.NoError(t, svc.Restore(context.Background(), expense.ID))
	require.False(t, repo.expenses[expense.ID].IsDeleted)
}

func TestExplicitAndDefaultedDatesShareOneDayWindow(t *testing.T) {
	svc, _ := newTestService(t)

	defaulted, err := svc.Create(context.Background(), CreateInput{Amount: 100, Description: "defaulted"})
	require.NoError(t, err)

	// A client-supplied calendar date parses to UTC midnight; storage must
	// still land on the same business day as the defaulted entry.
	utcMidnight := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	explicit, err := svc.Create(context.Background(), CreateInput{Amount: 200, Description: "explicit", Date: &utcMidnight})
	require.NoError(t, err)
	require.True(t, explicit.Date.Equal(defaulted.Date))

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, svc.clock.Location())
	window, err := svc.List(context.Background(), Filter{DateFrom: day, DateTo: day})
	require.NoError(t, err)
	require.Len(t, window, 2)

	today, _, err := svc.ListDay(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, today, 2)
}

func TestListDayWindows(t *testing.T) {
	svc, repo := newTestService(t)

	for offset, desc := range map[int]string{0: "today", 1: "yesterday", 9: "old"} {
		day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -offset)
		repo.nextID++
		repo.expenses[repo.nextID] = Expense{ID: repo.nextID, Date: day, Description: desc, Amount: 10, PaymentMethod: "Cash"}
	}

	today, day, err := svc.ListDay(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, "2025-03-10", day)
	require.Len(t, today, 1)
	require.Equal(t, "today", today[0].Description)

	yesterday, _, err := svc.ListDay(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, yesterday, 1)
	require.Equal(t, "yesterday", yesterday[0].Description)

	recent, err := svc.ListRecent(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, recent, 2)
}
