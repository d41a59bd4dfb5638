package services

import (
	"sync"
	"testing"

	"github.com/Lorient94/GimnasioAdmin/internal/models"
	"github.com/Lorient94/GimnasioAdmin/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnrollmentFixture(t *testing.T) (EnrollmentService, *fakeClassRepo, *fakeEnrollmentRepo) {
	t.Helper()
	classes := newFakeClassRepo()
	enrollments := newFakeEnrollmentRepo(classes)
	return NewEnrollmentService(enrollments, classes), classes, enrollments
}

func seedClass(t *testing.T, classes *fakeClassRepo, capacity int, price float64) string {
	t.Helper()
	class := &models.ClassOffering{
		Name:     "Spinning",
		Capacity: capacity,
		Price:    price,
		IsActive: true,
	}
	require.NoError(t, classes.Create(nil, class))
	return class.ID
}

func TestEnrollmentCreate_FreeClassStartsActive(t *testing.T) {
	svc, classes, _ := newEnrollmentFixture(t)
	classID := seedClass(t, classes, 10, 0)

	enrollment, err := svc.Create(nil, &models.EnrollmentCreateRequest{
		ClientDNI: "30111222",
		ClassID:   classID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStateActive, enrollment.State)
	assert.False(t, enrollment.Paid)
}

func TestEnrollmentCreate_PaidClassStartsPending(t *testing.T) {
	svc, classes, _ := newEnrollmentFixture(t)
	classID := seedClass(t, classes, 10, 1500)

	enrollment, err := svc.Create(nil, &models.EnrollmentCreateRequest{
		ClientDNI: "30111222",
		ClassID:   classID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatePending, enrollment.State)
}

func TestEnrollmentCreate_CapacityEnforced(t *testing.T) {
	svc, classes, _ := newEnrollmentFixture(t)
	classID := seedClass(t, classes, 1, 0)

	_, err := svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "1111", ClassID: classID})
	require.NoError(t, err)

	_, err = svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "2222", ClassID: classID})
	assert.ErrorIs(t, err, apperrors.ErrAtCapacity)
}

func TestEnrollmentCreate_PendingCountsAgainstCapacity(t *testing.T) {
	svc, classes, _ := newEnrollmentFixture(t)
	classID := seedClass(t, classes, 1, 2000) // paid class, enrollments start pending

	_, err := svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "1111", ClassID: classID})
	require.NoError(t, err)

	_, err = svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "2222", ClassID: classID})
	assert.ErrorIs(t, err, apperrors.ErrAtCapacity)
}

func TestEnrollmentCreate_DuplicateRejected(t *testing.T) {
	svc, classes, _ := newEnrollmentFixture(t)
	classID := seedClass(t, classes, 10, 0)

	_, err := svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "1111", ClassID: classID})
	require.NoError(t, err)

	_, err = svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "1111", ClassID: classID})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateActiveEnrollment)
}

func TestEnrollmentCreate_InactiveClassRejected(t *testing.T) {
	svc, classes, _ := newEnrollmentFixture(t)
	class := &models.ClassOffering{Name: "Closed", Capacity: 10, IsActive: false}
	require.NoError(t, classes.Create(nil, class))

	_, err := svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "1111", ClassID: class.ID})
	assert.ErrorIs(t, err, apperrors.ErrClassInactive)
}

func TestEnrollmentCreate_UnknownClass(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(t)

	_, err := svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "1111", ClassID: "00000000-0000-0000-0000-000000000000"})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}

func TestEnrollmentCancel_ReleasesSlot(t *testing.T) {
	svc, classes, _ := newEnrollmentFixture(t)
	classID := seedClass(t, classes, 1, 0)

	first, err := svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "1111", ClassID: classID})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(nil, first.ID, "schedule conflict")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStateCancelled, cancelled.State)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "schedule conflict", *cancelled.CancellationReason)
	assert.NotNil(t, cancelled.CancelledAt)

	// The freed slot is immediately available to someone else.
	_, err = svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "2222", ClassID: classID})
	assert.NoError(t, err)
}

func TestEnrollmentCancel_ReasonRequired(t *testing.T) {
	svc, classes, _ := newEnrollmentFixture(t)
	classID := seedClass(t, classes, 5, 0)

	enrollment, err := svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "1111", ClassID: classID})
	require.NoError(t, err)

	_, err = svc.Cancel(nil, enrollment.ID, "   ")
	assert.ErrorIs(t, err, apperrors.ErrCancellationReasonRequired)
}

func TestEnrollmentCancel_CompletedIsTerminal(t *testing.T) {
	svc, classes, _ := newEnrollmentFixture(t)
	classID := seedClass(t, classes, 5, 0)

	enrollment, err := svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "1111", ClassID: classID})
	require.NoError(t, err)

	_, err = svc.Complete(nil, enrollment.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(nil, enrollment.ID, "too late")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInvalidStatus, appErr.Code)

	// And a completed enrollment cannot be re-activated either.
	_, err = svc.Reactivate(nil, enrollment.ID)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInvalidStatus, appErr.Code)
}

func TestEnrollmentReactivate_RoundTrip(t *testing.T) {
	svc, classes, enrollments := newEnrollmentFixture(t)
	classID := seedClass(t, classes, 5, 0)

	enrollment, err := svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "1111", ClassID: classID})
	require.NoError(t, err)

	_, err = svc.Cancel(nil, enrollment.ID, "travelling")
	require.NoError(t, err)

	reactivated, err := svc.Reactivate(nil, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStateActive, reactivated.State)
	assert.Nil(t, reactivated.CancelledAt)
	assert.Nil(t, reactivated.CancellationReason)

	occupied, err := enrollments.CountOccupied(nil, classID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), occupied)
}

func TestEnrollmentReactivate_FullClassLeavesStateUntouched(t *testing.T) {
	svc, classes, _ := newEnrollmentFixture(t)
	classID := seedClass(t, classes, 1, 0)

	first, err := svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "1111", ClassID: classID})
	require.NoError(t, err)
	_, err = svc.Cancel(nil, first.ID, "moved away")
	require.NoError(t, err)

	// Someone else takes the slot in between.
	_, err = svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "2222", ClassID: classID})
	require.NoError(t, err)

	_, err = svc.Reactivate(nil, first.ID)
	assert.ErrorIs(t, err, apperrors.ErrAtCapacity)

	stale, err := svc.Get(nil, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStateCancelled, stale.State)
}

func TestEnrollmentCreate_ConcurrentLastSlot(t *testing.T) {
	svc, classes, _ := newEnrollmentFixture(t)
	classID := seedClass(t, classes, 1, 0)

	const contenders = 16
	var wg sync.WaitGroup
	errs := make([]error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dni := string(rune('A' + i))
			_, errs[i] = svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: dni, ClassID: classID})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, apperrors.ErrAtCapacity)
		}
	}
	assert.Equal(t, 1, winners, "exactly one contender may take the last slot")
}

func TestEnrollmentMarkPaid_FlipsOnlyLinkedRows(t *testing.T) {
	svc, classes, _ := newEnrollmentFixture(t)
	classID := seedClass(t, classes, 5, 1000)

	enrollment, err := svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "1111", ClassID: classID})
	require.NoError(t, err)
	other, err := svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "2222", ClassID: classID})
	require.NoError(t, err)

	require.NoError(t, svc.AttachTransaction(nil, enrollment.ID, "txn-1"))
	require.NoError(t, svc.MarkPaid(nil, "txn-1"))

	paid, err := svc.Get(nil, enrollment.ID)
	require.NoError(t, err)
	assert.True(t, paid.Paid)
	// Payment does not move the lifecycle state by itself.
	assert.Equal(t, models.EnrollmentStatePending, paid.State)

	unpaid, err := svc.Get(nil, other.ID)
	require.NoError(t, err)
	assert.False(t, unpaid.Paid)
}

func TestEnrollmentStats_CountsPerState(t *testing.T) {
	svc, classes, _ := newEnrollmentFixture(t)
	classID := seedClass(t, classes, 10, 0)

	first, err := svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "1111", ClassID: classID})
	require.NoError(t, err)
	_, err = svc.Create(nil, &models.EnrollmentCreateRequest{ClientDNI: "2222", ClassID: classID})
	require.NoError(t, err)
	_, err = svc.Cancel(nil, first.ID, "injury")
	require.NoError(t, err)

	stats, err := svc.Stats(nil, classID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Active)
	assert.Equal(t, int64(1), stats.Cancelled)
}
