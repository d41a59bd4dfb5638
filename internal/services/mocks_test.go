package services

import (
	"context"
	"sync"
	"time"

	"github.com/Lorient94/GimnasioAdmin/internal/gateway"
	"github.com/Lorient94/GimnasioAdmin/internal/models"
	"github.com/Lorient94/GimnasioAdmin/internal/repositories"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// In-memory fakes for the repository interfaces. The repositories take the
// *gorm.DB per call, so the fakes simply ignore it and the tests pass nil.

type fakeClassRepo struct {
	mu      sync.Mutex
	classes map[string]models.ClassOffering
}

func newFakeClassRepo() *fakeClassRepo {
	return &fakeClassRepo{classes: map[string]models.ClassOffering{}}
}

func (r *fakeClassRepo) Create(_ *gorm.DB, class *models.ClassOffering) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	r.classes[class.ID] = *class
	return nil
}

func (r *fakeClassRepo) FindByID(_ *gorm.DB, id string) (*models.ClassOffering, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	class, ok := r.classes[id]
	if !ok {
		return nil, repositories.ErrClassNotFound
	}
	copy := class
	return &copy, nil
}

func (r *fakeClassRepo) ListActive(_ *gorm.DB) ([]models.ClassOffering, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ClassOffering
	for _, class := range r.classes {
		if class.IsActive {
			out = append(out, class)
		}
	}
	return out, nil
}

type fakeEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[string]models.Enrollment
	classes     *fakeClassRepo
}

func newFakeEnrollmentRepo(classes *fakeClassRepo) *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{
		enrollments: map[string]models.Enrollment{},
		classes:     classes,
	}
}

func (r *fakeEnrollmentRepo) occupied(classID string) int64 {
	var n int64
	for _, e := range r.enrollments {
		if e.ClassID == classID && e.State.IsActive() {
			n++
		}
	}
	return n
}

func (r *fakeEnrollmentRepo) CreateReserving(_ *gorm.DB, enrollment *models.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	class, ok := r.classes.classes[enrollment.ClassID]
	if !ok {
		return repositories.ErrClassNotFound
	}
	if !class.IsActive {
		return repositories.ErrClassClosed
	}
	for _, e := range r.enrollments {
		if e.ClientDNI == enrollment.ClientDNI && e.ClassID == enrollment.ClassID && e.State != models.EnrollmentStateCancelled {
			return repositories.ErrDuplicateEnrollment
		}
	}
	if r.occupied(enrollment.ClassID) >= int64(class.Capacity) {
		return repositories.ErrSlotsExhausted
	}

	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	r.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (r *fakeEnrollmentRepo) ReactivateReserving(_ *gorm.DB, id string) (*models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	enrollment, ok := r.enrollments[id]
	if !ok {
		return nil, repositories.ErrEnrollmentNotFound
	}
	class, ok := r.classes.classes[enrollment.ClassID]
	if !ok {
		return nil, repositories.ErrClassNotFound
	}
	if !class.IsActive {
		return nil, repositories.ErrClassClosed
	}
	if r.occupied(enrollment.ClassID) >= int64(class.Capacity) {
		return nil, repositories.ErrSlotsExhausted
	}
	if enrollment.State != models.EnrollmentStateCancelled {
		return nil, repositories.ErrStaleEnrollmentState
	}

	enrollment.State = models.EnrollmentStateActive
	enrollment.CancelledAt = nil
	enrollment.CancellationReason = nil
	r.enrollments[id] = enrollment
	copy := enrollment
	return &copy, nil
}

func (r *fakeEnrollmentRepo) FindByID(_ *gorm.DB, id string) (*models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	enrollment, ok := r.enrollments[id]
	if !ok {
		return nil, repositories.ErrEnrollmentNotFound
	}
	copy := enrollment
	return &copy, nil
}

func (r *fakeEnrollmentRepo) FindByTransactionID(_ *gorm.DB, transactionID string) ([]models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Enrollment
	for _, e := range r.enrollments {
		if e.TransactionID != nil && *e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEnrollmentRepo) UpdateState(_ *gorm.DB, id string, fromState, toState models.EnrollmentState, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	enrollment, ok := r.enrollments[id]
	if !ok || enrollment.State != fromState {
		return repositories.ErrStaleEnrollmentState
	}
	enrollment.State = toState
	if v, ok := updates["cancelled_at"]; ok {
		if ts, ok := v.(time.Time); ok {
			enrollment.CancelledAt = &ts
		}
	}
	if v, ok := updates["cancellation_reason"]; ok {
		if reason, ok := v.(string); ok {
			enrollment.CancellationReason = &reason
		}
	}
	r.enrollments[id] = enrollment
	return nil
}

func (r *fakeEnrollmentRepo) MarkPaid(_ *gorm.DB, transactionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.enrollments {
		if e.TransactionID != nil && *e.TransactionID == transactionID && !e.Paid {
			e.Paid = true
			r.enrollments[id] = e
		}
	}
	return nil
}

func (r *fakeEnrollmentRepo) SetTransaction(_ *gorm.DB, id, transactionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	enrollment, ok := r.enrollments[id]
	if !ok {
		return nil
	}
	enrollment.TransactionID = &transactionID
	r.enrollments[id] = enrollment
	return nil
}

func (r *fakeEnrollmentRepo) CountOccupied(_ *gorm.DB, classID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.occupied(classID), nil
}

func (r *fakeEnrollmentRepo) ListByClient(_ *gorm.DB, clientDNI string) ([]models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Enrollment
	for _, e := range r.enrollments {
		if e.ClientDNI == clientDNI {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEnrollmentRepo) Stats(_ *gorm.DB, classID string) (*models.EnrollmentStatsResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &models.EnrollmentStatsResponse{}
	for _, e := range r.enrollments {
		if e.ClassID != classID {
			continue
		}
		stats.Total++
		switch e.State {
		case models.EnrollmentStateActive:
			stats.Active++
		case models.EnrollmentStatePending:
			stats.Pending++
		case models.EnrollmentStateCancelled:
			stats.Cancelled++
		case models.EnrollmentStateCompleted:
			stats.Completed++
		}
	}
	return stats, nil
}

func (r *fakeEnrollmentRepo) HardDelete(_ *gorm.DB, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.enrollments[id]; !ok {
		return repositories.ErrEnrollmentNotFound
	}
	delete(r.enrollments, id)
	return nil
}

type fakeTransactionRepo struct {
	mu           sync.Mutex
	transactions map[string]models.Transaction
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{transactions: map[string]models.Transaction{}}
}

func (r *fakeTransactionRepo) Create(_ *gorm.DB, transaction *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if transaction.ID == "" {
		transaction.ID = uuid.NewString()
	}
	transaction.CreatedAt = time.Now()
	r.transactions[transaction.ID] = *transaction
	return nil
}

func (r *fakeTransactionRepo) FindByID(_ *gorm.DB, id string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	transaction, ok := r.transactions[id]
	if !ok {
		return nil, repositories.ErrTransactionNotFound
	}
	copy := transaction
	return &copy, nil
}

func (r *fakeTransactionRepo) FindByExternalReference(_ *gorm.DB, reference string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.transactions {
		if t.ExternalReference == reference {
			copy := t
			return &copy, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (r *fakeTransactionRepo) AdvanceState(_ *gorm.DB, id string, fromState, toState models.TransactionState, settledAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	transaction, ok := r.transactions[id]
	if !ok || transaction.State != fromState {
		return repositories.ErrStaleTransactionState
	}
	transaction.State = toState
	if settledAt != nil {
		transaction.SettledAt = settledAt
	}
	r.transactions[id] = transaction
	return nil
}

func (r *fakeTransactionRepo) FlagForReview(_ *gorm.DB, id string, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	transaction, ok := r.transactions[id]
	if !ok {
		return repositories.ErrTransactionNotFound
	}
	transaction.NeedsReview = true
	if note != "" {
		if transaction.Notes == "" {
			transaction.Notes = note
		} else {
			transaction.Notes += "; " + note
		}
	}
	r.transactions[id] = transaction
	return nil
}

func (r *fakeTransactionRepo) ListPendingOlderThan(_ *gorm.DB, cutoff time.Time, limit int) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, t := range r.transactions {
		if t.State == models.TransactionStatePending && t.CreatedAt.Before(cutoff) {
			out = append(out, t)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) ListByClient(_ *gorm.DB, clientDNI string, limit int) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, t := range r.transactions {
		if t.ClientDNI == clientDNI {
			out = append(out, t)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) Stats(_ *gorm.DB) (*models.TransactionStatsResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &models.TransactionStatsResponse{}
	for _, t := range r.transactions {
		stats.Total++
		stats.AmountTotal += t.Amount
		switch t.State {
		case models.TransactionStatePending:
			stats.Pending++
			stats.AmountPending += t.Amount
		case models.TransactionStateCompleted:
			stats.Completed++
			stats.AmountCompleted += t.Amount
		case models.TransactionStateRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[string]models.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[string]models.Payment{}}
}

func (r *fakePaymentRepo) Create(_ *gorm.DB, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	r.payments[payment.ID] = *payment
	return nil
}

func (r *fakePaymentRepo) FindByID(_ *gorm.DB, id string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[id]
	if !ok {
		return nil, repositories.ErrPaymentNotFound
	}
	copy := payment
	return &copy, nil
}

func (r *fakePaymentRepo) FindByExternalReference(_ *gorm.DB, reference string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ExternalReference == reference {
			copy := p
			return &copy, nil
		}
	}
	return nil, repositories.ErrPaymentNotFound
}

func (r *fakePaymentRepo) ListByTransaction(_ *gorm.DB, transactionID string) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payment
	for _, p := range r.payments {
		if p.TransactionID == transactionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) AdvanceState(_ *gorm.DB, id string, fromState, toState models.TransactionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[id]
	if !ok || payment.State != fromState {
		return repositories.ErrStalePaymentState
	}
	payment.State = toState
	r.payments[id] = payment
	return nil
}

func (r *fakePaymentRepo) SumCompleted(_ *gorm.DB, transactionID string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum float64
	for _, p := range r.payments {
		if p.TransactionID == transactionID && p.State == models.TransactionStateCompleted {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (r *fakePaymentRepo) HasCompleted(_ *gorm.DB, transactionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.TransactionID == transactionID && p.State == models.TransactionStateCompleted {
			return true, nil
		}
	}
	return false, nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events map[string]models.GatewayEvent // keyed by EventID
	order  []string
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: map[string]models.GatewayEvent{}}
}

func (r *fakeEventRepo) Insert(_ *gorm.DB, event *models.GatewayEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[event.EventID]; ok {
		return repositories.ErrEventAlreadyStored
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	r.events[event.EventID] = *event
	r.order = append(r.order, event.EventID)
	return nil
}

func (r *fakeEventRepo) FindByEventID(_ *gorm.DB, eventID string) (*models.GatewayEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	copy := event
	return &copy, nil
}

func (r *fakeEventRepo) ListUnprocessed(_ *gorm.DB, limit int) ([]models.GatewayEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.GatewayEvent
	for _, eventID := range r.order {
		event := r.events[eventID]
		if !event.Processed {
			out = append(out, event)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeEventRepo) MarkProcessed(_ *gorm.DB, id string, orphan bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for eventID, event := range r.events {
		if event.ID == id {
			now := time.Now()
			event.Processed = true
			event.Orphan = orphan
			event.AppliedAt = &now
			r.events[eventID] = event
			return nil
		}
	}
	return repositories.ErrEventNotFound
}

// fakeGateway is a programmable gateway.Client. Unset hooks fail the call,
// so a test only wires what it expects to be hit.
type fakeGateway struct {
	mu          sync.Mutex
	charges     []gateway.ChargeRequest
	refundCalls []string // idempotency keys, in order

	createChargeFn func(req gateway.ChargeRequest) (*gateway.Charge, error)
	getStatusFn    func(paymentID string) (*gateway.PaymentStatus, error)
	searchFn       func(externalReference string) (*gateway.PaymentStatus, error)
	refundFn       func(paymentID string, amount float64, idempotencyKey string) (*gateway.Refund, error)
}

func (g *fakeGateway) CreateCharge(_ context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	g.mu.Lock()
	g.charges = append(g.charges, req)
	g.mu.Unlock()
	if g.createChargeFn == nil {
		return &gateway.Charge{ChargeID: "pref-1", RedirectURL: "https://checkout.example/pref-1"}, nil
	}
	return g.createChargeFn(req)
}

func (g *fakeGateway) GetStatus(_ context.Context, paymentID string) (*gateway.PaymentStatus, error) {
	if g.getStatusFn == nil {
		return nil, gateway.ErrPaymentNotFound
	}
	return g.getStatusFn(paymentID)
}

func (g *fakeGateway) SearchByReference(_ context.Context, externalReference string) (*gateway.PaymentStatus, error) {
	if g.searchFn == nil {
		return nil, gateway.ErrPaymentNotFound
	}
	return g.searchFn(externalReference)
}

func (g *fakeGateway) RefundPayment(_ context.Context, paymentID string, amount float64, idempotencyKey string) (*gateway.Refund, error) {
	g.mu.Lock()
	g.refundCalls = append(g.refundCalls, idempotencyKey)
	g.mu.Unlock()
	if g.refundFn == nil {
		return &gateway.Refund{RefundID: "refund-1", Status: "approved"}, nil
	}
	return g.refundFn(paymentID, amount, idempotencyKey)
}
