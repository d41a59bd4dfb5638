package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnrollmentTransitions(t *testing.T) {
	assert.True(t, EnrollmentStatePending.CanTransitionTo(EnrollmentStateActive))
	assert.True(t, EnrollmentStatePending.CanTransitionTo(EnrollmentStateCancelled))
	assert.True(t, EnrollmentStateActive.CanTransitionTo(EnrollmentStateCancelled))
	assert.True(t, EnrollmentStateActive.CanTransitionTo(EnrollmentStateCompleted))
	assert.True(t, EnrollmentStateCancelled.CanTransitionTo(EnrollmentStateActive))

	// completed is terminal
	assert.False(t, EnrollmentStateCompleted.CanTransitionTo(EnrollmentStateActive))
	assert.False(t, EnrollmentStateCompleted.CanTransitionTo(EnrollmentStateCancelled))

	assert.False(t, EnrollmentStatePending.CanTransitionTo(EnrollmentStateCompleted))
	assert.False(t, EnrollmentStateCancelled.CanTransitionTo(EnrollmentStateCompleted))
}

func TestTransactionTransitions(t *testing.T) {
	assert.True(t, TransactionStatePending.CanTransitionTo(TransactionStateCompleted))
	assert.True(t, TransactionStatePending.CanTransitionTo(TransactionStateRejected))
	assert.True(t, TransactionStatePending.CanTransitionTo(TransactionStateCancelled))
	assert.True(t, TransactionStateCompleted.CanTransitionTo(TransactionStateRefunded))

	// settled states never move backwards
	for _, settled := range []TransactionState{
		TransactionStateCompleted,
		TransactionStateRejected,
		TransactionStateCancelled,
		TransactionStateRefunded,
	} {
		assert.False(t, settled.CanTransitionTo(TransactionStatePending), "%s -> pending", settled)
	}

	assert.False(t, TransactionStateRejected.CanTransitionTo(TransactionStateRefunded))
	assert.False(t, TransactionStateRefunded.CanTransitionTo(TransactionStateCompleted))
}

func TestTransactionStateIsSettled(t *testing.T) {
	assert.False(t, TransactionStatePending.IsSettled())
	assert.True(t, TransactionStateCompleted.IsSettled())
	assert.True(t, TransactionStateRejected.IsSettled())
	assert.True(t, TransactionStateCancelled.IsSettled())
	assert.True(t, TransactionStateRefunded.IsSettled())
}

func TestEnrollmentStateIsActive(t *testing.T) {
	assert.True(t, EnrollmentStateActive.IsActive())
	assert.True(t, EnrollmentStatePending.IsActive())
	assert.False(t, EnrollmentStateCancelled.IsActive())
	assert.False(t, EnrollmentStateCompleted.IsActive())
}

func TestClassOfferingRequiresPayment(t *testing.T) {
	free := &ClassOffering{Price: 0}
	paid := &ClassOffering{Price: 1500}
	assert.False(t, free.RequiresPayment())
	assert.True(t, paid.RequiresPayment())
}
